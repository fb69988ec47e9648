package eventlog

import (
	"encoding/json"
	"fmt"
	"slices"

	coreerrors "github.com/Functional-Intelligence-Research-Lab/twff/core/errors"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
)

// metaReader pulls required and optional fields out of the raw meta
// object, accumulating a violation per defect so one pass reports them
// all. Keys it never consumed are forward-compatible extras.
type metaReader struct {
	index      int
	fields     map[string]json.RawMessage
	consumed   map[string]struct{}
	violations []coreerrors.Violation
}

func newMetaReader(index int, raw json.RawMessage) (*metaReader, error) {
	fields := map[string]json.RawMessage{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, fmt.Errorf("meta is not an object: %w", err)
		}
	}
	return &metaReader{
		index:    index,
		fields:   fields,
		consumed: map[string]struct{}{},
	}, nil
}

func (r *metaReader) violate(field, reason string) {
	r.violations = append(r.violations, coreerrors.Violation{
		Code:       coreerrors.CodeSchemaViolation,
		EventIndex: r.index,
		Field:      field,
		Reason:     reason,
	})
}

func (r *metaReader) requireInt(field string) int {
	raw, ok := r.fields[field]
	if !ok {
		r.violate(field, "required field missing")
		return 0
	}
	r.consumed[field] = struct{}{}
	var value int
	if err := json.Unmarshal(raw, &value); err != nil {
		r.violate(field, "must be an integer")
		return 0
	}
	return value
}

func (r *metaReader) requireInt64(field string) int64 {
	raw, ok := r.fields[field]
	if !ok {
		r.violate(field, "required field missing")
		return 0
	}
	r.consumed[field] = struct{}{}
	var value int64
	if err := json.Unmarshal(raw, &value); err != nil {
		r.violate(field, "must be an integer")
		return 0
	}
	return value
}

func (r *metaReader) requireString(field string) string {
	raw, ok := r.fields[field]
	if !ok {
		r.violate(field, "required field missing")
		return ""
	}
	r.consumed[field] = struct{}{}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		r.violate(field, "must be a string")
		return ""
	}
	return value
}

func (r *metaReader) optionalString(field string) string {
	raw, ok := r.fields[field]
	if !ok {
		return ""
	}
	r.consumed[field] = struct{}{}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		r.violate(field, "must be a string")
		return ""
	}
	return value
}

func (r *metaReader) requireEnum(field string, allowed ...string) string {
	value := r.requireString(field)
	if value == "" {
		return value
	}
	if !slices.Contains(allowed, value) {
		r.violate(field, fmt.Sprintf("value %q outside allowed set %v", value, allowed))
	}
	return value
}

// extras returns every key the reader never consumed, preserved so the
// integrity digest stays sensitive to them.
func (r *metaReader) extras() map[string]json.RawMessage {
	var extra map[string]json.RawMessage
	for key, raw := range r.fields {
		if _, ok := r.consumed[key]; ok {
			continue
		}
		if extra == nil {
			extra = map[string]json.RawMessage{}
		}
		extra[key] = raw
	}
	return extra
}

// decodeMeta validates a raw meta object against the payload schema
// for kind and builds the typed payload. All defects for the event are
// returned together.
func decodeMeta(kind schematwff.EventKind, index int, raw json.RawMessage) (schematwff.EventMeta, []coreerrors.Violation) {
	reader, err := newMetaReader(index, raw)
	if err != nil {
		return nil, []coreerrors.Violation{{
			Code:       coreerrors.CodeSchemaViolation,
			EventIndex: index,
			Field:      "meta",
			Reason:     err.Error(),
		}}
	}

	var meta schematwff.EventMeta
	switch kind {
	case schematwff.EventSessionStart, schematwff.EventSessionEnd:
		meta = schematwff.SessionBoundaryMeta{Kind: kind, Extra: reader.extras()}
	case schematwff.EventEdit:
		payload := schematwff.EditMeta{
			PositionStart: reader.requireInt("position_start"),
			PositionEnd:   reader.requireInt("position_end"),
			Source:        reader.requireEnum("source", schematwff.EditSourceHuman),
		}
		checkRange(reader, payload.PositionStart, payload.PositionEnd)
		payload.Extra = reader.extras()
		meta = payload
	case schematwff.EventPaste:
		payload := schematwff.PasteMeta{
			CharCount:     reader.requireInt("char_count"),
			Source:        reader.requireEnum("source", schematwff.PasteSourceExternal, schematwff.PasteSourceAI),
			PositionStart: reader.requireInt("position_start"),
			PositionEnd:   reader.requireInt("position_end"),
			OutputPreview: reader.optionalString("output_preview"),
		}
		if payload.CharCount < 0 {
			reader.violate("char_count", "must be non-negative")
		}
		checkRange(reader, payload.PositionStart, payload.PositionEnd)
		checkPreview(reader, "output_preview", payload.OutputPreview)
		payload.Extra = reader.extras()
		meta = payload
	case schematwff.EventAIInteraction:
		payload := schematwff.AIInteractionMeta{
			InteractionType: reader.requireEnum("interaction_type", schematwff.InteractionTypes...),
			Model:           reader.requireString("model"),
			OutputLength:    reader.requireInt("output_length"),
			PositionStart:   reader.requireInt("position_start"),
			PositionEnd:     reader.requireInt("position_end"),
			Acceptance:      reader.requireEnum("acceptance", schematwff.AcceptanceValues...),
			InputPreview:    reader.optionalString("input_preview"),
			OutputPreview:   reader.optionalString("output_preview"),
		}
		if payload.OutputLength < 0 {
			reader.violate("output_length", "must be non-negative")
		}
		checkRange(reader, payload.PositionStart, payload.PositionEnd)
		checkPreview(reader, "input_preview", payload.InputPreview)
		checkPreview(reader, "output_preview", payload.OutputPreview)
		payload.Extra = reader.extras()
		meta = payload
	case schematwff.EventChatInteraction:
		payload := schematwff.ChatInteractionMeta{
			MessageCount:   reader.requireInt("message_count"),
			MessagePreview: reader.requireString("message_preview"),
			SourceFile:     reader.requireString("source_file"),
		}
		if payload.MessageCount < 0 {
			reader.violate("message_count", "must be non-negative")
		}
		checkPreview(reader, "message_preview", payload.MessagePreview)
		payload.Extra = reader.extras()
		meta = payload
	case schematwff.EventFocusChange:
		payload := schematwff.FocusChangeMeta{
			DurationMS: reader.requireInt64("duration_ms"),
		}
		if payload.DurationMS < 0 {
			reader.violate("duration_ms", "must be non-negative")
		}
		payload.Extra = reader.extras()
		meta = payload
	case schematwff.EventCheckpoint:
		payload := schematwff.CheckpointMeta{
			CharCountTotal: reader.requireInt("char_count_total"),
			WordCountTotal: reader.requireInt("word_count_total"),
			Position:       reader.requireInt("position"),
		}
		if payload.CharCountTotal < 0 {
			reader.violate("char_count_total", "must be non-negative")
		}
		if payload.WordCountTotal < 0 {
			reader.violate("word_count_total", "must be non-negative")
		}
		if payload.Position < 0 {
			reader.violate("position", "must be non-negative")
		}
		payload.Extra = reader.extras()
		meta = payload
	default:
		return nil, []coreerrors.Violation{{
			Code:       coreerrors.CodeSchemaViolation,
			EventIndex: index,
			Field:      "type",
			Reason:     fmt.Sprintf("unknown event kind %q", kind),
		}}
	}

	if len(reader.violations) > 0 {
		return nil, reader.violations
	}
	return meta, nil
}

func checkRange(reader *metaReader, start, end int) {
	if start < 0 {
		reader.violate("position_start", "must be non-negative")
	}
	if end < start {
		reader.violate("position_end", "must not precede position_start")
	}
}

func checkPreview(reader *metaReader, field, value string) {
	if len([]rune(value)) > schematwff.PreviewLimit {
		reader.violate(field, fmt.Sprintf("preview exceeds %d characters", schematwff.PreviewLimit))
	}
}

// validateTypedMeta re-validates an already typed payload by pushing it
// through its wire form, so Append enforces exactly the same schema as
// decode.
func validateTypedMeta(kind schematwff.EventKind, meta schematwff.EventMeta, index int) []coreerrors.Violation {
	if meta == nil {
		return []coreerrors.Violation{{
			Code:       coreerrors.CodeSchemaViolation,
			EventIndex: index,
			Field:      "meta",
			Reason:     "payload is required",
		}}
	}
	if meta.EventKind() != kind {
		return []coreerrors.Violation{{
			Code:       coreerrors.CodeSchemaViolation,
			EventIndex: index,
			Field:      "type",
			Reason:     fmt.Sprintf("payload kind %s does not match event kind %s", meta.EventKind(), kind),
		}}
	}
	raw, err := json.Marshal(schematwff.Event{Kind: kind, Meta: meta})
	if err != nil {
		return []coreerrors.Violation{{
			Code:       coreerrors.CodeSchemaViolation,
			EventIndex: index,
			Field:      "meta",
			Reason:     err.Error(),
		}}
	}
	var wire struct {
		Meta json.RawMessage `json:"meta"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return []coreerrors.Violation{{
			Code:       coreerrors.CodeSchemaViolation,
			EventIndex: index,
			Field:      "meta",
			Reason:     err.Error(),
		}}
	}
	_, violations := decodeMeta(kind, index, wire.Meta)
	return violations
}
