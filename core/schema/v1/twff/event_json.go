package twff

import (
	"encoding/json"
	"fmt"
	"time"
)

// wireEvent is the JSON envelope for one event.
type wireEvent struct {
	Timestamp string          `json:"timestamp"`
	Type      EventKind       `json:"type"`
	Meta      json.RawMessage `json:"meta"`
}

func (e Event) MarshalJSON() ([]byte, error) {
	if e.Meta == nil {
		return nil, fmt.Errorf("event %s has no meta payload", e.Kind)
	}
	if e.Meta.EventKind() != e.Kind {
		return nil, fmt.Errorf("event kind %s does not match meta kind %s", e.Kind, e.Meta.EventKind())
	}
	metaBytes, err := marshalMeta(e.Meta)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEvent{
		Timestamp: e.Timestamp.UTC().Format(time.RFC3339Nano),
		Type:      e.Kind,
		Meta:      metaBytes,
	})
}

func marshalMeta(meta EventMeta) ([]byte, error) {
	fields := map[string]any{}
	var extra map[string]json.RawMessage

	switch payload := meta.(type) {
	case SessionBoundaryMeta:
		extra = payload.Extra
	case EditMeta:
		fields["position_start"] = payload.PositionStart
		fields["position_end"] = payload.PositionEnd
		fields["source"] = payload.Source
		extra = payload.Extra
	case PasteMeta:
		fields["char_count"] = payload.CharCount
		fields["source"] = payload.Source
		fields["position_start"] = payload.PositionStart
		fields["position_end"] = payload.PositionEnd
		if payload.OutputPreview != "" {
			fields["output_preview"] = payload.OutputPreview
		}
		extra = payload.Extra
	case AIInteractionMeta:
		fields["interaction_type"] = payload.InteractionType
		fields["model"] = payload.Model
		fields["output_length"] = payload.OutputLength
		fields["position_start"] = payload.PositionStart
		fields["position_end"] = payload.PositionEnd
		fields["acceptance"] = payload.Acceptance
		if payload.InputPreview != "" {
			fields["input_preview"] = payload.InputPreview
		}
		if payload.OutputPreview != "" {
			fields["output_preview"] = payload.OutputPreview
		}
		extra = payload.Extra
	case ChatInteractionMeta:
		fields["message_count"] = payload.MessageCount
		fields["message_preview"] = payload.MessagePreview
		fields["source_file"] = payload.SourceFile
		extra = payload.Extra
	case FocusChangeMeta:
		fields["duration_ms"] = payload.DurationMS
		extra = payload.Extra
	case CheckpointMeta:
		fields["char_count_total"] = payload.CharCountTotal
		fields["word_count_total"] = payload.WordCountTotal
		fields["position"] = payload.Position
		extra = payload.Extra
	default:
		return nil, fmt.Errorf("unsupported meta payload %T", meta)
	}

	merged := make(map[string]json.RawMessage, len(fields)+len(extra))
	for key, value := range fields {
		encoded, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode meta field %s: %w", key, err)
		}
		merged[key] = encoded
	}
	for key, raw := range extra {
		if _, known := merged[key]; known {
			continue
		}
		merged[key] = raw
	}
	return json.Marshal(merged)
}

// TruncatePreview clips preview text to PreviewLimit runes.
func TruncatePreview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewLimit {
		return text
	}
	return string(runes[:PreviewLimit])
}
