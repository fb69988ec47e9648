package eventlog

import (
	"encoding/json"
	"fmt"
	"time"

	coreerrors "github.com/Functional-Intelligence-Research-Lab/twff/core/errors"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/schema/validate"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
)

type wireProcessLog struct {
	Version       string                      `json:"version"`
	SessionID     string                      `json:"session_id"`
	UserID        string                      `json:"user_id"`
	StartTime     time.Time                   `json:"start_time"`
	EndTime       time.Time                   `json:"end_time"`
	ContentSource string                      `json:"content_source"`
	Events        []json.RawMessage           `json:"events"`
	Integrity     *schematwff.IntegrityRecord `json:"_integrity"`
}

type wireEventEnvelope struct {
	Timestamp string          `json:"timestamp"`
	Type      string          `json:"type"`
	Meta      json.RawMessage `json:"meta"`
}

// Parse decodes and validates a stored process-log.json. Schema and
// ordering defects are accumulated across the whole event array, so a
// caller sees every offending event in one pass rather than fixing one
// at a time. The returned log is sealed when the sequence ends with
// session_end.
func Parse(data []byte) (*Log, *schematwff.IntegrityRecord, error) {
	if err := validate.ValidateProcessLogJSON(data); err != nil {
		return nil, nil, coreerrors.Wrap(err, coreerrors.CategoryInvalidInput, coreerrors.CodeSchemaViolation,
			"process-log.json does not match the TWFF top-level schema", false)
	}

	var wire wireProcessLog
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, nil, coreerrors.Wrap(fmt.Errorf("parse process-log.json: %w", err),
			coreerrors.CategoryInvalidInput, coreerrors.CodeSchemaViolation, "", false)
	}

	list := &coreerrors.ViolationList{}
	events := make([]schematwff.Event, 0, len(wire.Events))
	var lastTimestamp time.Time
	startSeen := false
	endIndex := -1

	for index, rawEvent := range wire.Events {
		var envelope wireEventEnvelope
		if err := json.Unmarshal(rawEvent, &envelope); err != nil {
			list.Add(coreerrors.Violation{
				Code:       coreerrors.CodeSchemaViolation,
				EventIndex: index,
				Reason:     fmt.Sprintf("event is not an object: %v", err),
			})
			continue
		}
		kind := schematwff.EventKind(envelope.Type)
		if !schematwff.KnownEventKind(kind) {
			list.Add(coreerrors.Violation{
				Code:       coreerrors.CodeSchemaViolation,
				EventIndex: index,
				Field:      "type",
				Reason:     fmt.Sprintf("unknown event kind %q", envelope.Type),
			})
			continue
		}
		timestamp, err := time.Parse(time.RFC3339Nano, envelope.Timestamp)
		if err != nil {
			list.Add(coreerrors.Violation{
				Code:       coreerrors.CodeSchemaViolation,
				EventIndex: index,
				Field:      "timestamp",
				Reason:     "must be an RFC 3339 timestamp",
			})
			continue
		}
		timestamp = timestamp.UTC()
		if index > 0 && timestamp.Before(lastTimestamp) {
			list.Add(coreerrors.Violation{
				Code:       coreerrors.CodeOutOfOrderEvent,
				EventIndex: index,
				Field:      "timestamp",
				Reason: fmt.Sprintf("timestamp %s precedes previous event %s",
					timestamp.Format(time.RFC3339Nano), lastTimestamp.Format(time.RFC3339Nano)),
			})
		}
		lastTimestamp = timestamp

		switch kind {
		case schematwff.EventSessionStart:
			if index != 0 {
				list.Add(coreerrors.Violation{
					Code:       coreerrors.CodeSchemaViolation,
					EventIndex: index,
					Field:      "type",
					Reason:     "session_start must be the first event",
				})
			} else if startSeen {
				list.Add(coreerrors.Violation{
					Code:       coreerrors.CodeSchemaViolation,
					EventIndex: index,
					Field:      "type",
					Reason:     "duplicate session_start",
				})
			}
			startSeen = true
		case schematwff.EventSessionEnd:
			if endIndex >= 0 {
				list.Add(coreerrors.Violation{
					Code:       coreerrors.CodeSchemaViolation,
					EventIndex: index,
					Field:      "type",
					Reason:     "duplicate session_end",
				})
			}
			endIndex = index
		}

		meta, violations := decodeMeta(kind, index, envelope.Meta)
		if len(violations) > 0 {
			for _, violation := range violations {
				list.Add(violation)
			}
			continue
		}
		events = append(events, schematwff.Event{
			Timestamp: timestamp,
			Kind:      kind,
			Meta:      meta,
		})
	}

	if !startSeen {
		list.Add(coreerrors.Violation{
			Code:       coreerrors.CodeSchemaViolation,
			EventIndex: 0,
			Field:      "type",
			Reason:     "first event must be session_start",
		})
	}
	if endIndex >= 0 && endIndex != len(wire.Events)-1 {
		list.Add(coreerrors.Violation{
			Code:       coreerrors.CodeSchemaViolation,
			EventIndex: endIndex,
			Field:      "type",
			Reason:     "session_end must be the last event",
		})
	}

	if err := list.ErrOrNil(); err != nil {
		return nil, nil, err
	}

	log := &Log{
		version:       wire.Version,
		sessionID:     wire.SessionID,
		userID:        wire.UserID,
		startTime:     wire.StartTime.UTC(),
		endTime:       wire.EndTime.UTC(),
		contentSource: wire.ContentSource,
		events:        events,
		sealed:        endIndex >= 0,
	}
	return log, wire.Integrity, nil
}
