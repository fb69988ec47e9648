// Package eventlog implements the TWFF event log model: a typed,
// order-validated, append-only record of one writing session. Exactly
// one producer appends during a live session; readers take immutable
// snapshots and never block the writer.
package eventlog

import (
	"fmt"
	"sync"
	"time"

	coreerrors "github.com/Functional-Intelligence-Research-Lab/twff/core/errors"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
)

type Options struct {
	SessionID     string
	UserID        string
	StartTime     time.Time
	ContentSource string
}

// Log is the ordered, validated event sequence for one session.
// Mutable (append-only) until finalized, then immutable.
type Log struct {
	mu            sync.Mutex
	version       string
	sessionID     string
	userID        string
	startTime     time.Time
	endTime       time.Time
	contentSource string
	events        []schematwff.Event
	sealed        bool
}

// New creates an open log whose first appended event must be
// session_start; Start is a convenience that does both.
func New(opts Options) (*Log, error) {
	if opts.SessionID == "" {
		return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeSchemaViolation, "session_id is required")
	}
	if opts.UserID == "" {
		return nil, coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeSchemaViolation, "user_id is required")
	}
	startTime := opts.StartTime.UTC()
	if startTime.IsZero() {
		startTime = time.Now().UTC()
	}
	contentSource := opts.ContentSource
	if contentSource == "" {
		contentSource = schematwff.DefaultContentPath
	}
	return &Log{
		version:       schematwff.SpecVersion,
		sessionID:     opts.SessionID,
		userID:        opts.UserID,
		startTime:     startTime,
		contentSource: contentSource,
	}, nil
}

// Start creates a log and appends its session_start event.
func Start(opts Options) (*Log, error) {
	log, err := New(opts)
	if err != nil {
		return nil, err
	}
	startEvent := schematwff.Event{
		Timestamp: log.startTime,
		Kind:      schematwff.EventSessionStart,
		Meta:      schematwff.SessionBoundaryMeta{Kind: schematwff.EventSessionStart},
	}
	if err := log.Append(startEvent); err != nil {
		return nil, err
	}
	return log, nil
}

// Append validates event against the ordering and payload schema and
// appends it. On failure the log is unchanged; there is no partial
// append.
func (l *Log) Append(event schematwff.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sealed {
		return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeLogSealed,
			"log for session %s is sealed", l.sessionID)
	}
	if !schematwff.KnownEventKind(event.Kind) {
		return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeSchemaViolation,
			"unknown event kind %q", event.Kind)
	}
	index := len(l.events)
	if err := l.checkPosition(event.Kind, index); err != nil {
		return err
	}
	if len(l.events) > 0 {
		last := l.events[len(l.events)-1]
		if event.Timestamp.Before(last.Timestamp) {
			return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeOutOfOrderEvent,
				"event timestamp %s precedes last timestamp %s",
				event.Timestamp.UTC().Format(time.RFC3339Nano), last.Timestamp.UTC().Format(time.RFC3339Nano))
		}
	}
	if violations := validateTypedMeta(event.Kind, event.Meta, index); len(violations) > 0 {
		list := &coreerrors.ViolationList{Violations: violations}
		return list.ErrOrNil()
	}

	event.Timestamp = event.Timestamp.UTC()
	l.events = append(l.events, event)
	if event.Kind == schematwff.EventSessionEnd {
		l.sealed = true
	}
	return nil
}

func (l *Log) checkPosition(kind schematwff.EventKind, index int) error {
	switch kind {
	case schematwff.EventSessionStart:
		if index != 0 {
			return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeSchemaViolation,
				"session_start must be the first event")
		}
	case schematwff.EventSessionEnd:
		return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeSchemaViolation,
			"session_end is appended by Finalize, not Append")
	default:
		if index == 0 {
			return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeSchemaViolation,
				"first event must be session_start, got %s", kind)
		}
	}
	return nil
}

// Finalize appends the session_end event, records end_time exactly
// once, and seals the log. Further appends fail with LogSealed.
func (l *Log) Finalize(at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.sealed {
		return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeLogSealed,
			"log for session %s is already sealed", l.sessionID)
	}
	if len(l.events) == 0 {
		return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeSchemaViolation,
			"cannot finalize an empty log: session_start missing")
	}
	endTime := at.UTC()
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}
	last := l.events[len(l.events)-1]
	if endTime.Before(last.Timestamp) {
		return coreerrors.New(coreerrors.CategoryInvalidInput, coreerrors.CodeOutOfOrderEvent,
			"finalize timestamp %s precedes last event", endTime.Format(time.RFC3339Nano))
	}
	l.events = append(l.events, schematwff.Event{
		Timestamp: endTime,
		Kind:      schematwff.EventSessionEnd,
		Meta:      schematwff.SessionBoundaryMeta{Kind: schematwff.EventSessionEnd},
	})
	l.endTime = endTime
	l.sealed = true
	return nil
}

// Events returns an immutable snapshot of the sequence. Safe to call
// repeatedly and from concurrent readers; never exhausts the log.
func (l *Log) Events() []schematwff.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	snapshot := make([]schematwff.Event, len(l.events))
	copy(snapshot, l.events)
	return snapshot
}

func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

func (l *Log) Sealed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sealed
}

func (l *Log) Version() string       { return l.version }
func (l *Log) SessionID() string     { return l.sessionID }
func (l *Log) UserID() string        { return l.userID }
func (l *Log) StartTime() time.Time  { return l.startTime }
func (l *Log) ContentSource() string { return l.contentSource }

// EndTime is zero until the log is finalized.
func (l *Log) EndTime() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.endTime
}

// Wire produces the process-log.json form of the current snapshot.
// Integrity is attached by the caller once computed.
func (l *Log) Wire(integrity *schematwff.IntegrityRecord) schematwff.ProcessLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := make([]schematwff.Event, len(l.events))
	copy(events, l.events)
	return schematwff.ProcessLog{
		Version:       l.version,
		SessionID:     l.sessionID,
		UserID:        l.userID,
		StartTime:     l.startTime,
		EndTime:       l.endTime,
		ContentSource: l.contentSource,
		Events:        events,
		Integrity:     integrity,
	}
}

func (l *Log) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	state := "open"
	if l.sealed {
		state = "sealed"
	}
	return fmt.Sprintf("eventlog(session=%s events=%d %s)", l.sessionID, len(l.events), state)
}
