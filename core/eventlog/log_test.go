package eventlog

import (
	"testing"
	"time"

	coreerrors "github.com/Functional-Intelligence-Research-Lab/twff/core/errors"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
)

var baseTime = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

func startedLog(t *testing.T) *Log {
	t.Helper()
	log, err := Start(Options{
		SessionID: "session-1",
		UserID:    "anon-0123456789ab",
		StartTime: baseTime,
	})
	if err != nil {
		t.Fatalf("start log: %v", err)
	}
	return log
}

func editEvent(at time.Time, start, end int) schematwff.Event {
	return schematwff.Event{
		Timestamp: at,
		Kind:      schematwff.EventEdit,
		Meta:      schematwff.EditMeta{PositionStart: start, PositionEnd: end, Source: schematwff.EditSourceHuman},
	}
}

func TestStartAppendsSessionStart(t *testing.T) {
	log := startedLog(t)
	events := log.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Kind != schematwff.EventSessionStart {
		t.Fatalf("expected session_start, got %s", events[0].Kind)
	}
	if log.ContentSource() != schematwff.DefaultContentPath {
		t.Fatalf("unexpected content source %q", log.ContentSource())
	}
}

func TestAppendRejectsOutOfOrderTimestamp(t *testing.T) {
	log := startedLog(t)
	if err := log.Append(editEvent(baseTime.Add(time.Minute), 0, 5)); err != nil {
		t.Fatalf("append: %v", err)
	}
	lengthBefore := log.Len()

	err := log.Append(editEvent(baseTime.Add(30*time.Second), 5, 8))
	if err == nil {
		t.Fatalf("expected out-of-order rejection")
	}
	if coreerrors.CodeOf(err) != coreerrors.CodeOutOfOrderEvent {
		t.Fatalf("unexpected code %q", coreerrors.CodeOf(err))
	}
	if log.Len() != lengthBefore {
		t.Fatalf("failed append must not change the log")
	}
}

func TestAppendAllowsEqualTimestamps(t *testing.T) {
	log := startedLog(t)
	at := baseTime.Add(time.Second)
	if err := log.Append(editEvent(at, 0, 1)); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := log.Append(editEvent(at, 1, 2)); err != nil {
		t.Fatalf("equal timestamps must be accepted: %v", err)
	}
}

func TestAppendRejectsUnknownKind(t *testing.T) {
	log := startedLog(t)
	err := log.Append(schematwff.Event{
		Timestamp: baseTime.Add(time.Second),
		Kind:      schematwff.EventKind("telepathy"),
		Meta:      schematwff.SessionBoundaryMeta{Kind: schematwff.EventSessionStart},
	})
	if err == nil {
		t.Fatalf("expected rejection of unknown kind")
	}
	if coreerrors.CodeOf(err) != coreerrors.CodeSchemaViolation {
		t.Fatalf("unexpected code %q", coreerrors.CodeOf(err))
	}
}

func TestAppendReportsViolationWithField(t *testing.T) {
	log := startedLog(t)
	err := log.Append(schematwff.Event{
		Timestamp: baseTime.Add(time.Second),
		Kind:      schematwff.EventEdit,
		Meta:      schematwff.EditMeta{PositionStart: -1, PositionEnd: 4, Source: schematwff.EditSourceHuman},
	})
	if err == nil {
		t.Fatalf("expected schema violation")
	}
	violations := coreerrors.ViolationsOf(err)
	if len(violations) == 0 {
		t.Fatalf("expected violations in error chain")
	}
	if violations[0].Field != "position_start" {
		t.Fatalf("violation must name the offending field, got %q", violations[0].Field)
	}
}

func TestAppendRejectsSessionEnd(t *testing.T) {
	log := startedLog(t)
	err := log.Append(schematwff.Event{
		Timestamp: baseTime.Add(time.Second),
		Kind:      schematwff.EventSessionEnd,
		Meta:      schematwff.SessionBoundaryMeta{Kind: schematwff.EventSessionEnd},
	})
	if err == nil {
		t.Fatalf("session_end must only be appended by Finalize")
	}
}

func TestFinalizeSealsLog(t *testing.T) {
	log := startedLog(t)
	endTime := baseTime.Add(time.Hour)
	if err := log.Finalize(endTime); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !log.Sealed() {
		t.Fatalf("expected sealed log")
	}
	if !log.EndTime().Equal(endTime) {
		t.Fatalf("unexpected end time %v", log.EndTime())
	}
	events := log.Events()
	if events[len(events)-1].Kind != schematwff.EventSessionEnd {
		t.Fatalf("last event must be session_end")
	}

	err := log.Append(editEvent(endTime.Add(time.Second), 0, 1))
	if coreerrors.CodeOf(err) != coreerrors.CodeLogSealed {
		t.Fatalf("append after finalize must fail with sealed code, got %v", err)
	}
	if err := log.Finalize(endTime.Add(time.Second)); coreerrors.CodeOf(err) != coreerrors.CodeLogSealed {
		t.Fatalf("second finalize must fail with sealed code, got %v", err)
	}
}

func TestFinalizeRejectsEarlierEndTime(t *testing.T) {
	log := startedLog(t)
	if err := log.Append(editEvent(baseTime.Add(time.Minute), 0, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := log.Finalize(baseTime.Add(10 * time.Second))
	if coreerrors.CodeOf(err) != coreerrors.CodeOutOfOrderEvent {
		t.Fatalf("expected out-of-order rejection, got %v", err)
	}
	if log.Sealed() {
		t.Fatalf("failed finalize must not seal the log")
	}
}

func TestEventsSnapshotIsIndependent(t *testing.T) {
	log := startedLog(t)
	first := log.Events()
	if err := log.Append(editEvent(baseTime.Add(time.Second), 0, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("snapshot must not grow with later appends")
	}
	second := log.Events()
	if len(second) != 2 {
		t.Fatalf("fresh snapshot must see the append")
	}
}
