package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestWrapClassifies(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(cause, CategoryIOFailure, "io_failed", "retry later", true)

	if CategoryOf(err) != CategoryIOFailure {
		t.Fatalf("unexpected category %q", CategoryOf(err))
	}
	if CodeOf(err) != "io_failed" {
		t.Fatalf("unexpected code %q", CodeOf(err))
	}
	if HintOf(err) != "retry later" {
		t.Fatalf("unexpected hint %q", HintOf(err))
	}
	if !RetryableOf(err) {
		t.Fatalf("expected retryable")
	}
	if !stderrors.Is(err, cause) {
		t.Fatalf("expected wrapped cause to survive errors.Is")
	}
}

func TestWrapNil(t *testing.T) {
	if Wrap(nil, CategoryIOFailure, "x", "", false) != nil {
		t.Fatalf("wrapping nil should stay nil")
	}
}

func TestUnclassifiedDefaults(t *testing.T) {
	err := stderrors.New("plain")
	if CategoryOf(err) != "" || CodeOf(err) != "" || RetryableOf(err) {
		t.Fatalf("plain errors must not classify")
	}
}

func TestViolationListAccumulates(t *testing.T) {
	var list ViolationList
	if list.ErrOrNil() != nil {
		t.Fatalf("empty list must yield nil error")
	}

	list.Add(Violation{Code: CodeSchemaViolation, EventIndex: 2, Field: "start", Reason: "must be >= 0"})
	list.Add(Violation{Code: CodeOutOfOrderEvent, EventIndex: 3, Reason: "timestamp regressed"})

	err := list.ErrOrNil()
	if err == nil {
		t.Fatalf("expected error from non-empty list")
	}
	if CategoryOf(err) != CategoryInvalidInput {
		t.Fatalf("unexpected category %q", CategoryOf(err))
	}
	if CodeOf(err) != CodeSchemaViolation {
		t.Fatalf("expected first violation code, got %q", CodeOf(err))
	}

	violations := ViolationsOf(err)
	if len(violations) != 2 {
		t.Fatalf("expected 2 violations, got %d", len(violations))
	}
	if violations[1].Code != CodeOutOfOrderEvent {
		t.Fatalf("unexpected second violation %+v", violations[1])
	}
	if !strings.Contains(err.Error(), "2 violation(s)") {
		t.Fatalf("unexpected message: %s", err.Error())
	}
}
