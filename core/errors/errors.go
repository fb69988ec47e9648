package errors

import (
	"errors"
	"fmt"
	"strings"
)

type Category string

const (
	CategoryInvalidInput    Category = "invalid_input"
	CategoryVerification    Category = "verification_failed"
	CategoryIOFailure       Category = "io_failure"
	CategoryStateContention Category = "state_contention"
	CategoryInternalFailure Category = "internal_failure"
)

// Stable error codes for the TWFF core. Callers dispatch on these via
// CodeOf rather than matching error strings.
const (
	CodeSchemaViolation          = "schema_violation"
	CodeOutOfOrderEvent          = "out_of_order_event"
	CodeLogSealed                = "log_sealed"
	CodeMissingRequiredMember    = "missing_required_member"
	CodeContentSourceMismatch    = "content_source_mismatch"
	CodeManifestMismatch         = "manifest_mismatch"
	CodeIntegrityMismatch        = "integrity_mismatch"
	CodeOverlappingRangeConflict = "overlapping_range_conflict"
	CodeOffsetOutOfRange         = "offset_out_of_range"
)

type classifiedError struct {
	category  Category
	code      string
	hint      string
	retryable bool
	cause     error
}

func (e *classifiedError) Error() string {
	if e.cause == nil {
		return "unknown error"
	}
	return e.cause.Error()
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}

func Wrap(cause error, category Category, code, hint string, retryable bool) error {
	if cause == nil {
		return nil
	}
	return &classifiedError{
		category:  category,
		code:      code,
		hint:      hint,
		retryable: retryable,
		cause:     cause,
	}
}

// New builds a classified error from a formatted message.
func New(category Category, code, format string, args ...any) error {
	return Wrap(fmt.Errorf(format, args...), category, code, "", false)
}

func CategoryOf(err error) Category {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.category
	}
	return ""
}

func CodeOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.code
	}
	var list *ViolationList
	if errors.As(err, &list) && len(list.Violations) > 0 {
		return list.Violations[0].Code
	}
	return ""
}

func HintOf(err error) string {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.hint
	}
	return ""
}

func RetryableOf(err error) bool {
	var classified *classifiedError
	if errors.As(err, &classified) {
		return classified.retryable
	}
	return false
}

// Violation is one schema or ordering defect found while validating an
// event log. EventIndex is -1 when the violation is not tied to a
// specific event; Field is empty when the whole event is malformed.
type Violation struct {
	Code       string `json:"code"`
	EventIndex int    `json:"event_index"`
	Field      string `json:"field,omitempty"`
	Reason     string `json:"reason"`
}

func (v Violation) String() string {
	if v.EventIndex < 0 {
		return fmt.Sprintf("%s: %s", v.Code, v.Reason)
	}
	if v.Field == "" {
		return fmt.Sprintf("%s at event %d: %s", v.Code, v.EventIndex, v.Reason)
	}
	return fmt.Sprintf("%s at event %d field %q: %s", v.Code, v.EventIndex, v.Field, v.Reason)
}

// ViolationList accumulates every defect found in one validation pass
// so a caller sees all of them together instead of fixing one at a
// time. It is an error itself.
type ViolationList struct {
	Violations []Violation
}

func (l *ViolationList) Error() string {
	if len(l.Violations) == 0 {
		return "no violations"
	}
	parts := make([]string, 0, len(l.Violations))
	for _, violation := range l.Violations {
		parts = append(parts, violation.String())
	}
	return fmt.Sprintf("%d violation(s): %s", len(l.Violations), strings.Join(parts, "; "))
}

func (l *ViolationList) Add(violation Violation) {
	l.Violations = append(l.Violations, violation)
}

func (l *ViolationList) Empty() bool {
	return len(l.Violations) == 0
}

// ErrOrNil returns the list as a classified invalid-input error when it
// holds at least one violation, nil otherwise.
func (l *ViolationList) ErrOrNil() error {
	if l.Empty() {
		return nil
	}
	return Wrap(l, CategoryInvalidInput, l.Violations[0].Code, "fix every reported violation and re-validate", false)
}

// ViolationsOf extracts the accumulated violations from an error chain.
func ViolationsOf(err error) []Violation {
	var list *ViolationList
	if errors.As(err, &list) {
		return list.Violations
	}
	return nil
}
