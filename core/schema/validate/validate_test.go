package validate

import (
	"strings"
	"testing"
)

const minimalLog = `{
  "version": "0.1.0",
  "session_id": "session-1",
  "user_id": "anon-0123456789ab",
  "start_time": "2026-03-01T12:00:00Z",
  "end_time": "2026-03-01T13:00:00Z",
  "content_source": "content/document.xhtml",
  "events": [
    {"timestamp": "2026-03-01T12:00:00Z", "type": "session_start", "meta": {}}
  ]
}`

func TestValidateProcessLogJSON(t *testing.T) {
	if err := ValidateProcessLogJSON([]byte(minimalLog)); err != nil {
		t.Fatalf("valid log rejected: %v", err)
	}
}

func TestValidateRejectsMissingField(t *testing.T) {
	broken := strings.Replace(minimalLog, `"user_id": "anon-0123456789ab",`, ``, 1)
	if err := ValidateProcessLogJSON([]byte(broken)); err == nil {
		t.Fatalf("expected rejection for missing user_id")
	}
}

func TestValidateRejectsBareEvent(t *testing.T) {
	broken := strings.Replace(minimalLog,
		`{"timestamp": "2026-03-01T12:00:00Z", "type": "session_start", "meta": {}}`,
		`{"type": "session_start"}`, 1)
	if err := ValidateProcessLogJSON([]byte(broken)); err == nil {
		t.Fatalf("expected rejection for event missing timestamp and meta")
	}
}

func TestValidateRejectsNonJSON(t *testing.T) {
	if err := ValidateProcessLogJSON([]byte("not json")); err == nil {
		t.Fatalf("expected rejection for malformed JSON")
	}
}
