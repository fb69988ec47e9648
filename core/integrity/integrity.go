// Package integrity computes and verifies the tamper-evidence digest
// over a TWFF event log. The digest covers the RFC 8785 canonical form
// of the event array concatenated with the session identifier as salt,
// so formatting differences in stored JSON never affect the result and
// any mutation of any event field, known or unknown, changes it.
package integrity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Functional-Intelligence-Research-Lab/twff/core/canon"
	coreerrors "github.com/Functional-Intelligence-Research-Lab/twff/core/errors"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/eventlog"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
)

const Algorithm = "SHA-256"

type Status string

const (
	StatusMatched  Status = "matched"
	StatusMismatch Status = "mismatch"
)

// Compute builds a fresh IntegrityRecord for the log's current event
// snapshot. Recomputation after any change produces a new record; an
// existing record is never mutated in place.
func Compute(log *eventlog.Log) (schematwff.IntegrityRecord, error) {
	digest, err := DigestEvents(log.Events(), log.SessionID())
	if err != nil {
		return schematwff.IntegrityRecord{}, err
	}
	return schematwff.IntegrityRecord{
		Algorithm: Algorithm,
		Digest:    digest,
	}, nil
}

// Verify recomputes the digest for log and compares it against record.
func Verify(log *eventlog.Log, record schematwff.IntegrityRecord) (Status, error) {
	if !strings.EqualFold(record.Algorithm, Algorithm) {
		return StatusMismatch, coreerrors.New(coreerrors.CategoryVerification, coreerrors.CodeIntegrityMismatch,
			"unsupported integrity algorithm %q", record.Algorithm)
	}
	computed, err := DigestEvents(log.Events(), log.SessionID())
	if err != nil {
		return StatusMismatch, err
	}
	if !strings.EqualFold(computed, record.Digest) {
		return StatusMismatch, nil
	}
	return StatusMatched, nil
}

// DigestEvents canonicalizes the event array and returns its salted
// sha256 hex digest. Identical event sequences yield identical digests
// on any platform.
func DigestEvents(events []schematwff.Event, sessionID string) (string, error) {
	if events == nil {
		events = []schematwff.Event{}
	}
	raw, err := json.Marshal(events)
	if err != nil {
		return "", fmt.Errorf("encode events for digest: %w", err)
	}
	digest, err := canon.DigestJCSSalted(raw, sessionID)
	if err != nil {
		return "", fmt.Errorf("canonicalize events for digest: %w", err)
	}
	return digest, nil
}
