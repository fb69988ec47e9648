// Package session records one live writing session: a single producer
// appends structured events to the log as the author writes, then the
// export pipeline finalizes, digests and packages the artifact as one
// atomic unit.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Functional-Intelligence-Research-Lab/twff/core/container"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/eventlog"
	"github.com/Functional-Intelligence-Research-Lab/twff/core/integrity"
	schematwff "github.com/Functional-Intelligence-Research-Lab/twff/core/schema/v1/twff"
)

type Options struct {
	// UserID is the anonymous rotatable author identifier; an
	// ephemeral one is generated when empty.
	UserID        string
	ContentSource string
	StartTime     time.Time
}

// Recorder drives the event log for one live session. Append ordering
// correctness depends on strict sequencing, so all writes funnel
// through the log's single critical section; readers snapshot freely.
type Recorder struct {
	log *eventlog.Log

	mu       sync.Mutex
	messages []schematwff.ChatMessage
}

func NewRecorder(opts Options) (*Recorder, error) {
	userID := opts.UserID
	if userID == "" {
		userID = EphemeralUserID()
	}
	log, err := eventlog.Start(eventlog.Options{
		SessionID:     uuid.NewString(),
		UserID:        userID,
		StartTime:     opts.StartTime,
		ContentSource: opts.ContentSource,
	})
	if err != nil {
		return nil, err
	}
	return &Recorder{log: log}, nil
}

// EphemeralUserID generates a short anonymous session-scoped author
// identifier. Not stored anywhere; rotate by starting a new session.
func EphemeralUserID() string {
	seed := uuid.NewString()
	sum := sha256.Sum256([]byte(seed))
	return "anon-" + hex.EncodeToString(sum[:])[:12]
}

func (r *Recorder) Log() *eventlog.Log {
	return r.log
}

func (r *Recorder) SessionID() string {
	return r.log.SessionID()
}

func (r *Recorder) LogEdit(at time.Time, positionStart, positionEnd int) error {
	return r.log.Append(schematwff.Event{
		Timestamp: stampOrNow(at),
		Kind:      schematwff.EventEdit,
		Meta: schematwff.EditMeta{
			PositionStart: positionStart,
			PositionEnd:   positionEnd,
			Source:        schematwff.EditSourceHuman,
		},
	})
}

func (r *Recorder) LogPaste(at time.Time, charCount int, source string, positionStart, positionEnd int, preview string) error {
	return r.log.Append(schematwff.Event{
		Timestamp: stampOrNow(at),
		Kind:      schematwff.EventPaste,
		Meta: schematwff.PasteMeta{
			CharCount:     charCount,
			Source:        source,
			PositionStart: positionStart,
			PositionEnd:   positionEnd,
			OutputPreview: schematwff.TruncatePreview(preview),
		},
	})
}

type AIInteraction struct {
	InteractionType string
	Model           string
	OutputLength    int
	PositionStart   int
	PositionEnd     int
	Acceptance      string
	InputPreview    string
	OutputPreview   string
}

func (r *Recorder) LogAIInteraction(at time.Time, interaction AIInteraction) error {
	return r.log.Append(schematwff.Event{
		Timestamp: stampOrNow(at),
		Kind:      schematwff.EventAIInteraction,
		Meta: schematwff.AIInteractionMeta{
			InteractionType: interaction.InteractionType,
			Model:           interaction.Model,
			OutputLength:    interaction.OutputLength,
			PositionStart:   interaction.PositionStart,
			PositionEnd:     interaction.PositionEnd,
			Acceptance:      interaction.Acceptance,
			InputPreview:    schematwff.TruncatePreview(interaction.InputPreview),
			OutputPreview:   schematwff.TruncatePreview(interaction.OutputPreview),
		},
	})
}

// LogChatInteraction records a chat exchange summary and appends the
// underlying messages to the transcript member exported alongside the
// log.
func (r *Recorder) LogChatInteraction(at time.Time, preview string, messages ...schematwff.ChatMessage) error {
	err := r.log.Append(schematwff.Event{
		Timestamp: stampOrNow(at),
		Kind:      schematwff.EventChatInteraction,
		Meta: schematwff.ChatInteractionMeta{
			MessageCount:   len(messages),
			MessagePreview: schematwff.TruncatePreview(preview),
			SourceFile:     schematwff.ChatTranscriptPath,
		},
	})
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.messages = append(r.messages, messages...)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) LogFocusChange(at time.Time, duration time.Duration) error {
	return r.log.Append(schematwff.Event{
		Timestamp: stampOrNow(at),
		Kind:      schematwff.EventFocusChange,
		Meta: schematwff.FocusChangeMeta{
			DurationMS: duration.Milliseconds(),
		},
	})
}

func (r *Recorder) LogCheckpoint(at time.Time, charCount, wordCount, cursorPosition int) error {
	return r.log.Append(schematwff.Event{
		Timestamp: stampOrNow(at),
		Kind:      schematwff.EventCheckpoint,
		Meta: schematwff.CheckpointMeta{
			CharCountTotal: charCount,
			WordCountTotal: wordCount,
			Position:       cursorPosition,
		},
	})
}

type ExportOptions struct {
	EndTime time.Time
	// Path, when set, publishes the encoded archive atomically.
	Path   string
	Assets []container.Asset
}

// Export finalizes the log, computes the integrity digest, and
// assembles the read-only container, as one unit: any failure leaves
// no partial artifact behind.
func (r *Recorder) Export(content []byte, opts ExportOptions) (*container.Container, error) {
	if err := r.log.Finalize(opts.EndTime); err != nil {
		return nil, err
	}
	record, err := integrity.Compute(r.log)
	if err != nil {
		return nil, err
	}

	exported := &container.Container{
		ContentPath:  r.log.ContentSource(),
		Content:      content,
		Log:          r.log,
		Integrity:    &record,
		Assets:       opts.Assets,
		Verification: container.VerificationVerified,
	}
	r.mu.Lock()
	if len(r.messages) > 0 {
		exported.Transcript = &schematwff.ChatTranscript{
			SessionID: r.log.SessionID(),
			Messages:  append([]schematwff.ChatMessage{}, r.messages...),
		}
	}
	r.mu.Unlock()
	exported.Manifest = container.BuildManifest(exported)

	if opts.Path != "" {
		if err := container.WriteFile(opts.Path, exported); err != nil {
			return nil, err
		}
	}
	return exported, nil
}

func stampOrNow(at time.Time) time.Time {
	if at.IsZero() {
		return time.Now().UTC()
	}
	return at.UTC()
}
