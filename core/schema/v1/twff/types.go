package twff

import (
	"encoding/json"
	"encoding/xml"
	"time"
)

const SpecVersion = "0.1.0"

// Fixed archive member paths. Content lives under content/ with a
// producer-chosen name recorded in content_source; everything else is
// addressed by these exact paths.
const (
	DefaultContentPath = "content/document.xhtml"
	ProcessLogPath     = "meta/process-log.json"
	ManifestPath       = "meta/manifest.xml"
	ChatTranscriptPath = "meta/chat-transcript.json"
	SignaturesPath     = "META-INF/signatures.xml"
)

const (
	MediaTypeXHTML = "application/xhtml+xml"
	MediaTypeJSON  = "application/json"
	MediaTypeXML   = "application/xml"
)

type EventKind string

const (
	EventSessionStart    EventKind = "session_start"
	EventSessionEnd      EventKind = "session_end"
	EventEdit            EventKind = "edit"
	EventPaste           EventKind = "paste"
	EventAIInteraction   EventKind = "ai_interaction"
	EventChatInteraction EventKind = "chat_interaction"
	EventFocusChange     EventKind = "focus_change"
	EventCheckpoint      EventKind = "checkpoint"
)

// KnownEventKind reports whether kind is one of the TWFF event kinds.
func KnownEventKind(kind EventKind) bool {
	switch kind {
	case EventSessionStart, EventSessionEnd, EventEdit, EventPaste,
		EventAIInteraction, EventChatInteraction, EventFocusChange, EventCheckpoint:
		return true
	}
	return false
}

const (
	EditSourceHuman = "human"

	PasteSourceExternal = "external"
	PasteSourceAI       = "ai"
)

const (
	InteractionBrainstorm = "brainstorm"
	InteractionDraft      = "draft"
	InteractionParaphrase = "paraphrase"
	InteractionSummarize  = "summarize"
	InteractionExpand     = "expand"
	InteractionContinue   = "continue"
)

var InteractionTypes = []string{
	InteractionBrainstorm,
	InteractionDraft,
	InteractionParaphrase,
	InteractionSummarize,
	InteractionExpand,
	InteractionContinue,
}

const (
	AcceptanceFull     = "fully_accepted"
	AcceptancePartial  = "partially_accepted"
	AcceptanceModified = "modified"
	AcceptanceRejected = "rejected"
)

var AcceptanceValues = []string{
	AcceptanceFull,
	AcceptancePartial,
	AcceptanceModified,
	AcceptanceRejected,
}

// PreviewLimit caps preview fields before they enter the log.
const PreviewLimit = 100

// ProcessLog is the wire form of meta/process-log.json.
type ProcessLog struct {
	Version       string           `json:"version"`
	SessionID     string           `json:"session_id"`
	UserID        string           `json:"user_id"`
	StartTime     time.Time        `json:"start_time"`
	EndTime       time.Time        `json:"end_time"`
	ContentSource string           `json:"content_source"`
	Events        []Event          `json:"events"`
	Integrity     *IntegrityRecord `json:"_integrity,omitempty"`
}

// IntegrityRecord is an aggregate digest over the canonical event
// sequence, salted with the session identifier. Recomputation always
// produces a fresh record; an existing record is never edited.
type IntegrityRecord struct {
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
}

// Event is one recorded occurrence in a writing session: a tagged
// variant whose Meta payload shape is fixed by Kind.
type Event struct {
	Timestamp time.Time
	Kind      EventKind
	Meta      EventMeta
}

// EventMeta is the closed set of per-kind payloads. Unknown fields seen
// on the wire are preserved in each payload's Extra map so the
// integrity digest stays sensitive to them.
type EventMeta interface {
	EventKind() EventKind
}

// Ranged is implemented by payloads that address a span of the content
// snapshot.
type Ranged interface {
	Range() (start, end int)
}

type SessionBoundaryMeta struct {
	Kind  EventKind
	Extra map[string]json.RawMessage
}

func (m SessionBoundaryMeta) EventKind() EventKind { return m.Kind }

type EditMeta struct {
	PositionStart int
	PositionEnd   int
	Source        string
	Extra         map[string]json.RawMessage
}

func (m EditMeta) EventKind() EventKind { return EventEdit }
func (m EditMeta) Range() (int, int)    { return m.PositionStart, m.PositionEnd }

type PasteMeta struct {
	CharCount     int
	Source        string
	PositionStart int
	PositionEnd   int
	OutputPreview string
	Extra         map[string]json.RawMessage
}

func (m PasteMeta) EventKind() EventKind { return EventPaste }
func (m PasteMeta) Range() (int, int)    { return m.PositionStart, m.PositionEnd }

type AIInteractionMeta struct {
	InteractionType string
	Model           string
	OutputLength    int
	PositionStart   int
	PositionEnd     int
	Acceptance      string
	InputPreview    string
	OutputPreview   string
	Extra           map[string]json.RawMessage
}

func (m AIInteractionMeta) EventKind() EventKind { return EventAIInteraction }
func (m AIInteractionMeta) Range() (int, int)    { return m.PositionStart, m.PositionEnd }

type ChatInteractionMeta struct {
	MessageCount   int
	MessagePreview string
	SourceFile     string
	Extra          map[string]json.RawMessage
}

func (m ChatInteractionMeta) EventKind() EventKind { return EventChatInteraction }

type FocusChangeMeta struct {
	DurationMS int64
	Extra      map[string]json.RawMessage
}

func (m FocusChangeMeta) EventKind() EventKind { return EventFocusChange }

type CheckpointMeta struct {
	CharCountTotal int
	WordCountTotal int
	Position       int
	Extra          map[string]json.RawMessage
}

func (m CheckpointMeta) EventKind() EventKind { return EventCheckpoint }

// Manifest is the wire form of meta/manifest.xml: a member to
// media-type table covering every archive member except the manifest
// itself.
type Manifest struct {
	XMLName xml.Name       `xml:"manifest"`
	Items   []ManifestItem `xml:"item"`
}

type ManifestItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
	// Hash is the sha256 hex digest of the member's bytes, stamped at
	// encode time and checked at decode.
	Hash string `xml:"hash,attr,omitempty"`
}

// ChatTranscript is the wire form of meta/chat-transcript.json.
type ChatTranscript struct {
	SessionID string        `json:"session_id"`
	Messages  []ChatMessage `json:"messages"`
}

type ChatMessage struct {
	Timestamp time.Time `json:"timestamp"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Model     string    `json:"model,omitempty"`
}
