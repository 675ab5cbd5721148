// Package eventstream publishes an event for every recorded chat transcript
// so downstream consumers (analytics, cache warmers) can follow the relay.
package eventstream

import (
	"time"

	"github.com/google/uuid"

	"github.com/l-messias/ragrelay/pkg/llm"
	"github.com/l-messias/ragrelay/pkg/storage"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTranscriptRecorded is emitted after a transcript is persisted.
	EventTypeTranscriptRecorded = "ragrelay.transcript.recorded"

	// SourceService names the emitter of every event.
	SourceService = "ragrelay"
)

// TranscriptEvent is a transport-neutral event payload for a recorded stream.
type TranscriptEvent struct {
	SchemaVersion int               `json:"schema_version"`
	EventType     string            `json:"event_type"`
	EventID       string            `json:"event_id"`
	EmittedAt     time.Time         `json:"emitted_at"`
	Source        EventSource       `json:"source"`
	Stream        StreamMeta        `json:"stream"`
	Transcript    TranscriptPayload `json:"transcript"`
}

// EventSource identifies where the transcript originated.
type EventSource struct {
	Service  string `json:"service"`
	ClientID string `json:"client_id,omitempty"`
}

// StreamMeta captures stream lifecycle metadata for the event.
type StreamMeta struct {
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at"`
	DurationMs  int64           `json:"duration_ms"`
	Frames      int             `json:"frames"`
	Outcome     storage.Outcome `json:"outcome"`
	Error       string          `json:"error,omitempty"`
}

// TranscriptPayload is the conversational content of the event.
type TranscriptPayload struct {
	ID     string     `json:"id"`
	Query  string     `json:"query"`
	Turns  []llm.Turn `json:"turns,omitempty"`
	Answer string     `json:"answer"`
}

// NewTranscriptEvent builds the event for a persisted transcript.
func NewTranscriptEvent(t *storage.Transcript, emittedAt time.Time) *TranscriptEvent {
	return &TranscriptEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeTranscriptRecorded,
		EventID:       uuid.NewString(),
		EmittedAt:     emittedAt.UTC(),
		Source: EventSource{
			Service:  SourceService,
			ClientID: t.ClientID,
		},
		Stream: StreamMeta{
			StartedAt:   t.StartedAt.UTC(),
			CompletedAt: t.StartedAt.Add(t.Duration).UTC(),
			DurationMs:  t.Duration.Milliseconds(),
			Frames:      t.Frames,
			Outcome:     t.Outcome,
			Error:       t.Error,
		},
		Transcript: TranscriptPayload{
			ID:     t.ID,
			Query:  t.Query,
			Turns:  t.Turns,
			Answer: t.Answer,
		},
	}
}

// Key returns the partitioning key of the event: the client session when
// known, so one conversation stays ordered, or the transcript ID otherwise.
func (e *TranscriptEvent) Key() string {
	if e.Source.ClientID != "" {
		return e.Source.ClientID
	}
	return e.Transcript.ID
}
