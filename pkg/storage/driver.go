// Package storage persists the transcripts of relayed chat streams.
package storage

import (
	"context"
	"time"

	"github.com/l-messias/ragrelay/pkg/llm"
)

// Outcome describes how a relayed stream ended.
type Outcome string

const (
	// OutcomeCompleted means the upstream reached EOF.
	OutcomeCompleted Outcome = "completed"

	// OutcomeUpstreamError means the upstream could not be reached, answered
	// with a non-2xx status or failed while streaming.
	OutcomeUpstreamError Outcome = "upstream_error"

	// OutcomeClientGone means the downstream client went away mid-stream.
	OutcomeClientGone Outcome = "client_gone"
)

// Transcript is the record of one relayed chat stream.
type Transcript struct {
	// ID uniquely identifies the stream.
	ID string `json:"id"`

	// ClientID is the X-Client-Id the browser or CLI sent, if any.
	ClientID string `json:"client_id,omitempty"`

	Query string     `json:"query"`
	Turns []llm.Turn `json:"turns,omitempty"`

	// Answer is the text a client reassembles from the forwarded frames.
	Answer string `json:"answer"`

	// Frames is the number of frames forwarded downstream.
	Frames int `json:"frames"`

	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`

	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Driver defines the interface for persisting and retrieving transcripts in a
// storage backend.
type Driver interface {
	// Put stores a transcript. Returns true if it was newly inserted, false if
	// a transcript with the same ID already exists, in which case this is a
	// no-op.
	Put(ctx context.Context, t *Transcript) (bool, error)

	// Get retrieves a transcript by its ID.
	Get(ctx context.Context, id string) (*Transcript, error)

	// List returns all transcripts, oldest first.
	List(ctx context.Context) ([]*Transcript, error)

	// ListByClient returns the transcripts of one client session, oldest first.
	ListByClient(ctx context.Context, clientID string) ([]*Transcript, error)

	// Close closes the store and releases any resources.
	Close() error
}
