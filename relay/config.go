package relay

import (
	"github.com/l-messias/ragrelay/pkg/eventstream"
	"github.com/l-messias/ragrelay/relay/session"
	"github.com/l-messias/ragrelay/relay/upstream"
)

// Config is the relay server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":3000")
	ListenAddr string

	// AllowedOrigins are the CORS origins allowed to call the relay.
	// An empty list allows any origin.
	AllowedOrigins []string

	// ForwardPartial forwards the head of a "data:" block before its
	// delimiter arrives when a chunk completes no block. Off by default.
	ForwardPartial bool

	// Upstream configures the RAG function the relay streams from.
	Upstream upstream.Config

	// Sessions records the ids issued by GET /api/new-session.
	// If nil, ids are kept in memory.
	Sessions session.Store

	// Publisher is an optional publisher for recorded transcripts.
	// If nil, transcripts are only stored.
	Publisher eventstream.Publisher
}
