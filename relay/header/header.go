// Package header provides header handling for the ragrelay relay.
//
// The relay sits between a chat client and the RAG function like so:
//
//	Client <--> Relay <--> RAG function
//
// and each leg gets its own headers: the client leg always receives an event
// stream, while the upstream leg always posts JSON and asks for one.
package header

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ClientIDHeader carries the session id issued by GET /api/new-session.
const ClientIDHeader = "X-Client-Id"

// maxClientIDLen bounds the client id recorded with a transcript.
const maxClientIDLen = 128

// streamHeaders are set on every chat response before the first frame.
var streamHeaders = [][2]string{
	{"Content-Type", "text/event-stream"},
	{"Cache-Control", "no-cache"},
	{"Connection", "keep-alive"},
}

// upstreamHeaders are set on every request to the RAG function. Client
// headers are never forwarded upstream.
var upstreamHeaders = [][2]string{
	{"Content-Type", "application/json"},
	{"Accept", "text/event-stream"},
}

// Handler manages headers between relay connections.
type Handler struct{}

// NewHandler creates a new header Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// SetStreamHeaders marks the client response as an uncached event stream.
func (h *Handler) SetStreamHeaders(c *fiber.Ctx) {
	for _, kv := range streamHeaders {
		c.Set(kv[0], kv[1])
	}
}

// SetUpstreamRequestHeaders sets the fixed headers of the outgoing request to
// the RAG function.
func (h *Handler) SetUpstreamRequestHeaders(req *http.Request) {
	for _, kv := range upstreamHeaders {
		req.Header.Set(kv[0], kv[1])
	}
}

// ClientID returns the trimmed X-Client-Id of the request, or "" when it is
// missing or too long to be an id.
func (h *Handler) ClientID(c *fiber.Ctx) string {
	id := strings.TrimSpace(c.Get(ClientIDHeader))
	if len(id) > maxClientIDLen {
		return ""
	}
	return id
}
