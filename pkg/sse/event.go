// Package sse provides the incremental, chunk-boundary-safe SSE (Server-Sent
// Events) framing shared by both hops of the ragrelay stream: the relay that
// re-frames upstream chunks for the downstream client, and the client that
// reassembles those frames into a growing answer.
//
// Transport reads never align with event boundaries. A chunk may split a
// delimiter, split a multi-byte character, merge several events or carry
// repeated delimiters. Everything in this package is pure and owned by a single
// stream: a Decoder and a Splitter hold the pending bytes of one request and
// are never shared.
//
//	┌────────────┐   ┌─────────┐   ┌──────────┐   ┌────────────┐   ┌─────────────┐
//	│ ByteChunk  │──▶│ Decoder │──▶│ Splitter │──▶│ ParseBlock │──▶│ Accumulator │
//	└────────────┘   └─────────┘   └──────────┘   └────────────┘   └─────────────┘
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "strings"

const (
	// DoneSentinel is the payload that marks the end of an answer.
	DoneSentinel = "[DONE]"

	// EndEventType is the event name that marks the end of an answer.
	EndEventType = "end"

	// Delimiter is the canonical blank line that terminates a forwarded block.
	Delimiter = "\n\n"
)

// Event represents a single parsed SSE event block.
type Event struct {
	// Type is the SSE event type from the "event:" field.
	// An empty string means the default "message" type per the SSE spec.
	Type string

	// Data is the concatenated contents of all "data:" lines for this event,
	// joined with "\n".
	Data string

	// ID is the last event ID from the "id:" field, if present.
	ID string
}

// IsControl reports whether the event carries no renderable content: an empty
// payload, the [DONE] sentinel, or an "end" event.
func (e Event) IsControl() bool {
	if e.Data == "" {
		return true
	}
	if strings.TrimSpace(e.Data) == DoneSentinel {
		return true
	}
	return strings.EqualFold(e.Type, EndEventType)
}

// IsTerminal reports whether the event ends the answer: the [DONE] sentinel
// or an "end" event. Nothing after it belongs to the answer.
func (e Event) IsTerminal() bool {
	return strings.TrimSpace(e.Data) == DoneSentinel || strings.EqualFold(e.Type, EndEventType)
}
