package client

import (
	"strings"

	"github.com/l-messias/ragrelay/pkg/sse"
)

// Reassembler turns the chunks of a relay response back into the growing
// answer. It is the pure part of a Stream and holds the state of exactly one
// response.
type Reassembler struct {
	decoder     sse.Decoder
	splitter    *sse.Splitter
	accumulator *sse.Accumulator
}

// NewReassembler creates a Reassembler joining payloads with separator.
func NewReassembler(separator string) *Reassembler {
	return &Reassembler{
		splitter:    sse.NewSplitter(sse.ClientMode),
		accumulator: sse.NewAccumulator(separator),
	}
}

// Feed consumes one chunk and returns the answer after each event it
// accepted, in order. Control events and empty payloads add nothing. Once a
// terminal event was seen the rest of the response is ignored.
func (r *Reassembler) Feed(chunk []byte) []string {
	return r.accept(r.decoder.Decode(chunk))
}

// Finish flushes the end of the response. A non-blank remainder without its
// delimiter is parsed as a final block under the same filters. It returns
// the final answer. Nothing is flushed after a terminal event.
func (r *Reassembler) Finish() string {
	if r.accumulator.Done() {
		return r.accumulator.Answer()
	}
	r.accept(r.decoder.Flush())
	if rest := r.splitter.Reset(); strings.TrimSpace(rest) != "" {
		r.accumulator.Accept(sse.ParseBlock(rest))
	}
	return r.accumulator.Answer()
}

// Done reports whether a [DONE] payload or an "end" event ended the answer.
func (r *Reassembler) Done() bool {
	return r.accumulator.Done()
}

// Answer returns the answer accumulated so far.
func (r *Reassembler) Answer() string {
	return r.accumulator.Answer()
}

func (r *Reassembler) accept(text string) []string {
	if text == "" || r.accumulator.Done() {
		return nil
	}

	var answers []string
	for _, block := range r.splitter.Feed(text) {
		if answer, ok := r.accumulator.Accept(sse.ParseBlock(block)); ok {
			answers = append(answers, answer)
		}
		if r.accumulator.Done() {
			break
		}
	}
	return answers
}
