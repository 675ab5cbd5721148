package relay

import (
	"strings"

	"github.com/l-messias/ragrelay/pkg/sse"
)

// transcriber rebuilds the answer a client reassembles from the forwarded
// frames, using the same parser and accumulator.
type transcriber struct {
	splitter    *sse.Splitter
	accumulator *sse.Accumulator
}

func newTranscriber() *transcriber {
	return &transcriber{
		splitter:    sse.NewSplitter(sse.ClientMode),
		accumulator: sse.NewAccumulator(sse.DefaultSeparator),
	}
}

func (t *transcriber) observe(frame string) {
	for _, block := range t.splitter.Feed(frame) {
		t.accumulator.Accept(sse.ParseBlock(block))
	}
}

// answer flushes any unterminated remainder and returns the final answer.
func (t *transcriber) answer() string {
	if rest := t.splitter.Reset(); strings.TrimSpace(rest) != "" {
		t.accumulator.Accept(sse.ParseBlock(rest))
	}
	return t.accumulator.Answer()
}
