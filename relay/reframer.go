package relay

import (
	"github.com/l-messias/ragrelay/pkg/sse"
)

// Frame is a piece of text ready to be written to the client.
type Frame struct {
	Text string

	// Partial is set for the head of a block forwarded before its delimiter.
	Partial bool
}

// Reframer turns irregular upstream byte chunks into well-formed event frames.
// Each complete block is forwarded once, terminated by exactly one blank line.
// A Reframer belongs to a single stream and is not safe for concurrent use.
type Reframer struct {
	decoder        sse.Decoder
	splitter       *sse.Splitter
	forwardPartial bool
}

// NewReframer creates a Reframer for one stream. With forwardPartial set, the
// head of a "data:" block is forwarded early whenever a chunk completes no
// block at all.
func NewReframer(forwardPartial bool) *Reframer {
	return &Reframer{
		splitter:       sse.NewSplitter(sse.RelayMode),
		forwardPartial: forwardPartial,
	}
}

// Feed consumes one upstream chunk and returns the frames it completes, in order.
func (r *Reframer) Feed(chunk []byte) []Frame {
	text := r.decoder.Decode(chunk)
	if text == "" {
		return nil
	}

	blocks := r.splitter.Feed(text)
	if len(blocks) == 0 {
		if !r.forwardPartial {
			return nil
		}
		if head := r.splitter.TakePartial(); head != "" {
			return []Frame{{Text: head, Partial: true}}
		}
		return nil
	}

	frames := make([]Frame, 0, len(blocks))
	for _, block := range blocks {
		frames = append(frames, Frame{Text: block + sse.Delimiter})
	}
	return frames
}

// Pending returns the text held back because its block never completed.
func (r *Reframer) Pending() string {
	return r.splitter.Pending() + r.decoder.Flush()
}
