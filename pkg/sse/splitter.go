package sse

import "strings"

// Mode selects how a Splitter decides whether a run of blank lines ends a
// block.
type Mode int

const (
	// ClientMode treats every run of two or more line breaks as a boundary.
	ClientMode Mode = iota

	// RelayMode treats a run as a boundary only when it is followed by a new
	// field line ("data:" or "event:") or by the end of the buffered text.
	// Any other run stays inside the block verbatim.
	RelayMode
)

// fieldPrefixes are the line starts that open a new block in RelayMode.
var fieldPrefixes = []string{"data:", "event:"}

// Splitter is an incremental scanner that turns decoded text into complete
// event blocks. It owns the pending text of exactly one stream.
//
// A delimiter is a maximal run of two or more line breaks, where a line break
// is "\n" or "\r\n". The scan offset is kept between calls so text already
// known to be inside a block is never rescanned.
type Splitter struct {
	mode Mode

	pending []byte

	// scan is the offset in pending where scanning resumes.
	scan int

	// inRun is set when a boundary was resolved at the very end of the
	// pending text. Line breaks at the start of the next feed extend that
	// same run and are swallowed.
	inRun bool

	// partial is set once the head of the current block was handed out by
	// TakePartial. The block is then terminated even when its rest is empty.
	partial bool
}

// NewSplitter creates a Splitter for one stream.
func NewSplitter(mode Mode) *Splitter {
	return &Splitter{mode: mode}
}

// Feed appends text to the pending buffer and returns every block completed
// by it, in order and without delimiters. Blocks that are empty are skipped.
func (s *Splitter) Feed(text string) []string {
	s.pending = append(s.pending, text...)

	if s.inRun {
		n, settled := leadingBreaks(s.pending)
		s.compact(n)
		if len(s.pending) == 0 || !settled {
			return nil
		}
		s.inRun = false
	}

	var blocks []string
	b := s.pending
	start := 0
	i := s.scan

scan:
	for i < len(b) {
		width, ok := lineBreak(b, i)
		if !ok {
			break
		}
		if width == 0 {
			i++
			continue
		}

		end, count, closed := breakRun(b, i)
		if count < 2 {
			if !closed {
				// A single trailing break may still grow into a delimiter.
				break
			}
			i = end
			continue
		}

		switch s.boundary(b[end:], closed) {
		case boundaryPending:
			break scan
		case boundaryNo:
			i = end
			continue
		}

		if block := b[start:i]; len(block) > 0 || s.partial {
			blocks = append(blocks, string(block))
		}
		s.partial = false
		start, i = end, end

		if !closed {
			s.inRun = true
			break
		}
	}

	s.scan = i - start
	s.compact(start)

	return blocks
}

// TakePartial removes and returns the already-scanned head of the current
// block when that block starts with a "data:" field, so the caller can forward
// it before its delimiter arrives. It returns "" when there is nothing to hand
// out. The remainder of the block is returned by a later Feed as usual.
func (s *Splitter) TakePartial() string {
	if s.inRun || s.scan == 0 {
		return ""
	}
	if !s.partial && !hasPrefixFold(string(s.pending), "data:") {
		return ""
	}

	head := string(s.pending[:s.scan])
	s.compact(s.scan)
	s.scan = 0
	s.partial = true

	return head
}

// Pending returns the text that has not been emitted as a block yet.
func (s *Splitter) Pending() string {
	return string(s.pending)
}

// Reset drops the pending text, returning it.
func (s *Splitter) Reset() string {
	rest := string(s.pending)
	s.pending = s.pending[:0]
	s.scan = 0
	s.inRun = false
	s.partial = false
	return rest
}

func (s *Splitter) compact(n int) {
	if n == 0 {
		return
	}
	s.pending = append(s.pending[:0], s.pending[n:]...)
}

type boundaryDecision int

const (
	boundaryYes boundaryDecision = iota
	boundaryNo
	boundaryPending
)

func (s *Splitter) boundary(rest []byte, closed bool) boundaryDecision {
	if s.mode == ClientMode || !closed {
		return boundaryYes
	}

	next := string(rest)
	for _, prefix := range fieldPrefixes {
		if hasPrefixFold(next, prefix) {
			return boundaryYes
		}
	}
	for _, prefix := range fieldPrefixes {
		if len(next) < len(prefix) && strings.EqualFold(next, prefix[:len(next)]) {
			return boundaryPending
		}
	}

	return boundaryNo
}

// lineBreak reports the width of the line break starting at b[i]: 1 for "\n",
// 2 for "\r\n" and 0 when b[i] does not start one. ok is false when b ends
// with a lone '\r' at i, whose meaning depends on the next byte.
func lineBreak(b []byte, i int) (width int, ok bool) {
	switch b[i] {
	case '\n':
		return 1, true
	case '\r':
		if i+1 == len(b) {
			return 0, false
		}
		if b[i+1] == '\n' {
			return 2, true
		}
	}
	return 0, true
}

// breakRun measures the run of consecutive line breaks starting at i. It
// returns the offset just past the run, the number of breaks in it and
// whether the run is closed by a byte that cannot extend it. A run that is
// not closed touches the end of b.
func breakRun(b []byte, i int) (end, count int, closed bool) {
	end = i
	for end < len(b) {
		width, ok := lineBreak(b, end)
		if !ok {
			return end, count, false
		}
		if width == 0 {
			return end, count, true
		}
		end += width
		count++
	}
	return end, count, false
}

// leadingBreaks returns how many bytes of line breaks b starts with. settled
// is false when b ends inside that run, including on a lone '\r'.
func leadingBreaks(b []byte) (n int, settled bool) {
	end, _, closed := breakRun(b, 0)
	return end, closed
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
