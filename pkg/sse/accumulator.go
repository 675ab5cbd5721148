package sse

import "strings"

// DefaultSeparator joins consecutive payloads of one answer.
const DefaultSeparator = "\n"

// Accumulator builds the answer of one stream out of its events.
// It is not safe for concurrent use.
type Accumulator struct {
	separator string
	answer    strings.Builder
	accepted  int
	done      bool
}

// NewAccumulator creates an Accumulator that joins payloads with separator.
// An empty separator concatenates payloads as they are.
func NewAccumulator(separator string) *Accumulator {
	return &Accumulator{separator: separator}
}

// Accept appends the payload of ev to the answer and returns the full answer
// so far. Control events are dropped and reported with ok set to false.
// A terminal event ends the answer: every later event is dropped too.
func (a *Accumulator) Accept(ev Event) (answer string, ok bool) {
	if a.done {
		return a.answer.String(), false
	}
	if ev.IsTerminal() {
		a.done = true
		return a.answer.String(), false
	}
	if ev.IsControl() {
		return a.answer.String(), false
	}

	if a.accepted > 0 {
		a.answer.WriteString(a.separator)
	}
	a.answer.WriteString(trimTrailingBlankLine(ev.Data))
	a.accepted++

	return a.answer.String(), true
}

// Answer returns the answer accumulated so far.
func (a *Accumulator) Answer() string {
	return a.answer.String()
}

// Done reports whether a terminal event ended the answer.
func (a *Accumulator) Done() bool {
	return a.done
}

// Accepted returns the number of payloads appended to the answer.
func (a *Accumulator) Accepted() int {
	return a.accepted
}

// trimTrailingBlankLine strips exactly one trailing blank-line sequence, two
// line breaks of either "\n" or "\r\n" form.
func trimTrailingBlankLine(s string) string {
	rest, ok := trimLineBreak(s)
	if !ok {
		return s
	}
	rest, ok = trimLineBreak(rest)
	if !ok {
		return s
	}
	return rest
}

func trimLineBreak(s string) (string, bool) {
	if strings.HasSuffix(s, "\r\n") {
		return s[:len(s)-2], true
	}
	if strings.HasSuffix(s, "\n") {
		return s[:len(s)-1], true
	}
	return s, false
}
