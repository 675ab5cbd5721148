package sse

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("ParseBlock", func() {
	It("parses a single data line", func() {
		ev := ParseBlock("data: hello world")
		Expect(ev.Data).To(Equal("hello world"))
		Expect(ev.Type).To(BeEmpty())
		Expect(ev.ID).To(BeEmpty())
	})

	It("parses event type and ID", func() {
		ev := ParseBlock("id: 42\nevent: content_block_delta\ndata: {\"type\":\"delta\"}")
		Expect(ev.Type).To(Equal("content_block_delta"))
		Expect(ev.ID).To(Equal("42"))
		Expect(ev.Data).To(Equal(`{"type":"delta"}`))
	})

	It("joins multiple data lines with newline", func() {
		ev := ParseBlock("data: line one\ndata: line two\ndata: line three")
		Expect(ev.Data).To(Equal("line one\nline two\nline three"))
	})

	It("removes a trailing carriage return from every line", func() {
		ev := ParseBlock("event: message\r\ndata: a\r\ndata: b\r")
		Expect(ev.Type).To(Equal("message"))
		Expect(ev.Data).To(Equal("a\nb"))
	})

	It("removes at most one leading space or tab", func() {
		Expect(ParseBlock("data:nospace").Data).To(Equal("nospace"))
		Expect(ParseBlock("data:  two").Data).To(Equal(" two"))
		Expect(ParseBlock("data:\ttab").Data).To(Equal("tab"))
	})

	It("matches field names case-insensitively", func() {
		ev := ParseBlock("EVENT: End\nData: x")
		Expect(ev.Type).To(Equal("End"))
		Expect(ev.Data).To(Equal("x"))
	})

	It("keeps the last event line", func() {
		Expect(ParseBlock("event: a\nevent: b\ndata: x").Type).To(Equal("b"))
	})

	It("ignores comments and unknown fields", func() {
		ev := ParseBlock(": keep-alive\nretry: 100\ndata: x\nnot a field")
		Expect(ev.Data).To(Equal("x"))
	})

	It("keeps empty data lines as empty payload lines", func() {
		Expect(ParseBlock("data: a\ndata:\ndata: b").Data).To(Equal("a\n\nb"))
	})
})

var _ = Describe("Event", func() {
	DescribeTable("IsControl",
		func(ev Event, control bool) {
			Expect(ev.IsControl()).To(Equal(control))
		},
		Entry("empty payload", Event{}, true),
		Entry("done sentinel", Event{Data: "[DONE]"}, true),
		Entry("done sentinel with whitespace", Event{Data: "  [DONE]\n"}, true),
		Entry("end event", Event{Type: "end", Data: "bye"}, true),
		Entry("end event in upper case", Event{Type: "END", Data: "bye"}, true),
		Entry("regular payload", Event{Data: "hello"}, false),
		Entry("named payload", Event{Type: "message", Data: "hello"}, false),
		Entry("done inside text", Event{Data: "not [DONE] yet"}, false),
	)

	DescribeTable("IsTerminal",
		func(ev Event, terminal bool) {
			Expect(ev.IsTerminal()).To(Equal(terminal))
		},
		Entry("empty payload", Event{}, false),
		Entry("done sentinel", Event{Data: " [DONE]\n"}, true),
		Entry("end event", Event{Type: "End", Data: "bye"}, true),
		Entry("end event without payload", Event{Type: "end"}, true),
		Entry("regular payload", Event{Data: "hello"}, false),
	)
})
