package client_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l-messias/ragrelay/pkg/client"
)

// feedAll feeds chunks and returns every reported answer plus the final one.
func feedAll(r *client.Reassembler, chunks ...string) ([]string, string) {
	var answers []string
	for _, chunk := range chunks {
		answers = append(answers, r.Feed([]byte(chunk))...)
	}
	return answers, r.Finish()
}

var _ = Describe("Reassembler", func() {
	var r *client.Reassembler

	BeforeEach(func() {
		r = client.NewReassembler("\n")
	})

	It("reports the growing answer of the oi scenario", func() {
		answers, final := feedAll(r, "data: Ol", "á! Como\n\n", "data: posso ajudar?\n\n")
		Expect(answers).To(Equal([]string{
			"Olá! Como",
			"Olá! Como\nposso ajudar?",
		}))
		Expect(final).To(Equal("Olá! Como\nposso ajudar?"))
	})

	It("filters empty payloads", func() {
		answers, final := feedAll(r,
			"data: a\n\n",
			"data:\n\n",
			"event: message\n\n",
			"data: b\n\n",
		)
		Expect(answers).To(Equal([]string{"a", "a\nb"}))
		Expect(final).To(Equal("a\nb"))
	})

	DescribeTable("ends the answer at a terminal event",
		func(chunks ...string) {
			answers, final := feedAll(r, chunks...)
			Expect(answers).To(Equal([]string{"a"}))
			Expect(final).To(Equal("a"))
			Expect(r.Done()).To(BeTrue())
		},
		Entry("done sentinel", "data: a\n\ndata: [DONE]\n\ndata: b\n\n"),
		Entry("done sentinel with whitespace", "data: a\n\n", "data:  [DONE]  \n\n", "data: b\n\n"),
		Entry("end event", "data: a\n\nevent: end\ndata: x\n\ndata: b\n\n"),
		Entry("end event in upper case", "data: a\n\n", "event: END\ndata: fim\n\n", "data: b"),
		Entry("sentinel then unterminated tail", "data: a\n\ndata: [DONE]\n\n", "data: b"),
	)

	It("is not done before a terminal event", func() {
		feedAll(r, "data: a\n\n")
		Expect(r.Done()).To(BeFalse())
	})

	It("preserves multi-line payloads", func() {
		answers, _ := feedAll(r, "data: linha 1\r\ndata: linha 2\r\n\r\n")
		Expect(answers).To(Equal([]string{"linha 1\nlinha 2"}))
	})

	It("collapses repeated delimiters", func() {
		answers, _ := feedAll(r, "data: a\n\n\n\n\n\ndata: b\n\n\n\n")
		Expect(answers).To(Equal([]string{"a", "a\nb"}))
	})

	It("flushes an unterminated final block", func() {
		answers, final := feedAll(r, "data: a\n\n", "data: done")
		Expect(answers).To(Equal([]string{"a"}))
		Expect(final).To(Equal("a\ndone"))
	})

	It("drops a blank remainder", func() {
		_, final := feedAll(r, "data: a\n\n", "\n")
		Expect(final).To(Equal("a"))
	})

	It("applies filters to the flushed remainder", func() {
		_, final := feedAll(r, "data: a\n\n", "data: [DONE]")
		Expect(final).To(Equal("a"))
	})

	It("concatenates payloads with an empty separator", func() {
		r = client.NewReassembler("")
		_, final := feedAll(r, "data: Olá\n\n", "data: , mundo\n\n")
		Expect(final).To(Equal("Olá, mundo"))
	})

	It("yields the same final answer for every split of the stream", func() {
		stream := "data: Olá! Como\n\n\n\nevent: message\r\ndata: posso\r\ndata: ajudar?\r\n\r\n" +
			"data: [DONE]\n\nevent: end\ndata: x\n\ndata: 😀 fim"

		_, expected := feedAll(client.NewReassembler("\n"), stream)
		Expect(expected).To(Equal("Olá! Como\nposso\najudar?"))

		for cut := 0; cut <= len(stream); cut++ {
			_, got := feedAll(client.NewReassembler("\n"), stream[:cut], stream[cut:])
			Expect(got).To(Equal(expected), "cut at %d", cut)
		}

		var chunks []string
		for i := range len(stream) {
			chunks = append(chunks, stream[i:i+1])
		}
		_, got := feedAll(client.NewReassembler("\n"), chunks...)
		Expect(got).To(Equal(expected))
	})
})
