package client_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l-messias/ragrelay/pkg/client"
	"github.com/l-messias/ragrelay/pkg/llm"
	"github.com/l-messias/ragrelay/pkg/logger"
)

// collect drains a stream's events.
func collect(s *client.Stream) []client.Event {
	var events []client.Event
	for ev := range s.Events() {
		events = append(events, ev)
	}
	return events
}

// sseServer serves the given chunks one flush at a time.
func sseServer(chunks ...string) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, chunk := range chunks {
			fmt.Fprint(w, chunk)
			flusher.Flush()
		}
	}))
}

var _ = Describe("Client", func() {
	var (
		server *httptest.Server
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
	})

	AfterEach(func() {
		if server != nil {
			server.Close()
			server = nil
		}
	})

	newClient := func(opts ...client.Option) *client.Client {
		opts = append(opts, client.WithLogger(logger.Nop()))
		c, err := client.New(server.URL+"/", opts...)
		Expect(err).NotTo(HaveOccurred())
		return c
	}

	It("requires a relay url", func() {
		_, err := client.New("  ")
		Expect(err).To(HaveOccurred())
	})

	Describe("Stream", func() {
		It("delivers the oi scenario and completes with the final answer", func() {
			server = sseServer("data: Ol", "á! Como\n\n", "data: posso ajudar?\n\n")
			c := newClient()

			s, err := c.Stream(ctx, "oi", nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(collect(s)).To(Equal([]client.Event{
				{Kind: client.EventData, Answer: "Olá! Como"},
				{Kind: client.EventData, Answer: "Olá! Como\nposso ajudar?"},
				{Kind: client.EventComplete, Answer: "Olá! Como\nposso ajudar?"},
			}))
			Expect(s.Answer()).To(Equal("Olá! Como\nposso ajudar?"))
		})

		It("includes the unterminated tail in the completion", func() {
			server = sseServer("data: a\n\n", "data: done")
			c := newClient()

			s, err := c.Stream(ctx, "oi", nil)
			Expect(err).NotTo(HaveOccurred())

			events := collect(s)
			Expect(events).To(HaveLen(2))
			Expect(events[1]).To(Equal(client.Event{Kind: client.EventComplete, Answer: "a\ndone"}))
		})

		DescribeTable("completes at a terminal event without reading further",
			func(chunks ...string) {
				server = sseServer(chunks...)
				c := newClient()

				s, err := c.Stream(ctx, "oi", nil)
				Expect(err).NotTo(HaveOccurred())

				Expect(collect(s)).To(Equal([]client.Event{
					{Kind: client.EventData, Answer: "a"},
					{Kind: client.EventComplete, Answer: "a"},
				}))
				Expect(s.Answer()).To(Equal("a"))
			},
			Entry("done sentinel", "data: a\n\n", "data: [DONE]\n\n", "data: b\n\n"),
			Entry("end event", "data: a\n\nevent: end\ndata: x\n\ndata: b\n\n"),
		)

		It("completes at a terminal event while the relay keeps the connection open", func() {
			release := make(chan struct{})
			defer close(release)
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, "data: a\n\ndata: [DONE]\n\n")
				w.(http.Flusher).Flush()
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
			c := newClient()

			s, err := c.Stream(ctx, "oi", nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(s.Events()).Should(Receive(Equal(client.Event{Kind: client.EventData, Answer: "a"})))
			Eventually(s.Events()).Should(Receive(Equal(client.Event{Kind: client.EventComplete, Answer: "a"})))
			Eventually(s.Events()).Should(BeClosed())
		})

		It("sends the query, messages and client id", func() {
			var (
				mu       sync.Mutex
				got      llm.ChatRequest
				clientID string
			)
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				mu.Lock()
				defer mu.Unlock()
				clientID = r.Header.Get("X-Client-Id")
				_ = json.NewDecoder(r.Body).Decode(&got)
				fmt.Fprint(w, "data: ok\n\n")
			}))
			c := newClient(client.WithClientID("client-7"))

			s, err := c.Stream(ctx, "e agora?", []llm.Message{{Role: "user", Content: "oi"}})
			Expect(err).NotTo(HaveOccurred())
			collect(s)

			mu.Lock()
			defer mu.Unlock()
			Expect(clientID).To(Equal("client-7"))
			Expect(got.Query).To(Equal("e agora?"))
			Expect(got.Messages).To(Equal([]llm.Message{{Role: "user", Content: "oi"}}))
		})

		It("reports a non-2xx status as one error", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				fmt.Fprint(w, `{"error":"query is required"}`)
			}))
			c := newClient()

			s, err := c.Stream(ctx, "", nil)
			Expect(err).NotTo(HaveOccurred())

			events := collect(s)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Kind).To(Equal(client.EventError))
			Expect(events[0].Err).To(MatchError(client.ErrUnexpectedStatus))
		})

		It("reports an empty response as one error", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusNoContent)
			}))
			c := newClient()

			s, err := c.Stream(ctx, "oi", nil)
			Expect(err).NotTo(HaveOccurred())

			events := collect(s)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Err).To(MatchError(client.ErrNoBody))
		})

		It("reports connection failures as one error", func() {
			server = httptest.NewServer(http.NotFoundHandler())
			c := newClient()
			server.Close()
			server = nil

			s, err := c.Stream(ctx, "oi", nil)
			Expect(err).NotTo(HaveOccurred())

			events := collect(s)
			Expect(events).To(HaveLen(1))
			Expect(events[0].Kind).To(Equal(client.EventError))
		})
	})

	Describe("cancellation", func() {
		var release chan struct{}

		BeforeEach(func() {
			release = make(chan struct{})
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				fmt.Fprint(w, "data: primeira\n\n")
				w.(http.Flusher).Flush()
				select {
				case <-release:
				case <-r.Context().Done():
				}
			}))
		})

		AfterEach(func() {
			close(release)
		})

		It("stops delivering events once closed", func() {
			c := newClient()
			s, err := c.Stream(ctx, "oi", nil)
			Expect(err).NotTo(HaveOccurred())

			Eventually(s.Events()).Should(Receive(Equal(client.Event{Kind: client.EventData, Answer: "primeira"})))

			s.Close()
			Expect(s.Events()).To(BeClosed())
			Expect(s.Answer()).To(Equal("primeira"))
		})

		It("is silent and idempotent", func() {
			c := newClient()
			s, err := c.Stream(ctx, "oi", nil)
			Expect(err).NotTo(HaveOccurred())

			s.Close()
			s.Close()

			for ev := range s.Events() {
				Expect(ev.Kind).NotTo(Equal(client.EventError))
			}
		})

		It("is a no-op after completion", func() {
			server.Close()
			server = sseServer("data: fim\n\n")
			c := newClient()

			s, err := c.Stream(ctx, "oi", nil)
			Expect(err).NotTo(HaveOccurred())
			events := collect(s)
			Expect(events[len(events)-1].Kind).To(Equal(client.EventComplete))

			Expect(func() { s.Close() }).NotTo(Panic())
			Expect(s.Answer()).To(Equal("fim"))
		})

		It("treats a cancelled context as cancellation", func() {
			c := newClient()
			cctx, cancel := context.WithCancel(ctx)

			s, err := c.Stream(cctx, "oi", nil)
			Expect(err).NotTo(HaveOccurred())
			Eventually(s.Events()).Should(Receive())

			cancel()
			Eventually(s.Events(), time.Second).Should(BeClosed())
		})

		It("cancels the previous stream when a new one starts", func() {
			c := newClient()
			first, err := c.Stream(ctx, "oi", nil)
			Expect(err).NotTo(HaveOccurred())
			Eventually(first.Events()).Should(Receive())

			second, err := c.Stream(ctx, "de novo", nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(first.Events()).To(BeClosed())
			Eventually(second.Events()).Should(Receive(HaveField("Answer", "primeira")))
			c.Close()
			Expect(second.Events()).To(BeClosed())
		})
	})

	Describe("NewSession", func() {
		It("adopts the issued client id", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				Expect(r.URL.Path).To(Equal("/api/new-session"))
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, `{"clientId":"3f1c"}`)
			}))
			c := newClient()

			id, err := c.NewSession(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(Equal("3f1c"))
			Expect(c.ClientID()).To(Equal("3f1c"))
		})

		It("fails on non-2xx answers", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}))
			c := newClient()

			_, err := c.NewSession(ctx)
			Expect(err).To(MatchError(client.ErrUnexpectedStatus))
		})

		It("fails on an empty client id", func() {
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				fmt.Fprint(w, `{}`)
			}))
			c := newClient()

			_, err := c.NewSession(ctx)
			Expect(err).To(HaveOccurred())
		})
	})
})
