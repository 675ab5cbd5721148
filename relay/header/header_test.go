package header

import (
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("SetStreamHeaders", func() {
	var (
		app *fiber.App
		hh  *Handler
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
	})

	AfterEach(func() {
		app.Shutdown()
	})

	It("marks the response as an uncached event stream", func() {
		app.Get("/test", func(c *fiber.Ctx) error {
			hh.SetStreamHeaders(c)
			return c.SendString("data: oi\n\n")
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
		Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
	})
})

var _ = Describe("SetUpstreamRequestHeaders", func() {
	It("posts json and accepts an event stream", func() {
		req, _ := http.NewRequest(http.MethodPost, "http://upstream/api", nil)
		NewHandler().SetUpstreamRequestHeaders(req)

		Expect(req.Header.Get("Content-Type")).To(Equal("application/json"))
		Expect(req.Header.Get("Accept")).To(Equal("text/event-stream"))
	})

	It("overrides values already present", func() {
		req, _ := http.NewRequest(http.MethodPost, "http://upstream/api", nil)
		req.Header.Set("Accept", "*/*")
		NewHandler().SetUpstreamRequestHeaders(req)

		Expect(req.Header.Values("Accept")).To(Equal([]string{"text/event-stream"}))
	})
})

var _ = Describe("ClientID", func() {
	var (
		app *fiber.App
		hh  *Handler
		got string
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
		app.Post("/test", func(c *fiber.Ctx) error {
			got = hh.ClientID(c)
			return c.SendStatus(fiber.StatusOK)
		})
	})

	AfterEach(func() {
		app.Shutdown()
	})

	send := func(id string) {
		req := httptest.NewRequest(http.MethodPost, "/test", nil)
		if id != "" {
			req.Header.Set(ClientIDHeader, id)
		}
		resp, err := app.Test(req)
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()
	}

	It("returns the trimmed header value", func() {
		send("  4d6a1c7e-2f0b-4c55-9a57-0f1d2b3c4d5e ")
		Expect(got).To(Equal("4d6a1c7e-2f0b-4c55-9a57-0f1d2b3c4d5e"))
	})

	It("returns empty when the header is missing", func() {
		send("")
		Expect(got).To(BeEmpty())
	})

	It("ignores values too long to be an id", func() {
		send(strings.Repeat("a", maxClientIDLen+1))
		Expect(got).To(BeEmpty())
	})
})
