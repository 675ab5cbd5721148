package sqlite_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l-messias/ragrelay/pkg/llm"
	"github.com/l-messias/ragrelay/pkg/storage"
	"github.com/l-messias/ragrelay/pkg/storage/sqlite"
)

func testTranscript(id, clientID string, startedAt time.Time) *storage.Transcript {
	return &storage.Transcript{
		ID:       id,
		ClientID: clientID,
		Query:    "oi",
		Turns: []llm.Turn{
			{Role: "user", Content: "antes"},
			{Role: "assistant", Content: "resposta"},
		},
		Answer:    "Olá! Como\nposso ajudar?",
		Frames:    3,
		Outcome:   storage.OutcomeCompleted,
		StartedAt: startedAt,
		Duration:  1500 * time.Millisecond,
	}
}

var _ = Describe("Driver", func() {
	var (
		driver *sqlite.Driver
		ctx    context.Context
		now    time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2026, 3, 1, 12, 0, 0, 100_000_000, time.UTC)

		var err error
		driver, err = sqlite.NewDriver(":memory:")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("NewDriver", func() {
		It("creates a driver with file database", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			d, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("keeps data across reopen", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "test.db")

			d, err := sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Put(ctx, testTranscript("t-1", "c-1", now))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Close()).To(Succeed())

			d, err = sqlite.NewDriver(dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			t, err := d.Get(ctx, "t-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(t.Query).To(Equal("oi"))
		})
	})

	Describe("Put and Get", func() {
		It("stores and retrieves a transcript", func() {
			in := testTranscript("t-1", "c-1", now)

			inserted, err := driver.Put(ctx, in)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeTrue())

			out, err := driver.Get(ctx, "t-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ClientID).To(Equal("c-1"))
			Expect(out.Turns).To(Equal(in.Turns))
			Expect(out.Answer).To(Equal(in.Answer))
			Expect(out.Frames).To(Equal(3))
			Expect(out.Outcome).To(Equal(storage.OutcomeCompleted))
			Expect(out.StartedAt).To(BeTemporally("==", now))
			Expect(out.Duration).To(Equal(in.Duration))
		})

		It("keeps the first transcript for a duplicate ID", func() {
			_, err := driver.Put(ctx, testTranscript("t-1", "c-1", now))
			Expect(err).NotTo(HaveOccurred())

			dup := testTranscript("t-1", "c-2", now)
			inserted, err := driver.Put(ctx, dup)
			Expect(err).NotTo(HaveOccurred())
			Expect(inserted).To(BeFalse())

			out, err := driver.Get(ctx, "t-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ClientID).To(Equal("c-1"))
		})

		It("stores transcripts without turns", func() {
			in := testTranscript("t-1", "", now)
			in.Turns = nil
			in.Outcome = storage.OutcomeUpstreamError
			in.Error = "upstream returned 502"

			_, err := driver.Put(ctx, in)
			Expect(err).NotTo(HaveOccurred())

			out, err := driver.Get(ctx, "t-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Turns).To(BeEmpty())
			Expect(out.Error).To(Equal("upstream returned 502"))
		})

		It("returns NotFoundError for a missing transcript", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
		})

		It("rejects a nil transcript", func() {
			_, err := driver.Put(ctx, nil)
			Expect(err).To(MatchError(storage.ErrNilTranscript))
		})
	})

	Describe("List", func() {
		It("returns transcripts oldest first", func() {
			for i, id := range []string{"late", "early", "middle"} {
				offsets := []time.Duration{2 * time.Second, 0, 1020 * time.Millisecond}
				_, err := driver.Put(ctx, testTranscript(id, "c-1", now.Add(offsets[i])))
				Expect(err).NotTo(HaveOccurred())
			}

			all, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].ID).To(Equal("early"))
			Expect(all[1].ID).To(Equal("middle"))
			Expect(all[2].ID).To(Equal("late"))
		})

		It("filters by client", func() {
			_, err := driver.Put(ctx, testTranscript("t-1", "c-1", now))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.Put(ctx, testTranscript("t-2", "c-2", now.Add(time.Second)))
			Expect(err).NotTo(HaveOccurred())

			mine, err := driver.ListByClient(ctx, "c-2")
			Expect(err).NotTo(HaveOccurred())
			Expect(mine).To(HaveLen(1))
			Expect(mine[0].ID).To(Equal("t-2"))
		})

		It("returns nothing for an empty store", func() {
			all, err := driver.List(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(BeEmpty())
		})
	})
})
