package inmemory_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l-messias/ragrelay/pkg/storage"
	"github.com/l-messias/ragrelay/pkg/storage/inmemory"
)

var _ = Describe("Driver", func() {
	var (
		driver *inmemory.Driver
		ctx    context.Context
		now    time.Time
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		ctx = context.Background()
		now = time.Now()
	})

	It("implements storage.Driver", func() {
		var _ storage.Driver = driver
	})

	It("stores and retrieves a transcript", func() {
		inserted, err := driver.Put(ctx, &storage.Transcript{ID: "t-1", Query: "oi", Answer: "Olá!"})
		Expect(err).NotTo(HaveOccurred())
		Expect(inserted).To(BeTrue())

		t, err := driver.Get(ctx, "t-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Answer).To(Equal("Olá!"))
		Expect(driver.Count()).To(Equal(1))
	})

	It("is idempotent per ID", func() {
		_, err := driver.Put(ctx, &storage.Transcript{ID: "t-1", Answer: "first"})
		Expect(err).NotTo(HaveOccurred())

		inserted, err := driver.Put(ctx, &storage.Transcript{ID: "t-1", Answer: "second"})
		Expect(err).NotTo(HaveOccurred())
		Expect(inserted).To(BeFalse())

		t, err := driver.Get(ctx, "t-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Answer).To(Equal("first"))
	})

	It("does not share stored transcripts with callers", func() {
		in := &storage.Transcript{ID: "t-1", Answer: "original"}
		_, err := driver.Put(ctx, in)
		Expect(err).NotTo(HaveOccurred())
		in.Answer = "changed"

		out, err := driver.Get(ctx, "t-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(out.Answer).To(Equal("original"))
	})

	It("returns NotFoundError for a missing transcript", func() {
		_, err := driver.Get(ctx, "missing")
		Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
		Expect(err.Error()).To(Equal("transcript not found: missing"))
	})

	It("rejects a nil transcript", func() {
		_, err := driver.Put(ctx, nil)
		Expect(err).To(MatchError(storage.ErrNilTranscript))
	})

	It("lists oldest first and filters by client", func() {
		_, _ = driver.Put(ctx, &storage.Transcript{ID: "b", ClientID: "c-1", StartedAt: now.Add(time.Second)})
		_, _ = driver.Put(ctx, &storage.Transcript{ID: "a", ClientID: "c-2", StartedAt: now})
		_, _ = driver.Put(ctx, &storage.Transcript{ID: "c", ClientID: "c-1", StartedAt: now.Add(2 * time.Second)})

		all, err := driver.List(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect([]string{all[0].ID, all[1].ID, all[2].ID}).To(Equal([]string{"a", "b", "c"}))

		mine, err := driver.ListByClient(ctx, "c-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(mine).To(HaveLen(2))
		Expect(mine[0].ID).To(Equal("b"))
	})

	It("closes without error", func() {
		Expect(driver.Close()).To(Succeed())
	})
})
