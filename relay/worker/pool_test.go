package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/l-messias/ragrelay/pkg/eventstream"
	"github.com/l-messias/ragrelay/pkg/llm"
	"github.com/l-messias/ragrelay/pkg/logger"
	"github.com/l-messias/ragrelay/pkg/storage"
	"github.com/l-messias/ragrelay/pkg/storage/inmemory"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.TranscriptEvent
	err    error
}

func (r *recordingPublisher) PublishTranscript(_ context.Context, event *eventstream.TranscriptEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, event)
	return nil
}

func (r *recordingPublisher) Close() error { return nil }

func (r *recordingPublisher) published() []*eventstream.TranscriptEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*eventstream.TranscriptEvent(nil), r.events...)
}

type failingDriver struct {
	*inmemory.Driver
}

func (failingDriver) Put(context.Context, *storage.Transcript) (bool, error) {
	return false, errors.New("disk full")
}

// newTestPool creates a worker pool backed by an in-memory driver.
// Callers should "wp.Close()" to drain enqueued jobs before asserting storage state.
func newTestPool(pub eventstream.Publisher) (*Pool, *inmemory.Driver) {
	driver := inmemory.NewDriver()

	wp, err := NewPool(&Config{
		Driver:    driver,
		Publisher: pub,
		Logger:    logger.Nop(),
	})
	Expect(err).NotTo(HaveOccurred())

	return wp, driver
}

func testTranscript(id string) *storage.Transcript {
	return &storage.Transcript{
		ID:        id,
		ClientID:  "client-1",
		Query:     "oi",
		Turns:     []llm.Turn{{Role: "user", Content: "bom dia"}},
		Answer:    "Olá! Como\nposso ajudar?",
		Frames:    2,
		Outcome:   storage.OutcomeCompleted,
		StartedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
	}
}

var _ = Describe("Worker Pool", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("NewPool", func() {
		It("requires a storage driver", func() {
			_, err := NewPool(&Config{Logger: logger.Nop()})
			Expect(err).To(HaveOccurred())
		})

		It("applies default sizes", func() {
			cfg := &Config{Driver: inmemory.NewDriver(), Logger: logger.Nop()}
			wp, err := NewPool(cfg)
			Expect(err).NotTo(HaveOccurred())
			defer wp.Close()

			Expect(cfg.NumWorkers).To(Equal(defaultNumWorkers))
			Expect(cfg.QueueSize).To(Equal(defaultJobQueueSize))
		})
	})

	Describe("Enqueue", func() {
		It("returns true when the queue has capacity", func() {
			wp, _ := newTestPool(nil)
			Expect(wp.Enqueue(Job{Transcript: testTranscript("t-1")})).To(BeTrue())
			wp.Close()
		})

		It("drops jobs when the queue is full", func() {
			block := make(chan struct{})
			driver := &blockingDriver{Driver: inmemory.NewDriver(), release: block}

			wp, err := NewPool(&Config{
				Driver:     driver,
				NumWorkers: 1,
				QueueSize:  1,
				Logger:     logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			Expect(wp.Enqueue(Job{Transcript: testTranscript("t-1")})).To(BeTrue())
			Eventually(driver.started).Should(BeClosed())
			Expect(wp.Enqueue(Job{Transcript: testTranscript("t-2")})).To(BeTrue())
			Expect(wp.Enqueue(Job{Transcript: testTranscript("t-3")})).To(BeFalse())

			close(block)
			wp.Close()
			Expect(driver.Count()).To(Equal(2))
		})
	})

	Describe("processing", func() {
		It("stores the transcript", func() {
			wp, driver := newTestPool(nil)
			wp.Enqueue(Job{Transcript: testTranscript("t-1")})
			wp.Close()

			got, err := driver.Get(ctx, "t-1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Answer).To(Equal("Olá! Como\nposso ajudar?"))
			Expect(got.Turns).To(HaveLen(1))
		})

		It("publishes newly stored transcripts", func() {
			pub := &recordingPublisher{}
			wp, _ := newTestPool(pub)
			wp.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC) }

			wp.Enqueue(Job{Transcript: testTranscript("t-1")})
			wp.Close()

			events := pub.published()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Transcript.ID).To(Equal("t-1"))
			Expect(events[0].Source.ClientID).To(Equal("client-1"))
			Expect(events[0].EmittedAt).To(Equal(time.Date(2026, 3, 1, 12, 0, 2, 0, time.UTC)))
		})

		It("does not publish duplicates", func() {
			pub := &recordingPublisher{}
			wp, driver := newTestPool(pub)

			_, err := driver.Put(ctx, testTranscript("t-1"))
			Expect(err).NotTo(HaveOccurred())

			wp.Enqueue(Job{Transcript: testTranscript("t-1")})
			wp.Close()

			Expect(pub.published()).To(BeEmpty())
		})

		It("keeps the transcript when publishing fails", func() {
			pub := &recordingPublisher{err: errors.New("broker down")}
			wp, driver := newTestPool(pub)

			wp.Enqueue(Job{Transcript: testTranscript("t-1")})
			wp.Close()

			Expect(driver.Count()).To(Equal(1))
		})

		It("skips publishing when storage fails", func() {
			pub := &recordingPublisher{}
			wp, err := NewPool(&Config{
				Driver:    failingDriver{Driver: inmemory.NewDriver()},
				Publisher: pub,
				Logger:    logger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			wp.Enqueue(Job{Transcript: testTranscript("t-1")})
			wp.Close()

			Expect(pub.published()).To(BeEmpty())
		})
	})
})

// blockingDriver holds the first Put until release is closed.
type blockingDriver struct {
	*inmemory.Driver
	release <-chan struct{}
	once    sync.Once
	ch      chan struct{}
	mu      sync.Mutex
}

func (b *blockingDriver) started() chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ch == nil {
		b.ch = make(chan struct{})
	}
	return b.ch
}

func (b *blockingDriver) Put(ctx context.Context, t *storage.Transcript) (bool, error) {
	b.once.Do(func() {
		close(b.started())
		<-b.release
	})
	return b.Driver.Put(ctx, t)
}
