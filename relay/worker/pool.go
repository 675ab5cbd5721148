// Package worker provides an asynchronous worker pool that records the
// transcripts of relayed streams using the provided storage.Driver and
// publishes them through the provided eventstream.Publisher.
//
// The pool decouples storage and publishing from the relay's streaming path
// so a slow store never holds back frames bound for the client.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/l-messias/ragrelay/pkg/eventstream"
	"github.com/l-messias/ragrelay/pkg/metrics"
	"github.com/l-messias/ragrelay/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Transcript *storage.Transcript
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting transcripts.
	Driver storage.Driver

	// Publisher is the optional event publisher. Transcripts are only
	// published once they were newly stored.
	Publisher eventstream.Publisher

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// Logger is the provided zap logger
	Logger *zap.Logger
}

// Pool processes transcript jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *zap.Logger
	now    func() time.Time
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, errors.New("storage driver is required")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
		now:    time.Now,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full, resulting in the job being dropped
func (p *Pool) Enqueue(job Job) bool {
	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			zap.String("transcript_id", job.Transcript.ID),
			zap.String("client_id", job.Transcript.ClientID),
		)
		return true
	default:
		metrics.TranscriptJob(metrics.JobDropped)
		p.logger.Error("job not queued, queue full, job dropped",
			zap.String("transcript_id", job.Transcript.ID),
			zap.String("client_id", job.Transcript.ClientID),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the relay HTTP server has stopped.
func (p *Pool) Close() {
	close(p.queue)
	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", zap.Uint("worker_id", id))

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("transcript worker stopped", zap.Uint("worker_id", id))
}

// processJob stores the transcript and publishes it when it is new.
func (p *Pool) processJob(job Job) {
	ctx := context.Background()
	t := job.Transcript

	isNew, err := p.config.Driver.Put(ctx, t)
	if err != nil {
		metrics.TranscriptJob(metrics.JobFailed)
		p.logger.Error("async transcript storage failed",
			zap.String("transcript_id", t.ID),
			zap.Error(err),
		)
		return
	}

	metrics.TranscriptJob(metrics.JobPersisted)
	p.logger.Info("transcript stored",
		zap.String("transcript_id", t.ID),
		zap.String("client_id", t.ClientID),
		zap.String("outcome", string(t.Outcome)),
		zap.Int("frames", t.Frames),
		zap.Bool("is_new", isNew),
	)

	if !isNew || p.config.Publisher == nil {
		return
	}

	p.publish(ctx, t)
}

// publish emits the transcript event. Errors are logged but not returned so a
// broker outage never fails the stored transcript.
func (p *Pool) publish(ctx context.Context, t *storage.Transcript) {
	event := eventstream.NewTranscriptEvent(t, p.now())
	if err := p.config.Publisher.PublishTranscript(ctx, event); err != nil {
		p.logger.Warn("failed to publish transcript event",
			zap.String("transcript_id", t.ID),
			zap.String("event_id", event.EventID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("published transcript event",
		zap.String("transcript_id", t.ID),
		zap.String("event_id", event.EventID),
	)
}
