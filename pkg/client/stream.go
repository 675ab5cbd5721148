package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"

	"go.uber.org/zap"
)

// EventKind tells what a stream Event reports.
type EventKind int

const (
	// EventData reports the answer after a newly accepted payload.
	EventData EventKind = iota

	// EventComplete reports the final answer. It is the last event.
	EventComplete

	// EventError reports a transport failure. It is the last event.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a notification of a Stream.
type Event struct {
	Kind EventKind

	// Answer is the full answer so far, for EventData and EventComplete.
	Answer string

	// Err is set for EventError.
	Err error
}

const readBufferSize = 32 * 1024

// Stream is one chat answer being streamed from the relay.
type Stream struct {
	events chan Event

	ctx    context.Context
	cancel context.CancelFunc

	httpClient  *http.Client
	req         *http.Request
	reassembler *Reassembler
	logger      *zap.Logger

	closeOnce sync.Once
	closed    chan struct{}
	finished  chan struct{}
}

func newStream(parent context.Context, hc *http.Client, req *http.Request, r *Reassembler, logger *zap.Logger) *Stream {
	ctx, cancel := context.WithCancel(parent)
	return &Stream{
		events:      make(chan Event),
		ctx:         ctx,
		cancel:      cancel,
		httpClient:  hc,
		req:         req.WithContext(ctx),
		reassembler: r,
		logger:      logger,
		closed:      make(chan struct{}),
		finished:    make(chan struct{}),
	}
}

// Events returns the channel of stream events. It is closed after the last
// event, or once the stream is closed.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Close cancels the stream. No event is delivered once Close returns.
// Calling it again, or after the stream finished, is a no-op.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
	})
	<-s.finished
}

// Answer waits for the stream to finish and returns the answer it
// accumulated, which is partial when the stream was closed or failed.
// Events are delivered unbuffered: drain Events, or call Close, before
// calling Answer, otherwise it blocks forever.
func (s *Stream) Answer() string {
	<-s.finished
	return s.reassembler.Answer()
}

func (s *Stream) run() {
	defer close(s.finished)
	defer close(s.events)
	defer s.cancel()

	resp, err := s.httpClient.Do(s.req)
	if err != nil {
		s.fail(err)
		return
	}

	body, err := readResponse(resp)
	if err != nil {
		s.fail(err)
		return
	}
	defer body.Close()

	buf := make([]byte, readBufferSize)
	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, answer := range s.reassembler.Feed(buf[:n]) {
				if !s.emit(Event{Kind: EventData, Answer: answer}) {
					return
				}
			}
		}

		if s.reassembler.Done() {
			s.logger.Debug("end of answer marked by the relay")
			break
		}
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			s.fail(readErr)
			return
		}
	}

	answer := s.reassembler.Finish()
	s.logger.Debug("stream complete", zap.Int("answer_len", len(answer)))
	s.emit(Event{Kind: EventComplete, Answer: answer})
}

// emit delivers ev unless the stream was closed. It reports whether the
// stream is still open.
func (s *Stream) emit(ev Event) bool {
	select {
	case <-s.closed:
		return false
	default:
	}

	select {
	case s.events <- ev:
		return true
	case <-s.closed:
		return false
	}
}

// fail reports err unless the stream was cancelled on purpose.
func (s *Stream) fail(err error) {
	if errors.Is(s.ctx.Err(), context.Canceled) {
		s.logger.Debug("stream cancelled", zap.Error(err))
		return
	}

	s.logger.Debug("stream failed", zap.Error(err))
	s.emit(Event{Kind: EventError, Err: err})
}
