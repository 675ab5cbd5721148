package relay

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/l-messias/ragrelay/pkg/llm"
	"github.com/l-messias/ragrelay/pkg/metrics"
	"github.com/l-messias/ragrelay/pkg/sse"
	"github.com/l-messias/ragrelay/pkg/storage"
	"github.com/l-messias/ragrelay/relay/upstream"
	"github.com/l-messias/ragrelay/relay/worker"
)

// readBufferSize is the size of a single upstream read.
const readBufferSize = 32 * 1024

// connectDiagnostic is sent to the client when the upstream cannot be reached.
const connectDiagnostic = "could not connect to the RAG service"

// handleChat validates the chat request and answers it with the reframed
// upstream stream.
func (r *Relay) handleChat(c *fiber.Ctx) error {
	startTime := time.Now()

	var req llm.ChatRequest
	if body := c.Body(); len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			r.logger.Debug("invalid chat request body", zap.Error(err))
			return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: "invalid request body"})
		}
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(llm.ErrorResponse{Error: err.Error()})
	}

	turns := llm.NormalizeMessages(req.Messages)
	rec := &storage.Transcript{
		ID:        uuid.NewString(),
		ClientID:  r.headerHandler.ClientID(c),
		Query:     req.Query,
		Turns:     turns,
		StartedAt: startTime,
	}

	if rec.ClientID != "" {
		known, err := r.sessions.Exists(c.UserContext(), rec.ClientID)
		if err != nil {
			r.logger.Warn("could not look up client session", zap.String("client_id", rec.ClientID), zap.Error(err))
		} else if !known {
			r.logger.Debug("chat request from unknown client session", zap.String("client_id", rec.ClientID))
		}
	}

	r.logger.Debug("relaying chat request",
		zap.String("transcript_id", rec.ID),
		zap.String("client_id", rec.ClientID),
		zap.Int("message_count", len(req.Messages)),
		zap.Int("turn_count", len(turns)),
	)

	r.headerHandler.SetStreamHeaders(c)

	// fasthttp recycles its RequestCtx once the handler returns, while the
	// stream keeps running on its own goroutine.
	ctx, cancel := context.WithCancel(context.Background())

	// io.Pipe blocks each write until fasthttp's chunked body writer has read
	// it, which flushes every frame to the socket as it is produced.
	pr, pw := io.Pipe()
	go r.relayStream(ctx, cancel, pw, r.upstream.NewPayload(req.Query, turns), rec)

	// Unknown size (-1) triggers chunked transfer encoding.
	c.Context().Response.SetBodyStream(pr, -1)

	return nil
}

// relayStream pumps the upstream answer through a Reframer into the pipe.
// It always ends with the pipe closed and the transcript enqueued.
func (r *Relay) relayStream(ctx context.Context, cancel context.CancelFunc, pw *io.PipeWriter, payload *upstream.Payload, rec *storage.Transcript) {
	defer cancel()
	defer pw.Close()

	metrics.StreamStarted()
	d := &downstream{pw: pw, logger: r.logger, rec: rec, transcriber: newTranscriber()}
	defer r.finishStream(d)

	body, err := r.upstream.Open(ctx, payload)
	if err != nil {
		r.logger.Error("upstream request failed",
			zap.String("transcript_id", rec.ID),
			zap.Error(err),
		)
		metrics.UpstreamFailure(failureReason(err))
		d.fail(diagnostic(err))
		return
	}
	defer body.Close()

	reframer := NewReframer(r.config.ForwardPartial)
	buf := make([]byte, readBufferSize)

	for {
		n, readErr := body.Read(buf)
		if n > 0 {
			for _, frame := range reframer.Feed(buf[:n]) {
				if err := d.write(frame); err != nil {
					r.logger.Debug("client went away",
						zap.String("transcript_id", rec.ID),
						zap.Error(err),
					)
					rec.Outcome = storage.OutcomeClientGone
					rec.Error = err.Error()
					return
				}
			}
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			r.logger.Error("error reading upstream stream",
				zap.String("transcript_id", rec.ID),
				zap.Error(readErr),
			)
			metrics.UpstreamFailure(metrics.UpstreamRead)
			d.fail("upstream stream interrupted")
			return
		}
	}

	if rest := reframer.Pending(); strings.TrimSpace(rest) != "" {
		r.logger.Debug("dropping unterminated block at end of stream",
			zap.String("transcript_id", rec.ID),
			zap.String("pending", rest),
		)
	}
	rec.Outcome = storage.OutcomeCompleted
}

// finishStream completes the transcript and hands it to the worker pool.
func (r *Relay) finishStream(d *downstream) {
	rec := d.rec
	rec.Answer = d.transcriber.answer()
	rec.Duration = time.Since(rec.StartedAt)

	metrics.ObserveStream(string(rec.Outcome), rec.Duration)

	r.logger.Debug("stream finished",
		zap.String("transcript_id", rec.ID),
		zap.String("outcome", string(rec.Outcome)),
		zap.Int("frames", rec.Frames),
		zap.Duration("duration", rec.Duration),
	)

	if !r.workerPool.Enqueue(worker.Job{Transcript: rec}) {
		r.logger.Warn("transcript dropped", zap.String("transcript_id", rec.ID))
	}
}

// downstream writes frames of one stream to the client.
type downstream struct {
	pw          *io.PipeWriter
	logger      *zap.Logger
	rec         *storage.Transcript
	transcriber *transcriber

	// open is set while the last frame written was a partial block head.
	open bool
}

func (d *downstream) write(frame Frame) error {
	if _, err := io.WriteString(d.pw, frame.Text); err != nil {
		return err
	}

	kind := metrics.FrameBlock
	if frame.Partial {
		kind = metrics.FramePartial
	}
	d.open = frame.Partial
	d.rec.Frames++
	d.transcriber.observe(frame.Text)
	metrics.FrameForwarded(kind)

	d.logger.Debug("forwarded frame",
		zap.String("transcript_id", d.rec.ID),
		zap.String("kind", kind),
		zap.String("frame", frame.Text),
	)

	return nil
}

// fail sends the single diagnostic frame of a failed stream.
func (d *downstream) fail(msg string) {
	d.rec.Outcome = storage.OutcomeUpstreamError
	d.rec.Error = msg

	frame := errorFrame(msg)
	if d.open {
		frame = sse.Delimiter + frame
	}
	if _, err := io.WriteString(d.pw, frame); err != nil {
		d.logger.Debug("could not send error frame", zap.String("transcript_id", d.rec.ID), zap.Error(err))
		return
	}
	metrics.FrameForwarded(metrics.FrameError)
}

// errorFrame encodes msg as a "data:" frame with a JSON error payload.
func errorFrame(msg string) string {
	payload, _ := json.Marshal(llm.ErrorResponse{Error: msg})
	return "data: " + string(payload) + sse.Delimiter
}

// diagnostic returns the client-facing message for an upstream failure.
func diagnostic(err error) string {
	if errors.Is(err, upstream.ErrUnexpectedStatus) || errors.Is(err, upstream.ErrNoBody) {
		return err.Error()
	}
	return connectDiagnostic
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, upstream.ErrUnexpectedStatus):
		return metrics.UpstreamStatus
	case errors.Is(err, upstream.ErrNoBody):
		return metrics.UpstreamBody
	default:
		return metrics.UpstreamConnect
	}
}
