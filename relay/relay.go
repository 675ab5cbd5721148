// Package relay provides the ragrelay HTTP server. It streams answers from a
// RAG function to chat clients, re-framing the upstream event stream so every
// block reaches the client whole, and records a transcript of each stream.
package relay

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/l-messias/ragrelay/pkg/llm"
	"github.com/l-messias/ragrelay/pkg/metrics"
	"github.com/l-messias/ragrelay/pkg/storage"
	"github.com/l-messias/ragrelay/relay/header"
	"github.com/l-messias/ragrelay/relay/session"
	"github.com/l-messias/ragrelay/relay/upstream"
	"github.com/l-messias/ragrelay/relay/worker"
)

// Relay is the chat relay server. It answers POST /chat with the reframed
// upstream stream and enqueues the transcript of every stream for async
// storage via its worker pool.
type Relay struct {
	config        Config
	driver        storage.Driver
	workerPool    *worker.Pool
	upstream      *upstream.Client
	sessions      session.Store
	logger        *zap.Logger
	server        *fiber.App
	headerHandler *header.Handler
	closeOnce     sync.Once
	closeErr      error
}

// New creates a new Relay.
// The driver is injected to handle async persistence of transcripts.
func New(config Config, driver storage.Driver, logger *zap.Logger) (*Relay, error) {
	if err := validateOrigins(config.AllowedOrigins); err != nil {
		return nil, err
	}

	up, err := upstream.New(config.Upstream, logger)
	if err != nil {
		return nil, fmt.Errorf("could not create upstream client: %w", err)
	}

	sessions := config.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore(session.DefaultTTL)
	}

	wp, err := worker.NewPool(&worker.Config{
		Driver:    driver,
		Publisher: config.Publisher,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create worker pool: %w", err)
	}

	app := fiber.New(fiber.Config{
		// Disable startup message for cleaner logs
		DisableStartupMessage: true,
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(config.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Content-Type," + header.ClientIDHeader,
		AllowCredentials: false,
	}))

	r := &Relay{
		config:        config,
		driver:        driver,
		workerPool:    wp,
		upstream:      up,
		sessions:      sessions,
		logger:        logger,
		server:        app,
		headerHandler: header.NewHandler(),
	}

	app.Post("/chat", r.handleChat)
	app.Get("/api/new-session", r.handleNewSession)
	app.Get("/healthz", r.handleHealth)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	return r, nil
}

// Run starts the relay server on the given listening address
func (r *Relay) Run() error {
	r.logger.Info("starting relay server",
		zap.String("listen", r.config.ListenAddr),
		zap.String("upstream", r.config.Upstream.URL),
		zap.Bool("forward_partial", r.config.ForwardPartial),
	)

	return r.server.Listen(r.config.ListenAddr)
}

// RunWithListener starts the relay server using the provided listener.
func (r *Relay) RunWithListener(listener net.Listener) error {
	r.logger.Info("starting relay server",
		zap.String("listen", listener.Addr().String()),
		zap.String("upstream", r.config.Upstream.URL),
		zap.Bool("forward_partial", r.config.ForwardPartial),
	)

	return r.server.Listener(listener)
}

// Close gracefully shuts down the relay and waits for the worker pool to drain.
// Streams still running when it is called finish before the pool closes.
func (r *Relay) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.server.Shutdown()
		r.workerPool.Close()
	})
	return r.closeErr
}

// handleNewSession issues a client session id.
func (r *Relay) handleNewSession(c *fiber.Ctx) error {
	id, err := r.sessions.Create(c.UserContext())
	if err != nil {
		r.logger.Error("failed to create session", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "could not create session"})
	}

	metrics.SessionIssued()
	r.logger.Debug("issued client session", zap.String("client_id", id))

	return c.JSON(llm.SessionResponse{ClientID: id})
}

func (r *Relay) handleHealth(c *fiber.Ctx) error {
	return c.JSON(llm.HealthResponse{Status: "ok"})
}

// validateOrigins rejects origins the CORS middleware cannot match against.
func validateOrigins(origins []string) error {
	for _, origin := range origins {
		if origin == "*" {
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" || (u.Path != "" && u.Path != "/") {
			return errors.New("invalid allowed origin: " + origin)
		}
	}
	return nil
}
