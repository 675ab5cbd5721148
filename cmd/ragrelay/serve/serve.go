// Package servecmder provides the relay server command.
package servecmder

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/l-messias/ragrelay/pkg/config"
	"github.com/l-messias/ragrelay/pkg/eventstream"
	"github.com/l-messias/ragrelay/pkg/eventstream/kafka"
	"github.com/l-messias/ragrelay/pkg/eventstream/nop"
	"github.com/l-messias/ragrelay/pkg/logger"
	"github.com/l-messias/ragrelay/pkg/storage"
	"github.com/l-messias/ragrelay/pkg/storage/inmemory"
	"github.com/l-messias/ragrelay/pkg/storage/sqlite"
	"github.com/l-messias/ragrelay/relay"
	"github.com/l-messias/ragrelay/relay/session"
	"github.com/l-messias/ragrelay/relay/upstream"
)

type serveCommander struct {
	flags serveFlags
	cfg   *config.Config
	debug bool

	logger *zap.Logger
}

// serveFlags are the flag targets. Their values reach the command through
// viper, which binds them above env, config file and defaults.
type serveFlags struct {
	listen         string
	upstream       string
	functionsKey   string
	allowedOrigins string
	forwardPartial bool
	sqlitePath     string
	sessionStore   string
	redisAddr      string
	events         string
	kafkaBrokers   string
	logFile        string
}

var serveFlagKeys = []string{
	config.FlagListen,
	config.FlagUpstream,
	config.FlagFunctionsKey,
	config.FlagAllowedOrigins,
	config.FlagForwardPartial,
	config.FlagSQLite,
	config.FlagSessionStore,
	config.FlagRedisAddr,
	config.FlagEvents,
	config.FlagKafkaBrokers,
	config.FlagLogFile,
}

const serveLongDesc string = `Run the relay server.

The relay accepts chat queries on POST /chat, posts them to the configured RAG
function and streams its answer back as Server-Sent Events. Every frame sent to
the client holds whole "data:" blocks, whatever the chunking of the upstream.

Relayed streams are recorded as transcripts (in-memory or SQLite) and can be
published as events to Kafka.

Settings come from flags, RAGRELAY_* environment variables, config.toml and
the environment names used by existing deployments (LINK_API_RAG,
X_FUNCTIONS_KEY_RAG, REDIS_HOST, ALLOWED_ORIGINS, PORT, ...).

Examples:
  ragrelay serve --upstream https://rag.example.com/api/rag
  ragrelay serve --listen :8080 --sqlite ./transcripts.db
  ragrelay serve --session-store redis --redis-addr localhost:6379`

const serveShortDesc string = "Run the relay server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlagKeys)
			cmder.cfg = loadConfig(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			return cmder.run()
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.flags.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.flags.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagFunctionsKey, &cmder.flags.functionsKey)
	config.AddStringFlag(cmd, config.Flags, config.FlagAllowedOrigins, &cmder.flags.allowedOrigins)
	config.AddBoolFlag(cmd, config.Flags, config.FlagForwardPartial, &cmder.flags.forwardPartial)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.flags.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagSessionStore, &cmder.flags.sessionStore)
	config.AddStringFlag(cmd, config.Flags, config.FlagRedisAddr, &cmder.flags.redisAddr)
	config.AddStringFlag(cmd, config.Flags, config.FlagEvents, &cmder.flags.events)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &cmder.flags.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &cmder.flags.logFile)

	return cmd
}

// loadConfig materializes the merged settings and normalizes the listen
// address: deployments set PORT to a bare port number.
func loadConfig(v *viper.Viper) *config.Config {
	cfg := config.FromViper(v)
	cfg.Relay.Listen = normalizeListen(cfg.Relay.Listen)
	return cfg
}

func normalizeListen(listen string) string {
	listen = strings.TrimSpace(listen)
	if listen != "" && !strings.Contains(listen, ":") {
		return ":" + listen
	}
	return listen
}

func (c *serveCommander) run() error {
	var err error
	c.logger, err = c.newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = c.logger.Sync() }()

	driver, err := c.newStorageDriver()
	if err != nil {
		return err
	}
	defer driver.Close()

	sessions, err := c.newSessionStore()
	if err != nil {
		return err
	}
	defer sessions.Close()

	publisher, err := c.newPublisher()
	if err != nil {
		return err
	}
	defer publisher.Close()

	r, err := relay.New(relayConfig(c.cfg, sessions, publisher), driver, c.logger)
	if err != nil {
		return fmt.Errorf("creating relay: %w", err)
	}
	defer r.Close()

	c.logger.Info("relay configured",
		zap.String("listen", c.cfg.Relay.Listen),
		zap.String("upstream", c.cfg.Upstream.URL),
		zap.Strings("allowed_origins", c.cfg.Relay.Origins()),
		zap.Bool("forward_partial", c.cfg.Relay.ForwardPartial),
	)

	return r.Run()
}

// relayConfig maps the merged settings onto the relay server configuration.
func relayConfig(cfg *config.Config, sessions session.Store, publisher eventstream.Publisher) relay.Config {
	return relay.Config{
		ListenAddr:     cfg.Relay.Listen,
		AllowedOrigins: cfg.Relay.Origins(),
		ForwardPartial: cfg.Relay.ForwardPartial,
		Upstream: upstream.Config{
			URL:          cfg.Upstream.URL,
			FunctionsKey: cfg.Upstream.FunctionsKey,
			Timeout:      cfg.Upstream.Timeout,
			RAG:          cfg.RAG,
		},
		Sessions:  sessions,
		Publisher: publisher,
	}
}

func (c *serveCommander) newLogger() (*zap.Logger, error) {
	console := logger.NewLogger(c.debug)
	if c.cfg.Relay.LogFile == "" {
		return console, nil
	}

	f, err := os.OpenFile(c.cfg.Relay.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}

	file := logger.New(
		logger.WithDebug(c.debug),
		logger.WithJSON(true),
		logger.WithWriter(f),
	)
	return logger.Multi(console, file), nil
}

func (c *serveCommander) newStorageDriver() (storage.Driver, error) {
	if path := c.cfg.Storage.SQLitePath; path != "" {
		driver, err := sqlite.NewDriver(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storer: %w", err)
		}
		c.logger.Info("using SQLite storage", zap.String("path", path))
		return driver, nil
	}

	c.logger.Info("using in-memory storage")
	return inmemory.NewDriver(), nil
}

func (c *serveCommander) newSessionStore() (session.Store, error) {
	sc := c.cfg.Session

	switch sc.Provider {
	case "", "memory":
		c.logger.Info("using in-memory session store")
		return session.NewMemoryStore(sc.TTL), nil

	case "redis":
		store, err := session.NewRedisStore(session.RedisConfig{
			Addr:     sc.RedisAddr,
			Password: sc.RedisPassword,
			TTL:      sc.TTL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating redis session store: %w", err)
		}
		c.logger.Info("using redis session store", zap.String("addr", sc.RedisAddr))
		return store, nil

	default:
		return nil, fmt.Errorf("unknown session store: %q", sc.Provider)
	}
}

func (c *serveCommander) newPublisher() (eventstream.Publisher, error) {
	ec := c.cfg.Events

	switch ec.Provider {
	case "", "nop":
		return nop.NewPublisher(), nil

	case "kafka":
		brokers := config.SplitList(ec.Brokers)
		publisher, err := kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   ec.Topic,
		})
		if err != nil {
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
		c.logger.Info("publishing transcript events to kafka",
			zap.Strings("brokers", brokers),
			zap.String("topic", ec.Topic),
		)
		return publisher, nil

	default:
		return nil, fmt.Errorf("unknown event publisher: %q", ec.Provider)
	}
}
