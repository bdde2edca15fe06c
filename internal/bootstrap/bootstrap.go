// Package bootstrap assembles a Broker from configuration.
package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"resource-broker-go/internal/broker"
	"resource-broker-go/internal/client"
	"resource-broker-go/internal/config"
	"resource-broker-go/internal/controller"
	"resource-broker-go/internal/convert"
	"resource-broker-go/internal/metrics"
	"resource-broker-go/internal/stage"
)

// ErrNATSUnavailable is returned when NATS is enabled but no connection was supplied.
var ErrNATSUnavailable = errors.New("nats enabled but not connected")

// Deps carries connections and hooks created outside the broker.
type Deps struct {
	// NATS is required when the nats controller is enabled.
	NATS *nats.Conn
	// MailSend replaces SMTP delivery; nil uses the configured server.
	MailSend controller.SendFunc
	// Converter backs Body.As; nil uses convert.Default.
	Converter convert.Converter
	// LookupEnv resolves %VAR% tokens; nil reads the process environment.
	// Only variables in broker.env_allow are consulted.
	LookupEnv func(string) (string, bool)
}

// NewBroker registers every enabled controller and installs stages in a fixed
// order: request log, mounts, environment expansion, rate limit.
func NewBroker(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, deps Deps) (*broker.Broker, error) {
	conv := deps.Converter
	if conv == nil {
		conv = convert.Default
	}

	b := broker.NewBuilder(broker.Options{
		Converter: conv,
		Logger:    logger,
		Metrics:   m,
	})

	if cfg.Memory.Enabled {
		b.Register(controller.NewMemory(cfg.Memory.Seed), cfg.Memory.Schemes...)
	}
	if cfg.File.Enabled {
		b.Register(controller.NewFile(cfg.File.Root, logger), cfg.File.Schemes...)
	}
	if cfg.HTTP.Enabled {
		httpClient := client.NewHTTPClient(cfg.HTTP, logger, m)
		b.Register(controller.NewHTTP(httpClient, logger), cfg.HTTP.Schemes...)
	}
	if cfg.Store.Enabled {
		b.Register(controller.NewStore(cfg.Store.Dir, conv), cfg.Store.Schemes...)
	}
	if cfg.Mail.Enabled {
		b.Register(controller.NewMail(cfg.Mail, logger, deps.MailSend), cfg.Mail.Schemes...)
	}
	if cfg.NATS.Enabled {
		if deps.NATS == nil {
			return nil, fmt.Errorf("bootstrap: %w", ErrNATSUnavailable)
		}
		timeout := time.Duration(cfg.NATS.RequestTimeoutSeconds) * time.Second
		b.Register(controller.NewNATS(deps.NATS, timeout, logger), cfg.NATS.Schemes...)
	}

	if cfg.Broker.LogRequests {
		b.Use(stage.RequestLogger(logger))
	}
	if len(cfg.Broker.Mounts) > 0 {
		b.Use(stage.NewMounts(cfg.Broker.Mounts))
	}
	if !cfg.Broker.DisableEnvExpansion {
		b.Use(stage.NewEnvExpander(stage.AllowVariables(deps.LookupEnv, cfg.Broker.EnvAllow)))
	}
	if len(cfg.Broker.RateLimits) > 0 {
		b.Use(stage.NewRateLimiter(cfg.Broker.RateLimits, cfg.Broker.RateBurst))
	}

	brk, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	logger.Info("broker ready",
		"schemes", brk.Schemes(),
		"stages", brk.Stages(),
	)
	return brk, nil
}

// ConnectNATS dials the configured NATS server. It returns nil, nil when the
// nats controller is disabled.
func ConnectNATS(cfg config.NATSConfig, logger *slog.Logger) (*nats.Conn, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	logger = logger.With("component", "nats")
	nc, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}
	return nc, nil
}
