package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"resource-broker-go/internal/bootstrap"
	"resource-broker-go/internal/broker"
	"resource-broker-go/internal/config"
	"resource-broker-go/internal/handler"
	"resource-broker-go/internal/metrics"
	"resource-broker-go/internal/middleware"
	"resource-broker-go/internal/model"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	var cli config.CLI
	kctx := kong.Parse(&cli,
		kong.Name("resource-broker"),
		kong.Description("Scheme-routed access to files, HTTP, mail, NATS and in-memory resources."),
		kong.Vars{"version": fmt.Sprintf("%s (%s, %s)", version, commit, date)},
	)

	switch kctx.Command() {
	case "fetch <name>":
		if err := runFetch(&cli); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	default:
		runServe(&cli)
	}
}

func runServe(cli *config.CLI) {
	fx.New(
		fx.Provide(
			func() *config.CLI { return cli },
			func() handler.Version { return handler.Version(version) },
			config.Load,
			newLogger,
			metrics.New,
			newNATS,
			newBroker,
			func(b *broker.Broker) handler.Dispatcher { return b },
			func(b *broker.Broker) handler.Inventory { return b },
			newEcho,
			handler.NewResourceHandler,
			handler.NewHealthHandler,
		),
		fx.Invoke(handler.RegisterRoutes, registerMetrics, warnConfigPermissions, startServer),
	).Run()
}

func newLogger(cfg *config.Config) *slog.Logger {
	return newLoggerTo(cfg, os.Stdout)
}

func newLoggerTo(cfg *config.Config, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "text":
		h = slog.NewTextHandler(w, opts)
	default:
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h)
}

// newNATS connects when the nats controller is enabled and drains the
// connection on shutdown.
func newNATS(lc fx.Lifecycle, cfg *config.Config, logger *slog.Logger) (*nats.Conn, error) {
	nc, err := bootstrap.ConnectNATS(cfg.NATS, logger)
	if err != nil || nc == nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			logger.Info("draining nats connection")
			return nc.Drain()
		},
	})
	return nc, nil
}

func newBroker(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics, nc *nats.Conn) (*broker.Broker, error) {
	return bootstrap.NewBroker(cfg, logger, m, bootstrap.Deps{NATS: nc})
}

func newEcho(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Inbound timeouts to mitigate slow-client attacks.
	e.Server.ReadTimeout = 30 * time.Second
	// WriteTimeout stays disabled so long streamed bodies are not cut off;
	// backend timeouts bound dispatch time instead.
	e.Server.WriteTimeout = 0
	e.Server.IdleTimeout = 120 * time.Second
	e.Server.ReadHeaderTimeout = 10 * time.Second

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(logger))
	if cfg.Metrics.Enabled {
		e.Use(middleware.MetricsMiddleware(m, cfg.Metrics.Path))
	}
	e.Use(echomw.BodyLimit(fmt.Sprintf("%dB", cfg.Server.BodyMaxBytes)))
	e.Use(middleware.SecurityHeaders())

	if cfg.Server.RateLimit.Enabled {
		e.Use(middleware.RateLimiter(cfg.Server.RateLimit))
		logger.Info("rate limiter enabled", "rps", cfg.Server.RateLimit.RequestsPerSecond)
	}

	return e
}

func registerMetrics(e *echo.Echo, cfg *config.Config, m *metrics.Metrics) {
	if !cfg.Metrics.Enabled {
		return
	}
	e.GET(cfg.Metrics.Path, echo.WrapHandler(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))
}

func warnConfigPermissions(cfg *config.Config, logger *slog.Logger) {
	cfg.WarnPermissions(logger)
}

func startServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			addr := cfg.Server.Addr()
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("bind %s: %w", addr, err)
			}
			logger.Info("starting server", "addr", addr)
			go func() {
				if err := e.Server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("shutting down server")
			return e.Shutdown(ctx)
		},
	})
}

// runFetch dispatches one request and writes the body to stdout. Logs go to
// stderr so the output can be piped.
func runFetch(cli *config.CLI) error {
	cfg, err := config.Load(cli)
	if err != nil {
		return err
	}
	logger := newLoggerTo(cfg, os.Stderr)

	nc, err := bootstrap.ConnectNATS(cfg.NATS, logger)
	if err != nil {
		return err
	}
	if nc != nil {
		defer nc.Close()
	}

	brk, err := bootstrap.NewBroker(cfg, logger, nil, bootstrap.Deps{NATS: nc})
	if err != nil {
		return err
	}

	req, err := fetchRequest(&cli.Fetch)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	resp, err := brk.Invoke(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Close() }()

	if !resp.Success() {
		return fmt.Errorf("%s: %d %s", req.Name, resp.Code, resp.Reason)
	}
	return writeBody(ctx, os.Stdout, resp)
}

func fetchRequest(f *config.FetchCmd) (*model.Request, error) {
	method, err := model.ParseMethod(f.Method)
	if err != nil {
		return nil, err
	}
	kind, err := model.ParseKind(f.As)
	if err != nil {
		return nil, err
	}

	var body *model.Body
	switch {
	case f.Data == "-":
		body = model.Stream(io.NopCloser(os.Stdin))
	case f.Data != "":
		body = model.Text(f.Data)
	}

	req, err := model.NewRequest(method, kind, f.Name, body)
	if err != nil {
		return nil, err
	}
	for k, v := range f.Option {
		req.Options.Set(k, v)
	}
	return req, nil
}

func writeBody(ctx context.Context, w io.Writer, resp *model.Response) error {
	if resp.Body.Empty() {
		return nil
	}
	if resp.Body.IsStream() {
		rc, err := resp.Body.Reader(ctx)
		if err != nil {
			return err
		}
		defer func() { _ = rc.Close() }()
		_, err = io.Copy(w, rc)
		return err
	}

	switch v := resp.Body.Raw().(type) {
	case []byte:
		_, err := w.Write(v)
		return err
	case string:
		_, err := io.WriteString(w, v)
		return err
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}
