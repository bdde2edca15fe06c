// Package config handles TOML configuration loading and validation.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/resource-broker/config.toml",
	"configs/config.toml",
}

// reservedRoutes are gateway routes the metrics endpoint must not shadow.
var reservedRoutes = []string{"/resource", "/healthz", "/status"}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config   string `kong:"short='c',help='Path to TOML config file.',env='BROKER_CONFIG'"`
	Host     string `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port     int    `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	LogLevel string `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`

	Serve ServeCmd `kong:"cmd,default='1',help='Run the HTTP gateway.'"`
	Fetch FetchCmd `kong:"cmd,help='Dispatch a single request and write the body to stdout.'"`
}

// ServeCmd runs the gateway until interrupted.
type ServeCmd struct{}

// FetchCmd dispatches one request.
type FetchCmd struct {
	Name   string            `kong:"arg,help='Resource name (scheme:path).'"`
	Method string            `kong:"short='X',default='get',enum='get,post,put,delete',help='Request method.'"`
	As     string            `kong:"default='text',enum='raw,text,binary,stream,json',help='Expected body kind.'"`
	Data   string            `kong:"short='d',help='Request body for post/put.'"`
	Option map[string]string `kong:"short='o',help='Request option key=value (repeatable).'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`
	Metrics MetricsConfig `toml:"metrics"`
	Broker  BrokerConfig  `toml:"broker"`

	Memory MemoryConfig `toml:"memory"`
	File   FileConfig   `toml:"file"`
	HTTP   HTTPConfig   `toml:"http"`
	Store  StoreConfig  `toml:"config_store"`
	Mail   MailConfig   `toml:"mail"`
	NATS   NATSConfig   `toml:"nats"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP gateway settings.
type ServerConfig struct {
	Host         string          `toml:"host"`
	Port         int             `toml:"port"` // 0 means "use default" (8000); TOML cannot distinguish 0 from unset
	BodyMaxBytes int64           `toml:"body_max_bytes"`
	RateLimit    RateLimitConfig `toml:"rate_limit"`
}

// RateLimitConfig controls per-IP gateway request rate limiting.
type RateLimitConfig struct {
	Enabled           bool    `toml:"enabled"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// BrokerConfig selects the stages run before dispatch.
type BrokerConfig struct {
	// DisableEnvExpansion turns off %VAR% substitution in resource paths.
	DisableEnvExpansion bool `toml:"disable_env_expansion"`
	// EnvAllow lists the variables %VAR% may resolve. Empty resolves none;
	// "*" resolves every variable of the process environment.
	EnvAllow []string `toml:"env_allow"`
	// LogRequests adds a debug log stage at the head of the chain.
	LogRequests bool `toml:"log_requests"`
	// Mounts rewrites name prefixes, e.g. "docs:" = "file:/srv/docs/".
	Mounts map[string]string `toml:"mounts"`
	// RateLimits caps dispatches per second per scheme.
	RateLimits map[string]float64 `toml:"rate_limits"`
	RateBurst  int                `toml:"rate_burst"`
}

// MemoryConfig enables the in-memory controller.
type MemoryConfig struct {
	Enabled bool              `toml:"enabled"`
	Schemes []string          `toml:"schemes"`
	Seed    map[string]string `toml:"seed"`
}

// FileConfig enables the local filesystem controller.
type FileConfig struct {
	Enabled bool     `toml:"enabled"`
	Schemes []string `toml:"schemes"`
	// Root confines paths to a directory when set.
	Root string `toml:"root"`
}

// HTTPConfig enables the HTTP(S) controller.
type HTTPConfig struct {
	Enabled         bool     `toml:"enabled"`
	Schemes         []string `toml:"schemes"`
	TimeoutSeconds  int      `toml:"timeout_seconds"`
	IdleConnections int      `toml:"idle_connections"`
	UserAgent       string   `toml:"user_agent"`
}

// StoreConfig enables the TOML configuration-store controller.
type StoreConfig struct {
	Enabled bool     `toml:"enabled"`
	Schemes []string `toml:"schemes"`
	// Dir resolves relative document paths.
	Dir string `toml:"dir"`
}

// MailConfig enables the SMTP controller.
type MailConfig struct {
	Enabled  bool     `toml:"enabled"`
	Schemes  []string `toml:"schemes"`
	Host     string   `toml:"host"`
	Port     int      `toml:"port"`
	Username string   `toml:"username"`
	Password string   `toml:"password"`
	From     string   `toml:"from"`
	TLS      bool     `toml:"tls"`
}

// NATSConfig enables the NATS controller.
type NATSConfig struct {
	Enabled               bool     `toml:"enabled"`
	Schemes               []string `toml:"schemes"`
	URL                   string   `toml:"url"`
	Name                  string   `toml:"name"`
	RequestTimeoutSeconds int      `toml:"request_timeout_seconds"`
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or BROKER_CONFIG), it searches
// /etc/resource-broker/config.toml then configs/config.toml.
func Load(cli *CLI) (*Config, error) {
	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil, fmt.Errorf("config: no config file found (searched %v)", configSearchPaths)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.filePath = path
	cfg.applyCLI(cli)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) validate() error {
	if !c.Memory.Enabled && !c.File.Enabled && !c.HTTP.Enabled && !c.Store.Enabled && !c.Mail.Enabled && !c.NATS.Enabled {
		return fmt.Errorf("no controller enabled; enable at least one of memory, file, http, config_store, mail, nats")
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Server.RateLimit.Enabled && c.Server.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("server.rate_limit.requests_per_second must be > 0 when rate limiting is enabled; got %v", c.Server.RateLimit.RequestsPerSecond)
	}
	if c.HTTP.TimeoutSeconds < 0 {
		return fmt.Errorf("http.timeout_seconds must be non-negative; got %d", c.HTTP.TimeoutSeconds)
	}
	if c.HTTP.IdleConnections < 0 {
		return fmt.Errorf("http.idle_connections must be non-negative; got %d", c.HTTP.IdleConnections)
	}
	if c.NATS.RequestTimeoutSeconds < 0 {
		return fmt.Errorf("nats.request_timeout_seconds must be non-negative; got %d", c.NATS.RequestTimeoutSeconds)
	}
	if c.Mail.Port < 0 || c.Mail.Port > 65535 {
		return fmt.Errorf("mail.port must be 0–65535; got %d", c.Mail.Port)
	}

	// Broker stages.
	for scheme, rps := range c.Broker.RateLimits {
		if rps <= 0 {
			return fmt.Errorf("broker.rate_limits.%s must be > 0; got %v", scheme, rps)
		}
	}
	if c.Broker.RateBurst < 0 {
		return fmt.Errorf("broker.rate_burst must be non-negative; got %d", c.Broker.RateBurst)
	}
	for from, to := range c.Broker.Mounts {
		if !strings.Contains(from, ":") || !strings.Contains(to, ":") {
			return fmt.Errorf("broker.mounts entry %q = %q must map scheme: prefixes", from, to)
		}
	}

	// Controllers.
	if c.Mail.Enabled && c.Mail.Host == "" {
		return fmt.Errorf("mail.host is required when mail is enabled")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		return fmt.Errorf("nats.url is required when nats is enabled")
	}
	if c.File.Enabled && c.File.Root != "" {
		info, err := os.Stat(c.File.Root)
		if err != nil {
			return fmt.Errorf("file.root: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("file.root %q is not a directory", c.File.Root)
		}
	}

	// Log fields.
	level := strings.ToLower(c.Log.Level)
	switch level {
	case "debug", "info", "warn", "error", "":
		// valid
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	format := strings.ToLower(c.Log.Format)
	switch format {
	case "json", "text", "":
		// valid
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	// Metrics path validation (only when metrics are enabled).
	if c.Metrics.Enabled && c.Metrics.Path != "" {
		p := c.Metrics.Path
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range reservedRoutes {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
	}

	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields (Port, BodyMaxBytes, etc.), zero means "unset" because TOML
// cannot distinguish between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Broker.RateBurst == 0 {
		c.Broker.RateBurst = 1
	}

	if len(c.Memory.Schemes) == 0 {
		c.Memory.Schemes = []string{"mem"}
	}
	if len(c.File.Schemes) == 0 {
		c.File.Schemes = []string{"file"}
	}
	if len(c.HTTP.Schemes) == 0 {
		c.HTTP.Schemes = []string{"http", "https"}
	}
	if c.HTTP.TimeoutSeconds == 0 {
		c.HTTP.TimeoutSeconds = 120
	}
	if c.HTTP.IdleConnections == 0 {
		c.HTTP.IdleConnections = 100
	}
	if c.HTTP.UserAgent == "" {
		c.HTTP.UserAgent = "resource-broker-go/1.0"
	}
	if len(c.Store.Schemes) == 0 {
		c.Store.Schemes = []string{"config"}
	}
	if len(c.Mail.Schemes) == 0 {
		c.Mail.Schemes = []string{"mail", "mailto"}
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 25
	}
	if len(c.NATS.Schemes) == 0 {
		c.NATS.Schemes = []string{"nats"}
	}
	if c.NATS.Name == "" {
		c.NATS.Name = "resource-broker"
	}
	if c.NATS.RequestTimeoutSeconds == 0 {
		c.NATS.RequestTimeoutSeconds = 10
	}
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Addr returns the SMTP server address as host:port.
func (c *MailConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
// The file may hold SMTP credentials.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
