// Package config provides configuration parsing for fdbwatch.
//
// Flags are bound on cobra's pflag sets and default from environment
// variables, so the precedence is:
//  1. Command-line flags
//  2. Environment variables
//  3. Default values
//
// Index connector settings are free-form and read from INDEX_* variables
// (INDEX_URL, INDEX_VALUES_PATH, INDEX_BINARY ...), converted to lowerCamelCase
// keys for index.New.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/HatiCode/fdbwatch/pkg/tls"
)

// Config holds all fdbwatch configuration.
type Config struct {
	LogFormat string
	LogLevel  string

	Index        string
	IndexConfig  map[string]string
	IndexTimeout time.Duration
	CatalogFile  string
	TLS          tls.Config

	// serve only
	Listen        string
	GRPCListen    string
	Interval      time.Duration
	Models        []string
	Storage       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	StaleAfter    time.Duration
	ReportTTL     time.Duration
}

// BindFlags registers the flags shared by every command on fs.
func BindFlags(fs *pflag.FlagSet) *Config {
	cfg := &Config{}

	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")

	fs.StringVar(&cfg.Index, "index", getEnv("INDEX", "fdb-list"), "Metadata index: fdb-list, http, or memory")
	fs.DurationVar(&cfg.IndexTimeout, "index-timeout", getEnvDuration("INDEX_TIMEOUT", 30*time.Second), "Timeout of one HTTP index query")
	fs.StringVar(&cfg.CatalogFile, "catalog-file", getEnv("CATALOG_FILE", ""), "YAML catalog of model profiles (built-in profiles if empty)")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable mTLS for servers and the HTTP index client")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file")

	return cfg
}

// BindServeFlags registers the monitor flags of the serve command on fs.
func (c *Config) BindServeFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	fs.StringVar(&c.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ":50051"), "gRPC health listen address (empty to disable)")
	fs.DurationVar(&c.Interval, "interval", getEnvDuration("INTERVAL", 5*time.Minute), "Check interval")
	fs.StringSliceVar(&c.Models, "models", getEnvList("MODELS"), "Models to monitor (all catalog models if empty)")
	fs.DurationVar(&c.StaleAfter, "stale-after", getEnvDuration("STALE_AFTER", 0), "Mark reports older than this as stale (2x interval if 0)")
	fs.DurationVar(&c.ReportTTL, "report-ttl", getEnvDuration("REPORT_TTL", 6*time.Hour), "Drop stored reports older than this")

	fs.StringVar(&c.Storage, "storage", getEnv("STORAGE", "memory"), "Report storage: memory or redis")
	fs.StringVar(&c.RedisAddr, "redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	fs.StringVar(&c.RedisPassword, "redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	fs.IntVar(&c.RedisDB, "redis-db", getEnvInt("REDIS_DB", 0), "Redis database number")
}

// LoadIndexConfig fills IndexConfig from INDEX_* variables in environ.
func (c *Config) LoadIndexConfig(environ []string) {
	c.IndexConfig = parseIndexConfig(environ)
}

var modelNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9._-]{0,251}[a-zA-Z0-9])?$`)

// Validate checks the shared settings.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]string{"text", "json"}, c.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid log format %q (must be text or json)", c.LogFormat))
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("invalid log level %q", c.LogLevel))
	}
	if !slices.Contains([]string{"fdb-list", "http", "memory"}, c.Index) {
		errs = append(errs, fmt.Errorf("invalid index %q (must be fdb-list, http, or memory)", c.Index))
	}
	if c.IndexTimeout <= 0 {
		errs = append(errs, errors.New("index timeout must be > 0"))
	}
	if err := c.TLS.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// ValidateServe checks the serve settings in addition to Validate.
func (c *Config) ValidateServe() error {
	var errs []error
	if err := c.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Interval <= 0 {
		errs = append(errs, errors.New("interval must be > 0"))
	}
	if c.StaleAfter < 0 {
		errs = append(errs, errors.New("stale-after cannot be negative"))
	}
	if c.ReportTTL <= 0 {
		errs = append(errs, errors.New("report-ttl must be > 0"))
	}
	switch c.Storage {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			errs = append(errs, errors.New("redis storage requires redis-addr"))
		}
		if c.RedisDB < 0 {
			errs = append(errs, errors.New("redis database number must be >= 0"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid storage %q (must be memory or redis)", c.Storage))
	}
	for _, m := range c.Models {
		if !modelNameRegex.MatchString(m) {
			errs = append(errs, fmt.Errorf("invalid model name %q", m))
		}
	}

	return errors.Join(errs...)
}

// StaleThreshold returns StaleAfter, or twice the interval when unset.
func (c *Config) StaleThreshold() time.Duration {
	if c.StaleAfter > 0 {
		return c.StaleAfter
	}
	return 2 * c.Interval
}

// parseIndexConfig parses INDEX_* variables into a configuration map, e.g.
// INDEX_VALUES_PATH=x becomes valuesPath=x. INDEX and INDEX_TIMEOUT are
// regular flags and are skipped.
func parseIndexConfig(environ []string) map[string]string {
	const prefix = "INDEX_"
	config := make(map[string]string)

	for _, env := range environ {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) || name == "INDEX_TIMEOUT" {
			continue
		}
		key := toLowerCamelCase(strings.TrimPrefix(name, prefix))
		if key != "" {
			config[key] = value
		}
	}

	return config
}

func toLowerCamelCase(s string) string {
	var b strings.Builder
	for i, part := range strings.Split(strings.ToLower(s), "_") {
		if part == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			part = strings.ToUpper(part[:1]) + part[1:]
		}
		b.WriteString(part)
	}
	return b.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
