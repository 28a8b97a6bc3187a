package client

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rmax-ai/scorelink/pkg/protocol"
)

const (
	DefaultServiceURL  = "tcp://127.0.0.1:10234"
	DefaultRecvTimeout = 10000 * time.Millisecond
	DefaultSyncTimeout = 60 * time.Second
)

// Environment keys read by LoadConfig. RUST_SERVICE_URL is honored for
// deployments configured for the original connector.
const (
	EnvServiceURL       = "SCORELINK_SERVICE_URL"
	EnvLegacyServiceURL = "RUST_SERVICE_URL"
	EnvRecvTimeoutMS    = "SCORELINK_RECV_TIMEOUT_MS"
	EnvDialect          = "SCORELINK_DIALECT"
)

// Config is read once at startup and copied into the Client.
type Config struct {
	// ServiceURL is the engine endpoint, e.g. "tcp://127.0.0.1:10234".
	ServiceURL string `validate:"required,uri"`
	// RecvTimeout bounds the wait for a reply. Zero waits indefinitely.
	RecvTimeout time.Duration `validate:"gte=0"`
	// Dialect selects the wire layout. Default: fixed.
	Dialect protocol.Dialect `validate:"omitempty,oneof=fixed legacy"`
}

// fileConfig is the YAML shape; the timeout is stated in milliseconds.
type fileConfig struct {
	ServiceURL    string `yaml:"service_url"`
	RecvTimeoutMS *int64 `yaml:"recv_timeout_ms"`
	Dialect       string `yaml:"dialect"`
}

var validate = validator.New()

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	return Config{
		ServiceURL:  DefaultServiceURL,
		RecvTimeout: DefaultRecvTimeout,
		Dialect:     protocol.DialectFixed,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LoadConfig builds a Config from the defaults overlaid with environment
// values. getenv is usually os.Getenv.
func LoadConfig(getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()
	cfg.ServiceURL = envOrDefaultWithFallback(getenv, []string{EnvServiceURL, EnvLegacyServiceURL}, cfg.ServiceURL)

	if raw := strings.TrimSpace(getenv(EnvRecvTimeoutMS)); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvRecvTimeoutMS, err)
		}
		cfg.RecvTimeout = time.Duration(ms) * time.Millisecond
	}

	if raw := getenv(EnvDialect); raw != "" {
		d, err := protocol.ParseDialect(strings.ToLower(strings.TrimSpace(raw)))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", EnvDialect, err)
		}
		cfg.Dialect = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadConfigFile overlays the YAML file at path onto base.
func LoadConfigFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg := base
	if fc.ServiceURL != "" {
		cfg.ServiceURL = strings.TrimSpace(fc.ServiceURL)
	}
	if fc.RecvTimeoutMS != nil {
		cfg.RecvTimeout = time.Duration(*fc.RecvTimeoutMS) * time.Millisecond
	}
	if fc.Dialect != "" {
		d, err := protocol.ParseDialect(fc.Dialect)
		if err != nil {
			return Config{}, fmt.Errorf("config file %s: %w", path, err)
		}
		cfg.Dialect = d
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func envOrDefaultWithFallback(getenv func(string) string, keys []string, fallback string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(getenv(key)); value != "" {
			return value
		}
	}
	return fallback
}
