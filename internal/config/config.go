// Package config loads the bridge configuration from YAML and derives the
// engine endpoint from the configured URL.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Shipped defaults. A missing config file starts the service with exactly
// these values.
const (
	DefaultConfigPath     = "config.yaml"
	DefaultListen         = "0.0.0.0"
	DefaultPort           = 7777
	DefaultMaxQueryLen    = 1024
	DefaultEngineType     = "manticore"
	DefaultEngineURL      = "http://127.0.0.1:29308/search"
	DefaultIndexName      = "wiki_main"
	DefaultBaseURL        = "http://localhost/mediawiki/index.php/"
	DefaultSearchCount    = 5
	DefaultSnippetLength  = 200
	DefaultTemplatePath   = "rule_manticore.txt"
	DefaultRequestTimeout = 10 * time.Second
	DefaultRateLimit      = 10
)

// Circuit breaker defaults for the outbound engine client.
const (
	DefaultBreakerMaxFailures = 5
	DefaultBreakerTimeout     = 30 * time.Second
	DefaultBreakerInterval    = 60 * time.Second
)

// Duration accepts Go duration strings ("10s", "1m30s") in YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// ServerConfig is the lkb section: the inbound listener and the request
// normalisation bound.
type ServerConfig struct {
	Listen      string `yaml:"listen"`
	Port        int    `yaml:"port"`
	MaxQueryLen int    `yaml:"max_query_len"`
}

// Addr returns the host:port the HTTP server binds to.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Listen, strconv.Itoa(s.Port))
}

// BreakerConfig tunes the circuit breaker around the engine client.
type BreakerConfig struct {
	MaxFailures uint32   `yaml:"max_failures"`
	Timeout     Duration `yaml:"timeout"`
	Interval    Duration `yaml:"interval"`
}

// EngineConfig is the engine section. Host, HostPort and URLPath are
// derived from URL while loading and are not read from the file.
type EngineConfig struct {
	Type               string        `yaml:"type"`
	URL                string        `yaml:"url"`
	IndexName          string        `yaml:"index_name"`
	BaseURL            string        `yaml:"replace_return_url"`
	SearchCount        int           `yaml:"search_count"`
	SnippetLength      int           `yaml:"snippet_length"`
	TemplatePath       string        `yaml:"template_path"`
	TemplateAutoReload bool          `yaml:"template_auto_reload"`
	RequestTimeout     Duration      `yaml:"request_timeout"`
	RateLimit          float64       `yaml:"rate_limit"`
	StripMarkup        bool          `yaml:"strip_markup"`
	Breaker            BreakerConfig `yaml:"breaker"`

	Scheme   string `yaml:"-"`
	Host     string `yaml:"-"`
	HostPort int    `yaml:"-"`
	URLPath  string `yaml:"-"`
}

// Config is the full bridge configuration.
type Config struct {
	Server ServerConfig `yaml:"lkb"`
	Engine EngineConfig `yaml:"engine"`
}

// Default returns a configuration populated with the shipped defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:      DefaultListen,
			Port:        DefaultPort,
			MaxQueryLen: DefaultMaxQueryLen,
		},
		Engine: EngineConfig{
			Type:           DefaultEngineType,
			URL:            DefaultEngineURL,
			IndexName:      DefaultIndexName,
			BaseURL:        DefaultBaseURL,
			SearchCount:    DefaultSearchCount,
			SnippetLength:  DefaultSnippetLength,
			TemplatePath:   DefaultTemplatePath,
			RequestTimeout: Duration(DefaultRequestTimeout),
			RateLimit:      DefaultRateLimit,
			Breaker: BreakerConfig{
				MaxFailures: DefaultBreakerMaxFailures,
				Timeout:     Duration(DefaultBreakerTimeout),
				Interval:    Duration(DefaultBreakerInterval),
			},
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing file is
// not an error: the defaults apply and a warning is logged, so the binary
// runs standalone the way the service always has.
func Load(path string, logger *logrus.Logger) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		logger.WithField("path", path).Warn("Config file not found, using defaults")
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.finalise(logger); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Override applies command line values on top of the loaded file and
// re-validates. An empty listen or zero port means the flag was not
// given.
func (c *Config) Override(listen string, port int, logger *logrus.Logger) error {
	if listen != "" {
		c.Server.Listen = listen
	}
	if port != 0 {
		c.Server.Port = port
	}
	return c.finalise(logger)
}

// finalise validates the loaded values and derives the engine endpoint.
func (c *Config) finalise(logger *logrus.Logger) error {
	if c.Server.Listen == "" || c.Server.Listen == "*" {
		c.Server.Listen = DefaultListen
	} else if net.ParseIP(c.Server.Listen) == nil {
		logger.WithField("listen", c.Server.Listen).Warn("Invalid listen address, using 0.0.0.0")
		c.Server.Listen = DefaultListen
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("lkb.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.MaxQueryLen <= 0 {
		return fmt.Errorf("lkb.max_query_len must be positive, got %d", c.Server.MaxQueryLen)
	}
	if c.Engine.Type == "" {
		return fmt.Errorf("engine.type must not be empty")
	}
	if c.Engine.SearchCount <= 0 {
		return fmt.Errorf("engine.search_count must be positive, got %d", c.Engine.SearchCount)
	}
	if c.Engine.SnippetLength <= 0 {
		return fmt.Errorf("engine.snippet_length must be positive, got %d", c.Engine.SnippetLength)
	}
	if c.Engine.TemplatePath == "" {
		return fmt.Errorf("engine.template_path must not be empty")
	}
	if c.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be positive")
	}
	if c.Engine.RateLimit < 0 {
		return fmt.Errorf("engine.rate_limit must not be negative")
	}

	scheme, host, port, urlPath, err := splitEngineURL(c.Engine.URL)
	if err != nil {
		return fmt.Errorf("invalid engine.url %q: %w", c.Engine.URL, err)
	}
	c.Engine.Scheme = scheme
	c.Engine.Host = host
	c.Engine.HostPort = port
	c.Engine.URLPath = urlPath
	return nil
}

// splitEngineURL breaks an engine URL into scheme, host, port and path.
// The scheme is optional and defaults to http, a missing port means 80
// and a missing path means "/".
func splitEngineURL(raw string) (string, string, int, string, error) {
	if raw == "" {
		return "", "", 0, "", fmt.Errorf("empty URL")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", 0, "", err
	}
	if u.Hostname() == "" {
		return "", "", 0, "", fmt.Errorf("missing host")
	}

	port := 80
	if p := u.Port(); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			return "", "", 0, "", fmt.Errorf("invalid port %q", p)
		}
	}

	urlPath := u.Path
	if urlPath == "" {
		urlPath = "/"
	}
	return u.Scheme, u.Hostname(), port, urlPath, nil
}
