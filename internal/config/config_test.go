package config

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), testLogger())
	require.NoError(t, err)

	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultPort, cfg.Server.Port)
	assert.Equal(t, DefaultMaxQueryLen, cfg.Server.MaxQueryLen)
	assert.Equal(t, DefaultEngineType, cfg.Engine.Type)
	assert.Equal(t, DefaultIndexName, cfg.Engine.IndexName)
	assert.Equal(t, DefaultBaseURL, cfg.Engine.BaseURL)
	assert.Equal(t, DefaultSearchCount, cfg.Engine.SearchCount)
	assert.Equal(t, DefaultSnippetLength, cfg.Engine.SnippetLength)

	assert.Equal(t, "http", cfg.Engine.Scheme)
	assert.Equal(t, "127.0.0.1", cfg.Engine.Host)
	assert.Equal(t, 29308, cfg.Engine.HostPort)
	assert.Equal(t, "/search", cfg.Engine.URLPath)
}

func TestLoadFullFile(t *testing.T) {
	path := writeConfig(t, `
lkb:
  listen: "127.0.0.1"
  port: 8800
  max_query_len: 512

engine:
  type: manticore
  url: "http://search.internal:9308/api/search"
  index_name: docs_main
  replace_return_url: "https://wiki.example.org/wiki/"
  search_count: 8
  snippet_length: 150
  template_path: custom_template.txt
  template_auto_reload: true
  request_timeout: 5s
  rate_limit: 25
  strip_markup: true
  breaker:
    max_failures: 3
    timeout: 15s
    interval: 45s
`)

	cfg, err := Load(path, testLogger())
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Listen)
	assert.Equal(t, 8800, cfg.Server.Port)
	assert.Equal(t, 512, cfg.Server.MaxQueryLen)
	assert.Equal(t, "127.0.0.1:8800", cfg.Server.Addr())

	assert.Equal(t, "docs_main", cfg.Engine.IndexName)
	assert.Equal(t, "https://wiki.example.org/wiki/", cfg.Engine.BaseURL)
	assert.Equal(t, 8, cfg.Engine.SearchCount)
	assert.Equal(t, 150, cfg.Engine.SnippetLength)
	assert.Equal(t, "custom_template.txt", cfg.Engine.TemplatePath)
	assert.True(t, cfg.Engine.TemplateAutoReload)
	assert.Equal(t, 5*time.Second, cfg.Engine.RequestTimeout.Std())
	assert.Equal(t, float64(25), cfg.Engine.RateLimit)
	assert.True(t, cfg.Engine.StripMarkup)

	assert.Equal(t, uint32(3), cfg.Engine.Breaker.MaxFailures)
	assert.Equal(t, 15*time.Second, cfg.Engine.Breaker.Timeout.Std())
	assert.Equal(t, 45*time.Second, cfg.Engine.Breaker.Interval.Std())

	assert.Equal(t, "search.internal", cfg.Engine.Host)
	assert.Equal(t, 9308, cfg.Engine.HostPort)
	assert.Equal(t, "/api/search", cfg.Engine.URLPath)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
lkb:
  port: 9000
`)

	cfg, err := Load(path, testLogger())
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultEngineURL, cfg.Engine.URL)
	assert.Equal(t, DefaultRequestTimeout, cfg.Engine.RequestTimeout.Std())
	assert.Equal(t, uint32(DefaultBreakerMaxFailures), cfg.Engine.Breaker.MaxFailures)
}

func TestLoadListenFallbacks(t *testing.T) {
	t.Run("star binds everywhere", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "lkb:\n  listen: \"*\"\n"), testLogger())
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Server.Listen)
	})

	t.Run("invalid address falls back", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "lkb:\n  listen: not-an-ip\n"), testLogger())
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0", cfg.Server.Listen)
	})
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"port out of range", "lkb:\n  port: 70000\n"},
		{"negative count", "engine:\n  search_count: -1\n"},
		{"zero snippet", "engine:\n  snippet_length: 0\n"},
		{"bad duration", "engine:\n  request_timeout: soon\n"},
		{"empty engine type", "engine:\n  type: \"\"\n"},
		{"unparseable url", "engine:\n  url: \"http://[::bad\"\n"},
		{"malformed yaml", "lkb: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), testLogger())
			assert.Error(t, err)
		})
	}
}

func TestSplitEngineURL(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantHost string
		wantPort int
		wantPath string
	}{
		{"full", "http://127.0.0.1:29308/search", "127.0.0.1", 29308, "/search"},
		{"no port defaults to 80", "http://engine.local/search", "engine.local", 80, "/search"},
		{"no path defaults to root", "http://engine.local:9308", "engine.local", 9308, "/"},
		{"no scheme", "engine.local:9308/search", "engine.local", 9308, "/search"},
		{"bare host", "engine.local", "engine.local", 80, "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scheme, host, port, urlPath, err := splitEngineURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, "http", scheme)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantPort, port)
			assert.Equal(t, tt.wantPath, urlPath)
		})
	}

	t.Run("https scheme is kept", func(t *testing.T) {
		scheme, _, port, _, err := splitEngineURL("https://engine.local/search")
		require.NoError(t, err)
		assert.Equal(t, "https", scheme)
		assert.Equal(t, 80, port)
	})

	t.Run("empty url fails", func(t *testing.T) {
		_, _, _, _, err := splitEngineURL("")
		assert.Error(t, err)
	})
}

func TestOverride(t *testing.T) {
	t.Run("listen and port replace file values", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.Override("127.0.0.1", 8080, testLogger()))
		assert.Equal(t, "127.0.0.1", cfg.Server.Listen)
		assert.Equal(t, 8080, cfg.Server.Port)
	})

	t.Run("zero values leave the config alone", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.Override("", 0, testLogger()))
		assert.Equal(t, DefaultListen, cfg.Server.Listen)
		assert.Equal(t, DefaultPort, cfg.Server.Port)
	})

	t.Run("wildcard listen normalises", func(t *testing.T) {
		cfg := Default()
		require.NoError(t, cfg.Override("*", 0, testLogger()))
		assert.Equal(t, "0.0.0.0", cfg.Server.Listen)
	})

	t.Run("out of range port fails", func(t *testing.T) {
		cfg := Default()
		assert.Error(t, cfg.Override("", 70000, testLogger()))
	})
}
