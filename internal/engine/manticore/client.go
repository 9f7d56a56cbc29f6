package manticore

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/localkb/lkb/internal/config"
	"github.com/localkb/lkb/internal/textutil"
)

// Client posts rendered query documents to the engine's JSON search API.
// Calls are rate limited and pass through a circuit breaker so a dead or
// struggling engine fails fast instead of stacking up connections.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
	endpoint   string
	userAgent  string
	logger     *logrus.Logger
}

// NewClient builds the engine HTTP client from the derived endpoint in
// cfg. A rate limit of 0 disables rate limiting.
func NewClient(cfg config.EngineConfig, version string, logger *logrus.Logger) *Client {
	limit := rate.Limit(cfg.RateLimit)
	if cfg.RateLimit == 0 {
		limit = rate.Inf
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: newPooledTransport(),
			Timeout:   cfg.RequestTimeout.Std(),
		},
		limiter:   rate.NewLimiter(limit, 1),
		endpoint:  fmt.Sprintf("%s://%s:%d%s", cfg.Scheme, cfg.Host, cfg.HostPort, cfg.URLPath),
		userAgent: "lkb/" + version,
		logger:    logger,
	}

	c.breaker = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "engine:" + engineName,
		MaxRequests: 1,
		Interval:    cfg.Breaker.Interval.Std(),
		Timeout:     cfg.Breaker.Timeout.Std(),
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.Breaker.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Engine circuit breaker state change")
		},
		IsSuccessful: func(err error) bool {
			return err == nil
		},
	})

	return c
}

// Endpoint returns the resolved engine URL, for logs and the startup
// banner.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Query posts a rendered query document and returns the raw response
// body. While the breaker is open the engine is not contacted at all.
func (c *Client) Query(ctx context.Context, body string) ([]byte, error) {
	raw, err := c.breaker.Execute(func() ([]byte, error) {
		return c.post(ctx, body)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return nil, fmt.Errorf("engine circuit open: %w", err)
	}
	return raw, err
}

func (c *Client) post(ctx context.Context, body string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter wait failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("engine request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read engine response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned status %d: %s",
			resp.StatusCode, textutil.TruncateWithEllipsis(string(raw), 200))
	}
	return raw, nil
}

// newPooledTransport sizes the connection pool for a single engine host
// with concurrent handlers sharing it. Standard proxy environment
// variables (HTTPS_PROXY, NO_PROXY, ...) are honoured.
func newPooledTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     120 * time.Second,
		ForceAttemptHTTP2:   true,
	}
}
