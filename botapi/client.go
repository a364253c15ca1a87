package botapi

import (
	"crypto/tls"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/prilive-com/tgdispatch/tg"
)

const (
	defaultBaseURL  = "https://api.telegram.org"
	maxResponseSize = 10 << 20 // 10MB
)

// Config holds client configuration.
type Config struct {
	// Bot token
	Token tg.SecretToken

	// API settings
	BaseURL        string
	ParseMode      tg.ParseMode
	RequestTimeout time.Duration
	KeepAlive      time.Duration
	MaxIdleConns   int
	IdleTimeout    time.Duration

	// Rate limiting for outbound sends
	GlobalRPS   float64
	GlobalBurst int

	// Long polling
	UpdatesLimit int // Max updates per getUpdates request (1-100)

	// Circuit breaker
	BreakerMaxRequests uint32
	BreakerInterval    time.Duration
	BreakerTimeout     time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:            defaultBaseURL,
		ParseMode:          tg.ParseModeHTML,
		RequestTimeout:     30 * time.Second,
		KeepAlive:          30 * time.Second,
		MaxIdleConns:       10,
		IdleTimeout:        90 * time.Second,
		GlobalRPS:          30,
		GlobalBurst:        10,
		UpdatesLimit:       100,
		BreakerMaxRequests: 5,
		BreakerInterval:    60 * time.Second,
		BreakerTimeout:     30 * time.Second,
	}
}

// Client calls the Telegram Bot API on behalf of the dispatcher.
type Client struct {
	config Config
	logger *slog.Logger

	// sendClient enforces an overall request timeout; pollClient leaves the
	// overall timeout to the per-request context because long polls block
	// server-side for the caller-supplied window.
	sendClient *http.Client
	pollClient *http.Client

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[*apiResponse]
}

// Option configures the Client.
type Option func(*Client)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client for both send and poll requests.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.sendClient = client
		c.pollClient = client
	}
}

// WithRateLimit sets send-rate limiting parameters.
func WithRateLimit(globalRPS float64, burst int) Option {
	return func(c *Client) {
		c.config.GlobalRPS = globalRPS
		c.config.GlobalBurst = burst
		c.limiter = rate.NewLimiter(rate.Limit(globalRPS), burst)
	}
}

// New creates a new Client from a Config.
// Zero-valued Config fields fall back to DefaultConfig values.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.Token.IsEmpty() {
		return nil, tg.ErrInvalidToken
	}
	applyDefaults(&cfg)

	c := &Client{config: cfg}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.sendClient == nil {
		c.sendClient = newHTTPClient(cfg, cfg.RequestTimeout)
	}
	if c.pollClient == nil {
		c.pollClient = newHTTPClient(cfg, 0)
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.GlobalRPS), cfg.GlobalBurst)
	}

	c.breaker = gobreaker.NewCircuitBreaker[*apiResponse](gobreaker.Settings{
		Name:        "tgdispatch-botapi",
		MaxRequests: cfg.BreakerMaxRequests,
		Interval:    cfg.BreakerInterval,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 3 {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= 0.6
		},
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info("circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return c, nil
}

// Close releases idle HTTP connections.
// In-flight requests complete normally or with context errors.
func (c *Client) Close() error {
	for _, hc := range []*http.Client{c.sendClient, c.pollClient} {
		if t, ok := hc.Transport.(*http.Transport); ok {
			t.CloseIdleConnections()
		}
	}
	return nil
}

func applyDefaults(cfg *Config) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = def.RequestTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	if cfg.MaxIdleConns <= 0 {
		cfg.MaxIdleConns = def.MaxIdleConns
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = def.IdleTimeout
	}
	if cfg.GlobalRPS <= 0 {
		cfg.GlobalRPS = def.GlobalRPS
	}
	if cfg.GlobalBurst <= 0 {
		cfg.GlobalBurst = def.GlobalBurst
	}
	if cfg.UpdatesLimit <= 0 || cfg.UpdatesLimit > 100 {
		cfg.UpdatesLimit = def.UpdatesLimit
	}
	if cfg.BreakerMaxRequests == 0 {
		cfg.BreakerMaxRequests = def.BreakerMaxRequests
	}
	if cfg.BreakerInterval <= 0 {
		cfg.BreakerInterval = def.BreakerInterval
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = def.BreakerTimeout
	}
}

func newHTTPClient(cfg Config, timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: cfg.KeepAlive,
			}).DialContext,
			MaxIdleConns:        cfg.MaxIdleConns,
			MaxIdleConnsPerHost: cfg.MaxIdleConns,
			IdleConnTimeout:     cfg.IdleTimeout,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
	}
}
