package awx

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/danmuck/mcp-awx/internal/config"
	"github.com/danmuck/mcp-awx/internal/observability"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	PathPing = "/api/v2/ping/"

	maxResponseBody = 16 << 20
)

func launchPath(templateID int) string {
	return fmt.Sprintf("/api/v2/job_templates/%d/launch/", templateID)
}

func jobPath(jobID int) string {
	return fmt.Sprintf("/api/v2/jobs/%d/", jobID)
}

// TLSConfig controls verification of the controller certificate.
type TLSConfig struct {
	InsecureSkipVerify bool
	CAFile             string
	ServerName         string
}

// Config holds per-request timeouts and poll defaults.
type Config struct {
	PingTimeout   time.Duration
	StatusTimeout time.Duration
	LaunchTimeout time.Duration
	PollTimeout   time.Duration
	PollInterval  time.Duration
	TLS           TLSConfig
	Retry         RetryConfig
}

func DefaultConfig() Config {
	return Config{
		PingTimeout:   10 * time.Second,
		StatusTimeout: 20 * time.Second,
		LaunchTimeout: 30 * time.Second,
		PollTimeout:   DefaultPollTimeout,
		PollInterval:  DefaultPollInterval,
	}
}

// WithDefaults fills zero durations from DefaultConfig.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.PingTimeout <= 0 {
		c.PingTimeout = d.PingTimeout
	}
	if c.StatusTimeout <= 0 {
		c.StatusTimeout = d.StatusTimeout
	}
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = d.LaunchTimeout
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = d.PollTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = d.PollInterval
	}
	return c
}

// ConfigFromSettings maps file/env settings onto client config.
func ConfigFromSettings(s config.AWXSettings) Config {
	return Config{
		PingTimeout:   s.PingTimeout,
		StatusTimeout: s.StatusTimeout,
		LaunchTimeout: s.LaunchTimeout,
		PollTimeout:   s.PollTimeout,
		PollInterval:  s.PollInterval,
		TLS: TLSConfig{
			InsecureSkipVerify: s.TLS.InsecureSkipVerify,
			CAFile:             s.TLS.CAFile,
			ServerName:         s.TLS.ServerName,
		},
		Retry: RetryConfig{
			MaxAttempts: s.Retry.MaxAttempts,
			Backoff: BackoffConfig{
				InitialDelay: s.Retry.InitialDelay,
				Multiplier:   s.Retry.Multiplier,
				MaxDelay:     s.Retry.MaxDelay,
				Jitter:       s.Retry.Jitter,
			},
		},
	}.WithDefaults()
}

// Client talks to one automation controller. It holds no credentials: every
// request asks the Provider, so token rotation needs no restart.
type Client struct {
	cfg    Config
	creds  config.Provider
	http   *http.Client
	logger zerolog.Logger

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

type Option func(*Client)

// WithHTTPClient replaces the transport. TLS settings from Config are not applied to it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithClock replaces the wall clock and the poll sleep.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(creds config.Provider, cfg Config, opts ...Option) (*Client, error) {
	if creds == nil {
		return nil, fmt.Errorf("%w: nil credentials provider", ErrConfig)
	}
	c := &Client{
		cfg:    cfg.WithDefaults(),
		creds:  creds,
		logger: log.Logger.With().Str("component", "awx").Logger(),
		now:    time.Now,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		transport, err := c.transport()
		if err != nil {
			return nil, err
		}
		c.http = &http.Client{Transport: transport}
	}
	return c, nil
}

func (c *Client) transport() (*http.Transport, error) {
	tlsCfg, err := clientTLSConfig(c.cfg.TLS)
	if err != nil {
		return nil, err
	}
	if tlsCfg.InsecureSkipVerify {
		c.logger.Warn().Msg("awx.Client tls verification disabled by configuration")
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = tlsCfg
	return tr, nil
}

func clientTLSConfig(cfg TLSConfig) (*tls.Config, error) {
	out := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		ServerName:         strings.TrimSpace(cfg.ServerName),
	}
	if caPath := strings.TrimSpace(cfg.CAFile); caPath != "" {
		caPEM, err := os.ReadFile(caPath)
		if err != nil {
			return nil, fmt.Errorf("%w: read tls ca bundle: %w", ErrConfig, err)
		}
		pool := x509.NewCertPool()
		if ok := pool.AppendCertsFromPEM(caPEM); !ok {
			return nil, fmt.Errorf("%w: parse tls ca bundle: %s", ErrConfig, caPath)
		}
		out.RootCAs = pool
	}
	return out, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) credentials() (config.Credentials, error) {
	creds, err := c.creds.Credentials()
	if err != nil {
		return config.Credentials{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return creds, nil
}

// URL joins the base with path, dropping trailing slashes from the base.
func URL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + path
}

// Headers returns the controller request headers for token.
func Headers(token string) http.Header {
	h := make(http.Header)
	h.Set("Authorization", "Bearer "+token)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

type response struct {
	method     string
	url        string
	statusCode int
	body       []byte
}

func (r response) ok() bool {
	return r.statusCode >= 200 && r.statusCode < 300
}

func (r response) httpError() error {
	if r.ok() {
		return nil
	}
	return &HTTPError{Method: r.method, URL: r.url, StatusCode: r.statusCode, Body: string(r.body)}
}

// do performs one request. Credentials are resolved first so a configuration
// error never reaches the network.
func (c *Client) do(ctx context.Context, endpoint, method, path string, body any, timeout time.Duration) (response, error) {
	creds, err := c.credentials()
	if err != nil {
		return response{}, err
	}
	target := URL(creds.BaseURL, path)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return response{}, fmt.Errorf("awx: encode %s body: %w", endpoint, err)
		}
		reader = bytes.NewReader(payload)
	}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, method, target, reader)
	if err != nil {
		return response{}, fmt.Errorf("%w: build request: %w", ErrConfig, err)
	}
	req.Header = Headers(creds.Token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		observability.RecordControllerRequest(endpoint, method, 0, time.Since(start))
		c.logger.Debug().Str("endpoint", endpoint).Str("url", target).Err(err).Msg("awx.request failed")
		return response{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	observability.RecordControllerRequest(endpoint, method, resp.StatusCode, time.Since(start))
	if err != nil {
		return response{}, fmt.Errorf("awx: read %s response: %w", endpoint, err)
	}
	c.logger.Debug().
		Str("endpoint", endpoint).
		Str("method", method).
		Str("url", target).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("awx.request")
	return response{method: method, url: target, statusCode: resp.StatusCode, body: data}, nil
}
