package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	TransportStdio = "stdio"
	TransportTCP   = "tcp"
)

// Settings is the resolved process configuration.
type Settings struct {
	Name        string
	Version     string
	Transport   string
	ListenAddr  string
	HTTPAddr    string
	CORSOrigins []string
	// HTTPAuthToken, when set, is required as a bearer token on the HTTP surface.
	HTTPAuthToken string
	AWX           AWXSettings
}

// AWXSettings configures controller access. Credentials are not stored here;
// they are resolved per call through a Provider.
type AWXSettings struct {
	BaseURL       string
	TokenFile     string
	PingTimeout   time.Duration
	StatusTimeout time.Duration
	LaunchTimeout time.Duration
	PollTimeout   time.Duration
	PollInterval  time.Duration
	TLS           TLSSettings
	Retry         RetrySettings
}

type TLSSettings struct {
	InsecureSkipVerify bool
	CAFile             string
	ServerName         string
}

// RetrySettings enables bounded retry of job-status fetches. MaxAttempts <= 1 disables it.
type RetrySettings struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

func DefaultSettings() Settings {
	return Settings{
		Name:      "mcp-awx",
		Version:   "1.0.0",
		Transport: TransportStdio,
		AWX: AWXSettings{
			PingTimeout:   10 * time.Second,
			StatusTimeout: 20 * time.Second,
			LaunchTimeout: 30 * time.Second,
			PollTimeout:   300 * time.Second,
			PollInterval:  2 * time.Second,
			Retry: RetrySettings{
				MaxAttempts:  0,
				InitialDelay: 250 * time.Millisecond,
				Multiplier:   2.0,
				MaxDelay:     5 * time.Second,
				Jitter:       true,
			},
		},
	}
}

type fileConfig struct {
	Name        string   `toml:"name"`
	Transport   string   `toml:"transport"`
	Listen      string   `toml:"listen"`
	HTTPAddr    string   `toml:"http_addr"`
	CORSOrigins []string `toml:"cors_origins"`
	HTTPToken   string   `toml:"http_auth_token"`
	AWX         fileAWX  `toml:"awx"`
}

type fileAWX struct {
	BaseURL       string    `toml:"base_url"`
	TokenFile     string    `toml:"token_file"`
	PingTimeout   string    `toml:"ping_timeout"`
	StatusTimeout string    `toml:"status_timeout"`
	LaunchTimeout string    `toml:"launch_timeout"`
	PollTimeout   string    `toml:"poll_timeout"`
	PollInterval  string    `toml:"poll_interval"`
	TLS           fileTLS   `toml:"tls"`
	Retry         fileRetry `toml:"retry"`
}

type fileTLS struct {
	InsecureSkipVerify bool   `toml:"insecure_skip_verify"`
	CAFile             string `toml:"ca_file"`
	ServerName         string `toml:"server_name"`
}

type fileRetry struct {
	MaxAttempts  int     `toml:"max_attempts"`
	InitialDelay string  `toml:"initial_delay"`
	Multiplier   float64 `toml:"multiplier"`
	MaxDelay     string  `toml:"max_delay"`
	Jitter       bool    `toml:"jitter"`
}

// Load decodes a TOML file over DefaultSettings. Keys absent from the file keep their defaults.
func Load(path string) (Settings, error) {
	cfg := DefaultSettings()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Settings{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Settings{}, fmt.Errorf("config parse failed (%s): unknown key %q", path, undecoded[0].String())
	}

	if meta.IsDefined("name") {
		if name := strings.TrimSpace(raw.Name); name != "" {
			cfg.Name = name
		}
	}
	if meta.IsDefined("transport") {
		cfg.Transport = strings.ToLower(strings.TrimSpace(raw.Transport))
	}
	if meta.IsDefined("listen") {
		cfg.ListenAddr = strings.TrimSpace(raw.Listen)
	}
	if meta.IsDefined("http_addr") {
		cfg.HTTPAddr = strings.TrimSpace(raw.HTTPAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CORSOrigins = normalizeList(raw.CORSOrigins)
	}
	if meta.IsDefined("http_auth_token") {
		cfg.HTTPAuthToken = strings.TrimSpace(raw.HTTPToken)
	}

	if meta.IsDefined("awx", "base_url") {
		cfg.AWX.BaseURL = strings.TrimSpace(raw.AWX.BaseURL)
	}
	if meta.IsDefined("awx", "token_file") {
		cfg.AWX.TokenFile = strings.TrimSpace(raw.AWX.TokenFile)
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"ping_timeout", raw.AWX.PingTimeout, &cfg.AWX.PingTimeout},
		{"status_timeout", raw.AWX.StatusTimeout, &cfg.AWX.StatusTimeout},
		{"launch_timeout", raw.AWX.LaunchTimeout, &cfg.AWX.LaunchTimeout},
		{"poll_timeout", raw.AWX.PollTimeout, &cfg.AWX.PollTimeout},
		{"poll_interval", raw.AWX.PollInterval, &cfg.AWX.PollInterval},
	}
	for _, d := range durations {
		if !meta.IsDefined("awx", d.key) {
			continue
		}
		v, err := time.ParseDuration(strings.TrimSpace(d.raw))
		if err != nil {
			return Settings{}, fmt.Errorf("parse awx.%s: %w", d.key, err)
		}
		*d.dst = v
	}

	if meta.IsDefined("awx", "tls", "insecure_skip_verify") {
		cfg.AWX.TLS.InsecureSkipVerify = raw.AWX.TLS.InsecureSkipVerify
	}
	if meta.IsDefined("awx", "tls", "ca_file") {
		cfg.AWX.TLS.CAFile = strings.TrimSpace(raw.AWX.TLS.CAFile)
	}
	if meta.IsDefined("awx", "tls", "server_name") {
		cfg.AWX.TLS.ServerName = strings.TrimSpace(raw.AWX.TLS.ServerName)
	}

	if meta.IsDefined("awx", "retry", "max_attempts") {
		cfg.AWX.Retry.MaxAttempts = raw.AWX.Retry.MaxAttempts
	}
	if meta.IsDefined("awx", "retry", "initial_delay") {
		v, err := time.ParseDuration(strings.TrimSpace(raw.AWX.Retry.InitialDelay))
		if err != nil {
			return Settings{}, fmt.Errorf("parse awx.retry.initial_delay: %w", err)
		}
		cfg.AWX.Retry.InitialDelay = v
	}
	if meta.IsDefined("awx", "retry", "multiplier") {
		cfg.AWX.Retry.Multiplier = raw.AWX.Retry.Multiplier
	}
	if meta.IsDefined("awx", "retry", "max_delay") {
		v, err := time.ParseDuration(strings.TrimSpace(raw.AWX.Retry.MaxDelay))
		if err != nil {
			return Settings{}, fmt.Errorf("parse awx.retry.max_delay: %w", err)
		}
		cfg.AWX.Retry.MaxDelay = v
	}
	if meta.IsDefined("awx", "retry", "jitter") {
		cfg.AWX.Retry.Jitter = raw.AWX.Retry.Jitter
	}

	if err := Validate(cfg); err != nil {
		return Settings{}, fmt.Errorf("config invalid (%s): %w", path, err)
	}
	return cfg, nil
}

func Validate(cfg Settings) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return fmt.Errorf("missing name")
	}
	switch cfg.Transport {
	case TransportStdio:
	case TransportTCP:
		if strings.TrimSpace(cfg.ListenAddr) == "" {
			return fmt.Errorf("listen is required for tcp transport")
		}
	default:
		return fmt.Errorf("unknown transport %q", cfg.Transport)
	}
	if base := strings.TrimSpace(cfg.AWX.BaseURL); base != "" {
		if err := ValidateBaseURL(base); err != nil {
			return err
		}
	}
	positive := map[string]time.Duration{
		"awx.ping_timeout":   cfg.AWX.PingTimeout,
		"awx.status_timeout": cfg.AWX.StatusTimeout,
		"awx.launch_timeout": cfg.AWX.LaunchTimeout,
		"awx.poll_timeout":   cfg.AWX.PollTimeout,
		"awx.poll_interval":  cfg.AWX.PollInterval,
	}
	for key, d := range positive {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, d)
		}
	}
	if cfg.AWX.Retry.MaxAttempts < 0 {
		return fmt.Errorf("awx.retry.max_attempts must not be negative")
	}
	if cfg.AWX.Retry.InitialDelay < 0 || cfg.AWX.Retry.MaxDelay < 0 {
		return fmt.Errorf("awx.retry delays must not be negative")
	}
	return nil
}

// ValidateBaseURL requires an absolute http(s) URL with a host.
func ValidateBaseURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid base url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid base url %q: missing host", raw)
	}
	return nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
