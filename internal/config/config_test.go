package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/mcp-awx/internal/testutil/testlog"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaultsWhenKeysAbsent(t *testing.T) {
	testlog.Start(t)

	cfg, err := Load(writeConfig(t, "name = \"awx-lab\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := DefaultSettings()
	if cfg.Name != "awx-lab" {
		t.Fatalf("unexpected name: %q", cfg.Name)
	}
	if cfg.Transport != TransportStdio {
		t.Fatalf("unexpected transport: %q", cfg.Transport)
	}
	if cfg.AWX.PollTimeout != want.AWX.PollTimeout || cfg.AWX.PollInterval != want.AWX.PollInterval {
		t.Fatalf("unexpected poll defaults: %+v", cfg.AWX)
	}
	if cfg.AWX.TLS.InsecureSkipVerify {
		t.Fatalf("tls verification must be enabled by default")
	}
	if cfg.AWX.Retry.MaxAttempts != 0 {
		t.Fatalf("retry must be disabled by default, got %d", cfg.AWX.Retry.MaxAttempts)
	}
}

func TestLoadOverrides(t *testing.T) {
	testlog.Start(t)

	path := writeConfig(t, `
name = "awx-lab"
transport = "TCP"
listen = "127.0.0.1:7300"
http_addr = "127.0.0.1:7301"
cors_origins = ["http://localhost:3000", " "]

[awx]
base_url = "https://awx.lab.local"
token_file = "/run/secrets/awx"
ping_timeout = "5s"
poll_timeout = "10m"
poll_interval = "500ms"

[awx.tls]
insecure_skip_verify = true
server_name = "awx.lab.local"

[awx.retry]
max_attempts = 3
initial_delay = "1s"
jitter = false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transport != TransportTCP || cfg.ListenAddr != "127.0.0.1:7300" {
		t.Fatalf("unexpected transport: %q %q", cfg.Transport, cfg.ListenAddr)
	}
	if cfg.HTTPAddr != "127.0.0.1:7301" {
		t.Fatalf("unexpected http addr: %q", cfg.HTTPAddr)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.CORSOrigins[0] != "http://localhost:3000" {
		t.Fatalf("unexpected cors origins: %+v", cfg.CORSOrigins)
	}
	if cfg.AWX.BaseURL != "https://awx.lab.local" || cfg.AWX.TokenFile != "/run/secrets/awx" {
		t.Fatalf("unexpected awx settings: %+v", cfg.AWX)
	}
	if cfg.AWX.PingTimeout != 5*time.Second {
		t.Fatalf("unexpected ping timeout: %v", cfg.AWX.PingTimeout)
	}
	if cfg.AWX.StatusTimeout != 20*time.Second {
		t.Fatalf("status timeout should keep default, got %v", cfg.AWX.StatusTimeout)
	}
	if cfg.AWX.PollTimeout != 10*time.Minute || cfg.AWX.PollInterval != 500*time.Millisecond {
		t.Fatalf("unexpected poll settings: %v %v", cfg.AWX.PollTimeout, cfg.AWX.PollInterval)
	}
	if !cfg.AWX.TLS.InsecureSkipVerify || cfg.AWX.TLS.ServerName != "awx.lab.local" {
		t.Fatalf("unexpected tls settings: %+v", cfg.AWX.TLS)
	}
	if cfg.AWX.Retry.MaxAttempts != 3 || cfg.AWX.Retry.InitialDelay != time.Second || cfg.AWX.Retry.Jitter {
		t.Fatalf("unexpected retry settings: %+v", cfg.AWX.Retry)
	}
	if cfg.AWX.Retry.Multiplier != 2.0 {
		t.Fatalf("multiplier should keep default, got %v", cfg.AWX.Retry.Multiplier)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	testlog.Start(t)

	cases := map[string]string{
		"bad duration":      "[awx]\npoll_interval = \"soon\"\n",
		"zero timeout":      "[awx]\npoll_timeout = \"0s\"\n",
		"tcp without addr":  "transport = \"tcp\"\n",
		"unknown transport": "transport = \"carrier-pigeon\"\n",
		"bad base url":      "[awx]\nbase_url = \"awx.local\"\n",
		"unknown key":       "colour = \"blue\"\n",
		"negative retry":    "[awx.retry]\nmax_attempts = -1\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, body)); err == nil {
				t.Fatalf("expected load failure")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err == nil || !strings.Contains(err.Error(), "config load failed") {
		t.Fatalf("expected load failure, got %v", err)
	}
}

func TestEnvProviderReadsAtCallTime(t *testing.T) {
	testlog.Start(t)

	env := map[string]string{}
	p := EnvProvider{
		BaseURL: "https://fallback.local",
		Getenv:  func(k string) string { return env[k] },
	}

	if _, err := p.Credentials(); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}

	env[EnvToken] = "t1"
	creds, err := p.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.BaseURL != "https://fallback.local" || creds.Token != "t1" {
		t.Fatalf("unexpected credentials: %+v", creds)
	}

	env[EnvToken] = "t2"
	env[EnvBaseURL] = "https://awx.env.local/"
	creds, err = p.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.BaseURL != "https://awx.env.local/" || creds.Token != "t2" {
		t.Fatalf("rotation not observed: %+v", creds)
	}
}

func TestEnvProviderDefaultBase(t *testing.T) {
	p := EnvProvider{Getenv: func(k string) string {
		if k == EnvToken {
			return "tok"
		}
		return ""
	}}
	creds, err := p.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.BaseURL != DefaultBaseURL {
		t.Fatalf("unexpected base: %q", creds.BaseURL)
	}
}

func TestEnvProviderTokenFile(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(path, []byte("file-token\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}
	p := EnvProvider{TokenFile: path, Getenv: func(string) string { return "" }}
	creds, err := p.Credentials()
	if err != nil {
		t.Fatalf("credentials: %v", err)
	}
	if creds.Token != "file-token" {
		t.Fatalf("unexpected token: %q", creds.Token)
	}

	if err := os.WriteFile(path, []byte("  \n"), 0o600); err != nil {
		t.Fatalf("rewrite token: %v", err)
	}
	if _, err := p.Credentials(); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing for empty file, got %v", err)
	}
}

func TestStaticRequiresToken(t *testing.T) {
	if _, err := (Static{BaseURL: "http://awx"}).Credentials(); !errors.Is(err, ErrTokenMissing) {
		t.Fatalf("expected ErrTokenMissing, got %v", err)
	}
	creds, err := (Static{Token: "x"}).Credentials()
	if err != nil || creds.BaseURL != DefaultBaseURL {
		t.Fatalf("unexpected static credentials: %+v err=%v", creds, err)
	}
}

func TestTemplateRoundTripsToDefaults(t *testing.T) {
	testlog.Start(t)

	path := filepath.Join(t.TempDir(), "mcp-awx.toml")
	if err := WriteTemplate(path, false); err != nil {
		t.Fatalf("write template: %v", err)
	}
	if err := WriteTemplate(path, false); err == nil {
		t.Fatalf("expected existing file to be preserved")
	}
	if err := WriteTemplate(path, true); err != nil {
		t.Fatalf("overwrite template: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load template: %v", err)
	}
	want := DefaultSettings()
	if cfg.Name != want.Name || cfg.Transport != want.Transport {
		t.Fatalf("unexpected identity: %+v", cfg)
	}
	if cfg.AWX.BaseURL != DefaultBaseURL {
		t.Fatalf("unexpected base url: %q", cfg.AWX.BaseURL)
	}
	if cfg.AWX.PollTimeout != want.AWX.PollTimeout || cfg.AWX.Retry != want.AWX.Retry || cfg.AWX.TLS != want.AWX.TLS {
		t.Fatalf("template drifted from defaults: %+v", cfg.AWX)
	}
}
