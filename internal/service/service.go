// Package service owns the mcp-awx process lifecycle: wiring the controller
// client into the tool registry and running the configured transports until
// shutdown.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/mcp-awx/internal/auth"
	"github.com/danmuck/mcp-awx/internal/awx"
	"github.com/danmuck/mcp-awx/internal/config"
	"github.com/danmuck/mcp-awx/internal/httpapi"
	"github.com/danmuck/mcp-awx/internal/mcp"
	"github.com/danmuck/mcp-awx/internal/observability"
	"github.com/danmuck/mcp-awx/internal/tools"
	"github.com/rs/zerolog/log"
)

var ErrNotBootstrapped = errors.New("service: not bootstrapped")

// Service runs the tool server as a standalone process.
type Service struct {
	cfg   config.Settings
	creds config.Provider
	opts  []awx.Option

	stdin  io.Reader
	stdout io.Writer

	client   *awx.Client
	registry *tools.Registry
}

// Option customizes a Service before bootstrap.
type Option func(*Service)

// WithStdio replaces the process stdin/stdout used by the stdio transport.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(s *Service) {
		s.stdin = in
		s.stdout = out
	}
}

// WithProvider overrides the env-backed credential provider.
func WithProvider(p config.Provider) Option {
	return func(s *Service) {
		s.creds = p
	}
}

// WithClientOptions forwards options to the controller client.
func WithClientOptions(opts ...awx.Option) Option {
	return func(s *Service) {
		s.opts = append(s.opts, opts...)
	}
}

// New creates a service for cfg. Credentials default to AWX_BASE/AWX_TOKEN.
func New(cfg config.Settings, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		stdin:  os.Stdin,
		stdout: os.Stdout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.creds == nil {
		s.creds = config.EnvProvider{BaseURL: cfg.AWX.BaseURL, TokenFile: cfg.AWX.TokenFile}
	}
	return s
}

// Run blocks until SIGINT/SIGTERM or until the stdio transport reaches EOF.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.RunContext(ctx)
}

// RunContext is Run with a caller-owned context.
func (s *Service) RunContext(ctx context.Context) error {
	if err := s.Bootstrap(); err != nil {
		return err
	}
	return s.serve(ctx)
}

// Bootstrap validates config and wires client, registry and metrics.
func (s *Service) Bootstrap() error {
	if err := config.Validate(s.cfg); err != nil {
		return fmt.Errorf("service: %w", err)
	}
	observability.RegisterMetrics()

	client, err := awx.NewClient(s.creds, awx.ConfigFromSettings(s.cfg.AWX), s.opts...)
	if err != nil {
		return err
	}
	reg := tools.NewRegistry()
	if err := tools.RegisterAWX(reg, client); err != nil {
		return err
	}
	s.client = client
	s.registry = reg

	base := "unresolved"
	if creds, err := s.creds.Credentials(); err == nil {
		base = creds.BaseURL
	} else {
		log.Warn().Err(err).Msg("service.Bootstrap credentials not available yet")
	}
	log.Info().
		Str("name", s.cfg.Name).
		Str("version", s.cfg.Version).
		Str("transport", s.cfg.Transport).
		Str("awx_base", base).
		Int("tools", len(reg.List())).
		Msg("service.Bootstrap ready")
	return nil
}

// Registry returns the wired tool registry.
func (s *Service) Registry() *tools.Registry {
	return s.registry
}

func (s *Service) serve(ctx context.Context) error {
	if s.registry == nil {
		return ErrNotBootstrapped
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	if addr := strings.TrimSpace(s.cfg.HTTPAddr); addr != "" {
		api := httpapi.New(s.httpConfig(addr), s.registry, s.ready)
		go func() {
			httpErr <- api.ListenAndServe(ctx)
		}()
	}

	server := mcp.NewServer(s.cfg.Name, s.cfg.Version, s.registry)
	protoErr := make(chan error, 1)
	go func() {
		switch s.cfg.Transport {
		case config.TransportTCP:
			protoErr <- server.ListenAndServe(ctx, s.cfg.ListenAddr)
		default:
			protoErr <- server.Serve(ctx, s.stdin, s.stdout)
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("service.serve shutdown")
		return nil
	case err := <-protoErr:
		if err != nil {
			return err
		}
		log.Info().Str("transport", s.cfg.Transport).Msg("service.serve transport closed")
		return nil
	case err := <-httpErr:
		if err != nil {
			return fmt.Errorf("service: http: %w", err)
		}
		return nil
	}
}

func (s *Service) httpConfig(addr string) httpapi.Config {
	cfg := httpapi.Config{
		Name:        s.cfg.Name,
		Version:     s.cfg.Version,
		Addr:        addr,
		CORSOrigins: s.cfg.CORSOrigins,
	}
	if token := strings.TrimSpace(s.cfg.HTTPAuthToken); token != "" {
		cfg.Validator = auth.StaticToken{Token: token}
	}
	return cfg
}

func (s *Service) ready(ctx context.Context) bool {
	return s.client.Health(ctx).OK
}
