// Package httpapi exposes the tool registry over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/mcp-awx/internal/auth"
	"github.com/danmuck/mcp-awx/internal/awx"
	"github.com/danmuck/mcp-awx/internal/observability"
	"github.com/danmuck/mcp-awx/internal/tools"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

// Config configures the HTTP surface.
type Config struct {
	Name        string
	Version     string
	Addr        string
	CORSOrigins []string
	// Validator guards /tools routes when non-nil.
	Validator auth.Validator
}

// Server serves health, metrics and tool routes.
type Server struct {
	cfg      Config
	registry *tools.Registry
	router   *gin.Engine
	started  time.Time
	ready    func(ctx context.Context) bool
}

// New builds the router. ready reports controller readiness for /ready; nil means always ready.
func New(cfg Config, registry *tools.Registry, ready func(ctx context.Context) bool) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(cfg.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(cfg.CORSOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		cfg:      cfg,
		registry: registry,
		router:   r,
		started:  time.Now(),
		ready:    ready,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying router.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.started).String(),
			"service": s.cfg.Name,
			"version": s.cfg.Version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		ready := s.ready == nil || s.ready(c.Request.Context())
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":   ready,
			"uptime":  time.Since(s.started).String(),
			"service": s.cfg.Name,
			"version": s.cfg.Version,
		})
	})

	group := s.router.Group("/tools")
	if s.cfg.Validator != nil {
		group.Use(requireBearer(s.cfg.Validator))
	}
	group.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"tools": s.registry.List()})
	})
	group.POST("/:name", s.callTool)
}

func (s *Server) callTool(c *gin.Context) {
	name := c.Param("name")
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	args := json.RawMessage(body)
	if len(strings.TrimSpace(string(body))) == 0 {
		args = json.RawMessage("{}")
	}

	out, err := s.registry.Invoke(c.Request.Context(), name, args)
	if err != nil {
		c.JSON(StatusFor(err), gin.H{"error": err.Error(), "tool": name})
		return
	}
	c.JSON(http.StatusOK, out)
}

// StatusFor maps a tool error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		return http.StatusNotFound
	case errors.Is(err, tools.ErrInvalidArguments), errors.Is(err, awx.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, awx.ErrConfig):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

func requireBearer(v auth.Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := auth.CheckHeader(v, c.GetHeader("Authorization")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// ListenAndServe serves until ctx is canceled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.cfg.Addr).Msg("httpapi.listen")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		out = append(out, origin)
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
