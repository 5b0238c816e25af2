package awx

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/mcp-awx/internal/config"
)

// stubController is an in-process controller serving ping, launch and job detail.
type stubController struct {
	t *testing.T

	mu           sync.Mutex
	pingStatus   int
	pingBody     string
	launchStatus int
	launchBody   string
	statuses     []string
	statusCodes  []int
	artifacts    map[string]any
	onFetch      func(n int)

	pings       int
	launches    int
	fetches     int
	lastLaunch  []byte
	lastPath    string
	authHeaders []string
	contentType []string
}

func newStubController(t *testing.T) *stubController {
	return &stubController{
		t:            t,
		pingStatus:   http.StatusOK,
		pingBody:     `{"version":"23.5.0","active_node":"awx-1"}`,
		launchStatus: http.StatusCreated,
		launchBody:   `{"job":77,"id":77}`,
		statuses:     []string{"successful"},
	}
}

func (s *stubController) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.authHeaders = append(s.authHeaders, r.Header.Get("Authorization"))
	s.contentType = append(s.contentType, r.Header.Get("Content-Type"))
	s.lastPath = r.URL.Path

	switch {
	case r.Method == http.MethodGet && r.URL.Path == PathPing:
		s.pings++
		status, body := s.pingStatus, s.pingBody
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/v2/job_templates/"):
		s.launches++
		body, _ := io.ReadAll(r.Body)
		s.lastLaunch = body
		status, resp := s.launchStatus, s.launchBody
		s.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, resp)
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v2/jobs/"):
		n := s.fetches
		s.fetches++
		code := http.StatusOK
		if n < len(s.statusCodes) {
			code = s.statusCodes[n]
		}
		status := s.statuses[len(s.statuses)-1]
		if n < len(s.statuses) {
			status = s.statuses[n]
		}
		payload := map[string]any{"id": 77, "status": status, "elapsed": float64(n)}
		if s.artifacts != nil && IsTerminal(status) {
			payload["artifacts"] = s.artifacts
		}
		hook := s.onFetch
		s.mu.Unlock()
		if hook != nil {
			hook(n + 1)
		}
		if code != http.StatusOK {
			w.WriteHeader(code)
			_, _ = io.WriteString(w, `{"detail":"unavailable"}`)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	default:
		s.mu.Unlock()
		http.NotFound(w, r)
	}
}

func (s *stubController) counts() (pings, launches, fetches int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pings, s.launches, s.fetches
}

func (s *stubController) requests() int {
	p, l, f := s.counts()
	return p + l + f
}

func (s *stubController) launchPayload() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out map[string]any
	if err := json.Unmarshal(s.lastLaunch, &out); err != nil {
		s.t.Fatalf("decode launch payload %q: %v", s.lastLaunch, err)
	}
	return out
}

// fakeClock advances only when the poller sleeps.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.sleeps))
	copy(out, c.sleeps)
	return out
}

func newStubClient(t *testing.T, base string, cfg Config, clock *fakeClock) *Client {
	t.Helper()
	opts := []Option{}
	if clock != nil {
		opts = append(opts, WithClock(clock.Now, clock.Sleep))
	}
	c, err := NewClient(config.Static{BaseURL: base, Token: "tok-1"}, cfg, opts...)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func startStub(t *testing.T) (*stubController, *httptest.Server) {
	t.Helper()
	stub := newStubController(t)
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)
	return stub, srv
}

func mustContain(t *testing.T, s, sub string) {
	t.Helper()
	if !strings.Contains(s, sub) {
		t.Fatalf("expected %q to contain %q", s, sub)
	}
}

func jsonString(t *testing.T, v any) string {
	t.Helper()
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(out)
}
