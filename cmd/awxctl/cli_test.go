package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/danmuck/mcp-awx/internal/awx"
	"github.com/danmuck/mcp-awx/internal/config"
	"github.com/danmuck/mcp-awx/internal/testutil/testlog"
	"gopkg.in/yaml.v3"
)

type controller struct {
	srv        *httptest.Server
	pingStatus int

	mu       sync.Mutex
	launched []byte
}

func (c *controller) launchBody() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.launched
}

func startController(t *testing.T) *controller {
	t.Helper()
	c := &controller{pingStatus: http.StatusOK}
	mux := http.NewServeMux()
	mux.HandleFunc(awx.PathPing, func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		status := c.pingStatus
		c.mu.Unlock()
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"version":"23.5.0"}`)
	})
	mux.HandleFunc("/api/v2/job_templates/42/launch/", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.launched = body
		c.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"job":9}`)
	})
	mux.HandleFunc("/api/v2/jobs/9/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":9,"status":"failed"}`)
	})
	c.srv = httptest.NewServer(mux)
	t.Cleanup(c.srv.Close)
	return c
}

func (c *controller) provider() config.Provider {
	return config.Static{BaseURL: c.srv.URL, Token: "tok"}
}

func TestHealthJSONAndYAML(t *testing.T) {
	testlog.Start(t)
	ctrl := startController(t)

	var out, errb bytes.Buffer
	if code := run([]string{"health"}, &out, &errb, ctrl.provider()); code != 0 {
		t.Fatalf("health exit=%d stderr=%s", code, errb.String())
	}
	var res map[string]any
	if err := json.Unmarshal(out.Bytes(), &res); err != nil || res["ok"] != true {
		t.Fatalf("unexpected json output %q: %v", out.String(), err)
	}

	out.Reset()
	if code := run([]string{"-o", "yaml", "health"}, &out, &errb, ctrl.provider()); code != 0 {
		t.Fatalf("health yaml exit=%d stderr=%s", code, errb.String())
	}
	var y map[string]any
	if err := yaml.Unmarshal(out.Bytes(), &y); err != nil {
		t.Fatalf("decode yaml %q: %v", out.String(), err)
	}
	status, _ := y["status"].(map[string]any)
	if y["ok"] != true || status["version"] != "23.5.0" {
		t.Fatalf("unexpected yaml output: %q", out.String())
	}
}

func TestHealthFailureExitsNonZero(t *testing.T) {
	testlog.Start(t)
	ctrl := startController(t)
	ctrl.mu.Lock()
	ctrl.pingStatus = http.StatusServiceUnavailable
	ctrl.mu.Unlock()

	var out, errb bytes.Buffer
	if code := run([]string{"health"}, &out, &errb, ctrl.provider()); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(out.String(), `"ok": false`) {
		t.Fatalf("expected health result on stdout, got %q", out.String())
	}
}

func TestRunPrintsResultAndSendsFlags(t *testing.T) {
	testlog.Start(t)
	ctrl := startController(t)

	var out, errb bytes.Buffer
	args := []string{"run", "-template", "42", "-cmd", "show version", "-cmd", "show interfaces", "-limit", "r1", "-save-artifacts=false"}
	if code := run(args, &out, &errb, ctrl.provider()); code != 0 {
		t.Fatalf("run exit=%d stderr=%s", code, errb.String())
	}
	var res map[string]any
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode output %q: %v", out.String(), err)
	}
	if res["jobId"] != float64(9) || res["status"] != "failed" {
		t.Fatalf("unexpected result: %v", res)
	}
	if res["stdoutUrl"] != ctrl.srv.URL+"/#/jobs/playbook/9/output" {
		t.Fatalf("unexpected stdout url: %v", res["stdoutUrl"])
	}

	var launch awx.LaunchPayload
	if err := json.Unmarshal(ctrl.launchBody(), &launch); err != nil {
		t.Fatalf("decode launch: %v", err)
	}
	if launch.ExtraVars.Limit != "r1" || launch.ExtraVars.SaveArtifacts || len(launch.ExtraVars.ShowCmds) != 2 {
		t.Fatalf("unexpected launch payload: %+v", launch)
	}
}

func TestUsageErrors(t *testing.T) {
	testlog.Start(t)
	ctrl := startController(t)

	cases := [][]string{
		{},
		{"bogus"},
		{"-o", "xml", "health"},
		{"run", "-cmd", "show version"},
	}
	for _, args := range cases {
		var out, errb bytes.Buffer
		if code := run(args, &out, &errb, ctrl.provider()); code != 2 {
			t.Fatalf("args=%v expected exit 2, got %d", args, code)
		}
	}
}

func TestRunValidationFailure(t *testing.T) {
	testlog.Start(t)
	ctrl := startController(t)

	var out, errb bytes.Buffer
	if code := run([]string{"run", "-template", "42"}, &out, &errb, ctrl.provider()); code != 1 {
		t.Fatalf("expected exit 1, got %d", code)
	}
	if !strings.Contains(errb.String(), "show_cmds must not be empty") {
		t.Fatalf("unexpected stderr: %q", errb.String())
	}
	if ctrl.launchBody() != nil {
		t.Fatalf("no launch expected for empty commands")
	}
}

func TestToolsListing(t *testing.T) {
	testlog.Start(t)
	ctrl := startController(t)

	var out, errb bytes.Buffer
	if code := run([]string{"tools"}, &out, &errb, ctrl.provider()); code != 0 {
		t.Fatalf("tools exit=%d", code)
	}
	if !strings.Contains(out.String(), `"name": "runShowCommands"`) {
		t.Fatalf("unexpected listing: %s", out.String())
	}
}
