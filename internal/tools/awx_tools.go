package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/mcp-awx/internal/awx"
)

const (
	NameHealth          = "health"
	NameRunShowCommands = "runShowCommands"
)

// Controller is the slice of the AWX client the tools depend on.
type Controller interface {
	Health(ctx context.Context) awx.HealthResult
	RunShowCommands(ctx context.Context, req awx.ShowCommandsRequest) (awx.RunResult, error)
}

// RegisterAWX installs health and runShowCommands against ctrl.
func RegisterAWX(r *Registry, ctrl Controller) error {
	if err := r.Register(HealthTool{Controller: ctrl}); err != nil {
		return err
	}
	return r.Register(RunShowCommandsTool{Controller: ctrl})
}

// HealthTool probes the controller ping endpoint.
type HealthTool struct {
	Controller Controller
}

var healthSchema = json.RawMessage(`{"type":"object","properties":{},"additionalProperties":false}`)

func (HealthTool) Metadata() Metadata {
	return Metadata{
		Name:        NameHealth,
		Description: "Check AWX controller reachability via /api/v2/ping/.",
		Aliases:     []string{"awx_health"},
	}
}

func (HealthTool) InputSchema() json.RawMessage { return healthSchema }

// Call ignores its arguments; controller failures are reported inside the result.
func (t HealthTool) Call(ctx context.Context, _ json.RawMessage) (any, error) {
	return t.Controller.Health(ctx), nil
}

// RunShowCommandsTool launches a show-commands job template and waits for it.
type RunShowCommandsTool struct {
	Controller Controller
}

var runShowCommandsSchema = json.RawMessage(`{
  "type": "object",
  "properties": {
    "templateId": {"type": "integer", "minimum": 1, "description": "AWX job template id"},
    "showCmds": {"type": "array", "items": {"type": "string"}, "minItems": 1, "description": "Operational show commands to run"},
    "limit": {"type": "string", "description": "Host limit pattern (default all)"},
    "inventory": {"type": "string", "description": "Inventory override"},
    "saveLocal": {"type": "boolean", "description": "Save command output on the runner (default false)"},
    "saveArtifacts": {"type": "boolean", "description": "Publish output as job artifacts (default true)"},
    "timeoutSec": {"type": "number", "exclusiveMinimum": 0, "description": "Polling deadline in seconds (default 300)"},
    "pollIntervalSec": {"type": "number", "exclusiveMinimum": 0, "description": "Delay between status polls in seconds (default 2)"}
  },
  "required": ["templateId", "showCmds"],
  "additionalProperties": false
}`)

func (RunShowCommandsTool) Metadata() Metadata {
	return Metadata{
		Name:        NameRunShowCommands,
		Description: "Launch an AWX job template with show_cmds and poll until it finishes or times out.",
		Aliases:     []string{"vyos_show"},
	}
}

func (RunShowCommandsTool) InputSchema() json.RawMessage { return runShowCommandsSchema }

// RunShowCommandsArgs is the wire form of runShowCommands input.
type RunShowCommandsArgs struct {
	TemplateID      *int     `json:"templateId"`
	ShowCmds        []string `json:"showCmds"`
	Limit           *string  `json:"limit"`
	Inventory       *string  `json:"inventory"`
	SaveLocal       *bool    `json:"saveLocal"`
	SaveArtifacts   *bool    `json:"saveArtifacts"`
	TimeoutSec      *float64 `json:"timeoutSec"`
	PollIntervalSec *float64 `json:"pollIntervalSec"`
}

// DecodeRunShowCommands parses raw arguments into a request with defaults applied.
func DecodeRunShowCommands(raw json.RawMessage) (awx.ShowCommandsRequest, error) {
	var args RunShowCommandsArgs
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return awx.ShowCommandsRequest{}, fmt.Errorf("%w: templateId is required", ErrInvalidArguments)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&args); err != nil {
		return awx.ShowCommandsRequest{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}
	return args.Request()
}

// Request converts decoded args into an awx request. Omitted durations stay zero
// so the client's configured poll timeout and interval apply.
func (a RunShowCommandsArgs) Request() (awx.ShowCommandsRequest, error) {
	if a.TemplateID == nil {
		return awx.ShowCommandsRequest{}, fmt.Errorf("%w: templateId is required", ErrInvalidArguments)
	}
	req := awx.ShowCommandsRequest{
		TemplateID:    *a.TemplateID,
		ShowCmds:      a.ShowCmds,
		Limit:         awx.DefaultLimit,
		SaveArtifacts: true,
	}
	if a.Limit != nil && strings.TrimSpace(*a.Limit) != "" {
		req.Limit = *a.Limit
	}
	if a.Inventory != nil {
		req.Inventory = *a.Inventory
	}
	if a.SaveLocal != nil {
		req.SaveLocal = *a.SaveLocal
	}
	if a.SaveArtifacts != nil {
		req.SaveArtifacts = *a.SaveArtifacts
	}
	if a.TimeoutSec != nil {
		d, err := seconds("timeoutSec", *a.TimeoutSec)
		if err != nil {
			return awx.ShowCommandsRequest{}, err
		}
		req.Timeout = d
	}
	if a.PollIntervalSec != nil {
		d, err := seconds("pollIntervalSec", *a.PollIntervalSec)
		if err != nil {
			return awx.ShowCommandsRequest{}, err
		}
		req.PollInterval = d
	}
	return req, nil
}

func seconds(field string, v float64) (time.Duration, error) {
	if v <= 0 {
		return 0, fmt.Errorf("%w: %s must be > 0", ErrInvalidArguments, field)
	}
	return time.Duration(v * float64(time.Second)), nil
}

func (t RunShowCommandsTool) Call(ctx context.Context, raw json.RawMessage) (any, error) {
	req, err := DecodeRunShowCommands(raw)
	if err != nil {
		return nil, err
	}
	return t.Controller.RunShowCommands(ctx, req)
}
