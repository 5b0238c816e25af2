package awx

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Job statuses after which the controller performs no further transition.
const (
	StatusSuccessful = "successful"
	StatusFailed     = "failed"
	StatusError      = "error"
	StatusCanceled   = "canceled"
)

// Phase names the launch/poll state machine position, used in logs.
type Phase string

const (
	PhaseLaunching Phase = "LAUNCHING"
	PhasePolling   Phase = "POLLING"
	PhaseTimedOut  Phase = "TIMED_OUT"
)

const (
	DefaultLimit        = "all"
	DefaultPollTimeout  = 300 * time.Second
	DefaultPollInterval = 2 * time.Second
)

// IsTerminal reports whether status is one of the controller's final job states.
func IsTerminal(status string) bool {
	switch status {
	case StatusSuccessful, StatusFailed, StatusError, StatusCanceled:
		return true
	default:
		return false
	}
}

// ShowCommandsRequest launches a job template that runs show commands on network devices.
type ShowCommandsRequest struct {
	TemplateID    int
	ShowCmds      []string
	Limit         string
	Inventory     string
	SaveLocal     bool
	SaveArtifacts bool
	Timeout       time.Duration
	PollInterval  time.Duration
}

// NewShowCommandsRequest returns a request carrying the controller-side defaults.
func NewShowCommandsRequest(templateID int, cmds ...string) ShowCommandsRequest {
	return ShowCommandsRequest{
		TemplateID:    templateID,
		ShowCmds:      cmds,
		Limit:         DefaultLimit,
		SaveArtifacts: true,
		Timeout:       DefaultPollTimeout,
		PollInterval:  DefaultPollInterval,
	}
}

func (r ShowCommandsRequest) withDefaults(timeout, interval time.Duration) ShowCommandsRequest {
	if strings.TrimSpace(r.Limit) == "" {
		r.Limit = DefaultLimit
	}
	if r.Timeout == 0 {
		r.Timeout = timeout
	}
	if r.PollInterval == 0 {
		r.PollInterval = interval
	}
	return r
}

func (r ShowCommandsRequest) Validate() error {
	if len(r.ShowCmds) == 0 {
		return fmt.Errorf("%w: show_cmds must not be empty", ErrValidation)
	}
	if r.TemplateID <= 0 {
		return fmt.Errorf("%w: template id must be positive, got %d", ErrValidation, r.TemplateID)
	}
	if r.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", ErrValidation)
	}
	if r.PollInterval <= 0 {
		return fmt.Errorf("%w: poll interval must be positive", ErrValidation)
	}
	return nil
}

func (r ShowCommandsRequest) payload() LaunchPayload {
	cmds := make([]string, len(r.ShowCmds))
	copy(cmds, r.ShowCmds)
	return LaunchPayload{
		ExtraVars: ExtraVars{
			ShowCmds:      cmds,
			SaveLocal:     r.SaveLocal,
			SaveArtifacts: r.SaveArtifacts,
			Limit:         r.Limit,
		},
		Inventory: strings.TrimSpace(r.Inventory),
	}
}

// ExtraVars are passed to the playbook as controller extra variables.
type ExtraVars struct {
	ShowCmds      []string `json:"show_cmds"`
	SaveLocal     bool     `json:"save_local"`
	SaveArtifacts bool     `json:"save_artifacts"`
	Limit         string   `json:"limit"`
}

// LaunchPayload is the body of POST /api/v2/job_templates/{id}/launch/.
type LaunchPayload struct {
	ExtraVars ExtraVars `json:"extra_vars"`
	Inventory string    `json:"inventory,omitempty"`
}

type launchResponse struct {
	Job int `json:"job"`
}

// JobStatus is the decoded job-detail record. Raw keeps every field the controller sent.
type JobStatus struct {
	ID        int
	Status    string
	Artifacts map[string]any
	Raw       map[string]json.RawMessage
}

func (j *JobStatus) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := JobStatus{Raw: raw}
	if v, ok := raw["id"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &out.ID); err != nil {
			return fmt.Errorf("decode id: %w", err)
		}
	}
	if v, ok := raw["status"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &out.Status); err != nil {
			return fmt.Errorf("decode status: %w", err)
		}
	}
	if v, ok := raw["artifacts"]; ok && !isNull(v) {
		if err := json.Unmarshal(v, &out.Artifacts); err != nil {
			return fmt.Errorf("decode artifacts: %w", err)
		}
	}
	*j = out
	return nil
}

func isNull(v json.RawMessage) bool {
	return strings.TrimSpace(string(v)) == "null"
}

// HealthResult is the outcome of a liveness probe. It never carries a Go error.
type HealthResult struct {
	OK     bool
	Status any
	Error  string
}

func (h HealthResult) MarshalJSON() ([]byte, error) {
	if h.Error != "" {
		return json.Marshal(struct {
			OK    bool   `json:"ok"`
			Error string `json:"error"`
		}{h.OK, h.Error})
	}
	return json.Marshal(struct {
		OK     bool `json:"ok"`
		Status any  `json:"status"`
	}{h.OK, h.Status})
}

// RunResult is the outcome of a launch and poll. TimedOut results carry the last
// observed status, which may still be non-terminal.
type RunResult struct {
	JobID     int
	Status    string
	Artifacts map[string]any
	StdoutURL string
	TimedOut  bool
}

func (r RunResult) MarshalJSON() ([]byte, error) {
	if r.TimedOut {
		return json.Marshal(struct {
			JobID   int    `json:"jobId"`
			Status  string `json:"status"`
			Timeout bool   `json:"timeout"`
		}{r.JobID, r.Status, true})
	}
	artifacts := r.Artifacts
	if artifacts == nil {
		artifacts = map[string]any{}
	}
	return json.Marshal(struct {
		JobID     int            `json:"jobId"`
		Status    string         `json:"status"`
		Artifacts map[string]any `json:"artifacts"`
		StdoutURL string         `json:"stdoutUrl"`
	}{r.JobID, r.Status, artifacts, r.StdoutURL})
}
