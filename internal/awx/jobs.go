package awx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// Health probes the controller ping endpoint. Every failure is reported in the
// result; Health never returns an error.
func (c *Client) Health(ctx context.Context) HealthResult {
	resp, err := c.do(ctx, "ping", http.MethodGet, PathPing, nil, c.cfg.PingTimeout)
	if err != nil {
		return HealthResult{OK: false, Error: err.Error()}
	}
	if resp.statusCode != http.StatusOK {
		return HealthResult{OK: false, Status: string(resp.body)}
	}
	var status any
	if err := json.Unmarshal(resp.body, &status); err != nil {
		return HealthResult{OK: false, Error: fmt.Sprintf("awx: decode ping response: %v", err)}
	}
	return HealthResult{OK: true, Status: status}
}

// JobStatus fetches the job-detail record once. Non-2xx and transport failures
// are returned to the caller unchanged in kind.
func (c *Client) JobStatus(ctx context.Context, jobID int) (JobStatus, error) {
	if jobID <= 0 {
		return JobStatus{}, fmt.Errorf("%w: job id must be positive, got %d", ErrValidation, jobID)
	}
	resp, err := c.do(ctx, "job_status", http.MethodGet, jobPath(jobID), nil, c.cfg.StatusTimeout)
	if err != nil {
		return JobStatus{}, fmt.Errorf("awx: fetch job %d status: %w", jobID, err)
	}
	if err := resp.httpError(); err != nil {
		return JobStatus{}, err
	}
	var status JobStatus
	if err := json.Unmarshal(resp.body, &status); err != nil {
		return JobStatus{}, fmt.Errorf("%w: decode job %d status: %v", ErrProtocol, jobID, err)
	}
	return status, nil
}

// Launch starts templateID and returns the new job id.
func (c *Client) Launch(ctx context.Context, templateID int, payload LaunchPayload) (int, error) {
	if templateID <= 0 {
		return 0, fmt.Errorf("%w: template id must be positive, got %d", ErrValidation, templateID)
	}
	resp, err := c.do(ctx, "launch", http.MethodPost, launchPath(templateID), payload, c.cfg.LaunchTimeout)
	if err != nil {
		return 0, fmt.Errorf("awx: launch template %d: %w", templateID, err)
	}
	if err := resp.httpError(); err != nil {
		return 0, fmt.Errorf("%w: template %d: %w", ErrLaunch, templateID, err)
	}

	var out launchResponse
	if len(strings.TrimSpace(string(resp.body))) > 0 {
		if err := json.Unmarshal(resp.body, &out); err != nil {
			return 0, fmt.Errorf("%w: decode launch response: %v: %s", ErrProtocol, err, truncate(resp.body))
		}
	}
	if out.Job <= 0 {
		return 0, fmt.Errorf("%w: launch response missing job id: %s", ErrProtocol, truncate(resp.body))
	}
	return out.Job, nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
