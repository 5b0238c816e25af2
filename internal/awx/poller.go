package awx

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/mcp-awx/internal/observability"
)

// RunShowCommands launches the template and blocks until the job reaches a
// terminal status or req.Timeout elapses.
//
// LAUNCHING -> POLLING -> {successful, failed, error, canceled, TIMED_OUT}
//
// A timeout is not an error: the result has TimedOut set and carries the status
// seen by one final fetch after the deadline. Launch and fetch failures abort
// the whole call; fetches are retried only when Config.Retry enables it.
func (c *Client) RunShowCommands(ctx context.Context, req ShowCommandsRequest) (RunResult, error) {
	req = req.withDefaults(c.cfg.PollTimeout, c.cfg.PollInterval)
	if err := req.Validate(); err != nil {
		return RunResult{}, err
	}
	creds, err := c.credentials()
	if err != nil {
		return RunResult{}, err
	}

	logger := c.logger.With().Int("template_id", req.TemplateID).Logger()
	logger.Info().
		Str("phase", string(PhaseLaunching)).
		Int("commands", len(req.ShowCmds)).
		Str("limit", req.Limit).
		Msg("awx.RunShowCommands launching")

	jobID, err := c.Launch(ctx, req.TemplateID, req.payload())
	if err != nil {
		return RunResult{}, err
	}
	logger = logger.With().Int("job_id", jobID).Logger()

	deadline := c.now().Add(req.Timeout)
	logger.Info().
		Str("phase", string(PhasePolling)).
		Dur("timeout", req.Timeout).
		Dur("interval", req.PollInterval).
		Msg("awx.RunShowCommands polling")

	polls := 0
	for c.now().Before(deadline) {
		status, err := c.fetchStatus(ctx, jobID, deadline)
		if err != nil {
			return RunResult{}, err
		}
		polls++
		if IsTerminal(status.Status) {
			observability.RecordJobResult(status.Status, false)
			logger.Info().Str("status", status.Status).Int("polls", polls).Msg("awx.RunShowCommands finished")
			artifacts := status.Artifacts
			if artifacts == nil {
				artifacts = map[string]any{}
			}
			return RunResult{
				JobID:     jobID,
				Status:    status.Status,
				Artifacts: artifacts,
				StdoutURL: StdoutURL(creds.BaseURL, jobID),
			}, nil
		}
		logger.Debug().Str("status", status.Status).Int("polls", polls).Msg("awx.RunShowCommands pending")
		if err := c.sleep(ctx, req.PollInterval); err != nil {
			return RunResult{}, err
		}
	}

	status, err := c.fetchStatus(ctx, jobID, time.Time{})
	if err != nil {
		return RunResult{}, err
	}
	observability.RecordJobResult(status.Status, true)
	logger.Warn().
		Str("phase", string(PhaseTimedOut)).
		Str("status", status.Status).
		Int("polls", polls+1).
		Msg("awx.RunShowCommands deadline reached")
	return RunResult{JobID: jobID, Status: status.Status, TimedOut: true}, nil
}

// fetchStatus is JobStatus plus the optional bounded retry. A retry never
// sleeps past deadline; a zero deadline allows a single attempt.
func (c *Client) fetchStatus(ctx context.Context, jobID int, deadline time.Time) (JobStatus, error) {
	attempts := 1
	if c.cfg.Retry.enabled() && !deadline.IsZero() {
		attempts = c.cfg.Retry.MaxAttempts
	}
	for attempt := 1; ; attempt++ {
		status, err := c.JobStatus(ctx, jobID)
		if err == nil {
			return status, nil
		}
		if attempt >= attempts || !retryable(err) || ctx.Err() != nil {
			return JobStatus{}, err
		}
		delay := NextBackoffDelay(c.cfg.Retry.Backoff, attempt, nil)
		if c.now().Add(delay).After(deadline) {
			return JobStatus{}, err
		}
		c.logger.Warn().
			Int("job_id", jobID).
			Int("attempt", attempt).
			Dur("delay", delay).
			Err(err).
			Msg("awx.fetchStatus retrying")
		if err := c.sleep(ctx, delay); err != nil {
			return JobStatus{}, err
		}
	}
}

// StdoutURL is the controller UI page showing the job output.
func StdoutURL(base string, jobID int) string {
	return URL(base, fmt.Sprintf("/#/jobs/playbook/%d/output", jobID))
}
