package apiclient

import (
	"context"
	"time"
)

// PollOutcome is the result of waiting for an entry's video to process.
type PollOutcome int

const (
	// Ready means the video reached the ready state.
	Ready PollOutcome = iota
	// Failed means the platform reported a processing error.
	Failed
	// StillProcessing means polling was exhausted without a terminal state.
	// The entry is durably saved and will converge via webhooks.
	StillProcessing
)

func (o PollOutcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "still processing"
	}
}

// PollConfig tunes WaitForReady. The zero value uses the defaults.
type PollConfig struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

func (c PollConfig) withDefaults() PollConfig {
	if c.InitialDelay == 0 {
		c.InitialDelay = 3 * time.Second
	}
	if c.Interval == 0 {
		c.Interval = 2 * time.Second
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 30
	}
	return c
}

// WaitForReady polls the entry's status until it is terminal or attempts run
// out. Transient status-call errors consume an attempt and polling continues;
// only context cancellation aborts early.
func (c *Client) WaitForReady(ctx context.Context, entryID string) (PollOutcome, *EntryStatus, error) {
	return c.WaitForReadyWith(ctx, entryID, PollConfig{})
}

// WaitForReadyWith is WaitForReady with explicit timing, used by tests.
func (c *Client) WaitForReadyWith(ctx context.Context, entryID string, cfg PollConfig) (PollOutcome, *EntryStatus, error) {
	cfg = cfg.withDefaults()

	if err := sleep(ctx, cfg.InitialDelay); err != nil {
		return StillProcessing, nil, err
	}

	var last *EntryStatus
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, cfg.Interval); err != nil {
				return StillProcessing, last, err
			}
		}

		status, err := c.CheckStatus(ctx, entryID)
		if err != nil {
			if ctx.Err() != nil {
				return StillProcessing, last, ctx.Err()
			}
			continue
		}
		last = status

		switch status.Status {
		case "ready":
			return Ready, status, nil
		case "error":
			return Failed, status, nil
		}
	}

	return StillProcessing, last, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
