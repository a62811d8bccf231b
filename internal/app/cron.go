package app

import (
	"context"
	"time"

	pkgcron "github.com/echo-journal/core/internal/pkg/cron"
)

// registerCronJobs registers all scheduled background jobs.
func (a *App) registerCronJobs() {
	// Webhook deliveries can be missed; sweep non-terminal entries so they
	// converge even if the client never polls again.
	a.sched.Register(pkgcron.Job{
		Name:        "reconcile_stale_entries",
		Description: "re-check entries stuck in uploading/processing against the video platform",
		Interval:    10 * time.Minute,
		Fn: func(ctx context.Context) error {
			return a.ingestSvc.SweepStale(ctx)
		},
	})
}
