// Package cron runs named background jobs on fixed intervals. It is
// deliberately small: no cron expressions, no persistence, one goroutine
// per job.
package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Job is a recurring background task.
type Job struct {
	Name        string
	Description string
	Interval    time.Duration
	Fn          func(ctx context.Context) error
}

type jobState struct {
	Job
	mu        sync.Mutex
	running   bool
	lastRunAt time.Time
	lastErr   error
}

// Snapshot is a point-in-time view of a job, for diagnostics.
type Snapshot struct {
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Running     bool       `json:"running"`
	LastRunAt   *time.Time `json:"lastRunAt,omitempty"`
	LastError   string     `json:"lastError,omitempty"`
}

// Scheduler owns a set of interval jobs.
type Scheduler struct {
	mu   sync.RWMutex
	jobs map[string]*jobState
	log  *zap.Logger
}

func New(log *zap.Logger) *Scheduler {
	return &Scheduler{jobs: make(map[string]*jobState), log: log}
}

// Register adds a job. Call before Start.
func (s *Scheduler) Register(job Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.Name] = &jobState{Job: job}
}

// Start launches one ticker goroutine per registered job. Jobs stop when the
// context is cancelled; the first tick fires one full interval after Start.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, js := range s.jobs {
		go s.loop(ctx, js)
	}
}

func (s *Scheduler) loop(ctx context.Context, js *jobState) {
	ticker := time.NewTicker(js.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.execute(ctx, js)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, js *jobState) {
	js.mu.Lock()
	if js.running {
		// Previous run still going; skip this tick rather than overlap.
		js.mu.Unlock()
		return
	}
	js.running = true
	js.mu.Unlock()

	started := time.Now()
	err := js.Fn(ctx)

	js.mu.Lock()
	js.running = false
	js.lastRunAt = started
	js.lastErr = err
	js.mu.Unlock()

	if err != nil {
		s.log.Warn("cron job failed",
			zap.String("job", js.Name),
			zap.Duration("took", time.Since(started)),
			zap.Error(err),
		)
		return
	}
	s.log.Debug("cron job finished",
		zap.String("job", js.Name),
		zap.Duration("took", time.Since(started)),
	)
}

// Run triggers a job immediately, off-schedule. Non-blocking.
func (s *Scheduler) Run(ctx context.Context, name string) error {
	s.mu.RLock()
	js, ok := s.jobs[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	go s.execute(ctx, js)
	return nil
}

// List snapshots every registered job.
func (s *Scheduler) List() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]Snapshot, 0, len(s.jobs))
	for _, js := range s.jobs {
		js.mu.Lock()
		snap := Snapshot{
			Name:        js.Name,
			Description: js.Description,
			Running:     js.running,
		}
		if !js.lastRunAt.IsZero() {
			t := js.lastRunAt
			snap.LastRunAt = &t
		}
		if js.lastErr != nil {
			snap.LastError = js.lastErr.Error()
		}
		items = append(items, snap)
	}
	return items
}
