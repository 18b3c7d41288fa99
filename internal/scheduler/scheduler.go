// Package scheduler runs named, periodic polling jobs. Each job runs once
// immediately and then on every tick until it is stopped. A failing run is
// logged and counted; the job keeps its cadence with no backoff.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/atmx/userpanel/internal/metrics"
)

// ErrInvalidInterval is returned by Start for non-positive intervals.
var ErrInvalidInterval = errors.New("scheduler: interval must be positive")

// Func is one run of a job. ctx is cancelled when the job is stopped or
// replaced.
type Func func(ctx context.Context) error

type job struct {
	cancel context.CancelFunc
}

// Scheduler owns a set of named jobs. At most one job runs per name.
type Scheduler struct {
	mu     sync.Mutex
	parent context.Context
	jobs   map[string]*job
	wg     sync.WaitGroup
}

// New creates a scheduler whose jobs are children of parent.
func New(parent context.Context) *Scheduler {
	if parent == nil {
		parent = context.Background()
	}
	return &Scheduler{
		parent: parent,
		jobs:   make(map[string]*job),
	}
}

// Start schedules fn under name and runs it once right away. A job already
// running under name is cancelled first.
func (s *Scheduler) Start(name string, interval time.Duration, fn Func) error {
	return s.start(name, interval, fn, true)
}

// Schedule is Start without the immediate run: the first tick happens
// after one interval.
func (s *Scheduler) Schedule(name string, interval time.Duration, fn Func) error {
	return s.start(name, interval, fn, false)
}

func (s *Scheduler) start(name string, interval time.Duration, fn Func, immediate bool) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %s=%s", ErrInvalidInterval, name, interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.jobs[name]; ok {
		prev.cancel()
		delete(s.jobs, name)
	}

	ctx, cancel := context.WithCancel(s.parent)
	s.jobs[name] = &job{cancel: cancel}
	metrics.ActivePollJobs.Set(float64(len(s.jobs)))

	s.wg.Add(1)
	go s.loop(ctx, name, interval, fn, immediate)

	slog.Debug("poll job started", "job", name, "interval", interval)
	return nil
}

// Stop cancels the job named name. It reports whether such a job existed.
func (s *Scheduler) Stop(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	j.cancel()
	delete(s.jobs, name)
	metrics.ActivePollJobs.Set(float64(len(s.jobs)))
	return true
}

// StopAll cancels every job. It is safe to call repeatedly and with no
// jobs running. It returns the number of jobs stopped.
func (s *Scheduler) StopAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.jobs)
	for name, j := range s.jobs {
		j.cancel()
		delete(s.jobs, name)
	}
	metrics.ActivePollJobs.Set(0)
	if n > 0 {
		slog.Debug("poll jobs stopped", "count", n)
	}
	return n
}

// Active returns the names of running jobs, sorted.
func (s *Scheduler) Active() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Wait blocks until every job goroutine has returned. Call after StopAll.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration, fn Func, immediate bool) {
	defer s.wg.Done()

	if immediate {
		run(ctx, name, fn)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(ctx, name, fn)
		}
	}
}

// run executes one tick, turning panics into logged failures.
func run(ctx context.Context, name string, fn Func) {
	if ctx.Err() != nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			metrics.PollTicks.WithLabelValues(name, "panic").Inc()
			slog.Error("poll job panicked", "job", name, "panic", r)
		}
	}()

	if err := fn(ctx); err != nil {
		if ctx.Err() != nil {
			metrics.PollTicks.WithLabelValues(name, "cancelled").Inc()
			return
		}
		metrics.PollTicks.WithLabelValues(name, "error").Inc()
		slog.Warn("poll job failed", "job", name, "err", err)
		return
	}
	metrics.PollTicks.WithLabelValues(name, "ok").Inc()
}
