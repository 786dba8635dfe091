// Package scheduler runs independent refresh jobs at fixed intervals.
//
// Each job has its own goroutine. An iteration runs the job, records the
// outcome, then sleeps the job's interval on the scheduler clock. The interval
// is measured from the end of one run to the start of the next, so a slow job
// never overlaps itself. A failing or panicking job only affects its own status.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"worldmonitor/internal/metrics"
)

var (
	// ErrUnknownJob is returned for a job name that was never added.
	ErrUnknownJob = errors.New("unknown job")
	// ErrDuplicateJob is returned when a name is added twice.
	ErrDuplicateJob = errors.New("duplicate job")
)

// Job is one periodic unit of work.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means the run is bounded only by Stop.
	Timeout time.Duration
	Run     func(ctx context.Context) error
}

// State of a job. A job is Running during a run and Idle otherwise;
// Succeeded and Failed describe the outcome of the last run.
type State string

const (
	Idle      State = "idle"
	Running   State = "running"
	Succeeded State = "succeeded"
	Failed    State = "failed"
)

// Status is a snapshot of one job.
type Status struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"interval"`
	State     State         `json:"state"`
	Outcome   State         `json:"last_outcome,omitempty"`
	Runs      int           `json:"runs"`
	Failures  int           `json:"failures"`
	LastRunID string        `json:"last_run_id,omitempty"`
	LastStart time.Time     `json:"last_start,omitzero"`
	LastEnd   time.Time     `json:"last_end,omitzero"`
	LastError string        `json:"last_error,omitempty"`
	NextRun   time.Time     `json:"next_run,omitzero"`
}

type entry struct {
	job Job

	// runMu serializes iterations of this job
	runMu sync.Mutex

	mu     sync.Mutex
	status Status
}

// Scheduler owns job registration, ticking and cancellation.
type Scheduler struct {
	clock      clock.Clock
	logger     *slog.Logger
	runOnStart bool

	mu      sync.Mutex
	jobs    map[string]*entry
	order   []string
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Option is a function that sets a value in a Scheduler.
type Option func(*Scheduler)

// WithClock sets the clock used for sleeping between runs.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRunOnStart makes each job run once immediately when it starts instead
// of first sleeping its interval.
func WithRunOnStart(v bool) Option {
	return func(s *Scheduler) { s.runOnStart = v }
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		clock:  clock.New(),
		logger: slog.Default(),
		jobs:   make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a job. Jobs added while the scheduler is running start at once.
func (s *Scheduler) Add(job Job) error {
	if job.Name == "" {
		return errors.New("job name is required")
	}
	if job.Interval <= 0 {
		return fmt.Errorf("job %s: interval must be positive", job.Name)
	}
	if job.Run == nil {
		return fmt.Errorf("job %s: run function is required", job.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.Name)
	}
	e := &entry{job: job, status: Status{Name: job.Name, Interval: job.Interval, State: Idle}}
	s.jobs[job.Name] = e
	s.order = append(s.order, job.Name)

	if s.running {
		s.spawn(s.ctx, e)
	}
	return nil
}

// Start launches one loop per job. It returns immediately; the loops run
// until ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.ctx = runCtx
	s.cancel = cancel
	s.running = true

	for _, name := range s.order {
		s.spawn(runCtx, s.jobs[name])
	}
	s.logger.Info("scheduler started", "jobs", len(s.order))
	return nil
}

// Stop cancels all loops and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// RunOnce runs a single iteration of the named job synchronously and returns its error.
func (s *Scheduler) RunOnce(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e)
}

// RunAll runs every job once, sequentially in registration order, and
// returns the combined failures.
func (s *Scheduler) RunAll(ctx context.Context) error {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.order))
	for _, name := range s.order {
		entries = append(entries, s.jobs[name])
	}
	s.mu.Unlock()

	var errs *multierror.Error
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			errs = multierror.Append(errs, err)
			break
		}
		if err := s.run(ctx, e); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", e.job.Name, err))
		}
	}
	return errs.ErrorOrNil()
}

// Status returns a snapshot of every job sorted by name.
func (s *Scheduler) Status() []Status {
	s.mu.Lock()
	entries := make([]*entry, 0, len(s.jobs))
	for _, e := range s.jobs {
		entries = append(entries, e)
	}
	s.mu.Unlock()

	out := make([]Status, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, e.status)
		e.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// spawn must be called with s.mu held.
func (s *Scheduler) spawn(ctx context.Context, e *entry) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, e)
	}()
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	if s.runOnStart {
		_ = s.run(ctx, e)
	}
	for {
		e.mu.Lock()
		e.status.NextRun = s.clock.Now().Add(e.job.Interval)
		e.mu.Unlock()

		timer := s.clock.Timer(e.job.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		_ = s.run(ctx, e)
	}
}

// run performs one Idle → Running → Succeeded|Failed → Idle cycle.
func (s *Scheduler) run(ctx context.Context, e *entry) (err error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	runID := uuid.NewString()
	start := s.clock.Now()

	e.mu.Lock()
	e.status.State = Running
	e.status.LastRunID = runID
	e.status.LastStart = start
	e.mu.Unlock()

	log := s.logger.With("job", e.job.Name, "run_id", runID)
	log.Debug("job started")

	err = s.invoke(ctx, e.job)

	end := s.clock.Now()
	duration := end.Sub(start)

	e.mu.Lock()
	e.status.Runs++
	e.status.LastEnd = end
	e.status.State = Idle
	if err != nil {
		e.status.Outcome = Failed
		e.status.Failures++
		e.status.LastError = err.Error()
	} else {
		e.status.Outcome = Succeeded
		e.status.LastError = ""
	}
	e.mu.Unlock()

	metrics.RecordJobRun(e.job.Name, err == nil, duration)
	if err != nil {
		log.Error("job failed", "duration", duration, "error", err)
	} else {
		log.Info("job succeeded", "duration", duration)
	}
	return err
}

func (s *Scheduler) invoke(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	if job.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, job.Timeout)
		defer cancel()
	}
	return job.Run(ctx)
}
