package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler runs jobs on cron schedules. A tick that arrives while the
// previous run of the same job is still going is skipped.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	timeout time.Duration

	mu      sync.RWMutex
	entries map[string]*entry
	ctx     context.Context
	cancel  context.CancelFunc
}

type entry struct {
	id   cron.EntryID
	job  Job
	info Info
}

// Config configures a Scheduler
type Config struct {
	// Location interprets schedules; nil means the local zone
	Location *time.Location
	// Timeout bounds every run when positive
	Timeout time.Duration
}

// NewScheduler creates a stopped scheduler
func NewScheduler(config Config, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := config.Location
	if loc == nil {
		loc = time.Local
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger:  logger,
		timeout: config.Timeout,
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Add schedules job under name. schedule is a five-field cron expression or
// a descriptor such as "@hourly" or "@every 30m".
func (s *Scheduler) Add(name, schedule string, job Job) error {
	if name == "" {
		return fmt.Errorf("job name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entries[name]; ok {
		return fmt.Errorf("job %s is already scheduled", name)
	}
	id, err := s.cron.AddFunc(schedule, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, name, err)
	}
	s.entries[name] = &entry{id: id, job: job, info: Info{Name: name, Schedule: schedule, Status: JobStatusPending}}
	return nil
}

// RunNow runs the named job on the calling goroutine and returns its error
func (s *Scheduler) RunNow(name string) error {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job not found: %s", name)
	}
	return s.run(name, e.job)
}

// Start runs the scheduler in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("job scheduler started", zap.Int("jobs", len(s.Jobs())))
}

// Stop stops scheduling, cancels running jobs and waits for them until
// ctx ends
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.logger.Info("job scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jobs lists the scheduled jobs by name
func (s *Scheduler) Jobs() []Info {
	next := make(map[cron.EntryID]time.Time)
	for _, e := range s.cron.Entries() {
		next[e.ID] = e.Next
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Info, 0, len(s.entries))
	for _, e := range s.entries {
		info := e.info
		info.NextRun = next[e.id]
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) run(name string, job Job) error {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	s.update(name, func(info *Info) {
		info.Status = JobStatusRunning
		info.LastRun = started
	})

	err := safeRun(ctx, job)

	s.update(name, func(info *Info) {
		info.Runs++
		if err != nil {
			info.Status = JobStatusFailed
			info.LastError = err.Error()
			return
		}
		info.Status = JobStatusCompleted
		info.LastError = ""
	})

	if err != nil {
		s.logger.Error("job failed",
			zap.String("job", name), zap.Duration("duration", time.Since(started)), zap.Error(err))
		return err
	}
	s.logger.Debug("job completed", zap.String("job", name), zap.Duration("duration", time.Since(started)))
	return nil
}

func safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

func (s *Scheduler) update(name string, fn func(*Info)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[name]; ok {
		fn(&e.info)
	}
}
