package maintenance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job does one round of housekeeping and reports how many items it removed.
type Job func(ctx context.Context) (int64, error)

type entry struct {
	name string
	job  Job
}

// Scheduler runs housekeeping jobs on cron schedules.
type Scheduler struct {
	mu      sync.Mutex
	cron    *cron.Cron
	entries []entry
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		ctx:    ctx,
		cancel: cancel,
		logger: logger.With("component", "maintenance"),
	}
}

// Add registers job under a standard five-field cron spec or a descriptor
// such as "@hourly" or "@every 10m".
func (s *Scheduler) Add(name, spec string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := entry{name: name, job: job}
	if _, err := s.cron.AddFunc(spec, func() { s.run(s.ctx, e) }); err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.entries = append(s.entries, e)
	return nil
}

// RunAll runs every registered job once, in registration order.
func (s *Scheduler) RunAll(ctx context.Context) {
	s.mu.Lock()
	entries := append([]entry(nil), s.entries...)
	s.mu.Unlock()

	for _, e := range entries {
		s.run(ctx, e)
	}
}

func (s *Scheduler) run(ctx context.Context, e entry) {
	start := time.Now()
	n, err := e.job(ctx)
	if err != nil {
		s.logger.Error("job failed", "job", e.name, "error", err)
		return
	}
	s.logger.Debug("job done", "job", e.name, "removed", n, "duration", time.Since(start))
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling, cancels running jobs, and waits for them to return.
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}

// SessionPurger deletes expired sessions.
type SessionPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

func PurgeSessions(p SessionPurger) Job {
	return p.DeleteExpired
}

// Pruner drops stale in-memory state.
type Pruner interface {
	Cleanup() int
}

func Prune(p Pruner) Job {
	return func(context.Context) (int64, error) {
		return int64(p.Cleanup()), nil
	}
}
