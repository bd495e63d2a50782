// Package scheduling runs housekeeping jobs on cron schedules.
package scheduling

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Action identifies a kind of scheduled job.
type Action string

// ActionAuditRetention prunes the audit log according to its retention policy.
const ActionAuditRetention Action = "audit_retention"

// Task binds a named schedule to an action.
type Task struct {
	Name     string
	Schedule string // cron expression "0 3 * * *", descriptor "@daily", or duration "30m"
	Action   Action
}

// TaskStatus describes a registered task for status reporting.
type TaskStatus struct {
	Name     string    `json:"name"`
	Action   Action    `json:"action"`
	Schedule string    `json:"schedule"`
	Next     time.Time `json:"next,omitempty"`
	LastRun  time.Time `json:"last_run,omitempty"`
	LastErr  string    `json:"last_error,omitempty"`
}

type entry struct {
	id      cron.EntryID
	task    Task
	lastRun time.Time
	lastErr string
}

// Scheduler runs registered actions on their schedules.
type Scheduler struct {
	cron    *cron.Cron
	actions map[Action]func(ctx context.Context) error
	entries map[string]*entry
	timeout time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a scheduler. Each job run is bounded by a five minute timeout.
func New(logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		actions: make(map[Action]func(ctx context.Context) error),
		entries: make(map[string]*entry),
		timeout: 5 * time.Minute,
		logger:  logger,
	}
}

// RegisterAction registers the handler for an action.
func (s *Scheduler) RegisterAction(action Action, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions[action] = fn
}

// AddTask schedules task. The action must already be registered and the
// name must be unique.
func (s *Scheduler) AddTask(task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.actions[task.Action]; !ok {
		return fmt.Errorf("scheduler: unknown action %q for task %q", task.Action, task.Name)
	}
	if _, dup := s.entries[task.Name]; dup {
		return fmt.Errorf("scheduler: task %q already exists", task.Name)
	}
	schedule, err := ParseSchedule(task.Schedule)
	if err != nil {
		return fmt.Errorf("scheduler: task %q: %w", task.Name, err)
	}

	e := &entry{task: task}
	e.id = s.cron.Schedule(schedule, cron.FuncJob(func() { s.run(e) }))
	s.entries[task.Name] = e

	s.logger.Info("task scheduled", "name", task.Name, "schedule", task.Schedule, "action", string(task.Action))
	return nil
}

func (s *Scheduler) run(e *entry) {
	s.mu.Lock()
	ctx := s.ctx
	fn := s.actions[e.task.Action]
	s.mu.Unlock()

	if ctx == nil {
		s.logger.Debug("scheduler stopped, skipping task", "task", e.task.Name)
		return
	}
	_ = s.execute(ctx, e, fn)
}

func (s *Scheduler) execute(ctx context.Context, e *entry, fn func(context.Context) error) error {
	taskCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	err := fn(taskCtx)

	s.mu.Lock()
	e.lastRun = start
	e.lastErr = ""
	if err != nil {
		e.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.logger.Warn("scheduled task failed", "task", e.task.Name, "error", err, "duration", time.Since(start))
		return err
	}
	s.logger.Info("scheduled task completed", "task", e.task.Name, "duration", time.Since(start))
	return nil
}

// RunNow executes the named task immediately on the calling goroutine.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	var fn func(context.Context) error
	if ok {
		fn = s.actions[e.task.Action]
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("scheduler: task %q not found", name)
	}
	return s.execute(ctx, e, fn)
}

// Tasks reports every scheduled task sorted by name.
func (s *Scheduler) Tasks() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.entries))
	for _, e := range s.entries {
		st := TaskStatus{
			Name:     e.task.Name,
			Action:   e.task.Action,
			Schedule: e.task.Schedule,
			LastRun:  e.lastRun,
			LastErr:  e.lastErr,
		}
		if s.started {
			st.Next = s.cron.Entry(e.id).Next
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Start begins running scheduled tasks. Jobs receive a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.ctx = nil
	s.started = false
	s.mu.Unlock()

	<-s.cron.Stop().Done()
}

// ParseSchedule parses a cron expression or descriptor, falling back to a
// positive duration for fixed intervals.
func ParseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("empty schedule")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if sched, err := parser.Parse(schedule); err == nil {
		return sched, nil
	}

	dur, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("not a valid cron expression or duration: %q", schedule)
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration must be positive: %q", schedule)
	}
	return constantDelay(dur), nil
}

// constantDelay fires at a fixed interval. Unlike cron.Every it keeps
// sub-second precision.
type constantDelay time.Duration

func (d constantDelay) Next(t time.Time) time.Time {
	return t.Add(time.Duration(d))
}
