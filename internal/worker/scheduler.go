package worker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/martinsuchenak/lifecycled/internal/log"
)

var (
	ErrTaskExists   = errors.New("task already registered")
	ErrTaskNotFound = errors.New("task not found")
)

// Task status values
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// TaskHandler is the function executed by a task
type TaskHandler func(ctx context.Context, taskID string) error

// Task is a cron-scheduled background job
type Task struct {
	ID       string
	Name     string
	Schedule string // standard cron expression or descriptor such as "@every 1h"
	Handler  TaskHandler

	status  string
	lastRun *time.Time
	lastErr error
	entry   cron.EntryID
}

// TaskInfo is a point-in-time view of a task
type TaskInfo struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Schedule  string     `json:"schedule"`
	Status    string     `json:"status"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	NextRun   time.Time  `json:"next_run,omitzero"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler manages background tasks on top of a cron runner
type Scheduler struct {
	mu      sync.RWMutex
	tasks   map[string]*Task
	cron    *cron.Cron
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// cronLogger routes cron's own messages through the application log
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	log.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	log.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

// NewScheduler creates a new scheduler. Schedules are evaluated in loc, or
// the local zone when loc is nil.
func NewScheduler(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		tasks: make(map[string]*Task),
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger{}),
			cron.WithChain(cron.Recover(cronLogger{})),
		),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}

	s.running = true
	s.cron.Start()
	log.Info("Starting background scheduler", "tasks", len(s.tasks))
}

// Stop gracefully stops the scheduler and waits for running tasks
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	log.Info("Stopping background scheduler")
	s.cancel()
	<-s.cron.Stop().Done()
	s.wg.Wait()
}

// RegisterTask validates the task schedule and adds it to the cron runner
func (s *Scheduler) RegisterTask(task *Task) error {
	if task.ID == "" || task.Handler == nil {
		return fmt.Errorf("task needs an id and a handler")
	}
	if _, err := cron.ParseStandard(task.Schedule); err != nil {
		return fmt.Errorf("invalid schedule %q for task %s: %w", task.Schedule, task.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("%w: %s", ErrTaskExists, task.ID)
	}

	id := task.ID
	entry, err := s.cron.AddFunc(task.Schedule, func() { s.trigger(id) })
	if err != nil {
		return fmt.Errorf("scheduling task %s: %w", task.ID, err)
	}
	task.entry = entry
	task.status = StatusPending
	s.tasks[task.ID] = task
	log.Info("Task registered", "task_id", task.ID, "schedule", task.Schedule)
	return nil
}

// RemoveTask unschedules a task. A run in progress is not interrupted.
func (s *Scheduler) RemoveTask(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return ErrTaskNotFound
	}
	s.cron.Remove(task.entry)
	delete(s.tasks, id)
	return nil
}

// RunNow starts a task immediately, outside its schedule
func (s *Scheduler) RunNow(id string) error {
	s.mu.RLock()
	_, ok := s.tasks[id]
	s.mu.RUnlock()
	if !ok {
		return ErrTaskNotFound
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.trigger(id)
	}()
	return nil
}

// Tasks lists registered tasks sorted by id
func (s *Scheduler) Tasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]TaskInfo, 0, len(s.tasks))
	for _, t := range s.tasks {
		info := TaskInfo{
			ID:       t.ID,
			Name:     t.Name,
			Schedule: t.Schedule,
			Status:   t.status,
			LastRun:  t.lastRun,
			NextRun:  s.cron.Entry(t.entry).Next,
		}
		if t.lastErr != nil {
			info.LastError = t.lastErr.Error()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// trigger runs a task unless it is already running
func (s *Scheduler) trigger(id string) {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if task.status == StatusRunning {
		s.mu.Unlock()
		log.Warn("Task still running, skipping", "task_id", id)
		return
	}
	task.status = StatusRunning
	now := time.Now()
	task.lastRun = &now
	s.mu.Unlock()

	log.Info("Running task", "task_id", task.ID, "name", task.Name)
	err := task.Handler(s.ctx, task.ID)

	s.mu.Lock()
	defer s.mu.Unlock()

	task.lastErr = err
	if err != nil {
		task.status = StatusFailed
		log.Error("Task failed", "task_id", task.ID, "error", err, "duration", time.Since(now))
	} else {
		task.status = StatusCompleted
		log.Info("Task completed", "task_id", task.ID, "duration", time.Since(now))
	}
}
