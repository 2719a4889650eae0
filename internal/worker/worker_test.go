package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Run(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 3)
	pool.Start()
	defer pool.Stop()

	var calls atomic.Int32
	boom := errors.New("boom")
	jobs := make([]Job, 10)
	for i := range jobs {
		fail := i == 4
		jobs[i] = Job{ID: "job", Handler: func(ctx context.Context) error {
			calls.Add(1)
			if fail {
				return boom
			}
			return nil
		}}
	}

	errs := pool.Run(context.Background(), jobs)
	if len(errs) != len(jobs) {
		t.Fatalf("Run() returned %d results, want %d", len(errs), len(jobs))
	}
	for i, err := range errs {
		if i == 4 {
			if !errors.Is(err, boom) {
				t.Errorf("errs[4] = %v, want boom", err)
			}
			continue
		}
		if err != nil {
			t.Errorf("errs[%d] = %v, want nil", i, err)
		}
	}
	if got := calls.Load(); got != 10 {
		t.Errorf("handlers called %d times, want 10", got)
	}
}

func TestWorkerPool_SubmitAfterStop(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1)
	pool.Start()
	pool.Stop()
	pool.Stop()

	err := pool.Submit(Job{ID: "late", Handler: func(context.Context) error { return nil }})
	if !errors.Is(err, ErrPoolStopped) {
		t.Errorf("Submit() error = %v, want ErrPoolStopped", err)
	}
}

func TestWorkerPool_MinimumWorkers(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 0)
	if pool.maxWorkers != 1 {
		t.Errorf("maxWorkers = %d, want 1", pool.maxWorkers)
	}
}

func waitForStatus(t *testing.T, s *Scheduler, id, want string) TaskInfo {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, info := range s.Tasks() {
			if info.ID == id && info.Status == want {
				return info
			}
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached status %s", id, want)
	return TaskInfo{}
}

func TestScheduler_RegisterTask(t *testing.T) {
	s := NewScheduler(time.UTC)
	noop := func(context.Context, string) error { return nil }

	if err := s.RegisterTask(&Task{ID: "forecast", Schedule: "0 2 * * *", Handler: noop}); err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}
	if err := s.RegisterTask(&Task{ID: "forecast", Schedule: "@daily", Handler: noop}); !errors.Is(err, ErrTaskExists) {
		t.Errorf("duplicate RegisterTask() error = %v, want ErrTaskExists", err)
	}
	if err := s.RegisterTask(&Task{ID: "bad", Schedule: "every tuesday", Handler: noop}); err == nil {
		t.Error("expected error for an invalid schedule")
	}
	if err := s.RegisterTask(&Task{ID: "nohandler", Schedule: "@hourly"}); err == nil {
		t.Error("expected error for a task without handler")
	}

	tasks := s.Tasks()
	if len(tasks) != 1 || tasks[0].Status != StatusPending {
		t.Fatalf("Tasks() = %+v, want one pending task", tasks)
	}

	s.Start()
	defer s.Stop()
	if next := s.Tasks()[0].NextRun; next.IsZero() {
		t.Error("NextRun should be set once the scheduler runs")
	}
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(time.UTC)
	s.Start()
	defer s.Stop()

	var runs atomic.Int32
	err := s.RegisterTask(&Task{ID: "ok", Schedule: "@yearly", Handler: func(ctx context.Context, id string) error {
		runs.Add(1)
		return nil
	}})
	if err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}
	err = s.RegisterTask(&Task{ID: "fails", Schedule: "@yearly", Handler: func(ctx context.Context, id string) error {
		return errors.New("snmp timeout")
	}})
	if err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}

	if err := s.RunNow("ok"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if err := s.RunNow("fails"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}

	info := waitForStatus(t, s, "ok", StatusCompleted)
	if info.LastRun == nil {
		t.Error("LastRun should be set after a run")
	}
	if runs.Load() != 1 {
		t.Errorf("handler ran %d times, want 1", runs.Load())
	}
	failed := waitForStatus(t, s, "fails", StatusFailed)
	if failed.LastError != "snmp timeout" {
		t.Errorf("LastError = %q, want %q", failed.LastError, "snmp timeout")
	}

	if err := s.RunNow("missing"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("RunNow(missing) error = %v, want ErrTaskNotFound", err)
	}
}

func TestScheduler_SkipsOverlappingRuns(t *testing.T) {
	s := NewScheduler(time.UTC)
	defer s.Stop()
	s.Start()

	release := make(chan struct{})
	var runs atomic.Int32
	err := s.RegisterTask(&Task{ID: "slow", Schedule: "@yearly", Handler: func(ctx context.Context, id string) error {
		runs.Add(1)
		<-release
		return nil
	}})
	if err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}

	s.RunNow("slow")
	waitForStatus(t, s, "slow", StatusRunning)
	s.trigger("slow")
	close(release)
	waitForStatus(t, s, "slow", StatusCompleted)

	if runs.Load() != 1 {
		t.Errorf("handler ran %d times, want 1", runs.Load())
	}
}

func TestScheduler_RemoveTask(t *testing.T) {
	s := NewScheduler(nil)
	s.RegisterTask(&Task{ID: "a", Schedule: "@daily", Handler: func(context.Context, string) error { return nil }})

	if err := s.RemoveTask("a"); err != nil {
		t.Fatalf("RemoveTask() error = %v", err)
	}
	if len(s.Tasks()) != 0 {
		t.Error("task should be gone after RemoveTask")
	}
	if err := s.RemoveTask("a"); !errors.Is(err, ErrTaskNotFound) {
		t.Errorf("RemoveTask() error = %v, want ErrTaskNotFound", err)
	}
}

func TestScheduler_StopCancelsScheduledRun(t *testing.T) {
	s := NewScheduler(time.UTC)
	err := s.RegisterTask(&Task{ID: "collect", Schedule: "@every 1s", Handler: func(ctx context.Context, id string) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	if err != nil {
		t.Fatalf("RegisterTask() error = %v", err)
	}
	s.Start()
	waitForStatus(t, s, "collect", StatusRunning)

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(3 * time.Second):
		t.Fatal("Stop did not cancel the running task")
	}
}
