package worker

import (
	"context"
	"errors"
	"sync"

	"github.com/martinsuchenak/lifecycled/internal/log"
)

// ErrPoolStopped is returned when submitting to a pool that has been stopped
var ErrPoolStopped = errors.New("worker pool stopped")

// WorkerPool runs jobs on a bounded number of goroutines
type WorkerPool struct {
	maxWorkers int
	jobs       chan Job
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// Job represents a unit of work
type Job struct {
	ID      string
	Handler func(context.Context) error
	Result  chan error
}

// NewWorkerPool creates a new worker pool. Jobs see a context derived from
// parent that is cancelled on Stop.
func NewWorkerPool(parent context.Context, maxWorkers int) *WorkerPool {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	ctx, cancel := context.WithCancel(parent)
	return &WorkerPool{
		maxWorkers: maxWorkers,
		jobs:       make(chan Job, 100),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start starts the worker pool
func (p *WorkerPool) Start() {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	log.Info("Worker pool started", "workers", p.maxWorkers)
}

// Stop stops the worker pool and waits for running jobs to return
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.jobs)
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
	log.Debug("Worker pool stopped")
}

// Submit submits a job to the pool
func (p *WorkerPool) Submit(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrPoolStopped
	}

	select {
	case p.jobs <- job:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Run submits jobs and waits for all of them. Each job's Result channel is
// replaced. The returned slice holds one error per job, in order.
func (p *WorkerPool) Run(ctx context.Context, jobs []Job) []error {
	errs := make([]error, len(jobs))
	for i := range jobs {
		jobs[i].Result = make(chan error, 1)
		if err := p.Submit(jobs[i]); err != nil {
			jobs[i].Result <- err
		}
	}
	for i, job := range jobs {
		select {
		case errs[i] = <-job.Result:
		case <-ctx.Done():
			errs[i] = ctx.Err()
		}
	}
	return errs
}

// worker is the worker goroutine
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			p.drain()
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}

			log.Debug("Worker executing job", "worker_id", id, "job_id", job.ID)

			err := job.Handler(p.ctx)
			if job.Result != nil {
				job.Result <- err
			}
		}
	}
}

// drain fails queued jobs so callers waiting on results are released
func (p *WorkerPool) drain() {
	for {
		select {
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			if job.Result != nil {
				job.Result <- p.ctx.Err()
			}
		default:
			return
		}
	}
}
