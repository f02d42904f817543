package worker

import (
	"context"
	"log"
	"sync"
	"time"
)

// Job is a named unit of background work: union refreshes, lock
// sweeps, cache fills. The name only appears in logs.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs jobs on a fixed set of goroutines. Submission never
// blocks a request handler: when the queue is full the job is dropped
// and logged, and the next write queues a fresh one.
type Pool struct {
	jobs    chan Job
	timeout time.Duration
	wg      sync.WaitGroup

	// mu orders Submit against Shutdown's close of the queue; the send
	// is non-blocking so holding it across the select is cheap.
	mu       sync.Mutex
	draining bool
}

// NewPool starts `workers` goroutines sharing a queue of `queueSize`
// pending jobs. Each job gets its own context bounded by `timeout`.
func NewPool(workers, queueSize int, timeout time.Duration) *Pool {
	p := &Pool{
		jobs:    make(chan Job, queueSize),
		timeout: timeout,
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pool) run() {
	defer p.wg.Done()
	for job := range p.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := job.Run(ctx); err != nil {
			log.Printf("Background job %s failed: %v", job.Name, err)
		}
		cancel()
	}
}

func (p *Pool) Submit(name string, run func(ctx context.Context) error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.draining {
		log.Printf("Pool draining, dropping job %s", name)
		return
	}
	select {
	case p.jobs <- Job{Name: name, Run: run}:
	default:
		log.Printf("Job queue full, dropping %s", name)
	}
}

// Shutdown stops accepting jobs and waits for in-flight ones.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	p.draining = true
	close(p.jobs)
	p.mu.Unlock()

	p.wg.Wait()
}
