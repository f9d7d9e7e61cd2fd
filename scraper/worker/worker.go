// Package worker runs pipeline jobs over a bounded pool. The source site
// tolerates very little parallelism, so pool sizes stay small; each job is
// an independent full pipeline run for one item id.
package worker

import (
	"context"
	"sync"
)

// Job is one unit of work.
type Job func(ctx context.Context)

// Worker drains jobs until the channel closes or the context is cancelled.
type Worker struct {
	jobs <-chan Job
}

// NewWorker creates a worker over a shared job channel.
func NewWorker(jobs <-chan Job) *Worker {
	return &Worker{jobs: jobs}
}

// Start runs the worker loop in its own goroutine.
func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case job, ok := <-w.jobs:
				if !ok {
					return
				}
				job(ctx)
			}
		}
	}()
}

// Pool fans a job list out over a fixed number of workers.
type Pool struct {
	size int
}

// NewPool creates a pool of the given size (minimum 1).
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{size: size}
}

// Run executes the jobs and blocks until every started job has finished.
// Cancelling the context stops new jobs from launching; jobs already
// in flight run to completion (they observe the context themselves).
func (p *Pool) Run(ctx context.Context, jobs []Job) {
	ch := make(chan Job)
	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		NewWorker(ch).Start(ctx, &wg)
	}

feed:
	for _, job := range jobs {
		select {
		case <-ctx.Done():
			break feed
		case ch <- job:
		}
	}
	close(ch)
	wg.Wait()
}
