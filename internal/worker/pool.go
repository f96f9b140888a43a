// Package worker provides bounded concurrent tag enrichment.
package worker

import (
	"context"
	"fmt"
	"sync"
)

// Job is one tag lookup for a cache key.
type Job struct {
	TrackID string
	Key     string
	Artist  string
	Name    string
}

// Result is what a lookup produced. TrackID echoes the job so results can be
// correlated by identifier rather than by arrival order.
type Result struct {
	TrackID string
	Tags    []string
	Err     error
}

// Outcome pairs a job with its result.
type Outcome struct {
	Job    Job
	Result Result
}

// LookupFunc performs a single job.
type LookupFunc func(ctx context.Context, job Job) Result

// Pool manages a fixed number of workers draining a job queue.
type Pool struct {
	workers int
	lookup  LookupFunc
}

// NewPool creates a worker pool with the given worker count.
func NewPool(workers int, lookup LookupFunc) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{workers: workers, lookup: lookup}
}

// Run queues every job, waits for all of them and returns their outcomes in
// completion order. A panicking lookup is reported as a failed result.
func (p *Pool) Run(ctx context.Context, jobs []Job) []Outcome {
	if len(jobs) == 0 {
		return nil
	}

	queue := make(chan Job, len(jobs))
	for _, job := range jobs {
		queue <- job
	}
	close(queue)

	out := make(chan Outcome, len(jobs))
	var wg sync.WaitGroup
	n := p.workers
	if n > len(jobs) {
		n = len(jobs)
	}
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range queue {
				out <- Outcome{Job: job, Result: p.safeLookup(ctx, job)}
			}
		}()
	}
	wg.Wait()
	close(out)

	outcomes := make([]Outcome, 0, len(jobs))
	for o := range out {
		outcomes = append(outcomes, o)
	}
	return outcomes
}

func (p *Pool) safeLookup(ctx context.Context, job Job) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{TrackID: job.TrackID, Err: fmt.Errorf("worker: lookup panicked: %v", r)}
		}
	}()
	return p.lookup(ctx, job)
}
