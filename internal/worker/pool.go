package worker

import (
	"context"
	"sync"
)

// Job is a unit of work producing an R
type Job[R any] interface {
	Execute(ctx context.Context) R
}

// JobFunc adapts a function to Job
type JobFunc[R any] func(ctx context.Context) R

// Execute calls f
func (f JobFunc[R]) Execute(ctx context.Context) R {
	return f(ctx)
}

type indexed[T any] struct {
	index int
	value T
}

// Pool runs jobs on a fixed number of workers. Results come back in
// submission order whatever order the jobs finish in. Results are collected
// while jobs are still being submitted, so any number of jobs may be queued.
type Pool[R any] struct {
	workers   int
	jobs      chan indexed[Job[R]]
	results   chan indexed[R]
	collected chan []indexed[R]
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	submitted int
}

// NewPool creates a pool whose jobs run under ctx
func NewPool[R any](ctx context.Context, workers int) *Pool[R] {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool[R]{
		workers:   workers,
		jobs:      make(chan indexed[Job[R]], workers*2),
		results:   make(chan indexed[R], workers*2),
		collected: make(chan []indexed[R], 1),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the workers and the result collector. It must be called
// before Submit.
func (p *Pool[R]) Start() {
	for range p.workers {
		p.wg.Add(1)
		go p.worker()
	}
	go p.collect()
}

func (p *Pool[R]) worker() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			result := indexed[R]{index: job.index, value: job.value.Execute(p.ctx)}
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

// collect drains results until the workers are gone
func (p *Pool[R]) collect() {
	var all []indexed[R]
	for r := range p.results {
		all = append(all, r)
	}
	p.collected <- all
}

// Submit queues a job. It must not be called concurrently with itself or
// after Wait.
func (p *Pool[R]) Submit(job Job[R]) {
	idx := p.submitted
	p.submitted++

	select {
	case <-p.ctx.Done():
	case p.jobs <- indexed[Job[R]]{index: idx, value: job}:
	}
}

// Wait closes the queue and returns one result per submitted job, in
// submission order. If the pool's context was cancelled, jobs that never
// finished leave a zero value and the context error is returned.
func (p *Pool[R]) Wait() ([]R, error) {
	close(p.jobs)
	p.wg.Wait()
	p.closeResults()

	out := make([]R, p.submitted)
	for _, r := range <-p.collected {
		out[r.index] = r.value
	}

	err := p.ctx.Err()
	p.cancel()
	return out, err
}

// Shutdown stops the workers without waiting for queued jobs
func (p *Pool[R]) Shutdown() {
	p.cancel()
	p.wg.Wait()
	p.closeResults()
}

func (p *Pool[R]) closeResults() {
	p.closeOnce.Do(func() {
		close(p.results)
	})
}

// Map runs fn over items on a pool of workers and returns the results in
// item order.
func Map[T, R any](ctx context.Context, workers int, items []T, fn func(ctx context.Context, item T) R) ([]R, error) {
	pool := NewPool[R](ctx, workers)
	pool.Start()
	for _, item := range items {
		pool.Submit(JobFunc[R](func(ctx context.Context) R {
			return fn(ctx, item)
		}))
	}
	return pool.Wait()
}
