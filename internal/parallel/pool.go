package parallel

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Result is the outcome of one submitted operation.
type Result struct {
	TaskID   int64
	Err      error
	Duration time.Duration
}

// WorkerPool runs operations concurrently with at most maxWorkers in flight.
type WorkerPool struct {
	maxWorkers int
	semaphore  chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	results    []Result
	errors     []error
	failFast   bool
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewWorkerPool creates a pool. A maxWorkers of 0 means no limit. With
// failFast set, the first error cancels operations that have not started.
func NewWorkerPool(ctx context.Context, maxWorkers int, failFast bool) *WorkerPool {
	if maxWorkers < 0 {
		maxWorkers = 0
	}
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		maxWorkers: maxWorkers,
		semaphore:  make(chan struct{}, maxWorkers),
		failFast:   failFast,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Submit schedules fn for taskID. It returns at once; operations skipped
// because the pool was cancelled produce no result.
func (p *WorkerPool) Submit(taskID int64, fn func(ctx context.Context) error) {
	if p.ctx.Err() != nil {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		if p.maxWorkers > 0 {
			select {
			case p.semaphore <- struct{}{}:
				defer func() { <-p.semaphore }()
			case <-p.ctx.Done():
				return
			}
		}
		if p.ctx.Err() != nil {
			return
		}

		start := time.Now()
		err := fn(p.ctx)
		result := Result{TaskID: taskID, Err: err, Duration: time.Since(start)}

		p.mu.Lock()
		defer p.mu.Unlock()
		p.results = append(p.results, result)
		if err != nil {
			p.errors = append(p.errors, fmt.Errorf("task #%d: %w", taskID, err))
			if p.failFast {
				p.cancel()
			}
		}
	}()
}

// Wait blocks until every started operation finishes. Results come back in
// ascending task id order.
func (p *WorkerPool) Wait() ([]Result, []error) {
	p.wg.Wait()
	p.cancel()

	p.mu.Lock()
	defer p.mu.Unlock()

	results := make([]Result, len(p.results))
	copy(results, p.results)
	sort.Slice(results, func(i, j int) bool { return results[i].TaskID < results[j].TaskID })

	errs := make([]error, len(p.errors))
	copy(errs, p.errors)
	return results, errs
}

// Cancel stops operations that have not started yet.
func (p *WorkerPool) Cancel() {
	p.cancel()
}
