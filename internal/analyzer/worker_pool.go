package analyzer

import (
	"context"
	"runtime"
	"sync"
)

// WorkerPool runs CPU-bound jobs on a fixed set of goroutines. One pool is
// shared by all requests of the process.
type WorkerPool struct {
	workers   int
	jobQueue  chan func()
	once      sync.Once
	closeOnce sync.Once
}

// NewWorkerPool creates a new worker pool with the specified number of workers
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &WorkerPool{
		workers:  workers,
		jobQueue: make(chan func(), workers*2),
	}
}

// Start initializes and starts all workers in the pool
func (wp *WorkerPool) Start() {
	wp.once.Do(func() {
		for i := 0; i < wp.workers; i++ {
			go wp.worker()
		}
	})
}

// Workers returns the number of goroutines serving the queue
func (wp *WorkerPool) Workers() int {
	return wp.workers
}

// worker processes jobs from the job queue
func (wp *WorkerPool) worker() {
	for job := range wp.jobQueue {
		job()
	}
}

// RunBatch runs job(0..n-1) on the pool and waits for exactly those jobs,
// so concurrent callers sharing the pool do not wait on each other. It stops
// submitting once ctx is done and returns ctx.Err() in that case.
func (wp *WorkerPool) RunBatch(ctx context.Context, n int, job func(i int)) error {
	var batch sync.WaitGroup
	var err error

	for i := 0; i < n; i++ {
		if err = ctx.Err(); err != nil {
			break
		}
		batch.Add(1)
		idx := i
		wp.jobQueue <- func() {
			defer batch.Done()
			job(idx)
		}
	}

	batch.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}

// Close shuts down the worker pool
func (wp *WorkerPool) Close() {
	wp.closeOnce.Do(func() {
		close(wp.jobQueue)
	})
}
