// Package worker runs tasks concurrently on a fixed number of slots.
//
// Every running task holds one slot, identified by its index, until it returns. Tasks that
// cannot get a slot wait for one; a task still waiting when its context is done is dropped.
// Errors of all tasks are collected and returned together by Wait.
package worker

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/kdice/kdice/internal/errors"
)

// Task is a unit of work, slot is the index of the slot it runs on.
type Task func(ctx context.Context, slot int) error

// Pool manages concurrent task execution on a limited number of slots.
type Pool struct {
	slots       chan int
	allErrors   *errors.MultiError
	wg          sync.WaitGroup
	allErrorsMu sync.Mutex
	maxWorkers  int
	isStopping  atomic.Bool
	dropped     atomic.Int64
}

// NewWorkerPool creates a new worker pool with the specified number of slots.
func NewWorkerPool(maxWorkers int) *Pool {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	slots := make(chan int, maxWorkers)
	for slot := range maxWorkers {
		slots <- slot
	}

	return &Pool{
		maxWorkers: maxWorkers,
		slots:      slots,
		allErrors:  &errors.MultiError{},
	}
}

// Size returns the number of slots.
func (wp *Pool) Size() int {
	return wp.maxWorkers
}

// appendError safely appends an error to allErrors
func (wp *Pool) appendError(err error) {
	if err == nil {
		return
	}

	wp.allErrorsMu.Lock()
	wp.allErrors = wp.allErrors.Append(err)
	wp.allErrorsMu.Unlock()
}

// Submit starts a goroutine that runs the task as soon as a slot is free. Tasks submitted
// after Stop are ignored.
func (wp *Pool) Submit(ctx context.Context, task Task) {
	if wp.isStopping.Load() {
		return
	}

	wp.wg.Add(1)

	go func() {
		defer wp.wg.Done()

		var slot int

		select {
		case slot = <-wp.slots:
		case <-ctx.Done():
			wp.dropped.Add(1)
			return
		}

		defer func() { wp.slots <- slot }()

		if err := task(ctx, slot); err != nil {
			wp.appendError(err)
		}
	}()
}

// Wait blocks until all submitted tasks are completed or dropped and returns any errors.
func (wp *Pool) Wait() error {
	wp.wg.Wait()

	wp.allErrorsMu.Lock()
	defer wp.allErrorsMu.Unlock()

	err := wp.allErrors.ErrorOrNil()
	wp.allErrors = &errors.MultiError{}

	return err
}

// Dropped returns the number of tasks that never ran because their context was done.
func (wp *Pool) Dropped() int64 {
	return wp.dropped.Load()
}

// Stop prevents new submissions, running tasks are not interrupted.
func (wp *Pool) Stop() {
	wp.isStopping.Store(true)
}

// GracefulStop prevents new submissions and waits for the submitted tasks.
func (wp *Pool) GracefulStop() error {
	wp.Stop()

	return wp.Wait()
}

// IsStopping returns whether the pool refuses new tasks.
func (wp *Pool) IsStopping() bool {
	return wp.isStopping.Load()
}
