// SPDX-License-Identifier: MPL-2.0

package glctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
)

const defaultQueueSize = 64

// Job claim states.
const (
	jobQueued int32 = iota
	jobRunning
	jobAbandoned
)

// ErrNotRunning is returned by Do when the thread is not accepting jobs.
var ErrNotRunning = errors.New("gl thread is not running")

type (
	// Thread is the single owner of a Device. A Thread is single-use: once
	// stopped or failed, create a new one.
	Thread struct {
		state   atomic.Int32
		stateMu sync.Mutex
		lastErr error

		device    Device
		queueSize int
		logger    *slog.Logger

		jobs      chan job
		quit      chan struct{}
		done      chan struct{}
		startedCh chan struct{}
		stopOnce  sync.Once
	}

	job struct {
		ctx    context.Context
		fn     func(Device) error
		result chan error
		// claim is won by exactly one side: the thread (jobRunning) or a
		// cancelled caller (jobAbandoned).
		claim *atomic.Int32
	}
)

// New creates a Thread that will own dev.
func New(dev Device, opts ...Option) *Thread {
	t := &Thread{
		device:    dev,
		queueSize: defaultQueueSize,
		logger:    slog.Default(),
		quit:      make(chan struct{}),
		done:      make(chan struct{}),
		startedCh: make(chan struct{}),
	}
	t.state.Store(int32(StateCreated))
	for _, opt := range opts {
		opt(t)
	}
	t.jobs = make(chan job, t.queueSize)
	return t
}

// State returns the current state (lock-free).
func (t *Thread) State() State {
	return State(t.state.Load())
}

// IsRunning reports whether jobs are accepted.
func (t *Thread) IsRunning() bool {
	return t.State() == StateRunning
}

// LastError returns the error that caused the Failed state, or nil.
func (t *Thread) LastError() error {
	t.stateMu.Lock()
	defer t.stateMu.Unlock()
	return t.lastErr
}

// Start launches the owning goroutine and returns once it is ready.
func (t *Thread) Start(ctx context.Context) error {
	select {
	case <-ctx.Done():
		err := fmt.Errorf("context cancelled before start: %w", ctx.Err())
		t.fail(err)
		return err
	default:
	}

	if !t.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return fmt.Errorf("cannot start gl thread in state %s", t.State())
	}
	if t.device == nil {
		err := errors.New("gl thread has no device")
		t.fail(err)
		return err
	}

	go t.run()

	select {
	case <-t.startedCh:
		return nil
	case <-t.done:
		return ErrNotRunning
	case <-ctx.Done():
		_ = t.Stop()
		return fmt.Errorf("waiting for gl thread: %w", ctx.Err())
	}
}

func (t *Thread) fail(err error) {
	t.stateMu.Lock()
	t.lastErr = err
	t.stateMu.Unlock()
	t.state.Store(int32(StateFailed))
}

func (t *Thread) run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(t.done)

	if t.state.CompareAndSwap(int32(StateStarting), int32(StateRunning)) {
		close(t.startedCh)
	}

	for {
		select {
		case j := <-t.jobs:
			j.result <- t.exec(j)
		case <-t.quit:
			for {
				select {
				case j := <-t.jobs:
					j.result <- ErrNotRunning
				default:
					return
				}
			}
		}
	}
}

func (t *Thread) exec(j job) (err error) {
	if err := j.ctx.Err(); err != nil {
		j.claim.CompareAndSwap(jobQueued, jobAbandoned)
		return err
	}
	if !j.claim.CompareAndSwap(jobQueued, jobRunning) {
		return context.Canceled
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("gpu job panicked: %v", r)
			t.logger.Error("gpu job panicked", "panic", r)
		}
	}()
	return j.fn(t.device)
}

// Do runs fn on the owning goroutine and waits for it to finish. Jobs run in
// submission order, one at a time. If ctx ends while the job is still queued
// it is skipped and Do returns ctx.Err(). Once the job has started Do waits
// for it, so the caller never observes a job that is still running.
func (t *Thread) Do(ctx context.Context, fn func(Device) error) error {
	if !t.IsRunning() {
		return fmt.Errorf("%w (state %s)", ErrNotRunning, t.State())
	}

	j := job{ctx: ctx, fn: fn, result: make(chan error, 1), claim: new(atomic.Int32)}
	select {
	case t.jobs <- j:
	case <-t.quit:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-j.result:
		return err
	case <-t.done:
		// The loop may have exited after this job slipped into the queue.
		select {
		case err := <-j.result:
			return err
		default:
			return ErrNotRunning
		}
	case <-ctx.Done():
		if j.claim.CompareAndSwap(jobQueued, jobAbandoned) {
			return ctx.Err()
		}
		// Already claimed by the thread: wait for it to finish.
		select {
		case err := <-j.result:
			return err
		case <-t.done:
			select {
			case err := <-j.result:
				return err
			default:
				return ErrNotRunning
			}
		}
	}
}

// Stop rejects new jobs, fails queued ones with ErrNotRunning and waits for
// the owning goroutine to exit. Stopping a never-started Thread just marks it
// stopped.
func (t *Thread) Stop() error {
	for {
		current := t.State()
		switch current {
		case StateCreated:
			if t.state.CompareAndSwap(int32(StateCreated), int32(StateStopped)) {
				return nil
			}
			continue
		case StateStarting, StateRunning:
			if !t.state.CompareAndSwap(int32(current), int32(StateStopping)) {
				continue
			}
		case StateStopping:
		default:
			return nil
		}
		break
	}

	t.stopOnce.Do(func() { close(t.quit) })
	<-t.done
	t.state.Store(int32(StateStopped))
	return nil
}
