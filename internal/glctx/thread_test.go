// SPDX-License-Identifier: MPL-2.0

package glctx

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func startThread(t *testing.T, dev Device, opts ...Option) *Thread {
	t.Helper()
	th := New(dev, opts...)
	if err := th.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() { _ = th.Stop() })
	return th
}

func TestThread_Lifecycle(t *testing.T) {
	t.Parallel()

	th := New(NewHeadless())
	if th.State() != StateCreated {
		t.Fatalf("expected created, got %s", th.State())
	}
	if err := th.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !th.IsRunning() {
		t.Fatalf("expected running, got %s", th.State())
	}
	if err := th.Start(context.Background()); err == nil {
		t.Error("second Start should fail")
	}
	if err := th.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if th.State() != StateStopped || !th.State().IsTerminal() {
		t.Errorf("expected stopped, got %s", th.State())
	}
	if err := th.Stop(); err != nil {
		t.Errorf("second Stop should be a no-op, got %v", err)
	}
}

func TestThread_StartCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	th := New(NewHeadless())
	if err := th.Start(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if th.State() != StateFailed || th.LastError() == nil {
		t.Errorf("expected failed with error, got %s / %v", th.State(), th.LastError())
	}
}

func TestThread_StopBeforeStart(t *testing.T) {
	t.Parallel()
	th := New(NewHeadless())
	if err := th.Stop(); err != nil {
		t.Fatal(err)
	}
	if th.State() != StateStopped {
		t.Errorf("expected stopped, got %s", th.State())
	}
}

func TestThread_DoRequiresRunning(t *testing.T) {
	t.Parallel()

	th := New(NewHeadless())
	err := th.Do(context.Background(), func(Device) error { return nil })
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning before start, got %v", err)
	}

	th = startThread(t, NewHeadless())
	_ = th.Stop()
	err = th.Do(context.Background(), func(Device) error { return nil })
	if !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning after stop, got %v", err)
	}
}

func TestThread_JobsAreSerializedInOrder(t *testing.T) {
	t.Parallel()

	th := startThread(t, NewHeadless())

	var (
		inFlight atomic.Int32
		overlap  atomic.Bool
		mu       sync.Mutex
		order    []int
	)

	// Submissions from one goroutine must run in submission order.
	for i := range 50 {
		err := th.Do(context.Background(), func(Device) error {
			if inFlight.Add(1) > 1 {
				overlap.Store(true)
			}
			defer inFlight.Add(-1)
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
		if err != nil {
			t.Fatalf("Do: %v", err)
		}
	}

	// Concurrent submitters must never overlap on the device.
	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			_ = th.Do(context.Background(), func(Device) error {
				if inFlight.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(time.Millisecond)
				inFlight.Add(-1)
				return nil
			})
		})
	}
	wg.Wait()

	if overlap.Load() {
		t.Error("jobs overlapped on the owning goroutine")
	}
	want := make([]int, 50)
	for i := range want {
		want[i] = i
	}
	if !slices.Equal(order, want) {
		t.Errorf("jobs ran out of order: %v", order)
	}
}

func TestThread_DoReturnsJobErrorAndRecoversPanics(t *testing.T) {
	t.Parallel()

	th := startThread(t, NewHeadless())
	sentinel := errors.New("link failed")

	if err := th.Do(context.Background(), func(Device) error { return sentinel }); !errors.Is(err, sentinel) {
		t.Errorf("expected job error, got %v", err)
	}
	if err := th.Do(context.Background(), func(Device) error { panic("driver crash") }); err == nil {
		t.Error("expected panic converted to error")
	}
	if err := th.Do(context.Background(), func(Device) error { return nil }); err != nil {
		t.Errorf("thread should survive a panicking job, got %v", err)
	}
}

func TestThread_CancelledJobIsSkipped(t *testing.T) {
	t.Parallel()

	th := startThread(t, NewHeadless(), WithQueueSize(4))

	release := make(chan struct{})
	blocking := make(chan error, 1)
	go func() {
		blocking <- th.Do(context.Background(), func(Device) error {
			<-release
			return nil
		})
	}()

	// Give the blocking job time to occupy the owning goroutine.
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var ran atomic.Bool
	result := make(chan error, 1)
	go func() {
		result <- th.Do(ctx, func(Device) error {
			ran.Store(true)
			return nil
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	if err := <-result; !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	close(release)
	if err := <-blocking; err != nil {
		t.Fatal(err)
	}
	// Drain: once this returns, the cancelled job has been dequeued.
	if err := th.Do(context.Background(), func(Device) error { return nil }); err != nil {
		t.Fatal(err)
	}
	if ran.Load() {
		t.Error("cancelled job should not run")
	}
}

func TestThread_CancelWhileRunningWaitsForJob(t *testing.T) {
	t.Parallel()

	th := startThread(t, NewHeadless())

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() {
		result <- th.Do(ctx, func(Device) error {
			close(started)
			<-release
			finished.Store(true)
			return nil
		})
	}()

	<-started
	cancel()
	select {
	case err := <-result:
		t.Fatalf("Do returned %v while the job was still running", err)
	case <-time.After(30 * time.Millisecond):
	}

	close(release)
	if err := <-result; err != nil {
		t.Errorf("expected the job's own result, got %v", err)
	}
	if !finished.Load() {
		t.Error("Do returned before the job finished")
	}
}

func TestState_String(t *testing.T) {
	t.Parallel()
	want := []string{"created", "starting", "running", "stopping", "stopped", "failed"}
	for s := StateCreated; s <= StateFailed; s++ {
		if s.String() != want[s] {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want[s])
		}
	}
	if State(99).String() != "unknown" {
		t.Error("unexpected String for unknown state")
	}
	if !StateStopped.IsTerminal() || !StateFailed.IsTerminal() || StateRunning.IsTerminal() {
		t.Error("only stopped and failed are terminal")
	}
}
