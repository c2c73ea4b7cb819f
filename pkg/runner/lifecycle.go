package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

var ErrDrainTimeout = errors.New("runner: drain timeout")

// LifecycleRunner holds a session open until its context ends or Stop is
// called, then drains it exactly once.
type LifecycleRunner struct {
	state   atomic.Int32
	hooks   Hooks
	drainer Drainer
	timeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	stopErr  error
	drain    sync.Once

	bannerOut   io.Writer
	bannerTitle string
	bannerColor bool
}

func NewLifecycleRunner(drainer Drainer, hooks Hooks, timeout time.Duration) *LifecycleRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &LifecycleRunner{
		hooks:   hooks,
		drainer: drainer,
		timeout: timeout,
		stopCh:  make(chan struct{}),
	}
}

// SetBanner prints title to w when Run starts.
func (r *LifecycleRunner) SetBanner(w io.Writer, title string, color bool) {
	r.bannerOut = w
	r.bannerTitle = title
	r.bannerColor = color
}

// Run blocks until ctx is done or Stop is called and returns the drain error.
// A runner runs at most once.
func (r *LifecycleRunner) Run(ctx context.Context) error {
	if !r.state.CompareAndSwap(int32(StateNew), int32(StateStarting)) {
		return fmt.Errorf("runner: cannot run from state %s", r.State())
	}
	if ctx == nil {
		ctx = context.Background()
	}
	PrintBanner(r.bannerOut, r.bannerTitle, r.bannerColor)
	if r.hooks.OnStart != nil {
		r.hooks.OnStart()
	}
	r.state.Store(int32(StateRunning))
	select {
	case <-ctx.Done():
	case <-r.stopCh:
	}
	return r.shutdown()
}

// Stop ends Run, or drains directly when Run was never called.
func (r *LifecycleRunner) Stop() error {
	r.stopOnce.Do(func() { close(r.stopCh) })
	return r.shutdown()
}

func (r *LifecycleRunner) State() State {
	return State(r.state.Load())
}

func (r *LifecycleRunner) shutdown() error {
	r.drain.Do(func() {
		r.state.Store(int32(StateDraining))
		r.stopErr = r.runDrain()
		if r.hooks.OnStop != nil {
			r.hooks.OnStop()
		}
		r.state.Store(int32(StateStopped))
	})
	return r.stopErr
}

func (r *LifecycleRunner) runDrain() error {
	if r.drainer == nil {
		return nil
	}
	done := make(chan error, 1)
	go func() { done <- r.drainer.Drain() }()
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return ErrDrainTimeout
	}
}
