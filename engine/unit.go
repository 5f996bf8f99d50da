package engine

import (
	"context"
	"sync"
	"time"
)

// Unit handles synchronization management, startup, and shutdown for engines
// and long-running components. Work admitted through Do or Launch is tracked;
// Done cancels the unit's context and waits for all admitted work to finish.
type Unit struct {
	admitLock sync.Mutex // synchronizes context cancellation with work admittance

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	sync.Mutex // can be used to synchronize the engine's internal state
}

// NewUnit returns a new unit.
func NewUnit() *Unit {
	ctx, cancel := context.WithCancel(context.Background())
	return &Unit{
		ctx:    ctx,
		cancel: cancel,
	}
}

// admit returns true if the work is admitted for execution, false if the unit
// has already shut down.
func (u *Unit) admit() bool {
	u.admitLock.Lock()
	defer u.admitLock.Unlock()

	select {
	case <-u.ctx.Done():
		return false
	default:
	}

	u.wg.Add(1)
	return true
}

func (u *Unit) stopped() {
	u.wg.Done()
}

// Do synchronously executes the input function f unless the unit has shut
// down. It returns the result of f. If f is executed, the unit will not shut
// down until after f returns.
func (u *Unit) Do(f func() error) error {
	if !u.admit() {
		return nil
	}
	defer u.stopped()
	return f()
}

// Launch asynchronously executes the input function unless the unit has shut
// down. If f is executed, the unit will not shut down until after f returns.
func (u *Unit) Launch(f func()) {
	if !u.admit() {
		return
	}
	go func() {
		defer u.stopped()
		f()
	}()
}

// LaunchAfter asynchronously executes the input function after a certain
// delay unless the unit has shut down.
func (u *Unit) LaunchAfter(delay time.Duration, f func()) {
	u.Launch(func() {
		select {
		case <-u.ctx.Done():
		case <-time.After(delay):
			f()
		}
	})
}

// Ready returns a channel that is closed when the unit is ready. The unit is
// ready when all input functions have completed.
func (u *Unit) Ready(checks ...func()) <-chan struct{} {
	ready := make(chan struct{})
	go func() {
		for _, check := range checks {
			check()
		}
		close(ready)
	}()
	return ready
}

// Ctx returns a context with the lifecycle of the unit. It is cancelled when
// Done is called.
func (u *Unit) Ctx() context.Context {
	return u.ctx
}

// Quit returns a channel that is closed when the unit begins to shut down.
func (u *Unit) Quit() <-chan struct{} {
	return u.ctx.Done()
}

// Done returns a channel that is closed when the unit is done. The unit is
// done when (i) all pending functions are completed and (ii) all input
// actions have completed.
func (u *Unit) Done(actions ...func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		u.admitLock.Lock()
		u.cancel()
		u.admitLock.Unlock()

		for _, action := range actions {
			action()
		}
		u.wg.Wait()
		close(done)
	}()
	return done
}
