// Package bgworker hosts a single restartable background task: the
// notification flags it polls, the latch it sleeps on, signal dispatch,
// host-death detection and the restart-on-failure supervisor.
package bgworker

import (
	"sync/atomic"
	"time"
)

// Wake reports why WaitForEvent returned. More than one bit may be set.
type Wake uint8

const (
	WakeLatch Wake = 1 << iota
	WakeTimeout
	WakeHostDeath
)

func (w Wake) Has(flag Wake) bool {
	return w&flag != 0
}

func (w Wake) String() string {
	switch {
	case w.Has(WakeHostDeath):
		return "host-death"
	case w.Has(WakeLatch):
		return "latch"
	case w.Has(WakeTimeout):
		return "timeout"
	}
	return "none"
}

// Flags holds the two notification flags. Notification sources only ever
// set them; the control loop is the only reader and the only one that clears.
type Flags struct {
	reload    atomic.Bool
	terminate atomic.Bool
}

func (f *Flags) SetReload()    { f.reload.Store(true) }
func (f *Flags) SetTerminate() { f.terminate.Store(true) }

// TakeReload clears the reload flag and reports whether it was set.
// Repeated requests between two calls coalesce into one.
func (f *Flags) TakeReload() bool { return f.reload.Swap(false) }

func (f *Flags) ReloadPending() bool { return f.reload.Load() }
func (f *Flags) Terminating() bool   { return f.terminate.Load() }

// Latch is a one-slot wakeup. Set never blocks and is idempotent; a wait
// consumes the pending wakeup, which resets the latch.
type Latch struct {
	ch chan struct{}
}

func NewLatch() *Latch {
	return &Latch{ch: make(chan struct{}, 1)}
}

func (l *Latch) Set() {
	select {
	case l.ch <- struct{}{}:
	default:
	}
}

func (l *Latch) C() <-chan struct{} {
	return l.ch
}

// Runtime is what the hosted task sees of its host: flags, a wakeable wait
// and host-death notification.
type Runtime struct {
	flags     Flags
	latch     *Latch
	hostDeath <-chan struct{}
}

// NewRuntime builds a runtime. A nil hostDeath channel means the host never dies.
func NewRuntime(hostDeath <-chan struct{}) *Runtime {
	return &Runtime{latch: NewLatch(), hostDeath: hostDeath}
}

// RequestReload is safe to call from any goroutine.
func (r *Runtime) RequestReload() {
	r.flags.SetReload()
	r.latch.Set()
}

// RequestTerminate is safe to call from any goroutine.
func (r *Runtime) RequestTerminate() {
	r.flags.SetTerminate()
	r.latch.Set()
}

func (r *Runtime) ConsumeReload() bool      { return r.flags.TakeReload() }
func (r *Runtime) ReloadPending() bool      { return r.flags.ReloadPending() }
func (r *Runtime) TerminateRequested() bool { return r.flags.Terminating() }

func (r *Runtime) HostDead() bool {
	if r.hostDeath == nil {
		return false
	}
	select {
	case <-r.hostDeath:
		return true
	default:
		return false
	}
}

// WaitForEvent blocks until the latch is set, timeout elapses or the host
// dies, whichever comes first. Host death is always reported when it has
// happened, even if the latch fired in the same instant.
func (r *Runtime) WaitForEvent(timeout time.Duration) Wake {
	if r.HostDead() {
		return WakeHostDeath
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var wake Wake
	select {
	case <-r.hostDeath:
		return WakeHostDeath
	case <-r.latch.C():
		wake = WakeLatch
	case <-timer.C:
		wake = WakeTimeout
	}
	if r.HostDead() {
		wake |= WakeHostDeath
	}
	return wake
}
