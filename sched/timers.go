package sched

import (
	"sync/atomic"
	"time"

	"nodecode-go/errcode"
)

// Timer is an event timer: on expiry its owner receives EventTimer with the
// *Timer as data.
type Timer struct {
	owner    *Process
	start    time.Time
	interval time.Duration
	active   bool
}

// Expired reports whether the timer has fired or was never set.
func (e *Timer) Expired() bool { return !e.active }

// Timers is the event-timer service. Its process must be started on the
// scheduler; the clock interrupt calls Tick.
type Timers struct {
	s     *Scheduler
	now   func() time.Time
	proc  *Process
	list  []*Timer
	armed atomic.Int32
}

func NewTimers(s *Scheduler, now func() time.Time) *Timers {
	if now == nil {
		now = time.Now
	}
	t := &Timers{s: s, now: now}
	t.proc = NewProcess("etimer", t.handle)
	return t
}

// Process is the timer service task.
func (t *Timers) Process() *Process { return t.proc }

// Now is the time source the service compares deadlines against.
func (t *Timers) Now() time.Time { return t.now() }

// Set arms e to notify owner after d.
func (t *Timers) Set(e *Timer, owner *Process, d time.Duration) {
	e.owner = owner
	e.interval = d
	e.start = t.now()
	t.activate(e)
}

// Reset re-arms e one interval after its previous deadline, so periodic
// timers do not drift.
func (t *Timers) Reset(e *Timer) {
	e.start = e.start.Add(e.interval)
	t.activate(e)
}

// Restart re-arms e one interval from now.
func (t *Timers) Restart(e *Timer) {
	e.start = t.now()
	t.activate(e)
}

// Stop disarms e without notifying its owner.
func (t *Timers) Stop(e *Timer) {
	if !e.active {
		return
	}
	e.active = false
	t.remove(e)
}

// Tick requests a scan when any timer is armed. Interrupt context.
func (t *Timers) Tick() {
	if t.armed.Load() > 0 {
		t.s.Poll(t.proc)
	}
}

func (t *Timers) activate(e *Timer) {
	if !e.active {
		e.active = true
		t.list = append(t.list, e)
		t.armed.Store(int32(len(t.list)))
	}
	t.s.Poll(t.proc)
}

func (t *Timers) remove(e *Timer) {
	for i, x := range t.list {
		if x == e {
			t.list = append(t.list[:i], t.list[i+1:]...)
			break
		}
	}
	t.armed.Store(int32(len(t.list)))
}

func (t *Timers) handle(_ *Process, ev Event, _ any) {
	if ev != EventPoll {
		return
	}
	now := t.now()
	kept := t.list[:0]
	for _, e := range t.list {
		if !e.active {
			continue
		}
		if now.Sub(e.start) < e.interval {
			kept = append(kept, e)
			continue
		}
		if err := t.s.Post(e.owner, EventTimer, e); err != nil {
			// Queue full: retry on the next scan.
			kept = append(kept, e)
			t.s.Poll(t.proc)
			continue
		}
		e.active = false
	}
	for i := len(kept); i < len(t.list); i++ {
		t.list[i] = nil
	}
	t.list = kept
	t.armed.Store(int32(len(t.list)))
}

// -----------------------------------------------------------------------------
// Callback timers (coarse)
// -----------------------------------------------------------------------------

// Callback runs fn(arg) in task context when it expires.
type Callback struct {
	t   Timer
	fn  func(arg any)
	arg any
}

// Expired reports whether the callback has run or was never set.
func (c *Callback) Expired() bool { return c.t.Expired() }

// CallbackTimers runs callbacks from its own process.
type CallbackTimers struct {
	s    *Scheduler
	t    *Timers
	proc *Process
	cbs  []*Callback
}

func NewCallbackTimers(s *Scheduler, t *Timers) *CallbackTimers {
	c := &CallbackTimers{s: s, t: t}
	c.proc = NewProcess("ctimer", c.handle)
	return c
}

// Init starts the callback-timer process.
func (c *CallbackTimers) Init() error {
	if !c.s.inited {
		return errcode.NotInitialised
	}
	c.cbs = c.cbs[:0]
	c.s.Start(c.proc, nil)
	return nil
}

// Set arms cb to call fn(arg) after d. Re-setting an armed callback moves it.
func (c *CallbackTimers) Set(cb *Callback, d time.Duration, fn func(arg any), arg any) {
	cb.fn, cb.arg = fn, arg
	c.t.Stop(&cb.t)
	c.drop(cb)
	c.cbs = append(c.cbs, cb)
	c.t.Set(&cb.t, c.proc, d)
}

// Stop disarms cb.
func (c *CallbackTimers) Stop(cb *Callback) {
	c.t.Stop(&cb.t)
	c.drop(cb)
}

func (c *CallbackTimers) drop(cb *Callback) {
	for i, x := range c.cbs {
		if x == cb {
			c.cbs = append(c.cbs[:i], c.cbs[i+1:]...)
			return
		}
	}
}

func (c *CallbackTimers) handle(_ *Process, ev Event, data any) {
	if ev != EventTimer {
		return
	}
	e, _ := data.(*Timer)
	for _, cb := range c.cbs {
		if &cb.t == e {
			if cb.t.active {
				// Re-armed after this expiry was queued.
				return
			}
			c.drop(cb)
			if cb.fn != nil {
				cb.fn(cb.arg)
			}
			return
		}
	}
}

// -----------------------------------------------------------------------------
// Realtime timer (fine)
// -----------------------------------------------------------------------------

// Realtime is a single-slot timer whose callback runs in interrupt context
// from the clock tick. Callbacks must not block and may only Poll.
type Realtime struct {
	at atomic.Int64 // deadline, unix nanoseconds
	fn atomic.Pointer[func()]
}

// Init clears the slot.
func (r *Realtime) Init() error {
	r.fn.Store(nil)
	r.at.Store(0)
	return nil
}

// Schedule arms fn at the given time. Only one callback may be pending.
func (r *Realtime) Schedule(at time.Time, fn func()) error {
	if fn == nil {
		return &errcode.E{C: errcode.InvalidConfig, Op: "rtimer", Msg: "nil callback"}
	}
	if r.fn.Load() != nil {
		return errcode.Busy
	}
	r.at.Store(at.UnixNano())
	r.fn.Store(&fn)
	return nil
}

// Pending reports whether a callback is armed.
func (r *Realtime) Pending() bool { return r.fn.Load() != nil }

// Run fires the pending callback if it is due. Interrupt context.
func (r *Realtime) Run(now time.Time) {
	p := r.fn.Load()
	if p == nil || now.UnixNano() < r.at.Load() {
		return
	}
	if r.fn.CompareAndSwap(p, nil) {
		(*p)()
	}
}
