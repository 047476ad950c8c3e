package sched

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodecode-go/errcode"
)

type delivery struct {
	proc string
	ev   Event
	data any
}

type recorder struct{ got []delivery }

func (r *recorder) proc(name string) *Process {
	return NewProcess(name, func(p *Process, ev Event, data any) {
		r.got = append(r.got, delivery{p.Name, ev, data})
	})
}

func newStarted(t *testing.T, qlen int) *Scheduler {
	t.Helper()
	s := New(qlen)
	require.NoError(t, s.Init())
	return s
}

func TestStartDeliversInitSynchronously(t *testing.T) {
	s := newStarted(t, 4)
	var rec recorder
	p := rec.proc("a")

	s.Start(p, "arg")
	require.Len(t, rec.got, 1)
	assert.Equal(t, delivery{"a", EventInit, "arg"}, rec.got[0])
	assert.True(t, s.Running(p))

	s.Start(p, nil)
	assert.Len(t, rec.got, 1, "second start is a no-op")
}

func TestStartBeforeInitIsIgnored(t *testing.T) {
	s := New(4)
	var rec recorder
	p := rec.proc("a")
	s.Start(p, nil)
	assert.Empty(t, rec.got)
	assert.False(t, s.Running(p))
	assert.ErrorIs(t, s.Post(p, EventUser, nil), errcode.NotInitialised)
}

func TestRunOnceDeliversOneEventAndReportsRemaining(t *testing.T) {
	s := newStarted(t, 4)
	var rec recorder
	a, b := rec.proc("a"), rec.proc("b")
	s.Start(a, nil)
	s.Start(b, nil)
	rec.got = nil

	require.NoError(t, s.Post(a, EventUser, 1))
	require.NoError(t, s.Post(nil, EventUser+1, 2))

	assert.Equal(t, 1, s.RunOnce())
	assert.Equal(t, []delivery{{"a", EventUser, 1}}, rec.got)

	assert.Equal(t, 0, s.RunOnce())
	assert.Equal(t, []delivery{
		{"a", EventUser, 1},
		{"a", EventUser + 1, 2},
		{"b", EventUser + 1, 2},
	}, rec.got)

	assert.Equal(t, 0, s.RunOnce(), "idle scheduler reports zero")
}

func TestPostFailsWhenQueueFull(t *testing.T) {
	s := newStarted(t, 2)
	var rec recorder
	a := rec.proc("a")
	s.Start(a, nil)

	require.NoError(t, s.Post(a, EventUser, nil))
	require.NoError(t, s.Post(a, EventUser, nil))
	err := s.Post(a, EventUser, nil)
	assert.True(t, errors.Is(err, errcode.QueueFull))
	assert.Equal(t, 2, s.Pending())
}

func TestPollIsServicedBeforeQueuedEvents(t *testing.T) {
	s := newStarted(t, 4)
	var rec recorder
	a, b := rec.proc("a"), rec.proc("b")
	s.Start(a, nil)
	s.Start(b, nil)
	rec.got = nil

	require.NoError(t, s.Post(a, EventUser, nil))
	s.Poll(b)

	assert.Equal(t, 0, s.RunOnce())
	assert.Equal(t, []delivery{{"b", EventPoll, nil}, {"a", EventUser, nil}}, rec.got)
}

func TestPollFromHandlerCountsAsWork(t *testing.T) {
	s := newStarted(t, 4)
	var self *Process
	n := 0
	self = NewProcess("again", func(p *Process, ev Event, _ any) {
		if ev == EventPoll {
			n++
			if n < 3 {
				s.Poll(self)
			}
		}
	})
	s.Start(self, nil)
	s.Poll(self)

	assert.Equal(t, 1, s.RunOnce())
	assert.Equal(t, 1, s.RunOnce())
	assert.Equal(t, 0, s.RunOnce())
	assert.Equal(t, 3, n)
}

func TestExitDropsQueuedEvents(t *testing.T) {
	s := newStarted(t, 4)
	var rec recorder
	a := rec.proc("a")
	s.Start(a, nil)
	require.NoError(t, s.Post(a, EventUser, nil))

	s.Exit(a)
	assert.False(t, s.Running(a))
	s.RunOnce()
	assert.Equal(t, []delivery{{"a", EventInit, nil}, {"a", EventExit, nil}}, rec.got)
}

func TestCurrentDuringHandler(t *testing.T) {
	s := newStarted(t, 4)
	var seen *Process
	p := NewProcess("cur", func(p *Process, ev Event, _ any) { seen = s.Current() })
	s.Start(p, nil)
	assert.Same(t, p, seen)
	assert.Nil(t, s.Current())
}

// -----------------------------------------------------------------------------
// Timers
// -----------------------------------------------------------------------------

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func drain(s *Scheduler) {
	for i := 0; i < 16 && s.RunOnce() > 0; i++ {
	}
}

func TestEventTimerFiresAfterInterval(t *testing.T) {
	s := newStarted(t, 8)
	clk := &fakeClock{t: time.Unix(100, 0)}
	tm := NewTimers(s, clk.now)
	s.Start(tm.Process(), nil)

	var rec recorder
	owner := rec.proc("owner")
	s.Start(owner, nil)
	rec.got = nil

	var e Timer
	tm.Set(&e, owner, time.Second)
	drain(s)
	assert.Empty(t, rec.got)
	assert.False(t, e.Expired())

	clk.advance(999 * time.Millisecond)
	tm.Tick()
	drain(s)
	assert.Empty(t, rec.got)

	clk.advance(time.Millisecond)
	tm.Tick()
	drain(s)
	require.Len(t, rec.got, 1)
	assert.Equal(t, EventTimer, rec.got[0].ev)
	assert.Same(t, &e, rec.got[0].data)
	assert.True(t, e.Expired())

	tm.Tick()
	assert.Equal(t, 0, s.RunOnce(), "no armed timers means no poll")
}

func TestEventTimerResetDoesNotDrift(t *testing.T) {
	s := newStarted(t, 8)
	clk := &fakeClock{t: time.Unix(0, 0)}
	tm := NewTimers(s, clk.now)
	s.Start(tm.Process(), nil)

	fired := 0
	var e Timer
	owner := NewProcess("periodic", func(p *Process, ev Event, _ any) {
		if ev == EventTimer {
			fired++
			tm.Reset(&e)
		}
	})
	s.Start(owner, nil)
	tm.Set(&e, owner, 100*time.Millisecond)

	// Late scan: deadline 100ms observed at 150ms, next deadline stays 200ms.
	clk.advance(150 * time.Millisecond)
	tm.Tick()
	drain(s)
	assert.Equal(t, 1, fired)

	clk.advance(50 * time.Millisecond)
	tm.Tick()
	drain(s)
	assert.Equal(t, 2, fired)
}

func TestEventTimerStop(t *testing.T) {
	s := newStarted(t, 8)
	clk := &fakeClock{t: time.Unix(0, 0)}
	tm := NewTimers(s, clk.now)
	s.Start(tm.Process(), nil)
	var rec recorder
	owner := rec.proc("o")
	s.Start(owner, nil)
	rec.got = nil

	var e Timer
	tm.Set(&e, owner, time.Millisecond)
	tm.Stop(&e)
	clk.advance(time.Second)
	tm.Tick()
	drain(s)
	assert.Empty(t, rec.got)
}

func TestCallbackTimerRunsInTaskContext(t *testing.T) {
	s := newStarted(t, 8)
	clk := &fakeClock{t: time.Unix(0, 0)}
	tm := NewTimers(s, clk.now)
	s.Start(tm.Process(), nil)
	ct := NewCallbackTimers(s, tm)
	require.NoError(t, ct.Init())

	var got []any
	var cb Callback
	ct.Set(&cb, 10*time.Millisecond, func(arg any) {
		got = append(got, arg)
		assert.Equal(t, "ctimer", s.Current().Name)
	}, "x")

	clk.advance(10 * time.Millisecond)
	tm.Tick()
	drain(s)
	assert.Equal(t, []any{"x"}, got)
	assert.True(t, cb.Expired())
}

func TestCallbackTimersInitRequiresScheduler(t *testing.T) {
	s := New(4)
	ct := NewCallbackTimers(s, NewTimers(s, nil))
	assert.ErrorIs(t, ct.Init(), errcode.NotInitialised)
}

func TestRealtimeSingleSlot(t *testing.T) {
	var rt Realtime
	require.NoError(t, rt.Init())
	base := time.Unix(10, 0)

	fired := 0
	require.NoError(t, rt.Schedule(base.Add(time.Millisecond), func() { fired++ }))
	assert.ErrorIs(t, rt.Schedule(base, func() {}), errcode.Busy)
	assert.True(t, rt.Pending())

	rt.Run(base)
	assert.Equal(t, 0, fired)
	rt.Run(base.Add(time.Millisecond))
	assert.Equal(t, 1, fired)
	rt.Run(base.Add(time.Second))
	assert.Equal(t, 1, fired)
	assert.False(t, rt.Pending())

	assert.Error(t, rt.Schedule(base, nil))
}
