package runloop

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct{ calls []string }

func (r *recorder) add(s string) { r.calls = append(r.calls, s) }

type wd struct{ r *recorder }

func (w wd) Init() error { return nil }
func (w wd) Start()      { w.r.add("start") }
func (w wd) Stop()       { w.r.add("stop") }
func (w wd) Refresh()    { w.r.add("refresh") }

// script returns queued results, then zero forever.
type script struct {
	r   *recorder
	out []int
}

func (s *script) RunOnce() int {
	s.r.add("pump")
	if len(s.out) == 0 {
		return 0
	}
	n := s.out[0]
	s.out = s.out[1:]
	return n
}

// policy cancels after a number of idles.
type policy struct {
	r      *recorder
	cancel context.CancelFunc
	left   int
}

func (p *policy) Setup() error { return nil }
func (p *policy) Name() string { return "test" }
func (p *policy) Idle() {
	p.r.add("idle")
	p.left--
	if p.left <= 0 {
		p.cancel()
	}
}

func runLoop(t *testing.T, out []int, idles int, icd bool) (*Loop, []string) {
	t.Helper()
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	l := New(&script{r: r, out: out}, wd{r}, &policy{r: r, cancel: cancel, left: idles}, icd)
	err := l.Run(ctx)
	require.True(t, errors.Is(err, context.Canceled))
	return l, r.calls
}

func TestIdleSequenceStopParkStart(t *testing.T) {
	_, calls := runLoop(t, nil, 1, false)
	assert.Equal(t, []string{"refresh", "pump", "stop", "idle", "start"}, calls)
}

func TestNoIdleWhileWorkPending(t *testing.T) {
	l, calls := runLoop(t, []int{3, 1, 2}, 1, false)
	assert.Equal(t, []string{
		"refresh", "pump",
		"refresh", "pump",
		"refresh", "pump",
		"refresh", "pump",
		"stop", "idle", "start",
	}, calls)
	assert.Equal(t, uint32(4), l.Pumps())
	assert.Equal(t, uint32(1), l.Idles())
}

func TestNegativeResultCountsAsIdle(t *testing.T) {
	_, calls := runLoop(t, []int{-1}, 1, false)
	assert.Equal(t, []string{"refresh", "pump", "stop", "idle", "start"}, calls)
}

func TestICDSkipsWatchdogButParks(t *testing.T) {
	l, calls := runLoop(t, []int{2, 0, 1}, 2, true)
	assert.Equal(t, []string{"pump", "pump", "idle", "pump", "pump", "idle"}, calls)
	assert.Equal(t, uint32(2), l.Idles())
}

func TestRefreshOncePerPumpNeverWhileParked(t *testing.T) {
	_, calls := runLoop(t, []int{1, 1, 0, 5, 0}, 3, false)
	refresh, pumps := 0, 0
	parked := false
	for _, c := range calls {
		switch c {
		case "refresh":
			assert.False(t, parked, "refresh between stop and start")
			refresh++
		case "pump":
			pumps++
		case "stop":
			parked = true
		case "start":
			parked = false
		}
	}
	assert.Equal(t, pumps, refresh)
}

func TestCancelledBeforeRun(t *testing.T) {
	r := &recorder{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := New(&script{r: r}, wd{r}, &policy{r: r, cancel: cancel}, false)
	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
	assert.Empty(t, r.calls)
}
