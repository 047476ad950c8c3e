package sensors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodecode-go/sched"
)

type fakePin struct {
	level   bool
	handler func()
}

func (p *fakePin) Get() bool             { return p.level }
func (p *fakePin) SetIRQ(h func()) error { p.handler = h; return nil }
func (p *fakePin) drive(level bool) {
	p.level = level
	if p.handler != nil {
		p.handler()
	}
}

// fakeLine services every source whose predicate holds, like the node's
// demultiplexer.
type fakeLine struct {
	srcs  []Sensor
	fires int
}

func (l *fakeLine) Fire() {
	l.fires++
	for _, s := range l.srcs {
		if s.CheckIRQ() {
			s.ISR()
		}
	}
}

type sink struct{ got []string }

func (k *sink) proc() *sched.Process {
	return sched.NewProcess("sink", func(_ *sched.Process, ev sched.Event, data any) {
		if ev == sched.EventSensor {
			s := data.(Sensor)
			k.got = append(k.got, s.Name())
		}
	})
}

func setup(t *testing.T) (*sched.Scheduler, *fakeLine, *fakePin, *fakePin, *Digital, *Digital, *sink) {
	t.Helper()
	s := sched.New(8)
	require.NoError(t, s.Init())
	line := &fakeLine{}
	pa, pb := &fakePin{level: true}, &fakePin{level: true}
	a := NewButton(NameButtonA, pa, line)
	b := NewButton(NameButtonB, pb, line)
	line.srcs = []Sensor{a, b}
	set := NewSet(s, a, b)
	s.Start(set.Process(), nil)
	k := &sink{}
	s.Start(k.proc(), nil)
	return s, line, pa, pb, a, b, k
}

func run(s *sched.Scheduler) {
	for i := 0; i < 16 && s.RunOnce() > 0; i++ {
	}
}

func TestInactiveButtonIgnoresEdges(t *testing.T) {
	s, line, pa, _, a, _, k := setup(t)
	pa.drive(false) // no handler installed yet
	assert.Equal(t, 0, line.fires)

	a.edge.Store(true)
	assert.False(t, a.CheckIRQ(), "unarmed source never claims an interrupt")
	run(s)
	assert.Empty(t, k.got)
}

func TestButtonPressBecomesSensorEvent(t *testing.T) {
	s, line, pa, _, a, b, k := setup(t)
	require.NoError(t, a.Activate())
	require.NoError(t, b.Activate())
	assert.True(t, a.Active())

	pa.drive(false) // pressed: active low
	assert.Equal(t, 1, line.fires)
	assert.Equal(t, 1, a.Value())
	assert.Equal(t, 0, b.Value())

	run(s)
	assert.Equal(t, []string{NameButtonA}, k.got)
	assert.Equal(t, uint32(1), a.Events())
	assert.Equal(t, uint32(0), b.Events())
}

func TestBothLatchedOneRawInterrupt(t *testing.T) {
	s, line, pa, pb, a, b, k := setup(t)
	require.NoError(t, a.Activate())
	require.NoError(t, b.Activate())

	// Both pins latch before the line is serviced.
	a.edge.Store(true)
	pb.level = false
	pa.level = false
	b.edge.Store(true)
	line.Fire()

	run(s)
	assert.Equal(t, []string{NameButtonA, NameButtonB}, k.got)
	assert.Equal(t, 1, a.Value())
	assert.Equal(t, 1, b.Value())
}

func TestActivateTwiceIsNoop(t *testing.T) {
	_, _, pa, _, a, _, _ := setup(t)
	require.NoError(t, a.Activate())
	h := pa.handler
	pa.handler = nil
	require.NoError(t, a.Activate())
	assert.Nil(t, pa.handler)
	assert.NotNil(t, h)
}

func TestMotionIsActiveHigh(t *testing.T) {
	s := sched.New(4)
	require.NoError(t, s.Init())
	line := &fakeLine{}
	pin := &fakePin{}
	m := NewMotion(pin, line)
	line.srcs = []Sensor{m}
	set := NewSet(s, m, nil)
	s.Start(set.Process(), nil)
	require.NoError(t, m.Activate())

	pin.drive(true)
	assert.Equal(t, 1, m.Value())
	assert.Same(t, m, set.Find(NameMotion))
	assert.Nil(t, set.Find(NameProximity))
	assert.Len(t, set.All(), 1)
}
