package irqdemux

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type callLog struct{ calls []string }

type fakeSource struct {
	name    string
	pending bool
	log     *callLog
}

func (s *fakeSource) CheckIRQ() bool {
	s.log.calls = append(s.log.calls, "check:"+s.name)
	p := s.pending
	s.pending = false
	return p
}

func (s *fakeSource) ISR() { s.log.calls = append(s.log.calls, "isr:"+s.name) }

func newSources(log *callLog) (a, b, aux *fakeSource) {
	return &fakeSource{name: "a", log: log},
		&fakeSource{name: "b", log: log},
		&fakeSource{name: "aux", log: log}
}

func TestBothButtonsServicedInPriorityOrder(t *testing.T) {
	log := &callLog{}
	a, b, aux := newSources(log)
	d := New(a, b, aux)
	var line Line
	line.AddCallback(d.Service)

	b.pending = true
	a.pending = true
	line.Fire()

	assert.Equal(t, []string{"check:a", "isr:a", "check:b", "isr:b", "check:aux"}, log.calls)
	assert.Equal(t, uint32(2), d.Serviced())
	assert.Equal(t, uint32(0), d.Spurious())
}

func TestFalsePredicatesNotServiced(t *testing.T) {
	log := &callLog{}
	a, b, aux := newSources(log)
	d := New(a, b, aux)

	aux.pending = true
	d.Service()
	assert.Equal(t, []string{"check:a", "check:b", "check:aux", "isr:aux"}, log.calls)
}

func TestSpuriousInterruptIgnored(t *testing.T) {
	log := &callLog{}
	a, b, _ := newSources(log)
	d := New(a, b, nil)
	require.Equal(t, 2, d.Len())

	d.Service()
	assert.Equal(t, []string{"check:a", "check:b"}, log.calls)
	assert.Equal(t, uint32(1), d.Spurious())
	assert.Equal(t, uint32(0), d.Serviced())
}

func TestEachOccurrenceServicedOnce(t *testing.T) {
	log := &callLog{}
	a, b, _ := newSources(log)
	d := New(a, b)
	var line Line
	line.AddCallback(d.Service)

	for i := 0; i < 3; i++ {
		a.pending = true
		line.Fire()
	}
	isr := 0
	for _, c := range log.calls {
		if c == "isr:a" {
			isr++
		}
	}
	assert.Equal(t, 3, isr)
	assert.Equal(t, uint32(3), line.Fires())
}

func TestLineRunsCallbacksInOrder(t *testing.T) {
	var got []int
	var line Line
	line.AddCallback(func() { got = append(got, 1) })
	line.AddCallback(nil)
	line.AddCallback(func() { got = append(got, 2) })
	line.Fire()
	assert.Equal(t, []int{1, 2}, got)
}

type fakeRadio struct{ n int }

func (r *fakeRadio) Interrupt() { r.n++ }

type fakePin struct{ h func() }

func (p *fakePin) Get() bool             { return false }
func (p *fakePin) SetIRQ(h func()) error { p.h = h; return nil }

func TestRadioBridgeForwardsUnconditionally(t *testing.T) {
	r := &fakeRadio{}
	br := NewRadioBridge(r)
	pin := &fakePin{}
	require.NoError(t, br.Attach(pin))

	pin.h()
	pin.h()
	assert.Equal(t, 2, r.n)
	assert.Equal(t, uint32(2), br.Forwards())
}
