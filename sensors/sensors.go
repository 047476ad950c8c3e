// Package sensors holds the logical interrupt sources that share the
// button interrupt line, and the sensors task that turns their interrupts
// into broadcast events.
package sensors

import (
	"sync/atomic"

	"nodecode-go/sched"
)

// IRQPin is the GPIO a sensor arms. The handler runs in interrupt context.
type IRQPin interface {
	Get() bool
	SetIRQ(handler func()) error
}

// Raiser is the shared raw interrupt line a sensor raises when its pin
// fires.
type Raiser interface {
	Fire()
}

// Sensor is a logical interrupt source with a readable value.
type Sensor interface {
	Name() string
	Activate() error
	Active() bool
	CheckIRQ() bool
	ISR()
	Value() int
}

// binder is implemented by sensors that report changes to a Set.
type binder interface {
	bind(changed func())
}

// Set owns the sensors task. On poll it broadcasts sched.EventSensor with
// the Sensor as data for every sensor flagged changed since the last poll.
type Set struct {
	s       *sched.Scheduler
	proc    *sched.Process
	list    []Sensor
	changed []atomic.Bool
}

func NewSet(s *sched.Scheduler, list ...Sensor) *Set {
	set := &Set{s: s}
	for _, x := range list {
		if x != nil {
			set.list = append(set.list, x)
		}
	}
	set.changed = make([]atomic.Bool, len(set.list))
	set.proc = sched.NewProcess("sensors", set.handle)
	for i, x := range set.list {
		if b, ok := x.(binder); ok {
			i := i
			b.bind(func() { set.markChanged(i) })
		}
	}
	return set
}

// Process is the sensors task.
func (set *Set) Process() *sched.Process { return set.proc }

// Find returns the sensor with the given name.
func (set *Set) Find(name string) Sensor {
	for _, x := range set.list {
		if x.Name() == name {
			return x
		}
	}
	return nil
}

func (set *Set) All() []Sensor { return set.list }

// markChanged runs in interrupt context.
func (set *Set) markChanged(i int) {
	set.changed[i].Store(true)
	set.s.Poll(set.proc)
}

func (set *Set) handle(_ *sched.Process, ev sched.Event, _ any) {
	if ev != sched.EventPoll {
		return
	}
	for i, x := range set.list {
		if !set.changed[i].Swap(false) {
			continue
		}
		if err := set.s.Post(nil, sched.EventSensor, x); err != nil {
			// Queue full: keep the flag and come back.
			set.changed[i].Store(true)
			set.s.Poll(set.proc)
		}
	}
}
