package sensors

import (
	"sync/atomic"
)

// Names used on the event bus of the scheduler.
const (
	NameButtonA   = "button_a"
	NameButtonB   = "button_b"
	NameMotion    = "motion"
	NameProximity = "proximity"
)

// Digital is a GPIO-backed sensor: a push button, a PIR motion output or a
// proximity sensor's interrupt output. The pin handler latches an edge and
// raises the shared line; CheckIRQ consumes the latch.
type Digital struct {
	name      string
	pin       IRQPin
	line      Raiser
	activeLow bool

	edge    atomic.Bool
	level   atomic.Bool
	active  atomic.Bool
	events  atomic.Uint32
	changed func()
}

// NewButton returns a button that reads 1 while pressed. Buttons on this
// board pull up and short to ground.
func NewButton(name string, pin IRQPin, line Raiser) *Digital {
	return &Digital{name: name, pin: pin, line: line, activeLow: true}
}

func NewMotion(pin IRQPin, line Raiser) *Digital {
	return &Digital{name: NameMotion, pin: pin, line: line}
}

func NewProximity(pin IRQPin, line Raiser) *Digital {
	return &Digital{name: NameProximity, pin: pin, line: line, activeLow: true}
}

func (d *Digital) Name() string { return d.name }

func (d *Digital) bind(changed func()) { d.changed = changed }

// Activate arms the pin interrupt. Activating twice is a no-op.
func (d *Digital) Activate() error {
	if d.active.Load() {
		return nil
	}
	if err := d.pin.SetIRQ(d.pinIRQ); err != nil {
		return err
	}
	d.active.Store(true)
	return nil
}

func (d *Digital) Active() bool { return d.active.Load() }

// pinIRQ is the hardware pin handler.
func (d *Digital) pinIRQ() {
	d.edge.Store(true)
	d.line.Fire()
}

// CheckIRQ reports and clears a latched edge.
func (d *Digital) CheckIRQ() bool {
	return d.active.Load() && d.edge.CompareAndSwap(true, false)
}

// ISR samples the level and flags the sensors task.
func (d *Digital) ISR() {
	v := d.pin.Get()
	if d.activeLow {
		v = !v
	}
	d.level.Store(v)
	d.events.Add(1)
	if d.changed != nil {
		d.changed()
	}
}

// Value is 1 while asserted (pressed, motion, object near).
func (d *Digital) Value() int {
	if d.level.Load() {
		return 1
	}
	return 0
}

// Events counts serviced interrupts.
func (d *Digital) Events() uint32 { return d.events.Load() }
