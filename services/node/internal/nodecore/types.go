// services/node/internal/nodecore/types.go
package nodecore

import (
	"time"

	"nodecode-go/sched"
)

// Initer is any collaborator with a one-shot bring-up step.
type Initer interface {
	Init() error
}

// InitFunc adapts a plain function to Initer.
type InitFunc func() error

func (f InitFunc) Init() error { return f() }

// Nop is an Initer that does nothing.
var Nop Initer = InitFunc(func() error { return nil })

// ---- Watchdog / clock / indicators ----

type Watchdog interface {
	Init() error // configure, do not start
	Start()
	Stop()
	Refresh()
}

// Clock is the system tick source. Tick hooks run in interrupt context.
type Clock interface {
	Init() error
	OnTick(fn func())
	Now() time.Time
}

type LEDs interface {
	Init() error
	Set(on bool)
	Toggle()
}

// ---- Power ----

// Peripheral is one power-manageable controller. Any normal use resumes it.
type Peripheral interface {
	ID() PeripheralID
	PowerDown()
}

type LowPowerManager interface {
	Init() error
	RegisterPeripheral(p Peripheral)
	EnterIdle() // returns on the next interrupt
}

// Parker is the generic wait-for-interrupt used without low-power support.
type Parker interface {
	Wait()
}

// ---- Interrupts ----

// IRQPin is a GPIO input able to raise an interrupt. The handler runs in
// interrupt context.
type IRQPin interface {
	Get() bool
	SetIRQ(handler func()) error
}

// IRQLine is a shared raw interrupt line; callbacks are installed at boot.
type IRQLine interface {
	AddCallback(fn func())
}

// Radio is the transceiver driver's interrupt entry point.
type Radio interface {
	Interrupt()
}

// ---- Transport ----

type DebugTransport interface {
	Init(baud uint32) error
	// SetInput routes received bytes from the given port to fn, which is
	// called in interrupt context.
	SetInput(route DebugRoute, fn func(c byte)) error
}

type LineInput interface {
	Init() error
	InputByte(c byte)
}

// ---- Scheduler ----

type Scheduler interface {
	Init() error
	Start(p *sched.Process, arg any)
	RunOnce() int
}

// Board is everything a platform has to supply.
type Board struct {
	MCU      Initer
	Watchdog Watchdog
	Clock    Clock
	LEDs     LEDs
	Platform Initer

	LPM         LowPowerManager // nil without low-power support
	Peripherals []Peripheral    // every controller the board can power down
	Parker      Parker

	ButtonA, ButtonB IRQPin
	Aux              IRQPin // nil when no auxiliary sensor is fitted

	RadioIRQ IRQPin
	Radio    Radio

	Debug DebugTransport
	Net   Initer
}
