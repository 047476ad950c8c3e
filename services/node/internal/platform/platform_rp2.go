// services/node/internal/platform/platform_rp2.go
//go:build rp2040

package platform

import (
	"context"
	"device/rp"
	"machine"
	"runtime/interrupt"
	"sync/atomic"
	"time"

	"github.com/jangala-dev/tinygo-uartx/uartx"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/sx127x"

	"nodecode-go/errcode"
	"nodecode-go/services/node/internal/nodecore"
)

// Pico wiring.
const (
	pinButtonA  = machine.GP14
	pinButtonB  = machine.GP15
	pinAux      = machine.GP16
	pinRadioCS  = machine.GP17
	pinRadioDIO = machine.GP20
	pinRadioRST = machine.GP21

	pinUART0TX = machine.GP0
	pinUART0RX = machine.GP1
	pinUART1TX = machine.GP4
	pinUART1RX = machine.GP5
)

const (
	tickMicros        = 10_000
	watchdogTimeoutMs = 2000
	radioSPIHz        = 1_000_000
)

// RP2 is the Pico board.
type RP2 struct {
	Debug *debugUART
	Radio *radio
}

// New picks the debug console from route. UART0 is the console when no
// input route is selected.
func New(route nodecore.DebugRoute) *RP2 {
	d := &debugUART{route: route, u: uartx.UART0, tx: pinUART0TX, rx: pinUART0RX}
	if route == nodecore.RouteUART1 {
		d.u, d.tx, d.rx = uartx.UART1, pinUART1TX, pinUART1RX
	}
	return &RP2{Debug: d, Radio: &radio{}}
}

func (b *RP2) Board(withAux bool) nodecore.Board {
	bd := nodecore.Board{
		MCU:      nodecore.InitFunc(mcuInit),
		Watchdog: watchdog{},
		Clock:    &clock,
		LEDs:     leds{},
		Platform: nodecore.InitFunc(boardInit),
		LPM:      &lowPower{},
		Peripherals: []nodecore.Peripheral{
			resetsPeriph{nodecore.SPI0, rp.RESETS_RESET_SPI0},
			resetsPeriph{nodecore.SPI1, rp.RESETS_RESET_SPI1},
			resetsPeriph{nodecore.UART0, rp.RESETS_RESET_UART0},
			resetsPeriph{nodecore.UART1, rp.RESETS_RESET_UART1},
			resetsPeriph{nodecore.I2C0, rp.RESETS_RESET_I2C0},
			resetsPeriph{nodecore.I2C1, rp.RESETS_RESET_I2C1},
		},
		Parker:   parker{},
		ButtonA:  &gpioIn{p: pinButtonA, pull: machine.PinInputPullup},
		ButtonB:  &gpioIn{p: pinButtonB, pull: machine.PinInputPullup},
		RadioIRQ: &gpioIn{p: pinRadioDIO, pull: machine.PinInputPulldown, rising: true},
		Radio:    b.Radio,
		Debug:    b.Debug,
		Net:      nodecore.InitFunc(b.Radio.init),
	}
	if withAux {
		bd.Aux = &gpioIn{p: pinAux, pull: machine.PinInputPulldown}
	}
	return bd
}

// ---- MCU / board ----

func mcuInit() error {
	if rp.WATCHDOG.REASON.HasBits(rp.WATCHDOG_REASON_TIMER) {
		println("[platform] reset by watchdog")
	}
	return nil
}

func boardInit() error {
	for _, p := range []machine.Pin{pinButtonA, pinButtonB} {
		p.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	}
	pinRadioCS.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinRadioCS.High()
	return nil
}

// ---- Watchdog ----

type watchdog struct{}

func (watchdog) Init() error {
	return machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogTimeoutMs})
}

func (watchdog) Start() {
	if err := machine.Watchdog.Start(); err != nil {
		println("[platform] watchdog start:", err.Error())
	}
}

func (watchdog) Stop() { rp.WATCHDOG.CTRL.ClearBits(rp.WATCHDOG_CTRL_ENABLE) }

func (watchdog) Refresh() { machine.Watchdog.Update() }

// ---- Clock: TIMER alarm 1 ----

type tickClock struct {
	hooks []func()
	ticks atomic.Uint32
}

var clock tickClock

func (c *tickClock) OnTick(fn func()) { c.hooks = append(c.hooks, fn) }

func (c *tickClock) Init() error {
	irq := interrupt.New(rp.IRQ_TIMER_IRQ_1, timerIRQ)
	rp.TIMER.INTE.SetBits(rp.TIMER_INTE_ALARM_1)
	rp.TIMER.ALARM1.Set(rp.TIMER.TIMERAWL.Get() + tickMicros)
	irq.Enable()
	return nil
}

func (c *tickClock) Now() time.Time { return time.Now() }

func timerIRQ(interrupt.Interrupt) {
	rp.TIMER.INTR.Set(rp.TIMER_INTR_ALARM_1)
	rp.TIMER.ALARM1.Set(rp.TIMER.ALARM1.Get() + tickMicros)
	clock.ticks.Add(1)
	for _, fn := range clock.hooks {
		fn()
	}
	wake()
}

// ---- LEDs ----

type leds struct{}

func (leds) Init() error {
	machine.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	machine.LED.Low()
	return nil
}

func (leds) Set(on bool) { machine.LED.Set(on) }

func (leds) Toggle() { machine.LED.Set(!machine.LED.Get()) }

// ---- Power ----

// resetsPeriph holds a controller in reset until its driver configures it.
// Powered down once at boot.
type resetsPeriph struct {
	id   nodecore.PeripheralID
	mask uint32
}

func (p resetsPeriph) ID() nodecore.PeripheralID { return p.id }
func (p resetsPeriph) PowerDown()                { rp.RESETS.RESET.SetBits(p.mask) }

var wakeCh = make(chan struct{}, 1)

func wake() {
	select {
	case wakeCh <- struct{}{}:
	default:
	}
}

// parker blocks on the wake channel. The runtime sleeps the core until an
// interrupt while nothing is runnable.
type parker struct{}

func (parker) Wait() { <-wakeCh }

// lowPower tracks the controllers suspended at boot. Idle only parks; a
// controller stays in reset until its driver configures it.
type lowPower struct {
	masks uint32
}

func (l *lowPower) Init() error {
	l.masks = 0
	return nil
}

func (l *lowPower) RegisterPeripheral(p nodecore.Peripheral) {
	if r, ok := p.(resetsPeriph); ok {
		l.masks |= r.mask
	}
}

func (l *lowPower) EnterIdle() { <-wakeCh }

// ---- GPIO ----

type gpioIn struct {
	p      machine.Pin
	pull   machine.PinMode
	rising bool
}

func (g *gpioIn) Get() bool { return g.p.Get() }

func (g *gpioIn) SetIRQ(handler func()) error {
	g.p.Configure(machine.PinConfig{Mode: g.pull})
	change := machine.PinToggle
	if g.rising {
		change = machine.PinRising
	}
	return g.p.SetInterrupt(change, func(machine.Pin) {
		handler()
		wake()
	})
}

// ---- Debug UART ----

type debugUART struct {
	route  nodecore.DebugRoute
	u      *uartx.UART
	tx, rx machine.Pin
	baud   uint32
}

// Init brings up the console port at baud.
func (d *debugUART) Init(baud uint32) error {
	if baud == 0 {
		return &errcode.E{C: errcode.InvalidConfig, Op: "debug", Msg: "zero baud"}
	}
	if err := d.u.Configure(uartx.UARTConfig{BaudRate: baud, TX: d.tx, RX: d.rx}); err != nil {
		return errcode.Wrap(errcode.Error, "debug", err)
	}
	d.baud = baud
	return nil
}

// SetInput attaches fn to the console port's receive side.
func (d *debugUART) SetInput(route nodecore.DebugRoute, fn func(c byte)) error {
	if route == nodecore.RouteNone || route != d.route || fn == nil {
		return &errcode.E{C: errcode.InvalidConfig, Op: "debug", Msg: route.String()}
	}
	if d.baud == 0 {
		return &errcode.E{C: errcode.NotInitialised, Op: "debug"}
	}
	go d.pump(fn)
	return nil
}

func (d *debugUART) pump(fn func(byte)) {
	var buf [32]byte
	ctx := context.Background()
	for {
		n, err := d.u.RecvSomeContext(ctx, buf[:])
		if err != nil {
			continue
		}
		for _, c := range buf[:n] {
			fn(c)
		}
		wake()
	}
}

// ---- Radio ----

type radio struct {
	spi drivers.SPI
	dev *sx127x.Device
}

func (r *radio) init() error {
	spi := machine.SPI0
	if err := spi.Configure(machine.SPIConfig{Frequency: radioSPIHz, Mode: 0}); err != nil {
		return err
	}
	r.spi = spi
	dev := sx127x.New(r.spi, pinRadioRST)
	ctl := sx127x.NewRadioControl(pinRadioCS, machine.NoPin, machine.NoPin)
	if err := dev.SetRadioController(ctl); err != nil {
		return err
	}
	dev.Reset()
	if !dev.DetectDevice() {
		println("[platform] radio: sx127x not detected")
		return nil
	}
	r.dev = dev
	return nil
}

func (r *radio) Interrupt() {
	if r.dev != nil {
		r.dev.HandleInterrupt()
	}
}
