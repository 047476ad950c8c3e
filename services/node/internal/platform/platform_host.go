// services/node/internal/platform/platform_host.go
//go:build !rp2040

package platform

import (
	"sync"
	"sync/atomic"
	"time"

	"nodecode-go/errcode"
	"nodecode-go/services/node/internal/nodecore"
)

// DefaultTick is the simulated system tick period.
const DefaultTick = 10 * time.Millisecond

// WatchdogTimeout is how long the simulated watchdog tolerates silence.
const WatchdogTimeout = 2 * time.Second

// Host is a simulated board. Pins, tick and debug input behave like their
// interrupt-driven counterparts: handlers run on the injecting goroutine and
// wake a parked main loop.
type Host struct {
	wake chan struct{}
	done chan struct{}
	once sync.Once

	Watchdog *Watchdog
	Clock    *Clock
	LEDs     *LEDs
	LPM      *LowPower
	Parker   *Parker
	Debug    *Debug
	Radio    *Radio

	ButtonA, ButtonB, Aux, RadioIRQ *FakePin

	Peripherals []*Peripheral
}

// New builds a host board. tick <= 0 selects DefaultTick.
func New(tick time.Duration) *Host {
	if tick <= 0 {
		tick = DefaultTick
	}
	h := &Host{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	h.Watchdog = &Watchdog{timeout: WatchdogTimeout}
	h.Clock = &Clock{period: tick, wake: h.Wake, done: h.done}
	h.LEDs = &LEDs{}
	h.Parker = &Parker{h: h}
	h.LPM = &LowPower{h: h}
	h.Debug = &Debug{wake: h.Wake}
	h.Radio = &Radio{}
	h.ButtonA = &FakePin{number: 14, level: true, wake: h.Wake}
	h.ButtonB = &FakePin{number: 15, level: true, wake: h.Wake}
	h.Aux = &FakePin{number: 16, wake: h.Wake}
	h.RadioIRQ = &FakePin{number: 20, rising: true, wake: h.Wake}
	for _, id := range nodecore.AllPeripherals {
		h.Peripherals = append(h.Peripherals, &Peripheral{id: id})
	}
	return h
}

// Board exposes the simulated collaborators. withAux fits the auxiliary
// sensor pin.
func (h *Host) Board(withAux bool) nodecore.Board {
	ps := make([]nodecore.Peripheral, len(h.Peripherals))
	for i, p := range h.Peripherals {
		ps[i] = p
	}
	b := nodecore.Board{
		MCU:         nodecore.Nop,
		Watchdog:    h.Watchdog,
		Clock:       h.Clock,
		LEDs:        h.LEDs,
		Platform:    nodecore.Nop,
		LPM:         h.LPM,
		Peripherals: ps,
		Parker:      h.Parker,
		ButtonA:     h.ButtonA,
		ButtonB:     h.ButtonB,
		RadioIRQ:    h.RadioIRQ,
		Radio:       h.Radio,
		Debug:       h.Debug,
		Net:         nodecore.Nop,
	}
	if withAux {
		b.Aux = h.Aux
	}
	return b
}

// Wake releases a parked main loop. Safe from any goroutine.
func (h *Host) Wake() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

// Close stops the tick goroutine and releases any parked wait.
func (h *Host) Close() {
	h.once.Do(func() { close(h.done) })
}

func (h *Host) park() {
	select {
	case <-h.wake:
	case <-h.done:
	}
}

// ---- Stimulus helpers ----

// Press drives a button pin to its pressed (low) level.
func (h *Host) Press(p *FakePin) { p.Set(false) }

// Release drives a button pin back high.
func (h *Host) Release(p *FakePin) { p.Set(true) }

// PulseRadio raises and drops the radio DIO line.
func (h *Host) PulseRadio() {
	h.RadioIRQ.Set(true)
	h.RadioIRQ.Set(false)
}

// Type feeds bytes as if received on route.
func (h *Host) Type(route nodecore.DebugRoute, s string) {
	for i := 0; i < len(s); i++ {
		h.Debug.Receive(route, s[i])
	}
}

// ---- GPIO ----

// FakePin is an IRQ-capable input. Any level change calls the handler, or
// only rising edges when rising is set.
type FakePin struct {
	mu      sync.RWMutex
	number  int
	level   bool
	rising  bool
	irqFunc func()
	wake    func()
	edges   atomic.Uint32
}

func (p *FakePin) Set(level bool) {
	p.mu.Lock()
	old := p.level
	p.level = level
	irq := p.irqFunc
	p.mu.Unlock()
	if old == level || (p.rising && !level) {
		return
	}
	p.edges.Add(1)
	if irq != nil {
		irq()
	}
	if p.wake != nil {
		p.wake()
	}
}

func (p *FakePin) Get() bool {
	p.mu.RLock()
	v := p.level
	p.mu.RUnlock()
	return v
}

func (p *FakePin) SetIRQ(handler func()) error {
	p.mu.Lock()
	p.irqFunc = handler
	p.mu.Unlock()
	return nil
}

func (p *FakePin) Number() int   { return p.number }
func (p *FakePin) Edges() uint32 { return p.edges.Load() }

// Armed reports whether a handler is installed.
func (p *FakePin) Armed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.irqFunc != nil
}

// ---- Watchdog ----

// Watchdog records its calls and counts any gap between refreshes longer
// than the timeout while running.
type Watchdog struct {
	mu      sync.Mutex
	timeout time.Duration
	inited  bool
	running bool
	last    time.Time

	starts, stops, refreshes, bites uint32
}

type WatchdogStats struct {
	Inited, Running                 bool
	Starts, Stops, Refreshes, Bites uint32
}

func (w *Watchdog) Init() error {
	w.mu.Lock()
	w.inited = true
	w.mu.Unlock()
	return nil
}

func (w *Watchdog) Start() {
	w.mu.Lock()
	w.running = true
	w.last = time.Now()
	w.starts++
	w.mu.Unlock()
}

func (w *Watchdog) Stop() {
	w.mu.Lock()
	w.check()
	w.running = false
	w.stops++
	w.mu.Unlock()
}

func (w *Watchdog) Refresh() {
	w.mu.Lock()
	w.check()
	w.last = time.Now()
	w.refreshes++
	w.mu.Unlock()
}

func (w *Watchdog) check() {
	if w.running && time.Since(w.last) > w.timeout {
		w.bites++
	}
}

func (w *Watchdog) Stats() WatchdogStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return WatchdogStats{
		Inited:    w.inited,
		Running:   w.running,
		Starts:    w.starts,
		Stops:     w.stops,
		Refreshes: w.refreshes,
		Bites:     w.bites,
	}
}

// ---- Clock ----

// Clock drives tick hooks from a goroutine standing in for the timer IRQ.
type Clock struct {
	period time.Duration
	wake   func()
	done   chan struct{}

	mu    sync.Mutex
	hooks []func()
	start time.Time
	ticks atomic.Uint32
}

// OnTick installs a hook; hooks must be installed before Init.
func (c *Clock) OnTick(fn func()) {
	c.mu.Lock()
	c.hooks = append(c.hooks, fn)
	c.mu.Unlock()
}

func (c *Clock) Init() error {
	c.mu.Lock()
	if !c.start.IsZero() {
		c.mu.Unlock()
		return errcode.Busy
	}
	c.start = time.Now()
	hooks := append([]func(){}, c.hooks...)
	c.mu.Unlock()

	go func() {
		t := time.NewTicker(c.period)
		defer t.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-t.C:
				c.ticks.Add(1)
				for _, fn := range hooks {
					fn()
				}
				c.wake()
			}
		}
	}()
	return nil
}

func (c *Clock) Now() time.Time { return time.Now() }

func (c *Clock) Ticks() uint32 { return c.ticks.Load() }

// ---- LEDs ----

type LEDs struct {
	on      atomic.Bool
	toggles atomic.Uint32
}

func (l *LEDs) Init() error     { l.on.Store(false); return nil }
func (l *LEDs) Set(on bool)     { l.on.Store(on) }
func (l *LEDs) Toggle()         { l.toggles.Add(1); l.on.Store(!l.on.Load()) }
func (l *LEDs) On() bool        { return l.on.Load() }
func (l *LEDs) Toggles() uint32 { return l.toggles.Load() }

// ---- Power ----

type Peripheral struct {
	id    nodecore.PeripheralID
	downs atomic.Uint32
}

func (p *Peripheral) ID() nodecore.PeripheralID { return p.id }
func (p *Peripheral) PowerDown()                { p.downs.Add(1) }
func (p *Peripheral) Downs() uint32             { return p.downs.Load() }

// Parker waits for the next wake.
type Parker struct {
	h     *Host
	waits atomic.Uint32
}

func (p *Parker) Wait()         { p.waits.Add(1); p.h.park() }
func (p *Parker) Waits() uint32 { return p.waits.Load() }

// LowPower is the simulated power manager.
type LowPower struct {
	h          *Host
	mu         sync.Mutex
	inited     bool
	registered []nodecore.PeripheralID
	idles      atomic.Uint32
}

func (l *LowPower) Init() error {
	l.mu.Lock()
	l.inited = true
	l.mu.Unlock()
	return nil
}

func (l *LowPower) RegisterPeripheral(p nodecore.Peripheral) {
	l.mu.Lock()
	l.registered = append(l.registered, p.ID())
	l.mu.Unlock()
}

func (l *LowPower) EnterIdle() { l.idles.Add(1); l.h.park() }

func (l *LowPower) Registered() []nodecore.PeripheralID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]nodecore.PeripheralID(nil), l.registered...)
}

func (l *LowPower) Idles() uint32 { return l.idles.Load() }

func (l *LowPower) Inited() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inited
}

// ---- Transport ----

// Debug models both UARTs. Bytes received on the routed port reach the
// installed input hook; others are discarded.
type Debug struct {
	wake func()

	mu    sync.RWMutex
	baud  uint32
	route nodecore.DebugRoute
	input func(byte)

	discarded atomic.Uint32
}

func (d *Debug) Init(baud uint32) error {
	if baud == 0 {
		return &errcode.E{C: errcode.InvalidConfig, Op: "debug", Msg: "zero baud"}
	}
	d.mu.Lock()
	d.baud = baud
	d.mu.Unlock()
	return nil
}

func (d *Debug) SetInput(route nodecore.DebugRoute, fn func(c byte)) error {
	if route == nodecore.RouteNone || fn == nil {
		return &errcode.E{C: errcode.InvalidConfig, Op: "debug", Msg: "no route"}
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.baud == 0 {
		return &errcode.E{C: errcode.NotInitialised, Op: "debug"}
	}
	d.route, d.input = route, fn
	return nil
}

// Receive injects one byte on a port.
func (d *Debug) Receive(route nodecore.DebugRoute, c byte) {
	d.mu.RLock()
	in := d.input
	routed := d.route == route
	d.mu.RUnlock()
	if in == nil || !routed {
		d.discarded.Add(1)
		return
	}
	in(c)
	d.wake()
}

func (d *Debug) Baud() uint32 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.baud
}

func (d *Debug) Discarded() uint32 { return d.discarded.Load() }

// Radio counts interrupts handed to the transceiver driver.
type Radio struct{ irqs atomic.Uint32 }

func (r *Radio) Interrupt()   { r.irqs.Add(1) }
func (r *Radio) IRQs() uint32 { return r.irqs.Load() }
