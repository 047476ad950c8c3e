// services/node/internal/boot/boot.go
package boot

import (
	"sync/atomic"

	"nodecode-go/errcode"
	"nodecode-go/sched"
	"nodecode-go/services/node/internal/lpm"
	"nodecode-go/services/node/internal/nodecore"
)

// Activator arms a logical interrupt source.
type Activator interface {
	Activate() error
}

// RadioVector installs the radio pass-through on its dedicated pin.
type RadioVector interface {
	Attach(pin nodecore.IRQPin) error
}

// Deps is everything the sequence touches, resolved before boot.
type Deps struct {
	Cfg    nodecore.Config
	Board  nodecore.Board
	Policy lpm.Policy

	Sched          nodecore.Scheduler
	TimerTask      *sched.Process
	CallbackTimers nodecore.Initer
	Realtime       nodecore.Initer

	Line       nodecore.IRQLine
	IRQService func() // demultiplexer entry for the shared line
	Radio      RadioVector

	SensorsTask *sched.Process
	Buttons     [2]Activator // A then B
	Aux         Activator    // nil when no auxiliary sensor is fitted

	Lines nodecore.LineInput

	Autostart []*sched.Process
}

type step struct {
	name string
	run  func() error
}

// Sequencer runs the fixed initialisation order exactly once. Each step
// relies on the postconditions of the ones before it.
type Sequencer struct {
	d       Deps
	steps   []step
	started bool
	reached atomic.Int32
}

func New(d Deps) *Sequencer {
	s := &Sequencer{d: d}
	s.steps = []step{
		{"mcu", d.Board.MCU.Init},
		{"watchdog_init", d.Board.Watchdog.Init},
		{"clock", d.Board.Clock.Init},
		{"leds", d.Board.LEDs.Init},
		{"platform", d.Board.Platform.Init},
		{"power", d.Policy.Setup},
		{"scheduler", s.initScheduler},
		{"irq", s.initIRQ},
		{"sensors", s.initSensors},
		{"transport", s.initTransport},
		{"watchdog_start", s.startWatchdog},
		{"autostart", s.startAutostart},
	}
	return s
}

// Steps lists the step names in execution order.
func (s *Sequencer) Steps() []string {
	out := make([]string, len(s.steps))
	for i, st := range s.steps {
		out[i] = st.name
	}
	return out
}

// Reached is the number of steps completed.
func (s *Sequencer) Reached() int { return int(s.reached.Load()) }

// Run executes the sequence. There are no retries: a failing step ends the
// sequence and a second call is refused.
func (s *Sequencer) Run() error {
	if s.started {
		return errcode.AlreadyBooted
	}
	s.started = true
	for i, st := range s.steps {
		if err := st.run(); err != nil {
			println("[boot] step", i+1, st.name, "failed:", err.Error())
			return &errcode.E{C: errcode.BootFailed, Op: st.name, Err: err}
		}
		s.reached.Store(int32(i + 1))
	}
	println("[boot] complete; power policy:", s.d.Policy.Name())
	return nil
}

func (s *Sequencer) initScheduler() error {
	if err := s.d.Sched.Init(); err != nil {
		return err
	}
	s.d.Sched.Start(s.d.TimerTask, nil)
	if err := s.d.CallbackTimers.Init(); err != nil {
		return err
	}
	return s.d.Realtime.Init()
}

func (s *Sequencer) initIRQ() error {
	if s.d.IRQService == nil {
		return &errcode.E{C: errcode.InvalidConfig, Op: "irq", Msg: "no demultiplexer"}
	}
	// One entry services buttons and, when fitted, the auxiliary sensor.
	s.d.Line.AddCallback(s.d.IRQService)
	if s.d.Cfg.Sensors != nodecore.SensorsNone {
		println("[boot] aux sensor on shared line:", s.d.Cfg.Sensors.String())
	}
	return s.d.Radio.Attach(s.d.Board.RadioIRQ)
}

func (s *Sequencer) initSensors() error {
	s.d.Sched.Start(s.d.SensorsTask, nil)
	for _, b := range s.d.Buttons {
		if err := b.Activate(); err != nil {
			return err
		}
	}
	// The aux sensor shares the button line, so it is armed with them.
	if s.d.Aux != nil {
		return s.d.Aux.Activate()
	}
	return nil
}

func (s *Sequencer) initTransport() error {
	if err := s.d.Board.Debug.Init(s.d.Cfg.DebugBaud); err != nil {
		return err
	}
	if err := s.d.Board.Net.Init(); err != nil {
		return err
	}
	if s.d.Cfg.DebugRoute != nodecore.RouteNone {
		if err := s.d.Board.Debug.SetInput(s.d.Cfg.DebugRoute, s.d.Lines.InputByte); err != nil {
			return err
		}
	}
	return s.d.Lines.Init()
}

func (s *Sequencer) startWatchdog() error {
	if s.d.Cfg.ICDMode {
		println("[boot] icd mode: watchdog left stopped")
		return nil
	}
	s.d.Board.Watchdog.Start()
	return nil
}

func (s *Sequencer) startAutostart() error {
	for _, p := range s.d.Autostart {
		s.d.Sched.Start(p, nil)
	}
	return nil
}
