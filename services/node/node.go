// Package node assembles the sensor-node core: scheduler, timers, interrupt
// routing, sensors, serial line input and the supervised main loop.
package node

import (
	"context"

	"nodecode-go/errcode"
	"nodecode-go/sched"
	"nodecode-go/sensors"
	"nodecode-go/serialline"
	"nodecode-go/services/node/internal/boot"
	"nodecode-go/services/node/internal/irqdemux"
	"nodecode-go/services/node/internal/lpm"
	"nodecode-go/services/node/internal/nodecore"
	"nodecode-go/services/node/internal/runloop"
)

// App builds an autostart task against the assembled system. A nil process
// is skipped.
type App func(sys *System) *sched.Process

// System is the wired node before and after boot.
type System struct {
	Config nodecore.Config
	Board  nodecore.Board

	Sched    *sched.Scheduler
	Timers   *sched.Timers
	CTimers  *sched.CallbackTimers
	Realtime *sched.Realtime

	Line  *irqdemux.Line
	Demux *irqdemux.Demux
	Radio *irqdemux.RadioBridge

	Sensors          *sensors.Set
	ButtonA, ButtonB *sensors.Digital
	Aux              *sensors.Digital // nil unless an auxiliary sensor is selected

	Lines *serialline.Reader

	Registry *lpm.Registry
	Policy   lpm.Policy

	Boot *boot.Sequencer
	Loop *runloop.Loop
}

// Stats is a snapshot of the node's counters.
type Stats struct {
	Pumps, Idles       uint32
	LineFires          uint32
	Serviced, Spurious uint32
	RadioForwards      uint32
	SerialDrops        uint32
}

// Assemble wires every component for cfg on board without touching hardware.
func Assemble(cfg nodecore.Config, board nodecore.Board, apps ...App) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	sys := &System{Config: cfg, Board: board}

	sys.Sched = sched.New(sched.DefaultQueueLen)
	sys.Timers = sched.NewTimers(sys.Sched, board.Clock.Now)
	sys.CTimers = sched.NewCallbackTimers(sys.Sched, sys.Timers)
	sys.Realtime = &sched.Realtime{}
	board.Clock.OnTick(sys.Timers.Tick)
	board.Clock.OnTick(func() { sys.Realtime.Run(board.Clock.Now()) })

	sys.Line = &irqdemux.Line{}
	sys.ButtonA = sensors.NewButton(sensors.NameButtonA, board.ButtonA, sys.Line)
	sys.ButtonB = sensors.NewButton(sensors.NameButtonB, board.ButtonB, sys.Line)
	switch cfg.Sensors {
	case nodecore.SensorsMotion, nodecore.SensorsProximity:
		if board.Aux == nil {
			return nil, &errcode.E{C: errcode.Unsupported, Op: "assemble", Msg: "board has no aux sensor pin"}
		}
		if cfg.Sensors == nodecore.SensorsMotion {
			sys.Aux = sensors.NewMotion(board.Aux, sys.Line)
		} else {
			sys.Aux = sensors.NewProximity(board.Aux, sys.Line)
		}
	}

	// Demux order is the priority order: A, B, then aux.
	srcs := []irqdemux.Source{sys.ButtonA, sys.ButtonB}
	list := []sensors.Sensor{sys.ButtonA, sys.ButtonB}
	if sys.Aux != nil {
		srcs = append(srcs, sys.Aux)
		list = append(list, sys.Aux)
	}
	sys.Demux = irqdemux.New(srcs...)
	sys.Sensors = sensors.NewSet(sys.Sched, list...)
	sys.Radio = irqdemux.NewRadioBridge(board.Radio)

	sys.Lines = serialline.New(sys.Sched, serialline.DefaultBufSize, serialline.DefaultMaxLine)

	sys.Registry = &lpm.Registry{}
	pol, err := lpm.NewPolicy(cfg, board.LPM, board.Peripherals, board.Parker, sys.Registry)
	if err != nil {
		return nil, err
	}
	sys.Policy = pol

	var autostart []*sched.Process
	for _, app := range apps {
		if p := app(sys); p != nil {
			autostart = append(autostart, p)
		}
	}

	d := boot.Deps{
		Cfg:            cfg,
		Board:          board,
		Policy:         pol,
		Sched:          sys.Sched,
		TimerTask:      sys.Timers.Process(),
		CallbackTimers: sys.CTimers,
		Realtime:       sys.Realtime,
		Line:           sys.Line,
		IRQService:     sys.Demux.Service,
		Radio:          sys.Radio,
		SensorsTask:    sys.Sensors.Process(),
		Buttons:        [2]boot.Activator{sys.ButtonA, sys.ButtonB},
		Lines:          sys.Lines,
		Autostart:      autostart,
	}
	if sys.Aux != nil {
		d.Aux = sys.Aux
	}
	sys.Boot = boot.New(d)
	sys.Loop = runloop.New(sys.Sched, board.Watchdog, pol, cfg.ICDMode)
	return sys, nil
}

// Run boots the system and then runs the main loop until ctx ends.
func (sys *System) Run(ctx context.Context) error {
	if err := sys.Boot.Run(); err != nil {
		return err
	}
	return sys.Loop.Run(ctx)
}

// Stats reads the counters. Safe while the loop runs.
func (sys *System) Stats() Stats {
	return Stats{
		Pumps:         sys.Loop.Pumps(),
		Idles:         sys.Loop.Idles(),
		LineFires:     sys.Line.Fires(),
		Serviced:      sys.Demux.Serviced(),
		Spurious:      sys.Demux.Spurious(),
		RadioForwards: sys.Radio.Forwards(),
		SerialDrops:   sys.Lines.Drops(),
	}
}

// Run assembles, boots and runs. A boot failure is returned before the
// watchdog has been started.
func Run(ctx context.Context, cfg nodecore.Config, board nodecore.Board, apps ...App) error {
	sys, err := Assemble(cfg, board, apps...)
	if err != nil {
		return err
	}
	return sys.Run(ctx)
}
