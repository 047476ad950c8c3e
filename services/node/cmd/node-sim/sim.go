package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nodecode-go/sched"
	"nodecode-go/sensors"
	"nodecode-go/services/heartbeat"
	"nodecode-go/services/node"
	"nodecode-go/services/node/internal/nodecore"
	"nodecode-go/services/node/internal/platform"
)

// Result is what a finished simulation reports.
type Result struct {
	Node     node.Stats
	Watchdog platform.WatchdogStats
	Beats    uint32
	Ticks    uint32
	Events   []string
}

// simulate runs the profile until its duration elapses or ctx ends.
func simulate(ctx context.Context, log *zap.Logger, p *Profile) (*Result, error) {
	cfg, err := p.NodeConfig()
	if err != nil {
		return nil, err
	}
	h := platform.New(p.Tick)
	defer h.Close()

	res := &Result{}
	events := make(chan string, 64)
	var hb *heartbeat.Service
	sys, err := node.Assemble(cfg, h.Board(cfg.Sensors != nodecore.SensorsNone),
		func(sys *node.System) *sched.Process {
			hb = heartbeat.New(sys.Sched, sys.Timers, sys.Board.LEDs)
			return hb.Process()
		},
		func(sys *node.System) *sched.Process {
			return sched.NewProcess("sim-log", func(_ *sched.Process, ev sched.Event, data any) {
				switch ev {
				case sched.EventSensor:
					sn := data.(sensors.Sensor)
					log.Info("sensor", zap.String("name", sn.Name()), zap.Int("value", sn.Value()))
					record(events, "sensor:"+sn.Name())
				case sched.EventSerialLine:
					line := data.(string)
					log.Info("serial line", zap.String("line", line))
					record(events, "line:"+line)
				}
			})
		},
	)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.Duration)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- sys.Run(ctx) }()

	play(ctx, log, h, p.Script)
	<-ctx.Done()
	h.Close()
	if err := <-done; err != nil && ctx.Err() == nil {
		return nil, err
	}

	close(events)
	for e := range events {
		res.Events = append(res.Events, e)
	}
	res.Node = sys.Stats()
	res.Watchdog = h.Watchdog.Stats()
	res.Ticks = h.Clock.Ticks()
	if hb != nil {
		res.Beats = hb.Beats()
	}
	return res, nil
}

func record(ch chan string, s string) {
	select {
	case ch <- s:
	default:
	}
}

func play(ctx context.Context, log *zap.Logger, h *platform.Host, script []Step) {
	start := time.Now()
	for _, s := range script {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Until(start.Add(s.At))):
		}
		apply(log, h, s)
	}
}

func apply(log *zap.Logger, h *platform.Host, s Step) {
	pin := func(name string) *platform.FakePin {
		switch name {
		case sensors.NameButtonA:
			return h.ButtonA
		case sensors.NameButtonB:
			return h.ButtonB
		}
		log.Warn("unknown button", zap.String("name", name))
		return nil
	}
	switch {
	case s.Press != "":
		if p := pin(s.Press); p != nil {
			h.Press(p)
		}
	case s.Release != "":
		if p := pin(s.Release); p != nil {
			h.Release(p)
		}
	case s.Aux != nil:
		h.Aux.Set(*s.Aux)
	case s.Radio:
		h.PulseRadio()
	case s.Type != "":
		route, _ := nodecore.ParseDebugRoute(s.Route)
		h.Type(route, s.Type)
	default:
		return
	}
	log.Debug("stimulus", zap.Duration("at", s.At))
}
