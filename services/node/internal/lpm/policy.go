package lpm

import (
	"nodecode-go/errcode"
	"nodecode-go/services/node/internal/nodecore"
)

// Policy is how the node prepares peripherals at boot and parks when idle.
type Policy interface {
	// Setup runs once, from the boot sequence.
	Setup() error
	// Idle parks the processor until the next interrupt.
	Idle()
	Name() string
}

// NoOp parks with the generic wait instruction and leaves peripherals alone.
type NoOp struct {
	Parker nodecore.Parker
}

func (NoOp) Setup() error { return nil }
func (n NoOp) Idle()      { n.Parker.Wait() }
func (NoOp) Name() string { return "noop" }

// LowPower drives the low-power manager and asserts every registered
// peripheral powered down at boot, since peripherals only power up on use.
type LowPower struct {
	Manager     nodecore.LowPowerManager
	Peripherals []nodecore.Peripheral // already filtered by configuration
	Registry    *Registry
}

func (l *LowPower) Setup() error {
	if err := l.Manager.Init(); err != nil {
		return errcode.Wrap(errcode.Error, "lpm_init", err)
	}
	for _, p := range l.Peripherals {
		if err := l.Registry.Register(p); err != nil {
			return err
		}
		l.Manager.RegisterPeripheral(p)
	}
	l.Registry.Seal()
	l.Registry.Each(func(p nodecore.Peripheral) { p.PowerDown() })
	return nil
}

func (l *LowPower) Idle()      { l.Manager.EnterIdle() }
func (*LowPower) Name() string { return "low_power" }

// NewPolicy picks the variant once from configuration. Board peripherals
// whose IDs are not enabled are left out of the registry.
func NewPolicy(cfg nodecore.Config, mgr nodecore.LowPowerManager, board []nodecore.Peripheral, parker nodecore.Parker, reg *Registry) (Policy, error) {
	if !cfg.LowPower {
		if parker == nil {
			return nil, &errcode.E{C: errcode.InvalidConfig, Op: "lpm", Msg: "no parker"}
		}
		return NoOp{Parker: parker}, nil
	}
	if mgr == nil {
		return nil, &errcode.E{C: errcode.Unsupported, Op: "lpm", Msg: "board has no low-power manager"}
	}
	if reg == nil {
		reg = &Registry{}
	}
	var selected []nodecore.Peripheral
	for _, id := range cfg.LPMPeripherals {
		p := find(board, id)
		if p == nil {
			return nil, &errcode.E{C: errcode.UnknownPeriph, Op: "lpm", Msg: string(id)}
		}
		selected = append(selected, p)
	}
	return &LowPower{Manager: mgr, Peripherals: selected, Registry: reg}, nil
}

func find(ps []nodecore.Peripheral, id nodecore.PeripheralID) nodecore.Peripheral {
	for _, p := range ps {
		if p.ID() == id {
			return p
		}
	}
	return nil
}
