// services/node/internal/runloop/loop.go
package runloop

import (
	"context"
	"sync/atomic"

	"nodecode-go/services/node/internal/lpm"
	"nodecode-go/services/node/internal/nodecore"
)

// Pump is the part of the scheduler the loop drives.
type Pump interface {
	RunOnce() int
}

// Loop alternates between pumping the scheduler under the watchdog and
// parking through the power policy once nothing is pending.
type Loop struct {
	pump   Pump
	wd     nodecore.Watchdog
	policy lpm.Policy
	icd    bool

	pumps atomic.Uint32
	idles atomic.Uint32
}

// New builds a loop. With icd set the watchdog is never touched.
func New(pump Pump, wd nodecore.Watchdog, policy lpm.Policy, icd bool) *Loop {
	return &Loop{pump: pump, wd: wd, policy: policy, icd: icd}
}

// Run never returns on the device. The host harness cancels ctx to stop it;
// cancellation is observed between pump rounds.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.active(ctx)
		if err := ctx.Err(); err != nil {
			return err
		}
		l.idle()
	}
}

func (l *Loop) active(ctx context.Context) {
	for {
		if !l.icd {
			l.wd.Refresh()
		}
		l.pumps.Add(1)
		// Negative results are treated as idle as well.
		if l.pump.RunOnce() <= 0 || ctx.Err() != nil {
			return
		}
	}
}

func (l *Loop) idle() {
	l.idles.Add(1)
	if !l.icd {
		l.wd.Stop()
	}
	l.policy.Idle()
	if !l.icd {
		l.wd.Start()
	}
}

// Pumps is the number of scheduler rounds run.
func (l *Loop) Pumps() uint32 { return l.pumps.Load() }

// Idles is the number of times the loop parked.
func (l *Loop) Idles() uint32 { return l.idles.Load() }
