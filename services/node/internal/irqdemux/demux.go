// services/node/internal/irqdemux/demux.go
package irqdemux

import (
	"sync/atomic"
)

// Source is one logical cause multiplexed onto a shared interrupt line.
// Both methods run in interrupt context and must not block.
type Source interface {
	// CheckIRQ reports whether this source caused the current raw interrupt.
	CheckIRQ() bool
	// ISR services the source; it may only flag work for task context.
	ISR()
}

// Line is a shared raw interrupt line. Callbacks are added during boot and
// run in order on every Fire.
type Line struct {
	cbs   []func()
	fires atomic.Uint32
}

// AddCallback installs fn. Boot only.
func (l *Line) AddCallback(fn func()) {
	if fn != nil {
		l.cbs = append(l.cbs, fn)
	}
}

// Fire is the raw interrupt entry point.
func (l *Line) Fire() {
	l.fires.Add(1)
	for _, fn := range l.cbs {
		fn()
	}
}

func (l *Line) Fires() uint32 { return l.fires.Load() }

// Demux tests every source in fixed priority order and services each one
// whose predicate holds. It is not first-match: two buttons latched on the
// same edge are both serviced from one raw interrupt.
type Demux struct {
	sources  []Source // immutable after New
	spurious atomic.Uint32
	serviced atomic.Uint32
}

// New takes the sources in priority order. Nil entries are skipped, so an
// absent auxiliary sensor can be passed as-is.
func New(sources ...Source) *Demux {
	d := &Demux{}
	for _, s := range sources {
		if s != nil {
			d.sources = append(d.sources, s)
		}
	}
	return d
}

// Service is installed as the line callback.
func (d *Demux) Service() {
	hit := false
	for _, s := range d.sources {
		if s.CheckIRQ() {
			hit = true
			d.serviced.Add(1)
			s.ISR()
		}
	}
	if !hit {
		// Benign race at the edge-detection boundary.
		d.spurious.Add(1)
	}
}

// Spurious counts raw interrupts that matched no source.
func (d *Demux) Spurious() uint32 { return d.spurious.Load() }

// Serviced counts handler invocations.
func (d *Demux) Serviced() uint32 { return d.serviced.Load() }

// Len is the number of installed sources.
func (d *Demux) Len() int { return len(d.sources) }
