// services/node/internal/lpm/registry.go
package lpm

import (
	"sync/atomic"

	"nodecode-go/errcode"
	"nodecode-go/services/node/internal/nodecore"
)

// Registry is the set of peripherals taking part in low-power suspension.
// It is written during boot only; after Seal it is read-only and may be
// consulted from any context without locking.
type Registry struct {
	members []nodecore.Peripheral
	sealed  atomic.Bool
}

// Register adds p. It fails once the registry is sealed or if p's ID is
// already present.
func (r *Registry) Register(p nodecore.Peripheral) error {
	if r.sealed.Load() {
		return &errcode.E{C: errcode.RegistrySealed, Op: "lpm", Msg: string(p.ID())}
	}
	if r.Contains(p.ID()) {
		return &errcode.E{C: errcode.Duplicate, Op: "lpm", Msg: string(p.ID())}
	}
	r.members = append(r.members, p)
	return nil
}

// Seal freezes membership.
func (r *Registry) Seal() { r.sealed.Store(true) }

func (r *Registry) Sealed() bool { return r.sealed.Load() }

func (r *Registry) Contains(id nodecore.PeripheralID) bool {
	for _, p := range r.members {
		if p.ID() == id {
			return true
		}
	}
	return false
}

func (r *Registry) Len() int { return len(r.members) }

// Each visits members in registration order.
func (r *Registry) Each(fn func(p nodecore.Peripheral)) {
	for _, p := range r.members {
		fn(p)
	}
}
