package irqdemux

import (
	"sync/atomic"

	"nodecode-go/services/node/internal/nodecore"
)

// RadioBridge is the dedicated radio vector: a straight pass-through to the
// driver, which runs its own state machine and buffering.
type RadioBridge struct {
	radio    nodecore.Radio
	forwards atomic.Uint32
}

func NewRadioBridge(r nodecore.Radio) *RadioBridge { return &RadioBridge{radio: r} }

// Handle runs in interrupt context.
func (b *RadioBridge) Handle() {
	b.forwards.Add(1)
	b.radio.Interrupt()
}

// Attach installs the bridge on the radio's interrupt pin.
func (b *RadioBridge) Attach(pin nodecore.IRQPin) error {
	return pin.SetIRQ(b.Handle)
}

func (b *RadioBridge) Forwards() uint32 { return b.forwards.Load() }
