// Package shmring is a lock-free single-producer, single-consumer byte ring.
// The producer side may run in interrupt context: it never blocks or allocates.
package shmring

import "sync/atomic"

// Ring is a single-producer, single-consumer byte ring.
type Ring struct {
	buf  []byte
	mask uint32
	rd   atomic.Uint32 // consumer index (monotonic)
	wr   atomic.Uint32 // producer index (monotonic)

	drops atomic.Uint32 // bytes refused because the ring was full
}

// New allocates a ring; size must be a power of two >= 2.
func New(size int) *Ring {
	if size < 2 || (size&(size-1)) != 0 {
		panic("shmring: size must be power of two >= 2")
	}
	return &Ring{
		buf:  make([]byte, size),
		mask: uint32(size - 1),
	}
}

func (r *Ring) size() uint32 { return uint32(len(r.buf)) }

// Space reports free bytes from the producer's view.
func (r *Ring) Space() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(r.size() - (wr - rd))
}

// Available reports readable bytes from the consumer's view.
func (r *Ring) Available() int {
	rd := r.rd.Load()
	wr := r.wr.Load()
	return int(wr - rd)
}

// Producer side

// TryWriteByte appends c, or counts a drop and returns false when full.
func (r *Ring) TryWriteByte(c byte) bool {
	rd := r.rd.Load()
	wr := r.wr.Load()
	if wr-rd >= r.size() {
		r.drops.Add(1)
		return false
	}
	r.buf[wr&r.mask] = c
	r.wr.Store(wr + 1) // release
	return true
}

// TryWriteFrom copies as much of src as fits and returns the count.
func (r *Ring) TryWriteFrom(src []byte) (n int) {
	if len(src) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load()
	space := int(r.size() - (wr - rd))
	if space <= 0 {
		return 0
	}
	if len(src) < space {
		space = len(src)
	}
	n = space

	size := r.size()
	wrIdx := wr & r.mask
	first := int(size - wrIdx)
	if first > n {
		first = n
	}
	copy(r.buf[wrIdx:wrIdx+uint32(first)], src[:first])
	if second := n - first; second > 0 {
		copy(r.buf[:second], src[first:n])
	}
	r.wr.Store(wr + uint32(n)) // release
	return n
}

// Consumer side

// TryReadInto moves up to len(dst) bytes out of the ring.
func (r *Ring) TryReadInto(dst []byte) (n int) {
	if len(dst) == 0 {
		return 0
	}
	rd := r.rd.Load()
	wr := r.wr.Load() // acquire
	avail := int(wr - rd)
	if avail <= 0 {
		return 0
	}
	if len(dst) < avail {
		avail = len(dst)
	}
	n = avail

	size := r.size()
	rdIdx := rd & r.mask
	first := int(size - rdIdx)
	if first > n {
		first = n
	}
	copy(dst[:first], r.buf[rdIdx:rdIdx+uint32(first)])
	if second := n - first; second > 0 {
		copy(dst[first:n], r.buf[:second])
	}
	r.rd.Store(rd + uint32(n)) // release
	return n
}

// Reset discards buffered bytes. Consumer side only, with the producer quiescent.
func (r *Ring) Reset() {
	r.rd.Store(r.wr.Load())
	r.drops.Store(0)
}

// Drops reports how many bytes the producer refused.
func (r *Ring) Drops() uint32 { return r.drops.Load() }
