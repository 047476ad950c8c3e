// Package serialline buffers bytes received in interrupt context and hands
// complete lines to the scheduler as sched.EventSerialLine broadcasts.
package serialline

import (
	"nodecode-go/sched"
	"nodecode-go/x/mathx"
	"nodecode-go/x/shmring"
)

const (
	DefaultBufSize = 128 // power of two
	DefaultMaxLine = 80
)

// Reader assembles lines. LF terminates, CR is ignored, overlong lines are
// truncated to the maximum length.
type Reader struct {
	s    *sched.Scheduler
	proc *sched.Process
	ring *shmring.Ring
	max  int
	line []byte
	over bool

	Truncated uint32 // lines cut short; task context only
}

func New(s *sched.Scheduler, bufSize, maxLine int) *Reader {
	if bufSize <= 0 {
		bufSize = DefaultBufSize
	}
	r := &Reader{
		s:    s,
		ring: shmring.New(bufSize),
		max:  mathx.Clamp(maxLine, 16, 256),
	}
	r.line = make([]byte, 0, r.max)
	r.proc = sched.NewProcess("serial-line", r.handle)
	return r
}

// Init discards buffered input and starts the serial-line task.
func (r *Reader) Init() error {
	r.ring.Reset()
	r.line = r.line[:0]
	r.over = false
	r.s.Start(r.proc, nil)
	return nil
}

// Process is the serial-line task.
func (r *Reader) Process() *sched.Process { return r.proc }

// InputByte is the receive hook; interrupt context.
func (r *Reader) InputByte(c byte) {
	if r.ring.TryWriteByte(c) {
		r.s.Poll(r.proc)
	}
}

// Drops counts bytes lost to a full buffer.
func (r *Reader) Drops() uint32 { return r.ring.Drops() }

func (r *Reader) handle(_ *sched.Process, ev sched.Event, _ any) {
	if ev != sched.EventPoll {
		return
	}
	var buf [16]byte
	for {
		n := r.ring.TryReadInto(buf[:])
		if n == 0 {
			return
		}
		for _, c := range buf[:n] {
			switch c {
			case '\n':
				if err := r.s.Post(nil, sched.EventSerialLine, string(r.line)); err != nil {
					println("[serial-line] dropped line:", err.Error())
				}
				r.line = r.line[:0]
				r.over = false
			case '\r':
			default:
				if len(r.line) < r.max {
					r.line = append(r.line, c)
				} else if !r.over {
					r.over = true
					r.Truncated++
				}
			}
		}
	}
}
