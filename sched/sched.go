// Package sched is a cooperative, run-to-completion process scheduler.
//
// Processes are event handlers. Events are queued from task context with
// Post and delivered one per RunOnce. Interrupt handlers must not call Post;
// they request service with Poll, which only touches atomics.
package sched

import (
	"sync/atomic"

	"nodecode-go/errcode"
)

// Event identifies what a process is being woken for.
type Event uint8

const (
	EventNone Event = iota
	EventInit
	EventPoll
	EventExit
	EventTimer
	EventSensor
	EventSerialLine

	// EventUser is the first identifier free for application use.
	EventUser Event = 0x80
)

func (e Event) String() string {
	switch e {
	case EventInit:
		return "init"
	case EventPoll:
		return "poll"
	case EventExit:
		return "exit"
	case EventTimer:
		return "timer"
	case EventSensor:
		return "sensor"
	case EventSerialLine:
		return "serial_line"
	case EventNone:
		return "none"
	default:
		return "user"
	}
}

// Handler runs a process to completion for one event.
type Handler func(p *Process, ev Event, data any)

// Process is one entry in the process table.
type Process struct {
	Name    string
	handler Handler
	running bool
	polled  atomic.Bool
}

func NewProcess(name string, h Handler) *Process {
	return &Process{Name: name, handler: h}
}

type queued struct {
	to   *Process // nil broadcasts
	ev   Event
	data any
}

// DefaultQueueLen matches the event queue depth used on the device.
const DefaultQueueLen = 32

// Scheduler owns the process table and the event queue.
type Scheduler struct {
	procs   []*Process
	q       []queued
	head, n int

	polled  atomic.Bool
	current *Process
	dirty   bool
	inited  bool
}

func New(queueLen int) *Scheduler {
	if queueLen <= 0 {
		queueLen = DefaultQueueLen
	}
	return &Scheduler{q: make([]queued, queueLen)}
}

// Init clears the process table and the event queue.
func (s *Scheduler) Init() error {
	for _, p := range s.procs {
		p.running = false
	}
	s.procs = s.procs[:0]
	for i := range s.q {
		s.q[i] = queued{}
	}
	s.head, s.n = 0, 0
	s.polled.Store(false)
	s.current = nil
	s.dirty = false
	s.inited = true
	return nil
}

// Start adds p to the process table and delivers EventInit with arg
// synchronously. Starting a running process is a no-op.
func (s *Scheduler) Start(p *Process, arg any) {
	if p == nil || p.running || !s.inited {
		return
	}
	p.running = true
	s.procs = append(s.procs, p)
	s.call(p, EventInit, arg)
}

// Exit delivers EventExit to p and removes it from the table.
// Events still queued for p are discarded on delivery.
func (s *Scheduler) Exit(p *Process) {
	if p == nil || !p.running {
		return
	}
	s.call(p, EventExit, nil)
	p.running = false
	p.polled.Store(false)
	s.dirty = true
}

// Running reports whether p is in the process table.
func (s *Scheduler) Running(p *Process) bool { return p != nil && p.running }

// Current is the process whose handler is executing, if any.
func (s *Scheduler) Current() *Process { return s.current }

// Post queues ev for to (nil broadcasts to every running process).
// Task context only.
func (s *Scheduler) Post(to *Process, ev Event, data any) error {
	if !s.inited {
		return errcode.NotInitialised
	}
	if s.n == len(s.q) {
		return errcode.QueueFull
	}
	s.q[(s.head+s.n)%len(s.q)] = queued{to: to, ev: ev, data: data}
	s.n++
	return nil
}

// Poll requests an EventPoll for p on the next RunOnce. Safe from
// interrupt context.
func (s *Scheduler) Poll(p *Process) {
	if p == nil {
		return
	}
	p.polled.Store(true)
	s.polled.Store(true)
}

// Pending is the number of queued events.
func (s *Scheduler) Pending() int { return s.n }

// RunOnce services outstanding polls, delivers at most one queued event and
// returns the amount of work left (queued events plus one if a poll is
// outstanding). Zero means nothing to do until the next interrupt.
func (s *Scheduler) RunOnce() int {
	if s.polled.Swap(false) {
		s.doPolls()
	}
	s.doEvent()
	if s.dirty {
		s.compact()
	}
	n := s.n
	if s.polled.Load() {
		n++
	}
	return n
}

func (s *Scheduler) doPolls() {
	for i := 0; i < len(s.procs); i++ {
		p := s.procs[i]
		if p.polled.Swap(false) {
			s.call(p, EventPoll, nil)
		}
	}
}

func (s *Scheduler) doEvent() {
	if s.n == 0 {
		return
	}
	e := s.q[s.head]
	s.q[s.head] = queued{}
	s.head = (s.head + 1) % len(s.q)
	s.n--

	if e.to != nil {
		s.call(e.to, e.ev, e.data)
		return
	}
	for i := 0; i < len(s.procs); i++ {
		s.call(s.procs[i], e.ev, e.data)
	}
}

func (s *Scheduler) call(p *Process, ev Event, data any) {
	if !p.running {
		return
	}
	prev := s.current
	s.current = p
	p.handler(p, ev, data)
	s.current = prev
}

func (s *Scheduler) compact() {
	out := s.procs[:0]
	for _, p := range s.procs {
		if p.running {
			out = append(out, p)
		}
	}
	for i := len(out); i < len(s.procs); i++ {
		s.procs[i] = nil
	}
	s.procs = out
	s.dirty = false
}
