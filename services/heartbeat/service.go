package heartbeat

import (
	"strconv"
	"strings"
	"time"

	"nodecode-go/sched"
)

// DefaultInterval is the beat period until changed over the serial line.
const DefaultInterval = time.Second

// LED is the status indicator the service blinks.
type LED interface {
	Toggle()
}

// Sensor is the view of a sensor carried by sched.EventSensor.
type Sensor interface {
	Name() string
	Value() int
}

type Service struct {
	s        *sched.Scheduler
	timers   *sched.Timers
	led      LED
	interval time.Duration
	beat     sched.Timer
	proc     *sched.Process
	beats    uint32
}

func New(s *sched.Scheduler, timers *sched.Timers, led LED) *Service {
	svc := &Service{s: s, timers: timers, led: led, interval: DefaultInterval}
	svc.proc = sched.NewProcess("heartbeat", svc.handle)
	return svc
}

// Process is the heartbeat task, meant for autostart.
func (svc *Service) Process() *sched.Process { return svc.proc }

func (svc *Service) Beats() uint32 { return svc.beats }

func (svc *Service) Interval() time.Duration { return svc.interval }

func (svc *Service) handle(p *sched.Process, ev sched.Event, data any) {
	switch ev {
	case sched.EventInit:
		svc.timers.Set(&svc.beat, p, svc.interval)
		println("Info: heartbeat service started")
	case sched.EventExit:
		svc.timers.Stop(&svc.beat)
		println("Info: heartbeat service stopping")
	case sched.EventTimer:
		if data != &svc.beat || !svc.beat.Expired() {
			// Not ours, or re-armed after this expiry was queued.
			return
		}
		svc.beats++
		svc.led.Toggle()
		println("Info:", "Heartbeat", svc.beats)
		svc.timers.Reset(&svc.beat)
	case sched.EventSensor:
		if sn, ok := data.(Sensor); ok {
			println("Info:", "sensor", sn.Name(), "value", sn.Value())
		}
	case sched.EventSerialLine:
		line, _ := data.(string)
		svc.command(p, line)
	}
}

// command handles "interval <seconds>"; other lines are echoed.
func (svc *Service) command(p *sched.Process, line string) {
	f := strings.Fields(line)
	if len(f) != 2 || f[0] != "interval" {
		println("Info:", "Received line:", line)
		return
	}
	n, err := strconv.Atoi(f[1])
	if err != nil || n <= 0 {
		println("Warn:", "bad interval", f[1])
		return
	}
	svc.interval = time.Duration(n) * time.Second
	svc.timers.Stop(&svc.beat)
	svc.timers.Set(&svc.beat, p, svc.interval)
	println("Info:", "Heartbeat interval set to", n, "seconds")
}
