package main

import (
	"nodecode-go/sched"
	"nodecode-go/services/heartbeat"
	"nodecode-go/services/node"
)

func main() {
	node.Main(func(sys *node.System) *sched.Process {
		return heartbeat.New(sys.Sched, sys.Timers, sys.Board.LEDs).Process()
	})
}
