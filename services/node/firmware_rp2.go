//go:build rp2040

package node

import (
	"context"
	"time"

	"nodecode-go/services/node/internal/buildcfg"
	"nodecode-go/services/node/internal/nodecore"
	"nodecode-go/services/node/internal/platform"
)

// Main is the firmware entry point. It never returns: after a failure the
// core parks with the watchdog stopped.
func Main(apps ...App) {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	cfg, err := buildcfg.Selected()
	if err != nil {
		println("[node] config:", err.Error())
		halt()
	}
	println("[node] sensors:", cfg.Sensors.String(), "route:", cfg.DebugRoute.String(),
		"lpm:", cfg.LowPower, "icd:", cfg.ICDMode)

	board := platform.New(cfg.DebugRoute).Board(cfg.Sensors != nodecore.SensorsNone)
	if err := Run(context.Background(), cfg, board, apps...); err != nil {
		println("[node] halted:", err.Error())
	}
	halt()
}

func halt() {
	for {
		time.Sleep(time.Hour)
	}
}
