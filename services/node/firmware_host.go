//go:build !rp2040

package node

import (
	"context"
	"os"
	"os/signal"

	"nodecode-go/services/node/internal/buildcfg"
	"nodecode-go/services/node/internal/nodecore"
	"nodecode-go/services/node/internal/platform"
)

// Main runs the node against the simulated board until interrupted.
func Main(apps ...App) {
	cfg, err := buildcfg.Selected()
	if err != nil {
		println("[node] config:", err.Error())
		os.Exit(2)
	}
	h := platform.New(0)
	defer h.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	go func() {
		<-ctx.Done()
		h.Close()
	}()

	err = Run(ctx, cfg, h.Board(cfg.Sensors != nodecore.SensorsNone), apps...)
	if err != nil && ctx.Err() == nil {
		println("[node] halted:", err.Error())
		os.Exit(1)
	}
}
