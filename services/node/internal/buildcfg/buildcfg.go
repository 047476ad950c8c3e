// Package buildcfg resolves the node configuration selected at build time.
//
// Feature switches are build tags (icd, lpm, motion_click, proximity_click,
// debug_uart0, debug_uart1). Values come from linker flags, e.g.
//
//	-ldflags "-X nodecode-go/services/node/internal/buildcfg.DebugBaud=57600
//	          -X 'nodecode-go/services/node/internal/buildcfg.LPMPeripherals=spi0 uart1'"
package buildcfg

import (
	"strconv"
	"strings"
	"sync"

	"github.com/google/shlex"

	"nodecode-go/errcode"
	"nodecode-go/services/node/internal/nodecore"
	"nodecode-go/x/mathx"
)

const (
	MinBaud uint32 = 1200
	MaxBaud uint32 = 921600
)

// Set with -ldflags -X.
var (
	DebugBaud      string
	LPMPeripherals string
)

// Set by tag files.
var (
	tagICD, tagLPM     bool
	tagMotion, tagProx bool
	tagUART0, tagUART1 bool
)

// Options is the raw build selection before validation.
type Options struct {
	ICD, LowPower     bool
	Motion, Proximity bool
	UART0, UART1      bool
	Baud              string
	Peripherals       string
}

// Built returns the options compiled into this binary.
func Built() Options {
	return Options{
		ICD:         tagICD,
		LowPower:    tagLPM,
		Motion:      tagMotion,
		Proximity:   tagProx,
		UART0:       tagUART0,
		UART1:       tagUART1,
		Baud:        DebugBaud,
		Peripherals: LPMPeripherals,
	}
}

var (
	once     sync.Once
	selected nodecore.Config
	selErr   error
)

// Selected resolves the built options once.
func Selected() (nodecore.Config, error) {
	once.Do(func() {
		selected, selErr = Resolve(Built())
	})
	return selected, selErr
}

// Resolve turns options into a validated configuration. An lpm build with no
// peripheral list suspends every controller that is not reserved.
func Resolve(o Options) (nodecore.Config, error) {
	cfg := nodecore.Default()
	cfg.ICDMode = o.ICD
	cfg.LowPower = o.LowPower

	switch {
	case o.Motion && o.Proximity:
		return cfg, &errcode.E{C: errcode.InvalidConfig, Op: "sensors", Msg: "motion_click and proximity_click are exclusive"}
	case o.Motion:
		cfg.Sensors = nodecore.SensorsMotion
	case o.Proximity:
		cfg.Sensors = nodecore.SensorsProximity
	}

	switch {
	case o.UART0 && o.UART1:
		return cfg, &errcode.E{C: errcode.InvalidConfig, Op: "debug_route", Msg: "debug_uart0 and debug_uart1 are exclusive"}
	case o.UART0:
		cfg.DebugRoute = nodecore.RouteUART0
	case o.UART1:
		cfg.DebugRoute = nodecore.RouteUART1
	}

	if b := strings.TrimSpace(o.Baud); b != "" {
		v, err := strconv.ParseUint(b, 10, 32)
		if err != nil || v == 0 {
			return cfg, &errcode.E{C: errcode.InvalidConfig, Op: "debug_baud", Msg: b, Err: err}
		}
		cfg.DebugBaud = mathx.Clamp(uint32(v), MinBaud, MaxBaud)
	}

	ids, err := ParsePeripherals(o.Peripherals)
	if err != nil {
		return cfg, err
	}
	if len(ids) == 0 && cfg.LowPower {
		ids = cfg.Suspendable()
	}
	if len(ids) > 0 {
		cfg.LPMPeripherals = ids
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ParsePeripherals splits a shell-style list; commas also separate.
func ParsePeripherals(s string) ([]nodecore.PeripheralID, error) {
	words, err := shlex.Split(strings.ReplaceAll(s, ",", " "))
	if err != nil {
		return nil, &errcode.E{C: errcode.InvalidConfig, Op: "lpm", Msg: s, Err: err}
	}
	ids := make([]nodecore.PeripheralID, 0, len(words))
	for _, w := range words {
		id, err := nodecore.ParsePeripheralID(strings.ToLower(w))
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
