package nodecore

import (
	"nodecode-go/errcode"
)

// DefaultDebugBaud is used when no baud rate is configured.
const DefaultDebugBaud uint32 = 115200

// SensorSet selects the auxiliary sensor sharing the button interrupt line.
type SensorSet uint8

const (
	SensorsNone SensorSet = iota
	SensorsMotion
	SensorsProximity
)

func (s SensorSet) String() string {
	switch s {
	case SensorsNone:
		return "none"
	case SensorsMotion:
		return "motion"
	case SensorsProximity:
		return "proximity"
	default:
		return "unknown"
	}
}

func ParseSensorSet(s string) (SensorSet, error) {
	switch s {
	case "", "none":
		return SensorsNone, nil
	case "motion":
		return SensorsMotion, nil
	case "proximity":
		return SensorsProximity, nil
	}
	return 0, &errcode.E{C: errcode.InvalidConfig, Op: "sensors", Msg: s}
}

// DebugRoute selects which UART feeds the line-input handler.
type DebugRoute uint8

const (
	RouteNone DebugRoute = iota
	RouteUART0
	RouteUART1
)

func (r DebugRoute) String() string {
	switch r {
	case RouteNone:
		return "none"
	case RouteUART0:
		return "uart0"
	case RouteUART1:
		return "uart1"
	default:
		return "unknown"
	}
}

func ParseDebugRoute(s string) (DebugRoute, error) {
	switch s {
	case "", "none":
		return RouteNone, nil
	case "uart0":
		return RouteUART0, nil
	case "uart1":
		return RouteUART1, nil
	}
	return 0, &errcode.E{C: errcode.InvalidConfig, Op: "debug_route", Msg: s}
}

// PeripheralID names a power-manageable controller.
type PeripheralID string

const (
	SPI0  PeripheralID = "spi0"
	SPI1  PeripheralID = "spi1"
	UART0 PeripheralID = "uart0"
	UART1 PeripheralID = "uart1"
	I2C0  PeripheralID = "i2c0"
	I2C1  PeripheralID = "i2c1"
)

// AllPeripherals lists known IDs in power-down order.
var AllPeripherals = []PeripheralID{SPI0, SPI1, UART0, UART1, I2C0, I2C1}

// RadioBus is the controller the radio sits on. Radio interrupts use it from
// ISR context, so it is never powered down.
const RadioBus = SPI0

func ParsePeripheralID(s string) (PeripheralID, error) {
	for _, id := range AllPeripherals {
		if string(id) == s {
			return id, nil
		}
	}
	return "", &errcode.E{C: errcode.UnknownPeriph, Op: "lpm", Msg: s}
}

// Config is resolved once before boot and never mutated afterwards.
type Config struct {
	DebugBaud      uint32
	Sensors        SensorSet
	LowPower       bool
	LPMPeripherals []PeripheralID
	DebugRoute     DebugRoute
	// ICDMode disables all watchdog supervision for in-circuit debugging.
	ICDMode bool
}

// Default is the configuration with no build options selected.
func Default() Config {
	return Config{DebugBaud: DefaultDebugBaud}
}

func (c Config) Validate() error {
	if c.DebugBaud == 0 {
		return &errcode.E{C: errcode.InvalidConfig, Op: "debug_baud", Msg: "zero"}
	}
	if c.Sensors > SensorsProximity {
		return &errcode.E{C: errcode.InvalidConfig, Op: "sensors", Msg: c.Sensors.String()}
	}
	if c.DebugRoute > RouteUART1 {
		return &errcode.E{C: errcode.InvalidConfig, Op: "debug_route", Msg: c.DebugRoute.String()}
	}
	seen := make(map[PeripheralID]bool, len(c.LPMPeripherals))
	for _, id := range c.LPMPeripherals {
		if _, err := ParsePeripheralID(string(id)); err != nil {
			return err
		}
		if seen[id] {
			return &errcode.E{C: errcode.Duplicate, Op: "lpm", Msg: string(id)}
		}
		if c.Reserved(id) {
			return &errcode.E{C: errcode.InvalidConfig, Op: "lpm", Msg: string(id) + " must stay powered"}
		}
		seen[id] = true
	}
	return nil
}

// RouteUART is the controller behind the debug route, or "" for none.
func (c Config) RouteUART() PeripheralID {
	switch c.DebugRoute {
	case RouteUART0:
		return UART0
	case RouteUART1:
		return UART1
	}
	return ""
}

// Reserved reports whether id has to stay out of low-power suspension: the
// radio bus and the routed debug UART.
func (c Config) Reserved(id PeripheralID) bool {
	return id == RadioBus || (id != "" && id == c.RouteUART())
}

// Suspendable is every known controller that is not reserved, in
// power-down order.
func (c Config) Suspendable() []PeripheralID {
	out := make([]PeripheralID, 0, len(AllPeripherals))
	for _, id := range AllPeripherals {
		if !c.Reserved(id) {
			out = append(out, id)
		}
	}
	return out
}

// LPMEnabled reports whether id participates in low-power suspension.
func (c Config) LPMEnabled(id PeripheralID) bool {
	if !c.LowPower {
		return false
	}
	for _, x := range c.LPMPeripherals {
		if x == id {
			return true
		}
	}
	return false
}
