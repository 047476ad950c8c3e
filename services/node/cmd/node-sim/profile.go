package main

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"nodecode-go/services/node/internal/nodecore"
)

// Profile is a simulation run: the build selection to emulate and a timed
// stimulus script.
type Profile struct {
	Config struct {
		Sensors        string   `yaml:"sensors"`
		DebugRoute     string   `yaml:"debug_route"`
		DebugBaud      uint32   `yaml:"debug_baud"`
		LowPower       bool     `yaml:"low_power"`
		LPMPeripherals []string `yaml:"lpm_peripherals"`
		ICD            bool     `yaml:"icd"`
	} `yaml:"config"`

	Tick     time.Duration `yaml:"tick"`
	Duration time.Duration `yaml:"duration"`
	Script   []Step        `yaml:"script"`
}

// Step is one stimulus. Exactly one action field should be set.
type Step struct {
	At      time.Duration `yaml:"at"`
	Press   string        `yaml:"press,omitempty"`
	Release string        `yaml:"release,omitempty"`
	Aux     *bool         `yaml:"aux,omitempty"`
	Radio   bool          `yaml:"radio,omitempty"`
	Type    string        `yaml:"type,omitempty"`
	Route   string        `yaml:"route,omitempty"`
}

// DefaultProfile exercises every input once.
func DefaultProfile() *Profile {
	on := true
	p := &Profile{Tick: 10 * time.Millisecond, Duration: 3 * time.Second}
	p.Config.Sensors = "motion"
	p.Config.DebugRoute = "uart0"
	p.Config.DebugBaud = nodecore.DefaultDebugBaud
	p.Config.LowPower = true
	p.Config.LPMPeripherals = []string{"spi1", "i2c1"}
	p.Script = []Step{
		{At: 200 * time.Millisecond, Press: "button_a"},
		{At: 300 * time.Millisecond, Release: "button_a"},
		{At: 500 * time.Millisecond, Aux: &on},
		{At: 700 * time.Millisecond, Radio: true},
		{At: 900 * time.Millisecond, Type: "interval 2\n", Route: "uart0"},
	}
	return p
}

func loadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p := &Profile{}
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := p.validate(); err != nil {
		return nil, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

func (p *Profile) validate() error {
	if p.Duration <= 0 {
		return fmt.Errorf("duration must be positive")
	}
	for i, s := range p.Script {
		if s.At < 0 || s.At > p.Duration {
			return fmt.Errorf("step %d: at %s outside run", i, s.At)
		}
		if s.Type != "" {
			if _, err := nodecore.ParseDebugRoute(s.Route); err != nil {
				return fmt.Errorf("step %d: %w", i, err)
			}
		}
	}
	sort.SliceStable(p.Script, func(i, j int) bool { return p.Script[i].At < p.Script[j].At })
	_, err := p.NodeConfig()
	return err
}

// NodeConfig converts the profile selection into a validated node config.
func (p *Profile) NodeConfig() (nodecore.Config, error) {
	cfg := nodecore.Default()
	var err error
	if cfg.Sensors, err = nodecore.ParseSensorSet(p.Config.Sensors); err != nil {
		return cfg, err
	}
	if cfg.DebugRoute, err = nodecore.ParseDebugRoute(p.Config.DebugRoute); err != nil {
		return cfg, err
	}
	if p.Config.DebugBaud != 0 {
		cfg.DebugBaud = p.Config.DebugBaud
	}
	cfg.LowPower = p.Config.LowPower
	cfg.ICDMode = p.Config.ICD
	for _, s := range p.Config.LPMPeripherals {
		id, err := nodecore.ParsePeripheralID(s)
		if err != nil {
			return cfg, err
		}
		cfg.LPMPeripherals = append(cfg.LPMPeripherals, id)
	}
	return cfg, cfg.Validate()
}
