// Package config loads the YAML description of a code, its cache and the
// controller it protects.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/eccmem/eccmem/ecc"
	"github.com/eccmem/eccmem/internal/sim"
	"github.com/eccmem/eccmem/memctl"
)

var ErrInvalid = errors.New("config: invalid")

// Config is the top-level file layout.
type Config struct {
	Code       CodeConfig       `yaml:"code"`
	Cache      CacheConfig      `yaml:"cache"`
	Controller ControllerConfig `yaml:"controller"`
	// Refresh overrides the composition's refresh wrapper when set.
	Refresh    *RefreshConfig   `yaml:"refresh,omitempty"`
	Simulation SimulationConfig `yaml:"simulation"`
	LogLevel   string           `yaml:"log_level"`
}

type CodeConfig struct {
	Kind     string        `yaml:"kind"`
	DataBits int           `yaml:"data_bits"`
	Timeout  time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	Dir      string `yaml:"dir"`
	InMemory bool   `yaml:"in_memory"`
	Sync     bool   `yaml:"sync_writes"`
}

type ControllerConfig struct {
	Name          string `yaml:"name"`
	AddrBits      int    `yaml:"addr_bits"`
	PartialWrites bool   `yaml:"partial_writes"`
}

type RefreshConfig struct {
	CounterWidth int    `yaml:"counter_width"`
	Force        bool   `yaml:"force"`
	AddressAnd   uint64 `yaml:"address_and"`
	AddressOr    uint64 `yaml:"address_or"`
	AddressSext  uint64 `yaml:"address_sext"`
}

type SimulationConfig struct {
	Cycles         int     `yaml:"cycles"`
	Seed           int64   `yaml:"seed"`
	RequestRate    float64 `yaml:"request_rate"`
	ResponseRate   float64 `yaml:"response_rate"`
	WriteRate      float64 `yaml:"write_rate"`
	PartialRate    float64 `yaml:"partial_rate"`
	StoredFlipRate float64 `yaml:"stored_flip_rate"`
	ReadFlipRate   float64 `yaml:"read_flip_rate"`
}

func Default() Config {
	sc := sim.DefaultScenario()
	return Config{
		Code: CodeConfig{
			Kind:     ecc.KindHsiao.String(),
			DataBits: 32,
			Timeout:  5 * time.Minute,
		},
		Cache: CacheConfig{InMemory: true},
		Controller: ControllerConfig{
			Name:     "write_back",
			AddrBits: 8,
		},
		Simulation: SimulationConfig{
			Cycles:       10000,
			RequestRate:  sc.RequestRate,
			ResponseRate: sc.ResponseRate,
			WriteRate:    sc.WriteRate,
			PartialRate:  sc.PartialRate,
		},
		LogLevel: "info",
	}
}

// Load reads path over the defaults, so a file only needs the keys it changes.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Save writes cfg as YAML.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (c Config) Validate() error {
	var problems []string
	if _, err := ecc.ParseKind(c.Code.Kind); err != nil {
		problems = append(problems, err.Error())
	}
	if c.Code.DataBits <= 0 {
		problems = append(problems, fmt.Sprintf("code.data_bits must be positive, got %d", c.Code.DataBits))
	}
	if c.Code.Timeout < 0 {
		problems = append(problems, "code.timeout must not be negative")
	}
	if !c.Cache.InMemory && c.Cache.Dir == "" {
		problems = append(problems, "cache.dir is required unless cache.in_memory is set")
	}
	if !knownController(c.Controller.Name) {
		problems = append(problems, fmt.Sprintf("controller.name %q is not one of %s",
			c.Controller.Name, strings.Join(memctl.Names(), ", ")))
	}
	if c.Controller.AddrBits < 1 || c.Controller.AddrBits > 24 {
		problems = append(problems, fmt.Sprintf("controller.addr_bits %d outside [1,24]", c.Controller.AddrBits))
	}
	if c.Controller.PartialWrites && c.Code.DataBits%memctl.Granularity != 0 {
		problems = append(problems, fmt.Sprintf("partial writes need data_bits divisible by %d", memctl.Granularity))
	}
	if r := c.Refresh; r != nil && (r.CounterWidth < 0 || r.CounterWidth > 63) {
		problems = append(problems, fmt.Sprintf("refresh.counter_width %d outside [0,63]", r.CounterWidth))
	}
	if err := c.Scenario().Validate(); err != nil {
		problems = append(problems, err.Error())
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err.Error())
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}

func knownController(name string) bool {
	for _, n := range memctl.Names() {
		if n == name {
			return true
		}
	}
	return false
}

// Kind returns the parsed code kind.
func (c Config) Kind() (ecc.Kind, error) { return ecc.ParseKind(c.Code.Kind) }

// ControllerSpec converts the controller and refresh sections.
func (c Config) ControllerSpec() memctl.Spec {
	spec := memctl.Spec{
		Name:          c.Controller.Name,
		AddrBits:      c.Controller.AddrBits,
		PartialWrites: c.Controller.PartialWrites,
	}
	if r := c.Refresh; r != nil {
		spec.Refresh = &memctl.RefreshConfig{
			CounterWidth: r.CounterWidth,
			Force:        r.Force,
			AddressAnd:   r.AddressAnd,
			AddressOr:    r.AddressOr,
			AddressSext:  r.AddressSext,
		}
	}
	return spec
}

func (c Config) Scenario() sim.Scenario {
	s := c.Simulation
	return sim.Scenario{
		Cycles:         s.Cycles,
		Seed:           s.Seed,
		RequestRate:    s.RequestRate,
		ResponseRate:   s.ResponseRate,
		WriteRate:      s.WriteRate,
		PartialRate:    s.PartialRate,
		StoredFlipRate: s.StoredFlipRate,
		ReadFlipRate:   s.ReadFlipRate,
	}
}

// ParseLevel maps debug, info, warn and error onto slog levels.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return l, fmt.Errorf("log_level %q: %w", s, err)
	}
	return l, nil
}
