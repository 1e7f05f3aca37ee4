// Package config provides configuration loading and management for sparsefield.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"sparsefield/pkg/levelset"
)

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("config: invalid value")

// Seed shapes for the initial level set.
const (
	ShapeSphere = "sphere"
	ShapeBox    = "box"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Sparse-field filter parameters
	Solver struct {
		// NumberOfLayers is the number of inside and of outside layers kept around the active layer
		NumberOfLayers int `yaml:"numberOfLayers"`

		// IsoValue is the level of the field tracked as the surface
		IsoValue float64 `yaml:"isoValue"`

		// MaxPreAllocateNodes pre-sizes every worker's node pool
		MaxPreAllocateNodes int `yaml:"maxPreAllocateNodes"`

		// NumWorkers specifies how many workers each threaded phase uses
		NumWorkers int `yaml:"numWorkers"`

		// MaxTimeStep caps the time step of one iteration
		MaxTimeStep float64 `yaml:"maxTimeStep"`

		ChangeFactor     float64 `yaml:"changeFactor"`
		DifferenceFactor float64 `yaml:"differenceFactor"`
	} `yaml:"solver"`

	// Iteration driver parameters
	Driver struct {
		// MaxIterations bounds the run; 0 means no bound
		MaxIterations int `yaml:"maxIterations"`

		// RMSTolerance stops the run once the RMS change drops below it
		RMSTolerance float64 `yaml:"rmsTolerance"`
	} `yaml:"driver"`

	// Speed function parameters
	Speed struct {
		Propagation float64 `yaml:"propagation"`
		Curvature   float64 `yaml:"curvature"`
		CFL         float64 `yaml:"cfl"`
	} `yaml:"speed"`

	// Initial grid and seed shape
	Grid struct {
		Size   []int     `yaml:"size"`
		Shape  string    `yaml:"shape"`
		Center []float64 `yaml:"center,omitempty"`
		Radius float64   `yaml:"radius"`
		Lo     []float64 `yaml:"lo,omitempty"`
		Hi     []float64 `yaml:"hi,omitempty"`
	} `yaml:"grid"`

	// Output parameters
	Output struct {
		// Verbose logs every iteration
		Verbose bool `yaml:"verbose"`

		// SnapshotPath is where the final field and labels are written; empty skips it
		SnapshotPath string `yaml:"snapshotPath"`

		// SlicesDir receives one image per slice along every axis; empty skips it
		SlicesDir string `yaml:"slicesDir"`

		// PlotPath receives the iteration history plot; empty skips it
		PlotPath string `yaml:"plotPath"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	consts := levelset.DefaultConstants()
	cfg.Solver.NumberOfLayers = 3
	cfg.Solver.NumWorkers = runtime.NumCPU()
	cfg.Solver.MaxTimeStep = 1
	cfg.Solver.ChangeFactor = consts.ChangeFactor
	cfg.Solver.DifferenceFactor = consts.DifferenceFactor

	cfg.Driver.MaxIterations = 100
	cfg.Driver.RMSTolerance = 0

	cfg.Speed.Propagation = 1
	cfg.Speed.Curvature = 0.1
	cfg.Speed.CFL = 0.5

	cfg.Grid.Size = []int{64, 64, 32}
	cfg.Grid.Shape = ShapeSphere
	cfg.Grid.Center = []float64{31.5, 31.5, 15.5}
	cfg.Grid.Radius = 8

	cfg.Output.Verbose = true
	cfg.Output.SnapshotPath = "sparsefield.snap"

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}

// Validate checks the settings the filter does not check itself: the
// grid, the seed shape and the driver bounds. Filter settings are checked
// again by levelset.New.
func (c *Config) Validate() error {
	dims := len(c.Grid.Size)
	if dims == 0 {
		return fmt.Errorf("%w: grid.size is empty", ErrInvalid)
	}
	for axis, l := range c.Grid.Size {
		if l < 3 {
			return fmt.Errorf("%w: grid.size[%d] = %d, need at least 3", ErrInvalid, axis, l)
		}
	}
	switch c.Grid.Shape {
	case ShapeSphere:
		if len(c.Grid.Center) != dims {
			return fmt.Errorf("%w: grid.center has %d entries for %d axes", ErrInvalid, len(c.Grid.Center), dims)
		}
		if c.Grid.Radius <= 0 {
			return fmt.Errorf("%w: grid.radius must be positive", ErrInvalid)
		}
	case ShapeBox:
		if len(c.Grid.Lo) != dims || len(c.Grid.Hi) != dims {
			return fmt.Errorf("%w: grid.lo and grid.hi need %d entries", ErrInvalid, dims)
		}
	default:
		return fmt.Errorf("%w: unknown grid.shape %q", ErrInvalid, c.Grid.Shape)
	}
	if c.Driver.MaxIterations < 0 {
		return fmt.Errorf("%w: driver.maxIterations is negative", ErrInvalid)
	}
	if c.Driver.RMSTolerance < 0 {
		return fmt.Errorf("%w: driver.rmsTolerance is negative", ErrInvalid)
	}
	return nil
}

// Levelset converts the solver section to a filter configuration.
func (c *Config) Levelset() levelset.Config {
	lc := levelset.DefaultConfig()
	lc.NumberOfLayers = c.Solver.NumberOfLayers
	lc.IsoValue = c.Solver.IsoValue
	lc.MaxPreAllocateNodes = c.Solver.MaxPreAllocateNodes
	lc.NumWorkers = c.Solver.NumWorkers
	lc.MaxTimeStep = c.Solver.MaxTimeStep
	lc.Constants.ChangeFactor = c.Solver.ChangeFactor
	lc.Constants.DifferenceFactor = c.Solver.DifferenceFactor
	return lc
}
