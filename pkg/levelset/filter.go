// Package levelset implements sparse-field level-set iteration: the field is
// only updated on a thin band of layered node lists around the zero level
// set instead of over the whole image.
//
// A Filter is driven from outside. Initialize builds the status grid and the
// band once; afterwards every iteration is CalculateChange, which evaluates
// the caller's Function on the active layer in parallel and returns a stable
// time step, followed by ApplyUpdate, which moves the active values and
// rebuilds the surrounding layers.
package levelset

import (
	"fmt"
	"math"
	"runtime"

	"sparsefield/pkg/grid"
)

// Function is the right-hand side of the level-set equation. Evaluate is
// called once per active pixel per CalculateChange, concurrently from
// several workers over one read-only image, and returns the rate of change
// at the neighborhood's center together with the largest time step for
// which that rate is stable (+Inf when unconstrained).
type Function interface {
	Evaluate(n grid.Neighborhood) (delta, maxStep float64)
}

// FunctionFunc adapts a plain function to Function.
type FunctionFunc func(n grid.Neighborhood) (delta, maxStep float64)

// Evaluate calls f(n).
func (f FunctionFunc) Evaluate(n grid.Neighborhood) (float64, float64) { return f(n) }

// Config holds the exposed solver settings.
type Config struct {
	// NumberOfLayers is the number of inside and of outside layers.
	NumberOfLayers int
	// IsoValue is the level tracked as the surface.
	IsoValue float64
	// MaxPreAllocateNodes pre-sizes every worker pool; 0 grows on demand.
	MaxPreAllocateNodes int
	// NumWorkers is the number of workers per phase.
	NumWorkers int
	// MaxTimeStep caps the time step returned by CalculateChange.
	MaxTimeStep float64
	// Constants are the label and threshold factors.
	Constants Constants
}

// DefaultConfig returns four layers, iso value 0, on-demand pools, one
// worker per CPU and a time step cap of 1.
func DefaultConfig() Config {
	return Config{
		NumberOfLayers: 4,
		NumWorkers:     runtime.NumCPU(),
		MaxTimeStep:    1,
		Constants:      DefaultConstants(),
	}
}

func (c Config) validate() error {
	switch {
	case c.NumberOfLayers < 1:
		return fmt.Errorf("%w: NumberOfLayers %d < 1", ErrInvalidConfig, c.NumberOfLayers)
	case c.NumWorkers < 1:
		return fmt.Errorf("%w: NumWorkers %d < 1", ErrInvalidConfig, c.NumWorkers)
	case c.MaxPreAllocateNodes < 0:
		return fmt.Errorf("%w: MaxPreAllocateNodes %d < 0", ErrInvalidConfig, c.MaxPreAllocateNodes)
	case !(c.MaxTimeStep > 0):
		return fmt.Errorf("%w: MaxTimeStep %v must be positive", ErrInvalidConfig, c.MaxTimeStep)
	case c.Constants.ActiveStatus < 3:
		return fmt.Errorf("%w: ActiveStatus %d < 3", ErrInvalidConfig, c.Constants.ActiveStatus)
	case !(c.Constants.ChangeFactor > 0) || !(c.Constants.DifferenceFactor > c.Constants.ChangeFactor):
		return fmt.Errorf("%w: need 0 < ChangeFactor < DifferenceFactor, got %v and %v",
			ErrInvalidConfig, c.Constants.ChangeFactor, c.Constants.DifferenceFactor)
	}
	return nil
}

// Filter evolves the level set stored in its output image.
type Filter struct {
	cfg    Config
	consts Constants
	fn     Function
	output *grid.Image

	status *StatusGrid
	store  *NodeStore
	lists  *LayeredNodeLists
	coord  *ThreadCoordinator

	faces       []int
	layerStatus []Status

	// per-worker reduction slots, written only by their own worker
	workerMinStep []float64
	workerSumSq   []float64
	workerCount   []float64

	initialized bool
}

// New builds a filter that evolves output in place using fn.
func New(output *grid.Image, fn Function, cfg Config) (*Filter, error) {
	if output == nil || fn == nil {
		return nil, fmt.Errorf("%w: output image and function are required", ErrInvalidConfig)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	f := &Filter{
		cfg:           cfg,
		consts:        cfg.Constants,
		fn:            fn,
		output:        output,
		faces:         output.FaceOffsets(),
		layerStatus:   make([]Status, 1+2*cfg.NumberOfLayers),
		workerMinStep: make([]float64, cfg.NumWorkers),
		workerSumSq:   make([]float64, cfg.NumWorkers),
		workerCount:   make([]float64, cfg.NumWorkers),
	}
	for i := range f.layerStatus {
		kind, depth := layerOf(i)
		f.layerStatus[i] = f.consts.Status(kind, depth)
	}
	return f, nil
}

// Config returns the settings the filter was built with.
func (f *Filter) Config() Config { return f.cfg }

// Output returns the image being evolved.
func (f *Filter) Output() *grid.Image { return f.output }

// StatusGrid returns the per-pixel labels.
func (f *Filter) StatusGrid() *StatusGrid { return f.status }

// State returns the coordinator state; Idle between iterations.
func (f *Filter) State() State {
	if f.coord == nil {
		return Idle
	}
	return f.coord.State()
}

// ActiveCount returns the number of pixels in the active layer.
func (f *Filter) ActiveCount() int {
	if f.lists == nil {
		return 0
	}
	return f.lists.Layers[0].Len()
}

// LayerSize returns the number of pixels in a layer.
func (f *Filter) LayerSize(kind LayerKind, depth int) int {
	if f.lists == nil {
		return 0
	}
	return f.lists.Layers[layerIndex(kind, depth)].Len()
}

// LayerPixels returns the pixel offsets of a layer in list order.
func (f *Filter) LayerPixels(kind LayerKind, depth int) []int {
	if f.lists == nil {
		return nil
	}
	layer := &f.lists.Layers[layerIndex(kind, depth)]
	out := make([]int, 0, layer.Len())
	for h := layer.Front(); !h.IsNil(); h = f.store.Next(h) {
		out = append(out, f.store.Node(h).Index)
	}
	return out
}

// PoolStats reports node usage over the worker pools.
func (f *Filter) PoolStats() PoolStats {
	if f.store == nil {
		return PoolStats{}
	}
	return f.store.Stats()
}

// u returns the value of a pixel relative to the iso value.
func (f *Filter) u(offset int) float64 { return f.output.At(offset) - f.cfg.IsoValue }

func (f *Filter) setU(offset int, v float64) { f.output.Set(offset, v+f.cfg.IsoValue) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }
