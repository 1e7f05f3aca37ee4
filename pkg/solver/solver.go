// Package solver drives a sparse-field filter: it initializes the band once
// and then alternates CalculateChange and ApplyUpdate until a stopping
// criterion is met.
package solver

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"gonum.org/v1/gonum/stat"

	"sparsefield/internal/metrics"
	"sparsefield/internal/models"
	"sparsefield/internal/monitoring"
	"sparsefield/pkg/grid"
	"sparsefield/pkg/levelset"
)

// Params holds the iteration driver settings.
type Params struct {
	// MaxIterations bounds the number of iterations; 0 means unbounded,
	// in which case another criterion or the context must end the run.
	MaxIterations int

	// RMSTolerance ends the run once an iteration's RMS change is at or
	// below it. Zero disables the check.
	RMSTolerance float64

	// Verbose logs every iteration.
	Verbose bool

	// Validate checks the band invariants after every update. It costs a
	// dense pass over the status grid per iteration.
	Validate bool
}

// Solver owns a filter and the history of its run.
type Solver struct {
	params  Params
	filter  *levelset.Filter
	runID   string
	history []models.IterationStats
}

// NewSolver wraps a filter that has not been initialized yet.
func NewSolver(filter *levelset.Filter, params Params) *Solver {
	return &Solver{
		params: params,
		filter: filter,
		runID:  uuid.NewString(),
	}
}

// RunID identifies this run.
func (s *Solver) RunID() string { return s.runID }

// Filter returns the driven filter.
func (s *Solver) Filter() *levelset.Filter { return s.filter }

// Run initializes the filter and iterates until MaxIterations, the RMS
// tolerance, an empty active layer or cancellation of ctx. Cancellation is
// checked between iterations only; a started iteration always completes.
func (s *Solver) Run(ctx context.Context) (models.Report, error) {
	start := time.Now()
	report := models.Report{RunID: s.runID}

	if err := s.filter.Initialize(); err != nil {
		return report, fmt.Errorf("initialize band: %w", err)
	}
	s.recordPool()
	monitoring.Logf("solver %s: band initialized, %d active pixels", s.runID, s.filter.ActiveCount())

	for it := 1; ; it++ {
		if s.params.MaxIterations > 0 && it > s.params.MaxIterations {
			report.Stop = models.StopMaxIterations
			break
		}
		if s.filter.ActiveCount() == 0 {
			report.Stop = models.StopEmptyBand
			break
		}
		if err := ctx.Err(); err != nil {
			report.Stop = models.StopCanceled
			break
		}

		st, err := s.Step()
		if err != nil {
			s.finish(&report, start)
			return report, fmt.Errorf("iteration %d: %w", it, err)
		}
		if s.params.RMSTolerance > 0 && st.RMSChange <= s.params.RMSTolerance {
			report.Stop = models.StopConverged
			break
		}
	}

	s.finish(&report, start)
	monitoring.Logf("solver %s: stopped after %d iterations (%s), %d active pixels",
		s.runID, len(report.Iterations), report.Stop, report.FinalActive)
	return report, nil
}

// Step runs one CalculateChange/ApplyUpdate cycle on an initialized filter
// and records it in the history.
func (s *Solver) Step() (models.IterationStats, error) {
	it := len(s.history) + 1
	begin := time.Now()

	timer := prometheus.NewTimer(metrics.PhaseDuration.WithLabelValues(metrics.PhaseChange))
	dt, err := s.filter.CalculateChange()
	timer.ObserveDuration()
	if err != nil {
		return models.IterationStats{}, err
	}

	timer = prometheus.NewTimer(metrics.PhaseDuration.WithLabelValues(metrics.PhaseUpdate))
	upd, err := s.filter.ApplyUpdate(dt)
	timer.ObserveDuration()
	if err != nil {
		return models.IterationStats{}, err
	}

	if s.params.Validate {
		if err := s.filter.Validate(); err != nil {
			return models.IterationStats{}, err
		}
	}

	st := models.IterationStats{
		Iteration: it,
		TimeStep:  dt,
		RMSChange: upd.RMSChange,
		Active:    upd.Active,
		MovedUp:   upd.MovedUp,
		MovedDown: upd.MovedDown,
		Held:      upd.Held,
		Released:  upd.Released,
		Elapsed:   time.Since(begin),
	}
	s.history = append(s.history, st)

	metrics.IterationsTotal.Inc()
	metrics.TimeStep.Set(dt)
	metrics.RMSChange.Set(upd.RMSChange)
	metrics.ActiveNodes.Set(float64(upd.Active))
	metrics.LayerMoves.WithLabelValues("up").Add(float64(upd.MovedUp))
	metrics.LayerMoves.WithLabelValues("down").Add(float64(upd.MovedDown))
	s.recordPool()

	if s.params.Verbose {
		monitoring.Logf("solver %s: iteration %d dt=%.4g rms=%.4g active=%d up=%d down=%d held=%d released=%d",
			s.runID, it, dt, upd.RMSChange, upd.Active, upd.MovedUp, upd.MovedDown, upd.Held, upd.Released)
	}
	return st, nil
}

// History returns the recorded iterations.
func (s *Solver) History() []models.IterationStats { return s.history }

// Volume returns the current field.
func (s *Solver) Volume() models.Volume {
	out := s.filter.Output()
	return models.Volume{
		Data:     out.Data(),
		Size:     out.Size(),
		IsoValue: s.filter.Config().IsoValue,
	}
}

func (s *Solver) finish(report *models.Report, start time.Time) {
	report.Iterations = s.history
	report.FinalActive = s.filter.ActiveCount()
	report.Elapsed = time.Since(start)
	if len(s.history) == 0 {
		return
	}
	dts := make([]float64, len(s.history))
	rms := make([]float64, len(s.history))
	for i, st := range s.history {
		dts[i] = st.TimeStep
		rms[i] = st.RMSChange
	}
	report.MeanTimeStep = stat.Mean(dts, nil)
	report.MeanRMSChange = stat.Mean(rms, nil)
}

func (s *Solver) recordPool() {
	ps := s.filter.PoolStats()
	metrics.PoolLiveNodes.Set(float64(ps.Live))
	metrics.PoolsGrown.Set(float64(ps.Grown))
}

// Seed fills im with the signed distance to a sphere or a box, the
// starting field for a run.
func Seed(im *grid.Image, shape string, center []float64, radius float64, lo, hi []float64) error {
	switch shape {
	case "sphere":
		if len(center) != im.Dims() {
			return fmt.Errorf("sphere center has %d coordinates for %d axes", len(center), im.Dims())
		}
		pixel := make([]int, len(center))
		for axis, c := range center {
			pixel[axis] = int(math.Round(c))
		}
		if !im.InBounds(pixel) {
			return fmt.Errorf("sphere center %v lies outside the grid", center)
		}
		grid.Sphere(im, center, radius)
	case "box":
		if len(lo) != im.Dims() || len(hi) != im.Dims() {
			return fmt.Errorf("box corners need %d coordinates", im.Dims())
		}
		grid.Box(im, lo, hi)
	default:
		return fmt.Errorf("unknown seed shape %q", shape)
	}
	return nil
}
