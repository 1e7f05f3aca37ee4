package models

import "time"

// Volume is a level-set field in flat form, first axis fastest, the
// z*width*height + y*width + x layout for three axes.
type Volume struct {
	// Data holds one value per pixel
	Data []float64

	// Size is the length of every axis
	Size []int

	// IsoValue is the level treated as the surface
	IsoValue float64
}

// Len returns the number of pixels the size describes.
func (v Volume) Len() int {
	n := 1
	for _, l := range v.Size {
		n *= l
	}
	return n
}

// IterationStats records one CalculateChange/ApplyUpdate cycle.
type IterationStats struct {
	Iteration int
	TimeStep  float64
	RMSChange float64

	// Active is the active layer size after the update
	Active int

	MovedUp   int
	MovedDown int
	Held      int
	Released  int

	Elapsed time.Duration
}

// StopReason says why a run ended.
type StopReason string

const (
	StopMaxIterations StopReason = "max-iterations"
	StopConverged     StopReason = "converged"
	StopEmptyBand     StopReason = "empty-band"
	StopCanceled      StopReason = "canceled"
)

// Report summarises a run.
type Report struct {
	// RunID identifies the run in logs and snapshots
	RunID string

	Iterations []IterationStats
	Stop       StopReason

	// MeanTimeStep and MeanRMSChange average over every iteration
	MeanTimeStep  float64
	MeanRMSChange float64

	// FinalActive is the active layer size at the end of the run
	FinalActive int

	Elapsed time.Duration
}
