package levelset

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// CalculateChange evaluates the level-set function on every active pixel
// and returns the time step for the following ApplyUpdate: the minimum of
// all per-pixel stability bounds, capped by MaxTimeStep. The proposed
// rates are kept in the active nodes.
func (f *Filter) CalculateChange() (float64, error) {
	if !f.initialized {
		return 0, ErrNotInitialized
	}
	f.coord.partition(f.lists)
	err := f.coord.run(ChangeRunning, f.threadedCalculateChange)
	f.lists.join()
	if err != nil {
		f.coord.state = Idle
		return 0, err
	}
	// Worker minima are reduced in worker order; min is order independent
	// anyway, so dt only depends on the set of bounds.
	dt := math.Min(floats.Min(f.workerMinStep), f.cfg.MaxTimeStep)
	f.coord.state = ChangeMerged
	return dt, nil
}

func (f *Filter) threadedCalculateChange(w int) error {
	bound := math.Inf(1)
	part := &f.lists.Partitions[w]
	for h := part.Front(); !h.IsNil(); h = f.store.Next(h) {
		n := f.store.Node(h)
		if f.status.IsOnBoundary(n.Index) {
			f.workerMinStep[w] = bound
			return boundaryf(n.Index, "active pixel has no interior neighborhood")
		}
		delta, maxStep := f.fn.Evaluate(f.output.Neighborhood(n.Index))
		n.Value = delta
		if maxStep < bound {
			bound = maxStep
		}
	}
	f.workerMinStep[w] = bound
	return nil
}
