package levelset

import (
	"math"

	"sparsefield/internal/monitoring"
)

// minNorm keeps the distance estimate finite on flat neighborhoods.
const minNorm = 1e-6

// Initialize allocates the status grid and the worker pools and builds the
// band from the current output image, which must hold an inside-outside
// function: negative inside, positive outside, relative to the iso value.
func (f *Filter) Initialize() error {
	f.status = newStatusGrid(f.output)
	f.store = newNodeStore(f.cfg.NumWorkers, f.cfg.MaxPreAllocateNodes)
	f.lists = newLayeredNodeLists(f.store, f.cfg.NumberOfLayers, f.cfg.NumWorkers, f.output.Len())
	f.coord = newThreadCoordinator(f.cfg.NumWorkers)
	f.initialized = true
	if err := f.ConstructLists(); err != nil {
		f.initialized = false
		return err
	}
	return nil
}

// ConstructLists classifies every pixel into its starting layer with one
// dense pass, then sets the band values: active pixels get a first-order
// distance estimate and each further layer sits DifferenceFactor away from
// the layer inside it.
func (f *Filter) ConstructLists() error {
	if !f.initialized {
		return ErrNotInitialized
	}
	f.lists.releaseAll()
	f.status.reset()

	if err := f.scanActive(); err != nil {
		return err
	}
	f.initializeActiveValues()
	f.buildLayers()
	f.propagateAllLayerValues()
	f.coord.state = Idle

	monitoring.Logf("levelset: constructed band with %d active of %d tracked pixels (%d layers, %d workers)",
		f.lists.Layers[0].Len(), f.lists.Len(), f.cfg.NumberOfLayers, f.coord.Workers())
	return nil
}

// scanActive finds the active pixels: interior pixels inside the surface
// with at least one face neighbor outside it. The image is split into
// slabs, one per worker, and each worker draws nodes from its own pool.
func (f *Filter) scanActive() error {
	err := f.coord.run(Constructing, func(w int) error {
		region, _ := f.output.SplitRegion(w, f.coord.Workers())
		part := &f.lists.Partitions[w]
		for off := region.Start; off < region.End; off++ {
			if f.status.At(off) == StatusBoundary || f.u(off) >= 0 {
				continue
			}
			for _, o := range f.faces {
				if f.u(off+o) >= 0 {
					f.status.set(off, StatusActive)
					f.lists.track(f.store.Acquire(w), off, part)
					break
				}
			}
		}
		return nil
	})
	f.lists.join()
	return err
}

// initializeActiveValues replaces each active value by u/|grad u|, clamped
// to the active band. All estimates are computed before any is written.
func (f *Filter) initializeActiveValues() {
	active := &f.lists.Layers[0]
	cf := f.consts.ChangeFactor
	for h := active.Front(); !h.IsNil(); h = f.store.Next(h) {
		n := f.store.Node(h)
		center := f.u(n.Index)
		length := 0.0
		for axis := 0; axis < f.output.Dims(); axis++ {
			s := f.output.Stride(axis)
			forward := f.u(n.Index+s) - center
			backward := center - f.u(n.Index-s)
			if math.Abs(forward) > math.Abs(backward) {
				length += forward * forward
			} else {
				length += backward * backward
			}
		}
		n.Value = clamp(center/(math.Sqrt(length)+minNorm), -cf, cf)
	}
	for h := active.Front(); !h.IsNil(); h = f.store.Next(h) {
		n := f.store.Node(h)
		f.setU(n.Index, n.Value)
	}
}

// buildLayers grows inside and outside layers outwards from the active
// layer, one face-neighbor ring at a time.
func (f *Filter) buildLayers() {
	active := &f.lists.Layers[0]
	inside0 := layerIndex(Inside, 0)
	outside0 := layerIndex(Outside, 0)
	for h := active.Front(); !h.IsNil(); h = f.store.Next(h) {
		idx := f.store.Node(h).Index
		for _, o := range f.faces {
			q := idx + o
			if f.status.At(q) != StatusFar {
				continue
			}
			li := outside0
			if f.u(q) < 0 {
				li = inside0
			}
			f.status.set(q, f.layerStatus[li])
			f.lists.track(f.store.acquireNext(), q, &f.lists.Layers[li])
		}
	}
	for li := 3; li < len(f.lists.Layers); li++ {
		from := &f.lists.Layers[li-2]
		for h := from.Front(); !h.IsNil(); h = f.store.Next(h) {
			idx := f.store.Node(h).Index
			for _, o := range f.faces {
				q := idx + o
				if f.status.At(q) != StatusFar {
					continue
				}
				f.status.set(q, f.layerStatus[li])
				f.lists.track(f.store.acquireNext(), q, &f.lists.Layers[li])
			}
		}
	}
}
