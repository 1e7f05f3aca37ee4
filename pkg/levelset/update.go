package levelset

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// UpdateStats summarises one ApplyUpdate.
type UpdateStats struct {
	// RMSChange is the root mean square value change over the active layer.
	RMSChange float64
	// Updated is the number of active pixels visited.
	Updated int
	// MovedUp and MovedDown count active pixels that left the active layer
	// towards the outside and the inside.
	MovedUp, MovedDown int
	// Held counts crossings cancelled because a neighbor was crossing the
	// other way in the same update.
	Held int
	// Released counts nodes dropped past the outermost layers.
	Released int
	// Active is the active layer size after the update.
	Active int
}

// ApplyUpdate advances every active pixel by dt times the rate computed in
// the preceding CalculateChange and then restores the layer structure.
//
// Workers update their partitions in parallel; pixels whose value leaves
// the active band are moved to the worker's StatusUp or StatusDown list.
// Everything that touches more than one pixel runs afterwards in a single
// sequential merge that visits workers in index order.
func (f *Filter) ApplyUpdate(dt float64) (UpdateStats, error) {
	var stats UpdateStats
	if !f.initialized {
		return stats, ErrNotInitialized
	}
	if f.coord.State() != ChangeMerged {
		return stats, ErrPhaseOrder
	}
	f.coord.partition(f.lists)
	err := f.coord.run(UpdateRunning, func(w int) error {
		return f.threadedApplyUpdate(w, dt)
	})
	f.lists.join()
	if err != nil {
		f.coord.state = Idle
		return stats, err
	}
	f.coord.state = UpdateMerged

	count := floats.Sum(f.workerCount)
	if count > 0 {
		stats.RMSChange = math.Sqrt(floats.Sum(f.workerSumSq) / count)
	}
	stats.Updated = int(count)

	f.mergeStatusLists(&stats)
	f.coord.state = Idle
	stats.Active = f.lists.Layers[0].Len()
	return stats, nil
}

func (f *Filter) threadedApplyUpdate(w int, dt float64) error {
	cf := f.consts.ChangeFactor
	limit := cf + f.consts.DifferenceFactor
	part := &f.lists.Partitions[w]
	up := &f.lists.StatusUpLists[w]
	down := &f.lists.StatusDownLists[w]

	sumSq, count := 0.0, 0.0
	h := part.Front()
	for !h.IsNil() {
		n := f.store.Node(h)
		next := n.next
		old := f.u(n.Index)
		v := clamp(old+dt*n.Value, -limit, limit)
		sumSq += (v - old) * (v - old)
		count++
		switch {
		case v > cf:
			n.Value = v
			f.lists.move(h, part, up)
		case v < -cf:
			n.Value = v
			f.lists.move(h, part, down)
		default:
			f.setU(n.Index, v)
		}
		h = next
	}
	f.workerSumSq[w] = sumSq
	f.workerCount[w] = count
	return nil
}

// mergeStatusLists drains the per-worker status lists in worker order,
// cascades the crossings through the layers and re-propagates the layer
// values.
func (f *Filter) mergeStatusLists(stats *UpdateStats) {
	upList := newNodeList(listCascade)
	downList := newNodeList(listCascade)
	for w := range f.lists.StatusUpLists {
		stats.MovedUp += f.acceptCrossings(&f.lists.StatusUpLists[w], &upList, 1, stats)
		stats.MovedDown += f.acceptCrossings(&f.lists.StatusDownLists[w], &downList, -1, stats)
	}
	f.cascade(&upList, &downList)
	stats.Released = f.propagateAllLayerValues()
}

// acceptCrossings moves the crossings in src to dst unless a face neighbor
// is already crossing the other way, in which case the pixel stays active
// with its previous value. dir is +1 for crossings towards the outside.
// An accepted crossing hands its value over to the neighbors that will
// replace it in the active layer.
func (f *Filter) acceptCrossings(src, dst *NodeList, dir float64, stats *UpdateStats) int {
	mark, opposite := StatusActiveChangingUp, StatusActiveChangingDown
	heir := f.layerStatus[layerIndex(Inside, 0)]
	if dir < 0 {
		mark, opposite = opposite, mark
		heir = f.layerStatus[layerIndex(Outside, 0)]
	}
	cf := f.consts.ChangeFactor
	accepted := 0
	for !src.Empty() {
		h := src.Front()
		n := f.store.Node(h)
		idx, v := n.Index, n.Value

		held := false
		for _, o := range f.faces {
			if f.status.At(idx+o) == opposite {
				held = true
				break
			}
		}
		if held {
			f.lists.move(h, src, &f.lists.Layers[0])
			stats.Held++
			continue
		}

		f.setU(idx, v)
		handover := v - dir*f.consts.DifferenceFactor
		for _, o := range f.faces {
			q := idx + o
			if f.status.At(q) != heir {
				continue
			}
			uq := f.u(q)
			if dir*uq < -cf || math.Abs(handover) < math.Abs(uq) {
				f.setU(q, handover)
			}
		}
		f.status.set(idx, mark)
		f.lists.move(h, src, dst)
		accepted++
	}
	return accepted
}

// cascade settles the accepted crossings layer by layer. A crossing
// towards the outside puts the pixel in outside layer 0, promotes its
// inside-0 neighbors to active, their inside-1 neighbors to inside 0 and so
// on, and finally pulls far pixels into the last inside layer. Crossings
// towards the inside mirror this.
func (f *Filter) cascade(upList, downList *NodeList) {
	layers := f.cfg.NumberOfLayers
	upSpare, downSpare := newNodeList(listCascade), newNodeList(listCascade)
	upCur, upNext := upList, &upSpare
	downCur, downNext := downList, &downSpare

	f.processStatusList(upCur, upNext, layerIndex(Outside, 0), layerIndex(Inside, 0))
	f.processStatusList(downCur, downNext, layerIndex(Inside, 0), layerIndex(Outside, 0))
	upCur, upNext = upNext, upCur
	downCur, downNext = downNext, downCur

	for m := 1; m <= layers; m++ {
		upTo, downTo := 0, 0
		if m > 1 {
			upTo = layerIndex(Inside, m-2)
			downTo = layerIndex(Outside, m-2)
		}
		upSearch, downSearch := searchFar, searchFar
		if m < layers {
			upSearch = layerIndex(Inside, m)
			downSearch = layerIndex(Outside, m)
		}
		f.processStatusList(upCur, upNext, upTo, upSearch)
		f.processStatusList(downCur, downNext, downTo, downSearch)
		upCur, upNext = upNext, upCur
		downCur, downNext = downNext, downCur
	}

	f.processStatusList(upCur, upNext, layerIndex(Inside, layers-1), searchNone)
	f.processStatusList(downCur, downNext, layerIndex(Outside, layers-1), searchNone)
}

// Pseudo layer indices for processStatusList.
const (
	searchFar  = -1
	searchNone = -2
)

// processStatusList moves every node of in to layer to. Face neighbors
// that sit in layer search are pulled out of it onto out; searchFar pulls
// far pixels instead.
func (f *Filter) processStatusList(in, out *NodeList, to, search int) {
	dst := &f.lists.Layers[to]
	want := StatusFar
	if search >= 0 {
		want = f.layerStatus[search]
	}
	for !in.Empty() {
		h := in.Front()
		idx := f.store.Node(h).Index
		f.lists.move(h, in, dst)
		f.status.set(idx, f.layerStatus[to])
		if search == searchNone {
			continue
		}
		for _, o := range f.faces {
			q := idx + o
			if f.status.At(q) != want {
				continue
			}
			f.status.set(q, StatusChanging)
			if search == searchFar {
				f.lists.track(f.store.acquireNext(), q, out)
			} else {
				f.lists.move(f.lists.owner[q], &f.lists.Layers[search], out)
			}
		}
	}
}

// propagateAllLayerValues recomputes every non-active layer from the layer
// inside it, first inside 0 and outside 0 from the active layer, then each
// deeper layer in turn. It returns the number of nodes released past the
// outermost layers.
func (f *Filter) propagateAllLayerValues() int {
	released := 0
	for to := 1; to < len(f.lists.Layers); to++ {
		released += f.propagateLayerValues(shallower(to), to)
	}
	return released
}

// propagateLayerValues sets each node of layer to one DifferenceFactor
// beyond its closest neighbor in layer from. A node with no neighbor in
// from is demoted one layer further out; past the last layer it is
// released and its pixel becomes far, keeping its last value.
func (f *Filter) propagateLayerValues(from, to int) int {
	kind, _ := layerOf(to)
	delta := f.consts.DifferenceFactor
	if kind == Inside {
		delta = -delta
	}
	fromStatus := f.layerStatus[from]
	promote := to + 2
	list := &f.lists.Layers[to]
	released := 0

	h := list.Front()
	for !h.IsNil() {
		n := f.store.Node(h)
		next := n.next
		idx := n.Index
		found := false
		best := 0.0
		for _, o := range f.faces {
			q := idx + o
			if f.status.At(q) != fromStatus {
				continue
			}
			v := f.u(q)
			if !found || (kind == Inside && v > best) || (kind == Outside && v < best) {
				best = v
			}
			found = true
		}
		switch {
		case found:
			f.setU(idx, best+delta)
		case promote >= len(f.lists.Layers):
			f.lists.untrack(h, list)
			f.status.set(idx, StatusFar)
			released++
		default:
			f.lists.move(h, list, &f.lists.Layers[promote])
			f.status.set(idx, f.layerStatus[promote])
		}
		h = next
	}
	return released
}
