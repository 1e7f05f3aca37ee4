package levelset

// Validate checks the band against the status grid and returns an
// ErrInvariantViolation on the first inconsistency, or an
// ErrBoundaryViolation for an active pixel on the image boundary:
//
//   - every tracked pixel owns exactly one node, held by the list its label names
//   - untracked pixels are far or boundary and own no node
//   - no transient label survives an update
//   - active pixels never touch the image boundary
//   - every inside or outside node of depth k has a face neighbor in the
//     layer one step shallower, so layers have no gaps
func (f *Filter) Validate() error {
	if !f.initialized {
		return ErrNotInitialized
	}
	if f.coord.State() != Idle && f.coord.State() != ChangeMerged {
		return invariantf(-1, "validate called in state %v", f.coord.State())
	}

	tracked := 0
	for off := 0; off < f.status.Len(); off++ {
		s := f.status.At(off)
		h := f.lists.owner[off]
		switch s {
		case StatusFar, StatusBoundary:
			if !h.IsNil() {
				return invariantf(off, "untracked pixel (status %d) owns a node", s)
			}
			if (s == StatusBoundary) != f.status.IsOnBoundary(off) {
				return invariantf(off, "boundary label %d disagrees with geometry", s)
			}
			continue
		case StatusChanging, StatusActiveChangingUp, StatusActiveChangingDown:
			return invariantf(off, "transient status %d left behind", s)
		}
		kind, depth, ok := f.consts.Decode(s)
		if !ok || depth >= f.cfg.NumberOfLayers {
			return invariantf(off, "unknown status %d", s)
		}
		if h.IsNil() {
			return invariantf(off, "%v layer %d pixel has no node", kind, depth)
		}
		n := f.store.Node(h)
		if n.Index != off {
			return invariantf(off, "owner node tracks pixel %d", n.Index)
		}
		if int(n.list) != layerIndex(kind, depth) {
			return invariantf(off, "status says %v layer %d but node is in list %d", kind, depth, n.list)
		}
		tracked++
	}

	listed := 0
	for li := range f.lists.Layers {
		layer := &f.lists.Layers[li]
		count := 0
		for h := layer.Front(); !h.IsNil(); h = f.store.Next(h) {
			n := f.store.Node(h)
			if int(n.list) != li {
				return invariantf(n.Index, "node in layer %d is labelled with list %d", li, n.list)
			}
			if f.lists.owner[n.Index] != h {
				return invariantf(n.Index, "pixel is held by more than one node")
			}
			if f.status.At(n.Index) != f.layerStatus[li] {
				return invariantf(n.Index, "node in layer %d has status %d", li, f.status.At(n.Index))
			}
			if li == 0 {
				if f.status.IsOnBoundary(n.Index) {
					return boundaryf(n.Index, "active pixel on the image boundary")
				}
			} else if !f.hasNeighbor(n.Index, f.layerStatus[shallower(li)]) {
				return invariantf(n.Index, "layer %d node has no neighbor in layer %d", li, shallower(li))
			}
			count++
		}
		if count != layer.Len() {
			return invariantf(-1, "layer %d holds %d nodes but reports %d", li, count, layer.Len())
		}
		listed += count
	}
	if listed != tracked {
		return invariantf(-1, "%d pixels are labelled as tracked but %d nodes are listed", tracked, listed)
	}
	return nil
}

func (f *Filter) hasNeighbor(offset int, s Status) bool {
	for _, o := range f.faces {
		if f.status.At(offset+o) == s {
			return true
		}
	}
	return false
}
