package levelset

import (
	"fmt"

	"sparsefield/pkg/grid"
)

// Status is the per-pixel layer label stored in the StatusGrid.
type Status int32

// Labels that are not layer encodings. The transient labels only exist
// while ApplyUpdate is moving nodes between layers.
const (
	StatusActive             Status = 0
	StatusFar                Status = -1
	StatusChanging           Status = -2
	StatusActiveChangingUp   Status = -3
	StatusActiveChangingDown Status = -4
	StatusBoundary           Status = -5
)

// LayerKind distinguishes the active layer from the inside and outside
// layers around it.
type LayerKind int

const (
	Active LayerKind = iota
	Inside
	Outside
)

func (k LayerKind) String() string {
	switch k {
	case Active:
		return "active"
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	}
	return fmt.Sprintf("LayerKind(%d)", int(k))
}

// Constants are the solver-wide factors fixed when a Filter is built.
type Constants struct {
	// ActiveStatus scales the layer depth in a label. It must be at least 3
	// so that inside and outside labels never collide.
	ActiveStatus int
	// ChangeFactor is the half-width of the active band: an active pixel
	// whose shifted value leaves [-ChangeFactor, ChangeFactor] changes layer.
	ChangeFactor float64
	// DifferenceFactor is the value step between adjacent layers.
	DifferenceFactor float64
}

// DefaultConstants returns ActiveStatus 4, ChangeFactor 0.5 and
// DifferenceFactor 1.
func DefaultConstants() Constants {
	return Constants{ActiveStatus: 4, ChangeFactor: 0.5, DifferenceFactor: 1}
}

// Status encodes a layer as a label: 0 for the active layer,
// ActiveStatus*(depth+1)+1 for inside layers and ActiveStatus*(depth+1)-1
// for outside layers.
func (c Constants) Status(kind LayerKind, depth int) Status {
	switch kind {
	case Inside:
		return Status(c.ActiveStatus*(depth+1) + 1)
	case Outside:
		return Status(c.ActiveStatus*(depth+1) - 1)
	}
	return StatusActive
}

// Decode is the inverse of Status. ok is false for far, boundary and
// transient labels.
func (c Constants) Decode(s Status) (kind LayerKind, depth int, ok bool) {
	if s == StatusActive {
		return Active, 0, true
	}
	if s < 0 {
		return 0, 0, false
	}
	a := Status(c.ActiveStatus)
	depth = int((s+1)/a) - 1
	switch s % a {
	case 1:
		return Inside, depth, true
	case a - 1:
		return Outside, depth, true
	}
	return 0, 0, false
}

// layerIndex orders the layer lists: 0 active, 1+2k inside k, 2+2k outside k.
func layerIndex(kind LayerKind, depth int) int {
	switch kind {
	case Inside:
		return 1 + 2*depth
	case Outside:
		return 2 + 2*depth
	}
	return 0
}

func layerOf(index int) (LayerKind, int) {
	switch {
	case index == 0:
		return Active, 0
	case index%2 == 1:
		return Inside, (index - 1) / 2
	}
	return Outside, (index - 2) / 2
}

// shallower returns the layer index next closer to the active layer.
func shallower(index int) int {
	if index <= 2 {
		return 0
	}
	return index - 2
}

// StatusGrid holds one label per pixel with the same extent as the image.
type StatusGrid struct {
	img    *grid.Image
	labels []Status
}

func newStatusGrid(img *grid.Image) *StatusGrid {
	g := &StatusGrid{img: img, labels: make([]Status, img.Len())}
	g.reset()
	return g
}

// reset labels every pixel far, or boundary when it touches the border.
func (g *StatusGrid) reset() {
	for off := range g.labels {
		if g.img.OnBoundary(off) {
			g.labels[off] = StatusBoundary
		} else {
			g.labels[off] = StatusFar
		}
	}
}

// At returns the label of the pixel at offset.
func (g *StatusGrid) At(offset int) Status { return g.labels[offset] }

func (g *StatusGrid) set(offset int, s Status) { g.labels[offset] = s }

// Len returns the number of labels.
func (g *StatusGrid) Len() int { return len(g.labels) }

// IsOnBoundary reports whether the pixel lacks an interior neighbor along
// some axis. Such pixels are never tracked.
func (g *StatusGrid) IsOnBoundary(offset int) bool { return g.img.OnBoundary(offset) }

// Labels returns a copy of every label.
func (g *StatusGrid) Labels() []Status { return append([]Status(nil), g.labels...) }
