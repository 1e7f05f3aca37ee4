package grid

import "math"

// Sphere writes the signed Euclidean distance to a sphere into im: negative
// inside, zero on the surface, positive outside. center is in pixel units
// and must have one entry per axis.
func Sphere(im *Image, center []float64, radius float64) {
	coord := make([]int, im.Dims())
	for off := range im.data {
		coord = im.Coord(off, coord)
		sum := 0.0
		for axis, c := range coord {
			d := float64(c) - center[axis]
			sum += d * d
		}
		im.data[off] = math.Sqrt(sum) - radius
	}
}

// Box writes a signed distance to the axis-aligned box [lo, hi] into im.
// Inside the box the value is minus the distance to the nearest face.
func Box(im *Image, lo, hi []float64) {
	coord := make([]int, im.Dims())
	for off := range im.data {
		coord = im.Coord(off, coord)
		outside := 0.0
		inside := math.Inf(-1)
		for axis, c := range coord {
			x := float64(c)
			d := math.Max(lo[axis]-x, x-hi[axis])
			inside = math.Max(inside, d)
			if d > 0 {
				outside += d * d
			}
		}
		if outside > 0 {
			im.data[off] = math.Sqrt(outside)
		} else {
			im.data[off] = inside
		}
	}
}
