package grid

import "fmt"

// Neighborhood is a radius-1 view of an image around a center pixel. It is
// only valid for centers that are not on the boundary, where every pixel of
// the 3^Dims box exists.
type Neighborhood struct {
	img    *Image
	center int
}

// Neighborhood returns the radius-1 view around center.
func (im *Image) Neighborhood(center int) Neighborhood {
	return Neighborhood{img: im, center: center}
}

// Center returns the flat offset of the center pixel.
func (n Neighborhood) Center() int { return n.center }

// Dims returns the dimensionality of the underlying image.
func (n Neighborhood) Dims() int { return len(n.img.size) }

// Value returns the center pixel.
func (n Neighborhood) Value() float64 { return n.img.data[n.center] }

// Axis returns the pixel step pixels away from the center along axis.
func (n Neighborhood) Axis(axis, step int) float64 {
	checkStep(step)
	return n.img.data[n.center+step*n.img.strides[axis]]
}

// Diagonal returns the pixel displaced by stepA along axisA and stepB along
// axisB.
func (n Neighborhood) Diagonal(axisA, stepA, axisB, stepB int) float64 {
	checkStep(stepA)
	checkStep(stepB)
	return n.img.data[n.center+stepA*n.img.strides[axisA]+stepB*n.img.strides[axisB]]
}

func checkStep(step int) {
	if step < -1 || step > 1 {
		panic(fmt.Sprintf("grid: neighborhood step %d outside radius 1", step))
	}
}
