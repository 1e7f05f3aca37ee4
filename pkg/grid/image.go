// Package grid provides the N-dimensional scalar image used by the level-set
// solver. Pixels are stored in a flat []float64 in row-major order with the
// first axis varying fastest, the same z*width*height + y*width + x layout the
// volume code uses for 3D data.
package grid

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAxes is returned when an image is created without any axis.
	ErrNoAxes = errors.New("grid: image needs at least one axis")
	// ErrAxisLength is returned when an axis length is not positive.
	ErrAxisLength = errors.New("grid: every axis length must be positive")
	// ErrDataLength is returned when a backing slice does not match the size.
	ErrDataLength = errors.New("grid: data length does not match image size")
)

// Image is an N-dimensional image of float64 pixels.
type Image struct {
	size    []int
	strides []int
	data    []float64
}

// Region is a contiguous range of flat pixel offsets [Start, End).
type Region struct {
	Start, End int
}

// Len returns the number of pixels in the region.
func (r Region) Len() int { return r.End - r.Start }

// New allocates a zero-filled image with the given axis lengths.
func New(size ...int) (*Image, error) {
	n, strides, err := layout(size)
	if err != nil {
		return nil, err
	}
	return &Image{
		size:    append([]int(nil), size...),
		strides: strides,
		data:    make([]float64, n),
	}, nil
}

// NewFromData wraps an existing slice. The image aliases data.
func NewFromData(data []float64, size ...int) (*Image, error) {
	n, strides, err := layout(size)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: have %d, want %d", ErrDataLength, len(data), n)
	}
	return &Image{
		size:    append([]int(nil), size...),
		strides: strides,
		data:    data,
	}, nil
}

func layout(size []int) (int, []int, error) {
	if len(size) == 0 {
		return 0, nil, ErrNoAxes
	}
	strides := make([]int, len(size))
	n := 1
	for axis, l := range size {
		if l <= 0 {
			return 0, nil, fmt.Errorf("%w: axis %d has length %d", ErrAxisLength, axis, l)
		}
		strides[axis] = n
		n *= l
	}
	return n, strides, nil
}

// Dims returns the number of axes.
func (im *Image) Dims() int { return len(im.size) }

// Size returns a copy of the axis lengths.
func (im *Image) Size() []int { return append([]int(nil), im.size...) }

// Len returns the total number of pixels.
func (im *Image) Len() int { return len(im.data) }

// Stride returns the flat offset step along axis.
func (im *Image) Stride(axis int) int { return im.strides[axis] }

// Data exposes the backing slice.
func (im *Image) Data() []float64 { return im.data }

// At returns the pixel at a flat offset.
func (im *Image) At(offset int) float64 { return im.data[offset] }

// Set writes the pixel at a flat offset.
func (im *Image) Set(offset int, v float64) { im.data[offset] = v }

// Fill sets every pixel to v.
func (im *Image) Fill(v float64) {
	for i := range im.data {
		im.data[i] = v
	}
}

// Clone returns a deep copy of the image.
func (im *Image) Clone() *Image {
	return &Image{
		size:    append([]int(nil), im.size...),
		strides: append([]int(nil), im.strides...),
		data:    append([]float64(nil), im.data...),
	}
}

// Offset converts a coordinate to a flat offset. The coordinate is not
// bounds checked; use InBounds first when it may lie outside the image.
func (im *Image) Offset(coord []int) int {
	off := 0
	for axis, c := range coord {
		off += c * im.strides[axis]
	}
	return off
}

// Coord converts a flat offset to a coordinate, reusing dst when it has
// room for every axis.
func (im *Image) Coord(offset int, dst []int) []int {
	if cap(dst) < len(im.size) {
		dst = make([]int, len(im.size))
	}
	dst = dst[:len(im.size)]
	for axis, l := range im.size {
		dst[axis] = offset % l
		offset /= l
	}
	return dst
}

// InBounds reports whether coord addresses a pixel of the image.
func (im *Image) InBounds(coord []int) bool {
	if len(coord) != len(im.size) {
		return false
	}
	for axis, c := range coord {
		if c < 0 || c >= im.size[axis] {
			return false
		}
	}
	return true
}

// OnBoundary reports whether the pixel at offset touches the image border
// along any axis, i.e. at least one of its face neighbors does not exist.
func (im *Image) OnBoundary(offset int) bool {
	for _, l := range im.size {
		c := offset % l
		if c == 0 || c == l-1 {
			return true
		}
		offset /= l
	}
	return false
}

// FaceOffsets returns the 2*Dims flat offsets of the face-connected
// neighbors, ordered -stride, +stride per axis. They are only valid for
// pixels that are not on the boundary.
func (im *Image) FaceOffsets() []int {
	offs := make([]int, 0, 2*len(im.strides))
	for _, s := range im.strides {
		offs = append(offs, -s, s)
	}
	return offs
}

// SplitRegion divides the image into at most n slabs along its slowest axis
// and returns slab i together with the number of slabs actually used. Slabs
// past the returned count are empty.
func (im *Image) SplitRegion(i, n int) (Region, int) {
	last := len(im.size) - 1
	length := im.size[last]
	pieces := n
	if pieces > length {
		pieces = length
	}
	if pieces < 1 {
		pieces = 1
	}
	if i < 0 || i >= pieces {
		return Region{}, pieces
	}
	per := (length + pieces - 1) / pieces
	// Recount so that no trailing slab is empty.
	pieces = (length + per - 1) / per
	if i >= pieces {
		return Region{}, pieces
	}
	lo := i * per
	hi := lo + per
	if hi > length {
		hi = length
	}
	stride := im.strides[last]
	return Region{Start: lo * stride, End: hi * stride}, pieces
}
