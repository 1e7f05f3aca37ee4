package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"

	"sparsefield/internal/models"
)

// Viewer renders axis-aligned slices of a level-set field. Values are
// mapped through a window around the iso value: the surface is mid gray,
// the inside bright and the outside dark.
type Viewer struct {
	// volumeData holds the field, first axis fastest
	volumeData []float64

	// dimensions of the volume; missing axes have length 1
	width  int
	height int
	depth  int

	isoValue float64

	// window is the distance from the iso value mapped to black or white
	window float64
}

// NewViewer creates a viewer for a 1 to 3 axis volume.
func NewViewer(vol models.Volume, window float64) (*Viewer, error) {
	if len(vol.Size) == 0 || len(vol.Size) > 3 {
		return nil, fmt.Errorf("viewer needs 1 to 3 axes, got %d", len(vol.Size))
	}
	if vol.Len() != len(vol.Data) {
		return nil, fmt.Errorf("volume has %d values for %d pixels", len(vol.Data), vol.Len())
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	dims := [3]int{1, 1, 1}
	copy(dims[:], vol.Size)
	return &Viewer{
		volumeData: vol.Data,
		width:      dims[0],
		height:     dims[1],
		depth:      dims[2],
		isoValue:   vol.IsoValue,
		window:     window,
	}, nil
}

func (v *Viewer) gray(value float64) color.Gray16 {
	t := 0.5 - (value-v.isoValue)/(2*v.window)
	return color.Gray16{Y: uint16(math.Max(0, math.Min(1, t)) * 65535)}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewGray16(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetGray16(z, y, v.gray(v.volumeData[z*v.width*v.height+y*v.width+position]))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, z, v.gray(v.volumeData[z*v.width*v.height+position*v.width+x]))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewGray16(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetGray16(x, y, v.gray(v.volumeData[position*v.width*v.height+y*v.width+x]))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// InsideFraction returns the share of pixels below the iso value, the
// enclosed volume relative to the grid.
func (v *Viewer) InsideFraction() float64 {
	inside := 0
	for _, value := range v.volumeData {
		if value < v.isoValue {
			inside++
		}
	}
	return float64(inside) / float64(len(v.volumeData))
}

// SaveSlice saves an extracted slice as JPEG, or PNG when the filename
// ends in .png
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	if strings.EqualFold(filepath.Ext(filename), ".png") {
		return png.Encode(file, img)
	}
	return jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
