package visualization

import (
	"fmt"
	"image"
	"math"
	"os"
	"path/filepath"
	"testing"

	"sparsefield/internal/models"
)

// zLayers builds a volume whose value only depends on z.
func zLayers(width, height, depth int, value func(z int) float64) models.Volume {
	data := make([]float64, width*height*depth)
	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				data[z*width*height+y*width+x] = value(z)
			}
		}
	}
	return models.Volume{Data: data, Size: []int{width, height, depth}}
}

// TestNewViewer verifies that the volume shape is taken over
func TestNewViewer(t *testing.T) {
	vol := zLayers(10, 8, 5, func(int) float64 { return 0 })
	viewer, err := NewViewer(vol, 2)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	if viewer.width != 10 || viewer.height != 8 || viewer.depth != 5 {
		t.Errorf("Expected 10x8x5, got %dx%dx%d", viewer.width, viewer.height, viewer.depth)
	}

	// a 2D field is a volume of depth 1
	flat, err := NewViewer(models.Volume{Data: make([]float64, 12), Size: []int{4, 3}}, 1)
	if err != nil {
		t.Fatalf("Failed to create 2D viewer: %v", err)
	}
	if flat.depth != 1 {
		t.Errorf("Expected depth 1, got %d", flat.depth)
	}

	if _, err := NewViewer(models.Volume{Data: make([]float64, 5), Size: []int{4, 3}}, 1); err == nil {
		t.Error("Expected error for data length mismatch, got nil")
	}
	if _, err := NewViewer(models.Volume{Data: make([]float64, 16), Size: []int{2, 2, 2, 2}}, 1); err == nil {
		t.Error("Expected error for four axes, got nil")
	}
	if _, err := NewViewer(vol, 0); err == nil {
		t.Error("Expected error for zero window, got nil")
	}
}

// TestExtractSlice verifies the slice shapes and the gray mapping
func TestExtractSlice(t *testing.T) {
	width, height, depth := 10, 10, 5
	// z=0 deep inside, z=2 on the surface, z=4 far outside
	vol := zLayers(width, height, depth, func(z int) float64 { return float64(z-2) * 2 })
	viewer, err := NewViewer(vol, 2)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	expected := []uint16{65535, 65535, 32767, 0, 0}
	for z := 0; z < depth; z++ {
		img, err := viewer.ExtractSlice("z", z)
		if err != nil {
			t.Fatalf("Failed to extract Z slice at position %d: %v", z, err)
		}
		bounds := img.Bounds()
		if bounds.Dx() != width || bounds.Dy() != height {
			t.Errorf("Expected Z slice dimensions %dx%d, got %dx%d", width, height, bounds.Dx(), bounds.Dy())
		}
		gray16Img, ok := img.(*image.Gray16)
		if !ok {
			t.Fatalf("Expected *image.Gray16, got %T", img)
		}
		got := gray16Img.Gray16At(width/2, height/2).Y
		if math.Abs(float64(got)-float64(expected[z])) > 1 {
			t.Errorf("Expected Z slice %d value ~%d, got %d", z, expected[z], got)
		}
	}

	imgX, err := viewer.ExtractSlice("x", width/2)
	if err != nil {
		t.Fatalf("Failed to extract X slice: %v", err)
	}
	if b := imgX.Bounds(); b.Dx() != depth || b.Dy() != height {
		t.Errorf("Expected X slice dimensions %dx%d, got %dx%d", depth, height, b.Dx(), b.Dy())
	}

	imgY, err := viewer.ExtractSlice("y", height/2)
	if err != nil {
		t.Fatalf("Failed to extract Y slice: %v", err)
	}
	if b := imgY.Bounds(); b.Dx() != width || b.Dy() != depth {
		t.Errorf("Expected Y slice dimensions %dx%d, got %dx%d", width, depth, b.Dx(), b.Dy())
	}

	if _, err := viewer.ExtractSlice("invalid", 0); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
	if _, err := viewer.ExtractSlice("z", depth+1); err == nil {
		t.Error("Expected error for out of bounds position, got nil")
	}
	if _, err := viewer.ExtractSlice("x", -1); err == nil {
		t.Error("Expected error for negative position, got nil")
	}
}

func TestInsideFraction(t *testing.T) {
	vol := zLayers(4, 4, 4, func(z int) float64 { return float64(z) - 1.5 })
	viewer, err := NewViewer(vol, 1)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}
	if got := viewer.InsideFraction(); got != 0.5 {
		t.Errorf("Expected inside fraction 0.5, got %f", got)
	}
}

// TestSaveSliceSequence verifies that a sequence of slices can be saved
func TestSaveSliceSequence(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	tempDir := t.TempDir()
	width, height, depth := 5, 5, 3
	viewer, err := NewViewer(zLayers(width, height, depth, func(int) float64 { return 0 }), 1)
	if err != nil {
		t.Fatalf("Failed to create viewer: %v", err)
	}

	outputDir := filepath.Join(tempDir, "slices")
	if err := viewer.SaveSliceSequence("z", outputDir); err != nil {
		t.Fatalf("Failed to save slice sequence: %v", err)
	}
	for z := 0; z < depth; z++ {
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		if _, err := os.Stat(filename); os.IsNotExist(err) {
			t.Errorf("Expected slice file does not exist: %s", filename)
		}
	}

	img, err := viewer.ExtractSlice("y", 0)
	if err != nil {
		t.Fatalf("Failed to extract slice: %v", err)
	}
	jpg := filepath.Join(tempDir, "slice.jpg")
	if err := viewer.SaveSlice(img, jpg); err != nil {
		t.Fatalf("Failed to save slice: %v", err)
	}
	if _, err := os.Stat(jpg); os.IsNotExist(err) {
		t.Errorf("Saved file does not exist: %s", jpg)
	}

	if err := viewer.SaveSliceSequence("invalid", outputDir); err == nil {
		t.Error("Expected error for invalid axis, got nil")
	}
}
