package visualization

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"sparsefield/internal/models"
)

func TestPlotHistory(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping file I/O test in short mode")
	}

	history := make([]models.IterationStats, 5)
	for i := range history {
		history[i] = models.IterationStats{
			Iteration: i + 1,
			TimeStep:  0.5,
			RMSChange: 0.4 / float64(i+1),
			Active:    20 + 2*i,
		}
	}

	path := filepath.Join(t.TempDir(), "history.png")
	if err := PlotHistory(history, path); err != nil {
		t.Fatalf("Failed to plot history: %v", err)
	}
	for _, p := range []string{path, ActivePlotPath(path)} {
		if info, err := os.Stat(p); err != nil || info.Size() == 0 {
			t.Errorf("Expected non-empty plot at %s (err %v)", p, err)
		}
	}

	if err := PlotHistory(nil, path); !errors.Is(err, ErrNoHistory) {
		t.Errorf("Expected ErrNoHistory, got %v", err)
	}
}

func TestActivePlotPath(t *testing.T) {
	if got := ActivePlotPath("out/run.svg"); got != "out/run_active.svg" {
		t.Errorf("Expected out/run_active.svg, got %s", got)
	}
}
