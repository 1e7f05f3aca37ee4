package visualization

import (
	"errors"
	"fmt"
	"image/color"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"sparsefield/internal/models"
)

// ErrNoHistory is returned when there is nothing to plot.
var ErrNoHistory = errors.New("visualization: empty iteration history")

// PlotHistory writes two plots of a run: the time step and RMS change per
// iteration to path, and the active layer size to the same name with an
// "_active" suffix. The format follows the extension.
func PlotHistory(history []models.IterationStats, path string) error {
	if len(history) == 0 {
		return ErrNoHistory
	}

	dtPts := make(plotter.XYs, len(history))
	rmsPts := make(plotter.XYs, len(history))
	activePts := make(plotter.XYs, len(history))
	for i, st := range history {
		x := float64(st.Iteration)
		dtPts[i] = plotter.XY{X: x, Y: st.TimeStep}
		rmsPts[i] = plotter.XY{X: x, Y: st.RMSChange}
		activePts[i] = plotter.XY{X: x, Y: float64(st.Active)}
	}

	pStep := plot.New()
	pStep.Title.Text = "Time step and RMS change"
	pStep.X.Label.Text = "Iteration"
	pStep.Y.Label.Text = "Value"
	if err := addLine(pStep, "time step", dtPts, color.RGBA{R: 31, G: 119, B: 180, A: 255}); err != nil {
		return err
	}
	if err := addLine(pStep, "rms change", rmsPts, color.RGBA{R: 214, G: 39, B: 40, A: 255}); err != nil {
		return err
	}
	pStep.Legend.Top = true

	pActive := plot.New()
	pActive.Title.Text = "Active layer"
	pActive.X.Label.Text = "Iteration"
	pActive.Y.Label.Text = "Pixels"
	if err := addLine(pActive, "active", activePts, color.RGBA{R: 44, G: 160, B: 44, A: 255}); err != nil {
		return err
	}

	if err := pStep.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("save step plot: %w", err)
	}
	if err := pActive.Save(8*vg.Inch, 4*vg.Inch, ActivePlotPath(path)); err != nil {
		return fmt.Errorf("save active plot: %w", err)
	}
	return nil
}

// ActivePlotPath returns where PlotHistory writes the active layer plot.
func ActivePlotPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_active" + ext
}

func addLine(p *plot.Plot, name string, pts plotter.XYs, c color.Color) error {
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = c
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add(name, line)
	return nil
}
