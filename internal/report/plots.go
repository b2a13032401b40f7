// Package report renders diagnostic output for a pipeline run: PNG plots of
// the GFP trace and the k-means GEV trace, and an HTML page of label metrics.
package report

import (
	"errors"
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/Semillero-de-neuroinformatica/connectivity-tools/internal/microstate"
)

const (
	plotWidth  = 14 * vg.Inch
	plotHeight = 6 * vg.Inch
)

var (
	gfpColor       = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	thresholdColor = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	peakColor      = color.RGBA{R: 44, G: 160, B: 44, A: 255}
)

// PlotGFP saves the GFP trace with the amplitude threshold as a dashed line
// and the selected peaks as markers. The format follows the extension of
// path.
func PlotGFP(path string, gfp []float64, threshold float64, peaks []int) error {
	if len(gfp) == 0 {
		return errors.New("plot GFP: empty series")
	}

	p := plot.New()
	p.Title.Text = "Global Field Power"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "GFP"

	pts := make(plotter.XYs, len(gfp))
	for i, v := range gfp {
		pts[i] = plotter.XY{X: float64(i), Y: v}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = gfpColor
	line.Width = vg.Points(1)
	p.Add(line)
	p.Legend.Add("GFP", line)

	thr, err := plotter.NewLine(plotter.XYs{{X: 0, Y: threshold}, {X: float64(len(gfp) - 1), Y: threshold}})
	if err != nil {
		return err
	}
	thr.Color = thresholdColor
	thr.Width = vg.Points(1)
	thr.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
	p.Add(thr)
	p.Legend.Add(fmt.Sprintf("threshold %.3g", threshold), thr)

	if len(peaks) > 0 {
		peakPts := make(plotter.XYs, 0, len(peaks))
		for _, i := range peaks {
			if i < 0 || i >= len(gfp) {
				return fmt.Errorf("plot GFP: peak index %d outside %d samples", i, len(gfp))
			}
			peakPts = append(peakPts, plotter.XY{X: float64(i), Y: gfp[i]})
		}
		sc, err := plotter.NewScatter(peakPts)
		if err != nil {
			return err
		}
		sc.GlyphStyle.Color = peakColor
		sc.GlyphStyle.Shape = draw.CircleGlyph{}
		sc.GlyphStyle.Radius = vg.Points(2.5)
		p.Add(sc)
		p.Legend.Add(fmt.Sprintf("peaks (%d)", len(peaks)), sc)
	}

	placeLegend(p)
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save GFP plot: %w", err)
	}
	return nil
}

// PlotGEV saves the per-iteration GEV of every cluster and the total.
func PlotGEV(path string, trace microstate.GEVTrace) error {
	if len(trace.Total) == 0 {
		return errors.New("plot GEV: empty trace")
	}

	p := plot.New()
	p.Title.Text = "Global Explained Variance per iteration"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "GEV"
	p.Y.Min = 0

	colors := generateColors(len(trace.PerCluster))
	for k, series := range trace.PerCluster {
		line, err := plotter.NewLine(iterationXYs(series))
		if err != nil {
			return err
		}
		line.Color = colors[k]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(microstate.LabelFor(k).String(), line)
	}

	total, err := plotter.NewLine(iterationXYs(trace.Total))
	if err != nil {
		return err
	}
	total.Color = color.Black
	total.Width = vg.Points(2)
	p.Add(total)
	p.Legend.Add(fmt.Sprintf("total %.3f", trace.Final()), total)

	placeLegend(p)
	if err := p.Save(plotWidth, plotHeight, path); err != nil {
		return fmt.Errorf("save GEV plot: %w", err)
	}
	return nil
}

func iterationXYs(series []float64) plotter.XYs {
	pts := make(plotter.XYs, len(series))
	for i, v := range series {
		pts[i] = plotter.XY{X: float64(i + 1), Y: v}
	}
	return pts
}

func placeLegend(p *plot.Plot) {
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
}

// generateColors returns n evenly spaced hues.
func generateColors(n int) []color.Color {
	colors := make([]color.Color, n)
	for i := range colors {
		r, g, b := hslToRGB(float64(i)/float64(n), 0.7, 0.5)
		colors[i] = color.RGBA{R: r, G: g, B: b, A: 255}
	}
	return colors
}

// hslToRGB converts HSL in [0,1] to 8-bit RGB.
func hslToRGB(h, s, l float64) (r, g, b uint8) {
	c := (1 - math.Abs(2*l-1)) * s
	hp := h * 6
	x := c * (1 - math.Abs(math.Mod(hp, 2)-1))
	var r1, g1, b1 float64
	switch {
	case hp < 1:
		r1, g1 = c, x
	case hp < 2:
		r1, g1 = x, c
	case hp < 3:
		g1, b1 = c, x
	case hp < 4:
		g1, b1 = x, c
	case hp < 5:
		r1, b1 = x, c
	default:
		r1, b1 = c, x
	}
	m := l - c/2
	to8 := func(v float64) uint8 { return uint8(math.Round((v + m) * 255)) }
	return to8(r1), to8(g1), to8(b1)
}
