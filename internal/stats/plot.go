package stats

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// curvePalette cycles through distinguishable line colors, one per
// strategy.
var curvePalette = []color.RGBA{
	{R: 20, G: 80, B: 200, A: 255},
	{R: 200, G: 30, B: 30, A: 255},
	{R: 40, G: 140, B: 40, A: 255},
	{R: 200, G: 130, B: 20, A: 255},
	{R: 130, G: 40, B: 170, A: 255},
	{R: 90, G: 90, B: 90, A: 255},
}

// WriteComparisonPlot renders the per-strategy mean MOCU curves into a PNG
// and returns its path.
func WriteComparisonPlot(outDir string, curves []StrategyCurve) (string, error) {
	if len(curves) == 0 {
		return "", fmt.Errorf("no curves to plot")
	}

	p := plot.New()
	p.Title.Text = "Mean remaining MOCU by experiment step"
	p.X.Label.Text = "experiment step"
	p.Y.Label.Text = "MOCU"
	p.Add(plotter.NewGrid())

	for i, curve := range curves {
		xys := make(plotter.XYs, len(curve.Values))
		for step, value := range curve.Values {
			xys[step].X = float64(step + 1)
			xys[step].Y = value
		}
		line, err := plotter.NewLine(xys)
		if err != nil {
			return "", err
		}
		line.Color = curvePalette[i%len(curvePalette)]
		line.Width = vg.Points(1.2)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%s (%d runs)", curve.Strategy, curve.Runs), line)
	}
	p.Legend.Top = true

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	outPath := filepath.Join(outDir, "mocu_comparison.png")
	if err := p.Save(8*vg.Inch, 5*vg.Inch, outPath); err != nil {
		return "", err
	}
	return outPath, nil
}
