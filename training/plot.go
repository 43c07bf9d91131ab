package training

import (
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/YuminosukeSato/emissions/pkg/errors"
)

// WritePredictionPlot は評価データの実測値と予測値の散布図を PNG/SVG/PDF として保存する
//
// 形式は拡張子から決まる。完全な予測を表す y = x の線も描く。
func WritePredictionPlot(path string, actual, predicted []float64) error {
	if len(actual) == 0 || len(actual) != len(predicted) {
		return errors.NewDimensionError("WritePredictionPlot", len(actual), len(predicted), 0)
	}

	p := plot.New()
	p.Title.Text = "Predicted vs actual emissions (test set)"
	p.X.Label.Text = "actual (g CO2)"
	p.Y.Label.Text = "predicted (g CO2)"

	lo, hi := math.Inf(1), math.Inf(-1)
	pts := make(plotter.XYs, len(actual))
	for i := range actual {
		pts[i].X = actual[i]
		pts[i].Y = predicted[i]
		lo = math.Min(lo, math.Min(actual[i], predicted[i]))
		hi = math.Max(hi, math.Max(actual[i], predicted[i]))
	}

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "failed to build scatter")
	}
	scatter.GlyphStyle.Shape = draw.CircleGlyph{}
	scatter.GlyphStyle.Radius = vg.Points(2)
	scatter.GlyphStyle.Color = color.RGBA{R: 31, G: 119, B: 180, A: 200}

	diagonal, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "failed to build reference line")
	}
	diagonal.LineStyle.Width = vg.Points(1)
	diagonal.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	diagonal.LineStyle.Color = color.RGBA{R: 214, G: 39, B: 40, A: 255}

	p.Add(plotter.NewGrid(), scatter, diagonal)
	p.Legend.Add("test samples", scatter)
	p.Legend.Add("y = x", diagonal)
	p.Legend.Top = true
	p.Legend.Left = true

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewArtifactError("plot", path, err)
	}
	if err := p.Save(6*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.NewArtifactError("plot", path, err)
	}
	return nil
}
