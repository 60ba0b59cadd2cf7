package evaluation

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

var classColors = []color.Color{
	color.RGBA{R: 214, G: 39, B: 40, A: 160},
	color.RGBA{R: 120, G: 120, B: 120, A: 160},
	color.RGBA{R: 31, G: 119, B: 180, A: 160},
}

// ScoreBins は PlotScores のヒストグラムのビン数
const ScoreBins = 40

// PlotScores は真のクラス別に連続スコアのヒストグラムを重ね、閾値を縦線で示す
func PlotScores(w io.Writer, yTrue []int, scores, cuts []float64) error {
	if len(scores) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "plot scores")
	}
	if len(yTrue) != len(scores) {
		return errors.NewDimensionError("evaluation.PlotScores", len(yTrue), len(scores), 0)
	}

	byClass := make([]plotter.Values, len(ClassLabels))
	for i, s := range scores {
		c := yTrue[i]
		if c < 0 || c >= len(byClass) || math.IsNaN(s) || math.IsInf(s, 0) {
			continue
		}
		byClass[c] = append(byClass[c], s)
	}

	p := plot.New()
	p.Title.Text = "Predicted demand score by true class"
	p.X.Label.Text = "score"
	p.Y.Label.Text = "rows"
	p.Legend.Top = true

	var top float64
	for c, vals := range byClass {
		if len(vals) == 0 {
			continue
		}
		h, err := plotter.NewHist(vals, ScoreBins)
		if err != nil {
			return errors.Wrap(err, "score histogram")
		}
		h.FillColor = classColors[c]
		h.LineStyle.Width = vg.Length(0)
		for _, b := range h.Bins {
			top = math.Max(top, b.Weight)
		}
		p.Add(h)
		p.Legend.Add(ClassNames[c], h)
	}
	if top == 0 {
		return errors.NewValueError("evaluation.PlotScores", "no finite scores with a known class")
	}

	for i, cut := range cuts {
		line, err := plotter.NewLine(plotter.XYs{{X: cut, Y: 0}, {X: cut, Y: top}})
		if err != nil {
			return errors.Wrap(err, "threshold line")
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("t%d = %.3f", i+1, cut), line)
	}

	return writePNG(p, w, 8*vg.Inch, 5*vg.Inch)
}

// PlotCoefficients は係数または特徴量重要度を絶対値の大きい順に最大 top 件、
// 横棒グラフで描く。axis は値の軸ラベル
func PlotCoefficients(w io.Writer, coefs []Coefficient, top int, title, axis string) error {
	if len(coefs) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "plot coefficients")
	}
	names := make([]string, len(coefs))
	values := make([]float64, len(coefs))
	for i, c := range coefs {
		names[i], values[i] = c.Name, c.Value
	}
	ranked, err := RankCoefficients(names, values)
	if err != nil {
		return err
	}
	if top > 0 && top < len(ranked) {
		ranked = ranked[:top]
	}

	// 最大の係数を上に表示するため逆順に並べる
	vals := make(plotter.Values, len(ranked))
	labels := make([]string, len(ranked))
	for i, c := range ranked {
		k := len(ranked) - 1 - i
		vals[k] = c.Value
		labels[k] = c.Name
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = axis

	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return errors.Wrap(err, "coefficient bars")
	}
	bars.Horizontal = true
	bars.Color = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalY(labels...)

	height := vg.Length(len(ranked))*vg.Points(16) + 2*vg.Inch
	return writePNG(p, w, 8*vg.Inch, height)
}

// PlotLossCurve は学習ラウンドごとの train と valid の損失を折れ線で描く。
// valid は空でもよい
func PlotLossCurve(w io.Writer, train, valid []float64, metric string) error {
	if len(train) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "plot loss curve")
	}
	if len(valid) > 0 && len(valid) != len(train) {
		return errors.NewDimensionError("evaluation.PlotLossCurve", len(train), len(valid), 0)
	}

	p := plot.New()
	p.Title.Text = "Loss comparison"
	p.X.Label.Text = "iteration"
	p.Y.Label.Text = metric
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	series := []struct {
		name   string
		values []float64
		color  color.Color
	}{
		{"Train", train, classColors[2]},
		{"Valid", valid, classColors[0]},
	}
	for _, s := range series {
		if len(s.values) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(s.values))
		for i, v := range s.values {
			pts[i].X = float64(i + 1)
			pts[i].Y = v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "%s loss line", s.name)
		}
		line.LineStyle.Width = vg.Points(1.5)
		line.LineStyle.Color = s.color
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	return writePNG(p, w, 9*vg.Inch, 6*vg.Inch)
}

func writePNG(p *plot.Plot, w io.Writer, width, height vg.Length) error {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return errors.Wrap(err, "render plot")
	}
	_, err = wt.WriteTo(w)
	return errors.Wrap(err, "write plot")
}
