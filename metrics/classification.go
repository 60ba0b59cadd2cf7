package metrics

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// Weighting は Cohen's kappa の重み付け方式
type Weighting int

const (
	// Unweighted は不一致を一律に扱う
	Unweighted Weighting = iota
	// Linear は |i-j| で重み付けする
	Linear
	// Quadratic は (i-j)² で重み付けする (QWK)
	Quadratic
)

// String implements fmt.Stringer.
func (w Weighting) String() string {
	switch w {
	case Linear:
		return "linear"
	case Quadratic:
		return "quadratic"
	}
	return "none"
}

func checkLabels(op string, yTrue, yPred []int) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty label vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// UniqueLabels は yTrue と yPred に現れるラベルの和集合を昇順で返す
func UniqueLabels(yTrue, yPred []int) []int {
	seen := make(map[int]struct{})
	for _, v := range yTrue {
		seen[v] = struct{}{}
	}
	for _, v := range yPred {
		seen[v] = struct{}{}
	}
	out := make([]int, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

// ConfusionMatrix は混同行列を計算する
//
// 行が真のラベル、列が予測ラベルで、順序は labels に従います。labels が
// nil の場合は UniqueLabels を使用します。labels に含まれないサンプルは
// 無視されます。
func ConfusionMatrix(yTrue, yPred []int, labels []int) (*mat.Dense, []int, error) {
	if err := checkLabels("ConfusionMatrix", yTrue, yPred); err != nil {
		return nil, nil, err
	}
	if labels == nil {
		labels = UniqueLabels(yTrue, yPred)
	}
	if len(labels) == 0 {
		return nil, nil, errors.NewValueError("ConfusionMatrix", "no labels")
	}
	index := make(map[int]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	cm := mat.NewDense(len(labels), len(labels), nil)
	for i := range yTrue {
		ti, ok1 := index[yTrue[i]]
		pi, ok2 := index[yPred[i]]
		if !ok1 || !ok2 {
			continue
		}
		cm.Set(ti, pi, cm.At(ti, pi)+1)
	}
	return cm, labels, nil
}

// CohenKappa は Cohen's kappa を計算する
//
// scikit-learn の cohen_kappa_score と同じ定義です。重みはラベルの値では
// なく、昇順に並べたラベル集合でのインデックスの差から計算します。
// 期待不一致が 0 の場合（例: 全サンプルが同じクラス）は NaN を返し、
// UndefinedMetricWarning を発行します。
func CohenKappa(yTrue, yPred []int, weighting Weighting) (float64, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred, nil)
	if err != nil {
		return 0, err
	}
	k := len(labels)

	rowSums := make([]float64, k)
	colSums := make([]float64, k)
	var total float64
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			v := cm.At(i, j)
			rowSums[i] += v
			colSums[j] += v
			total += v
		}
	}

	var observed, expected float64
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			w := kappaWeight(i, j, weighting)
			observed += w * cm.At(i, j)
			expected += w * rowSums[i] * colSums[j] / total
		}
	}

	if expected == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("CohenKappa",
			fmt.Sprintf("expected disagreement is zero with %d label(s)", k), math.NaN()))
		return math.NaN(), nil
	}
	return 1 - observed/expected, nil
}

func kappaWeight(i, j int, weighting Weighting) float64 {
	d := float64(i - j)
	switch weighting {
	case Linear:
		return math.Abs(d)
	case Quadratic:
		return d * d
	}
	if i == j {
		return 0
	}
	return 1
}

// Accuracy は正解率を計算する
func Accuracy(yTrue, yPred []int) (float64, error) {
	if err := checkLabels("Accuracy", yTrue, yPred); err != nil {
		return 0, err
	}
	var hit int
	for i := range yTrue {
		if yTrue[i] == yPred[i] {
			hit++
		}
	}
	return float64(hit) / float64(len(yTrue)), nil
}

// ClassScore はクラスごとの適合率・再現率・F1
type ClassScore struct {
	Label     int
	Precision float64
	Recall    float64
	F1        float64
	Support   int
}

// ClassificationReport は PrecisionRecallF1 の結果
type ClassificationReport struct {
	Classes        []ClassScore
	MacroPrecision float64
	MacroRecall    float64
	MacroF1        float64
}

// PrecisionRecallF1 はクラスごとの指標とマクロ平均を計算する
//
// 分母が 0 になる指標は 0 として扱い、UndefinedMetricWarning を発行します。
func PrecisionRecallF1(yTrue, yPred []int, labels []int) (*ClassificationReport, error) {
	cm, labels, err := ConfusionMatrix(yTrue, yPred, labels)
	if err != nil {
		return nil, err
	}
	k := len(labels)
	rep := &ClassificationReport{Classes: make([]ClassScore, k)}

	undefined := 0
	for c := 0; c < k; c++ {
		tp := cm.At(c, c)
		var predicted, actual float64
		for j := 0; j < k; j++ {
			predicted += cm.At(j, c)
			actual += cm.At(c, j)
		}

		s := ClassScore{Label: labels[c], Support: int(actual)}
		if predicted > 0 {
			s.Precision = tp / predicted
		} else {
			undefined++
		}
		if actual > 0 {
			s.Recall = tp / actual
		} else {
			undefined++
		}
		if s.Precision+s.Recall > 0 {
			s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
		}
		rep.Classes[c] = s

		rep.MacroPrecision += s.Precision
		rep.MacroRecall += s.Recall
		rep.MacroF1 += s.F1
	}
	rep.MacroPrecision /= float64(k)
	rep.MacroRecall /= float64(k)
	rep.MacroF1 /= float64(k)

	if undefined > 0 {
		errors.Warn(errors.NewUndefinedMetricWarning("PrecisionRecallF1",
			fmt.Sprintf("%d precision/recall value(s) have no samples", undefined), 0))
	}
	return rep, nil
}
