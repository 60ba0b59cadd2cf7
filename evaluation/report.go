// Package evaluation は閾値で離散化した予測を真のクラスと比較し、
// 指標・ワークブック・図として出力します。
package evaluation

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikedemand/metrics"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
	"github.com/YuminosukeSato/bikedemand/thresholds"
)

// ClassLabels は評価で使う固定のクラス集合（不足・均衡・過剰）
var ClassLabels = []int{0, 1, 2}

// ClassNames は ClassLabels の表示名
var ClassNames = []string{"undersupply", "balanced", "oversupply"}

// Report は 1 つのデータ分割に対する評価結果
type Report struct {
	Name string
	N    int
	Cuts []float64

	QWK            float64
	LinearKappa    float64
	Accuracy       float64
	MAE            float64
	RMSE           float64
	Confusion      *mat.Dense
	Classification *metrics.ClassificationReport

	// Predicted は離散化後のクラス
	Predicted []int
}

// Evaluate は scores を cuts で離散化して yTrue と比較する
//
// QWK が定義できない場合（全標本が同じクラス）は NaN となり、metrics
// パッケージが UndefinedMetricWarning を発行します。MAE と RMSE は離散化前の
// 連続スコアとクラス番号の差から計算します。
func Evaluate(name string, yTrue []int, scores, cuts []float64) (*Report, error) {
	if len(yTrue) == 0 {
		return nil, errors.Wrapf(errors.ErrEmptyData, "evaluate %s", name)
	}
	if len(scores) != len(yTrue) {
		return nil, errors.NewDimensionError("evaluation.Evaluate", len(yTrue), len(scores), 0)
	}

	c := append([]float64(nil), cuts...)
	sort.Float64s(c)
	pred := thresholds.Digitize(scores, c)

	rep := &Report{Name: name, N: len(yTrue), Cuts: c, Predicted: pred}

	var err error
	if rep.QWK, err = metrics.CohenKappa(yTrue, pred, metrics.Quadratic); err != nil {
		return nil, err
	}
	if rep.LinearKappa, err = metrics.CohenKappa(yTrue, pred, metrics.Linear); err != nil {
		return nil, err
	}
	if rep.Accuracy, err = metrics.Accuracy(yTrue, pred); err != nil {
		return nil, err
	}
	if rep.Confusion, _, err = metrics.ConfusionMatrix(yTrue, pred, ClassLabels); err != nil {
		return nil, err
	}
	if rep.Classification, err = metrics.PrecisionRecallF1(yTrue, pred, ClassLabels); err != nil {
		return nil, err
	}

	truth := make([]float64, len(yTrue))
	for i, v := range yTrue {
		truth[i] = float64(v)
	}
	if rep.MAE, err = metrics.MAE(truth, scores); err != nil {
		return nil, err
	}
	if rep.RMSE, err = metrics.RMSE(truth, scores); err != nil {
		return nil, err
	}
	return rep, nil
}

// Coefficient は特徴量名と回帰係数の組
type Coefficient struct {
	Name  string
	Value float64
}

// RankCoefficients は係数を絶対値の降順に並べる
func RankCoefficients(names []string, values []float64) ([]Coefficient, error) {
	if len(names) != len(values) {
		return nil, errors.NewDimensionError("evaluation.RankCoefficients", len(names), len(values), 0)
	}
	out := make([]Coefficient, len(names))
	for i := range names {
		out[i] = Coefficient{Name: names[i], Value: values[i]}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return math.Abs(out[i].Value) > math.Abs(out[j].Value)
	})
	return out, nil
}
