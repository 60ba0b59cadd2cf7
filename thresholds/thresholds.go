// Package thresholds は連続スコアを 3 クラスへ割り当てる閾値を、
// 二次重み付きカッパ（QWK）を最大化するように探索します。
//
// 目的関数は量子化されていて滑らかではないため、探索は Strategy
// インターフェースの背後で微分なしの局所探索として行います。得られるのは
// 初期値から到達できる局所最適であり、大域最適は保証しません。
package thresholds

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/bikedemand/metrics"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// DefaultInitial は探索の初期閾値
var DefaultInitial = []float64{0.5, 1.5}

// Digitize は昇順の cuts でスコアを区間番号へ割り当てる
//
// score < cuts[0] → 0、cuts[i-1] ≤ score < cuts[i] → i、
// score ≥ cuts[len-1] → len(cuts)。cuts は呼び出し側で昇順にしておくこと。
// NaN はどの閾値より小さくもないため最上位の区間に入ります。
func Digitize(scores, cuts []float64) []int {
	out := make([]int, len(scores))
	for i, s := range scores {
		// 最初に s < cut となる位置
		out[i] = sort.Search(len(cuts), func(k int) bool { return s < cuts[k] })
	}
	return out
}

func sortedCopy(x []float64) []float64 {
	c := append([]float64(nil), x...)
	sort.Float64s(c)
	return c
}

// QWK は cuts で離散化したスコアと yTrue の二次重み付きカッパを返す
func QWK(yTrue []int, scores, cuts []float64) (float64, error) {
	return metrics.CohenKappa(yTrue, Digitize(scores, sortedCopy(cuts)), metrics.Quadratic)
}

// NewObjective は -QWK を返す目的関数を作る
//
// 探索中の点は順序が入れ替わることがあるため、評価の前に昇順へ並べ替えます。
// カッパが定義できない点は 0 として扱います。
func NewObjective(yTrue []int, scores []float64) Objective {
	return func(cuts []float64) float64 {
		k, err := QWK(yTrue, scores, cuts)
		if err != nil || math.IsNaN(k) {
			return 0
		}
		return -k
	}
}

// Fit は Optimize の結果
type Fit struct {
	// Cuts は昇順の閾値
	Cuts []float64
	// QWK は Cuts で達成した二次重み付きカッパ
	QWK float64
	// Initial は初期閾値での QWK
	Initial float64
	Search  Result
}

// Optimize は QWK を最大化する閾値を探索する
//
// strategy が nil の場合は既定の NelderMead を、initial が nil の場合は
// DefaultInitial を使います。yTrue には 2 種類以上のラベルが必要です。
func Optimize(yTrue []int, scores []float64, strategy Strategy, initial []float64) (*Fit, error) {
	if len(yTrue) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "optimize thresholds")
	}
	if len(scores) != len(yTrue) {
		return nil, errors.NewDimensionError("thresholds.Optimize", len(yTrue), len(scores), 0)
	}
	if len(metrics.UniqueLabels(yTrue, nil)) < 2 {
		return nil, errors.NewValueError("thresholds.Optimize", "need at least two distinct labels")
	}
	for _, s := range scores {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return nil, errors.NewNumericalInstabilityError("thresholds.Optimize", []float64{s})
		}
	}
	if strategy == nil {
		strategy = &NelderMead{}
	}
	if initial == nil {
		initial = DefaultInitial
	}

	start, err := QWK(yTrue, scores, initial)
	if err != nil {
		return nil, err
	}

	res, err := strategy.Minimize(NewObjective(yTrue, scores), initial)
	if err != nil {
		return nil, errors.Wrap(err, "optimize thresholds")
	}

	best := res.X
	if len(best) != len(initial) || math.IsInf(res.F, 0) || math.IsNaN(res.F) {
		best = initial
	}
	cuts := sortedCopy(best)
	qwk, err := QWK(yTrue, scores, cuts)
	if err != nil {
		return nil, err
	}

	// 初期値より悪化した場合は初期値を採用する
	if qwk < start {
		cuts, qwk = sortedCopy(initial), start
	}
	return &Fit{Cuts: cuts, QWK: qwk, Initial: start, Search: res}, nil
}

// Predict は学習済みの閾値でスコアをクラスへ割り当てる
func (f *Fit) Predict(scores []float64) []int {
	return Digitize(scores, f.Cuts)
}
