package thresholds

import (
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// Objective は最小化する目的関数
type Objective func(x []float64) float64

// Result は局所探索の結果
type Result struct {
	// X は見つかった最良点
	X []float64
	// F は X における目的関数値
	F float64
	// Iterations はメジャーイテレーション数
	Iterations int
	// Evaluations は目的関数の評価回数
	Evaluations int
	// Converged は探索が上限に達する前に収束したかどうか
	Converged bool
}

// Strategy は微分を使わない局所探索のインターフェース
//
// 実装は未収束でもエラーを返さず、その時点の最良点を Result として返し
// ConvergenceWarning を発行します。エラーは探索自体が実行できなかった
// 場合にのみ返します。
type Strategy interface {
	Minimize(objective Objective, x0 []float64) (Result, error)
}

// NelderMead は gonum/optimize の単体法による Strategy
type NelderMead struct {
	// MaxIterations はメジャーイテレーションの上限（0 は無制限）
	MaxIterations int
	// MaxEvaluations は目的関数評価回数の上限（0 は無制限）
	MaxEvaluations int
	// SimplexSize は初期単体の大きさ（0 で gonum の既定値）
	SimplexSize float64
}

// Minimize implements Strategy.
func (s *NelderMead) Minimize(objective Objective, x0 []float64) (Result, error) {
	if objective == nil {
		return Result{}, errors.NewValueError("NelderMead.Minimize", "objective is nil")
	}
	if len(x0) == 0 {
		return Result{}, errors.NewValueError("NelderMead.Minimize", "initial point is empty")
	}
	if s.MaxIterations < 0 || s.MaxEvaluations < 0 {
		return Result{}, errors.NewValidationError("optimizer.max_iterations",
			"limits must be non-negative", [2]int{s.MaxIterations, s.MaxEvaluations})
	}

	problem := optimize.Problem{Func: func(x []float64) float64 { return objective(x) }}
	settings := &optimize.Settings{
		MajorIterations: s.MaxIterations,
		FuncEvaluations: s.MaxEvaluations,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-10,
			Iterations: 100,
		},
	}
	method := &optimize.NelderMead{SimplexSize: s.SimplexSize}

	res, err := optimize.Minimize(problem, append([]float64(nil), x0...), settings, method)
	if res == nil {
		return Result{}, errors.Wrap(err, "nelder-mead")
	}

	out := Result{
		X:           append([]float64(nil), res.Location.X...),
		F:           res.Location.F,
		Iterations:  res.Stats.MajorIterations,
		Evaluations: res.Stats.FuncEvaluations,
		Converged:   err == nil && !res.Status.Early(),
	}
	if !out.Converged {
		msg := res.Status.String()
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning("NelderMead", out.Iterations, msg))
	}
	return out, nil
}
