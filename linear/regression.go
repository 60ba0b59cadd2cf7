package linear

import (
	"io"
	"math"

	jsoniter "github.com/json-iterator/go"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikedemand/core/model"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Ridge は標本重み付きの L2 正則化線形回帰モデル
//
// 切片は正則化しません。需要クラス (0, 1, 2) を連続スコアとして回帰する
// ベースラインとして使い、スコアは thresholds パッケージで離散化します。
type Ridge struct {
	model.BaseEstimator

	Alpha        float64       // L2 正則化の強さ
	Weights      *mat.VecDense // 重み（係数）
	Intercept    float64       // 切片
	NFeatures    int           // 特徴量の数
	FeatureNames []string

	fitIntercept bool
}

var _ model.Regressor = (*Ridge)(nil)

// NewRidge は新しい Ridge モデルを作成する
func NewRidge(opts ...Option) *Ridge {
	r := &Ridge{Alpha: 1.0, fitIntercept: true}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fit はモデルを訓練データで学習させる
//
// 重み付き平均で中心化したうえで (XᵀWX + αI)β = XᵀWy を解き、
// 切片を ȳ - x̄ᵀβ として復元します。sampleWeight が nil の場合は全標本を
// 重み 1 として扱います。
func (r *Ridge) Fit(X mat.Matrix, y []float64, sampleWeight []float64) error {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError("Ridge.Fit", "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return errors.NewDimensionError("Ridge.Fit", n, len(y), 0)
	}
	if r.Alpha < 0 || math.IsNaN(r.Alpha) {
		return errors.NewValidationError("alpha", "must be non-negative", r.Alpha)
	}
	if r.FeatureNames != nil && len(r.FeatureNames) != p {
		return errors.NewDimensionError("Ridge.Fit", len(r.FeatureNames), p, 1)
	}

	w := sampleWeight
	if w == nil {
		w = make([]float64, n)
		floats.AddConst(1, w)
	}
	if len(w) != n {
		return errors.NewDimensionError("Ridge.Fit", n, len(w), 0)
	}
	sumW := floats.Sum(w)
	if sumW <= 0 || floats.Min(w) < 0 {
		return errors.NewValueError("Ridge.Fit", "sample weights must be non-negative with a positive sum")
	}
	if err := errors.CheckNumericalStability("Ridge.Fit", y); err != nil {
		return err
	}

	// 重み付き平均
	xMean := make([]float64, p)
	var yMean float64
	if r.fitIntercept {
		for i := 0; i < n; i++ {
			for j := 0; j < p; j++ {
				xMean[j] += w[i] * X.At(i, j)
			}
			yMean += w[i] * y[i]
		}
		floats.Scale(1/sumW, xMean)
		yMean /= sumW
	}

	// √w で行をスケールした中心化行列
	xw := mat.NewDense(n, p, nil)
	yw := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		sw := math.Sqrt(w[i])
		for j := 0; j < p; j++ {
			v := X.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return errors.NewNumericalInstabilityError("Ridge.Fit", []float64{v})
			}
			xw.Set(i, j, sw*(v-xMean[j]))
		}
		yw.SetVec(i, sw*(y[i]-yMean))
	}

	// XᵀWX + αI
	var gram mat.SymDense
	gram.SymOuterK(1, xw.T())
	for j := 0; j < p; j++ {
		gram.SetSym(j, j, gram.At(j, j)+r.Alpha)
	}

	var xty mat.VecDense
	xty.MulVec(xw.T(), yw)

	beta := mat.NewVecDense(p, nil)
	var chol mat.Cholesky
	if ok := chol.Factorize(&gram); ok {
		if err := chol.SolveVecTo(beta, &xty); err != nil {
			return errors.NewModelError("Ridge.Fit", "ill-conditioned system", errors.ErrSingularMatrix)
		}
	} else if err := beta.SolveVec(&gram, &xty); err != nil {
		return errors.NewModelError("Ridge.Fit", "singular matrix", errors.ErrSingularMatrix)
	}

	r.NFeatures = p
	r.Weights = beta
	r.Intercept = 0
	if r.fitIntercept {
		r.Intercept = yMean - mat.Dot(mat.NewVecDense(p, xMean), beta)
	}

	// モデルを学習済み状態に設定
	r.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (r *Ridge) Predict(X mat.Matrix) ([]float64, error) {
	if err := r.RequireFitted("Ridge", "Predict"); err != nil {
		return nil, err
	}
	n, p := X.Dims()
	if p != r.NFeatures {
		return nil, errors.NewDimensionError("Ridge.Predict", r.NFeatures, p, 1)
	}

	// 予測: y = X * weights + intercept
	var out mat.VecDense
	out.MulVec(X, r.Weights)
	pred := make([]float64, n)
	for i := range pred {
		pred[i] = out.AtVec(i) + r.Intercept
	}
	return pred, nil
}

// Coefficients は学習された重み（係数）を返す
func (r *Ridge) Coefficients() []float64 {
	if r.Weights == nil {
		return nil
	}
	return mat.Col(nil, 0, r.Weights)
}

// modelCard は Ridge の JSON 表現
type modelCard struct {
	Model        string    `json:"model"`
	Alpha        float64   `json:"alpha"`
	Intercept    float64   `json:"intercept"`
	Coefficients []float64 `json:"coefficients"`
	FeatureNames []string  `json:"feature_names,omitempty"`
}

// WriteJSON は学習済みモデルを JSON で書き出す
func (r *Ridge) WriteJSON(w io.Writer) error {
	if err := r.RequireFitted("Ridge", "WriteJSON"); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(modelCard{
		Model:        "Ridge",
		Alpha:        r.Alpha,
		Intercept:    r.Intercept,
		Coefficients: r.Coefficients(),
		FeatureNames: r.FeatureNames,
	}), "encode ridge model")
}

// ReadJSON は WriteJSON の出力からモデルを復元する
func ReadJSON(rd io.Reader) (*Ridge, error) {
	var card modelCard
	if err := json.NewDecoder(rd).Decode(&card); err != nil {
		return nil, errors.NewParseError("ridge model", 0, 0, err)
	}
	if card.Model != "Ridge" {
		return nil, errors.NewValueError("linear.ReadJSON", "unexpected model "+card.Model)
	}
	if len(card.Coefficients) == 0 {
		return nil, errors.NewValueError("linear.ReadJSON", "no coefficients")
	}
	if card.FeatureNames != nil && len(card.FeatureNames) != len(card.Coefficients) {
		return nil, errors.NewDimensionError("linear.ReadJSON", len(card.Coefficients), len(card.FeatureNames), 0)
	}
	r := NewRidge(WithAlpha(card.Alpha), WithFeatureNames(card.FeatureNames))
	r.Intercept = card.Intercept
	r.NFeatures = len(card.Coefficients)
	r.Weights = mat.NewVecDense(r.NFeatures, append([]float64(nil), card.Coefficients...))
	r.SetFitted()
	return r, nil
}
