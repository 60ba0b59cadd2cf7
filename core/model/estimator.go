package model

import "gonum.org/v1/gonum/mat"

// WeightedFitter は標本重み付きで学習可能なモデルのインターフェース
type WeightedFitter interface {
	// Fit はモデルを学習させる。sampleWeight が nil の場合は全標本を等しく扱う
	Fit(X mat.Matrix, y []float64, sampleWeight []float64) error
}

// Predictor は連続値の予測を行うモデルのインターフェース
type Predictor interface {
	// Predict は各行に対する連続スコアを返す
	Predict(X mat.Matrix) ([]float64, error)
}

// Regressor は需要クラスを連続スコアとして回帰するモデル。
// パイプラインからは特徴量→スコアのブラックボックスとして扱われる
type Regressor interface {
	WeightedFitter
	Predictor
}

// Transformer は学習済みの統計量で特徴量行列を変換するインターフェース
type Transformer interface {
	Fit(X mat.Matrix) error
	Transform(X mat.Matrix) (*mat.Dense, error)
}
