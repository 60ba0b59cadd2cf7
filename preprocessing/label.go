package preprocessing

import (
	"fmt"
	"sort"

	"github.com/YuminosukeSato/bikedemand/core/model"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// LabelEncoder は文字列ラベルを 0..k-1 の整数コードに変換する
//
// クラスはソート済みの一意なラベルで、入力順に依存しないため同じラベル
// 集合からは常に同じコードが得られます。
type LabelEncoder struct {
	model.BaseEstimator

	// Classes はソート済みの一意なラベル
	Classes []string

	index map[string]int
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// Fit はラベルの一覧からクラスを学習する
func (e *LabelEncoder) Fit(labels []string) error {
	if len(labels) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	seen := make(map[string]struct{}, len(labels))
	classes := make([]string, 0)
	for _, l := range labels {
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		classes = append(classes, l)
	}
	sort.Strings(classes)

	e.Classes = classes
	e.index = make(map[string]int, len(classes))
	for i, c := range classes {
		e.index[c] = i
	}
	e.SetFitted()
	return nil
}

// Transform はラベルをコードに変換する。未知のラベルはエラー
func (e *LabelEncoder) Transform(labels []string) ([]int, error) {
	if err := e.RequireFitted("LabelEncoder", "Transform"); err != nil {
		return nil, err
	}
	out := make([]int, len(labels))
	for i, l := range labels {
		code, ok := e.index[l]
		if !ok {
			return nil, errors.NewValueError("LabelEncoder.Transform", fmt.Sprintf("unseen label %q", l))
		}
		out[i] = code
	}
	return out, nil
}

// FitTransform は学習と変換を同時に行う
func (e *LabelEncoder) FitTransform(labels []string) ([]int, error) {
	if err := e.Fit(labels); err != nil {
		return nil, err
	}
	return e.Transform(labels)
}

// InverseTransform はコードをラベルに戻す
func (e *LabelEncoder) InverseTransform(codes []int) ([]string, error) {
	if err := e.RequireFitted("LabelEncoder", "InverseTransform"); err != nil {
		return nil, err
	}
	out := make([]string, len(codes))
	for i, c := range codes {
		if c < 0 || c >= len(e.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", fmt.Sprintf("code %d out of range [0, %d)", c, len(e.Classes)))
		}
		out[i] = e.Classes[c]
	}
	return out, nil
}
