// Package category maps free-text facility names and compass wind
// directions onto categorical values, and fills in missing weather codes.
//
// 全てのルックアップテーブルは呼び出し側から渡されます。パッケージ内に
// 可変なグローバル状態は持ちません。
package category

import (
	"math"
	"strings"

	"github.com/YuminosukeSato/bikedemand/config"
)

// Other is the facility label returned when no keyword matches.
const Other = "other"

// FacilityClassifier assigns a facility label by keyword containment.
type FacilityClassifier struct {
	categories []config.FacilityCategory
}

// NewFacilityClassifier copies the ordered category table.
func NewFacilityClassifier(categories []config.FacilityCategory) *FacilityClassifier {
	cp := make([]config.FacilityCategory, len(categories))
	for i, c := range categories {
		cp[i] = config.FacilityCategory{
			Label:    c.Label,
			Keywords: append([]string(nil), c.Keywords...),
		}
	}
	return &FacilityClassifier{categories: cp}
}

// Classify returns the first category, in table order, that has any keyword
// contained in name. Category order wins over keyword specificity.
func (c *FacilityClassifier) Classify(name string) string {
	for _, cat := range c.categories {
		for _, kw := range cat.Keywords {
			if kw != "" && strings.Contains(name, kw) {
				return cat.Label
			}
		}
	}
	return Other
}

// Labels returns every label Classify can produce, in table order followed by
// Other.
func (c *FacilityClassifier) Labels() []string {
	out := make([]string, 0, len(c.categories)+1)
	for _, cat := range c.categories {
		out = append(out, cat.Label)
	}
	return append(out, Other)
}

// WindDirections converts compass strings into degrees.
type WindDirections struct {
	degrees map[string]float64
}

// NewWindDirections copies table.
func NewWindDirections(table map[string]float64) *WindDirections {
	cp := make(map[string]float64, len(table))
	for k, v := range table {
		cp[k] = v
	}
	return &WindDirections{degrees: cp}
}

// Degrees looks up dir exactly after trimming surrounding whitespace.
// Unknown or empty directions yield NaN.
func (w *WindDirections) Degrees(dir string) float64 {
	if v, ok := w.degrees[strings.TrimSpace(dir)]; ok {
		return v
	}
	return math.NaN()
}
