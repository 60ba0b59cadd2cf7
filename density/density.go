// Package density estimates station density per Tokyo special ward and
// bins it into an ordinal category.
package density

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

// NullCategory marks a station whose ward has no density entry.
const NullCategory = -1

var wardPattern = regexp.MustCompile(`東京都(.+?)区`)

// ExtractWard returns the ward name (without the trailing 区) from a Tokyo
// address. Addresses outside the special wards report ok=false.
func ExtractWard(address string) (ward string, ok bool) {
	if !strings.Contains(address, "東京都") || !strings.Contains(address, "区") {
		return "", false
	}
	m := wardPattern.FindStringSubmatch(address)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Bins returns the sorted, de-duplicated bin edges base ∪ {top}, where top is
// maxDensity if it exceeds the largest base edge and the largest base edge
// otherwise. There are always len(edges)-1 labels.
func Bins(maxDensity float64, base []float64) []float64 {
	edges := append([]float64(nil), base...)
	sort.Float64s(edges)
	if len(edges) == 0 {
		if math.IsNaN(maxDensity) {
			return nil
		}
		return []float64{maxDensity}
	}
	top := edges[len(edges)-1]
	if maxDensity > top {
		top = maxDensity
	}
	edges = append(edges, top)

	out := edges[:1]
	for _, e := range edges[1:] {
		if e != out[len(out)-1] {
			out = append(out, e)
		}
	}
	return out
}

// Cut assigns v to a right-closed bin over edges; the lowest bin also
// includes its left edge. Values outside the edges and NaN yield
// NullCategory.
func Cut(v float64, edges []float64) int {
	if math.IsNaN(v) || len(edges) < 2 {
		return NullCategory
	}
	if v == edges[0] {
		return 0
	}
	for i := 1; i < len(edges); i++ {
		if v > edges[i-1] && v <= edges[i] {
			return i - 1
		}
	}
	return NullCategory
}

// WardDensity is the aggregate for one ward.
type WardDensity struct {
	Ward     string
	Count    int
	Area     float64 // NaN when the ward is not in the area table
	Density  float64 // NaN when Area is NaN
	Category int
}

// Table is the result of Estimate.
type Table struct {
	Wards map[string]WardDensity
	Edges []float64
}

// Estimate counts stations per ward, joins the area table and bins the
// resulting density. Wards missing from areas keep a NaN density and
// NullCategory.
func Estimate(wards []string, areas map[string]float64, baseEdges []float64) Table {
	counts := make(map[string]int)
	for _, w := range wards {
		counts[w]++
	}

	t := Table{Wards: make(map[string]WardDensity, len(counts))}
	maxDensity := math.NaN()
	for w, n := range counts {
		wd := WardDensity{Ward: w, Count: n, Area: math.NaN(), Density: math.NaN(), Category: NullCategory}
		if area, ok := areas[w]; ok && area > 0 {
			wd.Area = area
			wd.Density = float64(n) / area
			if math.IsNaN(maxDensity) || wd.Density > maxDensity {
				maxDensity = wd.Density
			}
		}
		t.Wards[w] = wd
	}

	t.Edges = Bins(maxDensity, baseEdges)
	for w, wd := range t.Wards {
		wd.Category = Cut(wd.Density, t.Edges)
		t.Wards[w] = wd
	}
	return t
}

// Category returns the density category for ward, or NullCategory.
func (t Table) Category(ward string) int {
	if wd, ok := t.Wards[ward]; ok {
		return wd.Category
	}
	return NullCategory
}

// NumCategories is the number of labels produced by the edges.
func (t Table) NumCategories() int {
	if len(t.Edges) < 2 {
		return 0
	}
	return len(t.Edges) - 1
}
