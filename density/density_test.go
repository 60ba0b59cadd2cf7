package density

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractWard(t *testing.T) {
	tests := []struct {
		address string
		ward    string
		ok      bool
	}{
		{"東京都千代田区丸の内1-1", "千代田", true},
		{"東京都江戸川区西葛西", "江戸川", true},
		{"東京都港区芝公園4丁目", "港", true},
		// shortest match
		{"東京都北区王子区", "北", true},
		{"東京都武蔵野市吉祥寺", "", false},
		{"神奈川県横浜市中区", "", false},
		{"千代田区丸の内 東京都", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			ward, ok := ExtractWard(tt.address)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.ward, ward)
		})
	}
}

func TestBins(t *testing.T) {
	base := []float64{0, 2, 4}

	tests := []struct {
		name       string
		maxDensity float64
		want       []float64
	}{
		{"open top", 7.5, []float64{0, 2, 4, 7.5}},
		{"max equals top edge", 4, []float64{0, 2, 4}},
		{"max below top edge", 1.2, []float64{0, 2, 4}},
		{"no densities", math.NaN(), []float64{0, 2, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Bins(tt.maxDensity, base))
		})
	}

	// duplicates in the base are dropped too
	assert.Equal(t, []float64{0, 2, 5}, Bins(5, []float64{2, 0, 2}))
}

func TestCut(t *testing.T) {
	edges := []float64{0, 2, 4, 7.5}

	tests := []struct {
		v    float64
		want int
	}{
		{0, 0}, // include_lowest
		{1, 0},
		{2, 0}, // right-closed
		{2.01, 1},
		{4, 1},
		{7.5, 2},
		{7.6, NullCategory},
		{-1, NullCategory},
		{math.NaN(), NullCategory},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Cut(tt.v, edges), "Cut(%v)", tt.v)
	}
	assert.Equal(t, NullCategory, Cut(1, []float64{0}))
}

func TestEstimate(t *testing.T) {
	areas := map[string]float64{"a": 1, "b": 1, "c": 10}
	// a and b tie at the maximum density 5; c is 0.1
	var wards []string
	for i := 0; i < 5; i++ {
		wards = append(wards, "a", "b")
	}
	wards = append(wards, "c", "unknown")

	table := Estimate(wards, areas, []float64{0, 2, 4})

	assert.Equal(t, []float64{0, 2, 4, 5}, table.Edges)
	assert.Equal(t, 3, table.NumCategories())

	a := table.Wards["a"]
	assert.Equal(t, 5, a.Count)
	assert.InDelta(t, 5, a.Density, 1e-12)
	assert.Equal(t, 2, a.Category)
	assert.Equal(t, 2, table.Category("b"))
	assert.Equal(t, 0, table.Category("c"))

	u := table.Wards["unknown"]
	assert.Equal(t, 1, u.Count)
	assert.True(t, math.IsNaN(u.Density))
	assert.Equal(t, NullCategory, u.Category)
	assert.Equal(t, NullCategory, table.Category("missing"))
}

func TestEstimateDegenerateTopEdge(t *testing.T) {
	// maximum density lands exactly on the top base edge
	table := Estimate([]string{"a", "a", "a", "a", "b"}, map[string]float64{"a": 1, "b": 1}, []float64{0, 2, 4})
	assert.Equal(t, []float64{0, 2, 4}, table.Edges)
	assert.Equal(t, 2, table.NumCategories())
	assert.Equal(t, 1, table.Category("a"))
	assert.Equal(t, 0, table.Category("b"))
}
