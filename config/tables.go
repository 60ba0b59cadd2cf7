package config

import (
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// CalmWindDegrees is the degree value assigned to calm observations.
const CalmWindDegrees = 999.0

// FacilityCategory is one ordered entry of the facility keyword table.
type FacilityCategory struct {
	Label    string   `yaml:"label"`
	Keywords []string `yaml:"keywords"`
}

// Tables groups the fixed lookup tables consumed by category, density and
// ingest. They are plain values; components copy what they need.
type Tables struct {
	WardAreas          map[string]float64 `yaml:"ward_areas"`
	FacilityCategories []FacilityCategory `yaml:"facility_categories"`
	WindDirections     map[string]float64 `yaml:"wind_directions"`
	DensityEdges       []float64          `yaml:"density_edges"`
}

// DefaultTables returns the 23 special wards of Tokyo with their areas in
// km², the facility keyword table, the 16-point compass table and the base
// density edges.
func DefaultTables() Tables {
	return Tables{
		WardAreas: map[string]float64{
			"千代田": 11.66, "中央": 10.09, "港": 20.37, "新宿": 18.22,
			"文京": 11.29, "台東": 10.11, "墨田": 27.77, "江東": 40.16,
			"品川": 22.84, "目黒": 14.67, "大田": 60.66, "世田谷": 58.25,
			"渋谷": 15.11, "中野": 15.59, "杉並": 34.02, "豊島": 13.01,
			"北": 20.59, "荒川": 10.20, "板橋": 32.22, "練馬": 48.07,
			"足立": 53.25, "葛飾": 34.80, "江戸川": 49.90,
		},
		FacilityCategories: []FacilityCategory{
			{Label: "station", Keywords: []string{"駅", "出口", "東口", "西口", "北口", "南口", "改札"}},
			{Label: "convenience", Keywords: []string{"セブンイレブン", "ファミリーマート", "ローソン", "ミニストップ"}},
			{Label: "supermarket", Keywords: []string{"イオン", "マルエツ", "スーパー", "西友", "ライフ", "店"}},
			{Label: "residential", Keywords: []string{"マンション", "団地", "レジデンス", "ハイツ", "アパート"}},
			{Label: "public", Keywords: []string{"区役所", "図書館", "体育館", "ホール", "市場", "保健"}},
			{Label: "school", Keywords: []string{"大学", "高校", "中学校", "小学校", "学園", "幼稚園"}},
			{Label: "park_tourism", Keywords: []string{"公園", "東京タワー", "スカイツリー", "観光", "博物館", "美術館", "ホテル"}},
			{Label: "office", Keywords: []string{"ビル", "オフィス", "会社", "社"}},
		},
		WindDirections: map[string]float64{
			"北": 0, "北北東": 22.5, "北東": 45, "東北東": 67.5,
			"東": 90, "東南東": 112.5, "南東": 135, "南南東": 157.5,
			"南": 180, "南南西": 202.5, "南西": 225, "西南西": 247.5,
			"西": 270, "西北西": 292.5, "北西": 315, "北北西": 337.5,
			"静穏": CalmWindDegrees,
		},
		DensityEdges: []float64{0, 2.0, 4.0},
	}
}

// Validate rejects tables that would make a component silently useless.
func (t Tables) Validate() error {
	if len(t.WardAreas) == 0 {
		return errors.NewValidationError("tables.ward_areas", "must not be empty", len(t.WardAreas))
	}
	for ward, area := range t.WardAreas {
		if !(area > 0) {
			return errors.NewValidationError("tables.ward_areas", "area must be positive for ward "+ward, area)
		}
	}
	if len(t.FacilityCategories) == 0 {
		return errors.NewValidationError("tables.facility_categories", "must not be empty", 0)
	}
	for _, c := range t.FacilityCategories {
		if c.Label == "" {
			return errors.NewValidationError("tables.facility_categories", "label must not be empty", c.Keywords)
		}
	}
	if len(t.WindDirections) == 0 {
		return errors.NewValidationError("tables.wind_directions", "must not be empty", 0)
	}
	if len(t.DensityEdges) == 0 {
		return errors.NewValidationError("tables.density_edges", "must not be empty", 0)
	}
	return nil
}
