// Package station turns the raw static feed into one record per station
// with its ward, density category and facility type.
package station

import (
	"math"

	"github.com/YuminosukeSato/bikedemand/category"
	"github.com/YuminosukeSato/bikedemand/config"
	"github.com/YuminosukeSato/bikedemand/density"
	"github.com/YuminosukeSato/bikedemand/ingest"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
	"github.com/YuminosukeSato/bikedemand/preprocessing"
)

// Station is a preprocessed static station record.
type Station struct {
	ID                string
	Name              string
	Ward              string
	Capacity          float64 // NaN when the feed value is not numeric
	Lat               float64
	Lon               float64
	ParkingHoop       int
	IsChargingStation int
	StationCount      int     // stations in the same ward
	StationDensity    float64 // NaN when the ward has no area entry
	DensityCategory   int     // density.NullCategory when undefined
	FacilityLabel     string
	FacilityType      int
}

// Summary reports what Preprocess dropped or could not fill.
type Summary struct {
	Input           int
	OutsideWards    int
	Duplicates      int
	UnknownWards    int
	MissingCapacity int
	Density         density.Table
	FacilityClasses []string
}

// Preprocess keeps stations whose address lies in a Tokyo special ward,
// estimates ward density and encodes the facility type. The first record
// wins when a station id repeats.
func Preprocess(raw []ingest.RawStation, tables config.Tables) ([]Station, Summary, error) {
	sum := Summary{Input: len(raw)}
	classifier := category.NewFacilityClassifier(tables.FacilityCategories)

	seen := make(map[string]struct{}, len(raw))
	stations := make([]Station, 0, len(raw))
	for _, r := range raw {
		ward, ok := density.ExtractWard(r.Address)
		if !ok {
			sum.OutsideWards++
			continue
		}
		id := string(r.StationID)
		if _, dup := seen[id]; dup {
			sum.Duplicates++
			continue
		}
		seen[id] = struct{}{}

		s := Station{
			ID:                id,
			Name:              r.Name,
			Ward:              ward,
			Capacity:          r.VehicleCapacity.Float(),
			Lat:               r.Lat.Float(),
			Lon:               r.Lon.Float(),
			ParkingHoop:       int(r.ParkingHoop),
			IsChargingStation: int(r.IsChargingStation),
			FacilityLabel:     classifier.Classify(r.Name),
		}
		if math.IsNaN(s.Capacity) {
			sum.MissingCapacity++
		}
		stations = append(stations, s)
	}
	if len(stations) == 0 {
		return nil, sum, errors.Wrap(errors.ErrEmptyData, "no station inside the special wards")
	}

	wards := make([]string, len(stations))
	labels := make([]string, len(stations))
	for i, s := range stations {
		wards[i] = s.Ward
		labels[i] = s.FacilityLabel
	}

	sum.Density = density.Estimate(wards, tables.WardAreas, tables.DensityEdges)

	enc := preprocessing.NewLabelEncoder()
	codes, err := enc.FitTransform(labels)
	if err != nil {
		return nil, sum, err
	}
	sum.FacilityClasses = enc.Classes

	for i := range stations {
		wd := sum.Density.Wards[stations[i].Ward]
		stations[i].StationCount = wd.Count
		stations[i].StationDensity = wd.Density
		stations[i].DensityCategory = wd.Category
		stations[i].FacilityType = codes[i]
		if wd.Category == density.NullCategory {
			sum.UnknownWards++
		}
	}
	return stations, sum, nil
}
