// Package merge joins static stations, inventory snapshots and weather
// observations into one row per (station, timestamp).
//
// Both joins are inner joins: a snapshot whose station is unknown, or whose
// (month, day, hour) has no weather observation, is dropped and counted in
// Stats. Drops are also reported as DataQualityWarning.
package merge

import (
	"github.com/YuminosukeSato/bikedemand/ingest"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
	"github.com/YuminosukeSato/bikedemand/station"
)

// Stage is the name used in warnings.
const Stage = "merge"

// Observation is one merged row.
type Observation struct {
	Station  station.Station
	Snapshot ingest.Snapshot
	Weather  ingest.Weather
}

// Stats describes the effect of the joins.
type Stats struct {
	Snapshots                int
	UnknownStation           int
	MissingWeather           int
	DuplicateWeather         int
	StationsWithoutSnapshots int
	Output                   int
}

// Dropped is the number of snapshots that did not survive both joins.
func (s Stats) Dropped() int { return s.UnknownStation + s.MissingWeather }

// Merge performs station ⋈ snapshot on station id, then ⋈ weather on
// (month, day, hour). When several weather rows share a key the first one is
// used. Output order follows the snapshot order.
func Merge(stations []station.Station, snapshots []ingest.Snapshot, weather []ingest.Weather) ([]Observation, Stats) {
	stats := Stats{Snapshots: len(snapshots)}

	byID := make(map[string]int, len(stations))
	for i, s := range stations {
		if _, ok := byID[s.ID]; !ok {
			byID[s.ID] = i
		}
	}

	byKey := make(map[[3]int]int, len(weather))
	for i, w := range weather {
		k := w.Key()
		if _, ok := byKey[k]; ok {
			stats.DuplicateWeather++
			continue
		}
		byKey[k] = i
	}

	used := make(map[string]struct{}, len(stations))
	out := make([]Observation, 0, len(snapshots))
	for _, snap := range snapshots {
		si, ok := byID[snap.StationID]
		if !ok {
			stats.UnknownStation++
			continue
		}
		used[snap.StationID] = struct{}{}

		wi, ok := byKey[[3]int{snap.Month, snap.Day, snap.Hour}]
		if !ok {
			stats.MissingWeather++
			continue
		}
		out = append(out, Observation{
			Station:  stations[si],
			Snapshot: snap,
			Weather:  weather[wi],
		})
	}
	stats.StationsWithoutSnapshots = len(byID) - len(used)
	stats.Output = len(out)

	if stats.UnknownStation > 0 {
		errors.Warn(errors.NewDataQualityWarning(Stage, "snapshot station not in static feed", stats.UnknownStation))
	}
	if stats.MissingWeather > 0 {
		errors.Warn(errors.NewDataQualityWarning(Stage, "no weather observation for snapshot hour", stats.MissingWeather))
	}
	if stats.DuplicateWeather > 0 {
		errors.Warn(errors.NewDataQualityWarning(Stage, "duplicate weather key ignored", stats.DuplicateWeather))
	}
	return out, stats
}
