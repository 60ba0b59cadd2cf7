// Package features derives ratios, calendar fields, per-station inventory
// deltas, net demand and the three-way demand class from merged
// observations.
//
// 入力データの年は上流で失われているため、タイムスタンプは固定の年
// (Engine.Year) と month/day/hour から合成します。曜日もこの合成日付から
// 計算されるため、実際の年と異なる場合は曜日がずれる点に注意してください。
package features

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/YuminosukeSato/bikedemand/config"
	"github.com/YuminosukeSato/bikedemand/merge"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// Class is the demand imbalance label.
type Class int

const (
	// Unlabeled marks a row whose net demand or theta is undefined.
	Unlabeled Class = -1
	// Undersupply: rentals exceed returns by at least theta.
	Undersupply Class = 0
	// Balanced: |net demand| below theta.
	Balanced Class = 1
	// Oversupply: returns exceed rentals by at least theta.
	Oversupply Class = 2
)

// String implements fmt.Stringer.
func (c Class) String() string {
	switch c {
	case Undersupply:
		return "undersupply"
	case Balanced:
		return "balanced"
	case Oversupply:
		return "oversupply"
	}
	return "unlabeled"
}

// Labeled reports whether c is one of the three classes.
func (c Class) Labeled() bool { return c >= Undersupply && c <= Oversupply }

// Flag records why a row carries null derived fields. Flags combine.
type Flag uint8

const (
	FlagNone Flag = 0
	// FlagFirstInStation: first observation of its station, delta is null.
	FlagFirstInStation Flag = 1 << (iota - 1)
	// FlagMissingCapacity: capacity is not numeric, theta is null.
	FlagMissingCapacity
	// FlagNoRatio: bikes+docks is zero or unknown, ratios are null.
	FlagNoRatio
	// FlagMissingInventory: bikes available is unknown, delta is null.
	FlagMissingInventory
)

var flagNames = []struct {
	f    Flag
	name string
}{
	{FlagFirstInStation, "first_in_station"},
	{FlagMissingCapacity, "missing_capacity"},
	{FlagNoRatio, "no_ratio"},
	{FlagMissingInventory, "missing_inventory"},
}

// Has reports whether all bits of g are set.
func (f Flag) Has(g Flag) bool { return f&g == g && g != FlagNone }

// String joins the set flag names with '|'.
func (f Flag) String() string {
	if f == FlagNone {
		return "none"
	}
	var parts []string
	for _, fn := range flagNames {
		if f.Has(fn.f) {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "|")
}

// Row is a merged observation with its derived fields. Null values are NaN.
type Row struct {
	merge.Observation

	Timestamp time.Time
	BikeRatio float64
	DockRatio float64
	IsEmpty   bool
	IsFull    bool
	DayOfWeek int // Monday=0 .. Sunday=6

	Delta     float64
	Rental    float64
	Return    float64
	NetDemand float64
	Theta     float64
	Class     Class
	Flags     Flag
}

// Categorize maps net demand onto a class given theta. Both thresholds are
// inclusive toward the extreme classes. A NaN input yields Unlabeled.
func Categorize(netDemand, theta float64) Class {
	if math.IsNaN(netDemand) || math.IsNaN(theta) {
		return Unlabeled
	}
	switch {
	case netDemand <= -theta:
		return Oversupply
	case netDemand >= theta:
		return Undersupply
	default:
		return Balanced
	}
}

// Engine is the feature and label transform.
type Engine struct {
	// Year is the fixed calendar year of the synthetic timestamps. The
	// inputs carry only month/day/hour, so day_of_week (and the month, date
	// and hours features next to it) are correct only when Year matches the
	// year the data was collected in.
	Year int
	// ThetaRatio scales station capacity into the imbalance threshold.
	ThetaRatio float64
}

// NewEngine builds an engine from the feature settings.
func NewEngine(cfg config.FeatureSettings) *Engine {
	return &Engine{Year: cfg.Year, ThetaRatio: cfg.ThetaRatio}
}

// Transform derives every feature in one pass over obs. The input is not
// modified; rows are returned sorted by (station id, timestamp,
// last_reported), so snapshots sharing an hour are differenced in reporting
// order whatever order the input had.
func (e *Engine) Transform(obs []merge.Observation) (*Frame, error) {
	if e.ThetaRatio <= 0 {
		return nil, errors.NewValidationError("theta_ratio", "must be positive", e.ThetaRatio)
	}

	rows := make([]Row, len(obs))
	for i, o := range obs {
		rows[i] = e.base(o)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		return rowLess(&rows[i], &rows[j])
	})
	if err := checkSorted(rows); err != nil {
		return nil, err
	}

	e.difference(rows)

	for i := range rows {
		r := &rows[i]
		r.Rental, r.Return = split(r.Delta)
		r.NetDemand = r.Rental - r.Return
		r.Theta = r.Station.Capacity * e.ThetaRatio
		if math.IsNaN(r.Theta) {
			r.Flags |= FlagMissingCapacity
		}
		r.Class = Categorize(r.NetDemand, r.Theta)
	}

	return &Frame{Columns: NormalizeColumns(rawColumnNames()), Rows: rows}, nil
}

// base computes the row-local fields: ratios, boundary flags and calendar.
func (e *Engine) base(o merge.Observation) Row {
	r := Row{Observation: o, Class: Unlabeled}

	bikes, docks := o.Snapshot.BikesAvailable, o.Snapshot.DocksAvailable
	total := bikes + docks
	if total > 0 {
		r.BikeRatio = bikes / total
		r.DockRatio = docks / total
	} else {
		r.BikeRatio, r.DockRatio = math.NaN(), math.NaN()
		r.Flags |= FlagNoRatio
	}
	r.IsEmpty = bikes == 0
	r.IsFull = docks == 0

	r.Timestamp = time.Date(e.Year, time.Month(o.Snapshot.Month), o.Snapshot.Day, o.Snapshot.Hour, 0, 0, 0, time.UTC)
	r.DayOfWeek = (int(r.Timestamp.Weekday()) + 6) % 7
	return r
}

// difference fills Delta with the per-station first difference of bikes
// available. rows must already be sorted.
func (e *Engine) difference(rows []Row) {
	for i := range rows {
		r := &rows[i]
		if i == 0 || rows[i-1].Station.ID != r.Station.ID {
			r.Delta = math.NaN()
			r.Flags |= FlagFirstInStation
			continue
		}
		prev, cur := rows[i-1].Snapshot.BikesAvailable, r.Snapshot.BikesAvailable
		if math.IsNaN(prev) || math.IsNaN(cur) {
			r.Delta = math.NaN()
			r.Flags |= FlagMissingInventory
			continue
		}
		r.Delta = cur - prev
	}
}

// split turns a delta into (rental, return); NaN propagates to both.
func split(delta float64) (rental, ret float64) {
	if math.IsNaN(delta) {
		return math.NaN(), math.NaN()
	}
	return math.Max(-delta, 0), math.Max(delta, 0)
}

func rowLess(a, b *Row) bool {
	if a.Station.ID != b.Station.ID {
		return a.Station.ID < b.Station.ID
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Snapshot.LastReported < b.Snapshot.LastReported
}

func checkSorted(rows []Row) error {
	for i := 1; i < len(rows); i++ {
		if rowLess(&rows[i], &rows[i-1]) {
			return errors.Wrapf(errors.ErrUnsortedInput, "row %d precedes row %d", i, i-1)
		}
	}
	return nil
}
