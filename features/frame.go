package features

import (
	"io"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// column binds a raw column name to its numeric accessor.
type column struct {
	name  string
	value func(r *Row) float64
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Column names before normalization. station_id is rendered as text; every
// other column is numeric.
var columns = []column{
	{"station_id", nil},
	{"month", func(r *Row) float64 { return float64(r.Snapshot.Month) }},
	{"date", func(r *Row) float64 { return float64(r.Snapshot.Day) }},
	{"hours", func(r *Row) float64 { return float64(r.Snapshot.Hour) }},
	{"num_bikes_available", func(r *Row) float64 { return r.Snapshot.BikesAvailable }},
	{"num_docks_available", func(r *Row) float64 { return r.Snapshot.DocksAvailable }},
	{"is_renting", func(r *Row) float64 { return float64(r.Snapshot.IsRenting) }},
	{"is_installed", func(r *Row) float64 { return float64(r.Snapshot.IsInstalled) }},
	{"is_returning", func(r *Row) float64 { return float64(r.Snapshot.IsReturning) }},
	{"vehicle_capacity", func(r *Row) float64 { return r.Station.Capacity }},
	{"lat", func(r *Row) float64 { return r.Station.Lat }},
	{"lon", func(r *Row) float64 { return r.Station.Lon }},
	{"parking_hoop", func(r *Row) float64 { return float64(r.Station.ParkingHoop) }},
	{"is_charging_station", func(r *Row) float64 { return float64(r.Station.IsChargingStation) }},
	{"station_count", func(r *Row) float64 { return float64(r.Station.StationCount) }},
	{"station_density", func(r *Row) float64 { return r.Station.StationDensity }},
	{"density_category", func(r *Row) float64 { return nullOrdinal(r.Station.DensityCategory) }},
	{"facility_type", func(r *Row) float64 { return float64(r.Station.FacilityType) }},
	{"Precipitation(mm)", func(r *Row) float64 { return r.Weather.PrecipitationMM }},
	{"Temperature(℃)", func(r *Row) float64 { return r.Weather.TemperatureC }},
	{"Wind_Speed(m/s)", func(r *Row) float64 { return r.Weather.WindSpeedMS }},
	{"Wind_Direction", func(r *Row) float64 { return r.Weather.WindDirection }},
	{"Weather", func(r *Row) float64 { return float64(r.Weather.Code) }},
	{"bike_ratio", func(r *Row) float64 { return r.BikeRatio }},
	{"dock_ratio", func(r *Row) float64 { return r.DockRatio }},
	{"is_empty", func(r *Row) float64 { return b2f(r.IsEmpty) }},
	{"is_full", func(r *Row) float64 { return b2f(r.IsFull) }},
	{"day_of_week", func(r *Row) float64 { return float64(r.DayOfWeek) }},
	{"delta", func(r *Row) float64 { return r.Delta }},
	{"rental", func(r *Row) float64 { return r.Rental }},
	{"return", func(r *Row) float64 { return r.Return }},
	{"net_demand", func(r *Row) float64 { return r.NetDemand }},
	{"theta", func(r *Row) float64 { return r.Theta }},
	{"y_class", func(r *Row) float64 { return nullOrdinal(int(r.Class)) }},
}

func nullOrdinal(v int) float64 {
	if v < 0 {
		return math.NaN()
	}
	return float64(v)
}

func rawColumnNames() []string {
	out := make([]string, len(columns))
	for i, c := range columns {
		out[i] = c.name
	}
	return out
}

// LeakageColumns are derived from the label and must not reach the model.
var LeakageColumns = []string{"y_class", "net_demand", "theta", "delta", "rental", "return", "station_id"}

// Frame is the output of Engine.Transform. Columns are normalized names in
// the same order as the accessors above.
type Frame struct {
	Columns []string
	Rows    []Row
}

// Summary counts rows per class and per flag.
type Summary struct {
	Rows      int
	Labeled   int
	Unlabeled int
	Classes   map[Class]int
	Flags     map[Flag]int
}

// Summary tallies the frame.
func (f *Frame) Summary() Summary {
	s := Summary{
		Rows:    len(f.Rows),
		Classes: make(map[Class]int, 4),
		Flags:   make(map[Flag]int, len(flagNames)),
	}
	for i := range f.Rows {
		r := &f.Rows[i]
		s.Classes[r.Class]++
		if r.Class.Labeled() {
			s.Labeled++
		} else {
			s.Unlabeled++
		}
		for _, fn := range flagNames {
			if r.Flags.Has(fn.f) {
				s.Flags[fn.f]++
			}
		}
	}
	return s
}

// Dataset is the model-facing view of a frame: labeled rows only.
type Dataset struct {
	X     *mat.Dense
	Y     []Class
	Names []string
	// Rows maps dataset rows back to Frame.Rows indices.
	Rows []int
}

// Targets returns Y as float64 for regressors.
func (d *Dataset) Targets() []float64 {
	out := make([]float64, len(d.Y))
	for i, c := range d.Y {
		out[i] = float64(c)
	}
	return out
}

// Dataset builds the feature matrix from labeled rows, dropping the columns
// named in exclude (normalized names). Missing values stay NaN.
func (f *Frame) Dataset(exclude []string) (*Dataset, error) {
	drop := make(map[string]struct{}, len(exclude))
	for _, n := range NormalizeColumns(exclude) {
		drop[n] = struct{}{}
	}

	var keep []int
	var names []string
	for j, name := range f.Columns {
		if _, ok := drop[name]; ok || columns[j].value == nil {
			continue
		}
		keep = append(keep, j)
		names = append(names, name)
	}
	if len(keep) == 0 {
		return nil, errors.NewValueError("Frame.Dataset", "every column was excluded")
	}

	var idx []int
	for i := range f.Rows {
		if f.Rows[i].Class.Labeled() {
			idx = append(idx, i)
		}
	}
	if len(idx) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "no labeled rows")
	}

	X := mat.NewDense(len(idx), len(keep), nil)
	y := make([]Class, len(idx))
	for i, ri := range idx {
		r := &f.Rows[ri]
		for k, j := range keep {
			X.Set(i, k, columns[j].value(r))
		}
		y[i] = r.Class
	}
	return &Dataset{X: X, Y: y, Names: names, Rows: idx}, nil
}

// DataFrame renders every row and column as a gota DataFrame. station_id is
// a string series, flags are rendered by name, numbers are floats.
func (f *Frame) DataFrame() dataframe.DataFrame {
	cols := make([]series.Series, 0, len(f.Columns)+1)
	for j, name := range f.Columns {
		if columns[j].value == nil {
			ids := make([]string, len(f.Rows))
			for i := range f.Rows {
				ids[i] = f.Rows[i].Station.ID
			}
			cols = append(cols, series.New(ids, series.String, name))
			continue
		}
		vals := make([]float64, len(f.Rows))
		for i := range f.Rows {
			vals[i] = columns[j].value(&f.Rows[i])
		}
		cols = append(cols, series.Floats(vals))
		cols[len(cols)-1].Name = name
	}
	flags := make([]string, len(f.Rows))
	for i := range f.Rows {
		flags[i] = f.Rows[i].Flags.String()
	}
	cols = append(cols, series.New(flags, series.String, "flags"))
	return dataframe.New(cols...)
}

// WriteCSV writes the full frame, header included.
func (f *Frame) WriteCSV(w io.Writer) error {
	if len(f.Rows) == 0 {
		return errors.Wrap(errors.ErrEmptyData, "write features")
	}
	df := f.DataFrame()
	if df.Err != nil {
		return errors.Wrap(df.Err, "build feature frame")
	}
	return errors.Wrap(df.WriteCSV(w), "write features")
}

// ColumnIndex returns the position of a normalized column name, or -1.
func (f *Frame) ColumnIndex(name string) int {
	for i, c := range f.Columns {
		if c == name {
			return i
		}
	}
	return -1
}
