package features

import (
	"bytes"
	"math"
	"strings"
	"testing"

	"github.com/go-gota/gota/dataframe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikedemand/config"
	"github.com/YuminosukeSato/bikedemand/ingest"
	"github.com/YuminosukeSato/bikedemand/merge"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
	"github.com/YuminosukeSato/bikedemand/station"
)

func obs(id string, capacity float64, day, hour int, bikes, docks float64) merge.Observation {
	return merge.Observation{
		Station:  station.Station{ID: id, Capacity: capacity, DensityCategory: 0},
		Snapshot: ingest.Snapshot{StationID: id, Month: 10, Day: day, Hour: hour, BikesAvailable: bikes, DocksAvailable: docks},
		Weather:  ingest.Weather{Month: 10, Day: day, Hour: hour, Code: 3},
	}
}

func newEngine() *Engine {
	return NewEngine(config.Default().Features)
}

func TestNormalizeColumns(t *testing.T) {
	in := []string{"Temperature(℃)", "a-b", "a.b", "wind_speed_ms", "日本語"}
	got := NormalizeColumns(in)
	assert.Equal(t, []string{"Temperature", "ab", "ab", "wind_speed_ms", ""}, got)
	// input untouched
	assert.Equal(t, "Temperature(℃)", in[0])
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		net, theta float64
		want       Class
	}{
		{-12, 10, Oversupply},
		{12, 10, Undersupply},
		{0, 10, Balanced},
		{10, 10, Undersupply},
		{-10, 10, Oversupply},
		{9.99, 10, Balanced},
		{math.NaN(), 10, Unlabeled},
		{1, math.NaN(), Unlabeled},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.net, tt.theta), "Categorize(%v, %v)", tt.net, tt.theta)
	}
}

func TestTransformRatiosAndCalendar(t *testing.T) {
	frame, err := newEngine().Transform([]merge.Observation{
		obs("A", 20, 24, 1, 5, 15),
		obs("A", 20, 27, 2, 0, 0),
		obs("A", 20, 27, 3, 20, 0),
	})
	require.NoError(t, err)
	require.Len(t, frame.Rows, 3)

	r0 := frame.Rows[0]
	assert.InDelta(t, 1, r0.BikeRatio+r0.DockRatio, 1e-12)
	assert.InDelta(t, 0.25, r0.BikeRatio, 1e-12)
	assert.Equal(t, 4, r0.DayOfWeek) // 2025-10-24 is a Friday

	r1 := frame.Rows[1]
	assert.True(t, math.IsNaN(r1.BikeRatio))
	assert.True(t, math.IsNaN(r1.DockRatio))
	assert.True(t, r1.Flags.Has(FlagNoRatio))
	assert.True(t, r1.IsEmpty)
	assert.True(t, r1.IsFull)
	assert.Equal(t, 0, r1.DayOfWeek)

	assert.True(t, frame.Rows[2].IsFull)
	assert.False(t, frame.Rows[2].IsEmpty)
}

func TestTransformSortsAndDifferences(t *testing.T) {
	// deliberately shuffled across stations and hours
	input := []merge.Observation{
		obs("B", 10, 24, 3, 4, 6),
		obs("A", 100, 24, 2, 7, 13),
		obs("B", 10, 24, 1, 9, 1),
		obs("A", 100, 24, 1, 10, 10),
		obs("A", 100, 24, 3, 19, 1),
		obs("B", 10, 24, 2, 5, 5),
	}
	frame, err := newEngine().Transform(input)
	require.NoError(t, err)

	var ids []string
	var hours []int
	for _, r := range frame.Rows {
		ids = append(ids, r.Station.ID)
		hours = append(hours, r.Snapshot.Hour)
	}
	assert.Equal(t, []string{"A", "A", "A", "B", "B", "B"}, ids)
	assert.Equal(t, []int{1, 2, 3, 1, 2, 3}, hours)
	// input order is preserved
	assert.Equal(t, "B", input[0].Station.ID)

	a := frame.Rows[:3]
	assert.True(t, math.IsNaN(a[0].Delta))
	assert.True(t, a[0].Flags.Has(FlagFirstInStation))
	assert.Equal(t, Unlabeled, a[0].Class)
	assert.True(t, math.IsNaN(a[0].NetDemand))

	assert.Equal(t, -3.0, a[1].Delta)
	assert.Equal(t, 3.0, a[1].Rental)
	assert.Equal(t, 0.0, a[1].Return)
	assert.Equal(t, 3.0, a[1].NetDemand)
	assert.Equal(t, 10.0, a[1].Theta)
	assert.Equal(t, Balanced, a[1].Class)

	assert.Equal(t, 12.0, a[2].Delta)
	assert.Equal(t, -12.0, a[2].NetDemand)
	assert.Equal(t, Oversupply, a[2].Class)

	b := frame.Rows[3:]
	assert.Equal(t, -4.0, b[1].Delta)
	assert.Equal(t, 1.0, b[1].Theta)
	assert.Equal(t, Undersupply, b[1].Class)
	// net demand equal to theta is inclusive
	assert.Equal(t, 1.0, b[2].NetDemand)
	assert.Equal(t, Undersupply, b[2].Class)
}

func TestTransformOrdersSameHourByLastReported(t *testing.T) {
	at := func(last int64, bikes float64) merge.Observation {
		o := obs("S1", 20, 24, 8, bikes, 20-bikes)
		o.Snapshot.LastReported = last
		return o
	}
	// three reports inside the 08:00 hour: 10 -> 2 -> 3 bikes, theta 2
	chronological := []merge.Observation{at(1000, 10), at(2800, 2), at(4000, 3)}
	shuffles := [][]merge.Observation{
		chronological,
		{chronological[2], chronological[0], chronological[1]},
		{chronological[1], chronological[2], chronological[0]},
	}

	for i, input := range shuffles {
		frame, err := newEngine().Transform(input)
		require.NoError(t, err, "order %d", i)

		var last []int64
		for _, r := range frame.Rows {
			last = append(last, r.Snapshot.LastReported)
		}
		assert.Equal(t, []int64{1000, 2800, 4000}, last, "order %d", i)

		assert.True(t, frame.Rows[0].Flags.Has(FlagFirstInStation), "order %d", i)
		assert.Equal(t, -8.0, frame.Rows[1].Delta, "order %d", i)
		assert.Equal(t, Undersupply, frame.Rows[1].Class, "order %d", i)
		assert.Equal(t, 1.0, frame.Rows[2].Delta, "order %d", i)
		assert.Equal(t, Balanced, frame.Rows[2].Class, "order %d", i)
	}
}

func TestEngineYearSetsDayOfWeek(t *testing.T) {
	// October 24th is a Friday in 2025 and a Thursday in 2024
	for _, tt := range []struct {
		year int
		want int
	}{{2025, 4}, {2024, 3}} {
		frame, err := (&Engine{Year: tt.year, ThetaRatio: 0.1}).Transform([]merge.Observation{obs("S1", 20, 24, 8, 5, 15)})
		require.NoError(t, err)
		assert.Equal(t, tt.year, frame.Rows[0].Timestamp.Year())
		assert.Equal(t, tt.want, frame.Rows[0].DayOfWeek, "year %d", tt.year)
	}
}

func TestDeltaTelescopes(t *testing.T) {
	bikes := []float64{3, 8, 8, 2, 0, 11, 4}
	var input []merge.Observation
	for h, v := range bikes {
		input = append(input, obs("S", 30, 24, h, v, 30-v))
	}
	frame, err := newEngine().Transform(input)
	require.NoError(t, err)

	var sum float64
	for _, r := range frame.Rows[1:] {
		sum += r.Return - r.Rental
	}
	assert.Equal(t, bikes[len(bikes)-1]-bikes[0], sum)
}

func TestTransformMissingCapacity(t *testing.T) {
	frame, err := newEngine().Transform([]merge.Observation{
		obs("A", math.NaN(), 24, 1, 5, 5),
		obs("A", math.NaN(), 24, 2, 1, 9),
	})
	require.NoError(t, err)

	r := frame.Rows[1]
	assert.Equal(t, -4.0, r.Delta)
	assert.True(t, math.IsNaN(r.Theta))
	assert.True(t, r.Flags.Has(FlagMissingCapacity))
	assert.Equal(t, Unlabeled, r.Class)
	assert.Equal(t, "missing_capacity", r.Flags.String())
}

func TestTransformMissingInventory(t *testing.T) {
	frame, err := newEngine().Transform([]merge.Observation{
		obs("A", 10, 24, 1, 5, 5),
		obs("A", 10, 24, 2, math.NaN(), 5),
		obs("A", 10, 24, 3, 2, 8),
	})
	require.NoError(t, err)

	assert.True(t, frame.Rows[1].Flags.Has(FlagMissingInventory))
	assert.True(t, frame.Rows[2].Flags.Has(FlagMissingInventory))
	assert.Equal(t, Unlabeled, frame.Rows[2].Class)
}

func TestTransformRejectsInvalidTheta(t *testing.T) {
	_, err := (&Engine{Year: 2025}).Transform(nil)
	var verr *errors.ValidationError
	require.True(t, errors.As(err, &verr))
}

func TestCheckSorted(t *testing.T) {
	e := newEngine()
	rows := []Row{e.base(obs("B", 1, 24, 1, 1, 1)), e.base(obs("A", 1, 24, 1, 1, 1))}
	err := checkSorted(rows)
	require.True(t, errors.Is(err, errors.ErrUnsortedInput))

	late, early := e.base(obs("A", 1, 24, 1, 1, 1)), e.base(obs("A", 1, 24, 1, 1, 1))
	late.Snapshot.LastReported, early.Snapshot.LastReported = 200, 100
	require.True(t, errors.Is(checkSorted([]Row{late, early}), errors.ErrUnsortedInput))
	require.NoError(t, checkSorted([]Row{early, late}))
}

func TestFrameColumns(t *testing.T) {
	frame, err := newEngine().Transform([]merge.Observation{obs("A", 10, 24, 1, 5, 5)})
	require.NoError(t, err)

	assert.Len(t, frame.Columns, len(columns))
	assert.NotEqual(t, -1, frame.ColumnIndex("Temperature"))
	assert.NotEqual(t, -1, frame.ColumnIndex("Precipitationmm"))
	assert.Equal(t, -1, frame.ColumnIndex("Temperature(℃)"))
	for _, c := range frame.Columns {
		assert.Equal(t, NormalizeColumns([]string{c})[0], c)
	}
}

func TestFrameSummaryAndDataset(t *testing.T) {
	frame, err := newEngine().Transform([]merge.Observation{
		obs("A", 100, 24, 1, 10, 10),
		obs("A", 100, 24, 2, 7, 13),
		obs("A", 100, 24, 3, 19, 1),
		obs("B", math.NaN(), 24, 1, 1, 1),
	})
	require.NoError(t, err)

	sum := frame.Summary()
	assert.Equal(t, 4, sum.Rows)
	assert.Equal(t, 2, sum.Labeled)
	assert.Equal(t, 2, sum.Unlabeled)
	assert.Equal(t, 2, sum.Flags[FlagFirstInStation])
	assert.Equal(t, 1, sum.Flags[FlagMissingCapacity])
	assert.Equal(t, 1, sum.Classes[Balanced])
	assert.Equal(t, 1, sum.Classes[Oversupply])

	ds, err := frame.Dataset(LeakageColumns)
	require.NoError(t, err)

	rows, cols := ds.X.Dims()
	assert.Equal(t, 2, rows)
	assert.Equal(t, len(ds.Names), cols)
	assert.Equal(t, []Class{Balanced, Oversupply}, ds.Y)
	assert.Equal(t, []float64{1, 2}, ds.Targets())
	assert.Equal(t, []int{1, 2}, ds.Rows)
	for _, leak := range NormalizeColumns(LeakageColumns) {
		assert.NotContains(t, ds.Names, leak)
	}
	assert.Contains(t, ds.Names, "bike_ratio")
	assert.Contains(t, ds.Names, "day_of_week")
}

func TestFrameDatasetErrors(t *testing.T) {
	frame, err := newEngine().Transform([]merge.Observation{obs("A", 10, 24, 1, 5, 5)})
	require.NoError(t, err)

	_, err = frame.Dataset(nil)
	require.True(t, errors.Is(err, errors.ErrEmptyData))

	_, err = (&Frame{}).Dataset(nil)
	require.Error(t, err)
}

func TestFrameWriteCSV(t *testing.T) {
	frame, err := newEngine().Transform([]merge.Observation{
		obs("00010001", 10, 24, 1, 5, 5),
		obs("00010001", 10, 24, 2, 4, 6),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, frame.WriteCSV(&buf))

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.True(t, strings.HasPrefix(header, "station_id,month,date,hours"))
	assert.True(t, strings.HasSuffix(header, "y_class,flags"))

	df := dataframe.ReadCSV(strings.NewReader(buf.String()), dataframe.DetectTypes(false))
	require.NoError(t, df.Err)
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, "00010001", df.Col("station_id").Records()[0])
	assert.Equal(t, "first_in_station", df.Col("flags").Records()[0])

	require.Error(t, (&Frame{}).WriteCSV(&buf))
}
