package ingest

import (
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// Snapshot columns read from the dynamic feed.
const (
	ColStationID      = "station_id"
	ColLastReported   = "last_reported"
	ColBikesAvailable = "num_bikes_available"
	ColDocksAvailable = "num_docks_available"
	ColIsRenting      = "is_renting"
	ColIsInstalled    = "is_installed"
	ColIsReturning    = "is_returning"
)

// Snapshot is one inventory observation of a station.
type Snapshot struct {
	StationID      string
	LastReported   int64
	Month          int
	Day            int
	Hour           int
	BikesAvailable float64
	DocksAvailable float64
	IsRenting      int
	IsInstalled    int
	IsReturning    int
}

// ReadSnapshots loads the snapshot CSV (with header) and decomposes
// last_reported epoch seconds into month/day/hour in loc. Rows without a
// station_id or a numeric last_reported are skipped. Missing flag columns
// default to 0.
func ReadSnapshots(r io.Reader, loc *time.Location) ([]Snapshot, Stats, error) {
	if loc == nil {
		loc = time.UTC
	}
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithLazyQuotes(true),
	)
	if df.Err != nil {
		return nil, Stats{}, errors.NewParseError("snapshots", 0, 0, df.Err)
	}

	required := []string{ColStationID, ColLastReported, ColBikesAvailable, ColDocksAvailable}
	cols := make(map[string][]string, 7)
	for _, name := range append(required, ColIsRenting, ColIsInstalled, ColIsReturning) {
		s := df.Col(name)
		if s.Err != nil {
			if contains(required, name) {
				return nil, Stats{}, errors.NewParseError("snapshots", 1, 0, errors.Newf("missing column %q", name))
			}
			continue
		}
		cols[name] = s.Records()
	}

	n := df.Nrow()
	stats := Stats{Read: n}
	out := make([]Snapshot, 0, n)
	for i := 0; i < n; i++ {
		id := cleanCell(cols[ColStationID][i])
		epoch := parseFloat(cleanCell(cols[ColLastReported][i]))
		if id == "" || math.IsNaN(epoch) {
			stats.Skipped++
			continue
		}
		ts := time.Unix(int64(epoch), 0).In(loc)
		out = append(out, Snapshot{
			StationID:      id,
			LastReported:   int64(epoch),
			Month:          int(ts.Month()),
			Day:            ts.Day(),
			Hour:           ts.Hour(),
			BikesAvailable: parseFloat(cleanCell(cols[ColBikesAvailable][i])),
			DocksAvailable: parseFloat(cleanCell(cols[ColDocksAvailable][i])),
			IsRenting:      flagAt(cols, ColIsRenting, i),
			IsInstalled:    flagAt(cols, ColIsInstalled, i),
			IsReturning:    flagAt(cols, ColIsReturning, i),
		})
	}
	return out, stats, nil
}

// ReadSnapshotsFile opens path and calls ReadSnapshots.
func ReadSnapshotsFile(path string, loc *time.Location) ([]Snapshot, Stats, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer f.Close()
	return ReadSnapshots(f, loc)
}

func flagAt(cols map[string][]string, name string, i int) int {
	vals, ok := cols[name]
	if !ok {
		return 0
	}
	return parseFlag(cleanCell(vals[i]))
}

// cleanCell maps gota's NaN rendering back to an empty cell.
func cleanCell(s string) string {
	s = strings.TrimSpace(s)
	if s == "NaN" || s == "NA" || s == "<nil>" {
		return ""
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
