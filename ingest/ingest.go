// Package ingest reads the three raw inputs of the pipeline: static station
// metadata (JSON), inventory snapshots (CSV) and hourly weather observations
// (Shift-JIS delimited text).
//
// Every reader consumes its input fully and returns decoded rows plus Stats.
// Rows that cannot be keyed are skipped and counted; malformed files are a
// ParseError.
package ingest

import (
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// Stats counts rows seen and skipped by a reader.
type Stats struct {
	Read    int
	Skipped int
}

// Kept is the number of rows returned.
func (s Stats) Kept() int { return s.Read - s.Skipped }

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	return f, nil
}

// parseFloat returns NaN for empty or non-numeric text.
func parseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// parseInt accepts integral floats such as "3.0".
func parseInt(s string) (int, bool) {
	v := parseFloat(s)
	if math.IsNaN(v) || v != math.Trunc(v) {
		return 0, false
	}
	return int(v), true
}

// parseFlag maps boolean-like text to 0/1; anything else is 0.
func parseFlag(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "1.0", "t", "yes":
		return 1
	}
	return 0
}
