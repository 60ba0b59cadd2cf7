package ingest

import (
	"encoding/csv"
	"io"
	"math"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/YuminosukeSato/bikedemand/category"
	"github.com/YuminosukeSato/bikedemand/config"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// Weather is one hourly observation.
type Weather struct {
	Year            int
	Month           int
	Day             int
	Hour            int
	PrecipitationMM float64
	TemperatureC    float64
	WindSpeedMS     float64
	// WindDirection is in degrees; calm is config.CalmWindDegrees and an
	// unknown direction is NaN.
	WindDirection float64
	// Code is the weather code after imputation; never category.CodeMissing.
	Code int
	// Imputed reports whether Code was filled in.
	Imputed bool
}

// Key is the join key used by the merge.
func (w Weather) Key() [3]int { return [3]int{w.Month, w.Day, w.Hour} }

// weather column slots in layout.Columns
const (
	wYear = iota
	wMonth
	wDay
	wHour
	wPrecipitation
	wTemperature
	wWindSpeed
	wWindDirection
	wCode
)

// ReadWeather decodes the weather export described by layout. The first
// layout.SkipRows records are the export's preamble. Rows whose month, day
// or hour are not integers are skipped.
func ReadWeather(r io.Reader, layout config.WeatherLayout, winds *category.WindDirections) ([]Weather, Stats, error) {
	if len(layout.Columns) != wCode+1 {
		return nil, Stats{}, errors.NewValidationError("weather.columns", "must list 9 column indices", layout.Columns)
	}
	if layout.Encoding == config.EncodingShiftJIS {
		r = transform.NewReader(r, japanese.ShiftJIS.NewDecoder())
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var (
		out   []Weather
		stats Stats
		line  int
	)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, stats, errors.NewParseError("weather", line, 0, err)
		}
		if line <= layout.SkipRows {
			continue
		}
		stats.Read++

		cell := func(slot int) string {
			idx := layout.Columns[slot]
			if idx < 0 || idx >= len(rec) {
				return ""
			}
			return rec[idx]
		}

		month, okM := parseInt(cell(wMonth))
		day, okD := parseInt(cell(wDay))
		hour, okH := parseInt(cell(wHour))
		if !okM || !okD || !okH {
			stats.Skipped++
			continue
		}
		year, _ := parseInt(cell(wYear))

		w := Weather{
			Year:            year,
			Month:           month,
			Day:             day,
			Hour:            hour,
			PrecipitationMM: parseFloat(cell(wPrecipitation)),
			TemperatureC:    parseFloat(cell(wTemperature)),
			WindSpeedMS:     parseFloat(cell(wWindSpeed)),
			WindDirection:   math.NaN(),
		}
		if winds != nil {
			w.WindDirection = winds.Degrees(cell(wWindDirection))
		}
		code, ok := parseInt(cell(wCode))
		if !ok {
			code = category.CodeMissing
		}
		w.Code = category.ImputeWeatherCode(code, w.PrecipitationMM, w.TemperatureC)
		w.Imputed = w.Code != code
		out = append(out, w)
	}
	return out, stats, nil
}

// ReadWeatherFile opens path and calls ReadWeather.
func ReadWeatherFile(path string, layout config.WeatherLayout, winds *category.WindDirections) ([]Weather, Stats, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer f.Close()
	return ReadWeather(f, layout, winds)
}
