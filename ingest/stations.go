package ingest

import (
	"io"
	"math"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// RawStation is one entry of the static station feed.
type RawStation struct {
	StationID         FlexString `json:"station_id"`
	Name              string     `json:"name"`
	Address           string     `json:"address"`
	VehicleCapacity   *FlexFloat `json:"vehicle_capacity"`
	Lat               *FlexFloat `json:"lat"`
	Lon               *FlexFloat `json:"lon"`
	ParkingHoop       FlexBool   `json:"parking_hoop"`
	IsChargingStation FlexBool   `json:"is_charging_station"`
}

type stationFeed struct {
	Data struct {
		Stations []RawStation `json:"stations"`
	} `json:"data"`
}

// ReadStations decodes {"data":{"stations":[...]}}. Entries without a
// station_id are skipped.
func ReadStations(r io.Reader) ([]RawStation, Stats, error) {
	var feed stationFeed
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, Stats{}, errors.Wrap(err, "read station feed")
	}
	if err := json.Unmarshal(body, &feed); err != nil {
		return nil, Stats{}, errors.NewParseError("stations", 0, 0, err)
	}

	stats := Stats{Read: len(feed.Data.Stations)}
	out := make([]RawStation, 0, len(feed.Data.Stations))
	for _, s := range feed.Data.Stations {
		if s.StationID == "" {
			stats.Skipped++
			continue
		}
		out = append(out, s)
	}
	return out, stats, nil
}

// ReadStationsFile opens path and calls ReadStations.
func ReadStationsFile(path string) ([]RawStation, Stats, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, Stats{}, err
	}
	defer f.Close()
	return ReadStations(f)
}

// FlexFloat accepts a JSON number, a numeric string, or anything else as NaN.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "null" {
		*f = FlexFloat(math.NaN())
		return nil
	}
	*f = FlexFloat(parseFloat(s))
	return nil
}

// Float returns the value, or NaN when the field was absent.
func (f *FlexFloat) Float() float64 {
	if f == nil {
		return math.NaN()
	}
	return float64(*f)
}

// FlexString accepts a JSON string or number.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	raw := strings.TrimSpace(string(b))
	if raw == "null" {
		*s = ""
		return nil
	}
	if strings.HasPrefix(raw, `"`) {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	*s = FlexString(raw)
	return nil
}

// FlexBool accepts true/false, 0/1 or their string forms.
type FlexBool int

func (v *FlexBool) UnmarshalJSON(b []byte) error {
	*v = FlexBool(parseFlag(strings.Trim(string(b), `"`)))
	return nil
}
