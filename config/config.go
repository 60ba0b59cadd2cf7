// Package config loads pipeline configuration: input paths, logging, the
// fixed lookup tables (ward areas, facility keywords, wind directions) and
// model/optimizer settings.
//
// Values are resolved in three layers: compiled-in defaults (Default), a YAML
// file, then BIKEDEMAND_* environment variables for paths and logging.
package config

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

// EnvPrefix is the prefix for environment overrides.
const EnvPrefix = "BIKEDEMAND"

// Config is the complete pipeline configuration.
type Config struct {
	Paths     Paths           `yaml:"paths"`
	Logging   Logging         `yaml:"logging"`
	Features  FeatureSettings `yaml:"features"`
	Tables    Tables          `yaml:"tables"`
	Weather   WeatherLayout   `yaml:"weather"`
	Split     Split           `yaml:"split"`
	Model     Model           `yaml:"model"`
	Optimizer Optimizer       `yaml:"optimizer"`
}

// Paths holds input files and the output directory.
type Paths struct {
	Static    string `yaml:"static" envconfig:"STATIC"`
	Dynamic   string `yaml:"dynamic" envconfig:"DYNAMIC"`
	Weather   string `yaml:"weather" envconfig:"WEATHER"`
	OutputDir string `yaml:"output_dir" envconfig:"OUTPUT_DIR"`
}

// Logging configures pkg/log.Setup.
type Logging struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"`
}

// FeatureSettings controls the feature and label engine.
type FeatureSettings struct {
	// Year is the calendar year used to build synthetic timestamps; the
	// snapshot and weather feeds only carry month/day/hour.
	Year int `yaml:"year"`
	// ThetaRatio is the share of station capacity treated as imbalance.
	ThetaRatio float64 `yaml:"theta_ratio"`
	// Timezone decomposes last_reported epoch seconds into month/day/hour.
	Timezone string `yaml:"timezone"`
}

// Location resolves Timezone.
func (f FeatureSettings) Location() (*time.Location, error) {
	if f.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return nil, errors.NewValidationError("features.timezone", err.Error(), f.Timezone)
	}
	return loc, nil
}

// WeatherLayout describes the delimited weather export.
type WeatherLayout struct {
	SkipRows int    `yaml:"skip_rows"`
	Encoding string `yaml:"encoding"`
	// Columns are 0-based source indices for year, month, day, hour,
	// precipitation, temperature, wind speed, wind direction, weather code.
	Columns []int `yaml:"columns"`
}

// Split controls the train/test split.
type Split struct {
	TestSize float64 `yaml:"test_size"`
	Seed     int64   `yaml:"seed"`
}

// Regressor kinds accepted by Model.Kind.
const (
	ModelLightGBM = "lightgbm"
	ModelRidge    = "ridge"
)

// Model configures the regressor. The boosting fields use the LGBMRegressor
// names; L2 is the ridge penalty. The random state is Split.Seed.
type Model struct {
	Kind string `yaml:"kind"`

	LearningRate    float64 `yaml:"learning_rate"`
	NEstimators     int     `yaml:"n_estimators"`
	NumLeaves       int     `yaml:"num_leaves"`
	MinChildSamples int     `yaml:"min_child_samples"`
	Subsample       float64 `yaml:"subsample"`
	SubsampleFreq   int     `yaml:"subsample_freq"`
	ColsampleBytree float64 `yaml:"colsample_bytree"`
	RegLambda       float64 `yaml:"reg_lambda"`

	L2 float64 `yaml:"l2"`
}

// Optimizer configures the threshold search.
type Optimizer struct {
	Initial        []float64 `yaml:"initial"`
	MaxIterations  int       `yaml:"max_iterations"`
	MaxEvaluations int       `yaml:"max_evaluations"`
}

// Default returns a fresh configuration with the built-in tables.
func Default() *Config {
	return &Config{
		Paths: Paths{OutputDir: "output"},
		Logging: Logging{
			Level:  "info",
			Format: "json",
		},
		Features: FeatureSettings{
			Year:       2025,
			ThetaRatio: 0.1,
			Timezone:   "UTC",
		},
		Tables: DefaultTables(),
		Weather: WeatherLayout{
			SkipRows: 5,
			Encoding: EncodingShiftJIS,
			Columns:  []int{0, 1, 2, 3, 4, 8, 11, 13, 16},
		},
		Split:     Split{TestSize: 0.2, Seed: 42},
		Model: Model{
			Kind:            ModelLightGBM,
			LearningRate:    0.05,
			NEstimators:     100,
			NumLeaves:       31,
			MinChildSamples: 20,
			Subsample:       1.0,
			ColsampleBytree: 1.0,
			L2:              1.0,
		},
		Optimizer: Optimizer{Initial: []float64{0.5, 1.5}, MaxIterations: 500, MaxEvaluations: 2000},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "open config %s", path)
		}
		defer f.Close()
		if err := cfg.decode(f); err != nil {
			return nil, errors.Wrapf(err, "decode config %s", path)
		}
	}
	if err := envconfig.Process(EnvPrefix, &cfg.Paths); err != nil {
		return nil, errors.Wrap(err, "apply path overrides")
	}
	if err := envconfig.Process(EnvPrefix, &cfg.Logging); err != nil {
		return nil, errors.Wrap(err, "apply logging overrides")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML bytes over the defaults without consulting the
// environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(bytes.NewReader(data)); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

// Validate checks the settings that would otherwise fail deep inside a stage.
func (c *Config) Validate() error {
	if err := c.Tables.Validate(); err != nil {
		return err
	}
	if c.Features.ThetaRatio <= 0 {
		return errors.NewValidationError("features.theta_ratio", "must be positive", c.Features.ThetaRatio)
	}
	if c.Features.Year < 1 {
		return errors.NewValidationError("features.year", "must be a calendar year", c.Features.Year)
	}
	if _, err := c.Features.Location(); err != nil {
		return err
	}
	if c.Split.TestSize <= 0 || c.Split.TestSize >= 1 {
		return errors.NewValidationError("split.test_size", "must be in (0, 1)", c.Split.TestSize)
	}
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if len(c.Optimizer.Initial) != 2 {
		return errors.NewValidationError("optimizer.initial", "must hold exactly two cut-points", c.Optimizer.Initial)
	}
	if len(c.Weather.Columns) != 9 {
		return errors.NewValidationError("weather.columns", "must list 9 column indices", c.Weather.Columns)
	}
	if c.Weather.SkipRows < 0 {
		return errors.NewValidationError("weather.skip_rows", "must not be negative", c.Weather.SkipRows)
	}
	switch c.Weather.Encoding {
	case EncodingShiftJIS, EncodingUTF8:
	default:
		return errors.NewValidationError("weather.encoding", "must be shift_jis or utf-8", c.Weather.Encoding)
	}
	return nil
}

// Validate checks the settings of the selected regressor.
func (m Model) Validate() error {
	switch m.Kind {
	case ModelRidge:
		if m.L2 < 0 {
			return errors.NewValidationError("model.l2", "must not be negative", m.L2)
		}
		return nil
	case ModelLightGBM:
	default:
		return errors.NewValidationError("model.kind", "must be lightgbm or ridge", m.Kind)
	}
	switch {
	case !(m.LearningRate > 0):
		return errors.NewValidationError("model.learning_rate", "must be positive", m.LearningRate)
	case m.NEstimators < 1:
		return errors.NewValidationError("model.n_estimators", "must be at least 1", m.NEstimators)
	case m.NumLeaves < 2:
		return errors.NewValidationError("model.num_leaves", "must be at least 2", m.NumLeaves)
	case m.MinChildSamples < 1:
		return errors.NewValidationError("model.min_child_samples", "must be at least 1", m.MinChildSamples)
	case m.Subsample <= 0 || m.Subsample > 1:
		return errors.NewValidationError("model.subsample", "must be in (0, 1]", m.Subsample)
	case m.SubsampleFreq < 0:
		return errors.NewValidationError("model.subsample_freq", "must not be negative", m.SubsampleFreq)
	case m.ColsampleBytree <= 0 || m.ColsampleBytree > 1:
		return errors.NewValidationError("model.colsample_bytree", "must be in (0, 1]", m.ColsampleBytree)
	case m.RegLambda < 0:
		return errors.NewValidationError("model.reg_lambda", "must not be negative", m.RegLambda)
	}
	return nil
}

// Weather file encodings.
const (
	EncodingShiftJIS = "shift_jis"
	EncodingUTF8     = "utf-8"
)
