package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/bikedemand/pkg/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Len(t, cfg.Tables.WardAreas, 23)
	assert.InDelta(t, 11.66, cfg.Tables.WardAreas["千代田"], 1e-12)
	assert.Len(t, cfg.Tables.FacilityCategories, 8)
	assert.Equal(t, "station", cfg.Tables.FacilityCategories[0].Label)
	assert.Equal(t, "office", cfg.Tables.FacilityCategories[7].Label)
	assert.Len(t, cfg.Tables.WindDirections, 17)
	assert.Equal(t, CalmWindDegrees, cfg.Tables.WindDirections["静穏"])
	assert.Equal(t, []float64{0.5, 1.5}, cfg.Optimizer.Initial)
	assert.Equal(t, 2025, cfg.Features.Year)
	assert.Equal(t, int64(42), cfg.Split.Seed)
	assert.Equal(t, ModelLightGBM, cfg.Model.Kind)
	assert.Equal(t, 0.05, cfg.Model.LearningRate)
	assert.Equal(t, 100, cfg.Model.NEstimators)
}

func TestDefaultReturnsIndependentCopies(t *testing.T) {
	a := Default()
	a.Tables.WardAreas["千代田"] = 1
	a.Tables.FacilityCategories[0].Label = "changed"

	b := Default()
	assert.InDelta(t, 11.66, b.Tables.WardAreas["千代田"], 1e-12)
	assert.Equal(t, "station", b.Tables.FacilityCategories[0].Label)
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(`
paths:
  static: stations.json
  dynamic: snapshots.csv
  weather: weather.csv
features:
  theta_ratio: 0.2
  timezone: Asia/Tokyo
model:
  kind: ridge
  l2: 0.5
optimizer:
  initial: [0.4, 1.6]
`))
	require.NoError(t, err)
	assert.Equal(t, "stations.json", cfg.Paths.Static)
	assert.Equal(t, 0.2, cfg.Features.ThetaRatio)
	assert.Equal(t, []float64{0.4, 1.6}, cfg.Optimizer.Initial)
	assert.Equal(t, ModelRidge, cfg.Model.Kind)
	assert.Equal(t, 0.5, cfg.Model.L2)
	assert.Equal(t, 100, cfg.Model.NEstimators, "boosting defaults survive a ridge override")
	// untouched sections keep their defaults
	assert.Len(t, cfg.Tables.WardAreas, 23)
	assert.Equal(t, 0.2, cfg.Split.TestSize)

	loc, err := cfg.Features.Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Tokyo", loc.String())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("unknown_section: 1\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		param  string
	}{
		{"theta ratio", func(c *Config) { c.Features.ThetaRatio = 0 }, "features.theta_ratio"},
		{"test size", func(c *Config) { c.Split.TestSize = 1 }, "split.test_size"},
		{"initial", func(c *Config) { c.Optimizer.Initial = []float64{1} }, "optimizer.initial"},
		{"empty wards", func(c *Config) { c.Tables.WardAreas = nil }, "tables.ward_areas"},
		{"negative area", func(c *Config) { c.Tables.WardAreas["港"] = -1 }, "tables.ward_areas"},
		{"empty facilities", func(c *Config) { c.Tables.FacilityCategories = nil }, "tables.facility_categories"},
		{"timezone", func(c *Config) { c.Features.Timezone = "Not/AZone" }, "features.timezone"},
		{"encoding", func(c *Config) { c.Weather.Encoding = "latin1" }, "weather.encoding"},
		{"columns", func(c *Config) { c.Weather.Columns = []int{0, 1} }, "weather.columns"},
		{"model kind", func(c *Config) { c.Model.Kind = "xgboost" }, "model.kind"},
		{"learning rate", func(c *Config) { c.Model.LearningRate = 0 }, "model.learning_rate"},
		{"estimators", func(c *Config) { c.Model.NEstimators = 0 }, "model.n_estimators"},
		{"leaves", func(c *Config) { c.Model.NumLeaves = 1 }, "model.num_leaves"},
		{"subsample", func(c *Config) { c.Model.Subsample = 1.2 }, "model.subsample"},
		{"colsample", func(c *Config) { c.Model.ColsampleBytree = 0 }, "model.colsample_bytree"},
		{"ridge penalty", func(c *Config) { c.Model.Kind = ModelRidge; c.Model.L2 = -1 }, "model.l2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)

			var verr *errors.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.param, verr.ParamName)
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("paths:\n  static: from-file.json\n  output_dir: out\n"), 0o600))

	t.Setenv("BIKEDEMAND_STATIC", "from-env.json")
	t.Setenv("BIKEDEMAND_LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.json", cfg.Paths.Static)
	assert.Equal(t, "out", cfg.Paths.OutputDir)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLocationDefaultsToUTC(t *testing.T) {
	loc, err := FeatureSettings{}.Location()
	require.NoError(t, err)
	assert.Equal(t, time.UTC, loc)
}
