package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/YuminosukeSato/bikedemand/config"
	"github.com/YuminosukeSato/bikedemand/features"
	"github.com/YuminosukeSato/bikedemand/lightgbm"
	"github.com/YuminosukeSato/bikedemand/linear"
	"github.com/YuminosukeSato/bikedemand/pkg/errors"
	"github.com/YuminosukeSato/bikedemand/pkg/log"
	"github.com/YuminosukeSato/bikedemand/thresholds"
)

// 2024-10-24T00:00:00Z
const baseEpoch = 1729728000

// hourly inventory; flat pairs give balanced hours, steps give imbalance
var inventory = []int{5, 5, 3, 3, 6, 6, 2, 2, 4, 4, 8, 8, 1, 1, 5, 5, 7, 7, 3, 3, 6, 6, 2, 2}

var fixtureStations = []struct {
	id, name, address string
}{
	{"00010001", "東京駅八重洲口", "東京都中央区八重洲1-1"},
	{"00010002", "丸の内ビル", "東京都千代田区丸の内2-4"},
	{"00010003", "芝公園", "東京都港区芝公園4-2"},
	{"00010004", "新宿西口", "東京都新宿区西新宿1-1"},
	{"00010005", "横浜駅", "神奈川県横浜市西区"},
}

func writeFixtures(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()

	var js strings.Builder
	js.WriteString(`{"data":{"stations":[`)
	for i, s := range fixtureStations {
		if i > 0 {
			js.WriteString(",")
		}
		fmt.Fprintf(&js, `{"station_id":%q,"name":%q,"address":%q,"vehicle_capacity":10,"lat":35.6,"lon":139.7,"parking_hoop":false,"is_charging_station":%t}`,
			s.id, s.name, s.address, i%2 == 0)
	}
	js.WriteString(`]}}`)
	static := filepath.Join(dir, "stations.json")
	require.NoError(t, os.WriteFile(static, []byte(js.String()), 0o600))

	var csv strings.Builder
	csv.WriteString("station_id,last_reported,num_bikes_available,num_docks_available,is_renting,is_installed,is_returning\n")
	for s, st := range fixtureStations[:4] {
		for h := range inventory {
			bikes := inventory[(h+2*s)%len(inventory)]
			fmt.Fprintf(&csv, "%s,%d,%d,%d,1,1,1\n", st.id, baseEpoch+h*3600, bikes, 10-bikes)
		}
	}
	// no weather for this hour on the next day
	fmt.Fprintf(&csv, "%s,%d,4,6,1,1,1\n", fixtureStations[0].id, baseEpoch+30*3600)
	dynamic := filepath.Join(dir, "snapshots.csv")
	require.NoError(t, os.WriteFile(dynamic, []byte(csv.String()), 0o600))

	lines := []string{
		"ダウンロードした時刻：2025/10/25 10:00:00",
		",",
		",東京,東京,東京",
		"年,月,日,時,降水量,,,,気温,,,風速,,風向,,,天気",
		",,,,,,,,,,,,,,,,",
	}
	winds := []string{"北", "南", "静穏", "東"}
	for h := 0; h < 24; h++ {
		precip := 0.0
		if h%5 == 0 {
			precip = 1.5
		}
		code := ""
		if h%3 == 0 {
			code = "2"
		}
		lines = append(lines, fmt.Sprintf("2024,10,24,%d,%.1f,8,1,1,%.1f,8,1,%.1f,8,%s,8,1,%s",
			h, precip, 12+float64(h)/2, 1+float64(h%4), winds[h%len(winds)], code))
	}
	encoded, _, err := transform.String(japanese.ShiftJIS.NewEncoder(), strings.Join(lines, "\r\n")+"\r\n")
	require.NoError(t, err)
	weather := filepath.Join(dir, "weather.csv")
	require.NoError(t, os.WriteFile(weather, []byte(encoded), 0o600))

	cfg := config.Default()
	cfg.Paths = config.Paths{
		Static:    static,
		Dynamic:   dynamic,
		Weather:   weather,
		OutputDir: filepath.Join(dir, "out"),
	}
	return cfg
}

func quietWarnings(t *testing.T) {
	errors.SetWarningHandler(func(error) {})
	t.Cleanup(func() { errors.SetWarningHandler(nil) })
}

func TestBuildFeatures(t *testing.T) {
	quietWarnings(t)
	cfg := writeFixtures(t)
	logger, _ := log.NewTestLogger(log.LevelInfo)

	res, err := New(cfg, logger).BuildFeatures(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Ingest.Stations.Kept())
	assert.Equal(t, 1, res.Stations.OutsideWards)
	assert.Equal(t, 97, res.Ingest.Snapshots.Kept())
	assert.Equal(t, 24, res.Ingest.Weather.Kept())
	assert.Equal(t, 1, res.Merge.MissingWeather)

	require.NotNil(t, res.Frame)
	assert.Equal(t, 96, res.Features.Rows)
	assert.Equal(t, 4, res.Features.Unlabeled)
	assert.Equal(t, 4, res.Features.Flags[features.FlagFirstInStation])
	for _, c := range []features.Class{features.Undersupply, features.Balanced, features.Oversupply} {
		assert.Positive(t, res.Features.Classes[c], "class %s", c)
	}

	assert.True(t, logger.ContainsMessage("Feature table built"))
	assert.True(t, logger.ContainsField(log.RowsKey, float64(96)))

	path := filepath.Join(t.TempDir(), "nested", FeaturesFile)
	require.NoError(t, WriteFeatures(res, path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 97, strings.Count(string(data), "\n"))
}

func TestRun(t *testing.T) {
	quietWarnings(t)
	cfg := writeFixtures(t)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	res, err := Run(context.Background(), cfg, logger)
	require.NoError(t, err)

	assert.Equal(t, 92, res.TrainRows+res.TestRows)
	assert.Equal(t, res.TrainRows, res.Train.N)
	assert.Equal(t, res.TestRows, res.Test.N)
	assert.NotContains(t, res.FeatureNames, "net_demand")
	assert.NotContains(t, res.FeatureNames, "y_class")

	var mean float64
	for _, w := range res.ClassWeights {
		mean += w
	}
	assert.InDelta(t, 1, mean/float64(len(res.ClassWeights)), 1e-12)

	require.NotNil(t, res.Thresholds)
	assert.Len(t, res.Thresholds.Cuts, 2)
	assert.LessOrEqual(t, res.Thresholds.Cuts[0], res.Thresholds.Cuts[1])
	assert.GreaterOrEqual(t, res.Thresholds.QWK, res.Thresholds.Initial)
	assert.InDelta(t, res.Thresholds.QWK, res.Train.QWK, 1e-12)
	assert.False(t, math.IsNaN(res.Test.QWK))

	require.Len(t, res.Outputs, 6)
	for _, p := range res.Outputs {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size(), p)
	}
	assert.FileExists(t, filepath.Join(cfg.Paths.OutputDir, ImportanceFile))
	assert.FileExists(t, filepath.Join(cfg.Paths.OutputDir, LossCurveFile))
	assert.NoFileExists(t, filepath.Join(cfg.Paths.OutputDir, CoefficientsFile))

	assert.Equal(t, config.ModelLightGBM, res.ModelName)
	assert.Equal(t, "split_importance", res.WeightMeasure)
	assert.Len(t, res.Coefficients, len(res.FeatureNames))
	require.NotNil(t, res.History)
	assert.Len(t, res.History.Train, cfg.Model.NEstimators)
	assert.Len(t, res.History.Valid, cfg.Model.NEstimators)

	modelJSON, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, ModelFile))
	require.NoError(t, err)
	loaded, err := lightgbm.ReadJSON(bytes.NewReader(modelJSON))
	require.NoError(t, err)
	assert.Equal(t, res.FeatureNames, loaded.FeatureNames)
	assert.Len(t, loaded.Model.Trees, cfg.Model.NEstimators)

	for _, msg := range []string{"Regressor fitted", "Thresholds optimized", "Split evaluated", "Artefact written", "Stage finished"} {
		assert.True(t, logger.ContainsMessage(msg), msg)
	}
	assert.True(t, logger.ContainsField(log.ModelNameKey, config.ModelLightGBM))
	assert.True(t, logger.ContainsField(log.TreesKey, float64(cfg.Model.NEstimators)))
}

func TestRunRidge(t *testing.T) {
	quietWarnings(t)
	cfg := writeFixtures(t)
	cfg.Model.Kind = config.ModelRidge

	res, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, config.ModelRidge, res.ModelName)
	assert.Equal(t, "coefficient", res.WeightMeasure)
	assert.Nil(t, res.History)
	require.Len(t, res.Outputs, 5)
	assert.FileExists(t, filepath.Join(cfg.Paths.OutputDir, CoefficientsFile))
	assert.NoFileExists(t, filepath.Join(cfg.Paths.OutputDir, LossCurveFile))

	modelJSON, err := os.ReadFile(filepath.Join(cfg.Paths.OutputDir, ModelFile))
	require.NoError(t, err)
	loaded, err := linear.ReadJSON(bytes.NewReader(modelJSON))
	require.NoError(t, err)
	assert.Equal(t, res.FeatureNames, loaded.FeatureNames)
}

func TestClassWeightsReachTheBoostedModel(t *testing.T) {
	quietWarnings(t)
	cfg := writeFixtures(t)
	cfg.Model.NEstimators = 5

	weighted, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	gb, ok := weighted.Model.(*lightgbm.LGBMRegressor)
	require.True(t, ok, "default regressor is %T", weighted.Model)
	assert.Equal(t, cfg.Split.Seed, gb.RandomState)

	// inverse-frequency weights give every class the same total weight, so
	// the weighted mean label over classes 0, 1 and 2 is 1
	require.Len(t, weighted.ClassWeights, 3)
	assert.InDelta(t, 1.0, gb.Model.InitScore, 1e-9)
}

func TestRunIsReproducible(t *testing.T) {
	quietWarnings(t)
	cfg := writeFixtures(t)

	a, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)
	b, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.Equal(t, a.Thresholds.Cuts, b.Thresholds.Cuts)
	assert.Equal(t, a.Test.Predicted, b.Test.Predicted)
	assert.Equal(t, a.Coefficients, b.Coefficients)
}

type recordingStrategy struct {
	calls int
}

func (r *recordingStrategy) Minimize(_ thresholds.Objective, x0 []float64) (thresholds.Result, error) {
	r.calls++
	return thresholds.Result{X: x0, F: 0, Converged: true}, nil
}

func TestRunWithStrategy(t *testing.T) {
	quietWarnings(t)
	cfg := writeFixtures(t)
	s := &recordingStrategy{}

	res, err := New(cfg, nil, WithStrategy(s)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, []float64{0.5, 1.5}, res.Thresholds.Cuts)
}

func TestRunErrors(t *testing.T) {
	quietWarnings(t)

	t.Run("missing input", func(t *testing.T) {
		cfg := writeFixtures(t)
		cfg.Paths.Weather = filepath.Join(t.TempDir(), "none.csv")
		provider, _ := log.NewTestLoggerProvider(log.LevelInfo)
		log.SetProvider(provider)
		t.Cleanup(func() { log.SetProvider(log.NewZerologProvider(os.Stderr, log.LevelInfo)) })

		_, err := Run(context.Background(), cfg, nil)
		require.Error(t, err)

		logger := provider.Logger()
		assert.True(t, logger.ContainsMessage("Stage failed"))
		assert.True(t, logger.ContainsField(log.ComponentKey, "pipeline"))
		assert.True(t, logger.ContainsField(log.StageKey, log.StageLoad))
		assert.True(t, logger.ContainsField(log.ErrorTypeKey, "*fs.PathError"))
		assert.True(t, logger.ContainsField(log.RowsKey, float64(5)), "stations were loaded before the failure")
	})

	t.Run("cancelled", func(t *testing.T) {
		cfg := writeFixtures(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Run(ctx, cfg, nil)
		assert.True(t, errors.Is(err, context.Canceled))
	})

	t.Run("invalid config", func(t *testing.T) {
		cfg := writeFixtures(t)
		cfg.Features.ThetaRatio = 0
		_, err := Run(context.Background(), cfg, nil)
		var verr *errors.ValidationError
		assert.True(t, errors.As(err, &verr))
	})
}

func TestStratifiedSplit(t *testing.T) {
	y := make([]int, 0, 100)
	for i := 0; i < 100; i++ {
		switch {
		case i < 50:
			y = append(y, 1)
		case i < 80:
			y = append(y, 0)
		default:
			y = append(y, 2)
		}
	}

	train, test, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, test, 20)
	assert.Len(t, train, 80)

	counts := map[int]int{}
	for _, i := range test {
		counts[y[i]]++
	}
	assert.Equal(t, map[int]int{0: 6, 1: 10, 2: 4}, counts)

	seen := make(map[int]bool, len(y))
	for _, i := range append(append([]int{}, train...), test...) {
		assert.False(t, seen[i], "index %d used twice", i)
		seen[i] = true
	}
	assert.Len(t, seen, len(y))

	train2, test2, err := StratifiedSplit(y, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, train, train2)
	assert.Equal(t, test, test2)

	_, test3, err := StratifiedSplit(y, 0.2, 7)
	require.NoError(t, err)
	assert.NotEqual(t, test, test3)
}

func TestStratifiedSplitEdgeCases(t *testing.T) {
	_, _, err := StratifiedSplit(nil, 0.2, 1)
	assert.True(t, errors.Is(err, errors.ErrEmptyData))

	_, _, err = StratifiedSplit([]int{0, 1}, 1.5, 1)
	assert.Error(t, err)

	// a single sample cannot be split
	_, _, err = StratifiedSplit([]int{0}, 0.5, 1)
	assert.Error(t, err)

	// a class of two keeps one training row
	train, test, err := StratifiedSplit([]int{0, 0}, 0.9, 1)
	require.NoError(t, err)
	assert.Len(t, train, 1)
	assert.Len(t, test, 1)
}

func TestClassWeights(t *testing.T) {
	w := ClassWeights([]int{0, 0, 0, 1})
	assert.InDelta(t, 0.5, w[0], 1e-12)
	assert.InDelta(t, 1.5, w[3], 1e-12)

	uniform := ClassWeights([]int{2, 1, 0})
	for _, v := range uniform {
		assert.InDelta(t, 1, v, 1e-12)
	}
}
