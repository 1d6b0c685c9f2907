package bundle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-risk/internal/boost"
	"github.com/sells-group/provider-risk/internal/train"
)

func trainedResult(t *testing.T) *train.Result {
	t.Helper()

	X := make([][]float64, 120)
	y := make([]float64, 120)
	for i := range X {
		X[i] = []float64{float64(i), float64(i % 7)}
		if i >= 90 {
			y[i] = 1
		}
	}

	params := boost.DefaultParams()
	params.NumRounds = 5
	m, err := boost.Train(X, y, nil, nil, params)
	require.NoError(t, err)

	return &train.Result{
		Model: m,
		Dataset: &train.Dataset{
			Cols:     []string{"days_active", "region"},
			Encoders: map[string]*boost.Encoder{"region": boost.NewEncoder([]string{"West", "South"})},
			NumFills: map[string]float64{"days_active": 12.5},
			CatFills: map[string]string{"region": "West"},
			TrainX:   X,
			TrainY:   y,
		},
		TargetRule:   "deactivation_history",
		Params:       params,
		TrainMetrics: boost.Metrics{Accuracy: 0.9, ROCAUC: 0.95},
		TestMetrics:  boost.Metrics{Accuracy: 0.85, ROCAUC: 0.9},
		SMOTEApplied: true,
	}
}

func TestBundle_SaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	res := trainedResult(t)

	created := time.Date(2026, time.February, 10, 14, 30, 5, 0, time.UTC)
	b := New(res, created)
	assert.Equal(t, "20260210_143005", b.Meta.Key)
	require.NoError(t, b.Save(dir))

	loaded, err := Load(dir, b.Meta.Key)
	require.NoError(t, err)

	assert.Equal(t, b.Meta, loaded.Meta)
	assert.Equal(t, []string{"days_active", "region"}, loaded.Meta.FeatureCols)
	assert.Equal(t, "deactivation_history", loaded.Meta.TargetRule)
	assert.Equal(t, 12.5, loaded.NumFills["days_active"])
	assert.Equal(t, "West", loaded.CatFills["region"])
	assert.True(t, loaded.Meta.SMOTEApplied)

	// Encoders survive the round trip including unseen-value fallback.
	enc := loaded.Encoders["region"]
	require.NotNil(t, enc)
	assert.Equal(t, 1.0, enc.Encode("West"))
	assert.Equal(t, 0.0, enc.Encode("Atlantis"))

	// The restored model scores identically.
	probe := []float64{50, 3}
	assert.InDelta(t, res.Model.PredictProb(probe), loaded.Model.PredictProb(probe), 1e-12)
}

func TestLatest_PicksNewest(t *testing.T) {
	dir := t.TempDir()
	res := trainedResult(t)

	older := New(res, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, older.Save(dir))
	newer := New(res, time.Date(2026, time.February, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, newer.Save(dir))

	latest, err := Latest(dir)
	require.NoError(t, err)
	assert.Equal(t, newer.Meta.Key, latest.Meta.Key)

	keys, err := Keys(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{older.Meta.Key, newer.Meta.Key}, keys)
}

func TestLatest_EmptyDir(t *testing.T) {
	_, err := Latest(t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no trained model")
}

func TestLoad_MissingKey(t *testing.T) {
	_, err := Load(t.TempDir(), "20260101_000000")
	assert.Error(t, err)
}
