// Package bundle persists trained models as versioned artifact sets: a
// model file, an encoders file, and a metadata file sharing a timestamp
// key. Bundles are immutable once loaded and safe for concurrent reads.
package bundle

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-risk/internal/boost"
	"github.com/sells-group/provider-risk/internal/train"
)

// KeyFormat is the timestamp layout used as the bundle version key.
const KeyFormat = "20060102_150405"

// Metadata describes a trained model without carrying its weights.
type Metadata struct {
	Key           string        `json:"key"`
	CreatedAt     time.Time     `json:"created_at"`
	ModelType     string        `json:"model_type"`
	TargetRule    string        `json:"target_rule"`
	FeatureCols   []string      `json:"feature_cols"`
	Params        boost.Params  `json:"params"`
	TrainMetrics  boost.Metrics `json:"train_metrics"`
	TestMetrics   boost.Metrics `json:"test_metrics"`
	BestIteration int           `json:"best_iteration"`
	BestScore     float64       `json:"best_score"`
	NumTrees      int           `json:"num_trees"`
	TrainRows     int           `json:"train_rows"`
	TestRows      int           `json:"test_rows"`
	SMOTEApplied  bool          `json:"smote_applied"`
}

// Bundle is a complete persisted model: weights, preprocessing state,
// and metadata under one key.
type Bundle struct {
	Model    *boost.Model
	Encoders map[string]*boost.Encoder
	NumFills map[string]float64
	CatFills map[string]string
	Meta     Metadata
}

// encodersFile groups the preprocessing state stored alongside the model.
type encodersFile struct {
	Encoders map[string]*boost.Encoder `json:"encoders"`
	NumFills map[string]float64        `json:"num_fills"`
	CatFills map[string]string         `json:"cat_fills"`
}

// New assembles a bundle from a training result, keyed by now.
func New(res *train.Result, now time.Time) *Bundle {
	key := now.UTC().Format(KeyFormat)
	return &Bundle{
		Model:    res.Model,
		Encoders: res.Dataset.Encoders,
		NumFills: res.Dataset.NumFills,
		CatFills: res.Dataset.CatFills,
		Meta: Metadata{
			Key:           key,
			CreatedAt:     now.UTC(),
			ModelType:     "gradient_boosted_trees",
			TargetRule:    res.TargetRule,
			FeatureCols:   res.Dataset.Cols,
			Params:        res.Params,
			TrainMetrics:  res.TrainMetrics,
			TestMetrics:   res.TestMetrics,
			BestIteration: res.Model.BestIteration,
			BestScore:     res.Model.BestScore,
			NumTrees:      len(res.Model.Trees),
			TrainRows:     len(res.Dataset.TrainX),
			TestRows:      len(res.Dataset.TestX),
			SMOTEApplied:  res.SMOTEApplied,
		},
	}
}

func modelPath(dir, key string) string    { return filepath.Join(dir, "model_"+key+".json") }
func encodersPath(dir, key string) string { return filepath.Join(dir, "encoders_"+key+".json") }
func metadataPath(dir, key string) string { return filepath.Join(dir, "metadata_"+key+".json") }

// Save writes the three bundle files under dir, creating it if needed.
func (b *Bundle) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "bundle: create dir %s", dir)
	}

	for _, f := range []struct {
		path string
		v    any
	}{
		{modelPath(dir, b.Meta.Key), b.Model},
		{encodersPath(dir, b.Meta.Key), encodersFile{
			Encoders: b.Encoders,
			NumFills: b.NumFills,
			CatFills: b.CatFills,
		}},
		{metadataPath(dir, b.Meta.Key), b.Meta},
	} {
		if err := writeJSON(f.path, f.v); err != nil {
			return err
		}
	}

	zap.L().Info("bundle: saved",
		zap.String("key", b.Meta.Key),
		zap.String("dir", dir))
	return nil
}

// Load reads the bundle with the given key from dir.
func Load(dir, key string) (*Bundle, error) {
	b := &Bundle{Model: &boost.Model{}}

	if err := readJSON(modelPath(dir, key), b.Model); err != nil {
		return nil, err
	}

	var enc encodersFile
	if err := readJSON(encodersPath(dir, key), &enc); err != nil {
		return nil, err
	}
	b.Encoders = enc.Encoders
	b.NumFills = enc.NumFills
	b.CatFills = enc.CatFills

	if err := readJSON(metadataPath(dir, key), &b.Meta); err != nil {
		return nil, err
	}

	zap.L().Info("bundle: loaded",
		zap.String("key", key),
		zap.Int("features", len(b.Meta.FeatureCols)),
		zap.Int("trees", len(b.Model.Trees)))
	return b, nil
}

// Latest loads the newest bundle in dir. Returns a configuration error
// when no bundle has been trained yet.
func Latest(dir string) (*Bundle, error) {
	keys, err := Keys(dir)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, eris.Errorf("bundle: no trained model in %s", dir)
	}
	return Load(dir, keys[len(keys)-1])
}

// Keys lists available bundle keys in ascending (oldest first) order.
func Keys(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "bundle: read dir %s", dir)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "metadata_") && strings.HasSuffix(name, ".json") {
			keys = append(keys, strings.TrimSuffix(strings.TrimPrefix(name, "metadata_"), ".json"))
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return eris.Wrapf(err, "bundle: marshal %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "bundle: write %s", path)
	}
	return nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return eris.Wrapf(err, "bundle: read %s", path)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "bundle: parse %s", path)
	}
	return nil
}
