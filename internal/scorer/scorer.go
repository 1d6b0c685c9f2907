// Package scorer applies a trained bundle to stored provider features
// and to raw feature maps, reproducing the training-time preprocessing
// exactly.
package scorer

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-risk/internal/bundle"
	"github.com/sells-group/provider-risk/internal/model"
	"github.com/sells-group/provider-risk/internal/store"
)

// DefaultTopFactors is the number of contribution factors reported per
// prediction.
const DefaultTopFactors = 5

// Scorer scores providers against one immutable bundle. Safe for
// concurrent use.
type Scorer struct {
	b  *bundle.Bundle
	st store.Store
}

// New creates a scorer over a loaded bundle and feature store.
func New(b *bundle.Bundle, st store.Store) *Scorer {
	return &Scorer{b: b, st: st}
}

// Bundle returns the underlying model bundle.
func (s *Scorer) Bundle() *bundle.Bundle { return s.b }

// FeatureScore is a prediction from a raw feature map.
type FeatureScore struct {
	Probability float64           `json:"denial_probability"`
	TopFactors  []model.TopFactor `json:"top_factors"`
}

// ScoreNPIs scores the given providers from stored features. NPIs
// without stored features are skipped: callers receive an empty slice,
// never a fabricated probability.
func (s *Scorer) ScoreNPIs(ctx context.Context, npis []string) ([]model.Prediction, error) {
	rows, err := s.st.GetFeatures(ctx, npis)
	if err != nil {
		return nil, err
	}

	preds := make([]model.Prediction, 0, len(rows))
	for i := range rows {
		vec := s.vectorizeStored(&rows[i])
		p := s.b.Model.PredictProb(vec)

		level := model.RiskLevelFor(p)
		pred := model.Prediction{
			NPI:            rows[i].NPI,
			OrgName:        rows[i].OrgName,
			PredictedRisk:  p,
			RiskLevel:      level,
			Interpretation: model.Interpret(level, p),
		}
		if p >= 0.5 {
			pred.PredictedClass = 1
		}
		preds = append(preds, pred)
	}

	zap.L().Debug("scorer: scored providers",
		zap.Int("requested", len(npis)),
		zap.Int("scored", len(preds)))
	return preds, nil
}

// ScoreFeatures scores a raw numeric feature map vectorized against the
// bundle's pinned column order. Names absent from the map contribute
// 0.0; names outside the training columns are ignored.
func (s *Scorer) ScoreFeatures(features map[string]float64, topK int) (*FeatureScore, error) {
	if len(features) == 0 {
		return nil, eris.New("scorer: empty feature map")
	}
	if topK <= 0 {
		topK = DefaultTopFactors
	}

	vec := s.VectorizeMap(features)
	contribs, _ := s.b.Model.Contributions(vec)

	factors := make([]model.TopFactor, len(contribs))
	for i, c := range contribs {
		factors[i] = model.TopFactor{Feature: s.b.Meta.FeatureCols[i], Impact: c}
	}
	sort.Slice(factors, func(i, j int) bool {
		return abs(factors[i].Impact) > abs(factors[j].Impact)
	})
	if topK > len(factors) {
		topK = len(factors)
	}

	return &FeatureScore{
		Probability: s.b.Model.PredictProb(vec),
		TopFactors:  factors[:topK],
	}, nil
}

// VectorizeMap orders a raw feature map by the bundle's feature columns,
// filling absent names with 0.0.
func (s *Scorer) VectorizeMap(features map[string]float64) []float64 {
	vec := make([]float64, len(s.b.Meta.FeatureCols))
	for i, name := range s.b.Meta.FeatureCols {
		vec[i] = features[name]
	}
	return vec
}

// vectorizeStored converts a stored feature row to the model's input
// space: recorded column order, categorical encoders with unseen values
// collapsing to 0, and the training-time fill values for anything
// missing.
func (s *Scorer) vectorizeStored(row *store.ProviderFeatures) []float64 {
	vec := make([]float64, len(s.b.Meta.FeatureCols))
	for i, name := range s.b.Meta.FeatureCols {
		if enc, ok := s.b.Encoders[name]; ok {
			v := row.Categorical[name]
			if v == "" {
				v = s.b.CatFills[name]
			}
			vec[i] = enc.Encode(v)
			continue
		}
		if v, ok := row.Numeric[name]; ok {
			vec[i] = v
		} else {
			vec[i] = s.b.NumFills[name]
		}
	}
	return vec
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
