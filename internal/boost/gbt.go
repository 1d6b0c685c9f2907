package boost

import (
	"math"
	"math/rand"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Model is a trained gradient-boosted classifier. Immutable after
// training, safe for concurrent prediction.
type Model struct {
	Params        Params  `json:"params"`
	Trees         []Tree  `json:"trees"`
	BaseMargin    float64 `json:"base_margin"`
	NumFeatures   int     `json:"num_features"`
	BestIteration int     `json:"best_iteration"`
	BestScore     float64 `json:"best_score"`
}

// Train fits a boosted ensemble on X/y with log-loss gradients, using
// valX/valY for AUC-based early stopping. Rows of X are feature vectors;
// y holds 0/1 labels. Validation data may be empty, disabling early
// stopping.
func Train(X [][]float64, y []float64, valX [][]float64, valY []float64, params Params) (*Model, error) {
	if len(X) == 0 {
		return nil, eris.New("boost: empty training set")
	}
	if len(X) != len(y) {
		return nil, eris.Errorf("boost: %d rows but %d labels", len(X), len(y))
	}

	numFeatures := len(X[0])
	rng := rand.New(rand.NewSource(params.Seed)) //nolint:gosec

	m := &Model{
		Params:      params,
		BaseMargin:  logit(params.BaseScore),
		NumFeatures: numFeatures,
	}

	margins := make([]float64, len(X))
	for i := range margins {
		margins[i] = m.BaseMargin
	}
	valMargins := make([]float64, len(valX))
	for i := range valMargins {
		valMargins[i] = m.BaseMargin
	}

	grad := make([]float64, len(X))
	hess := make([]float64, len(X))
	valProbs := make([]float64, len(valX))

	best := -1
	bestScore := math.Inf(-1)
	sinceBest := 0

	for round := 0; round < params.NumRounds; round++ {
		for i := range X {
			p := sigmoid(margins[i])
			w := 1.0
			if y[i] == 1 {
				w = params.ScalePosWeight
			}
			grad[i] = w * (p - y[i])
			hess[i] = w * p * (1 - p)
		}

		rows := sampleRows(len(X), params.Subsample, rng)
		feats := sampleFeatures(numFeatures, params.ColsampleByTree, rng)

		b := &treeBuilder{X: X, grad: grad, hess: hess, features: feats, params: params}
		tree := b.build(rows)
		m.Trees = append(m.Trees, tree)

		for i := range X {
			margins[i] += tree.Predict(X[i])
		}

		if len(valX) == 0 {
			continue
		}
		for i := range valX {
			valMargins[i] += tree.Predict(valX[i])
			valProbs[i] = sigmoid(valMargins[i])
		}
		auc := ROCAUC(valY, valProbs)

		if auc > bestScore {
			bestScore = auc
			best = round
			sinceBest = 0
		} else {
			sinceBest++
			if params.EarlyStoppingRounds > 0 && sinceBest >= params.EarlyStoppingRounds {
				zap.L().Info("boost: early stopping",
					zap.Int("round", round),
					zap.Int("best_iteration", best),
					zap.Float64("best_auc", bestScore))
				break
			}
		}
	}

	if best >= 0 {
		m.BestIteration = best
		m.BestScore = bestScore
		m.Trees = m.Trees[:best+1]
	} else {
		m.BestIteration = len(m.Trees) - 1
	}

	zap.L().Info("boost: trained",
		zap.Int("trees", len(m.Trees)),
		zap.Int("features", numFeatures),
		zap.Int("rows", len(X)))
	return m, nil
}

// PredictMargin returns the raw additive score for one feature vector.
func (m *Model) PredictMargin(x []float64) float64 {
	margin := m.BaseMargin
	for i := range m.Trees {
		margin += m.Trees[i].Predict(x)
	}
	return margin
}

// PredictProb returns the positive-class probability for one vector.
func (m *Model) PredictProb(x []float64) float64 {
	return sigmoid(m.PredictMargin(x))
}

// PredictProbs scores a batch of feature vectors.
func (m *Model) PredictProbs(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range X {
		out[i] = m.PredictProb(X[i])
	}
	return out
}

// sampleRows draws a fraction of row indices without replacement.
func sampleRows(n int, fraction float64, rng *rand.Rand) []int {
	k := int(fraction * float64(n))
	if k < 1 {
		k = 1
	}
	if k >= n {
		rows := make([]int, n)
		for i := range rows {
			rows[i] = i
		}
		return rows
	}
	perm := rng.Perm(n)
	return perm[:k]
}

// sampleFeatures draws a fraction of feature indices without
// replacement, keeping them sorted for deterministic split scans.
func sampleFeatures(n int, fraction float64, rng *rand.Rand) []int {
	feats := sampleRows(n, fraction, rng)
	for i := 1; i < len(feats); i++ {
		for j := i; j > 0 && feats[j] < feats[j-1]; j-- {
			feats[j], feats[j-1] = feats[j-1], feats[j]
		}
	}
	return feats
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}
