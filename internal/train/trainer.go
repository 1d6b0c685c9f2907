package train

import (
	"math/rand"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-risk/internal/boost"
	"github.com/sells-group/provider-risk/internal/features"
)

// smoteTargetRatio is the positive-class share SMOTE oversamples toward.
const smoteTargetRatio = 0.05

// smoteWeightDamping scales the class weight down once synthetic
// positives have been added.
const smoteWeightDamping = 0.2

// Options control a training run.
type Options struct {
	Seed            int64
	TestFraction    float64
	ValFraction     float64
	UseSMOTE        bool
	UseClassWeights bool
}

// DefaultOptions returns the standard training configuration.
func DefaultOptions() Options {
	return Options{
		Seed:            42,
		TestFraction:    0.2,
		ValFraction:     0.2,
		UseSMOTE:        true,
		UseClassWeights: true,
	}
}

// Result is a completed training run.
type Result struct {
	Model        *boost.Model
	Dataset      *Dataset
	TargetRule   string
	Params       boost.Params
	TrainMetrics boost.Metrics
	TestMetrics  boost.Metrics
	SMOTEApplied bool
}

// Run derives the target, guards against leakage, prepares matrices, and
// fits the boosted model with imbalance handling. The table is modified
// in place by target derivation and leakage exclusion.
func Run(tbl *features.Table, opts Options) (*Result, error) {
	rule, err := features.BuildTarget(tbl)
	if err != nil {
		return nil, err
	}
	features.GuardLeakage(tbl, rule)

	ds, err := Prepare(tbl, opts.Seed, opts.TestFraction, opts.ValFraction)
	if err != nil {
		return nil, err
	}
	return Fit(ds, rule, opts)
}

// Fit trains on an already-prepared dataset.
func Fit(ds *Dataset, rule string, opts Options) (*Result, error) {
	var pos, neg float64
	for _, v := range ds.TrainY {
		if v == 1 {
			pos++
		} else {
			neg++
		}
	}
	if pos == 0 {
		return nil, eris.New("train: no positive samples in training split")
	}

	params := boost.DefaultParams()
	params.Seed = opts.Seed
	if opts.UseClassWeights {
		params.ScalePosWeight = neg / pos
	}

	trainX, trainY := ds.TrainX, ds.TrainY
	smoteApplied := false
	if opts.UseSMOTE {
		rng := rand.New(rand.NewSource(opts.Seed)) //nolint:gosec
		sx, sy, err := boost.SMOTE(trainX, trainY, smoteTargetRatio, rng)
		if err != nil {
			// Class weights alone still handle the imbalance.
			zap.L().Warn("train: smote failed, falling back to class weights",
				zap.Error(err))
		} else {
			trainX, trainY = sx, sy
			smoteApplied = true
			if opts.UseClassWeights {
				params.ScalePosWeight = params.ScalePosWeight * smoteWeightDamping
				if params.ScalePosWeight < 1 {
					params.ScalePosWeight = 1
				}
			}
		}
	}

	m, err := boost.Train(trainX, trainY, ds.ValX, ds.ValY, params)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Model:        m,
		Dataset:      ds,
		TargetRule:   rule,
		Params:       params,
		TrainMetrics: boost.Evaluate(trainY, m.PredictProbs(trainX)),
		TestMetrics:  boost.Evaluate(ds.TestY, m.PredictProbs(ds.TestX)),
		SMOTEApplied: smoteApplied,
	}

	zap.L().Info("train: completed",
		zap.String("target_rule", rule),
		zap.Bool("smote", smoteApplied),
		zap.Float64("scale_pos_weight", params.ScalePosWeight),
		zap.Float64("test_roc_auc", res.TestMetrics.ROCAUC),
		zap.Float64("test_f1", res.TestMetrics.F1),
	)
	return res, nil
}
