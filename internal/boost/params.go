// Package boost implements gradient-boosted decision trees for binary
// classification with a logistic objective, plus the encoding, sampling,
// and evaluation helpers the trainer needs around them.
package boost

// Params are the boosting hyperparameters.
type Params struct {
	NumRounds           int     `json:"num_rounds"`
	MaxDepth            int     `json:"max_depth"`
	LearningRate        float64 `json:"learning_rate"`
	Subsample           float64 `json:"subsample"`
	ColsampleByTree     float64 `json:"colsample_bytree"`
	MinChildWeight      float64 `json:"min_child_weight"`
	Gamma               float64 `json:"gamma"`
	Alpha               float64 `json:"alpha"`
	Lambda              float64 `json:"lambda"`
	ScalePosWeight      float64 `json:"scale_pos_weight"`
	EarlyStoppingRounds int     `json:"early_stopping_rounds"`
	BaseScore           float64 `json:"base_score"`
	Seed                int64   `json:"seed"`
}

// DefaultParams returns the tuned production configuration.
func DefaultParams() Params {
	return Params{
		NumRounds:           200,
		MaxDepth:            6,
		LearningRate:        0.1,
		Subsample:           0.8,
		ColsampleByTree:     0.8,
		MinChildWeight:      3,
		Gamma:               0.1,
		Alpha:               0.1,
		Lambda:              1.0,
		ScalePosWeight:      1.0,
		EarlyStoppingRounds: 20,
		BaseScore:           0.5,
		Seed:                42,
	}
}
