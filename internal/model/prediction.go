package model

import "fmt"

// RiskLevel buckets a denial probability into three operator-facing tiers.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// RiskLevelFor maps a probability to a risk level.
// Low <= 0.3 < Medium <= 0.6 < High.
func RiskLevelFor(p float64) RiskLevel {
	switch {
	case p > 0.6:
		return RiskHigh
	case p > 0.3:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Prediction is one scored provider.
type Prediction struct {
	NPI            string    `json:"npi"`
	OrgName        string    `json:"org_name,omitempty"`
	PredictedRisk  float64   `json:"predicted_risk"`
	PredictedClass int       `json:"predicted_class"`
	RiskLevel      RiskLevel `json:"risk_level"`
	Interpretation string    `json:"interpretation"`
}

// Interpret renders the standard one-line interpretation for a prediction.
func Interpret(level RiskLevel, p float64) string {
	return fmt.Sprintf("%s risk provider. Probability of issues: %.1f%%", level, p*100)
}

// TopFactor is one feature contribution in a prediction explanation.
type TopFactor struct {
	Feature string  `json:"feature"`
	Impact  float64 `json:"impact"`
}
