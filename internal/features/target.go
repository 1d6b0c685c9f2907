package features

import (
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Label is the binary target column appended by BuildTarget.
const Label = "likely_denied"

// ColDenialRate is the claims-derived denial-rate column (present only
// when claims aggregates were merged).
const ColDenialRate = "denial_rate"

// denialRateCutoff converts a claims denial rate into a binary label.
const denialRateCutoff = 0.1

// minDeactivationPositives is the minimum positive count for the
// deactivation-history label to be usable for training.
const minDeactivationPositives = 50

// Rule names, recorded so the leakage guard and bundle metadata can state
// how the label was derived.
const (
	RuleClaims       = "claims_denial"
	RuleDeactivation = "deactivation_history"
	RuleMissing      = "missing_critical_fields"
	RuleCompleteness = "low_completeness"
)

// TargetRule is one (predicate, derivation) pair. Rules are evaluated in
// order; the first applicable rule produces the label.
type TargetRule struct {
	Name    string
	Applies func(*Table) bool
	Derive  func(*Table) []float64
}

// TargetRules returns the ordered label-derivation rules:
// real claims signal, then deactivation history (with a minimum positive
// count), then the completeness fallbacks.
func TargetRules() []TargetRule {
	return []TargetRule{
		{
			Name: RuleClaims,
			Applies: func(t *Table) bool {
				return t.Has(ColDenialRate) || t.Has(Label)
			},
			Derive: func(t *Table) []float64 {
				if c := t.Col(Label); c != nil {
					return c.Nums
				}
				rate := t.Col(ColDenialRate)
				out := make([]float64, t.Len())
				for i, v := range rate.Nums {
					if !rate.IsNull(i) && v > denialRateCutoff {
						out[i] = 1
					}
				}
				return out
			},
		},
		{
			Name: RuleDeactivation,
			Applies: func(t *Table) bool {
				c := t.Col(ColHasDeactivation)
				if c == nil {
					return false
				}
				var pos int
				for _, v := range c.Nums {
					if v == 1 {
						pos++
					}
				}
				return pos >= minDeactivationPositives
			},
			Derive: func(t *Table) []float64 {
				src := t.Col(ColHasDeactivation).Nums
				out := make([]float64, len(src))
				copy(out, src)
				return out
			},
		},
		{
			Name:    RuleMissing,
			Applies: func(t *Table) bool { return t.Has(ColMissingCritical) },
			Derive: func(t *Table) []float64 {
				src := t.Col(ColMissingCritical).Nums
				out := make([]float64, len(src))
				copy(out, src)
				return out
			},
		},
		{
			Name:    RuleCompleteness,
			Applies: func(t *Table) bool { return t.Has(ColCompletenessScore) },
			Derive: func(t *Table) []float64 {
				score := t.Col(ColCompletenessScore).Nums
				out := make([]float64, len(score))
				for i, v := range score {
					if v < completenessThreshold {
						out[i] = 1
					}
				}
				return out
			},
		},
	}
}

// BuildTarget selects the label by rule priority, appends it as the Label
// column, and returns the winning rule name. Returns a configuration
// error when no rule applies.
func BuildTarget(t *Table) (string, error) {
	for _, rule := range TargetRules() {
		if !rule.Applies(t) {
			continue
		}

		label := rule.Derive(t)
		var pos int
		for _, v := range label {
			if v == 1 {
				pos++
			}
		}

		if !t.Has(Label) {
			if err := t.AddNum(Label, label, nil); err != nil {
				return "", err
			}
		}

		zap.L().Info("features: target selected",
			zap.String("rule", rule.Name),
			zap.Int("positive", pos),
			zap.Int("total", t.Len()),
		)
		return rule.Name, nil
	}

	return "", eris.New("features: no usable target variable")
}

// deactivationAdjacent are always excluded when the label derives from
// deactivation history: reactivation is a near-perfect proxy for
// deactivation, so exact-equality checks alone would miss it.
var deactivationAdjacent = []string{
	ColIsDeactivated,
	ColHasDeactivation,
	ColIsReactivated,
}

// GuardLeakage removes feature columns that would leak the label:
// any column row-wise identical to it, the deactivation-adjacent set when
// the deactivation rule won, and the completeness inputs when a
// completeness-derived rule won. Returns the dropped column names.
func GuardLeakage(t *Table, ruleName string) []string {
	label := t.Col(Label)

	var drop []string
	for _, name := range t.Columns() {
		if name == Label {
			continue
		}
		if t.Col(name).Equals(label) {
			drop = append(drop, name)
		}
	}

	switch ruleName {
	case RuleDeactivation:
		drop = append(drop, deactivationAdjacent...)
	case RuleMissing, RuleCompleteness:
		// The label is an arrangement of the completeness inputs.
		for _, kf := range keyFields {
			drop = append(drop, kf.name+"_complete")
		}
		drop = append(drop, ColCompletenessScore, ColMissingCritical)
	}

	dropped := t.Drop(drop...)
	if len(dropped) > 0 {
		zap.L().Info("features: excluded leaking columns",
			zap.String("rule", ruleName),
			zap.Strings("columns", dropped),
		)
	}
	return dropped
}
