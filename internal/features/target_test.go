package features

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-risk/internal/claims"
	"github.com/sells-group/provider-risk/internal/model"
)

func TestBuildTarget_ClaimsRuleWins(t *testing.T) {
	tbl := NewTable([]string{"1", "2", "3"})
	require.NoError(t, tbl.AddNum(ColDenialRate, []float64{0.05, 0.10, 0.25}, nil))
	require.NoError(t, tbl.AddNum(ColMissingCritical, []float64{1, 1, 1}, nil))

	rule, err := BuildTarget(tbl)
	require.NoError(t, err)
	assert.Equal(t, RuleClaims, rule)

	// Strictly greater than the cutoff.
	assert.Equal(t, []float64{0, 0, 1}, tbl.Col(Label).Nums)
}

func TestBuildTarget_ExistingLabelPassesThrough(t *testing.T) {
	tbl := NewTable([]string{"1", "2"})
	require.NoError(t, tbl.AddNum(Label, []float64{1, 0}, nil))

	rule, err := BuildTarget(tbl)
	require.NoError(t, err)
	assert.Equal(t, RuleClaims, rule)
	assert.Equal(t, []float64{1, 0}, tbl.Col(Label).Nums)
}

func TestBuildTarget_DeactivationNeedsMinimumPositives(t *testing.T) {
	n := 100
	npis := make([]string, n)
	deact := make([]float64, n)
	missing := make([]float64, n)
	for i := range npis {
		npis[i] = fmt.Sprintf("%010d", i)
		if i < minDeactivationPositives-1 {
			deact[i] = 1
		}
	}

	tbl := NewTable(npis)
	require.NoError(t, tbl.AddNum(ColHasDeactivation, deact, nil))
	require.NoError(t, tbl.AddNum(ColMissingCritical, missing, nil))

	// 49 positives: deactivation rule skipped, falls through.
	rule, err := BuildTarget(tbl)
	require.NoError(t, err)
	assert.Equal(t, RuleMissing, rule)
}

func TestBuildTarget_CompletenessFallback(t *testing.T) {
	tbl := NewTable([]string{"1", "2"})
	require.NoError(t, tbl.AddNum(ColCompletenessScore, []float64{0.9, 0.5}, nil))

	rule, err := BuildTarget(tbl)
	require.NoError(t, err)
	assert.Equal(t, RuleCompleteness, rule)
	assert.Equal(t, []float64{0, 1}, tbl.Col(Label).Nums)
}

func TestBuildTarget_NoUsableTarget(t *testing.T) {
	tbl := NewTable([]string{"1"})
	require.NoError(t, tbl.AddNum("unrelated", []float64{1}, nil))

	_, err := BuildTarget(tbl)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no usable target variable")
}

func TestGuardLeakage_DropsIdenticalColumns(t *testing.T) {
	tbl := NewTable([]string{"1", "2", "3"})
	require.NoError(t, tbl.AddNum("copy_of_label", []float64{1, 0, 1}, nil))
	require.NoError(t, tbl.AddNum("independent", []float64{0, 0, 1}, nil))
	require.NoError(t, tbl.AddNum(Label, []float64{1, 0, 1}, nil))

	dropped := GuardLeakage(tbl, RuleClaims)
	assert.Equal(t, []string{"copy_of_label"}, dropped)
	assert.True(t, tbl.Has("independent"))
	assert.True(t, tbl.Has(Label))
}

// A registry slice with enough deactivation history to train on: the
// deactivation rule is selected and every column that restates
// deactivation status is excluded from the feature set.
func TestTargetPipeline_DeactivationScenario(t *testing.T) {
	now := time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	deactDate := time.Date(2023, time.May, 1, 0, 0, 0, 0, time.UTC)

	records := make([]model.ProviderRecord, 1000)
	for i := range records {
		rec := completeRecord(fmt.Sprintf("%010d", i))
		if i < 60 {
			rec.DeactivationDate = &deactDate
			rec.DeactivationCode = "DT"
		}
		records[i] = rec
	}

	tbl, err := Build(records, now)
	require.NoError(t, err)

	rule, err := BuildTarget(tbl)
	require.NoError(t, err)
	assert.Equal(t, RuleDeactivation, rule)

	var pos int
	for _, v := range tbl.Col(Label).Nums {
		if v == 1 {
			pos++
		}
	}
	assert.Equal(t, 60, pos)

	GuardLeakage(tbl, rule)

	assert.False(t, tbl.Has(ColIsDeactivated))
	assert.False(t, tbl.Has(ColHasDeactivation))
	assert.False(t, tbl.Has(ColIsReactivated))
	assert.True(t, tbl.Has(Label))

	label := tbl.Col(Label)
	for _, name := range tbl.Columns() {
		if name == Label {
			continue
		}
		assert.False(t, tbl.Col(name).Equals(label), "column %s leaks the label", name)
	}
}

func TestGuardLeakage_CompletenessRuleDropsInputs(t *testing.T) {
	records := []model.ProviderRecord{
		completeRecord("1000000001"),
		{NPI: "1000000002", OrgName: "BARE LLC"},
	}
	tbl, err := Build(records, time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	rule, err := BuildTarget(tbl)
	require.NoError(t, err)
	assert.Equal(t, RuleMissing, rule)

	GuardLeakage(tbl, rule)
	assert.False(t, tbl.Has(ColCompletenessScore))
	assert.False(t, tbl.Has(ColMissingCritical))
	for _, kf := range keyFields {
		assert.False(t, tbl.Has(kf.name+"_complete"), "%s_complete kept", kf.name)
	}
}

func TestMergeClaims_ZeroFillAndPriority(t *testing.T) {
	tbl := NewTable([]string{"1000000001", "1000000002"})
	require.NoError(t, tbl.AddNum(ColMissingCritical, []float64{0, 1}, nil))

	require.NoError(t, MergeClaims(tbl, []claims.Aggregate{{
		NPI:          "1000000001",
		TotalClaims:  10,
		TotalDenials: 3,
		DenialRate:   0.3,
	}}))

	assert.Equal(t, []float64{10, 0}, tbl.Col(ColTotalClaims).Nums)
	assert.Equal(t, []float64{0.3, 0}, tbl.Col(ColDenialRate).Nums)

	// Claims signal now outranks the completeness fallback.
	rule, err := BuildTarget(tbl)
	require.NoError(t, err)
	assert.Equal(t, RuleClaims, rule)
	assert.Equal(t, []float64{1, 0}, tbl.Col(Label).Nums)
}
