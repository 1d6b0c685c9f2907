package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/provider-risk/internal/mrf"
)

func TestHospitalType(t *testing.T) {
	assert.Equal(t, "General_Acute_Care", HospitalType("282N00000X"))
	assert.Equal(t, "Psychiatric", HospitalType("283Q00000X"))
	assert.Equal(t, "Rehabilitation", HospitalType("2843X0000X"))
	assert.Equal(t, OtherCategory, HospitalType("207R00000X"))
	assert.Equal(t, OtherCategory, HospitalType(""))
	assert.Equal(t, OtherCategory, HospitalType("28"))
}

func TestHospitalType_Total(t *testing.T) {
	// Every input maps to some category; nothing escapes the mapping.
	for _, code := range []string{"282N00000X", "XXXXXXXX", "", "1", "282V00000X"} {
		assert.NotEmpty(t, HospitalType(code))
	}
}

func TestRegion(t *testing.T) {
	assert.Equal(t, "West", Region("CA"))
	assert.Equal(t, "South", Region("TX"))
	assert.Equal(t, "Northeast", Region("NY"))
	assert.Equal(t, "Midwest", Region("WI"))
	assert.Equal(t, OtherCategory, Region("PR"))
	assert.Equal(t, OtherCategory, Region(""))
}

func TestMergeRates_ZeroFill(t *testing.T) {
	tbl := NewTable([]string{"1000000001", "1000000002"})

	require.NoError(t, MergeRates(tbl, []mrf.Aggregate{{
		NPI:            "1000000002",
		RateTotal:      4,
		UniqueServices: 2,
		RateAvg:        150,
		RateStd:        25,
		RateMin:        100,
		RateMax:        200,
		RateCV:         0.1667,
		InNetwork:      1,
	}}))

	require.True(t, tbl.Has(ColRateInNetwork))
	assert.Equal(t, []float64{0, 1}, tbl.Col(ColRateInNetwork).Nums)
	assert.Equal(t, []float64{0, 4}, tbl.Col(ColRateTotal).Nums)
	assert.Equal(t, []float64{0, 150}, tbl.Col(ColRateAvg).Nums)
}

func TestMergeRates_DuplicateColumn(t *testing.T) {
	tbl := NewTable([]string{"1000000001"})

	require.NoError(t, MergeRates(tbl, nil))
	err := MergeRates(tbl, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate column")
}
