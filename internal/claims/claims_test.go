package claims

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const claimsHeader = "NPI,denial_status,claim_amount\n"

func TestLoad_Basic(t *testing.T) {
	csv := claimsHeader +
		"1000000001,0,120.50\n" +
		"1000000001,denied,80.00\n" +
		"1000000002,approved,\n"

	records, err := Load(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "1000000001", records[0].NPI)
	assert.Equal(t, 0, records[0].DenialStatus)
	assert.True(t, records[0].HasAmount)
	assert.Equal(t, 120.50, records[0].Amount)

	assert.Equal(t, 1, records[1].DenialStatus)

	assert.Equal(t, 0, records[2].DenialStatus)
	assert.False(t, records[2].HasAmount)
}

func TestLoad_MissingRequiredColumns(t *testing.T) {
	_, err := Load(context.Background(), strings.NewReader("npi,amount\n1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denial_status")

	_, err = Load(context.Background(), strings.NewReader("denial_status\n1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NPI")
}

func TestLoad_HeaderCaseInsensitive(t *testing.T) {
	csv := "npi,Denial_Status\n1000000001,1\n"
	records, err := Load(context.Background(), strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1, records[0].DenialStatus)
}

func TestLoad_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Load(ctx, strings.NewReader(claimsHeader+"1,0,1\n"))
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	assert.Equal(t, 1, parseStatus("1"))
	assert.Equal(t, 1, parseStatus("Denied"))
	assert.Equal(t, 0, parseStatus("0"))
	assert.Equal(t, 0, parseStatus("approved"))
	assert.Equal(t, 0, parseStatus("pending"))
	assert.Equal(t, 0, parseStatus(""))
}

func TestAggregateByProvider(t *testing.T) {
	records := []Record{
		{NPI: "2", DenialStatus: 0, Amount: 100, HasAmount: true},
		{NPI: "2", DenialStatus: 1, Amount: 200, HasAmount: true},
		{NPI: "2", DenialStatus: 1, Amount: 300, HasAmount: true},
		{NPI: "1", DenialStatus: 0},
		{NPI: "", DenialStatus: 1},
	}

	aggs := AggregateByProvider(records)
	require.Len(t, aggs, 2)

	// Sorted by NPI.
	assert.Equal(t, "1", aggs[0].NPI)
	assert.Equal(t, 1.0, aggs[0].TotalClaims)
	assert.Equal(t, 0.0, aggs[0].DenialRate)
	assert.False(t, aggs[0].HasAmounts)

	agg := aggs[1]
	assert.Equal(t, "2", agg.NPI)
	assert.Equal(t, 3.0, agg.TotalClaims)
	assert.Equal(t, 2.0, agg.TotalDenials)
	assert.InDelta(t, 2.0/3.0, agg.DenialRate, 1e-9)
	assert.Equal(t, 200.0, agg.AvgAmount)
	assert.Equal(t, 600.0, agg.TotalAmount)
	assert.InDelta(t, 100.0, agg.StdAmount, 1e-9)
	assert.True(t, agg.HasAmounts)
}
