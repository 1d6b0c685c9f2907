package mrf

import (
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const inNetworkDoc = `{
  "in_network": [
    {
      "billing_code": "99213",
      "billing_code_type": "CPT",
      "negotiated_rates": [
        {
          "provider_groups": [{"npi": [1000000001, 1000000002]}],
          "negotiated_prices": [
            {"negotiated_rate": 100.0, "negotiated_type": "negotiated"},
            {"negotiated_rate": 120.0, "negotiated_type": "negotiated"}
          ]
        }
      ]
    },
    {
      "billing_code": "99214",
      "billing_code_type": "CPT",
      "negotiated_rates": [
        {
          "provider_groups": [{"npi": [1000000001]}],
          "negotiated_prices": [{"negotiated_rate": 150.0, "negotiated_type": "negotiated"}]
        }
      ]
    }
  ]
}`

func TestParse_Flattens(t *testing.T) {
	records, err := Parse(context.Background(), strings.NewReader(inNetworkDoc))
	require.NoError(t, err)
	require.Len(t, records, 5)

	assert.Equal(t, RateRecord{NPI: "1000000001", BillingCode: "99213", Rate: 100.0}, records[0])
	assert.Equal(t, RateRecord{NPI: "1000000002", BillingCode: "99213", Rate: 120.0}, records[3])
	assert.Equal(t, RateRecord{NPI: "1000000001", BillingCode: "99214", Rate: 150.0}, records[4])
}

func TestParse_BadJSON(t *testing.T) {
	_, err := Parse(context.Background(), strings.NewReader("{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestParseFile_Gzip(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	_, err := gz.Write([]byte(inNetworkDoc))
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	path := filepath.Join(t.TempDir(), "in_network.json.gz")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	records, err := ParseFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, records, 5)
}

func TestParseFile_Missing(t *testing.T) {
	_, err := ParseFile(context.Background(), filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestAggregateByProvider(t *testing.T) {
	records := []RateRecord{
		{NPI: "1000000001", BillingCode: "99213", Rate: 100},
		{NPI: "1000000001", BillingCode: "99213", Rate: 120},
		{NPI: "1000000001", BillingCode: "99214", Rate: 150},
		{NPI: "1000000002", BillingCode: "99213", Rate: 80},
		{NPI: "", Rate: 999},
	}

	aggs := AggregateByProvider(records)
	require.Len(t, aggs, 2)

	a := aggs[0]
	assert.Equal(t, "1000000001", a.NPI)
	assert.Equal(t, 3.0, a.RateTotal)
	assert.Equal(t, 2.0, a.UniqueServices)
	assert.InDelta(t, 123.333, a.RateAvg, 0.001)
	assert.Equal(t, 100.0, a.RateMin)
	assert.Equal(t, 150.0, a.RateMax)
	assert.Greater(t, a.RateStd, 0.0)
	assert.InDelta(t, a.RateStd/a.RateAvg, a.RateCV, 1e-9)
	assert.Equal(t, 1.0, a.InNetwork)

	b := aggs[1]
	assert.Equal(t, "1000000002", b.NPI)
	assert.Equal(t, 0.0, b.RateStd)
	assert.Equal(t, 0.0, b.RateCV)
	assert.Equal(t, 1.0, b.InNetwork)
}
