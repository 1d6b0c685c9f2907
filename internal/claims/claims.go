// Package claims loads provider claim outcomes and aggregates them to
// per-provider denial statistics for use as training features.
package claims

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Record is one claim outcome row.
type Record struct {
	NPI          string
	DenialStatus int // 0 approved, 1 denied
	Amount       float64
	HasAmount    bool
}

// Aggregate is per-provider claim statistics, joined onto the feature
// table by NPI.
type Aggregate struct {
	NPI          string
	TotalClaims  float64
	TotalDenials float64
	DenialRate   float64
	AvgAmount    float64
	StdAmount    float64
	TotalAmount  float64
	HasAmounts   bool
}

// LoadFile reads a claims CSV from disk.
func LoadFile(ctx context.Context, path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "claims: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Load(ctx, f)
}

// Load reads claim rows from r. NPI and denial_status columns are
// required; denial_status accepts 0/1 or approved/denied strings, with
// anything else treated as approved.
func Load(ctx context.Context, r io.Reader) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "claims: read header")
	}

	colIdx := make(map[string]int, len(header))
	for i, c := range header {
		colIdx[strings.ToLower(strings.TrimSpace(c))] = i
	}
	npiIdx, ok := colIdx["npi"]
	if !ok {
		return nil, eris.New("claims: missing required column NPI")
	}
	statusIdx, ok := colIdx["denial_status"]
	if !ok {
		return nil, eris.New("claims: missing required column denial_status")
	}
	amountIdx, hasAmount := colIdx["claim_amount"]

	var records []Record
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "claims: load cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "claims: read row")
		}
		if npiIdx >= len(row) || statusIdx >= len(row) {
			continue
		}

		rec := Record{
			NPI:          strings.TrimSpace(row[npiIdx]),
			DenialStatus: parseStatus(row[statusIdx]),
		}
		if hasAmount && amountIdx < len(row) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(row[amountIdx]), 64); err == nil {
				rec.Amount = v
				rec.HasAmount = true
			}
		}
		records = append(records, rec)
	}

	zap.L().Info("claims: loaded", zap.Int("rows", len(records)))
	return records, nil
}

// parseStatus maps a denial status cell to 0/1.
func parseStatus(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "denied":
		return 1
	default:
		return 0
	}
}

// AggregateByProvider groups claims by NPI and computes denial and amount
// statistics. Output is sorted by NPI for deterministic downstream runs.
func AggregateByProvider(records []Record) []Aggregate {
	byNPI := make(map[string][]Record)
	for _, r := range records {
		if r.NPI == "" {
			continue
		}
		byNPI[r.NPI] = append(byNPI[r.NPI], r)
	}

	out := make([]Aggregate, 0, len(byNPI))
	for npi, claims := range byNPI {
		agg := Aggregate{NPI: npi, TotalClaims: float64(len(claims))}

		var amounts []float64
		for _, c := range claims {
			if c.DenialStatus == 1 {
				agg.TotalDenials++
			}
			if c.HasAmount {
				amounts = append(amounts, c.Amount)
			}
		}
		agg.DenialRate = agg.TotalDenials / agg.TotalClaims

		if len(amounts) > 0 {
			agg.HasAmounts = true
			agg.AvgAmount = stat.Mean(amounts, nil)
			for _, a := range amounts {
				agg.TotalAmount += a
			}
			if len(amounts) > 1 {
				agg.StdAmount = stat.StdDev(amounts, nil)
			}
		}
		out = append(out, agg)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].NPI < out[j].NPI })

	zap.L().Info("claims: aggregated by provider", zap.Int("providers", len(out)))
	return out
}
