package features

import (
	"go.uber.org/zap"

	"github.com/sells-group/provider-risk/internal/claims"
	"github.com/sells-group/provider-risk/internal/mrf"
)

// Claim-statistics column names added by MergeClaims. ColDenialRate is
// declared alongside the target rules in target.go.
const (
	ColTotalClaims  = "total_claims"
	ColTotalDenials = "total_denials"
	ColAvgClaimAmt  = "avg_claim_amount"
	ColStdClaimAmt  = "std_claim_amount"
	ColTotalClaimed = "total_claimed_amount"
)

// Negotiated-rate column names added by MergeRates.
const (
	ColRateTotal      = "rate_total"
	ColRateUniqueSvcs = "rate_unique_services"
	ColRateAvg        = "rate_avg"
	ColRateStd        = "rate_std"
	ColRateMin        = "rate_min"
	ColRateMax        = "rate_max"
	ColRateCV         = "rate_cv"
	ColRateInNetwork  = "rate_in_network"
)

// MergeClaims left-joins per-provider claim statistics onto the table.
// Providers without claims get 0 in every claim column. Fails when the
// table already carries a claim column.
func MergeClaims(t *Table, aggs []claims.Aggregate) error {
	byNPI := make(map[string]claims.Aggregate, len(aggs))
	for _, a := range aggs {
		byNPI[a.NPI] = a
	}

	n := t.Len()
	cols := map[string][]float64{
		ColTotalClaims:  make([]float64, n),
		ColTotalDenials: make([]float64, n),
		ColDenialRate:   make([]float64, n),
		ColAvgClaimAmt:  make([]float64, n),
		ColStdClaimAmt:  make([]float64, n),
		ColTotalClaimed: make([]float64, n),
	}

	matched := 0
	for i, npi := range t.NPIs {
		a, ok := byNPI[npi]
		if !ok {
			continue
		}
		matched++
		cols[ColTotalClaims][i] = a.TotalClaims
		cols[ColTotalDenials][i] = a.TotalDenials
		cols[ColDenialRate][i] = a.DenialRate
		cols[ColAvgClaimAmt][i] = a.AvgAmount
		cols[ColStdClaimAmt][i] = a.StdAmount
		cols[ColTotalClaimed][i] = a.TotalAmount
	}

	for _, name := range []string{
		ColTotalClaims, ColTotalDenials, ColDenialRate,
		ColAvgClaimAmt, ColStdClaimAmt, ColTotalClaimed,
	} {
		if err := t.AddNum(name, cols[name], nil); err != nil {
			return err
		}
	}

	zap.L().Info("features: merged claim statistics",
		zap.Int("providers", n), zap.Int("matched", matched))
	return nil
}

// MergeRates left-joins per-provider negotiated-rate statistics onto the
// table. Providers absent from the rate file get 0 everywhere, including
// the in-network indicator.
func MergeRates(t *Table, aggs []mrf.Aggregate) error {
	byNPI := make(map[string]mrf.Aggregate, len(aggs))
	for _, a := range aggs {
		byNPI[a.NPI] = a
	}

	n := t.Len()
	cols := map[string][]float64{
		ColRateTotal:      make([]float64, n),
		ColRateUniqueSvcs: make([]float64, n),
		ColRateAvg:        make([]float64, n),
		ColRateStd:        make([]float64, n),
		ColRateMin:        make([]float64, n),
		ColRateMax:        make([]float64, n),
		ColRateCV:         make([]float64, n),
		ColRateInNetwork:  make([]float64, n),
	}

	matched := 0
	for i, npi := range t.NPIs {
		a, ok := byNPI[npi]
		if !ok {
			continue
		}
		matched++
		cols[ColRateTotal][i] = a.RateTotal
		cols[ColRateUniqueSvcs][i] = a.UniqueServices
		cols[ColRateAvg][i] = a.RateAvg
		cols[ColRateStd][i] = a.RateStd
		cols[ColRateMin][i] = a.RateMin
		cols[ColRateMax][i] = a.RateMax
		cols[ColRateCV][i] = a.RateCV
		cols[ColRateInNetwork][i] = a.InNetwork
	}

	for _, name := range []string{
		ColRateTotal, ColRateUniqueSvcs, ColRateAvg, ColRateStd,
		ColRateMin, ColRateMax, ColRateCV, ColRateInNetwork,
	} {
		if err := t.AddNum(name, cols[name], nil); err != nil {
			return err
		}
	}

	zap.L().Info("features: merged negotiated-rate statistics",
		zap.Int("providers", n), zap.Int("matched", matched))
	return nil
}
