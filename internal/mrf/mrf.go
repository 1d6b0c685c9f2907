// Package mrf parses machine-readable in-network rate files and reduces
// them to per-provider negotiated-rate statistics.
package mrf

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RateRecord is one flattened negotiated rate for one provider.
type RateRecord struct {
	NPI         string
	BillingCode string
	Rate        float64
}

// Aggregate is per-provider negotiated-rate statistics.
type Aggregate struct {
	NPI            string
	RateTotal      float64
	UniqueServices float64
	RateAvg        float64
	RateStd        float64
	RateMin        float64
	RateMax        float64
	RateCV         float64
	InNetwork      float64
}

type inNetworkFile struct {
	InNetwork []inNetworkItem `json:"in_network"`
}

type inNetworkItem struct {
	BillingCode     string           `json:"billing_code"`
	BillingCodeType string           `json:"billing_code_type"`
	NegotiatedRates []negotiatedRate `json:"negotiated_rates"`
}

type negotiatedRate struct {
	ProviderGroups   []providerGroup   `json:"provider_groups"`
	NegotiatedPrices []negotiatedPrice `json:"negotiated_prices"`
}

type providerGroup struct {
	NPIs []json.Number `json:"npi"`
}

type negotiatedPrice struct {
	NegotiatedRate float64 `json:"negotiated_rate"`
	NegotiatedType string  `json:"negotiated_type"`
}

// ParseFile reads an in-network rate file from disk, transparently
// decompressing .gz files, and flattens it to per-provider rate records.
func ParseFile(ctx context.Context, path string) ([]RateRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "mrf: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, eris.Wrapf(err, "mrf: gzip open %s", path)
		}
		defer gz.Close() //nolint:errcheck
		r = gz
	}

	return Parse(ctx, r)
}

// Parse decodes an in-network rate document and flattens every
// (provider, billing code, price) combination into rate records.
func Parse(ctx context.Context, r io.Reader) ([]RateRecord, error) {
	var doc inNetworkFile
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, eris.Wrap(err, "mrf: decode in-network document")
	}

	var records []RateRecord
	for _, item := range doc.InNetwork {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "mrf: parse cancelled")
		}
		for _, nr := range item.NegotiatedRates {
			for _, pg := range nr.ProviderGroups {
				for _, npi := range pg.NPIs {
					for _, price := range nr.NegotiatedPrices {
						records = append(records, RateRecord{
							NPI:         normalizeNPI(npi),
							BillingCode: item.BillingCode,
							Rate:        price.NegotiatedRate,
						})
					}
				}
			}
		}
	}

	zap.L().Info("mrf: parsed in-network document",
		zap.Int("items", len(doc.InNetwork)),
		zap.Int("rate_records", len(records)))
	return records, nil
}

// normalizeNPI renders a JSON NPI (number or string) as a plain digit
// string.
func normalizeNPI(n json.Number) string {
	s := n.String()
	if f, err := n.Float64(); err == nil {
		return strconv.FormatInt(int64(f), 10)
	}
	return strings.TrimSpace(s)
}

// AggregateByProvider groups flattened rate records by NPI. The
// coefficient of variation is 0 when the mean rate is 0.
func AggregateByProvider(records []RateRecord) []Aggregate {
	byNPI := make(map[string][]RateRecord)
	for _, r := range records {
		if r.NPI == "" {
			continue
		}
		byNPI[r.NPI] = append(byNPI[r.NPI], r)
	}

	out := make([]Aggregate, 0, len(byNPI))
	for npi, recs := range byNPI {
		rates := make([]float64, len(recs))
		services := make(map[string]struct{})
		for i, r := range recs {
			rates[i] = r.Rate
			services[r.BillingCode] = struct{}{}
		}

		agg := Aggregate{
			NPI:            npi,
			RateTotal:      float64(len(rates)),
			UniqueServices: float64(len(services)),
			RateAvg:        stat.Mean(rates, nil),
			RateMin:        floats.Min(rates),
			RateMax:        floats.Max(rates),
			InNetwork:      1,
		}
		if len(rates) > 1 {
			agg.RateStd = stat.StdDev(rates, nil)
		}
		if agg.RateAvg != 0 {
			agg.RateCV = agg.RateStd / agg.RateAvg
		}
		out = append(out, agg)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].NPI < out[j].NPI })

	zap.L().Info("mrf: aggregated rates by provider", zap.Int("providers", len(out)))
	return out
}
