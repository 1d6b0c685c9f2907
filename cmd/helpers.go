package main

import (
	"context"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/provider-risk/internal/features"
	"github.com/sells-group/provider-risk/internal/store"
)

// openStore opens the configured backend and applies migrations.
func openStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// tableFromRows rebuilds a feature table from stored rows. Column sets
// are unioned across rows; a row missing a numeric column gets a null,
// a missing categorical gets "". Only labeled rows are usable for
// training, so unlabeled rows are skipped.
func tableFromRows(rows []store.ProviderFeatures) (*features.Table, error) {
	var labeled []store.ProviderFeatures
	for _, r := range rows {
		if r.HasLabel {
			labeled = append(labeled, r)
		}
	}
	if len(labeled) == 0 {
		return nil, eris.New("no labeled feature rows in store; run the pipeline first")
	}

	numSet := make(map[string]struct{})
	catSet := make(map[string]struct{})
	for _, r := range labeled {
		for k := range r.Numeric {
			numSet[k] = struct{}{}
		}
		for k := range r.Categorical {
			catSet[k] = struct{}{}
		}
	}

	npis := make([]string, len(labeled))
	label := make([]float64, len(labeled))
	for i, r := range labeled {
		npis[i] = r.NPI
		label[i] = r.Label
	}
	tbl := features.NewTable(npis)

	for _, name := range sortedKeys(numSet) {
		vals := make([]float64, len(labeled))
		null := make([]bool, len(labeled))
		for i, r := range labeled {
			v, ok := r.Numeric[name]
			if !ok {
				null[i] = true
				continue
			}
			vals[i] = v
		}
		if err := tbl.AddNum(name, vals, null); err != nil {
			return nil, err
		}
	}
	for _, name := range sortedKeys(catSet) {
		vals := make([]string, len(labeled))
		for i, r := range labeled {
			vals[i] = r.Categorical[name]
		}
		if err := tbl.AddStr(name, vals); err != nil {
			return nil, err
		}
	}

	if err := tbl.AddNum(features.Label, label, nil); err != nil {
		return nil, err
	}
	return tbl, nil
}

// rowsFromTable converts a feature table into storable per-provider
// rows, splitting columns by kind. The label column, when present,
// becomes the stored label.
func rowsFromTable(tbl *features.Table, orgNames map[string]string) []store.ProviderFeatures {
	label := tbl.Col(features.Label)

	rows := make([]store.ProviderFeatures, tbl.Len())
	for i, npi := range tbl.NPIs {
		rows[i] = store.ProviderFeatures{
			NPI:         npi,
			OrgName:     orgNames[npi],
			Numeric:     make(map[string]float64),
			Categorical: make(map[string]string),
		}
		if label != nil {
			rows[i].Label = label.Nums[i]
			rows[i].HasLabel = true
		}
	}

	for _, name := range tbl.Columns() {
		if name == features.Label {
			continue
		}
		col := tbl.Col(name)
		for i := range rows {
			switch col.Kind {
			case features.KindStr:
				rows[i].Categorical[name] = col.Strs[i]
			default:
				if !col.IsNull(i) {
					rows[i].Numeric[name] = col.Nums[i]
				}
			}
		}
	}
	return rows
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
