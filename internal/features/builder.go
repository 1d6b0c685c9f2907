package features

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/provider-risk/internal/model"
)

// Derived feature column names referenced across the pipeline.
const (
	ColCompletenessScore = "data_completeness_score"
	ColMissingCritical   = "missing_critical_fields"
	ColNumTaxonomyCodes  = "num_taxonomy_codes"
	ColHospitalType      = "hospital_type"
	ColNumLicenses       = "num_licenses"
	ColHasPrimaryLicense = "has_primary_license"
	ColLicenseStateMatch = "license_state_match"
	ColIsDeactivated     = "is_deactivated"
	ColHasDeactivation   = "has_deactivation_date"
	ColIsReactivated     = "is_reactivated"
	ColDaysSinceEnum     = "days_since_enumeration"
	ColDaysSinceUpdate   = "days_since_update"
	ColRecentlyUpdated   = "recently_updated"
	ColIsSubpart         = "is_subpart"
	ColHasParentOrg      = "has_parent_org"
	ColState             = "state"
	ColRegion            = "region"
)

// completenessThreshold is the minimum completeness score below which a
// record is flagged as missing critical fields.
const completenessThreshold = 0.8

// recentUpdateDays is the recency window for the recently_updated flag.
const recentUpdateDays = 365

// keyField is one field whose presence feeds the completeness score.
type keyField struct {
	name string
	get  func(*model.ProviderRecord) string
}

// keyFields are the fields a clean claim submission depends on. Each emits
// a <name>_complete flag and contributes to data_completeness_score.
var keyFields = []keyField{
	{"org_name", func(r *model.ProviderRecord) string { return r.OrgName }},
	{"ein", func(r *model.ProviderRecord) string { return r.EIN }},
	{"address1", func(r *model.ProviderRecord) string { return r.Address1 }},
	{"city", func(r *model.ProviderRecord) string { return r.City }},
	{"state", func(r *model.ProviderRecord) string { return r.State }},
	{"postal", func(r *model.ProviderRecord) string { return r.Postal }},
	{"telephone", func(r *model.ProviderRecord) string { return r.Telephone }},
	{"taxonomy_code_1", func(r *model.ProviderRecord) string { return r.PrimaryTaxonomy() }},
	{"license_num_1", func(r *model.ProviderRecord) string {
		if len(r.LicenseNums) == 0 {
			return ""
		}
		return r.LicenseNums[0]
	}},
	{"license_state_1", func(r *model.ProviderRecord) string { return r.PrimaryLicenseState() }},
}

// Build derives the feature table from cleaned provider records. The now
// reference fixes the day-level date-diff features so a single pipeline
// run is deterministic.
func Build(records []model.ProviderRecord, now time.Time) (*Table, error) {
	npis := make([]string, len(records))
	for i := range records {
		npis[i] = records[i].NPI
	}
	t := NewTable(npis)

	for _, step := range []func([]model.ProviderRecord, *Table, time.Time) error{
		addCompleteness,
		addTaxonomy,
		addLicense,
		addStatus,
		addOrganization,
		addGeography,
	} {
		if err := step(records, t, now); err != nil {
			return nil, err
		}
	}

	zap.L().Info("features: built table",
		zap.Int("rows", t.Len()),
		zap.Int("columns", len(t.Columns())),
	)
	return t, nil
}

// addCompleteness emits per-field presence flags, the aggregate
// completeness score, and the missing-critical-fields flag.
func addCompleteness(records []model.ProviderRecord, t *Table, _ time.Time) error {
	n := len(records)
	score := make([]float64, n)

	for _, kf := range keyFields {
		flags := make([]float64, n)
		for i := range records {
			if kf.get(&records[i]) != "" {
				flags[i] = 1
			}
		}
		if err := t.AddNum(kf.name+"_complete", flags, nil); err != nil {
			return err
		}
		for i := range flags {
			score[i] += flags[i]
		}
	}

	missing := make([]float64, n)
	for i := range score {
		score[i] /= float64(len(keyFields))
		if score[i] < completenessThreshold {
			missing[i] = 1
		}
	}
	if err := t.AddNum(ColCompletenessScore, score, nil); err != nil {
		return err
	}
	return t.AddNum(ColMissingCritical, missing, nil)
}

func addTaxonomy(records []model.ProviderRecord, t *Table, _ time.Time) error {
	n := len(records)
	counts := make([]float64, n)
	types := make([]string, n)

	for i := range records {
		for _, code := range records[i].TaxonomyCodes {
			if code != "" {
				counts[i]++
			}
		}
		types[i] = HospitalType(records[i].PrimaryTaxonomy())
	}

	if err := t.AddNum(ColNumTaxonomyCodes, counts, nil); err != nil {
		return err
	}
	return t.AddStr(ColHospitalType, types)
}

func addLicense(records []model.ProviderRecord, t *Table, _ time.Time) error {
	n := len(records)
	counts := make([]float64, n)
	primary := make([]float64, n)
	match := make([]float64, n)

	for i := range records {
		r := &records[i]
		for _, lic := range r.LicenseNums {
			if lic != "" {
				counts[i]++
			}
		}
		if len(r.LicenseNums) > 0 && r.LicenseNums[0] != "" {
			primary[i] = 1
		}
		// Match is 0 when either side is missing.
		if ls := r.PrimaryLicenseState(); ls != "" && r.State != "" && ls == r.State {
			match[i] = 1
		}
	}

	if err := t.AddNum(ColNumLicenses, counts, nil); err != nil {
		return err
	}
	if err := t.AddNum(ColHasPrimaryLicense, primary, nil); err != nil {
		return err
	}
	return t.AddNum(ColLicenseStateMatch, match, nil)
}

func addStatus(records []model.ProviderRecord, t *Table, now time.Time) error {
	n := len(records)
	deact := make([]float64, n)
	deactDate := make([]float64, n)
	react := make([]float64, n)
	sinceEnum := make([]float64, n)
	sinceUpdate := make([]float64, n)
	recent := make([]float64, n)

	for i := range records {
		r := &records[i]
		if r.DeactivationCode != "" {
			deact[i] = 1
		}
		if r.DeactivationDate != nil {
			deactDate[i] = 1
		}
		if r.ReactivationDate != nil {
			react[i] = 1
		}
		// Missing dates contribute 0 days, matching the null-fill policy.
		// The recency flag is computed on the filled value, so a record
		// with no update date counts as recently updated.
		if r.EnumerationDate != nil {
			sinceEnum[i] = daysBetween(*r.EnumerationDate, now)
		}
		if r.LastUpdateDate != nil {
			sinceUpdate[i] = daysBetween(*r.LastUpdateDate, now)
		}
		if sinceUpdate[i] < recentUpdateDays {
			recent[i] = 1
		}
	}

	for _, col := range []struct {
		name string
		vals []float64
	}{
		{ColIsDeactivated, deact},
		{ColHasDeactivation, deactDate},
		{ColIsReactivated, react},
		{ColDaysSinceEnum, sinceEnum},
		{ColDaysSinceUpdate, sinceUpdate},
		{ColRecentlyUpdated, recent},
	} {
		if err := t.AddNum(col.name, col.vals, nil); err != nil {
			return err
		}
	}
	return nil
}

func addOrganization(records []model.ProviderRecord, t *Table, _ time.Time) error {
	n := len(records)
	subpart := make([]float64, n)
	parent := make([]float64, n)

	for i := range records {
		if records[i].IsSubpart {
			subpart[i] = 1
		}
		if records[i].ParentOrgLBN != "" {
			parent[i] = 1
		}
	}

	if err := t.AddNum(ColIsSubpart, subpart, nil); err != nil {
		return err
	}
	return t.AddNum(ColHasParentOrg, parent, nil)
}

func addGeography(records []model.ProviderRecord, t *Table, _ time.Time) error {
	n := len(records)
	states := make([]string, n)
	regions := make([]string, n)

	for i := range records {
		states[i] = records[i].State
		regions[i] = Region(records[i].State)
	}

	if err := t.AddStr(ColState, states); err != nil {
		return err
	}
	return t.AddStr(ColRegion, regions)
}

// daysBetween returns whole days from a to b, floored at day granularity.
func daysBetween(a, b time.Time) float64 {
	return float64(int(b.Sub(a).Hours() / 24))
}
