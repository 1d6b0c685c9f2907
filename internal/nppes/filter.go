package nppes

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/provider-risk/internal/model"
)

// hospitalTaxonomyPrefixes are the 4-character taxonomy prefixes that mark
// hospital-like organizations (general acute care, long term care,
// psychiatric, rehabilitation, specialty, LTC hospital).
var hospitalTaxonomyPrefixes = []string{"282N", "282E", "283Q", "2843", "282Y", "282V"}

// FilterOrganizations keeps only organization records (entity type 2).
// Individual providers are discarded.
func FilterOrganizations(records []model.ProviderRecord) []model.ProviderRecord {
	out := make([]model.ProviderRecord, 0, len(records))
	for _, r := range records {
		if r.EntityType == model.EntityTypeOrganization {
			out = append(out, r)
		}
	}

	zap.L().Info("nppes: filtered organizations",
		zap.Int("kept", len(out)),
		zap.Int("removed", len(records)-len(out)),
	)
	return out
}

// TagHospitals sets IsHospitalByTaxonomy on records where any taxonomy
// code starts with a hospital prefix.
func TagHospitals(records []model.ProviderRecord) []model.ProviderRecord {
	var tagged int
	for i := range records {
		records[i].IsHospitalByTaxonomy = isHospital(&records[i])
		if records[i].IsHospitalByTaxonomy {
			tagged++
		}
	}

	zap.L().Info("nppes: tagged hospitals by taxonomy", zap.Int("count", tagged))
	return records
}

func isHospital(r *model.ProviderRecord) bool {
	for _, code := range r.TaxonomyCodes {
		if code == "" {
			continue
		}
		for _, prefix := range hospitalTaxonomyPrefixes {
			if strings.HasPrefix(code, prefix) {
				return true
			}
		}
	}
	return false
}
