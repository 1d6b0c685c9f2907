// Package model defines the core domain types shared across the pipeline.
package model

import "time"

// EntityTypeOrganization is the NPPES entity type code for organizations.
// Individual providers carry code 1 and are excluded from this pipeline.
const EntityTypeOrganization = 2

// TaxonomySlots is the number of taxonomy/license column groups in the
// NPPES dissemination file.
const TaxonomySlots = 15

// ProviderRecord is one cleaned row of the NPPES extract, keyed by NPI.
// Records are immutable once produced by the loader.
type ProviderRecord struct {
	NPI        string `json:"npi"`
	EntityType int    `json:"entity_type"`

	// Identity
	OrgName   string `json:"org_name"`
	EIN       string `json:"ein,omitempty"`
	Address1  string `json:"address1,omitempty"`
	City      string `json:"city,omitempty"`
	State     string `json:"state,omitempty"`
	Postal    string `json:"postal,omitempty"`
	Telephone string `json:"telephone,omitempty"`

	// Taxonomy and licensure, slot-aligned (index 0 is the primary slot).
	TaxonomyCodes []string `json:"taxonomy_codes,omitempty"`
	LicenseNums   []string `json:"license_nums,omitempty"`
	LicenseStates []string `json:"license_states,omitempty"`

	// Status
	EnumerationDate  *time.Time `json:"enumeration_date,omitempty"`
	LastUpdateDate   *time.Time `json:"last_update_date,omitempty"`
	DeactivationDate *time.Time `json:"deactivation_date,omitempty"`
	ReactivationDate *time.Time `json:"reactivation_date,omitempty"`
	DeactivationCode string     `json:"deactivation_code,omitempty"`

	// Organization structure
	IsSubpart    bool   `json:"is_subpart"`
	ParentOrgLBN string `json:"parent_org_lbn,omitempty"`

	// Set by the taxonomy tagger, not read from the file.
	IsHospitalByTaxonomy bool `json:"is_hospital_by_taxonomy"`
}

// PrimaryTaxonomy returns the primary (slot 1) taxonomy code, or "".
func (r *ProviderRecord) PrimaryTaxonomy() string {
	if len(r.TaxonomyCodes) == 0 {
		return ""
	}
	return r.TaxonomyCodes[0]
}

// PrimaryLicenseState returns the primary license state code, or "".
func (r *ProviderRecord) PrimaryLicenseState() string {
	if len(r.LicenseStates) == 0 {
		return ""
	}
	return r.LicenseStates[0]
}
