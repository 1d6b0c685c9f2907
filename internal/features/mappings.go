package features

import (
	_ "embed"

	"gopkg.in/yaml.v3"
)

//go:embed mappings.yaml
var mappingsYAML []byte

// OtherCategory is the fallback bucket for unmatched taxonomy prefixes
// and states. Both mappings are total: every input maps somewhere.
const OtherCategory = "Other"

// hospitalPrefixLen is the taxonomy prefix length used for type mapping.
const hospitalPrefixLen = 4

type mappings struct {
	HospitalTypes map[string]string `yaml:"hospital_types"`
	Regions       map[string]string `yaml:"regions"`
}

var maps = loadMappings()

func loadMappings() mappings {
	var m mappings
	if err := yaml.Unmarshal(mappingsYAML, &m); err != nil {
		// The document is embedded at build time; a parse failure is a
		// programming error, not a runtime condition.
		panic("features: parse mappings.yaml: " + err.Error())
	}
	return m
}

// HospitalType maps a taxonomy code to its hospital-type category via its
// 4-character prefix. Unknown or empty codes map to Other.
func HospitalType(taxonomyCode string) string {
	if len(taxonomyCode) < hospitalPrefixLen {
		return OtherCategory
	}
	if t, ok := maps.HospitalTypes[taxonomyCode[:hospitalPrefixLen]]; ok {
		return t
	}
	return OtherCategory
}

// Region maps a state code to its region. Unknown states map to Other.
func Region(state string) string {
	if r, ok := maps.Regions[state]; ok {
		return r
	}
	return OtherCategory
}
