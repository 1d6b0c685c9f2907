// Package nppes loads and filters the NPPES provider-registry extract.
package nppes

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-risk/internal/model"
)

// NPPES dissemination file column names used by the loader.
const (
	ColNPI              = "NPI"
	ColEntityType       = "Entity Type Code"
	ColOrgName          = "Provider Organization Name (Legal Business Name)"
	ColEIN              = "Employer Identification Number (EIN)"
	ColAddress1         = "Provider First Line Business Practice Location Address"
	ColCity             = "Provider Business Practice Location Address City Name"
	ColState            = "Provider Business Practice Location Address State Name"
	ColPostal           = "Provider Business Practice Location Address Postal Code"
	ColTelephone        = "Provider Business Practice Location Address Telephone Number"
	ColEnumerationDate  = "Provider Enumeration Date"
	ColLastUpdateDate   = "Last Update Date"
	ColDeactivationCode = "NPI Deactivation Reason Code"
	ColDeactivationDate = "NPI Deactivation Date"
	ColReactivationDate = "NPI Reactivation Date"
	ColIsSubpart        = "Is Organization Subpart"
	ColParentOrgLBN     = "Parent Organization LBN"
)

// Options configures the loader.
type Options struct {
	// SampleSize caps the number of data rows read (0 = unlimited).
	SampleSize int
}

// ReadFile streams an NPPES CSV extract from disk.
func ReadFile(ctx context.Context, path string, opts Options) ([]model.ProviderRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "nppes: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	records, err := Read(ctx, f, opts)
	if err != nil {
		return nil, err
	}

	zap.L().Info("nppes: loaded extract",
		zap.String("path", path),
		zap.Int("rows", len(records)),
	)
	return records, nil
}

// Read streams NPPES CSV rows from r into ProviderRecords. The first row
// must be the header; data rows with fewer columns than the header are
// tolerated (missing cells read as empty).
func Read(ctx context.Context, r io.Reader, opts Options) ([]model.ProviderRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("nppes: empty input")
	}
	if err != nil {
		return nil, eris.Wrap(err, "nppes: read header")
	}
	colIdx := mapColumns(header)
	if _, ok := colIdx[normalizeCol(ColNPI)]; !ok {
		return nil, eris.New("nppes: input has no NPI column")
	}

	var records []model.ProviderRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, eris.Wrap(err, "nppes: read cancelled")
		}

		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "nppes: read row")
		}

		records = append(records, parseRecord(row, colIdx))
		if opts.SampleSize > 0 && len(records) >= opts.SampleSize {
			break
		}
	}

	return records, nil
}

// parseRecord converts one raw CSV row into a cleaned ProviderRecord.
func parseRecord(row []string, colIdx map[string]int) model.ProviderRecord {
	rec := model.ProviderRecord{
		NPI:              getCol(row, colIdx, ColNPI),
		EntityType:       parseEntityType(getCol(row, colIdx, ColEntityType)),
		OrgName:          getCol(row, colIdx, ColOrgName),
		EIN:              getCol(row, colIdx, ColEIN),
		Address1:         getCol(row, colIdx, ColAddress1),
		City:             getCol(row, colIdx, ColCity),
		State:            getCol(row, colIdx, ColState),
		Postal:           getCol(row, colIdx, ColPostal),
		Telephone:        getCol(row, colIdx, ColTelephone),
		EnumerationDate:  parseDate(getCol(row, colIdx, ColEnumerationDate)),
		LastUpdateDate:   parseDate(getCol(row, colIdx, ColLastUpdateDate)),
		DeactivationDate: parseDate(getCol(row, colIdx, ColDeactivationDate)),
		ReactivationDate: parseDate(getCol(row, colIdx, ColReactivationDate)),
		DeactivationCode: getCol(row, colIdx, ColDeactivationCode),
		IsSubpart:        parseBoolYN(getCol(row, colIdx, ColIsSubpart)),
		ParentOrgLBN:     getCol(row, colIdx, ColParentOrgLBN),
	}

	for slot := 1; slot <= model.TaxonomySlots; slot++ {
		tax := getCol(row, colIdx, fmt.Sprintf("Healthcare Provider Taxonomy Code_%d", slot))
		lic := getCol(row, colIdx, fmt.Sprintf("Provider License Number_%d", slot))
		licState := getCol(row, colIdx, fmt.Sprintf("Provider License Number State Code_%d", slot))
		if tax == "" && lic == "" && licState == "" && slot > 1 {
			continue
		}
		rec.TaxonomyCodes = append(rec.TaxonomyCodes, tax)
		rec.LicenseNums = append(rec.LicenseNums, lic)
		rec.LicenseStates = append(rec.LicenseStates, licState)
	}

	return rec
}
