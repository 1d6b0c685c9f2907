package nppes

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testHeader = `NPI,Entity Type Code,Provider Organization Name (Legal Business Name),Employer Identification Number (EIN),Provider First Line Business Practice Location Address,Provider Business Practice Location Address City Name,Provider Business Practice Location Address State Name,Provider Business Practice Location Address Postal Code,Provider Business Practice Location Address Telephone Number,Healthcare Provider Taxonomy Code_1,Healthcare Provider Taxonomy Code_2,Provider License Number_1,Provider License Number State Code_1,Provider Enumeration Date,Last Update Date,NPI Deactivation Reason Code,NPI Deactivation Date,NPI Reactivation Date,Is Organization Subpart,Parent Organization LBN
`

func TestRead_Basic(t *testing.T) {
	csv := testHeader +
		`1234567890,2,GENERAL HOSPITAL,12-3456789,123 Main St,Austin,TX,78701,5125551234,282N00000X,,L1234,TX,05/23/2005,01/15/2024,,,,N,` + "\n" +
		`9876543210,1,,<UNAVAIL>,,,CA,,,207R00000X,,,,06/01/2010,,,,,,` + "\n"

	records, err := Read(context.Background(), strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	r := records[0]
	assert.Equal(t, "1234567890", r.NPI)
	assert.Equal(t, 2, r.EntityType)
	assert.Equal(t, "GENERAL HOSPITAL", r.OrgName)
	assert.Equal(t, "12-3456789", r.EIN)
	assert.Equal(t, "TX", r.State)
	assert.Equal(t, "282N00000X", r.PrimaryTaxonomy())
	assert.Equal(t, "TX", r.PrimaryLicenseState())
	require.NotNil(t, r.EnumerationDate)
	assert.Equal(t, time.Date(2005, 5, 23, 0, 0, 0, 0, time.UTC), *r.EnumerationDate)
	require.NotNil(t, r.LastUpdateDate)
	assert.Nil(t, r.DeactivationDate)
	assert.False(t, r.IsSubpart)

	// <UNAVAIL> maps to empty.
	assert.Empty(t, records[1].EIN)
	assert.Equal(t, 1, records[1].EntityType)
}

func TestRead_SampleSize(t *testing.T) {
	var sb strings.Builder
	sb.WriteString(testHeader)
	for i := 0; i < 10; i++ {
		sb.WriteString("1000000000,2,ORG,,,,,,,,,,,,,,,,,\n")
	}

	records, err := Read(context.Background(), strings.NewReader(sb.String()), Options{SampleSize: 3})
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestRead_Errors(t *testing.T) {
	_, err := Read(context.Background(), strings.NewReader(""), Options{})
	assert.Error(t, err)

	_, err = Read(context.Background(), strings.NewReader("a,b,c\n1,2,3\n"), Options{})
	assert.Error(t, err, "missing NPI column")
}

func TestRead_ShortRowTolerated(t *testing.T) {
	csv := testHeader + "1234567890,2,SHORT ROW ORG\n"
	records, err := Read(context.Background(), strings.NewReader(csv), Options{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "SHORT ROW ORG", records[0].OrgName)
	assert.Empty(t, records[0].State)
}

func TestParseEntityType(t *testing.T) {
	assert.Equal(t, 2, parseEntityType("2"))
	assert.Equal(t, 2, parseEntityType("2.0"))
	assert.Equal(t, 2, parseEntityType(" 2 "))
	assert.Equal(t, 1, parseEntityType("1"))
	assert.Equal(t, 0, parseEntityType(""))
	assert.Equal(t, 0, parseEntityType("<UNAVAIL>"))
}

func TestParseDate(t *testing.T) {
	d := parseDate("05/23/2005")
	require.NotNil(t, d)
	assert.Equal(t, 2005, d.Year())

	assert.Nil(t, parseDate(""))
	assert.Nil(t, parseDate("not-a-date"))
	assert.Nil(t, parseDate("<UNAVAIL>"))
}
