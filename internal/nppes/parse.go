package nppes

import (
	"strconv"
	"strings"
	"time"
)

// unavailMarker is the NPPES placeholder for withheld values.
const unavailMarker = "<UNAVAIL>"

// cleanValue trims a raw field and maps placeholder values to empty.
func cleanValue(s string) string {
	s = strings.TrimSpace(s)
	if s == unavailMarker {
		return ""
	}
	return s
}

// parseDate parses an NPPES MM/DD/YYYY date, returning nil on failure.
func parseDate(s string) *time.Time {
	s = cleanValue(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("01/02/2006", s)
	if err != nil {
		return nil
	}
	return &t
}

// parseEntityType coerces the entity type code, which appears as "1", "2",
// or float-formatted "2.0" depending on how the extract was produced.
func parseEntityType(s string) int {
	s = cleanValue(s)
	s = strings.TrimSuffix(s, ".0")
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return v
}

// parseBoolYN returns true if the string is "Y" (case-insensitive).
func parseBoolYN(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), "Y")
}

// normalizeCol lowercases and trims for header matching.
func normalizeCol(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// mapColumns builds a normalized column name → index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[normalizeCol(col)] = i
	}
	return m
}

// getCol gets a cleaned column value by normalized name.
func getCol(record []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[normalizeCol(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return cleanValue(record[idx])
}
