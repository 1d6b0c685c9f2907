package boost

import (
	"encoding/json"
	"sort"
)

// Encoder maps categorical string values to integer codes. Codes are
// assigned by sorted value order at fit time; values unseen at fit time
// encode to 0.
type Encoder struct {
	classes []string
	index   map[string]int
}

// NewEncoder fits an encoder on the distinct values of vals.
func NewEncoder(vals []string) *Encoder {
	seen := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		seen[v] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Strings(classes)

	e := &Encoder{classes: classes}
	e.buildIndex()
	return e
}

func (e *Encoder) buildIndex() {
	e.index = make(map[string]int, len(e.classes))
	for i, c := range e.classes {
		e.index[c] = i
	}
}

// Encode returns the code for v, or 0 for unseen values.
func (e *Encoder) Encode(v string) float64 {
	if i, ok := e.index[v]; ok {
		return float64(i)
	}
	return 0
}

// Decode returns the value for a code, or "" when out of range.
func (e *Encoder) Decode(code int) string {
	if code < 0 || code >= len(e.classes) {
		return ""
	}
	return e.classes[code]
}

// Classes returns the fitted values in code order.
func (e *Encoder) Classes() []string {
	return append([]string(nil), e.classes...)
}

// MarshalJSON serializes the encoder as its ordered class list.
func (e *Encoder) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.classes)
}

// UnmarshalJSON restores an encoder from its ordered class list.
func (e *Encoder) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &e.classes); err != nil {
		return err
	}
	e.buildIndex()
	return nil
}
