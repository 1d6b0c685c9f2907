// Package features derives the per-provider feature table and target label
// from cleaned NPPES records.
package features

import "github.com/rotisserie/eris"

// Kind distinguishes numeric from categorical (string) columns.
type Kind int

const (
	KindNum Kind = iota
	KindStr
)

// Column is one named, typed column of the feature table. Numeric columns
// may carry a null mask; string columns use "" for missing.
type Column struct {
	Name string
	Kind Kind
	Nums []float64
	Strs []string
	Null []bool // numeric only; nil means no nulls
}

// IsNull reports whether row i is null.
func (c *Column) IsNull(i int) bool {
	return c.Null != nil && c.Null[i]
}

// Equals reports row-wise identity between two columns of the same kind
// and length. Used by the leakage guard.
func (c *Column) Equals(o *Column) bool {
	if c.Kind != o.Kind {
		return false
	}
	switch c.Kind {
	case KindNum:
		if len(c.Nums) != len(o.Nums) {
			return false
		}
		for i := range c.Nums {
			if c.IsNull(i) != o.IsNull(i) {
				return false
			}
			if !c.IsNull(i) && c.Nums[i] != o.Nums[i] {
				return false
			}
		}
		return true
	case KindStr:
		if len(c.Strs) != len(o.Strs) {
			return false
		}
		for i := range c.Strs {
			if c.Strs[i] != o.Strs[i] {
				return false
			}
		}
		return true
	}
	return false
}

// Table is a columnar feature table keyed by NPI. Column order is
// significant: it becomes the model's feature order.
type Table struct {
	NPIs []string
	cols []*Column
	idx  map[string]int
}

// NewTable creates an empty table for the given NPIs.
func NewTable(npis []string) *Table {
	return &Table{
		NPIs: npis,
		idx:  make(map[string]int),
	}
}

// Len returns the row count.
func (t *Table) Len() int { return len(t.NPIs) }

// Columns returns column names in order.
func (t *Table) Columns() []string {
	names := make([]string, len(t.cols))
	for i, c := range t.cols {
		names[i] = c.Name
	}
	return names
}

// Col returns the named column, or nil if absent.
func (t *Table) Col(name string) *Column {
	if i, ok := t.idx[name]; ok {
		return t.cols[i]
	}
	return nil
}

// Has reports whether the named column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.idx[name]
	return ok
}

// AddNum appends a numeric column. A nil null mask means fully present.
func (t *Table) AddNum(name string, vals []float64, null []bool) error {
	if len(vals) != t.Len() {
		return eris.Errorf("features: column %s has %d rows, table has %d", name, len(vals), t.Len())
	}
	return t.add(&Column{Name: name, Kind: KindNum, Nums: vals, Null: null})
}

// AddStr appends a categorical column.
func (t *Table) AddStr(name string, vals []string) error {
	if len(vals) != t.Len() {
		return eris.Errorf("features: column %s has %d rows, table has %d", name, len(vals), t.Len())
	}
	return t.add(&Column{Name: name, Kind: KindStr, Strs: vals})
}

func (t *Table) add(c *Column) error {
	if _, ok := t.idx[c.Name]; ok {
		return eris.Errorf("features: duplicate column %s", c.Name)
	}
	t.idx[c.Name] = len(t.cols)
	t.cols = append(t.cols, c)
	return nil
}

// Drop removes the named columns if present and returns those removed.
func (t *Table) Drop(names ...string) []string {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}

	var dropped []string
	kept := t.cols[:0]
	for _, c := range t.cols {
		if drop[c.Name] {
			dropped = append(dropped, c.Name)
			continue
		}
		kept = append(kept, c)
	}
	t.cols = kept

	t.idx = make(map[string]int, len(t.cols))
	for i, c := range t.cols {
		t.idx[c.Name] = i
	}
	return dropped
}

// RowIndex returns a map from NPI to row position.
func (t *Table) RowIndex() map[string]int {
	m := make(map[string]int, len(t.NPIs))
	for i, npi := range t.NPIs {
		m[npi] = i
	}
	return m
}
