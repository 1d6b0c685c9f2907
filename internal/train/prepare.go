// Package train turns a feature table into model-ready matrices and
// orchestrates boosting with imbalance handling.
package train

import (
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/provider-risk/internal/boost"
	"github.com/sells-group/provider-risk/internal/features"
)

// Dataset is a feature table split into model-ready matrices, together
// with everything the scorer needs to reproduce the preprocessing:
// column order, categorical encoders, and fill values.
type Dataset struct {
	Cols     []string
	Encoders map[string]*boost.Encoder
	NumFills map[string]float64
	CatFills map[string]string

	TrainX [][]float64
	TrainY []float64
	ValX   [][]float64
	ValY   []float64
	TestX  [][]float64
	TestY  []float64
}

// Prepare encodes and fills the table, then performs a stratified
// train/test split followed by a stratified train/val split of the
// training portion. Numeric fills are medians of the training split;
// categorical fills are the training split's most frequent value.
func Prepare(tbl *features.Table, seed int64, testFrac, valFrac float64) (*Dataset, error) {
	label := tbl.Col(features.Label)
	if label == nil {
		return nil, eris.New("train: table has no target column")
	}
	y := label.Nums
	n := tbl.Len()
	if n == 0 {
		return nil, eris.New("train: empty feature table")
	}

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec

	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	trainval, test := stratifiedSplit(y, all, testFrac, rng)
	train, val := stratifiedSplit(y, trainval, valFrac, rng)

	ds := &Dataset{
		Encoders: make(map[string]*boost.Encoder),
		NumFills: make(map[string]float64),
		CatFills: make(map[string]string),
	}
	for _, name := range tbl.Columns() {
		if name != features.Label {
			ds.Cols = append(ds.Cols, name)
		}
	}

	// Encoded and filled columns, in feature order.
	matrix := make([][]float64, len(ds.Cols))
	for j, name := range ds.Cols {
		col := tbl.Col(name)
		switch col.Kind {
		case features.KindStr:
			matrix[j] = ds.encodeCategorical(name, col, train)
		default:
			matrix[j] = ds.fillNumeric(name, col, train)
		}
	}

	rowsOf := func(idx []int) ([][]float64, []float64) {
		X := make([][]float64, len(idx))
		ys := make([]float64, len(idx))
		for i, r := range idx {
			row := make([]float64, len(matrix))
			for j := range matrix {
				row[j] = matrix[j][r]
			}
			X[i] = row
			ys[i] = y[r]
		}
		return X, ys
	}

	ds.TrainX, ds.TrainY = rowsOf(train)
	ds.ValX, ds.ValY = rowsOf(val)
	ds.TestX, ds.TestY = rowsOf(test)

	zap.L().Info("train: prepared dataset",
		zap.Int("features", len(ds.Cols)),
		zap.Int("train", len(train)),
		zap.Int("val", len(val)),
		zap.Int("test", len(test)),
	)
	return ds, nil
}

// encodeCategorical fills missing values with the training split's mode
// and integer-encodes the column.
func (ds *Dataset) encodeCategorical(name string, col *features.Column, train []int) []float64 {
	counts := make(map[string]int)
	for _, r := range train {
		if v := col.Strs[r]; v != "" {
			counts[v]++
		}
	}
	// Ties break toward the lexically smaller value for determinism.
	mode := ""
	best := 0
	for v, c := range counts {
		if c > best || (c == best && v < mode) {
			mode, best = v, c
		}
	}
	ds.CatFills[name] = mode

	filled := make([]string, len(col.Strs))
	for i, v := range col.Strs {
		if v == "" {
			v = mode
		}
		filled[i] = v
	}

	enc := boost.NewEncoder(filled)
	ds.Encoders[name] = enc

	out := make([]float64, len(filled))
	for i, v := range filled {
		out[i] = enc.Encode(v)
	}
	return out
}

// fillNumeric replaces nulls with the training split's median.
func (ds *Dataset) fillNumeric(name string, col *features.Column, train []int) []float64 {
	var present []float64
	for _, r := range train {
		if !col.IsNull(r) {
			present = append(present, col.Nums[r])
		}
	}
	fill := 0.0
	if len(present) > 0 {
		fill = median(present)
	}
	ds.NumFills[name] = fill

	out := make([]float64, len(col.Nums))
	for i, v := range col.Nums {
		if col.IsNull(i) {
			out[i] = fill
		} else {
			out[i] = v
		}
	}
	return out
}

// median averages the two middle values for even-length input.
func median(vals []float64) float64 {
	sort.Float64s(vals)
	n := len(vals)
	if n%2 == 1 {
		return vals[n/2]
	}
	return (vals[n/2-1] + vals[n/2]) / 2
}

// stratifiedSplit splits indices into (rest, held) keeping the class
// balance of y in both parts. held receives frac of each class.
func stratifiedSplit(y []float64, idx []int, frac float64, rng *rand.Rand) (rest, held []int) {
	var pos, neg []int
	for _, i := range idx {
		if y[i] == 1 {
			pos = append(pos, i)
		} else {
			neg = append(neg, i)
		}
	}

	take := func(group []int) {
		rng.Shuffle(len(group), func(a, b int) { group[a], group[b] = group[b], group[a] })
		k := int(frac * float64(len(group)))
		held = append(held, group[:k]...)
		rest = append(rest, group[k:]...)
	}
	take(neg)
	take(pos)

	sort.Ints(rest)
	sort.Ints(held)
	return rest, held
}
