package boost

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
)

// SMOTEDefaultK is the neighbor count cap for synthetic oversampling.
const SMOTEDefaultK = 5

// SMOTE oversamples the positive class with synthetic interpolated
// rows until it makes up at least targetRatio of the data. Inputs are
// not modified; the returned slices share no backing with them. Returns
// an error when there are too few positives to interpolate, in which
// case the caller falls back to class weighting.
func SMOTE(X [][]float64, y []float64, targetRatio float64, rng *rand.Rand) ([][]float64, []float64, error) {
	var pos []int
	for i, label := range y {
		if label == 1 {
			pos = append(pos, i)
		}
	}
	neg := len(y) - len(pos)

	if len(pos) < 2 {
		return nil, nil, eris.Errorf("boost: smote needs at least 2 positive samples, have %d", len(pos))
	}

	// Positives needed so pos/(pos+neg) >= targetRatio.
	want := int(math.Ceil(targetRatio * float64(neg) / (1 - targetRatio)))
	synth := want - len(pos)
	if synth <= 0 {
		return copyMatrix(X), append([]float64(nil), y...), nil
	}

	k := SMOTEDefaultK
	if k > len(pos)-1 {
		k = len(pos) - 1
	}

	outX := copyMatrix(X)
	outY := append([]float64(nil), y...)

	for s := 0; s < synth; s++ {
		base := pos[rng.Intn(len(pos))]
		neighbor := nearestPositive(X, pos, base, k, rng)

		gap := rng.Float64()
		row := make([]float64, len(X[base]))
		for j := range row {
			row[j] = X[base][j] + gap*(X[neighbor][j]-X[base][j])
		}
		outX = append(outX, row)
		outY = append(outY, 1)
	}
	return outX, outY, nil
}

// nearestPositive picks a random one of the k positive rows closest to
// base by euclidean distance.
func nearestPositive(X [][]float64, pos []int, base, k int, rng *rand.Rand) int {
	type candidate struct {
		row  int
		dist float64
	}
	cands := make([]candidate, 0, len(pos)-1)
	for _, p := range pos {
		if p == base {
			continue
		}
		var d float64
		for j := range X[base] {
			diff := X[base][j] - X[p][j]
			d += diff * diff
		}
		cands = append(cands, candidate{row: p, dist: d})
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].dist < cands[j].dist })
	if k > len(cands) {
		k = len(cands)
	}
	return cands[rng.Intn(k)].row
}

func copyMatrix(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range X {
		out[i] = append([]float64(nil), X[i]...)
	}
	return out
}
