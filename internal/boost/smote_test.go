package boost

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imbalanced(n, positives int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := range X {
		if i < positives {
			X[i] = []float64{10 + float64(i), 20 + float64(i)}
			y[i] = 1
		} else {
			X[i] = []float64{float64(i), float64(i)}
		}
	}
	return X, y
}

func TestSMOTE_ReachesTargetRatio(t *testing.T) {
	X, y := imbalanced(100, 2)
	rng := rand.New(rand.NewSource(42))

	outX, outY, err := SMOTE(X, y, 0.05, rng)
	require.NoError(t, err)
	require.Equal(t, len(outX), len(outY))

	var pos int
	for _, label := range outY {
		if label == 1 {
			pos++
		}
	}
	assert.GreaterOrEqual(t, float64(pos)/float64(len(outY)), 0.05)

	// Synthetic rows interpolate between the two positives.
	for i := len(X); i < len(outX); i++ {
		assert.Equal(t, 1.0, outY[i])
		assert.GreaterOrEqual(t, outX[i][0], 10.0)
		assert.LessOrEqual(t, outX[i][0], 11.0)
	}
}

func TestSMOTE_TooFewPositives(t *testing.T) {
	X, y := imbalanced(50, 1)
	_, _, err := SMOTE(X, y, 0.05, rand.New(rand.NewSource(1)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "positive")
}

func TestSMOTE_AlreadyBalanced(t *testing.T) {
	X, y := imbalanced(20, 10)
	outX, outY, err := SMOTE(X, y, 0.05, rand.New(rand.NewSource(1)))
	require.NoError(t, err)
	assert.Len(t, outX, 20)
	assert.Equal(t, y, outY)

	// Output is a copy, not a view.
	outX[0][0] = -999
	assert.NotEqual(t, -999.0, X[0][0])
}
