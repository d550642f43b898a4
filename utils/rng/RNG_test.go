package rng

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSameSeedsSameDraws(t *testing.T) {
	a := New(42, 4)
	b := New(42, 4)

	da := a.UniformFloat(-1, 1, 3, nil)
	db := b.UniformFloat(-1, 1, 3, nil)
	assert.True(t, mat.Equal(da, db))
}

func TestStreamsAreIsolated(t *testing.T) {
	a := New(42, 4)
	b := New(42, 4)

	// Draw from stream 1 of a only. Streams 0, 2, and 3 of the two
	// generators must still agree afterwards.
	a.UniformFloat(0, 1, 10, []int{1})

	da := a.UniformFloat(0, 1, 2, []int{0, 2, 3})
	db := b.UniformFloat(0, 1, 2, []int{0, 2, 3})
	assert.True(t, mat.Equal(da, db))

	// Stream 1 of a advanced, so it has to disagree with b's
	d1a := a.UniformFloat(0, 1, 2, []int{1})
	d1b := b.UniformFloat(0, 1, 2, []int{1})
	assert.False(t, mat.Equal(d1a, d1b))
}

func TestSetSeedsRestoresStream(t *testing.T) {
	r := New(7, 3)
	first := r.UniformFloat(0, 1, 4, []int{2})

	r.UniformFloat(0, 1, 9, []int{2})
	r.SetSeeds([]int{2}, []uint64{7 + 2})

	again := r.UniformFloat(0, 1, 4, []int{2})
	assert.True(t, mat.Equal(first, again))
}

func TestSetSeedsLengthMismatchPanics(t *testing.T) {
	r := New(7, 3)
	assert.Panics(t, func() {
		r.SetSeeds([]int{0, 1}, []uint64{1})
	})
}

func TestUniformFloatBoundsAndShape(t *testing.T) {
	r := New(11, 5)
	out := r.UniformFloat(-2, 3, 4, []int{1, 3})

	rows, cols := out.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 4, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			assert.GreaterOrEqual(t, out.At(i, j), -2.0)
			assert.Less(t, out.At(i, j), 3.0)
		}
	}
}

func TestUniformRangesDegenerateInterval(t *testing.T) {
	r := New(11, 2)
	low := mat.NewVecDense(2, []float64{0.5, 1.0})
	high := mat.NewVecDense(2, []float64{0.5, 2.0})

	out := r.UniformRanges(low, high, 3, nil)
	for j := 0; j < 3; j++ {
		assert.Equal(t, 0.5, out.At(0, j))
		assert.GreaterOrEqual(t, out.At(1, j), 1.0)
		assert.Less(t, out.At(1, j), 2.0)
	}
}

func TestNormalFloatZeroStd(t *testing.T) {
	r := New(3, 2)
	out := r.NormalFloat(1.5, 0, 2, nil)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.Equal(t, 1.5, out.At(i, j))
		}
	}
}

func TestSignValues(t *testing.T) {
	r := New(99, 8)
	out := r.Sign(16, nil)
	rows, cols := out.Dims()
	sawPos, sawNeg := false, false
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := out.At(i, j)
			require.True(t, v == 1 || v == -1)
			sawPos = sawPos || v == 1
			sawNeg = sawNeg || v == -1
		}
	}
	assert.True(t, sawPos)
	assert.True(t, sawNeg)
}
