// Package mathutils provides numeric utilities for working with
// batched state buffers and planar angles
package mathutils

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r1"
)

// Epsilon guards divisions and logarithms against zero-valued
// denominators and arguments
const Epsilon float64 = 1e-6

// Clip clips a floating point to within a minimum and maximum value.
// If the floating point exceeds max, then the function returns the max
// If min exceeds the floating point, then the function returns the min
func Clip(value, min, max float64) float64 {
	clipped := math.Min(value, max)
	return math.Max(clipped, min)
}

// ClipInterval is a wrapper to use Clip with an r1.Interval instead of
// a separate max and min value
func ClipInterval(value float64, interval r1.Interval) float64 {
	return Clip(value, interval.Min, interval.Max)
}

// WrapAngle wraps an angle difference into (-π, π] using the
// atan2(sin, cos) convention. Heading errors must always go through
// this function so that rewards stay continuous across the ±π
// boundary.
func WrapAngle(theta float64) float64 {
	return math.Atan2(math.Sin(theta), math.Cos(theta))
}

// VecClip performs an element-wise clipping of a vector's values such
// that each value is at least min and at most max
func VecClip(a *mat.VecDense, min, max float64) {
	for i := 0; i < a.Len(); i++ {
		value := a.AtVec(i)

		if value < min {
			a.SetVec(i, min)
		} else if value > max {
			a.SetVec(i, max)
		}
	}
}

// MatClip performs an element-wise clipping of a matrix's values in
// place such that each value is at least min and at most max
func MatClip(a *mat.Dense, min, max float64) {
	r, c := a.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			a.Set(i, j, Clip(a.At(i, j), min, max))
		}
	}
}

// Lerp linearly interpolates between min and max using t in [0, 1]
func Lerp(t, min, max float64) float64 {
	return min + t*(max-min)
}

// RowNorm computes the Euclidean norm of each row of a matrix,
// returning the norms as a vector
func RowNorm(a *mat.Dense) *mat.VecDense {
	r, c := a.Dims()
	norms := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		acc := 0.0
		for j := 0; j < c; j++ {
			v := a.At(i, j)
			acc += v * v
		}
		norms.SetVec(i, math.Sqrt(acc))
	}
	return norms
}

// CopyRows copies the rows of src indexed by ids into the same rows of
// dst. Rows of dst outside ids are left untouched. The two matrices
// must have the same number of columns.
func CopyRows(dst, src *mat.Dense, ids []int) {
	_, c := dst.Dims()
	for _, id := range ids {
		for j := 0; j < c; j++ {
			dst.Set(id, j, src.At(id, j))
		}
	}
}

// ZeroRows zeroes the rows of a indexed by ids, leaving all other rows
// untouched
func ZeroRows(a *mat.Dense, ids []int) {
	_, c := a.Dims()
	for _, id := range ids {
		for j := 0; j < c; j++ {
			a.Set(id, j, 0)
		}
	}
}

// ZeroElems zeroes the elements of a indexed by ids, leaving all other
// elements untouched
func ZeroElems(a *mat.VecDense, ids []int) {
	for _, id := range ids {
		a.SetVec(id, 0)
	}
}

// AllIDs returns the identity id set [0, 1, ..., n-1], used whenever a
// nil id set means "every environment"
func AllIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}
