// Package tensorutils implements helpers for working with the boundary
// tensors exchanged with external code.
package tensorutils

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"
)

// Slice implements a struct that can be used for slicing tensors.
//
// Given a tensor T and a Slice S, T.Slice(..., S, ...) is equivalent to
// T[..., S.start:S.end:S.step, ...]
type Slice struct {
	start, end, step int
}

// Start returns the start index for the tensor slice
func (s Slice) Start() int {
	return s.start
}

// End returns the ending index for the tensor slice
func (s Slice) End() int {
	return s.end
}

// Step returns the step for the tensor slice
func (s Slice) Step() int {
	return s.step
}

// NewSlice returns a new Slice that can be used to slice tensors
func NewSlice(start, stop, step int) Slice {
	return Slice{start, stop, step}
}

// ColumnBlock copies columns [start, start+width) of a [rows, cols]
// float64 tensor into a dense matrix. The tensor is never retained.
func ColumnBlock(t *tensor.Dense, start, width int) (*mat.Dense, error) {
	if t.Dtype() != tensor.Float64 {
		return nil, fmt.Errorf("tensorutils: tensor must hold float64, "+
			"got %v", t.Dtype())
	}
	shape := t.Shape()
	if len(shape) != 2 {
		return nil, fmt.Errorf("tensorutils: tensor must have 2 dimensions, "+
			"got shape %v", shape)
	}
	if start < 0 || start+width > shape[1] {
		return nil, fmt.Errorf("tensorutils: columns [%d, %d) out of range "+
			"for shape %v", start, start+width, shape)
	}

	view, err := t.Slice(nil, NewSlice(start, start+width, 1))
	if err != nil {
		return nil, fmt.Errorf("tensorutils: could not slice columns "+
			"[%d, %d): %v", start, start+width, err)
	}

	block := mat.NewDense(shape[0], width, nil)
	dense := view.(*tensor.Dense)
	// A width-1 slice collapses to one dimension
	flat := len(view.Shape()) == 1
	for row := 0; row < shape[0]; row++ {
		for col := 0; col < width; col++ {
			var v interface{}
			if flat {
				v, err = dense.At(row)
			} else {
				v, err = dense.At(row, col)
			}
			if err != nil {
				return nil, err
			}
			block.Set(row, col, v.(float64))
		}
	}
	return block, nil
}
