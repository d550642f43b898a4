// Package spec implements specifications for the tensors exchanged with
// a vectorized environment
package spec

import "gonum.org/v1/gonum/mat"

// SpecType determines what kind of specification a Spec is. A Spec can
// specify the layout of an action, an observation, a generative action,
// or a reward tensor
type SpecType int

const (
	Action SpecType = iota
	Observation
	GenAction
	Reward
)

func (s SpecType) String() string {
	switch s {
	case Action:
		return "Action"
	case Observation:
		return "Observation"
	case GenAction:
		return "GenAction"
	case Reward:
		return "Reward"
	default:
		return "Unknown"
	}
}

// Environment implements a specification, which tells the type, shape,
// and bounds of an action, observation, generative action, or reward in
// a vectorized environment. The leading dimension of Shape is always
// the number of environments.
type Environment struct {
	Shape      mat.Vector
	Type       SpecType
	LowerBound mat.Vector
	UpperBound mat.Vector
}

// NewEnvironment constructs a new environment specification
func NewEnvironment(shape mat.Vector, t SpecType, lowerBound,
	upperBound mat.Vector) Environment {
	return Environment{shape, t, lowerBound, upperBound}
}

// Batched constructs a specification for a [numEnvs, width] tensor with
// the same bounds in every column
func Batched(numEnvs, width int, t SpecType, lower, upper float64) Environment {
	shape := mat.NewVecDense(2, []float64{float64(numEnvs), float64(width)})
	lowerBound := mat.NewVecDense(width, nil)
	upperBound := mat.NewVecDense(width, nil)
	for i := 0; i < width; i++ {
		lowerBound.SetVec(i, lower)
		upperBound.SetVec(i, upper)
	}
	return NewEnvironment(shape, t, lowerBound, upperBound)
}
