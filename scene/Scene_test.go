package scene

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSetPoseOnlyTouchesSelectedIDs(t *testing.T) {
	s := New(3, 0, 0.02)

	all := mat.NewDense(3, 2, []float64{1, 1, 2, 2, 3, 3})
	s.SetPose(nil, all, mat.NewVecDense(3, []float64{0.1, 0.2, 0.3}))

	s.SetPose([]int{1}, mat.NewDense(1, 2, []float64{9, 9}),
		mat.NewVecDense(1, []float64{1.5}))

	pos := s.RootPosW()
	assert.Equal(t, 1.0, pos.At(0, 0))
	assert.Equal(t, 9.0, pos.At(1, 0))
	assert.Equal(t, 3.0, pos.At(2, 0))

	heading := s.HeadingW()
	assert.Equal(t, 0.1, heading.AtVec(0))
	assert.Equal(t, 1.5, heading.AtVec(1))
	assert.Equal(t, 0.3, heading.AtVec(2))
}

func TestReadersReturnCopies(t *testing.T) {
	s := New(2, 0, 0.02)
	s.SetPose(nil, mat.NewDense(2, 2, []float64{1, 2, 3, 4}),
		mat.NewVecDense(2, nil))

	pos := s.RootPosW()
	pos.Set(0, 0, 99)
	assert.Equal(t, 1.0, s.RootPosW().At(0, 0))
}

func TestLinVelBRotation(t *testing.T) {
	s := New(1, 0, 0.02)
	// Heading π/2: a world velocity along +y is a body velocity along +x
	s.SetPose(nil, mat.NewDense(1, 2, nil),
		mat.NewVecDense(1, []float64{math.Pi / 2}))
	s.SetVelocity(nil, mat.NewDense(1, 2, []float64{0, 2}),
		mat.NewVecDense(1, nil))

	velB := s.LinVelB()
	assert.InDelta(t, 2.0, velB.At(0, 0), 1e-12)
	assert.InDelta(t, 0.0, velB.At(0, 1), 1e-12)
}

func TestAdvanceRelaxesTowardCommand(t *testing.T) {
	s := New(1, 0, 0.02)
	s.SetBodyVelocityCommand(nil, mat.NewDense(1, 2, []float64{1, 0}),
		mat.NewVecDense(1, nil))

	for i := 0; i < 2000; i++ {
		s.Advance(0.02)
	}

	velB := s.LinVelB()
	assert.InDelta(t, 1.0, velB.At(0, 0), 1e-3)

	// Position advanced along the commanded direction
	assert.Greater(t, s.RootPosW().At(0, 0), 1.0)
	assert.InDelta(t, 0.0, s.RootPosW().At(0, 1), 1e-9)
}

func TestAdvanceWrapsHeading(t *testing.T) {
	s := New(1, 0, 0.02)
	s.SetPose(nil, mat.NewDense(1, 2, nil),
		mat.NewVecDense(1, []float64{math.Pi - 0.01}))
	s.SetVelocity(nil, mat.NewDense(1, 2, nil),
		mat.NewVecDense(1, []float64{2.0}))
	s.SetBodyVelocityCommand(nil, mat.NewDense(1, 2, nil),
		mat.NewVecDense(1, []float64{2.0}))

	s.Advance(0.02)

	heading := s.HeadingW().AtVec(0)
	assert.LessOrEqual(t, heading, math.Pi)
	assert.GreaterOrEqual(t, heading, -math.Pi)
	assert.Less(t, heading, 0.0)
}

func TestJointTargetsAndAccelerations(t *testing.T) {
	s := New(2, 4, 0.02)

	targets := mat.NewDense(2, 2, []float64{10, 10, 10, 10})
	s.SetJointVelocityTarget(nil, []int{0, 1}, targets)

	s.Advance(0.02)

	vel := s.JointVel()
	acc := s.JointAcc()
	require.Greater(t, vel.At(0, 0), 0.0)
	// Untargeted joints stay still
	assert.Equal(t, 0.0, vel.At(0, 2))
	assert.Equal(t, 0.0, acc.At(0, 2))
	// Acceleration is the velocity change over dt
	assert.InDelta(t, vel.At(0, 0)/0.02, acc.At(0, 0), 1e-9)
}

func TestJointFreeArticulation(t *testing.T) {
	s := New(3, 0, 0.02)
	require.Equal(t, 0, s.NumJoints())

	s.SetBodyVelocityCommand(nil, mat.NewDense(3, 2, []float64{
		1, 0, 0, 1, -1, 0,
	}), mat.NewVecDense(3, nil))
	s.Advance(0.02)

	assert.Greater(t, s.RootPosW().At(0, 0), 0.0)
	assert.Nil(t, s.JointVel())
	assert.Nil(t, s.JointAcc())
}
