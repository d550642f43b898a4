// Package scene holds the batched articulation state shared between
// the robots and the surrounding simulator.
//
// The scene is the write boundary of the core: robots push actuator
// targets and body velocity commands into it, tasks and robots read
// physical state back out of it. All readers receive copies, never
// aliases, so no component can mutate state it does not own.
//
// Advance is a first-order kinematic stand-in for the external physics
// engine: body velocities relax toward their commands, poses
// integrate, joint accelerations are derived by finite difference. It
// exists so the module is exercisable end-to-end without a simulator;
// deployments drive the same buffers from the real physics step.
package scene

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/snt-spacer/NavBench-Code/utils/mathutils"
)

// DefaultVelocityTimeConstant is the relaxation time of the body
// velocity toward its command in the kinematic Advance
const DefaultVelocityTimeConstant float64 = 0.25

// Scene owns the per-environment articulation state: planar root pose,
// world-frame velocities, and joint buffers. The first dimension of
// every buffer is the number of environment slots.
type Scene struct {
	numEnvs   int
	numJoints int
	dt        float64
	velTau    float64

	origins *mat.Dense // [n, 2] environment origin offsets

	rootPos *mat.Dense    // [n, 2] world position
	heading *mat.VecDense // [n] world heading
	linVelW *mat.Dense    // [n, 2] world linear velocity
	angVel  *mat.VecDense // [n] angular velocity

	cmdLinB *mat.Dense    // [n, 2] commanded body-frame linear velocity
	cmdAng  *mat.VecDense // [n] commanded angular velocity

	jointPos       *mat.Dense // [n, j]
	jointVel       *mat.Dense // [n, j]
	jointAcc       *mat.Dense // [n, j]
	jointVelTarget *mat.Dense // [n, j]
	jointPosTarget *mat.Dense // [n, j]
}

// New creates a Scene for numEnvs environment slots whose articulation
// has numJoints joints, stepped at a fixed physics timestep. A
// joint-free articulation (numJoints == 0) is valid; its joint buffers
// stay nil.
func New(numEnvs, numJoints int, dt float64) *Scene {
	jointBuf := func() *mat.Dense {
		if numJoints == 0 {
			return nil
		}
		return mat.NewDense(numEnvs, numJoints, nil)
	}
	return &Scene{
		numEnvs:        numEnvs,
		numJoints:      numJoints,
		dt:             dt,
		velTau:         DefaultVelocityTimeConstant,
		origins:        mat.NewDense(numEnvs, 2, nil),
		rootPos:        mat.NewDense(numEnvs, 2, nil),
		heading:        mat.NewVecDense(numEnvs, nil),
		linVelW:        mat.NewDense(numEnvs, 2, nil),
		angVel:         mat.NewVecDense(numEnvs, nil),
		cmdLinB:        mat.NewDense(numEnvs, 2, nil),
		cmdAng:         mat.NewVecDense(numEnvs, nil),
		jointPos:       jointBuf(),
		jointVel:       jointBuf(),
		jointAcc:       jointBuf(),
		jointVelTarget: jointBuf(),
		jointPosTarget: jointBuf(),
	}
}

// NumEnvs returns the number of environment slots
func (s *Scene) NumEnvs() int { return s.numEnvs }

// NumJoints returns the number of joints per articulation
func (s *Scene) NumJoints() int { return s.numJoints }

// PhysicsDt returns the fixed physics timestep
func (s *Scene) PhysicsDt() float64 { return s.dt }

// SetVelocityTimeConstant sets the relaxation time used by Advance
func (s *Scene) SetVelocityTimeConstant(tau float64) { s.velTau = tau }

func (s *Scene) resolve(ids []int) []int {
	if ids == nil {
		return mathutils.AllIDs(s.numEnvs)
	}
	return ids
}

// EnvOrigins returns a copy of the per-environment origin offsets
func (s *Scene) EnvOrigins() *mat.Dense {
	return mat.DenseCopyOf(s.origins)
}

// SetEnvOrigins overwrites the per-environment origin offsets
func (s *Scene) SetEnvOrigins(origins *mat.Dense) {
	s.origins.Copy(origins)
}

// SetPose writes the root position and heading of exactly the argument
// ids. Row i of pos and element i of heading apply to ids[i].
func (s *Scene) SetPose(ids []int, pos *mat.Dense, heading *mat.VecDense) {
	ids = s.resolve(ids)
	for i, id := range ids {
		s.rootPos.Set(id, 0, pos.At(i, 0))
		s.rootPos.Set(id, 1, pos.At(i, 1))
		s.heading.SetVec(id, mathutils.WrapAngle(heading.AtVec(i)))
	}
}

// SetVelocity writes the world linear and angular velocity of exactly
// the argument ids
func (s *Scene) SetVelocity(ids []int, linVelW *mat.Dense, angVel *mat.VecDense) {
	ids = s.resolve(ids)
	for i, id := range ids {
		s.linVelW.Set(id, 0, linVelW.At(i, 0))
		s.linVelW.Set(id, 1, linVelW.At(i, 1))
		s.angVel.SetVec(id, angVel.AtVec(i))
	}
}

// SetBodyVelocityCommand sets the commanded body-frame linear velocity
// and angular velocity the root relaxes toward during Advance
func (s *Scene) SetBodyVelocityCommand(ids []int, linB *mat.Dense, ang *mat.VecDense) {
	ids = s.resolve(ids)
	for i, id := range ids {
		s.cmdLinB.Set(id, 0, linB.At(i, 0))
		s.cmdLinB.Set(id, 1, linB.At(i, 1))
		s.cmdAng.SetVec(id, ang.AtVec(i))
	}
}

// SetJointVelocityTarget writes velocity targets for the argument
// joint columns of exactly the argument ids. Row i of targets applies
// to ids[i]; column j of targets applies to joint cols[j].
func (s *Scene) SetJointVelocityTarget(ids []int, cols []int, targets *mat.Dense) {
	ids = s.resolve(ids)
	for i, id := range ids {
		for j, col := range cols {
			s.jointVelTarget.Set(id, col, targets.At(i, j))
		}
	}
}

// SetJointPositionTarget writes position targets for the argument
// joint columns of exactly the argument ids
func (s *Scene) SetJointPositionTarget(ids []int, cols []int, targets *mat.Dense) {
	ids = s.resolve(ids)
	for i, id := range ids {
		for j, col := range cols {
			s.jointPosTarget.Set(id, col, targets.At(i, j))
		}
	}
}

// RootPosW returns a copy of the world root positions, [n, 2]
func (s *Scene) RootPosW() *mat.Dense { return mat.DenseCopyOf(s.rootPos) }

// HeadingW returns a copy of the world headings, [n]
func (s *Scene) HeadingW() *mat.VecDense {
	return mat.VecDenseCopyOf(s.heading)
}

// LinVelW returns a copy of the world linear velocities, [n, 2]
func (s *Scene) LinVelW() *mat.Dense { return mat.DenseCopyOf(s.linVelW) }

// LinVelB returns a copy of the linear velocities rotated into each
// robot's body frame, [n, 2]
func (s *Scene) LinVelB() *mat.Dense {
	out := mat.NewDense(s.numEnvs, 2, nil)
	for i := 0; i < s.numEnvs; i++ {
		c := math.Cos(s.heading.AtVec(i))
		sn := math.Sin(s.heading.AtVec(i))
		vx := s.linVelW.At(i, 0)
		vy := s.linVelW.At(i, 1)
		out.Set(i, 0, c*vx+sn*vy)
		out.Set(i, 1, -sn*vx+c*vy)
	}
	return out
}

// AngVelW returns a copy of the angular velocities, [n]
func (s *Scene) AngVelW() *mat.VecDense { return mat.VecDenseCopyOf(s.angVel) }

// JointVel returns a copy of the joint velocities, [n, j], or nil for
// a joint-free articulation
func (s *Scene) JointVel() *mat.Dense {
	if s.numJoints == 0 {
		return nil
	}
	return mat.DenseCopyOf(s.jointVel)
}

// JointAcc returns a copy of the joint accelerations, [n, j], or nil
// for a joint-free articulation
func (s *Scene) JointAcc() *mat.Dense {
	if s.numJoints == 0 {
		return nil
	}
	return mat.DenseCopyOf(s.jointAcc)
}

// Advance steps the kinematic stand-in by dt: body velocities relax
// toward their commands, the root pose integrates the resulting world
// velocity, and joint states follow their targets with accelerations
// derived by finite difference.
func (s *Scene) Advance(dt float64) {
	alpha := dt / (dt + s.velTau)

	for i := 0; i < s.numEnvs; i++ {
		c := math.Cos(s.heading.AtVec(i))
		sn := math.Sin(s.heading.AtVec(i))

		// Rotate the body-frame command into the world frame
		tx := c*s.cmdLinB.At(i, 0) - sn*s.cmdLinB.At(i, 1)
		ty := sn*s.cmdLinB.At(i, 0) + c*s.cmdLinB.At(i, 1)

		vx := s.linVelW.At(i, 0) + (tx-s.linVelW.At(i, 0))*alpha
		vy := s.linVelW.At(i, 1) + (ty-s.linVelW.At(i, 1))*alpha
		w := s.angVel.AtVec(i) + (s.cmdAng.AtVec(i)-s.angVel.AtVec(i))*alpha

		s.linVelW.Set(i, 0, vx)
		s.linVelW.Set(i, 1, vy)
		s.angVel.SetVec(i, w)

		s.rootPos.Set(i, 0, s.rootPos.At(i, 0)+vx*dt)
		s.rootPos.Set(i, 1, s.rootPos.At(i, 1)+vy*dt)
		s.heading.SetVec(i, mathutils.WrapAngle(s.heading.AtVec(i)+w*dt))

		for j := 0; j < s.numJoints; j++ {
			prev := s.jointVel.At(i, j)
			vel := prev + (s.jointVelTarget.At(i, j)-prev)*alpha
			s.jointVel.Set(i, j, vel)
			s.jointAcc.Set(i, j, (vel-prev)/dt)

			pos := s.jointPos.At(i, j)
			pos += (s.jointPosTarget.At(i, j) - pos) * alpha
			s.jointPos.Set(i, j, pos+vel*dt)
		}
	}
}
