// Package robot implements the actuation and physical-state
// bookkeeping of one robot embodiment across all parallel environment
// slots.
//
// Per simulation step the pipeline runs ProcessActions (clip, snapshot
// the unaltered actions, randomize, map to actuator targets), then
// ApplyActions (push targets to the articulation, advance randomizer
// state), then the physics step, then Observations, Rewards, and
// Dones. Actions must be processed strictly before the physics update
// and observed strictly after it.
package robot

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/snt-spacer/NavBench-Code/randomization"
	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/utils/mathutils"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
	"github.com/snt-spacer/NavBench-Code/utils/scalarlog"
)

// Cfg is the configuration contract every robot configuration
// satisfies
type Cfg interface {
	Validate() error
	ActionSpace() int
	ObservationSpace() int
	GenSpace() int

	// NumJoints is the number of actuated joints the robot needs the
	// scene to carry
	NumJoints() int
}

// Robot is the embodiment contract consumed by tasks and by the
// vectorized environment. Physical accessors return copies of the
// underlying scene state, never aliases.
type Robot interface {
	// Name returns the registered name of the embodiment
	Name() string

	ActionSpace() int
	ObservationSpace() int
	GenSpace() int

	// AttachRandomizer attaches a randomizer whose action and update
	// hooks run inside the action pipeline
	AttachRandomizer(r randomization.Randomizer)

	// ProcessActions clips the policy actions to [-1, 1], snapshots
	// the unaltered actions, applies the attached randomizers and maps
	// the result to actuator commands
	ProcessActions(actions *mat.Dense)

	// ApplyActions pushes the actuator commands to the articulation
	// and advances the attached randomizers
	ApplyActions()

	// Observations returns the robot's observation slice,
	// [numEnvs, ObservationSpace]
	Observations() *mat.Dense

	// Rewards returns the embodiment reward contribution, [numEnvs]
	Rewards() *mat.VecDense

	// Dones returns the embodiment termination flags. Embodiments
	// without termination conditions return all-false tensors.
	Dones() (taskFailed, taskDone []bool)

	// Reset zeroes the per-id history buffers and resamples the
	// embodiment initial conditions. Nil ids means all environments;
	// non-nil seeds reseed exactly those environments first.
	Reset(ids []int, genActions *mat.Dense, seeds []uint64)

	// SetInitialConditions resamples embodiment-specific actuator
	// state for the argument ids
	SetInitialConditions(ids []int)

	// SetPose and SetVelocity are the write path tasks use to spawn
	// the robot. Row i applies to ids[i].
	SetPose(ids []int, pos *mat.Dense, heading *mat.VecDense)
	SetVelocity(ids []int, linVelW *mat.Dense, angVel *mat.VecDense)

	// Physical state accessors, read through the scene
	PositionW() *mat.Dense
	HeadingW() *mat.VecDense
	LinVelW() *mat.Dense
	LinVelB() *mat.Dense
	AngVelW() *mat.VecDense

	// EvalDataKeys returns the stable ordering of the EvalData keys
	EvalDataKeys() []string

	// EvalData returns a named read-only view of the physical state
	// for external logging
	EvalData() map[string]*tensor.Dense

	// Logger returns the scalar logger the robot records to
	Logger() *scalarlog.ScalarLogger
}

// Factory builds a Robot from its validated configuration
type Factory func(cfg Cfg, s *scene.Scene, r *rng.PerEnvRNG,
	logs *scalarlog.ScalarLogger, numEnvs int) (Robot, error)

var (
	factories    = map[string]Factory{}
	cfgFactories = map[string]func() Cfg{}
)

// Register registers a robot implementation and its configuration
// constructor under a name. Each embodiment registers itself at load
// time.
func Register(name string, cfgFactory func() Cfg, factory Factory) {
	factories[name] = factory
	cfgFactories[name] = cfgFactory
}

// Registered returns the names of all registered robots
func Registered() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// MakeCfg returns a default configuration for the named robot
func MakeCfg(name string) (Cfg, error) {
	cfgFactory, ok := cfgFactories[name]
	if !ok {
		return nil, fmt.Errorf("robot: no robot registered under name %q",
			name)
	}
	return cfgFactory(), nil
}

// Make validates the configuration and builds the named robot. A nil
// cfg uses the registered defaults.
func Make(name string, cfg Cfg, s *scene.Scene, r *rng.PerEnvRNG,
	logs *scalarlog.ScalarLogger, numEnvs int) (Robot, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("robot: no robot registered under name %q",
			name)
	}
	if cfg == nil {
		cfg = cfgFactories[name]()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return factory(cfg, s, r, logs, numEnvs)
}

// Core owns the action-buffer lifecycle shared by every embodiment:
// the current and previous actions, their pre-randomization
// counterparts, and the generative actions of the last reset.
//
// The unaltered actions exist so that symmetric reward penalties such
// as the action rate are computed on what the policy emitted, keeping
// randomization noise out of the reward signal.
type Core struct {
	scene       *scene.Scene
	rng         *rng.PerEnvRNG
	logs        *scalarlog.ScalarLogger
	numEnvs     int
	actDim      int
	genDim      int
	randomizers []randomization.Randomizer

	actions           *mat.Dense
	previousActions   *mat.Dense
	unaltered         *mat.Dense
	previousUnaltered *mat.Dense
	genActions        *mat.Dense
}

// NewCore creates the shared buffers for an embodiment with the given
// action and generative dimensions
func NewCore(s *scene.Scene, r *rng.PerEnvRNG, logs *scalarlog.ScalarLogger,
	numEnvs, actDim, genDim int) Core {
	genCols := genDim
	if genCols == 0 {
		genCols = 1 // keep a valid buffer even for gen-free embodiments
	}
	return Core{
		scene:             s,
		rng:               r,
		logs:              logs,
		numEnvs:           numEnvs,
		actDim:            actDim,
		genDim:            genDim,
		actions:           mat.NewDense(numEnvs, actDim, nil),
		previousActions:   mat.NewDense(numEnvs, actDim, nil),
		unaltered:         mat.NewDense(numEnvs, actDim, nil),
		previousUnaltered: mat.NewDense(numEnvs, actDim, nil),
		genActions:        mat.NewDense(numEnvs, genCols, nil),
	}
}

// Scene returns the scene the embodiment reads from and writes to
func (c *Core) Scene() *scene.Scene { return c.scene }

// RNG returns the per-environment random number generator
func (c *Core) RNG() *rng.PerEnvRNG { return c.rng }

// Logger returns the scalar logger
func (c *Core) Logger() *scalarlog.ScalarLogger { return c.logs }

// NumEnvs returns the number of environment slots
func (c *Core) NumEnvs() int { return c.numEnvs }

// AttachRandomizer attaches a randomizer to the action pipeline
func (c *Core) AttachRandomizer(r randomization.Randomizer) {
	c.randomizers = append(c.randomizers, r)
}

// Randomizers returns the attached randomizers
func (c *Core) Randomizers() []randomization.Randomizer {
	return c.randomizers
}

// BeginActions runs the shared front half of the action pipeline:
// clip to the [-1, 1] actuation range, snapshot the unaltered actions,
// run the attached randomizers' action hooks in place, and store the
// randomized result in the owned action buffers.
func (c *Core) BeginActions(actions *mat.Dense) {
	mathutils.MatClip(actions, -1.0, 1.0)

	c.previousUnaltered.Copy(c.unaltered)
	c.unaltered.Copy(actions)

	for _, r := range c.randomizers {
		r.Actions(c.scene.PhysicsDt(), actions)
	}

	c.previousActions.Copy(c.actions)
	c.actions.Copy(actions)
}

// UpdateRandomizers advances the attached randomizers' time-dependent
// state. Called from ApplyActions.
func (c *Core) UpdateRandomizers() {
	for _, r := range c.randomizers {
		r.Update(c.scene.PhysicsDt(), c.actions)
	}
}

// Actions returns a copy of the current post-randomization actions
func (c *Core) Actions() *mat.Dense { return mat.DenseCopyOf(c.actions) }

// UnalteredActions returns a copy of the current pre-randomization
// actions
func (c *Core) UnalteredActions() *mat.Dense {
	return mat.DenseCopyOf(c.unaltered)
}

// ActionRate returns the squared step-to-step change of the unaltered
// actions, summed over action dimensions, [numEnvs]
func (c *Core) ActionRate() *mat.VecDense {
	out := mat.NewVecDense(c.numEnvs, nil)
	for i := 0; i < c.numEnvs; i++ {
		acc := 0.0
		for j := 0; j < c.actDim; j++ {
			d := c.unaltered.At(i, j) - c.previousUnaltered.At(i, j)
			acc += d * d
		}
		out.SetVec(i, acc)
	}
	return out
}

// GenActions returns a copy of the stored generative actions
func (c *Core) GenActions() *mat.Dense { return mat.DenseCopyOf(c.genActions) }

// ResetCore reseeds the argument environments when seeds are supplied,
// stores (or samples) their generative actions, and zeroes their
// action history. Buffer rows outside ids are untouched.
func (c *Core) ResetCore(ids []int, genActions *mat.Dense, seeds []uint64) []int {
	if ids == nil {
		ids = mathutils.AllIDs(c.numEnvs)
	}
	if seeds != nil {
		c.rng.SetSeeds(ids, seeds)
	}
	if c.genDim > 0 {
		if genActions == nil {
			genActions = c.rng.UniformFloat(0, 1, c.genDim, ids)
		}
		for i, id := range ids {
			for j := 0; j < c.genDim; j++ {
				c.genActions.Set(id, j, genActions.At(i, j))
			}
		}
	}

	mathutils.ZeroRows(c.actions, ids)
	mathutils.ZeroRows(c.previousActions, ids)
	mathutils.ZeroRows(c.unaltered, ids)
	mathutils.ZeroRows(c.previousUnaltered, ids)
	return ids
}

// SetPose writes the root pose of the argument ids through the scene
func (c *Core) SetPose(ids []int, pos *mat.Dense, heading *mat.VecDense) {
	c.scene.SetPose(ids, pos, heading)
}

// SetVelocity writes the root velocity of the argument ids through the
// scene
func (c *Core) SetVelocity(ids []int, linVelW *mat.Dense, angVel *mat.VecDense) {
	c.scene.SetVelocity(ids, linVelW, angVel)
}

// PositionW returns the world root positions, [numEnvs, 2]
func (c *Core) PositionW() *mat.Dense { return c.scene.RootPosW() }

// HeadingW returns the world headings, [numEnvs]
func (c *Core) HeadingW() *mat.VecDense { return c.scene.HeadingW() }

// LinVelW returns the world linear velocities, [numEnvs, 2]
func (c *Core) LinVelW() *mat.Dense { return c.scene.LinVelW() }

// LinVelB returns the body-frame linear velocities, [numEnvs, 2]
func (c *Core) LinVelB() *mat.Dense { return c.scene.LinVelB() }

// AngVelW returns the angular velocities, [numEnvs]
func (c *Core) AngVelW() *mat.VecDense { return c.scene.AngVelW() }

// DenseTensor converts a batched matrix into the boundary tensor
// representation consumed by external code
func DenseTensor(m *mat.Dense) *tensor.Dense {
	r, cols := m.Dims()
	backing := make([]float64, r*cols)
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			backing[i*cols+j] = m.At(i, j)
		}
	}
	return tensor.New(tensor.WithShape(r, cols), tensor.WithBacking(backing))
}

// VecTensor converts a batched vector into a [numEnvs, 1] boundary
// tensor
func VecTensor(v mat.Vector) *tensor.Dense {
	backing := make([]float64, v.Len())
	for i := 0; i < v.Len(); i++ {
		backing[i] = v.AtVec(i)
	}
	return tensor.New(tensor.WithShape(v.Len(), 1),
		tensor.WithBacking(backing))
}
