// Package task implements the episodic goal-directed logic layered on
// top of a robot embodiment: goal sampling, observation assembly,
// reward shaping, and termination detection.
//
// Per environment slot a task is Active until it either Fails (a hard
// constraint such as the distance boundary is violated) or Completes
// (the goal-reached hysteresis counter exceeds its threshold); an
// external reset returns the slot to Active.
package task

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/snt-spacer/NavBench-Code/randomization"
	"github.com/snt-spacer/NavBench-Code/robot"
	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/utils/mathutils"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
	"github.com/snt-spacer/NavBench-Code/utils/scalarlog"
)

// Cfg is the configuration contract every task configuration satisfies
type Cfg interface {
	Validate() error
	ObservationSpace() int
	GenSpace() int
}

// Task is the episodic contract consumed by the vectorized
// environment
type Task interface {
	// Name returns the registered name of the task
	Name() string

	// ObservationSpace returns the width of the task observation slice
	ObservationSpace() int

	// GenSpace returns the width of the generative-action slice
	// consumed on reset
	GenSpace() int

	// AttachRandomizer attaches a randomizer whose observation hook
	// runs on the task observation slice
	AttachRandomizer(r randomization.Randomizer)

	// Observations recomputes the task-relative geometry, applies the
	// observation randomizers, and returns the task slice concatenated
	// with the robot slice, [numEnvs, ObservationSpace+robot obs]
	Observations() *mat.Dense

	// Rewards returns the weighted task reward plus the delegated
	// robot reward, [numEnvs]
	Rewards() *mat.VecDense

	// Dones returns the per-environment failure and completion flags
	Dones() (taskFailed, taskCompleted []bool)

	// Reset resamples goals and initial conditions for exactly the
	// argument ids. Goals are set strictly before initial conditions;
	// cached error buffers are recomputed so the first observation
	// after the reset reflects the post-reset state. Nil genActions
	// are drawn uniformly from [0, 1]^GenSpace.
	Reset(ids []int, genActions *mat.Dense, seeds []uint64)

	// SetGoals resamples the goal state of the argument ids
	SetGoals(ids []int)

	// SetInitialConditions resamples the spawn state of the argument
	// ids, scaled by their generative actions
	SetInitialConditions(ids []int)

	// Robot returns the embodiment the task drives
	Robot() robot.Robot
}

// Factory builds a Task from its validated configuration over an
// existing robot
type Factory func(cfg Cfg, s *scene.Scene, r *rng.PerEnvRNG,
	rob robot.Robot, logs *scalarlog.ScalarLogger, numEnvs int) (Task, error)

var (
	factories    = map[string]Factory{}
	cfgFactories = map[string]func() Cfg{}
)

// Register registers a task implementation and its configuration
// constructor under a name
func Register(name string, cfgFactory func() Cfg, factory Factory) {
	factories[name] = factory
	cfgFactories[name] = cfgFactory
}

// Registered returns the names of all registered tasks
func Registered() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// MakeCfg returns a default configuration for the named task
func MakeCfg(name string) (Cfg, error) {
	cfgFactory, ok := cfgFactories[name]
	if !ok {
		return nil, fmt.Errorf("task: no task registered under name %q", name)
	}
	return cfgFactory(), nil
}

// Make validates the configuration and builds the named task. A nil
// cfg uses the registered defaults.
func Make(name string, cfg Cfg, s *scene.Scene, r *rng.PerEnvRNG,
	rob robot.Robot, logs *scalarlog.ScalarLogger,
	numEnvs int) (Task, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("task: no task registered under name %q", name)
	}
	if cfg == nil {
		cfg = cfgFactories[name]()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return factory(cfg, s, r, rob, logs, numEnvs)
}

// Core owns the task state shared by every concrete task: the task
// observation buffer, the generative actions of the last reset, and
// the goal-reached hysteresis counter.
type Core struct {
	scene       *scene.Scene
	rng         *rng.PerEnvRNG
	logs        *scalarlog.ScalarLogger
	rob         robot.Robot
	numEnvs     int
	taskObs     int
	genDim      int
	randomizers []randomization.Randomizer

	taskData    *mat.Dense
	genActions  *mat.Dense
	goalReached []int
}

// NewCore creates the shared task buffers
func NewCore(s *scene.Scene, r *rng.PerEnvRNG, logs *scalarlog.ScalarLogger,
	rob robot.Robot, numEnvs, taskObs, genDim int) Core {
	return Core{
		scene:       s,
		rng:         r,
		logs:        logs,
		rob:         rob,
		numEnvs:     numEnvs,
		taskObs:     taskObs,
		genDim:      genDim,
		taskData:    mat.NewDense(numEnvs, taskObs, nil),
		genActions:  mat.NewDense(numEnvs, genDim, nil),
		goalReached: make([]int, numEnvs),
	}
}

// Scene returns the shared scene
func (c *Core) Scene() *scene.Scene { return c.scene }

// RNG returns the per-environment random number generator
func (c *Core) RNG() *rng.PerEnvRNG { return c.rng }

// Logger returns the scalar logger
func (c *Core) Logger() *scalarlog.ScalarLogger { return c.logs }

// Robot returns the embodiment the task drives
func (c *Core) Robot() robot.Robot { return c.rob }

// NumEnvs returns the number of environment slots
func (c *Core) NumEnvs() int { return c.numEnvs }

// AttachRandomizer attaches a randomizer to the observation pipeline
func (c *Core) AttachRandomizer(r randomization.Randomizer) {
	c.randomizers = append(c.randomizers, r)
}

// TaskData returns the task observation buffer. The buffer is owned by
// the task; concrete tasks write their observation columns into it.
func (c *Core) TaskData() *mat.Dense { return c.taskData }

// GenActions returns the stored generative actions. Column semantics
// are defined by the concrete task.
func (c *Core) GenActions() *mat.Dense { return c.genActions }

// ApplyObservationRandomizers runs the attached randomizers'
// observation hooks on the task observation buffer in place
func (c *Core) ApplyObservationRandomizers() {
	for _, r := range c.randomizers {
		r.Observations(c.taskData)
	}
}

// ConcatWithRobot returns the task observation buffer concatenated
// with the robot observation slice
func (c *Core) ConcatWithRobot() *mat.Dense {
	robObs := c.rob.Observations()
	_, robCols := robObs.Dims()
	out := mat.NewDense(c.numEnvs, c.taskObs+robCols, nil)
	for i := 0; i < c.numEnvs; i++ {
		for j := 0; j < c.taskObs; j++ {
			out.Set(i, j, c.taskData.At(i, j))
		}
		for j := 0; j < robCols; j++ {
			out.Set(i, c.taskObs+j, robObs.At(i, j))
		}
	}
	return out
}

// UpdateGoalCounter advances the hysteresis counter: an in-tolerance
// step increments it, an out-of-tolerance step resets it to zero
func (c *Core) UpdateGoalCounter(inTolerance []bool) {
	for i, in := range inTolerance {
		if in {
			c.goalReached[i]++
		} else {
			c.goalReached[i] = 0
		}
	}
}

// GoalCounter returns the hysteresis counter value of one slot
func (c *Core) GoalCounter(id int) int { return c.goalReached[id] }

// CounterExceeds returns, per environment, whether the hysteresis
// counter is strictly greater than the threshold
func (c *Core) CounterExceeds(threshold int) []bool {
	out := make([]bool, c.numEnvs)
	for i, v := range c.goalReached {
		out[i] = v > threshold
	}
	return out
}

// ResetCore reseeds the argument environments when seeds are supplied,
// stores (or samples) their generative actions, and zeroes their
// hysteresis counters. Returns the resolved id set.
func (c *Core) ResetCore(ids []int, genActions *mat.Dense, seeds []uint64) []int {
	if ids == nil {
		ids = mathutils.AllIDs(c.numEnvs)
	}
	if seeds != nil {
		c.rng.SetSeeds(ids, seeds)
	}
	if genActions == nil {
		genActions = c.rng.UniformFloat(0, 1, c.genDim, ids)
	}
	for i, id := range ids {
		for j := 0; j < c.genDim; j++ {
			c.genActions.Set(id, j, genActions.At(i, j))
		}
		c.goalReached[id] = 0
	}
	mathutils.ZeroRows(c.taskData, ids)
	return ids
}
