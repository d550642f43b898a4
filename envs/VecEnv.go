// Package envs implements the vectorized environment boundary. A
// VecEnv owns one scene, one robot, one task, and the randomizers
// attached to them, and steps all environment instances at once.
package envs

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/snt-spacer/NavBench-Code/randomization"
	"github.com/snt-spacer/NavBench-Code/robot"
	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/spec"
	"github.com/snt-spacer/NavBench-Code/task"
	"github.com/snt-spacer/NavBench-Code/utils/mathutils"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
	"github.com/snt-spacer/NavBench-Code/utils/scalarlog"
	"github.com/snt-spacer/NavBench-Code/utils/tensorutils"
)

// StepResult bundles the outputs of one vectorized step. Observations
// has shape [numEnvs, obsDim]. Rewards, TaskFailed, and TaskCompleted
// have one entry per environment.
type StepResult struct {
	Observations  *tensor.Dense
	Rewards       []float64
	TaskFailed    []bool
	TaskCompleted []bool
}

// VecEnv steps numEnvs environment instances in lockstep. Episodes end
// per instance; finished instances keep stepping until the caller
// resets them by id.
type VecEnv struct {
	scene       *scene.Scene
	rob         robot.Robot
	tsk         task.Task
	randomizers []randomization.Randomizer
	rng         *rng.PerEnvRNG
	logs        *scalarlog.ScalarLogger

	numEnvs int
	dt      float64
}

// New assembles a vectorized environment from already-constructed
// components. The randomizers must already be attached to the robot or
// the task; they are listed here only so Reset can drive their
// generative actions.
func New(s *scene.Scene, rob robot.Robot, tsk task.Task,
	randomizers []randomization.Randomizer, r *rng.PerEnvRNG,
	logs *scalarlog.ScalarLogger) (*VecEnv, error) {
	if s.NumEnvs() != r.NumEnvs() {
		return nil, fmt.Errorf("vecenv: scene has %d environments but rng "+
			"has %d", s.NumEnvs(), r.NumEnvs())
	}

	return &VecEnv{
		scene:       s,
		rob:         rob,
		tsk:         tsk,
		randomizers: randomizers,
		rng:         r,
		logs:        logs,
		numEnvs:     s.NumEnvs(),
		dt:          s.PhysicsDt(),
	}, nil
}

// NumEnvs returns the number of environment instances
func (v *VecEnv) NumEnvs() int { return v.numEnvs }

// Robot returns the stepped robot
func (v *VecEnv) Robot() robot.Robot { return v.rob }

// Task returns the stepped task
func (v *VecEnv) Task() task.Task { return v.tsk }

// Logger returns the shared scalar logger
func (v *VecEnv) Logger() *scalarlog.ScalarLogger { return v.logs }

// ActionSpace returns the per-environment action width
func (v *VecEnv) ActionSpace() int { return v.rob.ActionSpace() }

// ObservationSpace returns the per-environment observation width, task
// columns first followed by the robot columns
func (v *VecEnv) ObservationSpace() int {
	return v.tsk.ObservationSpace() + v.rob.ObservationSpace()
}

// GenSpace returns the total generative-action width: the task's
// columns, then the robot's, then one block per randomizer in
// attachment order
func (v *VecEnv) GenSpace() int {
	total := v.tsk.GenSpace() + v.rob.GenSpace()
	for _, r := range v.randomizers {
		total += r.GenSpace()
	}
	return total
}

// ActionSpec describes the expected action tensor
func (v *VecEnv) ActionSpec() spec.Environment {
	return spec.Batched(v.numEnvs, v.ActionSpace(), spec.Action, -1.0, 1.0)
}

// ObservationSpec describes the returned observation tensor
func (v *VecEnv) ObservationSpec() spec.Environment {
	return spec.Batched(v.numEnvs, v.ObservationSpace(), spec.Observation,
		math.Inf(-1), math.Inf(1))
}

// GenActionSpec describes the generative-action tensor accepted by
// Reset
func (v *VecEnv) GenActionSpec() spec.Environment {
	return spec.Batched(v.numEnvs, v.GenSpace(), spec.GenAction, 0.0, 1.0)
}

// matFromTensor checks that t is a [rows, cols] float64 tensor and
// copies it into a dense matrix
func matFromTensor(t *tensor.Dense, rows, cols int, what string) (*mat.Dense,
	error) {
	if t.Dtype() != tensor.Float64 {
		return nil, fmt.Errorf("vecenv: %s tensor must hold float64, got %v",
			what, t.Dtype())
	}
	shape := t.Shape()
	if len(shape) != 2 || shape[0] != rows || shape[1] != cols {
		return nil, fmt.Errorf("vecenv: %s tensor must have shape [%d, %d], "+
			"got %v", what, rows, cols, shape)
	}

	data := make([]float64, rows*cols)
	copy(data, t.Data().([]float64))
	return mat.NewDense(rows, cols, data), nil
}

// Step advances every environment instance by one action. The actions
// tensor must have shape [numEnvs, actionDim] and hold float64 values;
// it is copied, never retained.
func (v *VecEnv) Step(actions *tensor.Dense) (*StepResult, error) {
	acts, err := matFromTensor(actions, v.numEnvs, v.ActionSpace(), "action")
	if err != nil {
		return nil, err
	}

	v.rob.ProcessActions(acts)
	v.rob.ApplyActions()
	v.scene.Advance(v.dt)

	obs := v.tsk.Observations()
	rew := v.tsk.Rewards()

	taskFailed, taskCompleted := v.tsk.Dones()
	robFailed, robDone := v.rob.Dones()
	for i := 0; i < v.numEnvs; i++ {
		taskFailed[i] = taskFailed[i] || robFailed[i]
		taskCompleted[i] = taskCompleted[i] || robDone[i]
	}

	rewards := make([]float64, v.numEnvs)
	for i := 0; i < v.numEnvs; i++ {
		rewards[i] = rew.AtVec(i)
	}

	return &StepResult{
		Observations:  robot.DenseTensor(obs),
		Rewards:       rewards,
		TaskFailed:    taskFailed,
		TaskCompleted: taskCompleted,
	}, nil
}

// Reset reinitializes exactly the argument environment instances and
// leaves every other instance untouched. A nil ids slice resets all
// instances. genActions must be nil, in which case difficulty is
// sampled uniformly, or a [len(ids), GenSpace()] float64 tensor whose
// columns are split between the task, the robot, and the randomizers
// in that order. seeds, when non-nil, reseeds the selected instances
// before any sampling happens.
func (v *VecEnv) Reset(ids []int, genActions *tensor.Dense,
	seeds []uint64) (*tensor.Dense, error) {
	if ids == nil {
		ids = mathutils.AllIDs(v.numEnvs)
	}
	for _, id := range ids {
		if id < 0 || id >= v.numEnvs {
			return nil, fmt.Errorf("vecenv: reset id %d out of range [0, %d)",
				id, v.numEnvs)
		}
	}
	if seeds != nil {
		if len(seeds) != len(ids) {
			return nil, fmt.Errorf("vecenv: got %d seeds for %d reset ids",
				len(seeds), len(ids))
		}
		v.rng.SetSeeds(ids, seeds)
	}

	taskGen, robGen, randGen, err := v.splitGenActions(ids, genActions)
	if err != nil {
		return nil, err
	}

	// The robot resets before the task so the task's initial conditions
	// land on cleared actuator state. Seeds are nil below because the
	// shared rng was already reseeded above.
	v.rob.Reset(ids, robGen, nil)
	v.tsk.Reset(ids, taskGen, nil)
	for i, r := range v.randomizers {
		r.Reset(ids, randGen[i])
	}

	return robot.DenseTensor(v.tsk.Observations()), nil
}

// splitGenActions slices the flat generative-action tensor into the
// per-component blocks. Block rows follow the order of ids, matching
// what the components sample internally when handed nil.
func (v *VecEnv) splitGenActions(ids []int, genActions *tensor.Dense) (
	taskGen, robGen *mat.Dense, randGen []*mat.Dense, err error) {
	randGen = make([]*mat.Dense, len(v.randomizers))
	if genActions == nil {
		return nil, nil, randGen, nil
	}

	shape := genActions.Shape()
	if len(shape) != 2 || shape[0] != len(ids) || shape[1] != v.GenSpace() {
		return nil, nil, nil, fmt.Errorf("vecenv: generative action tensor "+
			"must have shape [%d, %d], got %v", len(ids), v.GenSpace(), shape)
	}

	col := 0
	next := func(width int) (*mat.Dense, error) {
		if width == 0 {
			return nil, nil
		}
		block, err := tensorutils.ColumnBlock(genActions, col, width)
		if err != nil {
			return nil, err
		}
		col += width
		if min, max := mat.Min(block), mat.Max(block); min < 0 || max > 1 {
			return nil, fmt.Errorf("vecenv: generative actions must lie in "+
				"[0, 1], got range [%v, %v]", min, max)
		}
		return block, nil
	}

	if taskGen, err = next(v.tsk.GenSpace()); err != nil {
		return nil, nil, nil, err
	}
	if robGen, err = next(v.rob.GenSpace()); err != nil {
		return nil, nil, nil, err
	}
	for i, r := range v.randomizers {
		if randGen[i], err = next(r.GenSpace()); err != nil {
			return nil, nil, nil, err
		}
	}
	return taskGen, robGen, randGen, nil
}

// EvalDataKeys returns the names of the evaluation channels
func (v *VecEnv) EvalDataKeys() []string { return v.rob.EvalDataKeys() }

// EvalData returns the per-environment evaluation tensors keyed by
// EvalDataKeys
func (v *VecEnv) EvalData() map[string]*tensor.Dense { return v.rob.EvalData() }
