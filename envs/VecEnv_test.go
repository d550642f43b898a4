package envs

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/snt-spacer/NavBench-Code/randomization"
	"github.com/snt-spacer/NavBench-Code/robot"
	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/task"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
	"github.com/snt-spacer/NavBench-Code/utils/scalarlog"
)

func newEnv(t *testing.T, numEnvs int,
	randomizers []randomization.Randomizer) *VecEnv {
	return newEnvWithTaskCfg(t, numEnvs, nil, randomizers)
}

func newEnvWithTaskCfg(t *testing.T, numEnvs int, taskCfg task.Cfg,
	randomizers []randomization.Randomizer) *VecEnv {
	s := scene.New(numEnvs, 6, 0.02)
	r := rng.New(42, numEnvs)
	logs := scalarlog.New(nil)

	rob, err := robot.Make("Leatherback", nil, s, r, logs, numEnvs)
	require.NoError(t, err)
	tsk, err := task.Make("GoToPosition", taskCfg, s, r, rob, logs, numEnvs)
	require.NoError(t, err)

	for _, rand := range randomizers {
		rob.AttachRandomizer(rand)
		tsk.AttachRandomizer(rand)
	}

	env, err := New(s, rob, tsk, randomizers, r, logs)
	require.NoError(t, err)
	return env
}

func zeroActions(env *VecEnv) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(env.NumEnvs(), env.ActionSpace()),
		tensor.WithBacking(make([]float64, env.NumEnvs()*env.ActionSpace())))
}

func TestResetReturnsObservationTensor(t *testing.T) {
	env := newEnv(t, 4, nil)

	obs, err := env.Reset(nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []int(obs.Shape()), []int{4, env.ObservationSpace()})
	assert.Equal(t, tensor.Float64, obs.Dtype())
}

func TestStepShapeValidation(t *testing.T) {
	env := newEnv(t, 2, nil)
	_, err := env.Reset(nil, nil, nil)
	require.NoError(t, err)

	bad := tensor.New(tensor.WithShape(3, env.ActionSpace()),
		tensor.WithBacking(make([]float64, 3*env.ActionSpace())))
	_, err = env.Step(bad)
	assert.Error(t, err)

	wrongType := tensor.New(tensor.WithShape(2, env.ActionSpace()),
		tensor.WithBacking(make([]float32, 2*env.ActionSpace())))
	_, err = env.Step(wrongType)
	assert.Error(t, err)
}

func TestStepReturnsPerEnvOutputs(t *testing.T) {
	env := newEnv(t, 3, nil)
	_, err := env.Reset(nil, nil, nil)
	require.NoError(t, err)

	result, err := env.Step(zeroActions(env))
	require.NoError(t, err)

	assert.Equal(t, []int(result.Observations.Shape()),
		[]int{3, env.ObservationSpace()})
	assert.Len(t, result.Rewards, 3)
	assert.Len(t, result.TaskFailed, 3)
	assert.Len(t, result.TaskCompleted, 3)
}

func TestResetRejectsOutOfRangeIDs(t *testing.T) {
	env := newEnv(t, 2, nil)
	_, err := env.Reset([]int{2}, nil, nil)
	assert.Error(t, err)
	_, err = env.Reset([]int{-1}, nil, nil)
	assert.Error(t, err)
}

func TestResetRejectsOutOfRangeGenActions(t *testing.T) {
	env := newEnv(t, 2, nil)

	gen := tensor.New(tensor.WithShape(2, env.GenSpace()),
		tensor.WithBacking(make([]float64, 2*env.GenSpace())))
	require.NoError(t, gen.SetAt(1.5, 0, 0))
	_, err := env.Reset(nil, gen, nil)
	assert.Error(t, err)
}

func TestGenSpaceSumsComponents(t *testing.T) {
	cfg := randomization.NewNoisyActionsCfg()
	cfg.Modes = []string{"uniform"}
	cfg.Slices = [][2]int{{0, 2}}
	cfg.MaxDelta = []float64{0.1}
	noise, err := randomization.Make("NoisyActions", cfg, rng.New(1, 2),
		nil, 2)
	require.NoError(t, err)

	env := newEnv(t, 2, []randomization.Randomizer{noise})

	// 4 task columns, 0 robot columns, 1 randomizer column
	assert.Equal(t, 5, env.GenSpace())

	shape := env.GenActionSpec().Shape
	assert.Equal(t, 2.0, shape.AtVec(0))
	assert.Equal(t, 5.0, shape.AtVec(1))
}

func TestSeededResetsReproduceTrajectories(t *testing.T) {
	run := func() []float64 {
		env := newEnv(t, 2, nil)
		_, err := env.Reset(nil, nil, []uint64{7, 11})
		require.NoError(t, err)

		var rewards []float64
		for step := 0; step < 20; step++ {
			result, err := env.Step(zeroActions(env))
			require.NoError(t, err)
			rewards = append(rewards, result.Rewards...)
		}
		return rewards
	}

	assert.Equal(t, run(), run())
}

func TestPartialResetDoesNotPerturbSurvivors(t *testing.T) {
	// Two identical environments. In one of them instance 0 gets reset
	// mid-run; instance 1 must produce the exact same trajectory in
	// both.
	envA := newEnv(t, 2, nil)
	envB := newEnv(t, 2, nil)

	seeds := []uint64{7, 11}
	_, err := envA.Reset(nil, nil, seeds)
	require.NoError(t, err)
	_, err = envB.Reset(nil, nil, seeds)
	require.NoError(t, err)

	for step := 0; step < 10; step++ {
		ra, err := envA.Step(zeroActions(envA))
		require.NoError(t, err)
		rb, err := envB.Step(zeroActions(envB))
		require.NoError(t, err)
		assert.Equal(t, ra.Rewards[1], rb.Rewards[1], "step %d", step)

		if step == 4 {
			_, err = envA.Reset([]int{0}, nil, nil)
			require.NoError(t, err)
		}
	}
}

func TestZeroActionRolloutNeverTerminates(t *testing.T) {
	// A zero policy coasts to a stop well before covering the 0.5 m
	// minimum spawn distance, and the 10 m boundary is out of reach of
	// the 5 m maximum. No instance may complete or fail.
	env := newEnv(t, 4, nil)
	_, err := env.Reset(nil, nil, nil)
	require.NoError(t, err)

	for step := 0; step < 512; step++ {
		result, err := env.Step(zeroActions(env))
		require.NoError(t, err)
		for i := 0; i < env.NumEnvs(); i++ {
			require.False(t, result.TaskFailed[i], "step %d env %d", step, i)
			require.False(t, result.TaskCompleted[i], "step %d env %d",
				step, i)
		}
	}
}

func TestObservationSpecIsUnbounded(t *testing.T) {
	env := newEnv(t, 2, nil)

	obsSpec := env.ObservationSpec()
	assert.True(t, math.IsInf(obsSpec.LowerBound.AtVec(0), -1))
	assert.True(t, math.IsInf(obsSpec.UpperBound.AtVec(0), 1))

	actSpec := env.ActionSpec()
	assert.Equal(t, -1.0, actSpec.LowerBound.AtVec(0))
	assert.Equal(t, 1.0, actSpec.UpperBound.AtVec(0))
}

func TestSpawnBeyondBoundaryFailsTask(t *testing.T) {
	// Every spawn radius exceeds the 10 m failure boundary, so a zero
	// policy fails every instance on the first step
	cfg := task.NewGoToPositionCfg()
	cfg.SpawnMinDist = 10.5
	cfg.SpawnMaxDist = 12.0
	env := newEnvWithTaskCfg(t, 3, cfg, nil)

	_, err := env.Reset(nil, nil, nil)
	require.NoError(t, err)

	result, err := env.Step(zeroActions(env))
	require.NoError(t, err)
	for i := 0; i < env.NumEnvs(); i++ {
		assert.True(t, result.TaskFailed[i], "env %d", i)
		assert.False(t, result.TaskCompleted[i], "env %d", i)
	}
}

func TestGoalDirectedPolicyOutscoresZeroPolicy(t *testing.T) {
	// With all-zero generative actions every instance spawns 0.5 m
	// from its goal, facing it, at rest. Driving straight ahead at a
	// gentle throttle closes that distance within the rollout while a
	// zero policy holds station, so the goal-directed return must
	// exceed the idle return.
	rollout := func(throttle float64) float64 {
		env := newEnvWithTaskCfg(t, 4, nil, nil)
		gen := tensor.New(tensor.WithShape(4, env.GenSpace()),
			tensor.WithBacking(make([]float64, 4*env.GenSpace())))
		_, err := env.Reset(nil, gen, []uint64{3, 5, 7, 11})
		require.NoError(t, err)

		total := 0.0
		for step := 0; step < 100; step++ {
			actions := zeroActions(env)
			for i := 0; i < env.NumEnvs(); i++ {
				require.NoError(t, actions.SetAt(throttle, i, 0))
			}
			result, err := env.Step(actions)
			require.NoError(t, err)
			for _, r := range result.Rewards {
				total += r
			}
		}
		return total
	}

	assert.Greater(t, rollout(0.1), rollout(0.0))
}

func TestEvalDataMatchesKeys(t *testing.T) {
	env := newEnv(t, 2, nil)
	_, err := env.Reset(nil, nil, nil)
	require.NoError(t, err)

	keys := env.EvalDataKeys()
	data := env.EvalData()
	require.Equal(t, len(keys), len(data))
	for _, key := range keys {
		assert.Contains(t, data, key)
	}
}
