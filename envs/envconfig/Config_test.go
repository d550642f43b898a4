package envconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exampleConfig = `
robot: Leatherback
task: GoToPosition
num_envs: 8
seed: 1234
physics_dt: 0.01
robot_cfg:
  throttle_scale: 25.0
task_cfg:
  position_tolerance: 0.2
  maximum_robot_distance: 20.0
randomizers:
  - name: NoisyActions
    cfg:
      modes: [uniform]
      slices: [[0, 2]]
      max_delta: [0.05]
      clip_actions: [[-1.0, 1.0]]
`

func TestParseExampleConfig(t *testing.T) {
	cfg, err := Parse([]byte(exampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "Leatherback", cfg.Robot)
	assert.Equal(t, "GoToPosition", cfg.Task)
	assert.Equal(t, 8, cfg.NumEnvs)
	assert.Equal(t, uint64(1234), cfg.Seed)
	assert.Equal(t, 0.01, cfg.PhysicsDt)
	// Unset fields keep their defaults
	assert.Equal(t, 4.0, cfg.EnvSpacing)
	require.Len(t, cfg.Randomizers, 1)
	assert.Equal(t, "NoisyActions", cfg.Randomizers[0].Name)

	require.NoError(t, cfg.Validate())
}

func TestParseRejectsUnknownFields(t *testing.T) {
	_, err := Parse([]byte("robot: Leatherback\ngravity: 9.81\n"))
	assert.Error(t, err)
}

func TestValidateRejectsUnknownComponents(t *testing.T) {
	cfg := NewConfig("Quadcopter", "GoToPosition", 4, 1)
	assert.Error(t, cfg.Validate())

	cfg = NewConfig("Leatherback", "RaceTrack", 4, 1)
	assert.Error(t, cfg.Validate())

	cfg = NewConfig("Leatherback", "GoToPosition", 0, 1)
	assert.Error(t, cfg.Validate())
}

func TestCreateAppliesOverrides(t *testing.T) {
	cfg, err := Parse([]byte(exampleConfig))
	require.NoError(t, err)

	env, err := cfg.Create(nil)
	require.NoError(t, err)

	assert.Equal(t, 8, env.NumEnvs())
	assert.Equal(t, 2, env.ActionSpace())
	// 6 task + 2 robot observation columns
	assert.Equal(t, 8, env.ObservationSpace())
	// 4 task + 0 robot + 1 randomizer generative columns
	assert.Equal(t, 5, env.GenSpace())

	_, err = env.Reset(nil, nil, nil)
	require.NoError(t, err)
}

func TestCreateRejectsInvalidOverride(t *testing.T) {
	cfg, err := Parse([]byte(`
robot: Leatherback
task: GoToPosition
num_envs: 2
seed: 1
robot_cfg:
  wheel_radius: -1.0
`))
	require.NoError(t, err)

	_, err = cfg.Create(nil)
	assert.Error(t, err)
}

func TestCreateRejectsMisalignedRandomizerCfg(t *testing.T) {
	cfg, err := Parse([]byte(`
robot: Leatherback
task: GoToPosition
num_envs: 2
seed: 1
randomizers:
  - name: NoisyActions
    cfg:
      modes: [uniform]
      slices: [[0, 2]]
      max_delta: [0.05, 0.05]
`))
	require.NoError(t, err)

	_, err = cfg.Create(nil)
	assert.Error(t, err)
}

func TestGridOriginsAreDistinct(t *testing.T) {
	origins := gridOrigins(5, 4.0)
	rows, _ := origins.Dims()
	require.Equal(t, 5, rows)

	seen := map[[2]float64]bool{}
	for i := 0; i < rows; i++ {
		key := [2]float64{origins.At(i, 0), origins.At(i, 1)}
		assert.False(t, seen[key])
		seen[key] = true
	}
}
