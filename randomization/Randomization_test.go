package randomization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/snt-spacer/NavBench-Code/utils/rng"
)

func TestParseModeUnknownName(t *testing.T) {
	_, err := ParseMode("gaussian")
	assert.Error(t, err)
}

func TestParseModesRejectsUniformAndNormal(t *testing.T) {
	_, err := ParseModes([]string{"uniform", "normal"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot be combined")
}

func TestValidateRejectsMissingSlices(t *testing.T) {
	cfg := NewNoisyActionsCfg()
	cfg.Modes = []string{"uniform"}
	cfg.MaxDelta = []float64{0.1}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsMisalignedMaxDelta(t *testing.T) {
	cfg := NewNoisyActionsCfg()
	cfg.Modes = []string{"uniform"}
	cfg.Slices = [][2]int{{0, 1}, {1, 2}}
	cfg.MaxDelta = []float64{0.1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_delta")
}

func TestValidateRejectsMisalignedStd(t *testing.T) {
	cfg := NewNoisyObservationsCfg()
	cfg.Modes = []string{"normal"}
	cfg.Slices = [][2]int{{0, 2}}
	cfg.Std = []float64{0.1, 0.2}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "std")
}

func TestValidateRejectsMisalignedClip(t *testing.T) {
	cfg := NewNoisyActionsCfg()
	cfg.Modes = []string{"uniform"}
	cfg.Slices = [][2]int{{0, 1}}
	cfg.MaxDelta = []float64{0.1}
	cfg.Clip = [][2]float64{{-1, 1}, {-1, 1}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clip")
}

func TestValidateRejectsInvalidSlice(t *testing.T) {
	cfg := NewNoisyActionsCfg()
	cfg.Modes = []string{"uniform"}
	cfg.Slices = [][2]int{{2, 2}}
	cfg.MaxDelta = []float64{0.1}
	assert.Error(t, cfg.Validate())
}

func TestMakeCfgUnknownName(t *testing.T) {
	_, err := MakeCfg("WindGusts")
	assert.Error(t, err)
}

func TestRegisteredContainsBuiltins(t *testing.T) {
	names := Registered()
	assert.Contains(t, names, "NoisyActions")
	assert.Contains(t, names, "NoisyObservations")
}

func makeNoisyActions(t *testing.T, r *rng.PerEnvRNG,
	numEnvs int) Randomizer {
	cfg := NewNoisyActionsCfg()
	cfg.Modes = []string{"uniform"}
	cfg.Slices = [][2]int{{0, 2}}
	cfg.MaxDelta = []float64{0.2}
	cfg.Clip = [][2]float64{{-1, 1}}

	rand, err := Make("NoisyActions", cfg, r, nil, numEnvs)
	require.NoError(t, err)
	return rand
}

func TestZeroGenScalarDisablesNoise(t *testing.T) {
	r := rng.New(42, 3)
	rand := makeNoisyActions(t, r, 3)

	rand.Reset(nil, mat.NewDense(3, 1, nil))

	actions := mat.NewDense(3, 2, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6})
	want := mat.DenseCopyOf(actions)
	rand.Actions(0.02, actions)
	assert.True(t, mat.Equal(want, actions))
}

func TestUniformNoiseIsBoundedAndClipped(t *testing.T) {
	r := rng.New(42, 4)
	rand := makeNoisyActions(t, r, 4)

	gen := mat.NewDense(4, 1, []float64{1, 1, 1, 1})
	rand.Reset(nil, gen)

	for trial := 0; trial < 50; trial++ {
		actions := mat.NewDense(4, 2, []float64{
			0, 0.5, -0.5, 0.99, 0.99, -0.99, 0.2, -0.2,
		})
		before := mat.DenseCopyOf(actions)
		rand.Actions(0.02, actions)
		for i := 0; i < 4; i++ {
			for j := 0; j < 2; j++ {
				delta := actions.At(i, j) - before.At(i, j)
				assert.LessOrEqual(t, math.Abs(delta), 0.2+1e-9)
				assert.LessOrEqual(t, actions.At(i, j), 1.0)
				assert.GreaterOrEqual(t, actions.At(i, j), -1.0)
			}
		}
	}
}

func TestNoisyObservationsLeavesOtherColumnsAlone(t *testing.T) {
	r := rng.New(7, 2)
	cfg := NewNoisyObservationsCfg()
	cfg.Modes = []string{"normal"}
	cfg.Slices = [][2]int{{1, 2}}
	cfg.Std = []float64{0.5}

	rand, err := Make("NoisyObservations", cfg, r, nil, 2)
	require.NoError(t, err)
	rand.Reset(nil, mat.NewDense(2, 1, []float64{1, 1}))

	obs := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
	rand.Observations(obs)

	assert.Equal(t, 1.0, obs.At(0, 0))
	assert.Equal(t, 3.0, obs.At(0, 2))
	assert.Equal(t, 4.0, obs.At(1, 0))
	assert.Equal(t, 6.0, obs.At(1, 2))
}

func TestResetOnlyTouchesSelectedIDs(t *testing.T) {
	r := rng.New(13, 3)
	rand := makeNoisyActions(t, r, 3)

	rand.Reset(nil, mat.NewDense(3, 1, []float64{0, 0, 0}))
	rand.Reset([]int{1}, mat.NewDense(1, 1, []float64{1}))

	knobs := rand.Data()["action_noise"]
	require.NotNil(t, knobs)
	assert.Equal(t, 0.0, knobs.At(0, 0))
	assert.InDelta(t, 0.2, knobs.At(1, 0), 1e-12)
	assert.Equal(t, 0.0, knobs.At(2, 0))
}
