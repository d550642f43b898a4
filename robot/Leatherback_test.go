package robot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/snt-spacer/NavBench-Code/randomization"
	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
	"github.com/snt-spacer/NavBench-Code/utils/scalarlog"
)

func newLeatherback(t *testing.T, numEnvs int) (*Leatherback, *scene.Scene,
	*rng.PerEnvRNG) {
	s := scene.New(numEnvs, leatherbackNumJoints, 0.02)
	r := rng.New(42, numEnvs)
	logs := scalarlog.New(nil)

	l, err := NewLeatherback(NewLeatherbackCfg(), s, r, logs, numEnvs)
	require.NoError(t, err)
	return l, s, r
}

func TestMakeUnknownRobot(t *testing.T) {
	_, err := MakeCfg("Quadcopter")
	assert.Error(t, err)
}

func TestRegisteredContainsBuiltins(t *testing.T) {
	names := Registered()
	assert.Contains(t, names, "Leatherback")
	assert.Contains(t, names, "Jetbot")
}

func TestLeatherbackRejectsTooFewJoints(t *testing.T) {
	s := scene.New(2, 2, 0.02)
	_, err := NewLeatherback(NewLeatherbackCfg(), s, rng.New(1, 2),
		scalarlog.New(nil), 2)
	assert.Error(t, err)
}

func TestProcessActionsClipsToActuationRange(t *testing.T) {
	l, _, _ := newLeatherback(t, 1)

	l.ProcessActions(mat.NewDense(1, 2, []float64{5, -5}))

	acts := l.Actions()
	assert.Equal(t, 1.0, acts.At(0, 0))
	assert.Equal(t, -1.0, acts.At(0, 1))
}

func TestProcessActionsMapsActuatorTargets(t *testing.T) {
	l, _, _ := newLeatherback(t, 1)
	cfg := NewLeatherbackCfg()

	l.ProcessActions(mat.NewDense(1, 2, []float64{0.5, -0.4}))

	for j := 0; j < len(leatherbackWheelJoints); j++ {
		assert.InDelta(t, 0.5*cfg.ThrottleScale, l.throttle.At(0, j), 1e-12)
	}
	for j := 0; j < len(leatherbackSteeringJoints); j++ {
		assert.InDelta(t, -0.4*cfg.SteeringScale, l.steering.At(0, j), 1e-12)
	}
}

func TestActionRateUsesUnalteredActions(t *testing.T) {
	l, _, r := newLeatherback(t, 1)

	// Attach loud uniform action noise so the randomized actions differ
	// from the emitted ones
	noiseCfg := randomization.NewNoisyActionsCfg()
	noiseCfg.Modes = []string{"uniform"}
	noiseCfg.Slices = [][2]int{{0, 2}}
	noiseCfg.MaxDelta = []float64{0.5}
	noise, err := randomization.Make("NoisyActions", noiseCfg, r, nil, 1)
	require.NoError(t, err)
	noise.Reset(nil, mat.NewDense(1, 1, []float64{1}))
	l.AttachRandomizer(noise)

	l.ProcessActions(mat.NewDense(1, 2, []float64{0.2, 0.2}))
	l.ProcessActions(mat.NewDense(1, 2, []float64{0.2, 0.2}))

	// Identical emitted actions mean zero rate no matter what the noise
	// did to the actuation
	assert.Equal(t, 0.0, l.ActionRate().AtVec(0))

	l.ProcessActions(mat.NewDense(1, 2, []float64{0.5, 0.2}))
	assert.InDelta(t, 0.09, l.ActionRate().AtVec(0), 1e-12)
}

func TestObservationsAreUnalteredActions(t *testing.T) {
	l, _, _ := newLeatherback(t, 2)

	l.ProcessActions(mat.NewDense(2, 2, []float64{0.3, -0.6, 2.0, 0.1}))

	obs := l.Observations()
	assert.Equal(t, 0.3, obs.At(0, 0))
	assert.Equal(t, -0.6, obs.At(0, 1))
	// Clipping happens before the snapshot
	assert.Equal(t, 1.0, obs.At(1, 0))
}

func TestResetOnlyTouchesSelectedIDs(t *testing.T) {
	l, _, _ := newLeatherback(t, 3)

	l.ProcessActions(mat.NewDense(3, 2, []float64{
		0.1, 0.1, 0.2, 0.2, 0.3, 0.3,
	}))
	l.Reset([]int{1}, nil, nil)

	acts := l.Actions()
	assert.Equal(t, 0.1, acts.At(0, 0))
	assert.Equal(t, 0.0, acts.At(1, 0))
	assert.Equal(t, 0.3, acts.At(2, 0))
	assert.Equal(t, 0.0, l.throttle.At(1, 0))
}

func TestApplyActionsCommandsTheScene(t *testing.T) {
	l, s, _ := newLeatherback(t, 1)

	l.ProcessActions(mat.NewDense(1, 2, []float64{1.0, 0.0}))
	l.ApplyActions()

	for i := 0; i < 200; i++ {
		s.Advance(0.02)
	}

	// Full throttle, no steering: the car moves forward along +x
	pos := s.RootPosW()
	assert.Greater(t, pos.At(0, 0), 0.5)
	assert.InDelta(t, 0.0, pos.At(0, 1), 1e-9)
	assert.InDelta(t, 0.0, s.AngVelW().AtVec(0), 1e-9)
}

func TestJetbotDifferentialKinematics(t *testing.T) {
	s := scene.New(1, jetbotNumJoints, 0.02)
	j, err := NewJetbot(NewJetbotCfg(), s, rng.New(3, 1),
		scalarlog.New(nil), 1)
	require.NoError(t, err)

	// Equal wheel commands drive straight
	j.ProcessActions(mat.NewDense(1, 2, []float64{0.5, 0.5}))
	j.ApplyActions()
	for i := 0; i < 200; i++ {
		s.Advance(0.02)
	}
	assert.Greater(t, s.RootPosW().At(0, 0), 0.1)
	assert.InDelta(t, 0.0, s.AngVelW().AtVec(0), 1e-9)

	// Opposite wheel commands spin in place
	j.Reset(nil, nil, nil)
	s.SetPose(nil, mat.NewDense(1, 2, nil), mat.NewVecDense(1, nil))
	s.SetVelocity(nil, mat.NewDense(1, 2, nil), mat.NewVecDense(1, nil))
	j.ProcessActions(mat.NewDense(1, 2, []float64{-0.5, 0.5}))
	j.ApplyActions()
	for i := 0; i < 200; i++ {
		s.Advance(0.02)
	}
	assert.InDelta(t, 0.0, s.LinVelB().At(0, 0), 1e-9)
	assert.Greater(t, s.AngVelW().AtVec(0), 0.0)
}

func TestEvalDataShapes(t *testing.T) {
	l, _, _ := newLeatherback(t, 4)

	keys := l.EvalDataKeys()
	data := l.EvalData()
	require.Equal(t, len(keys), len(data))
	for _, key := range keys {
		require.Contains(t, data, key)
		shape := data[key].Shape()
		assert.Equal(t, 4, shape[0])
	}
}
