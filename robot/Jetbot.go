package robot

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/utils/mathutils"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
	"github.com/snt-spacer/NavBench-Code/utils/scalarlog"
)

const (
	jetbotNumJoints  = 2
	jetbotActionDims = 2
	jetbotObsDims    = 2
)

var jetbotWheelJoints = []int{0, 1}

func init() {
	Register("Jetbot",
		func() Cfg { return NewJetbotCfg() },
		func(cfg Cfg, s *scene.Scene, r *rng.PerEnvRNG,
			logs *scalarlog.ScalarLogger, numEnvs int) (Robot, error) {
			return NewJetbot(cfg.(*JetbotCfg), s, r, logs, numEnvs)
		})
}

// JetbotCfg configures the Jetbot embodiment, a two-wheel differential
// drive. The actions are the left and right wheel velocity commands.
type JetbotCfg struct {
	// WheelScale maps each wheel action in [-1, 1] to a wheel angular
	// velocity target
	WheelScale float64 `yaml:"wheel_scale"`

	// WheelRadius and Track parametrize the differential-drive
	// kinematics
	WheelRadius float64 `yaml:"wheel_radius"`
	Track       float64 `yaml:"track"`

	// RewActionRateScale weights the squared action-rate penalty
	RewActionRateScale float64 `yaml:"rew_action_rate_scale"`

	// RewJointAccelScale weights the squared joint-acceleration
	// penalty
	RewJointAccelScale float64 `yaml:"rew_joint_accel_scale"`
}

// NewJetbotCfg returns the default Jetbot configuration
func NewJetbotCfg() *JetbotCfg {
	return &JetbotCfg{
		WheelScale:         20.0,
		WheelRadius:        0.03,
		Track:              0.12,
		RewActionRateScale: -0.05,
		RewJointAccelScale: -2.5e-6,
	}
}

// ActionSpace returns the action dimensionality (left, right wheel)
func (c *JetbotCfg) ActionSpace() int { return jetbotActionDims }

// ObservationSpace returns the robot observation width
func (c *JetbotCfg) ObservationSpace() int { return jetbotObsDims }

// GenSpace returns the generative-action width of the embodiment
func (c *JetbotCfg) GenSpace() int { return 0 }

// NumJoints returns the number of actuated joints
func (c *JetbotCfg) NumJoints() int { return jetbotNumJoints }

// Validate checks the physical parameters
func (c *JetbotCfg) Validate() error {
	if c.WheelRadius <= 0 {
		return fmt.Errorf("jetbot: wheel_radius must be positive, got %v",
			c.WheelRadius)
	}
	if c.Track <= 0 {
		return fmt.Errorf("jetbot: track must be positive, got %v", c.Track)
	}
	return nil
}

// Jetbot is a differential-drive robot with one velocity-controlled
// joint per wheel
type Jetbot struct {
	Core
	cfg *JetbotCfg

	wheels *mat.Dense // [numEnvs, 2] wheel velocity targets
}

// NewJetbot creates a Jetbot over the argument scene
func NewJetbot(cfg *JetbotCfg, s *scene.Scene, r *rng.PerEnvRNG,
	logs *scalarlog.ScalarLogger, numEnvs int) (*Jetbot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s.NumJoints() < jetbotNumJoints {
		return nil, fmt.Errorf("jetbot: scene has %d joints, need %d",
			s.NumJoints(), jetbotNumJoints)
	}

	j := &Jetbot{
		Core:   NewCore(s, r, logs, numEnvs, jetbotActionDims, cfg.GenSpace()),
		cfg:    cfg,
		wheels: mat.NewDense(numEnvs, jetbotNumJoints, nil),
	}
	j.createLogs()
	return j, nil
}

func (j *Jetbot) createLogs() {
	logs := j.Logger()
	logs.AddLog("robot_state", "AVG/left_wheel_action", scalarlog.Mean)
	logs.AddLog("robot_state", "AVG/right_wheel_action", scalarlog.Mean)
	logs.AddLog("robot_state", "AVG/action_rate", scalarlog.Mean)
	logs.AddLog("robot_state", "AVG/joint_acceleration", scalarlog.Mean)
	logs.AddLog("robot_reward", "AVG/action_rate", scalarlog.Mean)
	logs.AddLog("robot_reward", "AVG/joint_acceleration", scalarlog.Mean)
}

// Name returns the registered name of the embodiment
func (j *Jetbot) Name() string { return "Jetbot" }

// ActionSpace returns the action dimensionality
func (j *Jetbot) ActionSpace() int { return j.cfg.ActionSpace() }

// ObservationSpace returns the robot observation width
func (j *Jetbot) ObservationSpace() int { return j.cfg.ObservationSpace() }

// GenSpace returns the generative-action width
func (j *Jetbot) GenSpace() int { return j.cfg.GenSpace() }

// ProcessActions runs the shared action pipeline, then maps the wheel
// actions to the two wheel velocity targets
func (j *Jetbot) ProcessActions(actions *mat.Dense) {
	j.BeginActions(actions)

	cur := j.Core.actions
	for i := 0; i < j.NumEnvs(); i++ {
		j.wheels.Set(i, 0, cur.At(i, 0)*j.cfg.WheelScale)
		j.wheels.Set(i, 1, cur.At(i, 1)*j.cfg.WheelScale)
	}

	logs := j.Logger()
	logs.Log("robot_state", "AVG/left_wheel_action", j.wheels.ColView(0))
	logs.Log("robot_state", "AVG/right_wheel_action", j.wheels.ColView(1))
}

// ApplyActions pushes the wheel targets and the equivalent body
// velocity command to the articulation and advances the randomizers
func (j *Jetbot) ApplyActions() {
	j.UpdateRandomizers()

	sc := j.Scene()
	sc.SetJointVelocityTarget(nil, jetbotWheelJoints, j.wheels)

	linB := mat.NewDense(j.NumEnvs(), 2, nil)
	ang := mat.NewVecDense(j.NumEnvs(), nil)
	for i := 0; i < j.NumEnvs(); i++ {
		left := j.wheels.At(i, 0) * j.cfg.WheelRadius
		right := j.wheels.At(i, 1) * j.cfg.WheelRadius
		linB.Set(i, 0, (left+right)/2)
		ang.SetVec(i, (right-left)/j.cfg.Track)
	}
	sc.SetBodyVelocityCommand(nil, linB, ang)
}

// Observations returns the unaltered wheel action pair
func (j *Jetbot) Observations() *mat.Dense {
	return j.UnalteredActions()
}

// Rewards returns the weighted action-rate and joint-acceleration
// penalties
func (j *Jetbot) Rewards() *mat.VecDense {
	actionRate := j.ActionRate()

	jointAcc := j.Scene().JointAcc()
	accPenalty := mat.NewVecDense(j.NumEnvs(), nil)
	for i := 0; i < j.NumEnvs(); i++ {
		acc := 0.0
		for c := 0; c < jetbotNumJoints; c++ {
			a := jointAcc.At(i, c)
			acc += a * a
		}
		accPenalty.SetVec(i, acc)
	}

	logs := j.Logger()
	logs.Log("robot_state", "AVG/action_rate", actionRate)
	logs.Log("robot_state", "AVG/joint_acceleration", accPenalty)
	logs.Log("robot_reward", "AVG/action_rate", actionRate)
	logs.Log("robot_reward", "AVG/joint_acceleration", accPenalty)

	out := mat.NewVecDense(j.NumEnvs(), nil)
	for i := 0; i < j.NumEnvs(); i++ {
		out.SetVec(i, actionRate.AtVec(i)*j.cfg.RewActionRateScale+
			accPenalty.AtVec(i)*j.cfg.RewJointAccelScale)
	}
	return out
}

// Dones returns all-false flags
func (j *Jetbot) Dones() (taskFailed, taskDone []bool) {
	return make([]bool, j.NumEnvs()), make([]bool, j.NumEnvs())
}

// Reset zeroes the action history and wheel buffers of exactly the
// argument ids
func (j *Jetbot) Reset(ids []int, genActions *mat.Dense, seeds []uint64) {
	ids = j.ResetCore(ids, genActions, seeds)
	mathutils.ZeroRows(j.wheels, ids)
	j.SetInitialConditions(ids)
}

// SetInitialConditions zeroes the wheel targets of the argument ids
func (j *Jetbot) SetInitialConditions(ids []int) {
	if ids == nil {
		ids = mathutils.AllIDs(j.NumEnvs())
	}
	wheelZero := mat.NewDense(len(ids), jetbotNumJoints, nil)
	j.Scene().SetJointVelocityTarget(ids, jetbotWheelJoints, wheelZero)
	j.Scene().SetBodyVelocityCommand(ids, mat.NewDense(len(ids), 2, nil),
		mat.NewVecDense(len(ids), nil))
}

// EvalDataKeys returns the stable key ordering of EvalData
func (j *Jetbot) EvalDataKeys() []string {
	return []string{"position", "heading", "linear_velocity",
		"angular_velocity", "left_wheel", "right_wheel"}
}

// EvalData exports the physical state for external logging
func (j *Jetbot) EvalData() map[string]*tensor.Dense {
	return map[string]*tensor.Dense{
		"position":         DenseTensor(j.PositionW()),
		"heading":          VecTensor(j.HeadingW()),
		"linear_velocity":  DenseTensor(j.LinVelB()),
		"angular_velocity": VecTensor(j.AngVelW()),
		"left_wheel":       VecTensor(j.wheels.ColView(0)),
		"right_wheel":      VecTensor(j.wheels.ColView(1)),
	}
}
