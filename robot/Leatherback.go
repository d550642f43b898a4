package robot

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gorgonia.org/tensor"

	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/utils/mathutils"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
	"github.com/snt-spacer/NavBench-Code/utils/scalarlog"
)

// Leatherback joint layout inside the scene articulation
const (
	leatherbackNumJoints  = 6
	leatherbackActionDims = 2
	leatherbackObsDims    = 2
)

var (
	leatherbackWheelJoints    = []int{0, 1, 2, 3}
	leatherbackSteeringJoints = []int{4, 5}
)

func init() {
	Register("Leatherback",
		func() Cfg { return NewLeatherbackCfg() },
		func(cfg Cfg, s *scene.Scene, r *rng.PerEnvRNG,
			logs *scalarlog.ScalarLogger, numEnvs int) (Robot, error) {
			return NewLeatherback(cfg.(*LeatherbackCfg), s, r, logs, numEnvs)
		})
}

// LeatherbackCfg configures the Leatherback embodiment, an Ackermann
// car with four driven wheels and two steering joints
type LeatherbackCfg struct {
	// ThrottleScale maps the throttle action in [-1, 1] to a wheel
	// angular velocity target
	ThrottleScale float64 `yaml:"throttle_scale"`

	// SteeringScale maps the steering action in [-1, 1] to a steering
	// angle target
	SteeringScale float64 `yaml:"steering_scale"`

	// WheelRadius and Wheelbase parametrize the command kinematics
	WheelRadius float64 `yaml:"wheel_radius"`
	Wheelbase   float64 `yaml:"wheelbase"`

	// RewActionRateScale weights the squared action-rate penalty
	RewActionRateScale float64 `yaml:"rew_action_rate_scale"`

	// RewJointAccelScale weights the squared joint-acceleration
	// penalty
	RewJointAccelScale float64 `yaml:"rew_joint_accel_scale"`
}

// NewLeatherbackCfg returns the default Leatherback configuration
func NewLeatherbackCfg() *LeatherbackCfg {
	return &LeatherbackCfg{
		ThrottleScale:      50.0,
		SteeringScale:      0.75,
		WheelRadius:        0.06,
		Wheelbase:          0.32,
		RewActionRateScale: -0.05,
		RewJointAccelScale: -2.5e-6,
	}
}

// ActionSpace returns the action dimensionality (throttle, steering)
func (c *LeatherbackCfg) ActionSpace() int { return leatherbackActionDims }

// ObservationSpace returns the robot observation width. The robot
// observes its own unaltered actions.
func (c *LeatherbackCfg) ObservationSpace() int { return leatherbackObsDims }

// GenSpace returns the generative-action width of the embodiment. The
// Leatherback has no difficulty-controlled spawn state of its own.
func (c *LeatherbackCfg) GenSpace() int { return 0 }

// NumJoints returns the number of actuated joints
func (c *LeatherbackCfg) NumJoints() int { return leatherbackNumJoints }

// Validate checks the physical parameters
func (c *LeatherbackCfg) Validate() error {
	if c.WheelRadius <= 0 {
		return fmt.Errorf("leatherback: wheel_radius must be positive, "+
			"got %v", c.WheelRadius)
	}
	if c.Wheelbase <= 0 {
		return fmt.Errorf("leatherback: wheelbase must be positive, got %v",
			c.Wheelbase)
	}
	if c.SteeringScale <= 0 || c.SteeringScale >= math.Pi/2 {
		return fmt.Errorf("leatherback: steering_scale must be in "+
			"(0, π/2), got %v", c.SteeringScale)
	}
	return nil
}

// Leatherback is an Ackermann-steered car. The throttle action drives
// all four wheel velocity targets and the steering action drives both
// steering position targets.
type Leatherback struct {
	Core
	cfg *LeatherbackCfg

	throttle *mat.Dense // [numEnvs, 4] wheel velocity targets
	steering *mat.Dense // [numEnvs, 2] steering position targets
}

// NewLeatherback creates a Leatherback over the argument scene. The
// scene articulation must carry at least six joints.
func NewLeatherback(cfg *LeatherbackCfg, s *scene.Scene, r *rng.PerEnvRNG,
	logs *scalarlog.ScalarLogger, numEnvs int) (*Leatherback, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s.NumJoints() < leatherbackNumJoints {
		return nil, fmt.Errorf("leatherback: scene has %d joints, need %d",
			s.NumJoints(), leatherbackNumJoints)
	}

	l := &Leatherback{
		Core:     NewCore(s, r, logs, numEnvs, leatherbackActionDims, cfg.GenSpace()),
		cfg:      cfg,
		throttle: mat.NewDense(numEnvs, len(leatherbackWheelJoints), nil),
		steering: mat.NewDense(numEnvs, len(leatherbackSteeringJoints), nil),
	}
	l.createLogs()
	return l, nil
}

func (l *Leatherback) createLogs() {
	logs := l.Logger()
	logs.AddLog("robot_state", "AVG/throttle_action", scalarlog.Mean)
	logs.AddLog("robot_state", "AVG/steering_action", scalarlog.Mean)
	logs.AddLog("robot_state", "AVG/action_rate", scalarlog.Mean)
	logs.AddLog("robot_state", "AVG/joint_acceleration", scalarlog.Mean)
	logs.AddLog("robot_reward", "AVG/action_rate", scalarlog.Mean)
	logs.AddLog("robot_reward", "AVG/joint_acceleration", scalarlog.Mean)
}

// Name returns the registered name of the embodiment
func (l *Leatherback) Name() string { return "Leatherback" }

// ActionSpace returns the action dimensionality
func (l *Leatherback) ActionSpace() int { return l.cfg.ActionSpace() }

// ObservationSpace returns the robot observation width
func (l *Leatherback) ObservationSpace() int { return l.cfg.ObservationSpace() }

// GenSpace returns the generative-action width
func (l *Leatherback) GenSpace() int { return l.cfg.GenSpace() }

// ProcessActions runs the shared action pipeline, then maps the
// throttle action to the four wheel velocity targets and the steering
// action to the two steering position targets
func (l *Leatherback) ProcessActions(actions *mat.Dense) {
	l.BeginActions(actions)

	cur := l.Core.actions
	for i := 0; i < l.NumEnvs(); i++ {
		throttle := cur.At(i, 0) * l.cfg.ThrottleScale
		steering := cur.At(i, 1) * l.cfg.SteeringScale
		for j := 0; j < len(leatherbackWheelJoints); j++ {
			l.throttle.Set(i, j, throttle)
		}
		l.steering.Set(i, 0, steering)
		l.steering.Set(i, 1, steering)
	}

	logs := l.Logger()
	logs.Log("robot_state", "AVG/throttle_action", l.throttle.ColView(0))
	logs.Log("robot_state", "AVG/steering_action", l.steering.ColView(0))
}

// ApplyActions pushes the actuator targets and the equivalent body
// velocity command to the articulation and advances the randomizers
func (l *Leatherback) ApplyActions() {
	l.UpdateRandomizers()

	sc := l.Scene()
	sc.SetJointVelocityTarget(nil, leatherbackWheelJoints, l.throttle)
	sc.SetJointPositionTarget(nil, leatherbackSteeringJoints, l.steering)

	// Ackermann command kinematics: forward speed from the wheel
	// velocity target, yaw rate from the steering angle
	linB := mat.NewDense(l.NumEnvs(), 2, nil)
	ang := mat.NewVecDense(l.NumEnvs(), nil)
	for i := 0; i < l.NumEnvs(); i++ {
		speed := l.throttle.At(i, 0) * l.cfg.WheelRadius
		linB.Set(i, 0, speed)
		ang.SetVec(i, speed*math.Tan(l.steering.At(i, 0))/l.cfg.Wheelbase)
	}
	sc.SetBodyVelocityCommand(nil, linB, ang)
}

// Observations returns the unaltered action pair: the policy observes
// what it emitted, not the randomized actuation
func (l *Leatherback) Observations() *mat.Dense {
	return l.UnalteredActions()
}

// Rewards returns the weighted action-rate and joint-acceleration
// penalties
func (l *Leatherback) Rewards() *mat.VecDense {
	actionRate := l.ActionRate()

	jointAcc := l.Scene().JointAcc()
	accPenalty := mat.NewVecDense(l.NumEnvs(), nil)
	for i := 0; i < l.NumEnvs(); i++ {
		acc := 0.0
		for j := 0; j < leatherbackNumJoints; j++ {
			a := jointAcc.At(i, j)
			acc += a * a
		}
		accPenalty.SetVec(i, acc)
	}

	logs := l.Logger()
	logs.Log("robot_state", "AVG/action_rate", actionRate)
	logs.Log("robot_state", "AVG/joint_acceleration", accPenalty)
	logs.Log("robot_reward", "AVG/action_rate", actionRate)
	logs.Log("robot_reward", "AVG/joint_acceleration", accPenalty)

	out := mat.NewVecDense(l.NumEnvs(), nil)
	for i := 0; i < l.NumEnvs(); i++ {
		out.SetVec(i, actionRate.AtVec(i)*l.cfg.RewActionRateScale+
			accPenalty.AtVec(i)*l.cfg.RewJointAccelScale)
	}
	return out
}

// Dones returns all-false flags: the embodiment imposes no termination
// condition of its own
func (l *Leatherback) Dones() (taskFailed, taskDone []bool) {
	return make([]bool, l.NumEnvs()), make([]bool, l.NumEnvs())
}

// Reset zeroes the action history and actuator buffers of exactly the
// argument ids
func (l *Leatherback) Reset(ids []int, genActions *mat.Dense, seeds []uint64) {
	ids = l.ResetCore(ids, genActions, seeds)
	mathutils.ZeroRows(l.throttle, ids)
	mathutils.ZeroRows(l.steering, ids)
	l.SetInitialConditions(ids)
}

// SetInitialConditions zeroes the actuator targets of the argument ids
func (l *Leatherback) SetInitialConditions(ids []int) {
	if ids == nil {
		ids = mathutils.AllIDs(l.NumEnvs())
	}
	wheelZero := mat.NewDense(len(ids), len(leatherbackWheelJoints), nil)
	steerZero := mat.NewDense(len(ids), len(leatherbackSteeringJoints), nil)
	l.Scene().SetJointVelocityTarget(ids, leatherbackWheelJoints, wheelZero)
	l.Scene().SetJointPositionTarget(ids, leatherbackSteeringJoints, steerZero)
	l.Scene().SetBodyVelocityCommand(ids, mat.NewDense(len(ids), 2, nil),
		mat.NewVecDense(len(ids), nil))
}

// EvalDataKeys returns the stable key ordering of EvalData
func (l *Leatherback) EvalDataKeys() []string {
	return []string{"position", "heading", "linear_velocity",
		"angular_velocity", "throttle", "steering"}
}

// EvalData exports the physical state for external logging. The keys
// follow EvalDataKeys.
func (l *Leatherback) EvalData() map[string]*tensor.Dense {
	return map[string]*tensor.Dense{
		"position":         DenseTensor(l.PositionW()),
		"heading":          VecTensor(l.HeadingW()),
		"linear_velocity":  DenseTensor(l.LinVelB()),
		"angular_velocity": VecTensor(l.AngVelW()),
		"throttle":         VecTensor(l.throttle.ColView(0)),
		"steering":         VecTensor(l.steering.ColView(0)),
	}
}
