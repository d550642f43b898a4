package task

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/snt-spacer/NavBench-Code/robot"
	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/utils/mathutils"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
	"github.com/snt-spacer/NavBench-Code/utils/scalarlog"
)

const (
	goToPoseObsDims = 8
	goToPoseGenDims = 4
)

func init() {
	Register("GoToPose",
		func() Cfg { return NewGoToPoseCfg() },
		func(cfg Cfg, s *scene.Scene, r *rng.PerEnvRNG, rob robot.Robot,
			logs *scalarlog.ScalarLogger, numEnvs int) (Task, error) {
			return NewGoToPose(cfg.(*GoToPoseCfg), s, r, rob, logs, numEnvs)
		})
}

// GoToPoseCfg configures the GoToPose task: reach a target position
// with a target heading and hold both
type GoToPoseCfg struct {
	PositionTolerance           float64 `yaml:"position_tolerance"`
	HeadingTolerance            float64 `yaml:"heading_tolerance"`
	ResetAfterNStepsInTolerance int     `yaml:"reset_after_n_steps_in_tolerance"`
	MaximumRobotDistance        float64 `yaml:"maximum_robot_distance"`
	GoalMaxDistFromOrigin       float64 `yaml:"goal_max_dist_from_origin"`

	SpawnMinDist        float64 `yaml:"spawn_min_dist"`
	SpawnMaxDist        float64 `yaml:"spawn_max_dist"`
	SpawnMinHeadingDist float64 `yaml:"spawn_min_heading_dist"`
	SpawnMaxHeadingDist float64 `yaml:"spawn_max_heading_dist"`
	SpawnMinLinVel      float64 `yaml:"spawn_min_lin_vel"`
	SpawnMaxLinVel      float64 `yaml:"spawn_max_lin_vel"`
	SpawnMinAngVel      float64 `yaml:"spawn_min_ang_vel"`
	SpawnMaxAngVel      float64 `yaml:"spawn_max_ang_vel"`

	PositionExpRewardCoeff float64 `yaml:"position_exponential_reward_coeff"`
	HeadingExpRewardCoeff  float64 `yaml:"heading_exponential_reward_coeff"`
	BoundaryExpRewardCoeff float64 `yaml:"boundary_exponential_reward_coeff"`

	PositionWeight        float64 `yaml:"position_weight"`
	HeadingWeight         float64 `yaml:"heading_weight"`
	LinearVelocityWeight  float64 `yaml:"linear_velocity_weight"`
	AngularVelocityWeight float64 `yaml:"angular_velocity_weight"`
	BoundaryWeight        float64 `yaml:"boundary_weight"`

	LinearVelocityMinValue  float64 `yaml:"linear_velocity_min_value"`
	LinearVelocityMaxValue  float64 `yaml:"linear_velocity_max_value"`
	AngularVelocityMinValue float64 `yaml:"angular_velocity_min_value"`
	AngularVelocityMaxValue float64 `yaml:"angular_velocity_max_value"`

	EMACoeff float64 `yaml:"ema_coeff"`
}

// NewGoToPoseCfg returns the default GoToPose configuration
func NewGoToPoseCfg() *GoToPoseCfg {
	return &GoToPoseCfg{
		PositionTolerance:           0.10,
		HeadingTolerance:            0.10,
		ResetAfterNStepsInTolerance: 25,
		MaximumRobotDistance:        10.0,
		GoalMaxDistFromOrigin:       2.0,
		SpawnMinDist:                0.5,
		SpawnMaxDist:                5.0,
		SpawnMinHeadingDist:         0.0,
		SpawnMaxHeadingDist:         math.Pi,
		SpawnMinLinVel:              0.0,
		SpawnMaxLinVel:              0.5,
		SpawnMinAngVel:              0.0,
		SpawnMaxAngVel:              0.5,
		PositionExpRewardCoeff:      0.25,
		HeadingExpRewardCoeff:       0.25,
		BoundaryExpRewardCoeff:      0.25,
		PositionWeight:              1.0,
		HeadingWeight:               0.5,
		LinearVelocityWeight:        -0.05,
		AngularVelocityWeight:       -0.05,
		BoundaryWeight:              -10.0,
		LinearVelocityMinValue:      0.5,
		LinearVelocityMaxValue:      2.0,
		AngularVelocityMinValue:     0.5,
		AngularVelocityMaxValue:     20.0,
		EMACoeff:                    0.9,
	}
}

// ObservationSpace returns the task observation width
func (c *GoToPoseCfg) ObservationSpace() int { return goToPoseObsDims }

// GenSpace returns the generative-action width
func (c *GoToPoseCfg) GenSpace() int { return goToPoseGenDims }

// Validate checks the configuration
func (c *GoToPoseCfg) Validate() error {
	if c.PositionTolerance <= 0 || c.HeadingTolerance <= 0 {
		return fmt.Errorf("gotopose: tolerances must be positive, got "+
			"position %v heading %v", c.PositionTolerance, c.HeadingTolerance)
	}
	if c.ResetAfterNStepsInTolerance <= 0 {
		return fmt.Errorf("gotopose: reset_after_n_steps_in_tolerance must "+
			"be positive, got %d", c.ResetAfterNStepsInTolerance)
	}
	if c.SpawnMaxDist < c.SpawnMinDist {
		return fmt.Errorf("gotopose: spawn_max_dist (%v) must be at least "+
			"spawn_min_dist (%v)", c.SpawnMaxDist, c.SpawnMinDist)
	}
	if c.MaximumRobotDistance <= 0 {
		return fmt.Errorf("gotopose: maximum_robot_distance must be "+
			"positive, got %v", c.MaximumRobotDistance)
	}
	return nil
}

// GoToPose implements the GoToPose task. On top of reaching a target
// position, the robot has to settle on a target heading.
//
// Task observation columns:
//
//	0: distance between the robot and the target position
//	1: cosine of the angle between the heading and the target position
//	2: sine of that angle
//	3: cosine of the error between the heading and the goal heading
//	4: sine of that error
//	5: body-frame linear velocity along x
//	6: body-frame linear velocity along y
//	7: angular velocity
type GoToPose struct {
	Core
	cfg *GoToPoseCfg

	positionError   *mat.Dense
	positionDist    *mat.VecDense
	targetPositions *mat.Dense
	targetHeadings  *mat.VecDense
}

// NewGoToPose creates the task over an existing robot
func NewGoToPose(cfg *GoToPoseCfg, s *scene.Scene, r *rng.PerEnvRNG,
	rob robot.Robot, logs *scalarlog.ScalarLogger,
	numEnvs int) (*GoToPose, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &GoToPose{
		Core: NewCore(s, r, logs, rob, numEnvs, goToPoseObsDims,
			goToPoseGenDims),
		cfg:             cfg,
		positionError:   mat.NewDense(numEnvs, 2, nil),
		positionDist:    mat.NewVecDense(numEnvs, nil),
		targetPositions: mat.NewDense(numEnvs, 2, nil),
		targetHeadings:  mat.NewVecDense(numEnvs, nil),
	}
	g.createLogs()
	return g, nil
}

func (g *GoToPose) createLogs() {
	logs := g.Logger()
	logs.AddLog("task_state", "EMA/position_distance", scalarlog.EMA)
	logs.AddLog("task_state", "EMA/heading_distance", scalarlog.EMA)
	logs.AddLog("task_state", "EMA/boundary_distance", scalarlog.EMA)
	logs.AddLog("task_reward", "AVG/position", scalarlog.Mean)
	logs.AddLog("task_reward", "AVG/heading", scalarlog.Mean)
	logs.AddLog("task_reward", "AVG/linear_velocity", scalarlog.Mean)
	logs.AddLog("task_reward", "AVG/angular_velocity", scalarlog.Mean)
	logs.AddLog("task_reward", "AVG/boundary", scalarlog.Mean)
	logs.SetEMACoeff(g.cfg.EMACoeff)
}

// Name returns the registered name of the task
func (g *GoToPose) Name() string { return "GoToPose" }

// ObservationSpace returns the task observation width
func (g *GoToPose) ObservationSpace() int { return goToPoseObsDims }

// GenSpace returns the generative-action width
func (g *GoToPose) GenSpace() int { return goToPoseGenDims }

// TargetPositions returns a copy of the current goal positions
func (g *GoToPose) TargetPositions() *mat.Dense {
	return mat.DenseCopyOf(g.targetPositions)
}

// TargetHeadings returns a copy of the current goal headings
func (g *GoToPose) TargetHeadings() *mat.VecDense {
	return mat.VecDenseCopyOf(g.targetHeadings)
}

func (g *GoToPose) refreshErrors(ids []int) {
	pos := g.Robot().PositionW()
	for _, id := range ids {
		ex := g.targetPositions.At(id, 0) - pos.At(id, 0)
		ey := g.targetPositions.At(id, 1) - pos.At(id, 1)
		g.positionError.Set(id, 0, ex)
		g.positionError.Set(id, 1, ey)
		g.positionDist.SetVec(id, math.Hypot(ex, ey))
	}
}

// poseHeadingErrors returns the wrapped error between each robot
// heading and its goal heading
func (g *GoToPose) poseHeadingErrors() *mat.VecDense {
	heading := g.Robot().HeadingW()
	out := mat.NewVecDense(g.NumEnvs(), nil)
	for i := 0; i < g.NumEnvs(); i++ {
		out.SetVec(i, mathutils.WrapAngle(
			g.targetHeadings.AtVec(i)-heading.AtVec(i)))
	}
	return out
}

// targetHeadingErrors returns the wrapped angle between each robot
// heading and the direction toward its goal position
func (g *GoToPose) targetHeadingErrors() *mat.VecDense {
	pos := g.Robot().PositionW()
	heading := g.Robot().HeadingW()
	out := mat.NewVecDense(g.NumEnvs(), nil)
	for i := 0; i < g.NumEnvs(); i++ {
		targetHeading := math.Atan2(
			g.targetPositions.At(i, 1)-pos.At(i, 1),
			g.targetPositions.At(i, 0)-pos.At(i, 0),
		)
		out.SetVec(i, mathutils.WrapAngle(targetHeading-heading.AtVec(i)))
	}
	return out
}

// Observations assembles the task observation slice, applies the
// observation randomizers, and concatenates the robot observations
func (g *GoToPose) Observations() *mat.Dense {
	g.refreshErrors(mathutils.AllIDs(g.NumEnvs()))
	toGoal := g.targetHeadingErrors()
	poseErr := g.poseHeadingErrors()
	velB := g.Robot().LinVelB()
	angVel := g.Robot().AngVelW()

	data := g.TaskData()
	for i := 0; i < g.NumEnvs(); i++ {
		data.Set(i, 0, g.positionDist.AtVec(i))
		data.Set(i, 1, math.Cos(toGoal.AtVec(i)))
		data.Set(i, 2, math.Sin(toGoal.AtVec(i)))
		data.Set(i, 3, math.Cos(poseErr.AtVec(i)))
		data.Set(i, 4, math.Sin(poseErr.AtVec(i)))
		data.Set(i, 5, velB.At(i, 0))
		data.Set(i, 6, velB.At(i, 1))
		data.Set(i, 7, angVel.AtVec(i))
	}

	g.ApplyObservationRandomizers()
	return g.ConcatWithRobot()
}

// Rewards computes the weighted shaped terms, advances the hysteresis
// counter on the joint position-and-heading tolerance, and adds the
// robot reward
func (g *GoToPose) Rewards() *mat.VecDense {
	poseErr := g.poseHeadingErrors()
	velW := g.Robot().LinVelW()
	angVel := g.Robot().AngVelW()
	linVel := mathutils.RowNorm(velW)

	headingDist := mat.NewVecDense(g.NumEnvs(), nil)
	boundaryDist := mat.NewVecDense(g.NumEnvs(), nil)
	positionRew := mat.NewVecDense(g.NumEnvs(), nil)
	headingRew := mat.NewVecDense(g.NumEnvs(), nil)
	linVelRew := mat.NewVecDense(g.NumEnvs(), nil)
	angVelRew := mat.NewVecDense(g.NumEnvs(), nil)
	boundaryRew := mat.NewVecDense(g.NumEnvs(), nil)
	inTolerance := make([]bool, g.NumEnvs())

	for i := 0; i < g.NumEnvs(); i++ {
		dist := g.positionDist.AtVec(i)
		hDist := math.Abs(poseErr.AtVec(i))
		bDist := math.Abs(g.cfg.MaximumRobotDistance - dist)
		headingDist.SetVec(i, hDist)
		boundaryDist.SetVec(i, bDist)

		positionRew.SetVec(i, math.Exp(-dist/g.cfg.PositionExpRewardCoeff))
		headingRew.SetVec(i, math.Exp(-hDist/g.cfg.HeadingExpRewardCoeff))
		linVelRew.SetVec(i, mathutils.Clip(
			linVel.AtVec(i)-g.cfg.LinearVelocityMinValue,
			0, g.cfg.LinearVelocityMaxValue-g.cfg.LinearVelocityMinValue))
		angVelRew.SetVec(i, mathutils.Clip(
			math.Abs(angVel.AtVec(i))-g.cfg.AngularVelocityMinValue,
			0, g.cfg.AngularVelocityMaxValue-g.cfg.AngularVelocityMinValue))
		boundaryRew.SetVec(i, math.Exp(-bDist/g.cfg.BoundaryExpRewardCoeff))

		inTolerance[i] = dist < g.cfg.PositionTolerance &&
			hDist < g.cfg.HeadingTolerance
	}

	g.UpdateGoalCounter(inTolerance)

	logs := g.Logger()
	logs.Log("task_state", "EMA/position_distance", g.positionDist)
	logs.Log("task_state", "EMA/heading_distance", headingDist)
	logs.Log("task_state", "EMA/boundary_distance", boundaryDist)
	logs.Log("task_reward", "AVG/position", positionRew)
	logs.Log("task_reward", "AVG/heading", headingRew)
	logs.Log("task_reward", "AVG/linear_velocity", linVelRew)
	logs.Log("task_reward", "AVG/angular_velocity", angVelRew)
	logs.Log("task_reward", "AVG/boundary", boundaryRew)

	robotRew := g.Robot().Rewards()
	out := mat.NewVecDense(g.NumEnvs(), nil)
	for i := 0; i < g.NumEnvs(); i++ {
		out.SetVec(i,
			positionRew.AtVec(i)*g.cfg.PositionWeight+
				headingRew.AtVec(i)*g.cfg.HeadingWeight+
				linVelRew.AtVec(i)*g.cfg.LinearVelocityWeight+
				angVelRew.AtVec(i)*g.cfg.AngularVelocityWeight+
				boundaryRew.AtVec(i)*g.cfg.BoundaryWeight+
				robotRew.AtVec(i))
	}
	return out
}

// Dones recomputes the goal distances and returns the per-environment
// failure and completion flags
func (g *GoToPose) Dones() (taskFailed, taskCompleted []bool) {
	g.refreshErrors(mathutils.AllIDs(g.NumEnvs()))

	taskFailed = make([]bool, g.NumEnvs())
	for i := 0; i < g.NumEnvs(); i++ {
		taskFailed[i] = g.positionDist.AtVec(i) > g.cfg.MaximumRobotDistance
	}
	taskCompleted = g.CounterExceeds(g.cfg.ResetAfterNStepsInTolerance)
	return taskFailed, taskCompleted
}

// Reset resamples goals and initial conditions for exactly the
// argument ids. Generative-action column semantics match GoToPosition.
func (g *GoToPose) Reset(ids []int, genActions *mat.Dense, seeds []uint64) {
	ids = g.ResetCore(ids, genActions, seeds)
	g.SetGoals(ids)
	g.SetInitialConditions(ids)
	g.refreshErrors(ids)
}

// SetGoals draws a goal position uniformly inside a square centered on
// each environment origin and a goal heading uniformly in (-π, π]
func (g *GoToPose) SetGoals(ids []int) {
	origins := g.Scene().EnvOrigins()
	samples := g.RNG().UniformFloat(-g.cfg.GoalMaxDistFromOrigin,
		g.cfg.GoalMaxDistFromOrigin, 2, ids)
	headings := g.RNG().UniformFloat(-math.Pi, math.Pi, 1, ids)
	for i, id := range ids {
		g.targetPositions.Set(id, 0, samples.At(i, 0)+origins.At(id, 0))
		g.targetPositions.Set(id, 1, samples.At(i, 1)+origins.At(id, 1))
		g.targetHeadings.SetVec(id, headings.At(i, 0))
	}
}

// SetInitialConditions samples the spawn pose and velocity of the
// argument ids, difficulty-scaled by the generative actions
func (g *GoToPose) SetInitialConditions(ids []int) {
	gen := g.GenActions()
	num := len(ids)

	pos := mat.NewDense(num, 2, nil)
	heading := mat.NewVecDense(num, nil)
	linVel := mat.NewDense(num, 2, nil)
	angVel := mat.NewVecDense(num, nil)

	spawnTheta := g.RNG().UniformFloat(-math.Pi, math.Pi, 1, ids)
	headingSign := g.RNG().Sign(1, ids)
	velTheta := g.RNG().UniformFloat(-math.Pi, math.Pi, 1, ids)

	for i, id := range ids {
		radius := mathutils.Lerp(gen.At(id, 0), g.cfg.SpawnMinDist,
			g.cfg.SpawnMaxDist)
		px := radius*math.Cos(spawnTheta.At(i, 0)) + g.targetPositions.At(id, 0)
		py := radius*math.Sin(spawnTheta.At(i, 0)) + g.targetPositions.At(id, 1)
		pos.Set(i, 0, px)
		pos.Set(i, 1, py)

		// The spawn heading delta is measured against the goal heading
		// in this task
		deltaHeading := mathutils.Lerp(gen.At(id, 1),
			g.cfg.SpawnMinHeadingDist, g.cfg.SpawnMaxHeadingDist) *
			headingSign.At(i, 0)
		heading.SetVec(i, mathutils.WrapAngle(
			g.targetHeadings.AtVec(id)+deltaHeading))

		velNorm := mathutils.Lerp(gen.At(id, 2), g.cfg.SpawnMinLinVel,
			g.cfg.SpawnMaxLinVel)
		linVel.Set(i, 0, velNorm*math.Cos(velTheta.At(i, 0)))
		linVel.Set(i, 1, velNorm*math.Sin(velTheta.At(i, 0)))
		angVel.SetVec(i, mathutils.Lerp(gen.At(id, 3), g.cfg.SpawnMinAngVel,
			g.cfg.SpawnMaxAngVel))
	}

	g.Robot().SetPose(ids, pos, heading)
	g.Robot().SetVelocity(ids, linVel, angVel)
}
