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
	goToPositionObsDims = 6
	goToPositionGenDims = 4
)

func init() {
	Register("GoToPosition",
		func() Cfg { return NewGoToPositionCfg() },
		func(cfg Cfg, s *scene.Scene, r *rng.PerEnvRNG, rob robot.Robot,
			logs *scalarlog.ScalarLogger, numEnvs int) (Task, error) {
			return NewGoToPosition(cfg.(*GoToPositionCfg), s, r, rob, logs,
				numEnvs)
		})
}

// GoToPositionCfg configures the GoToPosition task: reach a target
// position and hold it
type GoToPositionCfg struct {
	// PositionTolerance is the distance under which the goal counts as
	// reached for the hysteresis counter
	PositionTolerance float64 `yaml:"position_tolerance"`

	// ResetAfterNStepsInTolerance is the number of consecutive
	// in-tolerance steps after which the task completes
	ResetAfterNStepsInTolerance int `yaml:"reset_after_n_steps_in_tolerance"`

	// MaximumRobotDistance is the hard distance boundary; exceeding it
	// fails the task
	MaximumRobotDistance float64 `yaml:"maximum_robot_distance"`

	// GoalMaxDistFromOrigin bounds the square the goal is drawn from
	GoalMaxDistFromOrigin float64 `yaml:"goal_max_dist_from_origin"`

	// Spawn ranges. The generative actions interpolate linearly inside
	// them: 0 is the easiest spawn, 1 the hardest.
	SpawnMinDist        float64 `yaml:"spawn_min_dist"`
	SpawnMaxDist        float64 `yaml:"spawn_max_dist"`
	SpawnMinHeadingDist float64 `yaml:"spawn_min_heading_dist"`
	SpawnMaxHeadingDist float64 `yaml:"spawn_max_heading_dist"`
	SpawnMinLinVel      float64 `yaml:"spawn_min_lin_vel"`
	SpawnMaxLinVel      float64 `yaml:"spawn_max_lin_vel"`
	SpawnMinAngVel      float64 `yaml:"spawn_min_ang_vel"`
	SpawnMaxAngVel      float64 `yaml:"spawn_max_ang_vel"`

	// Reward shaping
	PositionExpRewardCoeff  float64 `yaml:"position_exponential_reward_coeff"`
	HeadingExpRewardCoeff   float64 `yaml:"heading_exponential_reward_coeff"`
	MinHeadingDistScaler    float64 `yaml:"min_heading_dist_scaler"`
	MaxHeadingDistScaler    float64 `yaml:"max_heading_dist_scaler"`
	LinearVelocityMinValue  float64 `yaml:"linear_velocity_min_value"`
	LinearVelocityMaxValue  float64 `yaml:"linear_velocity_max_value"`
	AngularVelocityMinValue float64 `yaml:"angular_velocity_min_value"`
	AngularVelocityMaxValue float64 `yaml:"angular_velocity_max_value"`
	BoundaryExpRewardCoeff  float64 `yaml:"boundary_exponential_reward_coeff"`

	// Reward weights. Each shaped term contributes additively with its
	// own weight so the terms stay independently tunable.
	PositionWeight        float64 `yaml:"position_weight"`
	HeadingWeight         float64 `yaml:"heading_weight"`
	LinearVelocityWeight  float64 `yaml:"linear_velocity_weight"`
	AngularVelocityWeight float64 `yaml:"angular_velocity_weight"`
	BoundaryWeight        float64 `yaml:"boundary_weight"`

	// EMACoeff is the coefficient of the EMA monitoring series
	EMACoeff float64 `yaml:"ema_coeff"`
}

// NewGoToPositionCfg returns the default GoToPosition configuration
func NewGoToPositionCfg() *GoToPositionCfg {
	return &GoToPositionCfg{
		PositionTolerance:           0.10,
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
		MinHeadingDistScaler:        0.05,
		MaxHeadingDistScaler:        0.50,
		LinearVelocityMinValue:      0.5,
		LinearVelocityMaxValue:      2.0,
		AngularVelocityMinValue:     0.5,
		AngularVelocityMaxValue:     20.0,
		BoundaryExpRewardCoeff:      0.25,
		PositionWeight:              1.0,
		HeadingWeight:               0.25,
		LinearVelocityWeight:        -0.05,
		AngularVelocityWeight:       -0.05,
		BoundaryWeight:              -10.0,
		EMACoeff:                    0.9,
	}
}

// ObservationSpace returns the task observation width
func (c *GoToPositionCfg) ObservationSpace() int { return goToPositionObsDims }

// GenSpace returns the generative-action width: spawn distance,
// heading delta, linear velocity, angular velocity
func (c *GoToPositionCfg) GenSpace() int { return goToPositionGenDims }

// Validate checks the configuration once, before any buffer is
// allocated
func (c *GoToPositionCfg) Validate() error {
	if c.PositionTolerance <= 0 {
		return fmt.Errorf("gotoposition: position_tolerance must be "+
			"positive, got %v", c.PositionTolerance)
	}
	if c.ResetAfterNStepsInTolerance <= 0 {
		return fmt.Errorf("gotoposition: reset_after_n_steps_in_tolerance "+
			"must be positive, got %d", c.ResetAfterNStepsInTolerance)
	}
	if c.SpawnMaxDist < c.SpawnMinDist {
		return fmt.Errorf("gotoposition: spawn_max_dist (%v) must be at "+
			"least spawn_min_dist (%v)", c.SpawnMaxDist, c.SpawnMinDist)
	}
	if c.SpawnMaxHeadingDist < c.SpawnMinHeadingDist {
		return fmt.Errorf("gotoposition: spawn_max_heading_dist (%v) must "+
			"be at least spawn_min_heading_dist (%v)",
			c.SpawnMaxHeadingDist, c.SpawnMinHeadingDist)
	}
	if c.MaxHeadingDistScaler <= c.MinHeadingDistScaler {
		return fmt.Errorf("gotoposition: max_heading_dist_scaler (%v) must "+
			"exceed min_heading_dist_scaler (%v)",
			c.MaxHeadingDistScaler, c.MinHeadingDistScaler)
	}
	if c.MaximumRobotDistance <= 0 {
		return fmt.Errorf("gotoposition: maximum_robot_distance must be "+
			"positive, got %v", c.MaximumRobotDistance)
	}
	return nil
}

// GoToPosition implements the GoToPosition task. The robot has to
// reach a target position and keep it.
//
// Task observation columns:
//
//	0: distance between the robot and the target position
//	1: cosine of the angle between the heading and the target
//	2: sine of the angle between the heading and the target
//	3: body-frame linear velocity along x
//	4: body-frame linear velocity along y
//	5: angular velocity
type GoToPosition struct {
	Core
	cfg *GoToPositionCfg

	positionError   *mat.Dense    // [numEnvs, 2]
	positionDist    *mat.VecDense // [numEnvs]
	targetPositions *mat.Dense    // [numEnvs, 2]
}

// NewGoToPosition creates the task over an existing robot. The
// configuration must validate.
func NewGoToPosition(cfg *GoToPositionCfg, s *scene.Scene, r *rng.PerEnvRNG,
	rob robot.Robot, logs *scalarlog.ScalarLogger,
	numEnvs int) (*GoToPosition, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &GoToPosition{
		Core: NewCore(s, r, logs, rob, numEnvs, goToPositionObsDims,
			goToPositionGenDims),
		cfg:             cfg,
		positionError:   mat.NewDense(numEnvs, 2, nil),
		positionDist:    mat.NewVecDense(numEnvs, nil),
		targetPositions: mat.NewDense(numEnvs, 2, nil),
	}
	g.createLogs()
	return g, nil
}

func (g *GoToPosition) createLogs() {
	logs := g.Logger()
	logs.AddLog("task_state", "AVG/normed_linear_velocity", scalarlog.Mean)
	logs.AddLog("task_state", "AVG/absolute_angular_velocity", scalarlog.Mean)
	logs.AddLog("task_state", "EMA/position_distance", scalarlog.EMA)
	logs.AddLog("task_state", "EMA/boundary_distance", scalarlog.EMA)
	logs.AddLog("task_state", "AVG/target_heading_error", scalarlog.Mean)
	logs.AddLog("task_reward", "AVG/position", scalarlog.Mean)
	logs.AddLog("task_reward", "AVG/heading", scalarlog.Mean)
	logs.AddLog("task_reward", "AVG/linear_velocity", scalarlog.Mean)
	logs.AddLog("task_reward", "AVG/angular_velocity", scalarlog.Mean)
	logs.AddLog("task_reward", "AVG/boundary", scalarlog.Mean)
	logs.SetEMACoeff(g.cfg.EMACoeff)
}

// Name returns the registered name of the task
func (g *GoToPosition) Name() string { return "GoToPosition" }

// ObservationSpace returns the task observation width
func (g *GoToPosition) ObservationSpace() int { return goToPositionObsDims }

// GenSpace returns the generative-action width
func (g *GoToPosition) GenSpace() int { return goToPositionGenDims }

// TargetPositions returns a copy of the current goal positions
func (g *GoToPosition) TargetPositions() *mat.Dense {
	return mat.DenseCopyOf(g.targetPositions)
}

// PositionDist returns a copy of the cached robot-to-goal distances
func (g *GoToPosition) PositionDist() *mat.VecDense {
	return mat.VecDenseCopyOf(g.positionDist)
}

// PositionError returns a copy of the cached robot-to-goal error
// vectors
func (g *GoToPosition) PositionError() *mat.Dense {
	return mat.DenseCopyOf(g.positionError)
}

// refreshErrors recomputes the cached position error and distance of
// the argument ids from the current robot and goal state
func (g *GoToPosition) refreshErrors(ids []int) {
	pos := g.Robot().PositionW()
	for _, id := range ids {
		ex := g.targetPositions.At(id, 0) - pos.At(id, 0)
		ey := g.targetPositions.At(id, 1) - pos.At(id, 1)
		g.positionError.Set(id, 0, ex)
		g.positionError.Set(id, 1, ey)
		g.positionDist.SetVec(id, math.Hypot(ex, ey))
	}
}

// headingErrors returns the wrapped angle between each robot heading
// and the direction toward its goal
func (g *GoToPosition) headingErrors() *mat.VecDense {
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
func (g *GoToPosition) Observations() *mat.Dense {
	g.refreshErrors(mathutils.AllIDs(g.NumEnvs()))
	headErr := g.headingErrors()
	velB := g.Robot().LinVelB()
	angVel := g.Robot().AngVelW()

	data := g.TaskData()
	for i := 0; i < g.NumEnvs(); i++ {
		data.Set(i, 0, g.positionDist.AtVec(i))
		data.Set(i, 1, math.Cos(headErr.AtVec(i)))
		data.Set(i, 2, math.Sin(headErr.AtVec(i)))
		data.Set(i, 3, velB.At(i, 0))
		data.Set(i, 4, velB.At(i, 1))
		data.Set(i, 5, angVel.AtVec(i))
	}

	g.ApplyObservationRandomizers()
	return g.ConcatWithRobot()
}

// Rewards computes the five weighted shaped terms, advances the
// goal-reached hysteresis counter, and adds the robot reward so the
// total stays task+robot composable
func (g *GoToPosition) Rewards() *mat.VecDense {
	headErr := g.headingErrors()
	velW := g.Robot().LinVelW()
	angVel := g.Robot().AngVelW()
	linVel := mathutils.RowNorm(velW)

	boundaryDist := mat.NewVecDense(g.NumEnvs(), nil)
	absAngVel := mat.NewVecDense(g.NumEnvs(), nil)
	positionRew := mat.NewVecDense(g.NumEnvs(), nil)
	headingRew := mat.NewVecDense(g.NumEnvs(), nil)
	linVelRew := mat.NewVecDense(g.NumEnvs(), nil)
	angVelRew := mat.NewVecDense(g.NumEnvs(), nil)
	boundaryRew := mat.NewVecDense(g.NumEnvs(), nil)
	inTolerance := make([]bool, g.NumEnvs())

	for i := 0; i < g.NumEnvs(); i++ {
		dist := g.positionDist.AtVec(i)
		bDist := math.Abs(g.cfg.MaximumRobotDistance - dist)
		boundaryDist.SetVec(i, bDist)
		absAngVel.SetVec(i, math.Abs(angVel.AtVec(i)))

		positionRew.SetVec(i, math.Exp(-dist/g.cfg.PositionExpRewardCoeff))

		// The heading term fades out near the goal: pointing at a
		// target underneath the robot is meaningless
		distScaling := (mathutils.Clip(dist, g.cfg.MinHeadingDistScaler,
			g.cfg.MaxHeadingDistScaler) - g.cfg.MinHeadingDistScaler) /
			(g.cfg.MaxHeadingDistScaler - g.cfg.MinHeadingDistScaler)
		headingRew.SetVec(i, math.Exp(-math.Abs(headErr.AtVec(i))/
			g.cfg.HeadingExpRewardCoeff)*distScaling)

		linVelRew.SetVec(i, mathutils.Clip(
			linVel.AtVec(i)-g.cfg.LinearVelocityMinValue,
			0, g.cfg.LinearVelocityMaxValue-g.cfg.LinearVelocityMinValue))
		angVelRew.SetVec(i, mathutils.Clip(
			absAngVel.AtVec(i)-g.cfg.AngularVelocityMinValue,
			0, g.cfg.AngularVelocityMaxValue-g.cfg.AngularVelocityMinValue))

		boundaryRew.SetVec(i, math.Exp(-bDist/g.cfg.BoundaryExpRewardCoeff))

		inTolerance[i] = dist < g.cfg.PositionTolerance
	}

	g.UpdateGoalCounter(inTolerance)

	logs := g.Logger()
	logs.Log("task_state", "EMA/position_distance", g.positionDist)
	logs.Log("task_state", "EMA/boundary_distance", boundaryDist)
	logs.Log("task_state", "AVG/normed_linear_velocity", linVel)
	logs.Log("task_state", "AVG/absolute_angular_velocity", absAngVel)
	logs.Log("task_state", "AVG/target_heading_error", headErr)
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
func (g *GoToPosition) Dones() (taskFailed, taskCompleted []bool) {
	g.refreshErrors(mathutils.AllIDs(g.NumEnvs()))

	taskFailed = make([]bool, g.NumEnvs())
	for i := 0; i < g.NumEnvs(); i++ {
		taskFailed[i] = g.positionDist.AtVec(i) > g.cfg.MaximumRobotDistance
	}
	taskCompleted = g.CounterExceeds(g.cfg.ResetAfterNStepsInTolerance)
	return taskFailed, taskCompleted
}

// Reset resamples goals and initial conditions for exactly the
// argument ids.
//
// The generative actions all belong to [0, 1]:
//
//	0: spawn distance between robot and goal
//	1: spawn heading delta relative to looking at the goal
//	2: spawn linear velocity
//	3: spawn angular velocity
func (g *GoToPosition) Reset(ids []int, genActions *mat.Dense, seeds []uint64) {
	ids = g.ResetCore(ids, genActions, seeds)

	// Goals strictly before initial conditions: spawns are defined
	// relative to the goal
	g.SetGoals(ids)
	g.SetInitialConditions(ids)

	// Recompute the cached errors so the first observation after the
	// reset reflects the post-reset state
	g.refreshErrors(ids)
}

// SetGoals draws a goal position for each argument id uniformly inside
// a square centered on its environment origin. Goals are not
// difficulty-scaled in this task.
func (g *GoToPosition) SetGoals(ids []int) {
	origins := g.Scene().EnvOrigins()
	samples := g.RNG().UniformFloat(-g.cfg.GoalMaxDistFromOrigin,
		g.cfg.GoalMaxDistFromOrigin, 2, ids)
	for i, id := range ids {
		g.targetPositions.Set(id, 0, samples.At(i, 0)+origins.At(id, 0))
		g.targetPositions.Set(id, 1, samples.At(i, 1)+origins.At(id, 1))
	}
}

// SetInitialConditions samples the spawn pose and velocity of the
// argument ids. Generative actions close to 0 make the task easiest,
// close to 1 hardest, interpolated linearly into the configured spawn
// ranges.
func (g *GoToPosition) SetInitialConditions(ids []int) {
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
		// Position on a circle of difficulty-scaled radius around the
		// goal
		radius := mathutils.Lerp(gen.At(id, 0), g.cfg.SpawnMinDist,
			g.cfg.SpawnMaxDist)
		px := radius*math.Cos(spawnTheta.At(i, 0)) + g.targetPositions.At(id, 0)
		py := radius*math.Sin(spawnTheta.At(i, 0)) + g.targetPositions.At(id, 1)
		pos.Set(i, 0, px)
		pos.Set(i, 1, py)

		// Difficulty-scaled heading delta on top of looking straight
		// at the goal
		targetHeading := math.Atan2(g.targetPositions.At(id, 1)-py,
			g.targetPositions.At(id, 0)-px)
		deltaHeading := mathutils.Lerp(gen.At(id, 1),
			g.cfg.SpawnMinHeadingDist, g.cfg.SpawnMaxHeadingDist) *
			headingSign.At(i, 0)
		heading.SetVec(i, mathutils.WrapAngle(targetHeading+deltaHeading))

		// Spawn velocity, direction uniform, magnitude
		// difficulty-scaled
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
