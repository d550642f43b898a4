// Package envconfig provides configuration structs for assembling
// vectorized environments from a robot, a task, and a list of
// randomizers, all referred to by their registered names. Environment
// configurations in this package are YAML serializable.
package envconfig

import (
	"fmt"
	"math"
	"os"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v2"

	"github.com/snt-spacer/NavBench-Code/envs"
	"github.com/snt-spacer/NavBench-Code/randomization"
	"github.com/snt-spacer/NavBench-Code/robot"
	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/task"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
	"github.com/snt-spacer/NavBench-Code/utils/scalarlog"
)

// RandomizerConfig names a registered randomizer and carries its
// configuration overrides. Fields absent from Cfg keep their defaults.
type RandomizerConfig struct {
	Name string        `yaml:"name"`
	Cfg  yaml.MapSlice `yaml:"cfg"`
}

// Config implements a specific configuration of a specific robot and
// specific task. RobotCfg and TaskCfg hold overrides applied on top of
// the registered defaults, so an empty map configures the defaults.
type Config struct {
	Robot       string             `yaml:"robot"`
	Task        string             `yaml:"task"`
	NumEnvs     int                `yaml:"num_envs"`
	Seed        uint64             `yaml:"seed"`
	PhysicsDt   float64            `yaml:"physics_dt"`
	EnvSpacing  float64            `yaml:"env_spacing"`
	RobotCfg    yaml.MapSlice      `yaml:"robot_cfg"`
	TaskCfg     yaml.MapSlice      `yaml:"task_cfg"`
	Randomizers []RandomizerConfig `yaml:"randomizers"`
}

// NewConfig returns a Config with usable defaults for the named robot
// and task
func NewConfig(robotName, taskName string, numEnvs int, seed uint64) Config {
	return Config{
		Robot:      robotName,
		Task:       taskName,
		NumEnvs:    numEnvs,
		Seed:       seed,
		PhysicsDt:  0.02,
		EnvSpacing: 4.0,
	}
}

// Load reads a Config from a YAML file
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("envconfig: could not read %v: %v",
			path, err)
	}
	return Parse(data)
}

// Parse decodes a Config from YAML bytes and fills unset scalar fields
// with their defaults
func Parse(data []byte) (Config, error) {
	c := Config{PhysicsDt: 0.02, EnvSpacing: 4.0}
	if err := yaml.UnmarshalStrict(data, &c); err != nil {
		return Config{}, fmt.Errorf("envconfig: could not decode config: %v",
			err)
	}
	return c, nil
}

// Validate checks that the configuration names registered components
// and carries sane scalars. Override maps are validated later, by the
// component configurations they decode into.
func (c Config) Validate() error {
	if c.NumEnvs <= 0 {
		return fmt.Errorf("envconfig: num_envs must be positive, got %d",
			c.NumEnvs)
	}
	if c.PhysicsDt <= 0 {
		return fmt.Errorf("envconfig: physics_dt must be positive, got %v",
			c.PhysicsDt)
	}
	if c.EnvSpacing <= 0 {
		return fmt.Errorf("envconfig: env_spacing must be positive, got %v",
			c.EnvSpacing)
	}
	if _, err := robot.MakeCfg(c.Robot); err != nil {
		return err
	}
	if _, err := task.MakeCfg(c.Task); err != nil {
		return err
	}
	for _, r := range c.Randomizers {
		if _, err := randomization.MakeCfg(r.Name); err != nil {
			return err
		}
	}
	return nil
}

// decodeInto applies YAML overrides on top of a default configuration
// by round-tripping the override map through the YAML codec
func decodeInto(overrides yaml.MapSlice, cfg interface{}) error {
	if len(overrides) == 0 {
		return nil
	}
	raw, err := yaml.Marshal(overrides)
	if err != nil {
		return fmt.Errorf("envconfig: could not re-encode overrides: %v", err)
	}
	if err := yaml.UnmarshalStrict(raw, cfg); err != nil {
		return fmt.Errorf("envconfig: could not apply overrides: %v", err)
	}
	return nil
}

// gridOrigins lays the environment origins out on a square grid
// centered on the world origin
func gridOrigins(numEnvs int, spacing float64) *mat.Dense {
	cols := int(math.Ceil(math.Sqrt(float64(numEnvs))))
	rows := (numEnvs + cols - 1) / cols

	origins := mat.NewDense(numEnvs, 2, nil)
	for i := 0; i < numEnvs; i++ {
		r := i / cols
		c := i % cols
		origins.Set(i, 0, (float64(c)-float64(cols-1)/2)*spacing)
		origins.Set(i, 1, (float64(r)-float64(rows-1)/2)*spacing)
	}
	return origins
}

// Create assembles the environment described by the Config. The first
// observation comes from the VecEnv's own Reset.
func (c Config) Create(log *zap.SugaredLogger) (*envs.VecEnv, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logs := scalarlog.New(log)
	r := rng.New(c.Seed, c.NumEnvs)

	robCfg, err := robot.MakeCfg(c.Robot)
	if err != nil {
		return nil, err
	}
	if err := decodeInto(c.RobotCfg, robCfg); err != nil {
		return nil, err
	}

	s := scene.New(c.NumEnvs, robCfg.NumJoints(), c.PhysicsDt)
	s.SetEnvOrigins(gridOrigins(c.NumEnvs, c.EnvSpacing))

	rob, err := robot.Make(c.Robot, robCfg, s, r, logs, c.NumEnvs)
	if err != nil {
		return nil, err
	}

	taskCfg, err := task.MakeCfg(c.Task)
	if err != nil {
		return nil, err
	}
	if err := decodeInto(c.TaskCfg, taskCfg); err != nil {
		return nil, err
	}
	tsk, err := task.Make(c.Task, taskCfg, s, r, rob, logs, c.NumEnvs)
	if err != nil {
		return nil, err
	}

	// Every randomizer is attached to both the robot and the task. The
	// hooks a randomizer does not implement are no-ops, so attachment
	// order only matters among randomizers acting on the same tensor.
	randomizers := make([]randomization.Randomizer, len(c.Randomizers))
	for i, rc := range c.Randomizers {
		randCfg, err := randomization.MakeCfg(rc.Name)
		if err != nil {
			return nil, err
		}
		if err := decodeInto(rc.Cfg, randCfg); err != nil {
			return nil, err
		}
		rand, err := randomization.Make(rc.Name, randCfg, r, s, c.NumEnvs)
		if err != nil {
			return nil, err
		}
		rob.AttachRandomizer(rand)
		tsk.AttachRandomizer(rand)
		randomizers[i] = rand
	}

	return envs.New(s, rob, tsk, randomizers, r, logs)
}
