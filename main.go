package main

import (
	"flag"
	"fmt"
	"log"

	"go.uber.org/zap"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"

	"github.com/snt-spacer/NavBench-Code/envs"
	"github.com/snt-spacer/NavBench-Code/envs/envconfig"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML environment config")
	robotName := flag.String("robot", "Leatherback", "robot to step")
	taskName := flag.String("task", "GoToPosition", "task to step")
	numEnvs := flag.Int("num-envs", 16, "number of environment instances")
	numSteps := flag.Int("steps", 1000, "number of vectorized steps")
	seed := flag.Uint64("seed", 192382, "base seed")
	flag.Parse()

	zapLog, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("could not create logger: %v", err)
	}
	defer zapLog.Sync()
	sugar := zapLog.Sugar()

	var cfg envconfig.Config
	if *configPath != "" {
		cfg, err = envconfig.Load(*configPath)
		if err != nil {
			sugar.Fatalf("could not load config: %v", err)
		}
	} else {
		cfg = envconfig.NewConfig(*robotName, *taskName, *numEnvs, *seed)
	}

	env, err := cfg.Create(sugar)
	if err != nil {
		sugar.Fatalf("could not create environment: %v", err)
	}

	if _, err := env.Reset(nil, nil, nil); err != nil {
		sugar.Fatalf("could not reset environment: %v", err)
	}

	// Step a uniform random policy and reset finished instances as they
	// terminate
	src := rand.NewSource(cfg.Seed)
	policy := rand.New(src)
	actDim := env.ActionSpace()

	var totalReward float64
	var episodes int
	for step := 0; step < *numSteps; step++ {
		actions := make([]float64, env.NumEnvs()*actDim)
		for i := range actions {
			actions[i] = 2*policy.Float64() - 1
		}
		acts := tensor.New(tensor.WithShape(env.NumEnvs(), actDim),
			tensor.WithBacking(actions))

		result, err := env.Step(acts)
		if err != nil {
			sugar.Fatalf("step %d failed: %v", step, err)
		}

		var done []int
		for i := 0; i < env.NumEnvs(); i++ {
			totalReward += result.Rewards[i]
			if result.TaskFailed[i] || result.TaskCompleted[i] {
				done = append(done, i)
			}
		}
		if done != nil {
			episodes += len(done)
			if _, err := env.Reset(done, nil, nil); err != nil {
				sugar.Fatalf("reset of %v failed: %v", done, err)
			}
		}

		if (step+1)%100 == 0 {
			env.Logger().Flush()
		}
	}

	fmt.Printf("stepped %d environments for %d steps: %d episodes ended, "+
		"mean reward per step %.4f\n", env.NumEnvs(), *numSteps, episodes,
		totalReward/float64(*numSteps*env.NumEnvs()))
	printEval(env)
}

func printEval(env *envs.VecEnv) {
	for _, key := range env.EvalDataKeys() {
		data := env.EvalData()[key]
		fmt.Printf("eval %-20s shape %v\n", key, data.Shape())
	}
}
