// Package randomization implements domain randomization plugins that
// hook into the action and observation pipelines of vectorized
// environments.
//
// Each randomizer owns per-environment noise knobs that are resampled
// on reset from a single generative scalar per environment slot. The
// scalar acts as a one-dimensional difficulty knob: all configured
// slices of one randomizer instance move in lockstep rather than
// independently.
package randomization

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/utils/mathutils"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
)

// Mode identifies a randomization distribution. Modes are closed
// variants dispatched through switches; configuration selects them by
// string name.
type Mode int

const (
	ModeNone Mode = iota
	ModeUniform
	ModeNormal
)

func (m Mode) String() string {
	switch m {
	case ModeUniform:
		return "uniform"
	case ModeNormal:
		return "normal"
	default:
		return "none"
	}
}

// ParseMode resolves a configured mode name. Unknown names are a
// configuration error.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "none":
		return ModeNone, nil
	case "uniform":
		return ModeUniform, nil
	case "normal":
		return ModeNormal, nil
	}
	return ModeNone, fmt.Errorf("randomization: unknown mode %q", s)
}

// ParseModes resolves a list of configured mode names and rejects
// mutually exclusive combinations. Uniform and normal sampling cannot
// be active on the same randomizer.
func ParseModes(names []string) ([]Mode, error) {
	modes := make([]Mode, 0, len(names))
	var hasUniform, hasNormal bool
	for _, name := range names {
		m, err := ParseMode(name)
		if err != nil {
			return nil, err
		}
		hasUniform = hasUniform || m == ModeUniform
		hasNormal = hasNormal || m == ModeNormal
		modes = append(modes, m)
	}
	if hasUniform && hasNormal {
		return nil, fmt.Errorf(
			"randomization: the 'uniform' and 'normal' modes cannot be combined")
	}
	return modes, nil
}

// Cfg is the configuration contract every randomizer configuration
// satisfies. Validate must reject every inconsistency (misaligned
// per-slice parameter lists, exclusive mode combinations) before any
// buffer is allocated.
type Cfg interface {
	Validate() error
	GenSpace() int
}

// Randomizer is the plugin contract. Hooks mutate their argument
// tensors in place and must preserve shape; hooks that do not apply to
// a given randomizer are no-ops.
type Randomizer interface {
	// Name returns the registered name of the randomizer
	Name() string

	// GenSpace returns the width of the generative-action slice
	// consumed on reset
	GenSpace() int

	// Setup allocates internal buffers. Called once before any other
	// method.
	Setup() error

	// Reset resamples the per-environment noise knobs for exactly the
	// argument ids. A nil genActions means the generative scalars are
	// drawn uniformly from [0, 1]; row i of genActions applies to
	// ids[i].
	Reset(ids []int, genActions *mat.Dense)

	// Actions mutates the action tensor in place
	Actions(dt float64, actions *mat.Dense)

	// Observations mutates the observation tensor in place
	Observations(observations *mat.Dense)

	// Update advances time-dependent randomization state, independent
	// of whether the action or observation hooks fire this step
	Update(dt float64, actions *mat.Dense)

	// Data exposes the current noise knobs for external logging
	Data() map[string]*mat.Dense
}

// Factory builds a Randomizer from its validated configuration
type Factory func(cfg Cfg, r *rng.PerEnvRNG, s *scene.Scene,
	numEnvs int) (Randomizer, error)

// Registered randomizers. Each implementation registers itself with
// this package so that configurations can refer to it by name.
var (
	factories    = map[string]Factory{}
	cfgFactories = map[string]func() Cfg{}
)

// Register registers a randomizer implementation and its configuration
// constructor under a name
func Register(name string, cfgFactory func() Cfg, factory Factory) {
	factories[name] = factory
	cfgFactories[name] = cfgFactory
}

// Registered returns the names of all registered randomizers
func Registered() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// MakeCfg returns a default configuration for the named randomizer
func MakeCfg(name string) (Cfg, error) {
	cfgFactory, ok := cfgFactories[name]
	if !ok {
		return nil, fmt.Errorf("randomization: no randomizer registered "+
			"under name %q", name)
	}
	return cfgFactory(), nil
}

// Make validates the configuration, builds the named randomizer, and
// runs its setup. A nil cfg uses the registered defaults.
func Make(name string, cfg Cfg, r *rng.PerEnvRNG, s *scene.Scene,
	numEnvs int) (Randomizer, error) {
	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("randomization: no randomizer registered "+
			"under name %q", name)
	}
	if cfg == nil {
		cfg = cfgFactories[name]()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rand, err := factory(cfg, r, s, numEnvs)
	if err != nil {
		return nil, err
	}
	if err := rand.Setup(); err != nil {
		return nil, err
	}
	return rand, nil
}

// noiseBank holds the shared per-slice, per-environment noise knobs
// used by the additive-noise randomizers. Uniform mode keeps one
// symmetric half-width per (slice, env); normal mode keeps one
// standard deviation per (slice, env), always centered on zero.
type noiseBank struct {
	rng     *rng.PerEnvRNG
	numEnvs int
	mode    Mode
	slices  [][2]int
	scale   []float64      // per-slice max delta or std
	clip    [][2]float64   // nil means no clipping
	knobs   []*mat.VecDense // per slice, [numEnvs]
}

func newNoiseBank(r *rng.PerEnvRNG, numEnvs int, modes []Mode,
	slices [][2]int, maxDelta, std []float64, clip [][2]float64) *noiseBank {
	b := &noiseBank{
		rng:     r,
		numEnvs: numEnvs,
		mode:    ModeNone,
		slices:  slices,
		clip:    clip,
	}
	for _, m := range modes {
		switch m {
		case ModeUniform:
			b.mode = ModeUniform
			b.scale = maxDelta
		case ModeNormal:
			b.mode = ModeNormal
			b.scale = std
		}
	}
	b.knobs = make([]*mat.VecDense, len(slices))
	for i := range b.knobs {
		b.knobs[i] = mat.NewVecDense(numEnvs, nil)
	}
	return b
}

// reset rescales the knobs of exactly the argument ids from one
// generative scalar per id. The same scalar drives every slice.
func (b *noiseBank) reset(ids []int, genActions *mat.Dense) {
	if b.mode == ModeNone {
		return
	}
	if ids == nil {
		ids = mathutils.AllIDs(b.numEnvs)
	}
	if genActions == nil {
		genActions = b.rng.UniformFloat(0, 1, 1, ids)
	}
	for i := range b.slices {
		for row, id := range ids {
			b.knobs[i].SetVec(id, b.scale[i]*genActions.At(row, 0))
		}
	}
}

// apply adds noise to the configured column slices of the target in
// place, then clips each slice to its configured bounds
func (b *noiseBank) apply(target *mat.Dense) {
	if b.mode == ModeNone {
		return
	}
	n, _ := target.Dims()
	for i, sl := range b.slices {
		width := sl[1] - sl[0]
		var noise *mat.Dense
		switch b.mode {
		case ModeUniform:
			neg := mat.NewVecDense(b.numEnvs, nil)
			neg.ScaleVec(-1, b.knobs[i])
			noise = b.rng.UniformRanges(neg, b.knobs[i], width, nil)
		case ModeNormal:
			mean := mat.NewVecDense(b.numEnvs, nil)
			noise = b.rng.NormalRanges(mean, b.knobs[i], width, nil)
		}
		for row := 0; row < n; row++ {
			for j := 0; j < width; j++ {
				v := target.At(row, sl[0]+j) + noise.At(row, j)
				if b.clip != nil {
					v = mathutils.Clip(v, b.clip[i][0], b.clip[i][1])
				}
				target.Set(row, sl[0]+j, v)
			}
		}
	}
}

// data exposes the knobs as a [numEnvs, numSlices] matrix
func (b *noiseBank) data(key string) map[string]*mat.Dense {
	if b.mode == ModeNone {
		return map[string]*mat.Dense{}
	}
	out := mat.NewDense(b.numEnvs, len(b.slices), nil)
	for i := range b.slices {
		for id := 0; id < b.numEnvs; id++ {
			out.Set(id, i, b.knobs[i].AtVec(id))
		}
	}
	return map[string]*mat.Dense{key: out}
}

// validateNoiseCfg enforces the shared per-slice alignment rules of
// the additive-noise configurations
func validateNoiseCfg(modes []Mode, slices [][2]int, maxDelta,
	std []float64, clip [][2]float64) error {
	if len(slices) == 0 {
		return fmt.Errorf("randomization: the slices must be defined")
	}
	for _, sl := range slices {
		if sl[1] <= sl[0] || sl[0] < 0 {
			return fmt.Errorf("randomization: invalid slice [%d, %d)",
				sl[0], sl[1])
		}
	}
	if clip != nil && len(clip) != len(slices) {
		return fmt.Errorf("randomization: the length of 'clip' (%d) must "+
			"be the same as 'slices' (%d)", len(clip), len(slices))
	}
	for _, m := range modes {
		switch m {
		case ModeUniform:
			if len(maxDelta) != len(slices) {
				return fmt.Errorf("randomization: the length of 'max_delta' "+
					"(%d) must be the same as 'slices' (%d)",
					len(maxDelta), len(slices))
			}
		case ModeNormal:
			if len(std) != len(slices) {
				return fmt.Errorf("randomization: the length of 'std' (%d) "+
					"must be the same as 'slices' (%d)", len(std), len(slices))
			}
		}
	}
	return nil
}
