package randomization

import (
	"gonum.org/v1/gonum/mat"

	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
)

func init() {
	Register("NoisyActions",
		func() Cfg { return NewNoisyActionsCfg() },
		func(cfg Cfg, r *rng.PerEnvRNG, s *scene.Scene,
			numEnvs int) (Randomizer, error) {
			return NewNoisyActions(cfg.(*NoisyActionsCfg), r, numEnvs)
		})
}

// NoisyActionsCfg configures additive action noise. Exactly one of the
// uniform or normal modes may be active; the per-slice parameter lists
// must align one-to-one with the configured slices.
type NoisyActionsCfg struct {
	// Modes lists the randomization modes to apply ("none", "uniform"
	// or "normal")
	Modes []string `yaml:"modes"`

	// Slices are the half-open [start, end) column ranges of the
	// action tensor the noise applies to
	Slices [][2]int `yaml:"slices"`

	// MaxDelta holds, per slice, the largest half-width of the uniform
	// noise. The realized half-width is MaxDelta scaled by the
	// generative scalar of each environment.
	MaxDelta []float64 `yaml:"max_delta"`

	// Std holds, per slice, the largest standard deviation of the
	// zero-mean normal noise, scaled like MaxDelta
	Std []float64 `yaml:"std"`

	// Clip holds optional [min, max] bounds applied per slice after
	// the noise is added. A nil Clip disables clipping.
	Clip [][2]float64 `yaml:"clip_actions"`

	modes []Mode
}

// NewNoisyActionsCfg returns a NoisyActionsCfg with randomization
// disabled
func NewNoisyActionsCfg() *NoisyActionsCfg {
	return &NoisyActionsCfg{Modes: []string{"none"}}
}

// GenSpace returns the generative-action width of the randomizer. A
// single scalar drives every configured slice.
func (c *NoisyActionsCfg) GenSpace() int { return 1 }

// ModeList returns the parsed modes. Validate must succeed first.
func (c *NoisyActionsCfg) ModeList() []Mode { return c.modes }

// Validate parses the configured modes and checks every per-slice
// alignment rule, failing before any buffer is allocated
func (c *NoisyActionsCfg) Validate() error {
	modes, err := ParseModes(c.Modes)
	if err != nil {
		return err
	}
	c.modes = modes
	if err := validateNoiseCfg(modes, c.Slices, c.MaxDelta, c.Std,
		c.Clip); err != nil {
		return err
	}
	return nil
}

// NoisyActions perturbs the action tensor in place with additive
// noise. The noise bounds are per-environment knobs resampled on reset
// from a single generative scalar, so the whole randomizer exposes one
// "noise intensity" control dimension.
type NoisyActions struct {
	cfg     *NoisyActionsCfg
	rng     *rng.PerEnvRNG
	numEnvs int
	bank    *noiseBank
}

// NewNoisyActions creates the randomizer. The configuration must have
// been validated.
func NewNoisyActions(cfg *NoisyActionsCfg, r *rng.PerEnvRNG,
	numEnvs int) (*NoisyActions, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &NoisyActions{cfg: cfg, rng: r, numEnvs: numEnvs}, nil
}

// Name returns the registered name of the randomizer
func (n *NoisyActions) Name() string { return "NoisyActions" }

// GenSpace returns the generative-action width consumed on reset
func (n *NoisyActions) GenSpace() int { return n.cfg.GenSpace() }

// Setup allocates the per-environment noise knobs
func (n *NoisyActions) Setup() error {
	n.bank = newNoiseBank(n.rng, n.numEnvs, n.cfg.modes, n.cfg.Slices,
		n.cfg.MaxDelta, n.cfg.Std, n.cfg.Clip)
	return nil
}

// Reset resamples the noise knobs of exactly the argument ids
func (n *NoisyActions) Reset(ids []int, genActions *mat.Dense) {
	n.bank.reset(ids, genActions)
}

// Actions adds the configured noise to the action tensor in place
func (n *NoisyActions) Actions(dt float64, actions *mat.Dense) {
	n.bank.apply(actions)
}

// Observations is a no-op: this randomizer only touches actions
func (n *NoisyActions) Observations(observations *mat.Dense) {}

// Update is a no-op: the noise has no time-dependent state
func (n *NoisyActions) Update(dt float64, actions *mat.Dense) {}

// Data exposes the current per-environment noise knobs
func (n *NoisyActions) Data() map[string]*mat.Dense {
	return n.bank.data("action_noise")
}
