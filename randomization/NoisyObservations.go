package randomization

import (
	"gonum.org/v1/gonum/mat"

	"github.com/snt-spacer/NavBench-Code/scene"
	"github.com/snt-spacer/NavBench-Code/utils/rng"
)

func init() {
	Register("NoisyObservations",
		func() Cfg { return NewNoisyObservationsCfg() },
		func(cfg Cfg, r *rng.PerEnvRNG, s *scene.Scene,
			numEnvs int) (Randomizer, error) {
			return NewNoisyObservations(cfg.(*NoisyObservationsCfg), r, numEnvs)
		})
}

// NoisyObservationsCfg configures additive observation noise with the
// same slice-alignment rules as NoisyActionsCfg. Slices index columns
// of the task observation tensor.
type NoisyObservationsCfg struct {
	Modes    []string     `yaml:"modes"`
	Slices   [][2]int     `yaml:"slices"`
	MaxDelta []float64    `yaml:"max_delta"`
	Std      []float64    `yaml:"std"`
	Clip     [][2]float64 `yaml:"clip_observations"`

	modes []Mode
}

// NewNoisyObservationsCfg returns a NoisyObservationsCfg with
// randomization disabled
func NewNoisyObservationsCfg() *NoisyObservationsCfg {
	return &NoisyObservationsCfg{Modes: []string{"none"}}
}

// GenSpace returns the generative-action width of the randomizer
func (c *NoisyObservationsCfg) GenSpace() int { return 1 }

// ModeList returns the parsed modes. Validate must succeed first.
func (c *NoisyObservationsCfg) ModeList() []Mode { return c.modes }

// Validate parses the configured modes and checks every per-slice
// alignment rule
func (c *NoisyObservationsCfg) Validate() error {
	modes, err := ParseModes(c.Modes)
	if err != nil {
		return err
	}
	c.modes = modes
	return validateNoiseCfg(modes, c.Slices, c.MaxDelta, c.Std, c.Clip)
}

// NoisyObservations perturbs the task observation tensor in place,
// sharing the noise-knob machinery of NoisyActions
type NoisyObservations struct {
	cfg     *NoisyObservationsCfg
	rng     *rng.PerEnvRNG
	numEnvs int
	bank    *noiseBank
}

// NewNoisyObservations creates the randomizer. The configuration must
// have been validated.
func NewNoisyObservations(cfg *NoisyObservationsCfg, r *rng.PerEnvRNG,
	numEnvs int) (*NoisyObservations, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &NoisyObservations{cfg: cfg, rng: r, numEnvs: numEnvs}, nil
}

// Name returns the registered name of the randomizer
func (n *NoisyObservations) Name() string { return "NoisyObservations" }

// GenSpace returns the generative-action width consumed on reset
func (n *NoisyObservations) GenSpace() int { return n.cfg.GenSpace() }

// Setup allocates the per-environment noise knobs
func (n *NoisyObservations) Setup() error {
	n.bank = newNoiseBank(n.rng, n.numEnvs, n.cfg.modes, n.cfg.Slices,
		n.cfg.MaxDelta, n.cfg.Std, n.cfg.Clip)
	return nil
}

// Reset resamples the noise knobs of exactly the argument ids
func (n *NoisyObservations) Reset(ids []int, genActions *mat.Dense) {
	n.bank.reset(ids, genActions)
}

// Actions is a no-op: this randomizer only touches observations
func (n *NoisyObservations) Actions(dt float64, actions *mat.Dense) {}

// Observations adds the configured noise to the observation tensor in
// place
func (n *NoisyObservations) Observations(observations *mat.Dense) {
	n.bank.apply(observations)
}

// Update is a no-op
func (n *NoisyObservations) Update(dt float64, actions *mat.Dense) {}

// Data exposes the current per-environment noise knobs
func (n *NoisyObservations) Data() map[string]*mat.Dense {
	return n.bank.data("observation_noise")
}
