// Package rng implements per-environment seeded random number
// generation for vectorized environments.
//
// Environments reset asynchronously: only the subset of environments
// that terminated on a given step is re-rolled. Every environment slot
// therefore holds its own generator stream so that sampling initial
// conditions for one slot never perturbs the stream of any other,
// regardless of the order in which slots are reset.
package rng

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/snt-spacer/NavBench-Code/utils/mathutils"
)

// PerEnvRNG holds one independently seeded generator per environment
// slot. All sampling methods take an optional id set; a nil id set
// means "all environments", with results ordered by slot index.
type PerEnvRNG struct {
	numEnvs int
	seeds   []uint64
	streams []*rand.Rand
}

// New creates a PerEnvRNG with numEnvs independent streams derived
// from a base seed
func New(baseSeed uint64, numEnvs int) *PerEnvRNG {
	r := &PerEnvRNG{
		numEnvs: numEnvs,
		seeds:   make([]uint64, numEnvs),
		streams: make([]*rand.Rand, numEnvs),
	}
	for i := 0; i < numEnvs; i++ {
		r.seed(i, baseSeed+uint64(i))
	}
	return r
}

func (r *PerEnvRNG) seed(id int, seed uint64) {
	r.seeds[id] = seed
	r.streams[id] = rand.New(rand.NewSource(seed))
}

// NumEnvs returns the number of environment slots
func (r *PerEnvRNG) NumEnvs() int {
	return r.numEnvs
}

// Seeds returns a copy of the current per-environment seeds
func (r *PerEnvRNG) Seeds() []uint64 {
	seeds := make([]uint64, len(r.seeds))
	copy(seeds, r.seeds)
	return seeds
}

// SetSeeds reseeds the streams of exactly the argument ids. The two
// argument slices must have the same length.
func (r *PerEnvRNG) SetSeeds(ids []int, seeds []uint64) {
	if ids == nil {
		ids = mathutils.AllIDs(r.numEnvs)
	}
	if len(ids) != len(seeds) {
		panic("rng: ids and seeds must have the same length")
	}
	for i, id := range ids {
		r.seed(id, seeds[i])
	}
}

func (r *PerEnvRNG) resolve(ids []int) []int {
	if ids == nil {
		return mathutils.AllIDs(r.numEnvs)
	}
	return ids
}

// UniformFloat samples a [len(ids), width] matrix where row i holds
// width draws from U(low, high) taken from the stream of ids[i]
func (r *PerEnvRNG) UniformFloat(low, high float64, width int,
	ids []int) *mat.Dense {
	ids = r.resolve(ids)
	out := mat.NewDense(len(ids), width, nil)
	for i, id := range ids {
		dist := distuv.Uniform{Min: low, Max: high, Src: r.streams[id]}
		for j := 0; j < width; j++ {
			out.Set(i, j, dist.Rand())
		}
	}
	return out
}

// UniformRanges samples like UniformFloat with per-selected-slot
// bounds: row i is drawn from U(low[i], high[i]). The bound vectors
// are indexed by position in ids, not by slot.
func (r *PerEnvRNG) UniformRanges(low, high *mat.VecDense, width int,
	ids []int) *mat.Dense {
	ids = r.resolve(ids)
	if low.Len() != len(ids) || high.Len() != len(ids) {
		panic("rng: bound vectors must have one entry per selected id")
	}
	out := mat.NewDense(len(ids), width, nil)
	for i, id := range ids {
		dist := distuv.Uniform{
			Min: low.AtVec(i),
			Max: high.AtVec(i),
			Src: r.streams[id],
		}
		for j := 0; j < width; j++ {
			if dist.Max <= dist.Min {
				// Degenerate interval, e.g. a zero noise bound
				out.Set(i, j, dist.Min)
				continue
			}
			out.Set(i, j, dist.Rand())
		}
	}
	return out
}

// NormalFloat samples a [len(ids), width] matrix where row i holds
// width draws from N(mean, std²) taken from the stream of ids[i]
func (r *PerEnvRNG) NormalFloat(mean, std float64, width int,
	ids []int) *mat.Dense {
	ids = r.resolve(ids)
	out := mat.NewDense(len(ids), width, nil)
	for i, id := range ids {
		dist := distuv.Normal{Mu: mean, Sigma: std, Src: r.streams[id]}
		for j := 0; j < width; j++ {
			if dist.Sigma <= 0 {
				out.Set(i, j, dist.Mu)
				continue
			}
			out.Set(i, j, dist.Rand())
		}
	}
	return out
}

// NormalRanges samples like NormalFloat with per-selected-slot mean
// and standard deviation vectors, indexed by position in ids
func (r *PerEnvRNG) NormalRanges(mean, std *mat.VecDense, width int,
	ids []int) *mat.Dense {
	ids = r.resolve(ids)
	if mean.Len() != len(ids) || std.Len() != len(ids) {
		panic("rng: mean and std vectors must have one entry per selected id")
	}
	out := mat.NewDense(len(ids), width, nil)
	for i, id := range ids {
		dist := distuv.Normal{
			Mu:    mean.AtVec(i),
			Sigma: std.AtVec(i),
			Src:   r.streams[id],
		}
		for j := 0; j < width; j++ {
			if dist.Sigma <= 0 {
				out.Set(i, j, dist.Mu)
				continue
			}
			out.Set(i, j, dist.Rand())
		}
	}
	return out
}

// Sign samples a [len(ids), width] matrix of ±1 values
func (r *PerEnvRNG) Sign(width int, ids []int) *mat.Dense {
	ids = r.resolve(ids)
	out := mat.NewDense(len(ids), width, nil)
	for i, id := range ids {
		for j := 0; j < width; j++ {
			if r.streams[id].Float64() < 0.5 {
				out.Set(i, j, -1)
			} else {
				out.Set(i, j, 1)
			}
		}
	}
	return out
}
