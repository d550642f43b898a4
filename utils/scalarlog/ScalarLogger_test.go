package scalarlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/mat"
)

func vec(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

func TestMeanSeries(t *testing.T) {
	logs := New(nil)
	logs.AddLog("reward", "AVG/position", Mean)

	logs.Log("reward", "AVG/position", vec(1, 3))
	logs.Log("reward", "AVG/position", vec(4, 4))

	out := logs.Flush()
	assert.InDelta(t, 3.0, out["reward/AVG/position"], 1e-12)

	// Flushing clears mean accumulators
	out = logs.Flush()
	_, ok := out["reward/AVG/position"]
	assert.False(t, ok)
}

func TestEMASeries(t *testing.T) {
	logs := New(nil)
	logs.AddLog("state", "EMA/distance", EMA)
	logs.SetEMACoeff(0.5)

	logs.Log("state", "EMA/distance", vec(2, 2))
	logs.Log("state", "EMA/distance", vec(4, 4))

	// First value warms the series, second blends in at 1-coeff
	out := logs.Flush()
	assert.InDelta(t, 3.0, out["state/EMA/distance"], 1e-12)

	// EMA state survives the flush
	out = logs.Flush()
	assert.InDelta(t, 3.0, out["state/EMA/distance"], 1e-12)
}

func TestUnknownSeriesPanics(t *testing.T) {
	logs := New(nil)
	logs.AddLog("reward", "AVG/position", Mean)

	assert.Panics(t, func() {
		logs.Log("reward", "AVG/heading", vec(1))
	})
	assert.Panics(t, func() {
		logs.Log("state", "AVG/position", vec(1))
	})
}

func TestReset(t *testing.T) {
	logs := New(nil)
	logs.AddLog("state", "EMA/distance", EMA)
	logs.Log("state", "EMA/distance", vec(5))

	logs.Reset()
	logs.Log("state", "EMA/distance", vec(1))
	out := logs.Flush()
	assert.InDelta(t, 1.0, out["state/EMA/distance"], 1e-12)
}
