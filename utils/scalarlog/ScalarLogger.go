// Package scalarlog aggregates per-step batched scalars into named
// monitoring series and flushes them through a structured logger
package scalarlog

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// AggMode determines how a series aggregates values across steps
type AggMode string

const (
	// Mean averages all values logged since the last flush
	Mean AggMode = "mean"

	// EMA keeps an exponential moving average across steps
	EMA AggMode = "ema"
)

type series struct {
	mode  AggMode
	sum   float64
	count int
	ema   float64
	warm  bool
}

// ScalarLogger accumulates named scalar series grouped by category.
// Each Log call reduces a batched vector to its mean over environments
// before feeding the series. Flushing reports every series through a
// zap logger and returns the values keyed "category/name".
type ScalarLogger struct {
	categories map[string]map[string]*series
	emaCoeff   float64
	log        *zap.SugaredLogger
}

// New creates a ScalarLogger. A nil logger disables the zap sink; the
// aggregated values are still available via Flush.
func New(log *zap.SugaredLogger) *ScalarLogger {
	return &ScalarLogger{
		categories: make(map[string]map[string]*series),
		emaCoeff:   0.9,
		log:        log,
	}
}

// SetEMACoeff sets the coefficient applied to the previous value of
// every EMA series
func (s *ScalarLogger) SetEMACoeff(coeff float64) {
	s.emaCoeff = coeff
}

// AddLog registers a series under a category with an aggregation mode.
// Registering the same series twice is a no-op.
func (s *ScalarLogger) AddLog(category, name string, mode AggMode) {
	if _, ok := s.categories[category]; !ok {
		s.categories[category] = make(map[string]*series)
	}
	if _, ok := s.categories[category][name]; !ok {
		s.categories[category][name] = &series{mode: mode}
	}
}

// Log reduces the batched values to their mean and feeds the series.
// Logging to an unregistered series panics: series are declared once
// at setup, never lazily.
func (s *ScalarLogger) Log(category, name string, values mat.Vector) {
	cat, ok := s.categories[category]
	if !ok {
		panic(fmt.Sprintf("scalarlog: unknown category %q", category))
	}
	ser, ok := cat[name]
	if !ok {
		panic(fmt.Sprintf("scalarlog: unknown series %q/%q", category, name))
	}

	data := make([]float64, values.Len())
	for i := range data {
		data[i] = values.AtVec(i)
	}
	v := stat.Mean(data, nil)
	switch ser.mode {
	case EMA:
		if !ser.warm {
			ser.ema = v
			ser.warm = true
		} else {
			ser.ema = s.emaCoeff*ser.ema + (1-s.emaCoeff)*v
		}
	default:
		ser.sum += v
		ser.count++
	}
}

// Flush returns the aggregated value of every series keyed by
// "category/name", emits them through the zap sink, and clears the
// mean accumulators. EMA series keep their state across flushes.
func (s *ScalarLogger) Flush() map[string]float64 {
	out := make(map[string]float64)
	for category, cat := range s.categories {
		for name, ser := range cat {
			key := category + "/" + name
			switch ser.mode {
			case EMA:
				out[key] = ser.ema
			default:
				if ser.count > 0 {
					out[key] = ser.sum / float64(ser.count)
				}
				ser.sum = 0
				ser.count = 0
			}
		}
	}

	if s.log != nil {
		keys := make([]string, 0, len(out))
		for k := range out {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]interface{}, 0, 2*len(keys))
		for _, k := range keys {
			fields = append(fields, k, out[k])
		}
		s.log.Infow("scalars", fields...)
	}
	return out
}

// Reset clears all accumulator state, including EMA series
func (s *ScalarLogger) Reset() {
	for _, cat := range s.categories {
		for _, ser := range cat {
			*ser = series{mode: ser.mode}
		}
	}
}
