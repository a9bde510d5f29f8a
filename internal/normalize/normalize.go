// Package normalize maps raw entity magnitudes onto a bounded visual size.
//
// Normalization is min-max over the current list: t = (raw - min) / (max - min),
// with t = 0 when every value is equal (or the list has one entity), then mapped
// linearly into [Range.Min, Range.Max]. The result is a diameter in arena units.
package normalize

import (
	"errors"
	"fmt"
	"math"

	"github.com/piratebg/crypto-bubbles/internal/model"
)

// ErrInvalidRange is returned when a size range cannot produce positive sizes.
var ErrInvalidRange = errors.New("normalize: size range must satisfy 0 < min <= max")

// Range bounds the mapped diameter.
type Range struct {
	Min float64
	Max float64
}

// DefaultRange matches the bubble sizes the app ships with.
var DefaultRange = Range{Min: 80, Max: 180}

// Validate checks that r yields finite positive sizes.
func (r Range) Validate() error {
	if !(r.Min > 0) || r.Max < r.Min || math.IsInf(r.Max, 0) {
		return fmt.Errorf("%w: got [%v, %v]", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// Size maps a normalized t in [0, 1] into the range.
func (r Range) Size(t float64) float64 {
	return r.Min + t*(r.Max-r.Min)
}

// Sizes returns the diameter for each entity, in input order.
func Sizes(entities []model.Entity, metric model.Metric, r Range) []float64 {
	if len(entities) == 0 {
		return nil
	}

	raw := make([]float64, len(entities))
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for i, e := range entities {
		v := metric.Raw(e)
		raw[i] = v
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}

	span := maxVal - minVal
	sizes := make([]float64, len(entities))
	for i, v := range raw {
		t := 0.0
		if span > 0 {
			t = (v - minVal) / span
		}
		sizes[i] = r.Size(t)
	}
	return sizes
}

// Radii is Sizes halved.
func Radii(entities []model.Entity, metric model.Metric, r Range) []float64 {
	sizes := Sizes(entities, metric, r)
	for i := range sizes {
		sizes[i] /= 2
	}
	return sizes
}
