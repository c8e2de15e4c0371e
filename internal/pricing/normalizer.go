// Package pricing maps raw regressor output onto a plausible price and formats
// it for display.
//
// Raw output may arrive in log scale or with a scaling artifact, so two rules are
// applied in order before the value is clamped into a band:
//
//  1. values below ExpBelow are exponentiated (undoing a log transform)
//  2. values still below ScaleBelow are multiplied by ScaleFactor
//
// The model layer and the service layer each apply their own Layer in sequence.
package pricing

import (
	"math"

	"github.com/rs/zerolog/log"
)

// Layer holds the thresholds of one normalization stage.
type Layer struct {
	Name        string
	ExpBelow    float64
	ScaleBelow  float64
	ScaleFactor float64
	Min         float64
	Max         float64
}

var (
	// ModelLayer is applied directly to regressor output.
	ModelLayer = Layer{
		Name:        "model",
		ExpBelow:    100,
		ScaleBelow:  1000,
		ScaleFactor: 1000,
		Min:         1000,
		Max:         500000,
	}

	// ServiceLayer is applied by the prediction pipeline to the model layer's output.
	ServiceLayer = Layer{
		Name:        "service",
		ExpBelow:    100,
		ScaleBelow:  10000,
		ScaleFactor: 100,
		Min:         10000,
		Max:         500000,
	}
)

// Normalize applies the layer's corrections and always returns a value in [Min, Max].
// NaN maps to Min.
func (l Layer) Normalize(raw float64) float64 {
	if math.IsNaN(raw) {
		log.Warn().Str("layer", l.Name).Msg("normalizing NaN price, using lower bound")
		return l.Min
	}

	price := raw
	if price < l.ExpBelow {
		price = math.Exp(price)
		log.Debug().Str("layer", l.Name).Float64("from", raw).Float64("to", price).Msg("applied exp transformation")
	}

	if price < l.ScaleBelow {
		scaled := price * l.ScaleFactor
		log.Debug().Str("layer", l.Name).Float64("from", price).Float64("to", scaled).Msg("applied scaling")
		price = scaled
	}

	price = math.Max(l.Min, math.Min(price, l.Max))

	if price != raw {
		log.Debug().Str("layer", l.Name).Float64("raw", raw).Float64("price", price).Msg("price corrected")
	}
	return price
}
