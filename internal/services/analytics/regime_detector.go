package analytics

import (
	"math"

	"TrapFlow/internal/domain/models"
)

const regimeMinSamples = 20

// RegimeDetector classifies recent price behavior into a coarse regime with
// an associated threshold multiplier.
type RegimeDetector struct{}

func NewRegimeDetector() *RegimeDetector { return &RegimeDetector{} }

// Classify inspects up to the last 50 prices (chronological order). Fewer
// than 20 samples yields the unknown regime with a neutral multiplier.
func (d *RegimeDetector) Classify(prices []float64) models.Regime {
	if len(prices) > 50 {
		prices = prices[len(prices)-50:]
	}
	if len(prices) < regimeMinSamples {
		return models.Regime{State: models.RegimeUnknown, Multiplier: 1.0}
	}

	diffs := make([]float64, len(prices)-1)
	var pos, neg int
	var absSum float64
	for i := 1; i < len(prices); i++ {
		d := prices[i] - prices[i-1]
		diffs[i-1] = d
		switch {
		case d > 0:
			pos++
		case d < 0:
			neg++
		}
		absSum += math.Abs(d)
	}

	vol := stddev(diffs)
	ds := math.Abs(float64(pos-neg)) / float64(len(diffs))
	avgAbsMove := absSum / float64(len(diffs))

	r := models.Regime{DirectionalStrength: ds, Volatility: vol}
	switch {
	case ds > 0.6 && avgAbsMove > 0.5*vol:
		r.State = models.RegimeTrending
		r.Multiplier = 1.5
	case vol > 0 && ds < 0.3:
		r.State = models.RegimeRanging
		r.Multiplier = 0.8
	default:
		r.State = models.RegimeMixed
		r.Multiplier = 1.0
	}
	return r
}
