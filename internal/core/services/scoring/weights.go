package scoring

import (
	"math"

	"github.com/lcalzada-xor/geoprobe/internal/geo"
)

// Weights tunes the scoring formula.
type Weights struct {
	AlphaCoprobe    float64 // blend of co-probe corroboration, in [0,1]
	SigmaKm         float64 // proximity decay length
	CoprobeRadiusM  float64 // radius within which another name's hit corroborates
	RarityWeight    float64 // exponent on the rarity term
	ProximityWeight float64 // exponent on the proximity term
}

// DefaultWeights returns the stock tuning.
func DefaultWeights() Weights {
	return Weights{
		AlphaCoprobe:    0.7,
		SigmaKm:         10.0,
		CoprobeRadiusM:  300,
		RarityWeight:    1.0,
		ProximityWeight: 1.0,
	}
}

// RarityWeight favours names with few known access points.
// Counts below one are treated as one.
func RarityWeight(count int, exponent float64) float64 {
	n := count
	if n < 1 {
		n = 1
	}
	return math.Pow(1.0/math.Log(2+float64(n)), exponent)
}

// ProximityWeight decays exponentially with distance from ref. A nil ref yields 1.
func ProximityWeight(point geo.Location, ref *geo.Location, sigmaKm, exponent float64) float64 {
	if ref == nil {
		return 1.0
	}
	d := point.DistanceKm(*ref)
	return math.Pow(math.Exp(-d/math.Max(0.1, sigmaKm)), exponent)
}
