package simnet

import "github.com/jabolina/bft-sim/pkg/simcore"

// DelayModel samples a non-negative network delay in seconds. The
// kernel's default is a normal distribution clamped at zero (spec
// §4.2); a Replica or Attacker never sees this type directly.
type DelayModel struct {
	Mean float64
	Std  float64
}

// Sample draws one delay using rng, clamped to >= 0.
func (d DelayModel) Sample(rng *simcore.RNG) float64 {
	if d.Std <= 0 {
		if d.Mean < 0 {
			return 0
		}
		return d.Mean
	}
	v := d.Mean + d.Std*rng.NormFloat64()
	if v < 0 {
		return 0
	}
	return v
}
