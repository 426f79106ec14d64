package dice

import "math"

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// ClampInt bounds v to [lo, hi].
func ClampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampPercent bounds a percentage to [0, 100].
func ClampPercent(p float64) float64 { return Clamp(p, 0, 100) }

// rollPercentFrom draws a percent uniformly in [lower, 100] and returns it as a
// fraction. Exactly one draw is consumed even when lower == 100.
func rollPercentFrom(r Stream, lower int) float64 {
	lower = ClampInt(lower, 0, 100)
	percent := lower + r.Intn(100-lower+1)
	return float64(percent) / 100
}

// StatMultiplier is the luck-scaled variance roll applied to attack and defense
// stats. The lower bound is clamp(40+luck, 0, 100); at luck >= 60 the result is
// exactly 1.0.
//
// Postcondition: 0 <= result <= 1; exactly one draw consumed.
func StatMultiplier(r Stream, luck int) float64 {
	return rollPercentFrom(r, 40+luck)
}

// SpeedMultiplier is the wider variance roll used for turn order and breath
// damage. The lower bound is clamp((luck-10)*2, 0, 100).
//
// Postcondition: 0 <= result <= 1; exactly one draw consumed.
func SpeedMultiplier(r Stream, luck int) float64 {
	return rollPercentFrom(r, (luck-10)*2)
}

// PercentChance reports success for a p-percent chance. The draw is an integer
// in [1, 100] compared against p; p <= 0 never succeeds and p >= 100 always
// does.
//
// Postcondition: exactly one draw consumed regardless of p.
func PercentChance(r Stream, p float64) bool {
	draw := r.Intn(100) + 1
	switch {
	case p <= 0:
		return false
	case p >= 100:
		return true
	default:
		return float64(draw) <= p
	}
}

// Probability reports success for a probability p over [0, 1).
//
// Postcondition: exactly one draw consumed regardless of p.
func Probability(r Stream, p float64) bool {
	draw := r.Float64()
	switch {
	case p <= 0:
		return false
	case p >= 1:
		return true
	default:
		return draw < p
	}
}

// Uniform returns a value in [lo, hi) from one draw.
func Uniform(r Stream, lo, hi float64) float64 {
	return lo + r.Float64()*(hi-lo)
}
