// Package dice provides the deterministic randomness stream and the luck-scaled
// randomization primitives consumed by the combat core.
package dice

import "fmt"

// Source is the integer randomness provider for dice rolls.
//
// Implementations are not required to be safe for concurrent use; a Source is
// owned by exactly one battle session.
type Source interface {
	// Intn returns a non-negative random int in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Stream is a Source that can also produce uniform floats. Every method call
// consumes exactly one draw from the underlying generator.
type Stream interface {
	Source
	// Float64 returns a uniform value in [0, 1).
	Float64() float64
}

// RollResult holds the full audit trail for a single dice expression evaluation.
//
// Postcondition: Total() == sum(Dice) + Modifier.
type RollResult struct {
	Expression string // original expression string, e.g. "1d3+1"
	Dice       []int  // individual die results before modifier
	Modifier   int    // flat modifier (may be negative)
}

// Total returns the sum of all die results plus the modifier.
func (r RollResult) Total() int {
	total := r.Modifier
	for _, d := range r.Dice {
		total += d
	}
	return total
}

// String returns a human-readable audit string in the format:
//
//	"1d3+1 → [2] +1 = 3"
//
// Precondition: r.Expression is non-empty.
func (r RollResult) String() string {
	if r.Expression == "" {
		panic("dice: RollResult.String() precondition violated: Expression must be non-empty")
	}
	return fmt.Sprintf("%s → %v %+d = %d", r.Expression, r.Dice, r.Modifier, r.Total())
}
