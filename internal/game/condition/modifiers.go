package condition

import "math"

// IsActionLocked reports whether any active condition prevents its bearer from
// acting this turn.
func IsActionLocked(s *ActiveSet) bool {
	for _, id := range s.order {
		if s.conditions[id].Def.ActionLock {
			return true
		}
	}
	return false
}

// StatMultiplier returns the combined multiplier for stat from all active
// conditions. Each condition contributes its modifier once per stack.
//
// Postcondition: Returns >= 0; 1 when no condition modifies stat.
func StatMultiplier(s *ActiveSet, stat string) float64 {
	total := 1.0
	for _, id := range s.order {
		ac := s.conditions[id]
		if m, ok := ac.Def.Modifiers[stat]; ok {
			total *= math.Pow(m, float64(ac.Stacks))
		}
	}
	return total
}
