package condition

import (
	"fmt"
	"math"

	"github.com/cory-johannsen/epika/internal/game/dice"
)

// ActiveCondition tracks one applied condition on a combatant.
type ActiveCondition struct {
	Def               *ConditionDef
	Stacks            int
	DurationRemaining int // -1 = permanent
}

// ActiveSet tracks all conditions currently applied to one combatant, in the
// order they were first applied. Iteration order is part of the battle log's
// determinism.
// It is not safe for concurrent use; the caller must serialise access.
type ActiveSet struct {
	conditions map[string]*ActiveCondition
	order      []string
}

// NewActiveSet creates an empty ActiveSet.
func NewActiveSet() *ActiveSet {
	return &ActiveSet{conditions: make(map[string]*ActiveCondition)}
}

// Apply adds or updates a condition.
//
// A re-applied condition refreshes its duration to max(existing, duration).
// Stacks grow only when stackable, capped at MaxStacks when MaxStacks > 0;
// otherwise the stack count stays as it was. duration <= 0 selects the
// definition's default; permanent conditions always store -1.
//
// Precondition: def must not be nil; stacks >= 1.
// Postcondition: Has(def.ID) is true.
func (s *ActiveSet) Apply(def *ConditionDef, stacks, duration int, stackable bool) error {
	if def == nil {
		return fmt.Errorf("Apply: def must not be nil")
	}
	stacks = max(1, stacks)
	if duration <= 0 {
		duration = def.Duration
	}
	if def.DurationType == DurationPermanent {
		duration = -1
	}

	if existing, ok := s.conditions[def.ID]; ok {
		if stackable {
			existing.Stacks = capStacks(def, existing.Stacks+stacks)
		}
		if existing.DurationRemaining >= 0 && duration > existing.DurationRemaining {
			existing.DurationRemaining = duration
		}
		return nil
	}

	if !stackable {
		stacks = 1
	}
	s.conditions[def.ID] = &ActiveCondition{
		Def:               def,
		Stacks:            capStacks(def, stacks),
		DurationRemaining: duration,
	}
	s.order = append(s.order, def.ID)
	return nil
}

func capStacks(def *ConditionDef, n int) int {
	if def.MaxStacks > 0 && n > def.MaxStacks {
		return def.MaxStacks
	}
	return n
}

// TryApply rolls application of def against the target's innate resistance
// multiplier (1 = no resistance, 0 = immune) and applies it on success.
//
// The success probability is chance × resistance where chance is the
// definition's ChancePercent (0 meaning always) unless chancePercent overrides it.
//
// Draw order: exactly one Probability draw.
// Postcondition: returns true iff the condition was applied.
func (s *ActiveSet) TryApply(def *ConditionDef, chancePercent, resistance float64, duration int, stackable bool, r dice.Stream) (bool, error) {
	if def == nil {
		return false, fmt.Errorf("TryApply: def must not be nil")
	}
	if chancePercent <= 0 {
		chancePercent = def.ChancePercent
	}
	if chancePercent <= 0 {
		chancePercent = 100
	}
	p := dice.ClampPercent(chancePercent) / 100 * math.Max(0, resistance)
	if !dice.Probability(r, dice.Clamp(p, 0, 1)) {
		return false, nil
	}
	return true, s.Apply(def, 1, duration, stackable)
}

// Remove deletes the condition with the given ID from the set.
// If the condition is not present, Remove is a no-op.
//
// Postcondition: Has(id) is false.
func (s *ActiveSet) Remove(id string) {
	if _, ok := s.conditions[id]; !ok {
		return
	}
	delete(s.conditions, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// TickResult is the outcome of ticking one condition.
type TickResult struct {
	ID      string
	Stacks  int
	Damage  int
	Expired bool
	// Def is the ticked definition, for callers that run scripted tick hooks.
	Def *ConditionDef
}

// Tick advances every condition by one turn in application order.
//
// Tick damage is floor(maxHP × TickDamagePercent/100 × stacks), raised to 1 when
// it would be 0 and the condition mandates ResidualHarm. Turn-limited conditions
// lose one turn and are removed when they reach zero; permanent conditions
// never expire.
//
// Postcondition: For every expired result, Has(result.ID) is false.
func (s *ActiveSet) Tick(maxHP int) []TickResult {
	var out []TickResult
	var expired []string
	for _, id := range s.order {
		ac := s.conditions[id]
		res := TickResult{ID: id, Stacks: ac.Stacks, Def: ac.Def}
		if ac.Def.TickDamagePercent > 0 {
			res.Damage = int(math.Floor(float64(maxHP) * ac.Def.TickDamagePercent / 100 * float64(ac.Stacks)))
			if res.Damage == 0 && ac.Def.ResidualHarm {
				res.Damage = 1
			}
		}
		if ac.DurationRemaining >= 0 {
			ac.DurationRemaining--
			if ac.DurationRemaining <= 0 {
				res.Expired = true
				expired = append(expired, id)
			}
		}
		out = append(out, res)
	}
	for _, id := range expired {
		s.Remove(id)
	}
	return out
}

// Has reports whether the condition with id is currently active.
func (s *ActiveSet) Has(id string) bool {
	_, ok := s.conditions[id]
	return ok
}

// Stacks returns the current stack count for condition id, or 0 if not present.
func (s *ActiveSet) Stacks(id string) int {
	if ac, ok := s.conditions[id]; ok {
		return ac.Stacks
	}
	return 0
}

// Len returns the number of active conditions.
func (s *ActiveSet) Len() int { return len(s.order) }

// Clear removes every condition.
func (s *ActiveSet) Clear() {
	clear(s.conditions)
	s.order = s.order[:0]
}

// Entry is the serializable state of one active condition.
type Entry struct {
	ID                string `json:"id" yaml:"id"`
	Stacks            int    `json:"stacks" yaml:"stacks"`
	DurationRemaining int    `json:"duration_remaining" yaml:"duration_remaining"`
}

// Entries captures the set in application order.
func (s *ActiveSet) Entries() []Entry {
	all := s.All()
	out := make([]Entry, 0, len(all))
	for _, ac := range all {
		out = append(out, Entry{ID: ac.Def.ID, Stacks: ac.Stacks, DurationRemaining: ac.DurationRemaining})
	}
	return out
}

// RestoreActiveSet rebuilds a set captured by Entries, resolving definitions in reg.
//
// Postcondition: Entries() of the result equals entries; returns an error naming
// the first ID missing from reg.
func RestoreActiveSet(entries []Entry, reg *Registry) (*ActiveSet, error) {
	s := NewActiveSet()
	for _, e := range entries {
		if reg == nil {
			return nil, fmt.Errorf("restoring condition %q: no registry", e.ID)
		}
		def, ok := reg.Get(e.ID)
		if !ok {
			return nil, fmt.Errorf("restoring condition %q: unknown condition", e.ID)
		}
		s.conditions[e.ID] = &ActiveCondition{Def: def, Stacks: e.Stacks, DurationRemaining: e.DurationRemaining}
		s.order = append(s.order, e.ID)
	}
	return s, nil
}

// All returns the active conditions in application order.
// The slice itself is a new allocation (mutating the slice does not affect the set),
// but the pointed-to ActiveCondition values are shared; callers must not modify them.
func (s *ActiveSet) All() []*ActiveCondition {
	out := make([]*ActiveCondition, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.conditions[id])
	}
	return out
}
