package battle

import (
	"fmt"

	"github.com/cory-johannsen/epika/internal/game/combat"
	"github.com/cory-johannsen/epika/internal/game/condition"
)

// Snapshot is the complete between-turns state of a session. Passing it as
// Options.Resume continues the battle with the same RNG stream, so the resumed
// session draws exactly what an uninterrupted one would have.
type Snapshot struct {
	Turn     int
	RNGState uint64
	Roster   []combat.Combatant
	Statuses map[string][]condition.Entry
}

// Snapshot captures the session between turns.
//
// Precondition: the session is not terminal; otherwise ErrBattleOver.
func (s *Session) Snapshot() (Snapshot, error) {
	if s.state.Terminal() {
		return Snapshot{}, ErrBattleOver
	}
	snap := Snapshot{
		Turn:     s.turn,
		RNGState: s.rng.State(),
		Roster:   s.Combatants(),
		Statuses: make(map[string][]condition.Entry, len(s.statuses)),
	}
	for id, set := range s.statuses {
		if set.Len() > 0 {
			snap.Statuses[id] = set.Entries()
		}
	}
	return snap, nil
}

func (snap *Snapshot) split() (party, enemies []combat.Combatant) {
	for _, c := range snap.Roster {
		if c.Side == combat.SidePlayer {
			party = append(party, c)
		} else {
			enemies = append(enemies, c)
		}
	}
	return party, enemies
}

func (s *Session) restoreStatuses(entries map[string][]condition.Entry) error {
	for id, es := range entries {
		if _, ok := s.statuses[id]; !ok {
			return fmt.Errorf("%w: snapshot statuses for unknown combatant %q", ErrInvalidRoster, id)
		}
		set, err := condition.RestoreActiveSet(es, s.conditions)
		if err != nil {
			return fmt.Errorf("%w: combatant %q: %v", ErrMalformedEffect, id, err)
		}
		for _, e := range es {
			def, err := s.status(e.ID)
			if err != nil {
				return fmt.Errorf("%w: combatant %q: %v", ErrMalformedEffect, id, err)
			}
			if def.LuaOnTick != "" && (s.hooks == nil || !s.hooks.HasHook(def.LuaOnTick)) {
				return fmt.Errorf("%w: combatant %q: status %q tick hook %q is not loaded",
					ErrMalformedEffect, id, def.ID, def.LuaOnTick)
			}
		}
		s.statuses[id] = set
	}
	return nil
}
