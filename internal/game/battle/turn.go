package battle

import (
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/cory-johannsen/epika/internal/game/battlelog"
	"github.com/cory-johannsen/epika/internal/game/combat"
	"github.com/cory-johannsen/epika/internal/game/condition"
	"github.com/cory-johannsen/epika/internal/game/dice"
)

// shuffleSpeedCeiling bounds the uniform speed drawn under ActionOrderShuffle.
const shuffleSpeedCeiling = 10000

// runTurn resolves one full turn: order, every actor's action with its
// reactions, then end-of-turn processing unless the battle is already decided.
//
// Postcondition: turn-start and turn-end markers bracket the turn's entries.
func (s *Session) runTurn() error {
	s.turn++
	s.pending = nil
	s.rec.TurnStart(s.turn)
	for _, idx := range s.turnOrder() {
		if s.decided() {
			break
		}
		actor := &s.roster[idx]
		if actor.IsDead() {
			continue
		}
		if condition.IsActionLocked(s.statuses[actor.ID]) {
			s.rec.Action(s.turn, battlelog.Declaration{Kind: battlelog.ActionSkip, Actor: actor.ID, Ref: "action_locked"})
			s.logger.Debug("action locked", zap.Int("turn", s.turn), zap.String("actor", actor.ID))
			continue
		}
		s.act(idx)
	}
	if !s.decided() {
		if err := s.endOfTurn(); err != nil {
			return err
		}
	}
	s.rec.TurnEnd(s.turn)
	return nil
}

type orderKey struct {
	idx         int
	firstStrike bool
	speed       float64
	tiebreak    float64
}

// turnOrder draws a speed and a tiebreaker for every living combatant in roster
// order and returns roster indices sorted by first strike, speed, tiebreaker and
// finally roster index.
//
// Draw order: per living combatant, speed (SpeedMultiplier or Uniform) then
// tiebreaker (Float64).
func (s *Session) turnOrder() []int {
	keys := make([]orderKey, 0, len(s.roster))
	for i := range s.roster {
		if s.roster[i].IsDead() {
			continue
		}
		c := s.effective(i)
		k := orderKey{idx: i, firstStrike: c.Effects.FirstStrike}
		if c.Effects.ActionOrderShuffle {
			k.speed = dice.Uniform(s.rng, 0, shuffleSpeedCeiling)
		} else {
			mult := c.Effects.ActionOrderMultiplier
			if mult == 0 {
				mult = 1
			}
			k.speed = float64(c.Attributes.Agility) * dice.SpeedMultiplier(s.rng, c.Attributes.Luck) * mult
		}
		k.tiebreak = s.rng.Float64()
		keys = append(keys, k)
	}
	sort.SliceStable(keys, func(a, b int) bool {
		ka, kb := keys[a], keys[b]
		if ka.firstStrike != kb.firstStrike {
			return ka.firstStrike
		}
		if ka.speed != kb.speed {
			return ka.speed > kb.speed
		}
		if ka.tiebreak != kb.tiebreak {
			return ka.tiebreak > kb.tiebreak
		}
		return ka.idx < kb.idx
	})
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = k.idx
	}
	return out
}

// effective returns a copy of the combatant at idx with its active status
// modifiers folded into the scores the resolvers read. The copy shares map
// fields with the roster entry and must not be written through.
func (s *Session) effective(idx int) combat.Combatant {
	c := s.roster[idx]
	set := s.statuses[c.ID]
	if set == nil || set.Len() == 0 {
		return c
	}
	scale := func(v int, stat string) int {
		return int(math.Round(float64(v) * condition.StatMultiplier(set, stat)))
	}
	c.Scores.PhysicalAttack = scale(c.Scores.PhysicalAttack, condition.StatPhysicalAttack)
	c.Scores.MagicalAttack = scale(c.Scores.MagicalAttack, condition.StatMagicalAttack)
	c.Scores.PhysicalDefense = scale(c.Scores.PhysicalDefense, condition.StatPhysicalDefense)
	c.Scores.MagicalDefense = scale(c.Scores.MagicalDefense, condition.StatMagicalDefense)
	c.Scores.Hit = scale(c.Scores.Hit, condition.StatHit)
	c.Scores.Evasion = scale(c.Scores.Evasion, condition.StatEvasion)
	c.Scores.CriticalRate = scale(c.Scores.CriticalRate, condition.StatCriticalRate)
	c.Attributes.Agility = scale(c.Attributes.Agility, condition.StatAgility)
	return c
}

// living returns the roster indices of living combatants on side, ordered by
// slot and then roster index.
func (s *Session) living(side combat.Side) []int {
	var out []int
	for i := range s.roster {
		if s.roster[i].Side == side && s.roster[i].IsAlive() {
			out = append(out, i)
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		return s.roster[out[a]].Slot < s.roster[out[b]].Slot
	})
	return out
}

// pickFront chooses one of candidates weighted toward the front: the i-th
// candidate (0-based, front first) has weight len−i.
//
// Draw order: one Intn draw when there is more than one candidate.
func (s *Session) pickFront(candidates []int) (int, bool) {
	switch len(candidates) {
	case 0:
		return 0, false
	case 1:
		return candidates[0], true
	}
	n := len(candidates)
	roll := s.rng.Intn(n * (n + 1) / 2)
	for i, idx := range candidates {
		w := n - i
		if roll < w {
			return idx, true
		}
		roll -= w
	}
	return candidates[n-1], true
}

// pickUniform chooses one element of n options.
//
// Draw order: one Intn draw when n > 1.
func (s *Session) pickUniform(n int) int {
	if n <= 1 {
		return 0
	}
	return s.rng.Intn(n)
}

func (s *Session) ids(idxs []int) []string {
	out := make([]string, len(idxs))
	for i, idx := range idxs {
		out[i] = s.roster[idx].ID
	}
	return out
}

// damage removes amount HP from the combatant at idx. A combatant that dies
// loses its statuses and its guard.
func (s *Session) damage(idx, amount int) int {
	c := &s.roster[idx]
	dealt := c.ApplyDamage(amount)
	if c.IsDead() {
		c.Guarding = false
		s.statuses[c.ID].Clear()
	}
	return dealt
}
