package battle

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/cory-johannsen/epika/internal/game/battlelog"
	"github.com/cory-johannsen/epika/internal/game/combat"
)

// endOfTurn runs, in order: status ticks, pending follow-ups, guard reset, then
// regeneration and self-damage. Each later step is skipped once the battle is
// decided.
func (s *Session) endOfTurn() error {
	if err := s.tickStatuses(); err != nil {
		return err
	}
	if !s.decided() {
		s.resolveFollowUps()
	}
	s.pending = nil
	if s.decided() {
		return nil
	}
	for i := range s.roster {
		s.roster[i].Guarding = false
	}
	s.regenerate()
	return nil
}

// tickStatuses ticks every living combatant's statuses in roster order,
// adding scripted tick damage for statuses that name a hook.
//
// Postcondition: returns an error wrapping ErrMalformedEffect when a named hook
// cannot be called.
func (s *Session) tickStatuses() error {
	for i := range s.roster {
		c := &s.roster[i]
		set := s.statuses[c.ID]
		if c.IsDead() || set.Len() == 0 {
			continue
		}
		var a *battlelog.ActionEntry
		record := func(e battlelog.Effect) {
			if a == nil {
				a = s.rec.Action(s.turn, battlelog.Declaration{Kind: battlelog.ActionUpkeep, Actor: c.ID})
			}
			a.Add(e)
		}
		for _, r := range set.Tick(c.Scores.MaxHP) {
			dmg := r.Damage
			if r.Def.LuaOnTick != "" && c.IsAlive() {
				if s.hooks == nil {
					return fmt.Errorf("%w: status %q on %q: no tick hooks loaded", ErrMalformedEffect, r.ID, c.ID)
				}
				extra, err := s.hooks.CallTick(r.Def.LuaOnTick, c.CurrentHP, c.Scores.MaxHP, r.Stacks)
				if err != nil {
					return fmt.Errorf("%w: status %q on %q: %v", ErrMalformedEffect, r.ID, c.ID, err)
				}
				dmg += extra
			}
			if dmg > 0 && c.IsAlive() {
				dealt := s.damage(i, dmg)
				record(battlelog.Effect{Kind: battlelog.EffectStatusTick, Target: c.ID, Status: r.ID, Amount: dealt, RemainingHP: c.CurrentHP})
			}
			if r.Expired {
				record(battlelog.Effect{Kind: battlelog.EffectStatusExpired, Target: c.ID, Status: r.ID, RemainingHP: c.CurrentHP})
			}
		}
	}
	return nil
}

// resolveFollowUps runs the follow-ups granted this turn in grant order. Each
// is a physical attack on a freshly picked target; a dead actor forfeits it.
func (s *Session) resolveFollowUps() {
	for _, p := range s.pending {
		if s.decided() {
			return
		}
		if s.roster[p.actor].IsDead() {
			continue
		}
		target, ok := s.pickFront(s.living(s.roster[p.actor].Side.Opponent()))
		if !ok {
			continue
		}
		c := s.effective(p.actor)
		s.logger.Debug("follow-up", zap.String("actor", c.ID), zap.String("follow_up", p.followUp.ID))
		events, _ := s.physicalAttack(p.actor, target, strike{
			kind:       battlelog.ActionFollowUp,
			ref:        p.followUp.ID,
			hits:       max(1, c.Scores.AttackCount),
			critRate:   float64(c.Scores.CriticalRate),
			damageMult: p.followUp.DamageMultiplier,
		}, nil)
		s.react(events, 0)
	}
}

// regenerate applies per-turn regeneration and self-damage as percentages of
// max HP, at least 1 each. Self-damage never drops a combatant below 1 HP.
func (s *Session) regenerate() {
	for i := range s.roster {
		c := &s.roster[i]
		if c.IsDead() || (c.Effects.RegenerationPercent <= 0 && c.Effects.SelfDamagePercent <= 0) {
			continue
		}
		a := s.rec.Action(s.turn, battlelog.Declaration{Kind: battlelog.ActionUpkeep, Actor: c.ID})
		if c.Effects.RegenerationPercent > 0 {
			healed := c.Heal(percentOfMax(c, c.Effects.RegenerationPercent))
			a.Add(battlelog.Effect{Kind: battlelog.EffectRegenerate, Target: c.ID, Amount: healed, RemainingHP: c.CurrentHP})
		}
		if c.Effects.SelfDamagePercent > 0 {
			amount := min(percentOfMax(c, c.Effects.SelfDamagePercent), c.CurrentHP-1)
			dealt := c.ApplyDamage(amount)
			a.Add(battlelog.Effect{Kind: battlelog.EffectSelfDamage, Target: c.ID, Amount: dealt, RemainingHP: c.CurrentHP})
		}
	}
}

func percentOfMax(c *combat.Combatant, pct float64) int {
	return max(1, int(math.Floor(float64(c.Scores.MaxHP)*pct/100)))
}
