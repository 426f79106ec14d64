package battle

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/epika/internal/game/battlelog"
	"github.com/cory-johannsen/epika/internal/game/combat"
)

// healThreshold is the HP ratio below which an ally draws a known heal.
const healThreshold = 0.5

// chooseSpell picks the spell for a magic action: a heal when an ally is below
// half HP, else a resurrection when an ally is dead, else a uniform pick among
// the remaining castable spells. Offensive spells are castable only while an
// opponent lives.
//
// Draw order: one Intn draw when more than one spell is castable.
func (s *Session) chooseSpell(idx int) (combat.Spell, bool) {
	c := &s.roster[idx]
	haveOpponents := len(s.living(c.Side.Opponent())) > 0
	var heal, revive *combat.Spell
	var pool []combat.Spell
	for _, id := range c.Spells {
		sp := s.spells[id]
		switch sp.Kind {
		case combat.SpellHeal:
			if heal == nil {
				heal = &sp
			}
		case combat.SpellResurrect:
			if revive == nil {
				revive = &sp
			}
		case combat.SpellDamage, combat.SpellStatus:
			if haveOpponents {
				pool = append(pool, sp)
			}
		default:
			pool = append(pool, sp)
		}
	}
	if heal != nil && s.allyBelow(c.Side, healThreshold) {
		return *heal, true
	}
	if revive != nil && len(s.dead(c.Side)) > 0 {
		return *revive, true
	}
	if len(pool) == 0 {
		return combat.Spell{}, false
	}
	return pool[s.pickUniform(len(pool))], true
}

func (s *Session) allyBelow(side combat.Side, ratio float64) bool {
	for _, i := range s.living(side) {
		if s.roster[i].HPRatio() < ratio {
			return true
		}
	}
	return false
}

func (s *Session) dead(side combat.Side) []int {
	var out []int
	for i := range s.roster {
		if s.roster[i].Side == side && s.roster[i].IsDead() {
			out = append(out, i)
		}
	}
	return out
}

// castNormal resolves a spell chosen as a normal action, with its reactions
// and follow-up grant.
func (s *Session) castNormal(idx int, sp combat.Spell) {
	c := &s.roster[idx]
	switch sp.Kind {
	case combat.SpellDamage, combat.SpellStatus:
		targets := s.offensiveTargets(idx, sp)
		if len(targets) == 0 {
			return
		}
		st := strike{kind: battlelog.ActionMagical, ref: sp.ID}
		events := []combat.Event{{Trigger: combat.TriggerAllyMagicAttack, Actor: idx, Subject: idx, Target: targets[0]}}
		var out combat.ActionOutcome
		if sp.Kind == combat.SpellDamage {
			hitEvents, o := s.castDamage(idx, sp, targets, st, nil)
			events = append(events, hitEvents...)
			out = o
		} else {
			a := s.declare(st, idx, targets)
			for _, t := range targets {
				s.applyStatus(a, t, sp, false)
			}
		}
		s.react(events, 0)
		if sp.Kind == combat.SpellDamage {
			s.grantFollowUp(idx, out)
		}
	case combat.SpellHeal:
		targets := s.healTargets(c.Side, sp.AllTargets)
		a := s.declare(strike{kind: battlelog.ActionSpecial, ref: sp.ID}, idx, targets)
		for _, t := range targets {
			amount := combat.ResolveHealing(s.effective(idx), sp, s.rng)
			healed := s.roster[t].Heal(amount)
			a.Add(battlelog.Effect{Kind: battlelog.EffectHeal, Target: s.roster[t].ID, Amount: healed, RemainingHP: s.roster[t].CurrentHP})
		}
	case combat.SpellBarrier:
		targets := s.supportTargets(idx, sp.AllTargets)
		a := s.declare(strike{kind: battlelog.ActionSpecial, ref: sp.ID}, idx, targets)
		for _, t := range targets {
			s.roster[t].GrantCharges(sp.DamageType, sp.Charges, false)
			a.Add(battlelog.Effect{
				Kind:        battlelog.EffectBarrier,
				Target:      s.roster[t].ID,
				Amount:      sp.Charges,
				DamageType:  sp.DamageType.String(),
				RemainingHP: s.roster[t].CurrentHP,
			})
		}
	case combat.SpellBuff:
		targets := s.supportTargets(idx, sp.AllTargets)
		a := s.declare(strike{kind: battlelog.ActionSpecial, ref: sp.ID}, idx, targets)
		for _, t := range targets {
			s.applyStatus(a, t, sp, true)
		}
	case combat.SpellResurrect:
		targets := s.dead(c.Side)
		if !sp.AllTargets && len(targets) > 1 {
			targets = targets[:1]
		}
		a := s.declare(strike{kind: battlelog.ActionSpecial, ref: sp.ID}, idx, targets)
		for _, t := range targets {
			if s.roster[t].Revive(sp.Power) {
				a.Add(battlelog.Effect{Kind: battlelog.EffectResurrect, Target: s.roster[t].ID, Amount: s.roster[t].CurrentHP, RemainingHP: s.roster[t].CurrentHP})
			}
		}
	}
}

func (s *Session) offensiveTargets(idx int, sp combat.Spell) []int {
	opponents := s.living(s.roster[idx].Side.Opponent())
	if sp.AllTargets {
		return opponents
	}
	if t, ok := s.pickFront(opponents); ok {
		return []int{t}
	}
	return nil
}

// healTargets returns every living ally, or the single living ally with the
// lowest HP ratio (earliest in roster order on ties).
func (s *Session) healTargets(side combat.Side, all bool) []int {
	var out []int
	best := -1
	for i := range s.roster {
		c := &s.roster[i]
		if c.Side != side || c.IsDead() {
			continue
		}
		out = append(out, i)
		if best < 0 || c.HPRatio() < s.roster[best].HPRatio() {
			best = i
		}
	}
	if all || best < 0 {
		return out
	}
	return []int{best}
}

func (s *Session) supportTargets(idx int, all bool) []int {
	if !all {
		return []int{idx}
	}
	return s.living(s.roster[idx].Side)
}

// castDamage resolves a damage spell against each living target, then applies
// the spell's status rider to every target it landed on.
func (s *Session) castDamage(actor int, sp combat.Spell, targets []int, st strike, a *battlelog.ActionEntry) ([]combat.Event, combat.ActionOutcome) {
	if a == nil {
		a = s.declare(st, actor, targets)
	}
	var events []combat.Event
	var out combat.ActionOutcome
	for _, t := range targets {
		if s.roster[t].IsDead() || s.roster[actor].IsDead() {
			continue
		}
		res := combat.ResolveMagicalHit(combat.MagicContext{
			Attacker:           s.effective(actor),
			Defender:           s.effective(t),
			Spell:              sp,
			CriticalMultiplier: st.critMult,
			DamageMultiplier:   st.damageMult,
		}, s.rng)
		events = append(events, s.applyHit(a, actor, t, res, 0)...)
		if !res.Landed() {
			continue
		}
		out.Landed = true
		out.Critical = out.Critical || res.Critical
		if s.roster[t].IsDead() {
			out.Killed = true
		} else if sp.StatusID != "" {
			s.applyStatus(a, t, sp, false)
		}
	}
	return events, out
}

// applyStatus applies sp's status to target. Buffs always take; offensive
// statuses roll against the target's resistance.
//
// Draw order: one Probability draw for offensive statuses, none for buffs.
func (s *Session) applyStatus(a *battlelog.ActionEntry, target int, sp combat.Spell, buff bool) {
	t := &s.roster[target]
	def, err := s.status(sp.StatusID)
	if err != nil {
		s.logger.Error("status lookup failed", zap.String("spell", sp.ID), zap.Error(err))
		return
	}
	set := s.statuses[t.ID]
	stackable := t.Effects.IsStackable(def.ID)
	applied := true
	if buff {
		err = set.Apply(def, 1, sp.Duration, stackable)
	} else {
		applied, err = set.TryApply(def, sp.ChancePercent, t.Resistances.StatusMultiplier(def.ID), sp.Duration, stackable, s.rng)
	}
	if err != nil {
		s.logger.Error("applying status", zap.String("status", def.ID), zap.String("target", t.ID), zap.Error(err))
		return
	}
	kind := battlelog.EffectStatusApplied
	if !applied {
		kind = battlelog.EffectStatusResisted
	}
	a.Add(battlelog.Effect{Kind: kind, Target: t.ID, Status: def.ID, RemainingHP: t.CurrentHP})
}
