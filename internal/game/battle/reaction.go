package battle

import (
	"github.com/cory-johannsen/epika/internal/game/battlelog"
	"github.com/cory-johannsen/epika/internal/game/combat"
)

type reactionKey struct {
	reactor int
	id      string
}

// react resolves the reactions raised by events produced at depth. Each
// reaction of a reactor fires at most once per batch of events; the reaction
// itself resolves at depth+1 and may raise further reactions only while
// combat.CanReact allows it.
//
// Draw order: per candidate in event order, one activation draw, then the
// reaction's own draws before the next candidate rolls.
func (s *Session) react(events []combat.Event, depth int) {
	if !combat.CanReact(depth, s.cfg.ReactionDepth) {
		return
	}
	fired := make(map[reactionKey]bool)
	for _, ev := range events {
		for _, cand := range combat.Candidates(ev, s.roster) {
			if s.decided() {
				return
			}
			key := reactionKey{reactor: cand.Reactor, id: cand.Reaction.ID}
			if fired[key] || s.roster[cand.Reactor].IsDead() {
				continue
			}
			act, ok := combat.Activate(cand.Reaction, s.effective(cand.Reactor), s.rng)
			if !ok {
				continue
			}
			fired[key] = true
			target, ok := s.reactionTarget(cand, ev)
			if !ok {
				continue
			}
			nested := s.resolveReaction(cand, ev, act, target, depth+1)
			s.react(nested, depth+1)
		}
	}
}

// reactionTarget resolves who a fired reaction strikes. A reaction aimed at the
// attacker falls back to a random opponent when the attacker is gone.
//
// Draw order: one Intn draw when a random opponent is picked among several.
func (s *Session) reactionTarget(cand combat.Candidate, ev combat.Event) (int, bool) {
	reactor := &s.roster[cand.Reactor]
	if cand.Reaction.Target == combat.TargetAttacker {
		t := &s.roster[ev.Target]
		if t.IsAlive() && t.Side != reactor.Side {
			return ev.Target, true
		}
	}
	opponents := s.living(reactor.Side.Opponent())
	if len(opponents) == 0 {
		return 0, false
	}
	return opponents[s.pickUniform(len(opponents))], true
}

func (s *Session) resolveReaction(cand combat.Candidate, ev combat.Event, act combat.Activation, target, depth int) []combat.Event {
	st := strike{
		kind:       battlelog.ActionReaction,
		ref:        cand.Reaction.ID,
		depth:      depth,
		hits:       act.AttackCount,
		critRate:   act.CriticalRate,
		critMult:   act.CriticalMultiplier,
		accuracy:   act.AccuracyMultiplier,
		damageMult: act.DamageMultiplier,
	}
	targets := []int{target}
	var sp combat.Spell
	if cand.Reaction.Mode == combat.DamageMagical {
		sp = s.spells[cand.Reaction.SpellID]
		if sp.AllTargets {
			targets = s.living(s.roster[cand.Reactor].Side.Opponent())
		}
	}
	a := s.declare(st, cand.Reactor, targets)
	a.Add(battlelog.Effect{
		Kind:        battlelog.EffectReaction,
		Target:      s.roster[ev.Subject].ID,
		RemainingHP: s.roster[ev.Subject].CurrentHP,
	})
	var events []combat.Event
	switch cand.Reaction.Mode {
	case combat.DamageMagical:
		events, _ = s.castDamage(cand.Reactor, sp, targets, st, a)
	case combat.DamageBreath:
		events, _ = s.breathAttack(cand.Reactor, targets, st, a)
	default:
		events, _ = s.physicalAttack(cand.Reactor, target, st, a)
	}
	return events
}
