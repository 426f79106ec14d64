package battle

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/epika/internal/game/battlelog"
	"github.com/cory-johannsen/epika/internal/game/combat"
	"github.com/cory-johannsen/epika/internal/game/dice"
)

type actionChoice int

const (
	chooseAttack actionChoice = iota
	chooseMagic
	chooseBreath
	chooseGuard
	chooseFlee
)

// strike is the scaled attack profile shared by normal actions, reactions and
// follow-ups. Zero multipliers are neutral.
type strike struct {
	kind       battlelog.ActionKind
	ref        string
	depth      int
	hits       int
	critRate   float64
	critMult   float64
	accuracy   float64
	damageMult float64
}

func (s *Session) declare(st strike, actor int, targets []int) *battlelog.ActionEntry {
	s.logger.Debug("action",
		zap.Int("turn", s.turn),
		zap.String("kind", st.kind.String()),
		zap.String("actor", s.roster[actor].ID),
		zap.Strings("targets", s.ids(targets)),
		zap.String("ref", st.ref),
		zap.Int("depth", st.depth),
	)
	return s.rec.Action(s.turn, battlelog.Declaration{
		Kind:    st.kind,
		Actor:   s.roster[actor].ID,
		Targets: s.ids(targets),
		Ref:     st.ref,
		Depth:   st.depth,
	})
}

// chooseAction picks an action by the combatant's rate weights. Magic is only
// weighted when the combatant knows a spell and breath only when it has breath
// damage. With no positive weight the combatant attacks.
//
// Draw order: one Intn draw when the total weight is positive.
func (s *Session) chooseAction(c *combat.Combatant) actionChoice {
	weights := [...]int{
		chooseAttack: c.Rates.Attack,
		chooseMagic:  c.Rates.Magic,
		chooseBreath: c.Rates.Breath,
		chooseGuard:  c.Rates.Guard,
		chooseFlee:   c.Rates.Flee,
	}
	if len(c.Spells) == 0 {
		weights[chooseMagic] = 0
	}
	if c.Scores.BreathDamage <= 0 {
		weights[chooseBreath] = 0
	}
	total := 0
	for i, w := range weights {
		weights[i] = max(0, w)
		total += weights[i]
	}
	if total == 0 {
		return chooseAttack
	}
	roll := s.rng.Intn(total)
	for i, w := range weights {
		if roll < w {
			return actionChoice(i)
		}
		roll -= w
	}
	return chooseAttack
}

// act resolves the normal action of the combatant at idx, its reactions and
// its follow-up grant.
func (s *Session) act(idx int) {
	c := &s.roster[idx]
	switch s.chooseAction(c) {
	case chooseMagic:
		if sp, ok := s.chooseSpell(idx); ok {
			s.castNormal(idx, sp)
			return
		}
		s.attack(idx)
	case chooseBreath:
		s.breathe(idx)
	case chooseGuard:
		c.Guarding = true
		a := s.declare(strike{kind: battlelog.ActionGuard}, idx, nil)
		a.Add(battlelog.Effect{Kind: battlelog.EffectGuard, Target: c.ID, RemainingHP: c.CurrentHP})
	case chooseFlee:
		s.flee(idx)
	default:
		s.attack(idx)
	}
}

func (s *Session) attack(idx int) {
	target, ok := s.pickFront(s.living(s.roster[idx].Side.Opponent()))
	if !ok {
		return
	}
	c := s.effective(idx)
	events, out := s.physicalAttack(idx, target, strike{
		kind:     battlelog.ActionPhysical,
		hits:     max(1, c.Scores.AttackCount),
		critRate: float64(c.Scores.CriticalRate),
	}, nil)
	s.react(events, 0)
	s.grantFollowUp(idx, out)
}

func (s *Session) breathe(idx int) {
	targets := s.living(s.roster[idx].Side.Opponent())
	if len(targets) == 0 {
		return
	}
	events, out := s.breathAttack(idx, targets, strike{kind: battlelog.ActionBreath}, nil)
	s.react(events, 0)
	s.grantFollowUp(idx, out)
}

// flee rolls the configured flee chance. A success by either side ends the
// battle as Escaped.
//
// Draw order: one PercentChance draw.
func (s *Session) flee(idx int) {
	c := &s.roster[idx]
	ok := dice.PercentChance(s.rng, s.cfg.FleeChancePercent)
	a := s.declare(strike{kind: battlelog.ActionFlee}, idx, nil)
	a.Add(battlelog.Effect{Kind: battlelog.EffectFlee, Target: c.ID, Failed: !ok, RemainingHP: c.CurrentHP})
	if ok {
		s.escaped = true
	}
}

// physicalAttack resolves st.hits hits against target, stopping when either
// side of the exchange dies. a, when non-nil, is the entry to record into.
//
// Postcondition: returns the trigger events in resolution order and the
// outcome used for follow-up grants.
func (s *Session) physicalAttack(actor, target int, st strike, a *battlelog.ActionEntry) ([]combat.Event, combat.ActionOutcome) {
	if a == nil {
		a = s.declare(st, actor, []int{target})
	}
	var events []combat.Event
	var out combat.ActionOutcome
	landed := 0
	for hit := 1; hit <= max(1, st.hits); hit++ {
		if s.roster[actor].IsDead() || s.roster[target].IsDead() {
			break
		}
		res := combat.ResolvePhysicalHit(combat.HitContext{
			Attacker:         s.effective(actor),
			Defender:         s.effective(target),
			HitIndex:         hit,
			LandedHits:       landed,
			CriticalRate:     st.critRate,
			Accuracy:         st.accuracy,
			DamageMultiplier: st.damageMult,
			Protection:       combat.ProtectionFor(s.roster[target], s.roster),
		}, s.rng)
		events = append(events, s.applyHit(a, actor, target, res, hit)...)
		if res.Landed() {
			landed++
			out.Critical = out.Critical || res.Critical
		}
	}
	out.Landed = landed > 0
	out.Killed = out.Landed && s.roster[target].IsDead()
	return events, out
}

func (s *Session) breathAttack(actor int, targets []int, st strike, a *battlelog.ActionEntry) ([]combat.Event, combat.ActionOutcome) {
	if a == nil {
		a = s.declare(st, actor, targets)
	}
	var events []combat.Event
	var out combat.ActionOutcome
	for _, t := range targets {
		if s.roster[t].IsDead() {
			continue
		}
		res := combat.ResolveBreathHit(combat.BreathContext{
			Attacker:         s.effective(actor),
			Defender:         s.effective(t),
			DamageMultiplier: st.damageMult,
		}, s.rng)
		events = append(events, s.applyHit(a, actor, t, res, 0)...)
		out.Landed = true
		out.Killed = out.Killed || s.roster[t].IsDead()
	}
	return events, out
}

// applyHit records res against target and applies its deltas: HP, barrier
// charge and degradation.
//
// Postcondition: returns the reaction events the hit raised.
func (s *Session) applyHit(a *battlelog.ActionEntry, actor, target int, res combat.HitResult, hit int) []combat.Event {
	t := &s.roster[target]
	eff := battlelog.Effect{Target: t.ID, Hit: hit, DamageType: res.DamageType.String()}
	var events []combat.Event
	switch res.Outcome {
	case combat.HitLanded:
		t.ConsumeCharge(res.DamageType, res.Mitigation)
		if res.DegradeDelta > 0 && res.DamageType == combat.DamagePhysical {
			t.PhysicalDegrade = dice.ClampPercent(t.PhysicalDegrade + res.DegradeDelta)
		}
		eff.Kind = battlelog.EffectDamage
		eff.Critical = res.Critical
		if res.Mitigation != combat.MitigationNone {
			eff.Mitigation = res.Mitigation.String()
		}
		eff.Amount = s.damage(target, res.Damage)
		events = append(events, combat.Event{Trigger: damageTrigger(res.DamageType), Actor: actor, Subject: target, Target: actor})
		if res.Critical {
			events = append(events, combat.Event{Trigger: combat.TriggerAllyCritical, Actor: actor, Subject: actor, Target: target})
		}
	case combat.HitParried:
		eff.Kind = battlelog.EffectParry
		events = append(events, combat.Event{Trigger: combat.TriggerEvasion, Actor: actor, Subject: target, Target: actor})
	case combat.HitBlocked:
		eff.Kind = battlelog.EffectBlock
		events = append(events, combat.Event{Trigger: combat.TriggerEvasion, Actor: actor, Subject: target, Target: actor})
	case combat.HitMissed:
		eff.Kind = battlelog.EffectEvade
		events = append(events, combat.Event{Trigger: combat.TriggerEvasion, Actor: actor, Subject: target, Target: actor})
	case combat.HitNullified:
		eff.Kind = battlelog.EffectNullify
	}
	eff.RemainingHP = t.CurrentHP
	a.Add(eff)
	return events
}

func damageTrigger(t combat.DamageType) combat.Trigger {
	switch t {
	case combat.DamagePhysical:
		return combat.TriggerPhysicalDamage
	case combat.DamageMagical:
		return combat.TriggerMagicalDamage
	default:
		return combat.TriggerAnyDamage
	}
}

// grantFollowUp queues at most one follow-up for the actor of a finished
// normal action. Dead actors and actors without follow-ups draw nothing.
func (s *Session) grantFollowUp(idx int, out combat.ActionOutcome) {
	c := &s.roster[idx]
	if c.IsDead() || len(c.Effects.FollowUps) == 0 {
		return
	}
	if f, ok := combat.GrantFollowUp(c.Effects.FollowUps, out, s.rng); ok {
		s.pending = append(s.pending, pendingFollowUp{actor: idx, followUp: f})
	}
}
