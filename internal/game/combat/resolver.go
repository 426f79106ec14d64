package combat

import (
	"math"

	"github.com/cory-johannsen/epika/internal/game/dice"
)

const (
	firstHitStep      = 0.1
	firstHitCap       = 3.4
	hitDecayBase      = 0.9
	magicDefenseShare = 0.5
)

// HitOutcome is the closed set of results for a single incoming hit.
type HitOutcome int

const (
	HitLanded HitOutcome = iota
	HitParried
	HitBlocked
	HitMissed
	HitNullified
)

// String returns a human-readable outcome label.
func (o HitOutcome) String() string {
	switch o {
	case HitLanded:
		return "landed"
	case HitParried:
		return "parried"
	case HitBlocked:
		return "blocked"
	case HitMissed:
		return "missed"
	case HitNullified:
		return "nullified"
	default:
		return "unknown"
	}
}

// HitResult is the outcome of one resolved hit together with the state deltas
// the caller must apply.
type HitResult struct {
	Outcome    HitOutcome
	DamageType DamageType
	// Damage is the final amount to subtract from the defender; >= 1 when landed.
	Damage   int
	Critical bool
	// BaseDamage is max(1, attackPower − defensePower) before multipliers.
	BaseDamage float64
	// EffectiveDefense is the degraded (and, on a physical critical, halved)
	// defense stat before the defender's variance roll.
	EffectiveDefense float64
	Mitigation       Mitigation
	// DegradeDelta is the degradation percent to add to the defender.
	DegradeDelta float64
}

// Landed reports whether the hit dealt damage.
func (r HitResult) Landed() bool { return r.Outcome == HitLanded }

// HitContext carries the per-hit inputs of a physical hit.
//
// HitIndex is 1-based within the action. LandedHits is the number of hits the
// same action has already landed. CriticalRate is the effective critical chance
// in percent. Accuracy and DamageMultiplier are reaction/follow-up scalings
// (zero is neutral). Protection is the ally-protection multiplier (zero is neutral).
type HitContext struct {
	Attacker         Combatant
	Defender         Combatant
	HitIndex         int
	LandedHits       int
	CriticalRate     float64
	Accuracy         float64
	DamageMultiplier float64
	Protection       float64
}

// FirstHitBonus returns the step multiplier applied to the first hit of an
// action: 1.0 + floor((attackPower − defense×3)/1000)×0.1 when the difference is
// positive, capped at 3.4.
func FirstHitBonus(attackPower, defense float64) float64 {
	diff := attackPower - defense*3
	if diff <= 0 {
		return 1
	}
	return math.Min(firstHitCap, 1+math.Floor(diff/1000)*firstHitStep)
}

// HitDecay returns the damage decay for the hitIndex-th hit of an action:
// 0.9^(hitIndex−2) beyond the second hit, 1 otherwise.
func HitDecay(hitIndex int) float64 {
	if hitIndex <= 2 {
		return 1
	}
	return math.Pow(hitDecayBase, float64(hitIndex-2))
}

func degraded(stat int, degradePercent float64) float64 {
	return float64(stat) * (1 - dice.ClampPercent(degradePercent)/100)
}

func finalDamage(total float64) int {
	return max(1, int(math.Round(total)))
}

// ResolvePhysicalHit resolves one physical hit through parry, shield block,
// hit/evasion, damage, barrier and guard, in that order.
//
// Draw order: parry (if enabled), shield (if enabled), hit check, attacker
// variance, defender variance, critical check.
func ResolvePhysicalHit(ctx HitContext, r dice.Stream) HitResult {
	atk, def := ctx.Attacker, ctx.Defender
	res := HitResult{DamageType: DamagePhysical}

	if def.Effects.Parry.Enabled && dice.PercentChance(r, ParryChance(atk, def)) {
		res.Outcome = HitParried
		return res
	}
	if def.Effects.Shield.Enabled && dice.PercentChance(r, ShieldChance(atk, def)) {
		res.Outcome = HitBlocked
		return res
	}
	if !dice.PercentChance(r, HitChance(atk, def, ctx.Accuracy)) {
		res.Outcome = HitMissed
		return res
	}

	atkRoll := dice.StatMultiplier(r, atk.Attributes.Luck)
	defRoll := dice.StatMultiplier(r, def.Attributes.Luck)
	res.Critical = dice.PercentChance(r, dice.ClampPercent(ctx.CriticalRate))

	attackPower := float64(atk.Scores.PhysicalAttack) * atkRoll
	effectiveDefense := degraded(def.Scores.PhysicalDefense, def.PhysicalDegrade)
	if res.Critical {
		effectiveDefense *= 0.5
	}
	defensePower := effectiveDefense * defRoll
	res.EffectiveDefense = effectiveDefense
	res.BaseDamage = math.Max(1, attackPower-defensePower)

	firstHit := 1.0
	if ctx.HitIndex == 1 {
		firstHit = FirstHitBonus(attackPower, defensePower)
	}
	decay := HitDecay(ctx.HitIndex)

	core := res.BaseDamage * firstHit * decay
	bonus := float64(atk.Scores.AdditionalDamage) * decay *
		orOne(atk.Effects.Damage.PenetrationMultiplier) *
		orOne(def.Effects.Damage.PenetrationResistance)
	cumulative := 1 + float64(ctx.LandedHits)*atk.Effects.Damage.CumulativeHitPercent/100

	total := (core*def.Resistances.DamageMultiplier(DamagePhysical) + bonus) *
		atk.Effects.Damage.RowMultiplier(def.Slot) *
		atk.Effects.Damage.DealtMultiplier(DamagePhysical) *
		def.Effects.Damage.TakenMultiplier(DamagePhysical) *
		cumulative *
		orOne(ctx.DamageMultiplier) *
		orOne(ctx.Protection)
	if res.Critical {
		total *= orOne(atk.Effects.Damage.CriticalDamageBonus) *
			orOne(def.Effects.Damage.CriticalTakenMultiplier) *
			orOne(def.Resistances.Critical)
	}

	res.Outcome = HitLanded
	res.Damage, res.Mitigation = Mitigate(def, DamagePhysical, finalDamage(total))
	res.DegradeDelta = atk.Effects.DegradePercentOnHit
	return res
}

// MagicContext carries the inputs of one spell hit against one defender.
// CriticalMultiplier scales the magic critical chance (zero is neutral).
type MagicContext struct {
	Attacker           Combatant
	Defender           Combatant
	Spell              Spell
	CriticalMultiplier float64
	DamageMultiplier   float64
}

// ResolveMagicalHit resolves one spell hit. The nullify check precedes all other
// magic math; magical defense counts for half; the magic critical multiplies
// damage without touching defense.
//
// Draw order: nullify, attacker variance, defender variance, magic critical.
func ResolveMagicalHit(ctx MagicContext, r dice.Stream) HitResult {
	atk, def := ctx.Attacker, ctx.Defender
	res := HitResult{DamageType: DamageMagical}

	if dice.PercentChance(r, def.Effects.MagicNullifyChancePercent) {
		res.Outcome = HitNullified
		return res
	}

	atkRoll := dice.StatMultiplier(r, atk.Attributes.Luck)
	defRoll := dice.StatMultiplier(r, def.Attributes.Luck)
	critChance := atk.Effects.MagicCriticalChancePercent * orOne(ctx.CriticalMultiplier)
	res.Critical = dice.PercentChance(r, dice.ClampPercent(critChance))

	attackPower := float64(atk.Scores.MagicalAttack) * atkRoll
	res.EffectiveDefense = degraded(def.Scores.MagicalDefense, def.MagicalDegrade)
	defensePower := res.EffectiveDefense * defRoll * magicDefenseShare
	res.BaseDamage = math.Max(1, attackPower-defensePower)

	total := res.BaseDamage *
		orOne(ctx.Spell.Power) *
		atk.Effects.Damage.SpellMultiplier(ctx.Spell.ID) *
		atk.Effects.Damage.DealtMultiplier(DamageMagical) *
		def.Effects.Damage.TakenMultiplier(DamageMagical) *
		def.Resistances.SpellMultiplier(ctx.Spell.ID) *
		def.Resistances.DamageMultiplier(DamageMagical) *
		orOne(ctx.DamageMultiplier)
	if res.Critical {
		total *= orOne(atk.Effects.MagicCriticalMultiplier)
	}

	res.Outcome = HitLanded
	res.Damage, res.Mitigation = Mitigate(def, DamageMagical, finalDamage(total))
	return res
}

// BreathContext carries the inputs of one breath hit against one defender.
type BreathContext struct {
	Attacker         Combatant
	Defender         Combatant
	DamageMultiplier float64
}

// ResolveBreathHit resolves one breath hit: breath damage scaled by the wide
// speed variance. Breath ignores defense, critical hits and additional damage.
//
// Draw order: attacker speed variance.
func ResolveBreathHit(ctx BreathContext, r dice.Stream) HitResult {
	atk, def := ctx.Attacker, ctx.Defender
	variance := dice.SpeedMultiplier(r, atk.Attributes.Luck)
	base := float64(atk.Scores.BreathDamage) * variance

	total := base *
		orOne(atk.Effects.Damage.BreathPower) *
		atk.Effects.Damage.DealtMultiplier(DamageBreath) *
		def.Effects.Damage.TakenMultiplier(DamageBreath) *
		def.Resistances.DamageMultiplier(DamageBreath) *
		orOne(ctx.DamageMultiplier)

	res := HitResult{Outcome: HitLanded, DamageType: DamageBreath, BaseDamage: base}
	res.Damage, res.Mitigation = Mitigate(def, DamageBreath, finalDamage(total))
	return res
}

// ResolveHealing returns the HP a healing spell restores:
// max(1, round(magicalHealing × statMultiplier(luck) × power × healingMultiplier)).
//
// Draw order: caster variance.
func ResolveHealing(caster Combatant, spell Spell, r dice.Stream) int {
	roll := dice.StatMultiplier(r, caster.Attributes.Luck)
	amount := float64(caster.Scores.MagicalHealing) * roll *
		orOne(spell.Power) *
		orOne(caster.Effects.Damage.HealingMultiplier)
	return finalDamage(amount)
}
