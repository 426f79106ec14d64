package combat

import (
	"math"

	"github.com/cory-johannsen/epika/internal/game/dice"
)

const (
	parryBaseChance  = 10.0
	shieldBaseChance = 30.0
	barrierFactor    = 1.0 / 3.0
	guardFactor      = 0.5
	minHitChance     = 5.0
	hitRatioScale    = 1.6
)

// ParryChance returns the defender's chance in percent to parry a physical hit:
// clamp(round((10 + defAdd×0.25 − atkAdd×0.5 + parryBonus) × procMultiplier), 0, 100).
func ParryChance(attacker, defender Combatant) float64 {
	raw := parryBaseChance +
		float64(defender.Scores.AdditionalDamage)*0.25 -
		float64(attacker.Scores.AdditionalDamage)*0.5 +
		defender.Effects.Parry.Bonus
	return dice.ClampPercent(math.Round(raw * orOne(defender.Effects.ProcMultiplier)))
}

// ShieldChance returns the defender's chance in percent to block a physical hit:
// clamp(round((30 − atkAdd/2 + shieldBonus) × procMultiplier), 0, 100).
func ShieldChance(attacker, defender Combatant) float64 {
	raw := shieldBaseChance -
		float64(attacker.Scores.AdditionalDamage)/2 +
		defender.Effects.Shield.Bonus
	return dice.ClampPercent(math.Round(raw * orOne(defender.Effects.ProcMultiplier)))
}

// HitChance returns the attacker's chance in percent to land a physical hit:
// clamp(round(100 × hit/(hit+evasion) × 1.6 × accuracy), 5, 100). With both
// scores at zero the hit always lands.
func HitChance(attacker, defender Combatant, accuracyMultiplier float64) float64 {
	hit := float64(max(0, attacker.Scores.Hit))
	evasion := float64(max(0, defender.Scores.Evasion))
	if hit+evasion == 0 {
		return 100
	}
	raw := 100 * hit / (hit + evasion) * hitRatioScale * orOne(accuracyMultiplier)
	return dice.Clamp(math.Round(raw), minHitChance, 100)
}

// Mitigation reports which end-of-pipeline defense changed a hit.
type Mitigation int

const (
	MitigationNone Mitigation = iota
	MitigationGuardBarrier
	MitigationBarrier
	MitigationGuard
)

// String returns a human-readable label.
func (m Mitigation) String() string {
	switch m {
	case MitigationNone:
		return "none"
	case MitigationGuardBarrier:
		return "guard_barrier"
	case MitigationBarrier:
		return "barrier"
	case MitigationGuard:
		return "guard"
	default:
		return "unknown"
	}
}

// Mitigate applies the barrier and guard steps to an already computed damage
// amount. Guard-exclusive barrier charges are consulted first (only while
// guarding), then general charges; a consumed charge reduces the hit to a third.
// Without a barrier, guarding halves the hit. The defender is not mutated: the
// consumed charge is reported through the returned Mitigation.
//
// Postcondition: result >= 1 whenever damage >= 1.
func Mitigate(defender Combatant, t DamageType, damage int) (int, Mitigation) {
	switch {
	case defender.Guarding && defender.GuardBarriers[t] > 0:
		return scaleDamage(damage, barrierFactor), MitigationGuardBarrier
	case defender.Barriers[t] > 0:
		return scaleDamage(damage, barrierFactor), MitigationBarrier
	case defender.Guarding:
		return scaleDamage(damage, guardFactor), MitigationGuard
	default:
		return damage, MitigationNone
	}
}

// ConsumeCharge applies the charge consumption reported by Mitigate.
//
// Precondition: m was returned by Mitigate for c and t.
func (c *Combatant) ConsumeCharge(t DamageType, m Mitigation) {
	switch m {
	case MitigationGuardBarrier:
		c.GuardBarriers[t] = max(0, c.GuardBarriers[t]-1)
	case MitigationBarrier:
		c.Barriers[t] = max(0, c.Barriers[t]-1)
	}
}

// GrantCharges adds n barrier charges of type t, guard-exclusive when guardOnly.
func (c *Combatant) GrantCharges(t DamageType, n int, guardOnly bool) {
	if n <= 0 {
		return
	}
	if guardOnly {
		if c.GuardBarriers == nil {
			c.GuardBarriers = make(map[DamageType]int)
		}
		c.GuardBarriers[t] += n
		return
	}
	if c.Barriers == nil {
		c.Barriers = make(map[DamageType]int)
	}
	c.Barriers[t] += n
}

func scaleDamage(damage int, factor float64) int {
	return max(1, int(math.Round(float64(damage)*factor)))
}

// ProtectionFor returns the strongest ally-protection multiplier that applies to
// defender: a living ally on the same side, standing in a lower slot, with an
// AllyProtection effect. Returns 1 when nobody protects the defender.
func ProtectionFor(defender Combatant, roster []Combatant) float64 {
	best := 1.0
	for i := range roster {
		p := &roster[i]
		if p.ID == defender.ID || p.Side != defender.Side || p.IsDead() || p.Effects.Protection == nil {
			continue
		}
		if p.Slot >= defender.Slot {
			continue
		}
		if m := orOne(p.Effects.Protection.Multiplier); m < best {
			best = m
		}
	}
	return best
}
