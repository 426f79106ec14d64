package combat

import "maps"

// orOne treats an unset (zero) scalar multiplier as neutral.
func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// lookup returns m[k], or 1.0 when k is absent.
func lookup[K comparable](m map[K]float64, k K) float64 {
	if v, ok := m[k]; ok {
		return v
	}
	return 1
}

// DamageModifiers are the compiled damage multipliers of a combatant. Zero
// scalars and absent map entries are neutral (1.0).
type DamageModifiers struct {
	Dealt                   map[DamageType]float64
	Taken                   map[DamageType]float64
	CriticalDamageBonus     float64
	CriticalTakenMultiplier float64
	PenetrationMultiplier   float64
	PenetrationResistance   float64
	// RowMultipliers scales physical damage dealt against a defender in the given slot.
	RowMultipliers map[int]float64
	// CumulativeHitPercent grows physical damage by this percent for every hit
	// already landed in the same action.
	CumulativeHitPercent float64
	SpellPower           map[string]float64
	SpellPowerAll        float64
	BreathPower          float64
	HealingMultiplier    float64
}

// DealtMultiplier returns the dealt multiplier for t.
func (d DamageModifiers) DealtMultiplier(t DamageType) float64 { return lookup(d.Dealt, t) }

// TakenMultiplier returns the taken multiplier for t.
func (d DamageModifiers) TakenMultiplier(t DamageType) float64 { return lookup(d.Taken, t) }

// RowMultiplier returns the multiplier against a defender standing in slot.
func (d DamageModifiers) RowMultiplier(slot int) float64 { return lookup(d.RowMultipliers, slot) }

// SpellMultiplier returns the combined spell-power multiplier for spellID.
func (d DamageModifiers) SpellMultiplier(spellID string) float64 {
	return lookup(d.SpellPower, spellID) * orOne(d.SpellPowerAll)
}

// Proc describes an enabled parry or shield-block defense.
type Proc struct {
	Enabled bool
	Bonus   float64
}

// AllyProtection reduces physical damage taken by allies standing behind the
// protector (a higher slot on the same side).
type AllyProtection struct {
	Multiplier float64
}

// SkillEffects is the compiled skill-effect set of a combatant. It is produced by
// an upstream compiler and is read-only during combat.
type SkillEffects struct {
	Damage DamageModifiers
	Parry  Proc
	Shield Proc
	// ProcMultiplier scales parry and shield chances; zero is neutral.
	ProcMultiplier             float64
	MagicNullifyChancePercent  float64
	MagicCriticalChancePercent float64
	MagicCriticalMultiplier    float64
	FirstStrike                bool
	ActionOrderMultiplier      float64
	ActionOrderShuffle         bool
	Reactions                  []Reaction
	FollowUps                  []FollowUp
	// StackableStatuses lists status IDs this combatant accumulates as stacks
	// instead of refreshing.
	StackableStatuses   []string
	RegenerationPercent float64
	SelfDamagePercent   float64
	// DegradePercentOnHit is added to the defender's degradation for every
	// landed hit of the matching damage type.
	DegradePercentOnHit float64
	Protection          *AllyProtection
}

// IsStackable reports whether statusID accumulates stacks on this combatant.
func (s SkillEffects) IsStackable(statusID string) bool {
	for _, id := range s.StackableStatuses {
		if id == statusID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the effect set.
func (s SkillEffects) Clone() SkillEffects {
	out := s
	out.Damage.Dealt = maps.Clone(s.Damage.Dealt)
	out.Damage.Taken = maps.Clone(s.Damage.Taken)
	out.Damage.RowMultipliers = maps.Clone(s.Damage.RowMultipliers)
	out.Damage.SpellPower = maps.Clone(s.Damage.SpellPower)
	out.Reactions = append([]Reaction(nil), s.Reactions...)
	out.FollowUps = append([]FollowUp(nil), s.FollowUps...)
	out.StackableStatuses = append([]string(nil), s.StackableStatuses...)
	if s.Protection != nil {
		p := *s.Protection
		out.Protection = &p
	}
	return out
}

// Resistances are innate multipliers on incoming effects. Absent entries are
// neutral; 0 means immune.
type Resistances struct {
	Damage map[DamageType]float64
	Status map[string]float64
	Spell  map[string]float64
	// Critical scales critical damage taken; zero is neutral.
	Critical float64
}

// DamageMultiplier returns the innate multiplier for damage type t.
func (r Resistances) DamageMultiplier(t DamageType) float64 { return lookup(r.Damage, t) }

// StatusMultiplier returns the innate multiplier for statusID.
func (r Resistances) StatusMultiplier(statusID string) float64 { return lookup(r.Status, statusID) }

// SpellMultiplier returns the innate multiplier for spellID.
func (r Resistances) SpellMultiplier(spellID string) float64 { return lookup(r.Spell, spellID) }

// Clone returns a deep copy.
func (r Resistances) Clone() Resistances {
	return Resistances{
		Damage:   maps.Clone(r.Damage),
		Status:   maps.Clone(r.Status),
		Spell:    maps.Clone(r.Spell),
		Critical: r.Critical,
	}
}
