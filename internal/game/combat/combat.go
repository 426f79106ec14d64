// Package combat implements the combatant model and the pure damage, defense and
// reaction resolvers of the dungeon combat core.
//
// Resolvers take combatants by value and return explicit deltas; they never
// write through a Combatant's map fields.
package combat

import (
	"fmt"
	"math"
)

// Side distinguishes party members from enemies.
type Side int

const (
	SidePlayer Side = iota
	SideEnemy
)

// String returns a human-readable side label.
func (s Side) String() string {
	switch s {
	case SidePlayer:
		return "player"
	case SideEnemy:
		return "enemy"
	default:
		return "unknown"
	}
}

// Opponent returns the other side.
func (s Side) Opponent() Side {
	if s == SidePlayer {
		return SideEnemy
	}
	return SidePlayer
}

// DamageType tags the formula family an attack resolves through.
type DamageType int

const (
	DamagePhysical DamageType = iota
	DamageMagical
	DamageBreath
)

// String returns a human-readable damage type label.
func (d DamageType) String() string {
	switch d {
	case DamagePhysical:
		return "physical"
	case DamageMagical:
		return "magical"
	case DamageBreath:
		return "breath"
	default:
		return "unknown"
	}
}

// ParseDamageType maps a wire name to a DamageType.
func ParseDamageType(s string) (DamageType, error) {
	for t := DamagePhysical; t <= DamageBreath; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown damage type %q", s)
}

// Attributes holds the six core attributes.
type Attributes struct {
	Strength int `yaml:"strength"`
	Wisdom   int `yaml:"wisdom"`
	Spirit   int `yaml:"spirit"`
	Vitality int `yaml:"vitality"`
	Agility  int `yaml:"agility"`
	Luck     int `yaml:"luck"`
}

// Scores holds the thirteen derived combat scores.
type Scores struct {
	MaxHP            int `yaml:"max_hp"`
	PhysicalAttack   int `yaml:"physical_attack"`
	MagicalAttack    int `yaml:"magical_attack"`
	PhysicalDefense  int `yaml:"physical_defense"`
	MagicalDefense   int `yaml:"magical_defense"`
	Hit              int `yaml:"hit"`
	Evasion          int `yaml:"evasion"`
	CriticalRate     int `yaml:"critical_rate"`
	AttackCount      int `yaml:"attack_count"`
	MagicalHealing   int `yaml:"magical_healing"`
	TrapRemoval      int `yaml:"trap_removal"`
	AdditionalDamage int `yaml:"additional_damage"`
	BreathDamage     int `yaml:"breath_damage"`
}

// ActionRates are the relative weights used to pick a combatant's action each
// turn. A zero total falls back to a plain attack.
type ActionRates struct {
	Attack int `yaml:"attack"`
	Magic  int `yaml:"magic"`
	Breath int `yaml:"breath"`
	Guard  int `yaml:"guard"`
	Flee   int `yaml:"flee"`
}

// Total returns the sum of all non-negative weights.
func (a ActionRates) Total() int {
	total := 0
	for _, w := range []int{a.Attack, a.Magic, a.Breath, a.Guard, a.Flee} {
		if w > 0 {
			total += w
		}
	}
	return total
}

// Combatant is one participant in a battle.
//
// Invariant: 0 <= CurrentHP <= Scores.MaxHP. A combatant at 0 HP is dead.
type Combatant struct {
	ID         string
	Name       string
	Side       Side
	Slot       int // formation position; lower slots stand in front
	Attributes Attributes
	Scores     Scores
	CurrentHP  int
	// Guarding is true while a guard action is in effect for the current turn.
	Guarding bool
	// Barriers holds general barrier charges per damage type.
	Barriers map[DamageType]int
	// GuardBarriers holds charges usable only while Guarding.
	GuardBarriers map[DamageType]int
	// PhysicalDegrade and MagicalDegrade are accumulated defense degradation in percent.
	PhysicalDegrade float64
	MagicalDegrade  float64
	// Martial marks combatants eligible for reactions that require martial arts.
	Martial     bool
	Rates       ActionRates
	Spells      []string
	Effects     SkillEffects
	Resistances Resistances
}

// IsDead reports whether the combatant is at 0 HP.
func (c *Combatant) IsDead() bool { return c.CurrentHP <= 0 }

// IsAlive is the negation of IsDead.
func (c *Combatant) IsAlive() bool { return c.CurrentHP > 0 }

// ApplyDamage reduces CurrentHP by amount, flooring at zero, and returns the HP
// actually removed.
//
// Precondition: amount >= 0.
// Postcondition: CurrentHP >= 0.
func (c *Combatant) ApplyDamage(amount int) int {
	if amount <= 0 {
		return 0
	}
	before := c.CurrentHP
	c.CurrentHP = max(0, c.CurrentHP-amount)
	return before - c.CurrentHP
}

// Heal raises CurrentHP by amount, capped at MaxHP, and returns the HP actually
// restored. Dead combatants are not healed; use Revive.
//
// Postcondition: CurrentHP <= Scores.MaxHP.
func (c *Combatant) Heal(amount int) int {
	if amount <= 0 || c.IsDead() {
		return 0
	}
	before := c.CurrentHP
	c.CurrentHP = min(c.Scores.MaxHP, c.CurrentHP+amount)
	return c.CurrentHP - before
}

// Revive brings a dead combatant back at percent of MaxHP (at least 1 HP).
// Living combatants are unaffected.
//
// Postcondition: returns true iff the combatant was dead and is now alive.
func (c *Combatant) Revive(percent float64) bool {
	if c.IsAlive() {
		return false
	}
	hp := int(math.Floor(float64(c.Scores.MaxHP) * percent / 100))
	c.CurrentHP = max(1, min(c.Scores.MaxHP, hp))
	return true
}

// HPRatio returns CurrentHP / MaxHP in [0, 1].
func (c *Combatant) HPRatio() float64 {
	if c.Scores.MaxHP <= 0 {
		return 0
	}
	return float64(c.CurrentHP) / float64(c.Scores.MaxHP)
}

// ClampHP forces CurrentHP back into [0, MaxHP].
func (c *Combatant) ClampHP() {
	c.CurrentHP = max(0, min(c.Scores.MaxHP, c.CurrentHP))
}

// KnowsSpell reports whether id is in the combatant's spell list.
func (c *Combatant) KnowsSpell(id string) bool {
	for _, s := range c.Spells {
		if s == id {
			return true
		}
	}
	return false
}

// Clone returns a deep copy whose maps and slices are not shared with c.
func (c *Combatant) Clone() Combatant {
	out := *c
	out.Barriers = cloneCharges(c.Barriers)
	out.GuardBarriers = cloneCharges(c.GuardBarriers)
	out.Spells = append([]string(nil), c.Spells...)
	out.Effects = c.Effects.Clone()
	out.Resistances = c.Resistances.Clone()
	return out
}

// Validate checks the structural invariants of a combatant supplied by an
// upstream collaborator.
//
// Postcondition: Returns nil iff ID is non-empty, MaxHP >= 1 and Slot >= 0.
func (c *Combatant) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("combatant %q: id must not be empty", c.Name)
	}
	if c.Scores.MaxHP < 1 {
		return fmt.Errorf("combatant %q: max_hp must be >= 1, got %d", c.ID, c.Scores.MaxHP)
	}
	if c.Slot < 0 {
		return fmt.Errorf("combatant %q: slot must be >= 0, got %d", c.ID, c.Slot)
	}
	return nil
}

func cloneCharges(m map[DamageType]int) map[DamageType]int {
	out := make(map[DamageType]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
