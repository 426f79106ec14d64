package combat

import "fmt"

// SpellKind is the closed set of spell behaviours.
type SpellKind int

const (
	SpellDamage SpellKind = iota
	SpellHeal
	SpellBarrier
	SpellBuff
	SpellStatus
	SpellResurrect
)

// String returns the kind's wire name.
func (k SpellKind) String() string {
	switch k {
	case SpellDamage:
		return "damage"
	case SpellHeal:
		return "heal"
	case SpellBarrier:
		return "barrier"
	case SpellBuff:
		return "buff"
	case SpellStatus:
		return "status"
	case SpellResurrect:
		return "resurrect"
	default:
		return "unknown"
	}
}

// ParseSpellKind maps a wire name to a SpellKind.
func ParseSpellKind(s string) (SpellKind, error) {
	for k := SpellDamage; k <= SpellResurrect; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown spell kind %q", s)
}

// Spell is a resolved spell definition.
//
// Power scales damage or healing (zero is neutral). For SpellBarrier, Charges
// barrier charges of DamageType are granted. For SpellBuff and SpellStatus,
// StatusID names the condition applied with ChancePercent (zero means always).
// For SpellResurrect, Power is the percent of max HP restored.
type Spell struct {
	ID            string
	Name          string
	Kind          SpellKind
	Power         float64
	AllTargets    bool
	DamageType    DamageType
	StatusID      string
	Duration      int
	Charges       int
	ChancePercent float64
}

// Offensive reports whether the spell targets opponents.
func (s Spell) Offensive() bool {
	return s.Kind == SpellDamage || s.Kind == SpellStatus
}

// Spellbook indexes spells by ID.
type Spellbook map[string]Spell

// Lookup returns the spell for id or an error naming the unresolved reference.
func (b Spellbook) Lookup(id string) (Spell, error) {
	s, ok := b[id]
	if !ok {
		return Spell{}, fmt.Errorf("unknown spell %q", id)
	}
	return s, nil
}
