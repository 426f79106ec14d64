package battlelog

// EntryKind tags one Battle Log entry.
type EntryKind int

const (
	EntryTurnStart EntryKind = iota
	EntryAction
	EntryTurnEnd
	EntryBattleEnd
)

var entryKindNames = [...]string{"turn_start", "action", "turn_end", "battle_end"}

func (k EntryKind) String() string { return enumName(entryKindNames[:], int(k)) }

// MarshalText encodes the kind by name.
func (k EntryKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// ActionKind is the closed set of Action Declaration kinds.
type ActionKind int

const (
	ActionPhysical ActionKind = iota
	ActionMagical
	ActionBreath
	ActionGuard
	ActionFlee
	ActionReaction
	ActionFollowUp
	ActionSpecial
	// ActionSkip records a combatant that could not act, e.g. under an action lock.
	ActionSkip
	// ActionUpkeep groups the end-of-turn effects on one combatant.
	ActionUpkeep
)

var actionKindNames = [...]string{
	"physical", "magical", "breath", "guard", "flee", "reaction", "follow_up", "special", "skip", "upkeep",
}

func (k ActionKind) String() string { return enumName(actionKindNames[:], int(k)) }

// MarshalText encodes the kind by name.
func (k ActionKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// EffectKind is the closed set of Effect Record kinds.
type EffectKind int

const (
	EffectDamage EffectKind = iota
	EffectHeal
	EffectEvade
	EffectParry
	EffectBlock
	EffectNullify
	EffectStatusApplied
	EffectStatusResisted
	EffectStatusTick
	EffectStatusExpired
	EffectResurrect
	EffectReaction
	EffectBarrier
	EffectGuard
	EffectFlee
	EffectRegenerate
	EffectSelfDamage
)

var effectKindNames = [...]string{
	"damage", "heal", "evade", "parry", "block", "nullify",
	"status_applied", "status_resisted", "status_tick", "status_expired",
	"resurrect", "reaction", "barrier", "guard", "flee", "regenerate", "self_damage",
}

func (k EffectKind) String() string { return enumName(effectKindNames[:], int(k)) }

// MarshalText encodes the kind by name.
func (k EffectKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Outcome is the terminal tag of a finished battle.
type Outcome int

const (
	OutcomeVictory Outcome = iota
	OutcomeDefeat
	OutcomeEscaped
	OutcomeTimeout
)

var outcomeNames = [...]string{"victory", "defeat", "escaped", "timeout"}

func (o Outcome) String() string { return enumName(outcomeNames[:], int(o)) }

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func enumName(names []string, i int) string {
	if i < 0 || i >= len(names) {
		return "unknown"
	}
	return names[i]
}
