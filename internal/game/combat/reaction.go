package combat

import (
	"fmt"
	"math"

	"github.com/cory-johannsen/epika/internal/game/dice"
)

// DefaultReactionDepth is the reaction chain limit used when none is configured.
// A reaction may fire off a normal action, but never off another reaction.
const DefaultReactionDepth = 1

// Trigger is the closed set of events a Reaction listens for.
type Trigger int

const (
	// TriggerPhysicalDamage fires when the reactor takes physical damage.
	TriggerPhysicalDamage Trigger = iota
	// TriggerMagicalDamage fires when the reactor takes magical damage.
	TriggerMagicalDamage
	// TriggerAnyDamage fires on any damage taken, breath included.
	TriggerAnyDamage
	// TriggerEvasion fires when the reactor evades, parries or blocks a hit.
	TriggerEvasion
	// TriggerAllyMagicAttack fires when an ally of the reactor casts an offensive spell.
	TriggerAllyMagicAttack
	// TriggerAllyCritical fires when an ally of the reactor lands a critical hit.
	TriggerAllyCritical
)

var triggerNames = map[Trigger]string{
	TriggerPhysicalDamage:  "physical_damage",
	TriggerMagicalDamage:   "magical_damage",
	TriggerAnyDamage:       "any_damage",
	TriggerEvasion:         "evasion",
	TriggerAllyMagicAttack: "ally_magic_attack",
	TriggerAllyCritical:    "ally_critical",
}

// String returns the trigger's wire name.
func (t Trigger) String() string {
	if s, ok := triggerNames[t]; ok {
		return s
	}
	return "unknown"
}

// ParseTrigger maps a wire name to a Trigger.
func ParseTrigger(s string) (Trigger, error) {
	for t, name := range triggerNames {
		if name == s {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown reaction trigger %q", s)
}

// allyTrigger reports whether t is raised by an ally rather than the reactor.
func (t Trigger) allyTrigger() bool {
	return t == TriggerAllyMagicAttack || t == TriggerAllyCritical
}

// matches reports whether a reaction listening on t fires for an event of kind ev.
func (t Trigger) matches(ev Trigger) bool {
	if t == ev {
		return true
	}
	return t == TriggerAnyDamage && (ev == TriggerPhysicalDamage || ev == TriggerMagicalDamage)
}

// TargetRule selects who a reaction strikes.
type TargetRule int

const (
	// TargetAttacker strikes the combatant named by Event.Target.
	TargetAttacker TargetRule = iota
	// TargetRandomEnemy strikes a random living opponent of the reactor.
	TargetRandomEnemy
)

// ParseTargetRule maps a wire name to a TargetRule.
func ParseTargetRule(s string) (TargetRule, error) {
	switch s {
	case "attacker", "":
		return TargetAttacker, nil
	case "random_enemy":
		return TargetRandomEnemy, nil
	default:
		return 0, fmt.Errorf("unknown reaction target %q", s)
	}
}

// Reaction is a triggered counter declared on a combatant's compiled skill-effect
// set. It is read-only during combat.
//
// Mode selects the formula family of the counter. A magical reaction casts
// SpellID. Zero multipliers are neutral.
type Reaction struct {
	ID                     string
	Name                   string
	Trigger                Trigger
	Target                 TargetRule
	Mode                   DamageType
	SpellID                string
	ChancePercent          float64
	AttackCountMultiplier  float64
	CriticalRateMultiplier float64
	AccuracyMultiplier     float64
	DamageMultiplier       float64
	RequiresMartial        bool
	RequiresAllyBehind     bool
}

// Event is one trigger occurrence, expressed as roster indices.
//
// Actor performed the action. Subject is the combatant the event happened to:
// the damaged or evading defender for self triggers, the casting or critting
// ally for ally triggers. Target is who a TargetAttacker reaction strikes.
type Event struct {
	Trigger Trigger
	Actor   int
	Subject int
	Target  int
}

// Candidate is one reaction eligible to roll for an event.
type Candidate struct {
	Reactor  int
	Reaction Reaction
}

// Candidates returns, in roster order and then declaration order, every reaction
// eligible to roll for ev.
//
// A combatant's own action never triggers a reaction against itself, and an ally
// trigger never lets the triggering ally react to itself.
//
// Precondition: ev.Actor and ev.Subject index into roster.
func Candidates(ev Event, roster []Combatant) []Candidate {
	var out []Candidate
	for i := range roster {
		c := &roster[i]
		if c.IsDead() || i == ev.Actor {
			continue
		}
		if ev.Trigger.allyTrigger() {
			if i == ev.Subject || c.Side != roster[ev.Subject].Side {
				continue
			}
		} else if i != ev.Subject || c.Side == roster[ev.Actor].Side {
			continue
		}
		for _, r := range c.Effects.Reactions {
			if !r.Trigger.matches(ev.Trigger) {
				continue
			}
			if r.RequiresMartial && !c.Martial {
				continue
			}
			if r.RequiresAllyBehind && !hasAllyBehind(i, roster) {
				continue
			}
			out = append(out, Candidate{Reactor: i, Reaction: r})
		}
	}
	return out
}

func hasAllyBehind(idx int, roster []Combatant) bool {
	self := &roster[idx]
	for i := range roster {
		o := &roster[i]
		if i != idx && o.Side == self.Side && o.IsAlive() && o.Slot > self.Slot {
			return true
		}
	}
	return false
}

// Activation is the scaled attack profile of a reaction that fired.
// CriticalMultiplier scales the reactor's magic critical chance when the
// reaction casts.
type Activation struct {
	AttackCount        int
	CriticalRate       float64
	CriticalMultiplier float64
	AccuracyMultiplier float64
	DamageMultiplier   float64
}

// Activate rolls the reaction's chance for reactor and, on success, returns the
// scaled attack profile.
//
// Draw order: one PercentChance draw.
// Postcondition: on success AttackCount >= 1 and CriticalRate is in [0, 100].
func Activate(r Reaction, reactor Combatant, s dice.Stream) (Activation, bool) {
	if !dice.PercentChance(s, r.ChancePercent) {
		return Activation{}, false
	}
	base := float64(max(1, reactor.Scores.AttackCount))
	return Activation{
		AttackCount:        max(1, int(math.Round(base*orOne(r.AttackCountMultiplier)))),
		CriticalRate:       dice.ClampPercent(math.Round(float64(reactor.Scores.CriticalRate) * orOne(r.CriticalRateMultiplier))),
		CriticalMultiplier: orOne(r.CriticalRateMultiplier),
		AccuracyMultiplier: orOne(r.AccuracyMultiplier),
		DamageMultiplier:   orOne(r.DamageMultiplier),
	}, true
}

// CanReact reports whether an action resolving at depth may still trigger
// reactions. Normal actions run at depth 0; a reaction runs one deeper than the
// action that triggered it.
func CanReact(depth, maxDepth int) bool {
	return depth < maxDepth
}

// FollowUpCondition is the closed set of outcomes that can grant a follow-up.
type FollowUpCondition int

const (
	FollowUpOnKill FollowUpCondition = iota
	FollowUpOnNoKill
	FollowUpOnCritical
)

// ParseFollowUpCondition maps a wire name to a FollowUpCondition.
func ParseFollowUpCondition(s string) (FollowUpCondition, error) {
	switch s {
	case "on_kill":
		return FollowUpOnKill, nil
	case "on_no_kill":
		return FollowUpOnNoKill, nil
	case "on_critical":
		return FollowUpOnCritical, nil
	default:
		return 0, fmt.Errorf("unknown follow-up condition %q", s)
	}
}

// FollowUp is an extra action granted after a normal action. It is resolved at
// end of turn as a physical attack scaled by DamageMultiplier.
type FollowUp struct {
	ID               string
	Name             string
	Condition        FollowUpCondition
	ChancePercent    float64
	DamageMultiplier float64
}

// ActionOutcome summarizes a finished normal action for follow-up evaluation.
type ActionOutcome struct {
	Landed   bool
	Killed   bool
	Critical bool
}

func (f FollowUp) eligible(o ActionOutcome) bool {
	switch f.Condition {
	case FollowUpOnKill:
		return o.Killed
	case FollowUpOnNoKill:
		return o.Landed && !o.Killed
	case FollowUpOnCritical:
		return o.Critical
	default:
		return false
	}
}

// GrantFollowUp evaluates follow-ups in declaration order and returns the first
// one whose condition holds and whose chance succeeds. At most one follow-up is
// granted per action.
//
// Draw order: one PercentChance draw per eligible follow-up until one succeeds.
func GrantFollowUp(fs []FollowUp, o ActionOutcome, r dice.Stream) (FollowUp, bool) {
	for _, f := range fs {
		if !f.eligible(o) {
			continue
		}
		if dice.PercentChance(r, f.ChancePercent) {
			return f, true
		}
	}
	return FollowUp{}, false
}
