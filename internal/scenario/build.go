package scenario

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/epika/internal/game/combat"
	"github.com/cory-johannsen/epika/internal/game/dice"
)

// Namespace roots the name-based combatant IDs, so the same scenario always
// yields the same IDs.
var Namespace = uuid.NewSHA1(uuid.NameSpaceOID, []byte("epika.combat"))

// enemyRollSalt separates the enemy-count stream from the battle stream seeded
// with the same value.
const enemyRollSalt = 0x5EED_E1E1_0000_0001

// Roster is a built scenario, ready for battle.Options.
type Roster struct {
	Party   []combat.Combatant
	Enemies []combat.Combatant
	Spells  combat.Spellbook
}

// CombatantID returns the deterministic ID of the n-th combatant named name on
// side.
func CombatantID(side combat.Side, name string, n int) string {
	return uuid.NewSHA1(Namespace, []byte(fmt.Sprintf("%s/%s/%d", side, name, n))).String()
}

// Build resolves the document into combatants and a spellbook. Enemy group
// sizes are rolled from a stream derived from seed and logged through logger.
// Each group spawns at least one enemy. Spawned enemies of one template are
// suffixed A, B, C and so on when more than one spawns.
//
// Precondition: d was validated; logger must not be nil.
func (d *Document) Build(seed uint64, logger *zap.Logger) (Roster, error) {
	var out Roster
	out.Spells = make(combat.Spellbook, len(d.Spells))
	for _, spec := range d.Spells {
		sp, err := spec.build()
		if err != nil {
			return Roster{}, err
		}
		out.Spells[sp.ID] = sp
	}

	for i, spec := range d.Party {
		c, err := spec.build(CombatantID(combat.SidePlayer, spec.Name, i), spec.Name, combat.SidePlayer)
		if err != nil {
			return Roster{}, fmt.Errorf("party[%d]: %w", i, err)
		}
		out.Party = append(out.Party, c)
	}

	roller := dice.NewLoggedRoller(dice.NewSplitMix64(seed^enemyRollSalt), logger)
	spawned := make(map[string]int)
	for i, g := range d.Enemies {
		tmpl, ok := d.EnemyTemplates[g.Template]
		if !ok {
			return Roster{}, fmt.Errorf("enemies[%d]: unknown template %q", i, g.Template)
		}
		n := 1
		if g.Count != "" {
			roll, err := roller.RollExpr(g.Count)
			if err != nil {
				return Roster{}, fmt.Errorf("enemies[%d]: %w", i, err)
			}
			n = max(1, roll.Total())
		}
		for j := 0; j < n; j++ {
			k := spawned[g.Template]
			spawned[g.Template]++
			c, err := tmpl.build(CombatantID(combat.SideEnemy, g.Template, k), tmpl.Name, combat.SideEnemy)
			if err != nil {
				return Roster{}, fmt.Errorf("enemies[%d]: %w", i, err)
			}
			out.Enemies = append(out.Enemies, c)
		}
	}

	suffixDuplicates(out.Enemies)
	return out, nil
}

// suffixDuplicates appends A, B, C... to names shared by several enemies, and
// falls back to numbers past Z.
func suffixDuplicates(enemies []combat.Combatant) {
	counts := make(map[string]int)
	for _, c := range enemies {
		counts[c.Name]++
	}
	seen := make(map[string]int)
	for i := range enemies {
		name := enemies[i].Name
		if counts[name] < 2 {
			continue
		}
		n := seen[name]
		seen[name]++
		if n < 26 {
			enemies[i].Name = fmt.Sprintf("%s %c", name, 'A'+rune(n))
		} else {
			enemies[i].Name = fmt.Sprintf("%s %d", name, n+1)
		}
	}
}

func (c CombatantSpec) build(id, name string, side combat.Side) (combat.Combatant, error) {
	effects, err := c.Effects.build()
	if err != nil {
		return combat.Combatant{}, err
	}
	resist, err := c.Resistances.build()
	if err != nil {
		return combat.Combatant{}, err
	}
	hp := c.Scores.MaxHP
	if c.HP != nil {
		hp = *c.HP
	}
	return combat.Combatant{
		ID:          id,
		Name:        name,
		Side:        side,
		Slot:        c.Slot,
		Attributes:  c.Attributes,
		Scores:      c.Scores,
		CurrentHP:   max(0, min(c.Scores.MaxHP, hp)),
		Martial:     c.Martial,
		Rates:       c.Rates,
		Spells:      append([]string(nil), c.Spells...),
		Effects:     effects,
		Resistances: resist,
	}, nil
}

func (s SpellSpec) build() (combat.Spell, error) {
	kind, err := combat.ParseSpellKind(s.Kind)
	if err != nil {
		return combat.Spell{}, fmt.Errorf("spell %q: %w", s.ID, err)
	}
	dt := combat.DamageMagical
	if s.DamageType != "" {
		if dt, err = combat.ParseDamageType(s.DamageType); err != nil {
			return combat.Spell{}, fmt.Errorf("spell %q: %w", s.ID, err)
		}
	}
	name := s.Name
	if name == "" {
		name = s.ID
	}
	return combat.Spell{
		ID:            s.ID,
		Name:          name,
		Kind:          kind,
		Power:         s.Power,
		AllTargets:    s.AllTargets,
		DamageType:    dt,
		StatusID:      s.Status,
		Duration:      s.Duration,
		Charges:       s.Charges,
		ChancePercent: s.ChancePercent,
	}, nil
}

func (e EffectsSpec) build() (combat.SkillEffects, error) {
	dealt, err := damageMap(e.DamageDealt)
	if err != nil {
		return combat.SkillEffects{}, fmt.Errorf("effects.damage_dealt: %w", err)
	}
	taken, err := damageMap(e.DamageTaken)
	if err != nil {
		return combat.SkillEffects{}, fmt.Errorf("effects.damage_taken: %w", err)
	}
	out := combat.SkillEffects{
		Damage: combat.DamageModifiers{
			Dealt:                   dealt,
			Taken:                   taken,
			CriticalDamageBonus:     e.CriticalDamageBonus,
			CriticalTakenMultiplier: e.CriticalTakenMultiplier,
			PenetrationMultiplier:   e.PenetrationMultiplier,
			PenetrationResistance:   e.PenetrationResistance,
			RowMultipliers:          e.RowMultipliers,
			CumulativeHitPercent:    e.CumulativeHitPercent,
			SpellPower:              e.SpellPower,
			SpellPowerAll:           e.SpellPowerAll,
			BreathPower:             e.BreathPower,
			HealingMultiplier:       e.HealingMultiplier,
		},
		ProcMultiplier:             e.ProcMultiplier,
		MagicNullifyChancePercent:  e.MagicNullifyChancePercent,
		MagicCriticalChancePercent: e.MagicCriticalChancePercent,
		MagicCriticalMultiplier:    e.MagicCriticalMultiplier,
		FirstStrike:                e.FirstStrike,
		ActionOrderMultiplier:      e.ActionOrderMultiplier,
		ActionOrderShuffle:         e.ActionOrderShuffle,
		StackableStatuses:          append([]string(nil), e.StackableStatuses...),
		RegenerationPercent:        e.RegenerationPercent,
		SelfDamagePercent:          e.SelfDamagePercent,
		DegradePercentOnHit:        e.DegradePercentOnHit,
	}
	if e.Parry != nil {
		out.Parry = combat.Proc{Enabled: true, Bonus: e.Parry.Bonus}
	}
	if e.Shield != nil {
		out.Shield = combat.Proc{Enabled: true, Bonus: e.Shield.Bonus}
	}
	if e.ProtectionMultiplier > 0 {
		out.Protection = &combat.AllyProtection{Multiplier: e.ProtectionMultiplier}
	}
	for _, r := range e.Reactions {
		reaction, err := r.build()
		if err != nil {
			return combat.SkillEffects{}, err
		}
		out.Reactions = append(out.Reactions, reaction)
	}
	for _, f := range e.FollowUps {
		cond, err := combat.ParseFollowUpCondition(f.Condition)
		if err != nil {
			return combat.SkillEffects{}, fmt.Errorf("follow-up %q: %w", f.ID, err)
		}
		out.FollowUps = append(out.FollowUps, combat.FollowUp{
			ID:               f.ID,
			Name:             f.Name,
			Condition:        cond,
			ChancePercent:    f.ChancePercent,
			DamageMultiplier: f.DamageMultiplier,
		})
	}
	return out, nil
}

func (r ReactionSpec) build() (combat.Reaction, error) {
	trigger, err := combat.ParseTrigger(r.Trigger)
	if err != nil {
		return combat.Reaction{}, fmt.Errorf("reaction %q: %w", r.ID, err)
	}
	target, err := combat.ParseTargetRule(r.Target)
	if err != nil {
		return combat.Reaction{}, fmt.Errorf("reaction %q: %w", r.ID, err)
	}
	mode := combat.DamagePhysical
	if r.Mode != "" {
		if mode, err = combat.ParseDamageType(r.Mode); err != nil {
			return combat.Reaction{}, fmt.Errorf("reaction %q: %w", r.ID, err)
		}
	}
	if mode == combat.DamageMagical && r.Spell == "" {
		return combat.Reaction{}, fmt.Errorf("reaction %q: magical reactions need a spell", r.ID)
	}
	return combat.Reaction{
		ID:                     r.ID,
		Name:                   r.Name,
		Trigger:                trigger,
		Target:                 target,
		Mode:                   mode,
		SpellID:                r.Spell,
		ChancePercent:          r.ChancePercent,
		AttackCountMultiplier:  r.AttackCountMultiplier,
		CriticalRateMultiplier: r.CriticalRateMultiplier,
		AccuracyMultiplier:     r.AccuracyMultiplier,
		DamageMultiplier:       r.DamageMultiplier,
		RequiresMartial:        r.RequiresMartial,
		RequiresAllyBehind:     r.RequiresAllyBehind,
	}, nil
}

func (r ResistancesSpec) build() (combat.Resistances, error) {
	dmg, err := damageMap(r.Damage)
	if err != nil {
		return combat.Resistances{}, fmt.Errorf("resistances.damage: %w", err)
	}
	return combat.Resistances{Damage: dmg, Status: r.Status, Spell: r.Spell, Critical: r.Critical}, nil
}

func damageMap(in map[string]float64) (map[combat.DamageType]float64, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[combat.DamageType]float64, len(in))
	for k, v := range in {
		t, err := combat.ParseDamageType(k)
		if err != nil {
			return nil, err
		}
		out[t] = v
	}
	return out, nil
}
