// Package scenario loads battle rosters from YAML: the party, reusable enemy
// templates, the enemy groups to spawn from them and the spells everyone casts.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/cory-johannsen/epika/internal/game/combat"
	"github.com/cory-johannsen/epika/internal/game/dice"
)

// Document is one scenario file.
type Document struct {
	Name           string                   `yaml:"name"`
	Seed           uint64                   `yaml:"seed"`
	Party          []CombatantSpec          `yaml:"party"`
	EnemyTemplates map[string]CombatantSpec `yaml:"enemy_templates"`
	Enemies        []EnemyGroup             `yaml:"enemies"`
	Spells         []SpellSpec              `yaml:"spells"`
}

// EnemyGroup spawns Count copies of a template. Count is a dice expression
// such as "1d3" or a constant such as "2"; empty means one.
type EnemyGroup struct {
	Template string `yaml:"template"`
	Count    string `yaml:"count"`
}

// CombatantSpec is the YAML form of a combatant. HP nil means full health.
type CombatantSpec struct {
	Name        string             `yaml:"name"`
	Slot        int                `yaml:"slot"`
	HP          *int               `yaml:"hp"`
	Martial     bool               `yaml:"martial"`
	Attributes  combat.Attributes  `yaml:"attributes"`
	Scores      combat.Scores      `yaml:"scores"`
	Rates       combat.ActionRates `yaml:"rates"`
	Spells      []string           `yaml:"spells"`
	Effects     EffectsSpec        `yaml:"effects"`
	Resistances ResistancesSpec    `yaml:"resistances"`
}

// EffectsSpec is the YAML form of a compiled skill-effect set. Damage-type keys
// are "physical", "magical" or "breath".
type EffectsSpec struct {
	DamageDealt             map[string]float64 `yaml:"damage_dealt"`
	DamageTaken             map[string]float64 `yaml:"damage_taken"`
	CriticalDamageBonus     float64            `yaml:"critical_damage_bonus"`
	CriticalTakenMultiplier float64            `yaml:"critical_taken_multiplier"`
	PenetrationMultiplier   float64            `yaml:"penetration_multiplier"`
	PenetrationResistance   float64            `yaml:"penetration_resistance"`
	RowMultipliers          map[int]float64    `yaml:"row_multipliers"`
	CumulativeHitPercent    float64            `yaml:"cumulative_hit_percent"`
	SpellPower              map[string]float64 `yaml:"spell_power"`
	SpellPowerAll           float64            `yaml:"spell_power_all"`
	BreathPower             float64            `yaml:"breath_power"`
	HealingMultiplier       float64            `yaml:"healing_multiplier"`

	Parry                      *ProcSpec `yaml:"parry"`
	Shield                     *ProcSpec `yaml:"shield"`
	ProcMultiplier             float64   `yaml:"proc_multiplier"`
	MagicNullifyChancePercent  float64   `yaml:"magic_nullify_chance_percent"`
	MagicCriticalChancePercent float64   `yaml:"magic_critical_chance_percent"`
	MagicCriticalMultiplier    float64   `yaml:"magic_critical_multiplier"`
	FirstStrike                bool      `yaml:"first_strike"`
	ActionOrderMultiplier      float64   `yaml:"action_order_multiplier"`
	ActionOrderShuffle         bool      `yaml:"action_order_shuffle"`

	Reactions           []ReactionSpec `yaml:"reactions"`
	FollowUps           []FollowUpSpec `yaml:"follow_ups"`
	StackableStatuses   []string       `yaml:"stackable_statuses"`
	RegenerationPercent float64        `yaml:"regeneration_percent"`
	SelfDamagePercent   float64        `yaml:"self_damage_percent"`
	DegradePercentOnHit float64        `yaml:"degrade_percent_on_hit"`
	// ProtectionMultiplier > 0 makes the combatant shield allies standing behind it.
	ProtectionMultiplier float64 `yaml:"protection_multiplier"`
}

// ProcSpec enables parry or shield block with an optional chance bonus.
type ProcSpec struct {
	Bonus float64 `yaml:"bonus"`
}

// ReactionSpec is the YAML form of a reaction.
type ReactionSpec struct {
	ID                     string  `yaml:"id"`
	Name                   string  `yaml:"name"`
	Trigger                string  `yaml:"trigger"`
	Target                 string  `yaml:"target"`
	Mode                   string  `yaml:"mode"`
	Spell                  string  `yaml:"spell"`
	ChancePercent          float64 `yaml:"chance_percent"`
	AttackCountMultiplier  float64 `yaml:"attack_count_multiplier"`
	CriticalRateMultiplier float64 `yaml:"critical_rate_multiplier"`
	AccuracyMultiplier     float64 `yaml:"accuracy_multiplier"`
	DamageMultiplier       float64 `yaml:"damage_multiplier"`
	RequiresMartial        bool    `yaml:"requires_martial"`
	RequiresAllyBehind     bool    `yaml:"requires_ally_behind"`
}

// FollowUpSpec is the YAML form of a follow-up.
type FollowUpSpec struct {
	ID               string  `yaml:"id"`
	Name             string  `yaml:"name"`
	Condition        string  `yaml:"condition"`
	ChancePercent    float64 `yaml:"chance_percent"`
	DamageMultiplier float64 `yaml:"damage_multiplier"`
}

// ResistancesSpec is the YAML form of innate resistances.
type ResistancesSpec struct {
	Damage   map[string]float64 `yaml:"damage"`
	Status   map[string]float64 `yaml:"status"`
	Spell    map[string]float64 `yaml:"spell"`
	Critical float64            `yaml:"critical"`
}

// SpellSpec is the YAML form of a spell.
type SpellSpec struct {
	ID            string  `yaml:"id"`
	Name          string  `yaml:"name"`
	Kind          string  `yaml:"kind"`
	Power         float64 `yaml:"power"`
	AllTargets    bool    `yaml:"all_targets"`
	DamageType    string  `yaml:"damage_type"`
	Status        string  `yaml:"status"`
	Duration      int     `yaml:"duration"`
	Charges       int     `yaml:"charges"`
	ChancePercent float64 `yaml:"chance_percent"`
}

// Load reads and parses the scenario at path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario %q: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading scenario %q: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a scenario, rejecting unknown fields, and validates it.
//
// Postcondition: Returns a validated *Document, or an error listing every
// violation found.
func Parse(data []byte) (*Document, error) {
	var doc Document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing scenario YAML: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks the document's structure. Cross references to statuses are
// left to the battle session, which owns the condition registry.
func (d *Document) Validate() error {
	var errs []error
	if len(d.Party) == 0 {
		errs = append(errs, errors.New("party must not be empty"))
	}
	if len(d.Enemies) == 0 {
		errs = append(errs, errors.New("enemies must not be empty"))
	}
	spells := make(map[string]bool, len(d.Spells))
	for i, sp := range d.Spells {
		if sp.ID == "" {
			errs = append(errs, fmt.Errorf("spells[%d]: id must not be empty", i))
			continue
		}
		if spells[sp.ID] {
			errs = append(errs, fmt.Errorf("spells[%d]: duplicate id %q", i, sp.ID))
		}
		spells[sp.ID] = true
		if _, err := sp.build(); err != nil {
			errs = append(errs, err)
		}
	}
	for i, c := range d.Party {
		errs = append(errs, c.validate(fmt.Sprintf("party[%d]", i), spells)...)
	}
	for name, c := range d.EnemyTemplates {
		errs = append(errs, c.validate(fmt.Sprintf("enemy_templates.%s", name), spells)...)
	}
	for i, g := range d.Enemies {
		if _, ok := d.EnemyTemplates[g.Template]; !ok {
			errs = append(errs, fmt.Errorf("enemies[%d]: unknown template %q", i, g.Template))
		}
		if g.Count != "" {
			if _, err := dice.Parse(g.Count); err != nil {
				errs = append(errs, fmt.Errorf("enemies[%d]: count: %w", i, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (c CombatantSpec) validate(path string, spells map[string]bool) []error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, fmt.Errorf("%s: name must not be empty", path))
	}
	if c.Scores.MaxHP < 1 {
		errs = append(errs, fmt.Errorf("%s: scores.max_hp must be >= 1", path))
	}
	if c.Slot < 0 {
		errs = append(errs, fmt.Errorf("%s: slot must be >= 0", path))
	}
	for _, id := range c.Spells {
		if !spells[id] {
			errs = append(errs, fmt.Errorf("%s: unknown spell %q", path, id))
		}
	}
	if _, err := c.Effects.build(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", path, err))
	}
	if _, err := c.Resistances.build(); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", path, err))
	}
	return errs
}
