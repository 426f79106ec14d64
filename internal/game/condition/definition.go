// Package condition implements status effects: their YAML definitions, the
// per-combatant active set, application against resistance and end-of-turn
// ticking.
package condition

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Duration types.
const (
	DurationTurns     = "turns"
	DurationPermanent = "permanent"
)

// Stat names accepted as Modifiers keys.
const (
	StatPhysicalAttack  = "physical_attack"
	StatMagicalAttack   = "magical_attack"
	StatPhysicalDefense = "physical_defense"
	StatMagicalDefense  = "magical_defense"
	StatHit             = "hit"
	StatEvasion         = "evasion"
	StatAgility         = "agility"
	StatCriticalRate    = "critical_rate"
)

var knownStats = []string{
	StatPhysicalAttack, StatMagicalAttack, StatPhysicalDefense, StatMagicalDefense,
	StatHit, StatEvasion, StatAgility, StatCriticalRate,
}

// ConditionDef is the static definition of a status, loaded from YAML.
type ConditionDef struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description"`
	DurationType string `yaml:"duration_type"` // "turns" | "permanent"
	Duration     int    `yaml:"duration"`      // default turns when the applier gives none
	MaxStacks    int    `yaml:"max_stacks"`    // 0 = uncapped when stackable
	// TickDamagePercent is the percent of max HP lost per stack at end of turn.
	TickDamagePercent float64 `yaml:"tick_damage_percent"`
	// ResidualHarm raises a tick that rounds down to 0 up to 1.
	ResidualHarm bool `yaml:"residual_harm"`
	ActionLock   bool `yaml:"action_lock"`
	// ChancePercent is the base application chance; 0 means always.
	ChancePercent float64 `yaml:"chance_percent"`
	// Modifiers multiply the named stat once per stack.
	Modifiers map[string]float64 `yaml:"modifiers"`
	// LuaOnTick names a global function in the status script, called every tick.
	LuaOnTick string `yaml:"lua_on_tick"`
}

// Validate checks the definition's static invariants.
//
// Postcondition: Returns nil iff ID is set, DurationType is known, a turns
// status has Duration >= 1, TickDamagePercent is in [0, 100] and every modifier
// names a known stat with a non-negative multiplier.
func (d *ConditionDef) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("condition %q: id must not be empty", d.Name)
	}
	switch d.DurationType {
	case DurationTurns:
		if d.Duration < 1 {
			return fmt.Errorf("condition %q: turns duration must be >= 1, got %d", d.ID, d.Duration)
		}
	case DurationPermanent:
	default:
		return fmt.Errorf("condition %q: unknown duration_type %q", d.ID, d.DurationType)
	}
	if d.TickDamagePercent < 0 || d.TickDamagePercent > 100 {
		return fmt.Errorf("condition %q: tick_damage_percent must be in [0,100], got %v", d.ID, d.TickDamagePercent)
	}
	for stat, m := range d.Modifiers {
		if !slices.Contains(knownStats, stat) {
			return fmt.Errorf("condition %q: unknown modifier stat %q", d.ID, stat)
		}
		if m < 0 {
			return fmt.Errorf("condition %q: modifier %q must be >= 0", d.ID, stat)
		}
	}
	return nil
}

// Registry holds all known ConditionDefs keyed by ID.
type Registry struct {
	defs map[string]*ConditionDef
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]*ConditionDef)}
}

// Register adds def to the registry, overwriting any existing entry with the same ID.
// Precondition: def must not be nil and def.ID must not be empty.
func (r *Registry) Register(def *ConditionDef) {
	r.defs[def.ID] = def
}

// Get returns the ConditionDef for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*ConditionDef, bool) {
	d, ok := r.defs[id]
	return d, ok
}

// All returns a snapshot slice of all registered ConditionDefs ordered by ID.
func (r *Registry) All() []*ConditionDef {
	out := make([]*ConditionDef, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *ConditionDef) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// LoadDirectory reads every *.yaml file in dir, parses and validates each as a
// ConditionDef, and returns a populated Registry.
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails to parse or validate.
func LoadDirectory(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading condition dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var def ConditionDef
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		reg.Register(&def)
	}
	return reg, nil
}
