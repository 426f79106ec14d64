// Package config provides Viper-based configuration loading for the combat
// simulator.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// MaxTurnCap is the hard ceiling on turns per battle; combat.max_turns may
// lower it but never raise it.
const MaxTurnCap = 20

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// CombatConfig holds turn engine tuning.
type CombatConfig struct {
	// MaxTurns is the turn cap after which a battle ends in a timeout.
	MaxTurns int `mapstructure:"max_turns"`
	// ReactionDepth is the maximum reaction chain depth.
	ReactionDepth int `mapstructure:"reaction_depth"`
	// FleeChancePercent is the success chance of a flee attempt.
	FleeChancePercent float64 `mapstructure:"flee_chance_percent"`
	// ScriptInstructionLimit caps the Lua opcodes of one status tick hook.
	ScriptInstructionLimit int `mapstructure:"script_instruction_limit"`
}

// ContentConfig locates data-driven content.
type ContentConfig struct {
	// ConditionsDir holds one YAML file per status definition.
	ConditionsDir string `mapstructure:"conditions_dir"`
	// ScriptsDir holds the Lua status scripts; empty disables scripting.
	ScriptsDir string `mapstructure:"scripts_dir"`
}

// SimulationConfig controls batch runs of the simulate command.
type SimulationConfig struct {
	// Runs is the number of independent battles simulated per invocation.
	Runs int `mapstructure:"runs"`
	// Parallelism bounds how many battles run at once.
	Parallelism int `mapstructure:"parallelism"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging"`
	Combat     CombatConfig     `mapstructure:"combat"`
	Content    ContentConfig    `mapstructure:"content"`
	Simulation SimulationConfig `mapstructure:"simulation"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateCombat(c.Combat); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateSimulation(c.Simulation); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateCombat(c CombatConfig) error {
	var errs []string
	if c.MaxTurns < 1 || c.MaxTurns > MaxTurnCap {
		errs = append(errs, fmt.Sprintf("combat.max_turns must be 1-%d, got %d", MaxTurnCap, c.MaxTurns))
	}
	if c.ReactionDepth < 0 || c.ReactionDepth > 3 {
		errs = append(errs, fmt.Sprintf("combat.reaction_depth must be 0-3, got %d", c.ReactionDepth))
	}
	if c.FleeChancePercent < 0 || c.FleeChancePercent > 100 {
		errs = append(errs, fmt.Sprintf("combat.flee_chance_percent must be 0-100, got %v", c.FleeChancePercent))
	}
	if c.ScriptInstructionLimit < 0 {
		errs = append(errs, fmt.Sprintf("combat.script_instruction_limit must be >= 0, got %d", c.ScriptInstructionLimit))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateContent(c ContentConfig) error {
	if c.ConditionsDir == "" {
		return fmt.Errorf("content.conditions_dir must not be empty")
	}
	return nil
}

func validateSimulation(s SimulationConfig) error {
	var errs []string
	if s.Runs < 1 {
		errs = append(errs, fmt.Sprintf("simulation.runs must be >= 1, got %d", s.Runs))
	}
	if s.Parallelism < 1 {
		errs = append(errs, fmt.Sprintf("simulation.parallelism must be >= 1, got %d", s.Parallelism))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and the
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()

	// Environment variable overrides with EPIKA_ prefix
	v.SetEnvPrefix("EPIKA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Default returns the configuration produced by Load with no file and no
// environment overrides.
func Default() Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("combat.max_turns", MaxTurnCap)
	v.SetDefault("combat.reaction_depth", 1)
	v.SetDefault("combat.flee_chance_percent", 50)
	v.SetDefault("combat.script_instruction_limit", 100_000)

	v.SetDefault("content.conditions_dir", "content/conditions")
	v.SetDefault("content.scripts_dir", "content/scripts")

	v.SetDefault("simulation.runs", 1)
	v.SetDefault("simulation.parallelism", 4)
}
