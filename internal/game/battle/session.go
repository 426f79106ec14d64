// Package battle implements the turn engine: one deterministic battle session
// driven turn by turn from a seed until a terminal state is reached.
package battle

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cory-johannsen/epika/internal/config"
	"github.com/cory-johannsen/epika/internal/game/battlelog"
	"github.com/cory-johannsen/epika/internal/game/combat"
	"github.com/cory-johannsen/epika/internal/game/condition"
	"github.com/cory-johannsen/epika/internal/game/dice"
	"github.com/cory-johannsen/epika/internal/observability"
)

// State is the lifecycle state of a Session.
type State int

const (
	StateNotStarted State = iota
	StateInProgress
	StateVictory
	StateDefeat
	StateEscaped
	StateTimeout
)

var stateNames = [...]string{"not_started", "in_progress", "victory", "defeat", "escaped", "timeout"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether s is one of the four end states.
func (s State) Terminal() bool { return s >= StateVictory }

func (s State) outcome() battlelog.Outcome {
	switch s {
	case StateVictory:
		return battlelog.OutcomeVictory
	case StateDefeat:
		return battlelog.OutcomeDefeat
	case StateEscaped:
		return battlelog.OutcomeEscaped
	default:
		return battlelog.OutcomeTimeout
	}
}

var (
	// ErrInvalidRoster is returned when a side is empty or a combatant is
	// structurally invalid.
	ErrInvalidRoster = errors.New("invalid roster")
	// ErrMalformedEffect is returned when a combatant references a spell, status
	// or tick hook that cannot be resolved.
	ErrMalformedEffect = errors.New("malformed effect")
	// ErrBattleOver is returned by Step once the session is terminal.
	ErrBattleOver = errors.New("battle is over")
	// ErrNotFinished is returned by Result before the session is terminal.
	ErrNotFinished = errors.New("battle is not finished")
)

// TickHooks runs scripted per-turn status damage. *scripting.Manager satisfies it.
type TickHooks interface {
	HasHook(name string) bool
	CallTick(hook string, hp, maxHP, stacks int) (int, error)
}

// Options configures a new Session.
//
// Combat nil selects config.Default().Combat. Resume, when set, replaces Party,
// Enemies and Seed with a snapshot taken between turns.
type Options struct {
	ID         string
	Party      []combat.Combatant
	Enemies    []combat.Combatant
	Seed       uint64
	Resume     *Snapshot
	Spells     combat.Spellbook
	Conditions *condition.Registry
	Hooks      TickHooks
	Combat     *config.CombatConfig
	Logger     *zap.Logger
}

// Result is the outcome of a finished session.
type Result struct {
	Outcome   battlelog.Outcome
	Log       *battlelog.Log
	RNGState  uint64
	Turns     int
	Survivors []string
}

type pendingFollowUp struct {
	actor    int
	followUp combat.FollowUp
}

// Session is one battle. It exclusively owns its combatants, RNG and log
// recorder, and is not safe for concurrent use.
type Session struct {
	id         string
	state      State
	turn       int
	roster     []combat.Combatant
	statuses   map[string]*condition.ActiveSet
	rng        *dice.SplitMix64
	spells     combat.Spellbook
	conditions *condition.Registry
	hooks      TickHooks
	cfg        config.CombatConfig
	rec        *battlelog.Recorder
	log        *battlelog.Log
	pending    []pendingFollowUp
	escaped    bool
	failed     error
	logger     *zap.Logger
}

// NewSession validates the rosters and every effect reference, then returns a
// session in StateNotStarted. Combatants are deep-copied; HP is clamped into
// [0, MaxHP].
//
// Postcondition: returns an error wrapping ErrInvalidRoster or
// ErrMalformedEffect, or a session ready for Step.
func NewSession(opts Options) (*Session, error) {
	cfg := config.Default().Combat
	if opts.Combat != nil {
		cfg = *opts.Combat
	}
	cfg.MaxTurns = dice.ClampInt(cfg.MaxTurns, 1, config.MaxTurnCap)
	cfg.ReactionDepth = max(0, cfg.ReactionDepth)

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}

	s := &Session{
		id:         id,
		statuses:   make(map[string]*condition.ActiveSet),
		spells:     opts.Spells,
		conditions: opts.Conditions,
		hooks:      opts.Hooks,
		cfg:        cfg,
		rec:        battlelog.NewRecorder(),
	}

	party, enemies, seed := opts.Party, opts.Enemies, opts.Seed
	if opts.Resume != nil {
		party, enemies = opts.Resume.split()
		seed = opts.Resume.RNGState
		s.turn = opts.Resume.Turn
	}
	s.logger = observability.ForBattle(logger, id, seed)
	if len(party) == 0 || len(enemies) == 0 {
		return nil, fmt.Errorf("%w: both sides need at least one combatant (party %d, enemies %d)",
			ErrInvalidRoster, len(party), len(enemies))
	}
	if err := s.addSide(party, combat.SidePlayer); err != nil {
		return nil, err
	}
	if err := s.addSide(enemies, combat.SideEnemy); err != nil {
		return nil, err
	}
	for i := range s.roster {
		if err := s.validateEffects(&s.roster[i]); err != nil {
			return nil, err
		}
	}
	if opts.Resume != nil {
		if err := s.restoreStatuses(opts.Resume.Statuses); err != nil {
			return nil, err
		}
	}
	s.rng = dice.NewSplitMix64(seed)
	return s, nil
}

func (s *Session) addSide(cs []combat.Combatant, side combat.Side) error {
	for i := range cs {
		c := cs[i].Clone()
		if err := c.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRoster, err)
		}
		if _, dup := s.statuses[c.ID]; dup {
			return fmt.Errorf("%w: duplicate combatant id %q", ErrInvalidRoster, c.ID)
		}
		c.Side = side
		c.ClampHP()
		s.roster = append(s.roster, c)
		s.statuses[c.ID] = condition.NewActiveSet()
	}
	return nil
}

// validateEffects resolves every spell, status and hook c can reach in combat.
func (s *Session) validateEffects(c *combat.Combatant) error {
	for _, id := range c.Spells {
		sp, err := s.spells.Lookup(id)
		if err != nil {
			return fmt.Errorf("%w: combatant %q: %v", ErrMalformedEffect, c.ID, err)
		}
		if err := s.validateSpell(c, sp); err != nil {
			return err
		}
	}
	for _, r := range c.Effects.Reactions {
		if r.Mode != combat.DamageMagical {
			continue
		}
		sp, err := s.spells.Lookup(r.SpellID)
		if err != nil {
			return fmt.Errorf("%w: combatant %q reaction %q: %v", ErrMalformedEffect, c.ID, r.ID, err)
		}
		if sp.Kind != combat.SpellDamage {
			return fmt.Errorf("%w: combatant %q reaction %q: spell %q is not a damage spell",
				ErrMalformedEffect, c.ID, r.ID, sp.ID)
		}
	}
	for _, id := range c.Effects.StackableStatuses {
		if _, err := s.status(id); err != nil {
			return fmt.Errorf("%w: combatant %q: %v", ErrMalformedEffect, c.ID, err)
		}
	}
	return nil
}

func (s *Session) validateSpell(c *combat.Combatant, sp combat.Spell) error {
	switch sp.Kind {
	case combat.SpellBuff, combat.SpellStatus:
		if sp.StatusID == "" {
			return fmt.Errorf("%w: combatant %q spell %q: %s spell needs a status",
				ErrMalformedEffect, c.ID, sp.ID, sp.Kind)
		}
	case combat.SpellDamage:
		if sp.StatusID == "" {
			return nil
		}
	default:
		return nil
	}
	def, err := s.status(sp.StatusID)
	if err != nil {
		return fmt.Errorf("%w: combatant %q spell %q: %v", ErrMalformedEffect, c.ID, sp.ID, err)
	}
	if def.LuaOnTick != "" && (s.hooks == nil || !s.hooks.HasHook(def.LuaOnTick)) {
		return fmt.Errorf("%w: combatant %q spell %q: status %q tick hook %q is not loaded",
			ErrMalformedEffect, c.ID, sp.ID, def.ID, def.LuaOnTick)
	}
	return nil
}

func (s *Session) status(id string) (*condition.ConditionDef, error) {
	if s.conditions == nil {
		return nil, fmt.Errorf("unknown status %q", id)
	}
	def, ok := s.conditions.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown status %q", id)
	}
	return def, nil
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State { return s.state }

// Turn returns the number of turns resolved so far.
func (s *Session) Turn() int { return s.turn }

// Combatants returns deep copies of every combatant in roster order: party
// first, then enemies.
func (s *Session) Combatants() []combat.Combatant {
	out := make([]combat.Combatant, len(s.roster))
	for i := range s.roster {
		out[i] = s.roster[i].Clone()
	}
	return out
}

// Statuses returns the active conditions of the combatant with id.
func (s *Session) Statuses(id string) []condition.Entry {
	if set, ok := s.statuses[id]; ok {
		return set.Entries()
	}
	return nil
}

// Step resolves exactly one turn and returns the resulting state.
//
// Precondition: the session is not terminal; otherwise ErrBattleOver.
// Postcondition: on a terminal state the log is sealed and Result is available.
// A turn that fails leaves the session aborted: every later Step returns the
// same error without resolving anything.
func (s *Session) Step() (State, error) {
	if s.failed != nil {
		return s.state, s.failed
	}
	if s.state.Terminal() {
		return s.state, ErrBattleOver
	}
	if s.state == StateNotStarted {
		s.state = StateInProgress
		s.logger.Info("battle started",
			zap.Int("party", s.count(combat.SidePlayer)),
			zap.Int("enemies", s.count(combat.SideEnemy)),
			zap.Int("max_turns", s.cfg.MaxTurns),
			zap.Int("reaction_depth", s.cfg.ReactionDepth),
		)
	}
	if err := s.runTurn(); err != nil {
		s.failed = err
		s.logger.Error("turn aborted", zap.Int("turn", s.turn), zap.Error(err))
		return s.state, err
	}
	if next, done := s.evaluate(); done {
		s.finish(next)
	}
	return s.state, nil
}

// Run steps the session until it is terminal or ctx is done. Cancellation is
// observed between turns, leaving the session resumable.
func (s *Session) Run(ctx context.Context) (Result, error) {
	for !s.state.Terminal() {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		if _, err := s.Step(); err != nil {
			return Result{}, err
		}
	}
	return s.Result()
}

// Result returns the finished battle.
//
// Precondition: the session is terminal; otherwise ErrNotFinished.
func (s *Session) Result() (Result, error) {
	if !s.state.Terminal() {
		return Result{}, ErrNotFinished
	}
	var survivors []string
	for i := range s.roster {
		if s.roster[i].IsAlive() {
			survivors = append(survivors, s.roster[i].ID)
		}
	}
	return Result{
		Outcome:   s.state.outcome(),
		Log:       s.log,
		RNGState:  s.rng.State(),
		Turns:     s.turn,
		Survivors: survivors,
	}, nil
}

// evaluate applies the termination rules in order: Victory, Defeat, Escaped,
// Timeout.
func (s *Session) evaluate() (State, bool) {
	switch {
	case s.count(combat.SideEnemy) == 0:
		return StateVictory, true
	case s.count(combat.SidePlayer) == 0:
		return StateDefeat, true
	case s.escaped:
		return StateEscaped, true
	case s.turn >= s.cfg.MaxTurns:
		return StateTimeout, true
	default:
		return s.state, false
	}
}

func (s *Session) finish(state State) {
	s.state = state
	s.log = s.rec.End(state.outcome(), s.turn)
	s.logger.Info("battle finished",
		zap.String("outcome", state.String()),
		zap.Int("turns", s.turn),
		zap.Uint64("rng_state", s.rng.State()),
	)
}

// decided reports whether the current turn must stop resolving actions.
func (s *Session) decided() bool {
	return s.escaped || s.count(combat.SidePlayer) == 0 || s.count(combat.SideEnemy) == 0
}

func (s *Session) count(side combat.Side) int {
	n := 0
	for i := range s.roster {
		if s.roster[i].Side == side && s.roster[i].IsAlive() {
			n++
		}
	}
	return n
}
