package battle_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/cory-johannsen/epika/internal/config"
	"github.com/cory-johannsen/epika/internal/game/battle"
	"github.com/cory-johannsen/epika/internal/game/battlelog"
	"github.com/cory-johannsen/epika/internal/game/combat"
	"github.com/cory-johannsen/epika/internal/game/condition"
	"github.com/cory-johannsen/epika/internal/game/dice"
)

// unit returns a plain attacker that always hits (hit and evasion both zero)
// and rolls its variance at exactly 1.0 (luck 60).
func unit(id string, hp, atk int) combat.Combatant {
	return combat.Combatant{
		ID:         id,
		Name:       id,
		Attributes: combat.Attributes{Luck: 60, Agility: 20},
		Scores:     combat.Scores{MaxHP: hp, PhysicalAttack: atk, AttackCount: 1},
		CurrentHP:  hp,
		Rates:      combat.ActionRates{Attack: 1},
	}
}

func spellbook() combat.Spellbook {
	return combat.Spellbook{
		"fire":     {ID: "fire", Name: "Fire", Kind: combat.SpellDamage, Power: 1.2, DamageType: combat.DamageMagical},
		"blizzard": {ID: "blizzard", Name: "Blizzard", Kind: combat.SpellDamage, AllTargets: true, DamageType: combat.DamageMagical, StatusID: "poison", ChancePercent: 50},
		"cure":     {ID: "cure", Name: "Cure", Kind: combat.SpellHeal, Power: 1},
		"raise":    {ID: "raise", Name: "Raise", Kind: combat.SpellResurrect, Power: 30},
		"wall":     {ID: "wall", Name: "Wall", Kind: combat.SpellBarrier, DamageType: combat.DamagePhysical, Charges: 2},
		"might":    {ID: "might", Name: "Might", Kind: combat.SpellBuff, StatusID: "attack_up", Duration: 3},
		"lullaby":  {ID: "lullaby", Name: "Lullaby", Kind: combat.SpellStatus, StatusID: "sleep", ChancePercent: 60, Duration: 1},
	}
}

func registry() *condition.Registry {
	reg := condition.NewRegistry()
	reg.Register(&condition.ConditionDef{ID: "poison", Name: "Poison", DurationType: condition.DurationTurns, Duration: 3, MaxStacks: 5, TickDamagePercent: 5, ResidualHarm: true})
	reg.Register(&condition.ConditionDef{ID: "attack_up", Name: "Attack Up", DurationType: condition.DurationTurns, Duration: 3, MaxStacks: 3, Modifiers: map[string]float64{condition.StatPhysicalAttack: 1.2}})
	reg.Register(&condition.ConditionDef{ID: "sleep", Name: "Sleep", DurationType: condition.DurationTurns, Duration: 1, ActionLock: true, Modifiers: map[string]float64{condition.StatEvasion: 0.5}})
	reg.Register(&condition.ConditionDef{ID: "burn", Name: "Burn", DurationType: condition.DurationTurns, Duration: 2, TickDamagePercent: 1, LuaOnTick: "burn_tick"})
	return reg
}

func combatCfg(maxTurns, depth int, flee float64) *config.CombatConfig {
	cfg := config.Default().Combat
	cfg.MaxTurns = maxTurns
	cfg.ReactionDepth = depth
	cfg.FleeChancePercent = flee
	return &cfg
}

func options(party, enemies []combat.Combatant, seed uint64) battle.Options {
	return battle.Options{
		ID:         "test",
		Party:      party,
		Enemies:    enemies,
		Seed:       seed,
		Spells:     spellbook(),
		Conditions: registry(),
		Logger:     zap.NewNop(),
	}
}

func runBattle(t require.TestingT, opts battle.Options) battle.Result {
	s, err := battle.NewSession(opts)
	require.NoError(t, err)
	res, err := s.Run(context.Background())
	require.NoError(t, err)
	return res
}

func actionsOf(log *battlelog.Log, kind battlelog.ActionKind) []battlelog.ActionEntry {
	var out []battlelog.ActionEntry
	for _, a := range log.Actions() {
		if a.Kind == kind {
			out = append(out, a)
		}
	}
	return out
}

func TestNewSession_EmptySideIsInvalidRoster(t *testing.T) {
	_, err := battle.NewSession(options(nil, []combat.Combatant{unit("e", 10, 1)}, 1))
	assert.ErrorIs(t, err, battle.ErrInvalidRoster)
	_, err = battle.NewSession(options([]combat.Combatant{unit("p", 10, 1)}, nil, 1))
	assert.ErrorIs(t, err, battle.ErrInvalidRoster)
}

func TestNewSession_RejectsInvalidCombatants(t *testing.T) {
	bad := unit("p", 10, 1)
	bad.Scores.MaxHP = 0
	_, err := battle.NewSession(options([]combat.Combatant{bad}, []combat.Combatant{unit("e", 10, 1)}, 1))
	assert.ErrorIs(t, err, battle.ErrInvalidRoster)

	_, err = battle.NewSession(options(
		[]combat.Combatant{unit("same", 10, 1)},
		[]combat.Combatant{unit("same", 10, 1)}, 1))
	assert.ErrorIs(t, err, battle.ErrInvalidRoster, "ids are unique across both sides")
}

func TestNewSession_MalformedReferences(t *testing.T) {
	enemy := []combat.Combatant{unit("e", 10, 1)}

	unknownSpell := unit("p", 10, 1)
	unknownSpell.Spells = []string{"meteor"}
	_, err := battle.NewSession(options([]combat.Combatant{unknownSpell}, enemy, 1))
	assert.ErrorIs(t, err, battle.ErrMalformedEffect)
	assert.ErrorContains(t, err, "meteor")

	badReaction := unit("p", 10, 1)
	badReaction.Effects.Reactions = []combat.Reaction{{ID: "spellback", Mode: combat.DamageMagical, SpellID: "cure"}}
	_, err = battle.NewSession(options([]combat.Combatant{badReaction}, enemy, 1))
	assert.ErrorIs(t, err, battle.ErrMalformedEffect, "magical reactions must cast damage spells")

	book := spellbook()
	book["ignite"] = combat.Spell{ID: "ignite", Kind: combat.SpellStatus, StatusID: "burn"}
	caster := unit("p", 10, 1)
	caster.Spells = []string{"ignite"}
	opts := options([]combat.Combatant{caster}, enemy, 1)
	opts.Spells = book
	_, err = battle.NewSession(opts)
	assert.ErrorIs(t, err, battle.ErrMalformedEffect, "a scripted status needs its hook loaded")

	opts.Hooks = &fakeHooks{known: map[string]bool{"burn_tick": true}}
	_, err = battle.NewSession(opts)
	assert.NoError(t, err)

	opts.Conditions = nil
	_, err = battle.NewSession(opts)
	assert.ErrorIs(t, err, battle.ErrMalformedEffect)
}

func TestSession_Victory(t *testing.T) {
	res := runBattle(t, options(
		[]combat.Combatant{unit("hero", 100, 10000)},
		[]combat.Combatant{unit("slime", 10, 0)}, 42))
	assert.Equal(t, battlelog.OutcomeVictory, res.Outcome)
	assert.Equal(t, 1, res.Turns)
	assert.Equal(t, []string{"hero"}, res.Survivors)
	assert.Equal(t, battlelog.OutcomeVictory, res.Log.Outcome())
}

func TestSession_Defeat(t *testing.T) {
	res := runBattle(t, options(
		[]combat.Combatant{unit("hero", 10, 0)},
		[]combat.Combatant{unit("ogre", 100, 10000)}, 42))
	assert.Equal(t, battlelog.OutcomeDefeat, res.Outcome)
	assert.Equal(t, []string{"ogre"}, res.Survivors)
}

func TestSession_TimeoutAtMaxTurns(t *testing.T) {
	party := []combat.Combatant{unit("hero", 1_000_000, 0)}
	enemies := []combat.Combatant{unit("wall", 1_000_000, 0)}

	res := runBattle(t, options(party, enemies, 3))
	assert.Equal(t, battlelog.OutcomeTimeout, res.Outcome)
	assert.Equal(t, config.MaxTurnCap, res.Turns)

	opts := options(party, enemies, 3)
	opts.Combat = combatCfg(5, 1, 50)
	res = runBattle(t, opts)
	assert.Equal(t, battlelog.OutcomeTimeout, res.Outcome)
	assert.Equal(t, 5, res.Turns)
}

func TestSession_Flee(t *testing.T) {
	runner := unit("hero", 100, 0)
	runner.Rates = combat.ActionRates{Flee: 1}
	enemies := []combat.Combatant{unit("wall", 100, 0)}

	opts := options([]combat.Combatant{runner}, enemies, 9)
	opts.Combat = combatCfg(20, 1, 100)
	res := runBattle(t, opts)
	assert.Equal(t, battlelog.OutcomeEscaped, res.Outcome)
	assert.Equal(t, 1, res.Turns)

	opts.Combat = combatCfg(3, 1, 0)
	res = runBattle(t, opts)
	assert.Equal(t, battlelog.OutcomeTimeout, res.Outcome)
	flees := actionsOf(res.Log, battlelog.ActionFlee)
	require.Len(t, flees, 3)
	for _, f := range flees {
		assert.True(t, f.Effects[0].Failed)
	}
}

func TestSession_StepAndResultLifecycle(t *testing.T) {
	opts := options([]combat.Combatant{unit("hero", 100, 10000)}, []combat.Combatant{unit("slime", 10, 0)}, 1)
	s, err := battle.NewSession(opts)
	require.NoError(t, err)
	assert.Equal(t, battle.StateNotStarted, s.State())

	_, err = s.Result()
	assert.ErrorIs(t, err, battle.ErrNotFinished)

	state, err := s.Step()
	require.NoError(t, err)
	assert.Equal(t, battle.StateVictory, state)
	assert.True(t, state.Terminal())

	_, err = s.Step()
	assert.ErrorIs(t, err, battle.ErrBattleOver)
	_, err = s.Snapshot()
	assert.ErrorIs(t, err, battle.ErrBattleOver)
}

func TestSession_RunHonoursCancellation(t *testing.T) {
	opts := options([]combat.Combatant{unit("hero", 1000, 0)}, []combat.Combatant{unit("wall", 1000, 0)}, 1)
	s, err := battle.NewSession(opts)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, battle.StateNotStarted, s.State(), "cancellation leaves the session resumable")

	res, err := s.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, battlelog.OutcomeTimeout, res.Outcome)
}

func TestSession_MutualCountersTerminate(t *testing.T) {
	counter := combat.Reaction{ID: "counter", Trigger: combat.TriggerPhysicalDamage, Target: combat.TargetAttacker, ChancePercent: 100}
	a := unit("a", 1_000_000, 0)
	a.Effects.Reactions = []combat.Reaction{counter}
	b := unit("b", 1_000_000, 0)
	b.Effects.Reactions = []combat.Reaction{counter}

	opts := options([]combat.Combatant{a}, []combat.Combatant{b}, 5)
	opts.Combat = combatCfg(3, 1, 50)
	sum := runBattle(t, opts).Log.Summarize()
	assert.Equal(t, 6, sum.Reactions, "each normal attack draws exactly one counter")
	assert.Equal(t, 1, sum.MaxDepth)

	opts.Combat = combatCfg(3, 0, 50)
	sum = runBattle(t, opts).Log.Summarize()
	assert.Zero(t, sum.Reactions, "depth 0 disables reactions")
}

func TestSession_FollowUpOnKill(t *testing.T) {
	hero := unit("hero", 100, 10000)
	hero.Effects.FollowUps = []combat.FollowUp{{ID: "chase", Condition: combat.FollowUpOnKill, ChancePercent: 100, DamageMultiplier: 1}}
	res := runBattle(t, options(
		[]combat.Combatant{hero},
		[]combat.Combatant{unit("imp1", 1, 0), unit("imp2", 1, 0)}, 11))

	assert.Equal(t, battlelog.OutcomeVictory, res.Outcome)
	assert.Equal(t, 1, res.Turns)
	sum := res.Log.Summarize()
	assert.Equal(t, 1, sum.FollowUps)
	assert.Equal(t, 1, sum.FollowUpsBy["hero"])
}

func TestSession_BreathHitsEveryOpponent(t *testing.T) {
	dragon := unit("dragon", 1000, 0)
	dragon.Rates = combat.ActionRates{Breath: 1}
	dragon.Scores.BreathDamage = 100
	res := runBattle(t, options(
		[]combat.Combatant{unit("p1", 50, 0), unit("p2", 50, 0)},
		[]combat.Combatant{dragon}, 8))

	assert.Equal(t, battlelog.OutcomeDefeat, res.Outcome)
	breaths := actionsOf(res.Log, battlelog.ActionBreath)
	require.Len(t, breaths, 1)
	require.Len(t, breaths[0].Effects, 2)
	for _, e := range breaths[0].Effects {
		assert.Equal(t, battlelog.EffectDamage, e.Kind)
		assert.Equal(t, "breath", e.DamageType)
		assert.Zero(t, e.RemainingHP)
	}
}

func TestSession_HealsWoundedAlly(t *testing.T) {
	healer := unit("healer", 100, 0)
	healer.Rates = combat.ActionRates{Magic: 1}
	healer.Spells = []string{"cure", "fire"}
	healer.Scores.MagicalHealing = 50
	ally := unit("ally", 100, 0)
	ally.CurrentHP = 10

	opts := options([]combat.Combatant{healer, ally}, []combat.Combatant{unit("wall", 1000, 0)}, 4)
	opts.Combat = combatCfg(1, 1, 50)
	res := runBattle(t, opts)

	specials := actionsOf(res.Log, battlelog.ActionSpecial)
	require.Len(t, specials, 1)
	assert.Equal(t, "cure", specials[0].Ref)
	require.Len(t, specials[0].Effects, 1)
	assert.Equal(t, battlelog.EffectHeal, specials[0].Effects[0].Kind)
	assert.Equal(t, "ally", specials[0].Effects[0].Target)
	assert.Equal(t, 50, specials[0].Effects[0].Amount)
}

func TestSession_ResurrectsFallenAlly(t *testing.T) {
	cleric := unit("cleric", 100, 0)
	cleric.Rates = combat.ActionRates{Magic: 1}
	cleric.Spells = []string{"raise"}
	fallen := unit("fallen", 100, 0)
	fallen.CurrentHP = 0

	opts := options([]combat.Combatant{cleric, fallen}, []combat.Combatant{unit("wall", 1000, 0)}, 4)
	opts.Combat = combatCfg(1, 1, 50)
	res := runBattle(t, opts)

	specials := actionsOf(res.Log, battlelog.ActionSpecial)
	require.Len(t, specials, 1)
	require.Len(t, specials[0].Effects, 1)
	assert.Equal(t, battlelog.EffectResurrect, specials[0].Effects[0].Kind)
	assert.Equal(t, 30, specials[0].Effects[0].Amount)
	assert.Contains(t, res.Survivors, "fallen")
}

func TestSession_ActionLockSkipsTurn(t *testing.T) {
	hero := unit("hero", 100, 10000)
	hero.Side = combat.SidePlayer
	wall := unit("wall", 100, 0)
	wall.Side = combat.SideEnemy
	snap := battle.Snapshot{
		RNGState: 77,
		Roster:   []combat.Combatant{hero, wall},
		Statuses: map[string][]condition.Entry{"hero": {{ID: "sleep", Stacks: 1, DurationRemaining: 1}}},
	}
	opts := options(nil, nil, 0)
	opts.Resume = &snap
	opts.Combat = combatCfg(1, 1, 50)
	res := runBattle(t, opts)

	assert.Equal(t, battlelog.OutcomeTimeout, res.Outcome, "the sleeping hero never swings")
	skips := actionsOf(res.Log, battlelog.ActionSkip)
	require.Len(t, skips, 1)
	assert.Equal(t, "hero", skips[0].Actor)

	var expired bool
	for _, a := range actionsOf(res.Log, battlelog.ActionUpkeep) {
		for _, e := range a.Effects {
			expired = expired || (e.Kind == battlelog.EffectStatusExpired && e.Status == "sleep")
		}
	}
	assert.True(t, expired)
}

type fakeHooks struct {
	known map[string]bool
	extra int
	calls int
	fail  bool
}

func (f *fakeHooks) HasHook(name string) bool { return f.known[name] }

func (f *fakeHooks) CallTick(hook string, hp, maxHP, stacks int) (int, error) {
	f.calls++
	if !f.known[hook] {
		return 0, fmt.Errorf("tick hook %q is not defined", hook)
	}
	if f.fail {
		return 0, fmt.Errorf("tick hook %q: runtime error", hook)
	}
	return min(hp, f.extra*stacks), nil
}

func burningSnapshot() battle.Snapshot {
	hero := unit("hero", 1000, 0)
	hero.Side = combat.SidePlayer
	wall := unit("wall", 1000, 0)
	wall.Side = combat.SideEnemy
	return battle.Snapshot{
		RNGState: 5,
		Roster:   []combat.Combatant{hero, wall},
		Statuses: map[string][]condition.Entry{"hero": {{ID: "burn", Stacks: 1, DurationRemaining: 2}}},
	}
}

func TestSession_ScriptedStatusTick(t *testing.T) {
	snap := burningSnapshot()
	hooks := &fakeHooks{known: map[string]bool{"burn_tick": true}, extra: 7}
	opts := options(nil, nil, 0)
	opts.Resume = &snap
	opts.Hooks = hooks
	opts.Combat = combatCfg(1, 1, 50)
	res := runBattle(t, opts)

	assert.Equal(t, 1, hooks.calls)
	var ticked int
	for _, a := range actionsOf(res.Log, battlelog.ActionUpkeep) {
		for _, e := range a.Effects {
			if e.Kind == battlelog.EffectStatusTick {
				ticked += e.Amount
			}
		}
	}
	assert.Equal(t, 10+7, ticked, "1% of 1000 plus the hook's contribution")
}

func TestSession_MissingTickHookIsMalformed(t *testing.T) {
	snap := burningSnapshot()
	opts := options(nil, nil, 0)
	opts.Resume = &snap
	_, err := battle.NewSession(opts)
	assert.ErrorIs(t, err, battle.ErrMalformedEffect, "no hooks at all")
	assert.ErrorContains(t, err, "burn_tick")

	opts.Hooks = &fakeHooks{known: map[string]bool{"freeze_tick": true}}
	_, err = battle.NewSession(opts)
	assert.ErrorIs(t, err, battle.ErrMalformedEffect, "hooks loaded without burn_tick")

	snap.Statuses["hero"] = []condition.Entry{{ID: "plague", Stacks: 1, DurationRemaining: 2}}
	_, err = battle.NewSession(opts)
	assert.ErrorIs(t, err, battle.ErrMalformedEffect, "unknown status")
}

func TestSession_FailedTurnAbortsSession(t *testing.T) {
	snap := burningSnapshot()
	opts := options(nil, nil, 0)
	opts.Resume = &snap
	opts.Hooks = &fakeHooks{known: map[string]bool{"burn_tick": true}, fail: true}
	opts.Combat = combatCfg(5, 1, 50)
	s, err := battle.NewSession(opts)
	require.NoError(t, err)

	state, first := s.Step()
	require.ErrorIs(t, first, battle.ErrMalformedEffect)
	assert.Equal(t, battle.StateInProgress, state)
	turn := s.Turn()
	before := s.Combatants()

	for j := 0; j < 3; j++ {
		state, err = s.Step()
		assert.Equal(t, first, err)
		assert.Equal(t, battle.StateInProgress, state)
	}
	assert.Equal(t, turn, s.Turn(), "no further turns are played")
	assert.Equal(t, before, s.Combatants())

	_, err = s.Run(context.Background())
	assert.ErrorIs(t, err, battle.ErrMalformedEffect)
	_, err = s.Result()
	assert.ErrorIs(t, err, battle.ErrNotFinished)
}

func TestSession_MagicReactionCriticalMultiplier(t *testing.T) {
	hero := unit("hero", 1_000_000, 1)
	mage := unit("mage", 1_000_000, 0)
	mage.Effects.MagicCriticalChancePercent = 10
	mage.Effects.Reactions = []combat.Reaction{{
		ID:                     "spell_counter",
		Trigger:                combat.TriggerPhysicalDamage,
		Target:                 combat.TargetAttacker,
		Mode:                   combat.DamageMagical,
		SpellID:                "fire",
		ChancePercent:          100,
		CriticalRateMultiplier: 10,
	}}
	opts := options([]combat.Combatant{hero}, []combat.Combatant{mage}, 3)
	opts.Combat = combatCfg(20, 1, 50)
	res := runBattle(t, opts)

	counters := actionsOf(res.Log, battlelog.ActionReaction)
	require.Len(t, counters, 20, "one counter per hero attack")
	for _, a := range counters {
		require.Equal(t, "mage", a.Actor)
		for _, e := range a.Effects {
			if e.Kind == battlelog.EffectDamage {
				assert.True(t, e.Critical, "a 10% magic critical chance scaled by 10 always lands")
			}
		}
	}
}

func TestSession_TurnOrder(t *testing.T) {
	mk := func(id string, agility int, firstStrike bool) combat.Combatant {
		c := unit(id, 1_000_000, 1)
		c.Attributes.Agility = agility
		c.Effects.FirstStrike = firstStrike
		return c
	}
	party := []combat.Combatant{
		mk("slow_striker", 5, true),
		mk("quick_striker", 10, true),
		mk("runner", 50, false),
	}
	enemies := []combat.Combatant{
		mk("brute", 30, false),
		mk("twin_a", 20, false),
		mk("twin_b", 20, false),
	}

	for seed := uint64(1); seed <= 8; seed++ {
		opts := options(party, enemies, seed)
		opts.Combat = combatCfg(1, 0, 50)
		res := runBattle(t, opts)

		// Luck 60 pins the speed roll at 1.0, so only the tiebreakers vary.
		// Each living combatant draws its speed then its tiebreaker in roster
		// order.
		rng := dice.NewSplitMix64(seed)
		tiebreak := map[string]float64{}
		for _, id := range []string{"slow_striker", "quick_striker", "runner", "brute", "twin_a", "twin_b"} {
			rng.Next()
			tiebreak[id] = rng.Float64()
		}
		twins := []string{"twin_a", "twin_b"}
		if tiebreak["twin_b"] > tiebreak["twin_a"] {
			twins = []string{"twin_b", "twin_a"}
		}
		want := append([]string{"quick_striker", "slow_striker", "runner", "brute"}, twins...)

		var got []string
		for _, a := range actionsOf(res.Log, battlelog.ActionPhysical) {
			got = append(got, a.Actor)
		}
		assert.Equal(t, want, got, "seed %d", seed)
	}
}

func TestSession_LogsStartAndFinish(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	opts := options([]combat.Combatant{unit("hero", 100, 10000)}, []combat.Combatant{unit("slime", 10, 0)}, 1)
	opts.Logger = zap.New(core)
	runBattle(t, opts)

	assert.Equal(t, 1, logs.FilterMessage("battle started").Len())
	finished := logs.FilterMessage("battle finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, "victory", finished[0].ContextMap()["outcome"])
	assert.Equal(t, "test", finished[0].ContextMap()["battle_id"])
}

func TestSession_InputsAreNotMutated(t *testing.T) {
	party := []combat.Combatant{unit("hero", 100, 10000)}
	enemies := []combat.Combatant{unit("slime", 10, 0)}
	runBattle(t, options(party, enemies, 1))
	assert.Equal(t, 10, enemies[0].CurrentHP)
	assert.Equal(t, 100, party[0].CurrentHP)
}

func mustJSON(t require.TestingT, v any) string {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return string(b)
}
