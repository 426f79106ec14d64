package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/epika/internal/config"
	"github.com/cory-johannsen/epika/internal/game/battle"
	"github.com/cory-johannsen/epika/internal/game/battlelog"
	"github.com/cory-johannsen/epika/internal/game/condition"
	"github.com/cory-johannsen/epika/internal/game/dice"
	"github.com/cory-johannsen/epika/internal/scenario"
	"github.com/cory-johannsen/epika/internal/scripting"
)

// Report is the output of one simulated battle.
type Report struct {
	Run      int               `json:"run"`
	BattleID string            `json:"battle_id"`
	Seed     uint64            `json:"seed"`
	Summary  battlelog.Summary `json:"summary"`
	Log      *battlelog.Log    `json:"log"`
}

// logConditions reports the loaded condition IDs and warns about every scripted
// condition whose tick hook is missing; a battle that applies one fails.
func logConditions(reg *condition.Registry, hooks battle.TickHooks, logger *zap.Logger) {
	defs := reg.All()
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		ids = append(ids, def.ID)
		if def.LuaOnTick != "" && (hooks == nil || !hooks.HasHook(def.LuaOnTick)) {
			logger.Warn("condition tick hook not loaded",
				zap.String("condition", def.ID),
				zap.String("hook", def.LuaOnTick),
			)
		}
	}
	logger.Info("loaded conditions", zap.Strings("ids", ids))
}

// simulate loads content and the scenario, then runs cfg.Simulation.Runs
// battles with at most cfg.Simulation.Parallelism in flight. Run i uses seed+i.
//
// Precondition: cfg must be valid; logger must not be nil.
// Postcondition: Returns one report per run in run order, or the first error.
func simulate(ctx context.Context, cfg config.Config, scenarioPath string, seed uint64, logger *zap.Logger) ([]Report, error) {
	conditions, err := condition.LoadDirectory(cfg.Content.ConditionsDir)
	if err != nil {
		return nil, fmt.Errorf("loading conditions: %w", err)
	}

	var hooks battle.TickHooks
	if cfg.Content.ScriptsDir != "" {
		mgr := scripting.NewManager(logger)
		if err := mgr.Load(cfg.Content.ScriptsDir, cfg.Combat.ScriptInstructionLimit); err != nil {
			return nil, fmt.Errorf("loading status scripts: %w", err)
		}
		defer mgr.Close()
		hooks = mgr
	}
	logConditions(conditions, hooks, logger)

	doc, err := scenario.Load(scenarioPath)
	if err != nil {
		return nil, err
	}
	if seed == 0 {
		seed = doc.Seed
	}
	if seed == 0 {
		if seed, err = dice.NewSeed(); err != nil {
			return nil, err
		}
	}
	logger.Info("simulating scenario",
		zap.String("scenario", doc.Name),
		zap.Uint64("seed", seed),
		zap.Int("runs", cfg.Simulation.Runs),
	)

	reports := make([]Report, cfg.Simulation.Runs)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Simulation.Parallelism)
	for i := range reports {
		i := i
		runSeed := seed + uint64(i)
		g.Go(func() error {
			roster, err := doc.Build(runSeed, logger)
			if err != nil {
				return fmt.Errorf("run %d: building roster: %w", i, err)
			}
			s, err := battle.NewSession(battle.Options{
				Party:      roster.Party,
				Enemies:    roster.Enemies,
				Seed:       runSeed,
				Spells:     roster.Spells,
				Conditions: conditions,
				Hooks:      hooks,
				Combat:     &cfg.Combat,
				Logger:     logger,
			})
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			res, err := s.Run(gctx)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			reports[i] = Report{
				Run:      i,
				BattleID: s.ID(),
				Seed:     runSeed,
				Summary:  res.Log.Summarize(),
				Log:      res.Log,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return reports, nil
}
