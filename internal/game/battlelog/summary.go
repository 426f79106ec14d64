package battlelog

// Summary aggregates a finished log for reward calculation and reporting.
type Summary struct {
	Outcome      Outcome        `json:"outcome"`
	Turns        int            `json:"turns"`
	Actions      int            `json:"actions"`
	Reactions    int            `json:"reactions"`
	FollowUps    int            `json:"follow_ups"`
	TotalDamage  int            `json:"total_damage"`
	TotalHealing int            `json:"total_healing"`
	DamageDealt  map[string]int `json:"damage_dealt"`
	DamageTaken  map[string]int `json:"damage_taken"`
	// NormalActions counts, per actor, actions that are neither reactions nor follow-ups.
	NormalActions map[string]int `json:"normal_actions"`
	FollowUpsBy   map[string]int `json:"follow_ups_by"`
	MaxDepth      int            `json:"max_depth"`
}

// Summarize walks the log once and returns its aggregates. Damage from status
// ticks and self-damage is attributed to the target only.
func (l *Log) Summarize() Summary {
	s := Summary{
		Outcome:       l.outcome,
		Turns:         l.turns,
		DamageDealt:   make(map[string]int),
		DamageTaken:   make(map[string]int),
		NormalActions: make(map[string]int),
		FollowUpsBy:   make(map[string]int),
	}
	for _, e := range l.entries {
		a := e.Action
		if a == nil {
			continue
		}
		if a.Kind != ActionUpkeep {
			s.Actions++
		}
		s.MaxDepth = max(s.MaxDepth, a.Depth)
		switch a.Kind {
		case ActionReaction:
			s.Reactions++
		case ActionFollowUp:
			s.FollowUps++
			s.FollowUpsBy[a.Actor]++
		case ActionSkip, ActionUpkeep:
		default:
			s.NormalActions[a.Actor]++
		}
		for _, eff := range a.Effects {
			switch eff.Kind {
			case EffectDamage:
				s.TotalDamage += eff.Amount
				s.DamageDealt[a.Actor] += eff.Amount
				s.DamageTaken[eff.Target] += eff.Amount
			case EffectStatusTick, EffectSelfDamage:
				s.TotalDamage += eff.Amount
				s.DamageTaken[eff.Target] += eff.Amount
			case EffectHeal, EffectRegenerate:
				s.TotalHealing += eff.Amount
			}
		}
	}
	return s
}
