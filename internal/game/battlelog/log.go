// Package battlelog records the ordered, replayable history of one battle.
//
// The Recorder is the write side owned by the turn engine. Once End is called the
// Recorder is sealed and the returned Log is the read-only view handed to
// collaborators.
package battlelog

import (
	"encoding/json"
	"slices"
)

// Effect is one atomic consequence of resolving an action.
type Effect struct {
	Kind       EffectKind `json:"kind"`
	Target     string     `json:"target"`
	Amount     int        `json:"amount,omitempty"`
	Critical   bool       `json:"critical,omitempty"`
	Hit        int        `json:"hit,omitempty"`
	DamageType string     `json:"damage_type,omitempty"`
	Status     string     `json:"status,omitempty"`
	Mitigation string     `json:"mitigation,omitempty"`
	// Failed marks an attempt that did not succeed, e.g. a failed flee.
	Failed bool `json:"failed,omitempty"`
	// RemainingHP is the target's HP after the effect.
	RemainingHP int `json:"remaining_hp"`
}

// Declaration is the chosen action of one combatant.
//
// Ref names the spell, reaction or follow-up behind the action. Depth is the
// reaction depth the action resolved at; normal actions are depth 0.
type Declaration struct {
	Kind    ActionKind `json:"kind"`
	Actor   string     `json:"actor"`
	Targets []string   `json:"targets,omitempty"`
	Ref     string     `json:"ref,omitempty"`
	Depth   int        `json:"depth,omitempty"`
}

// ActionEntry is a Declaration with its resolved effects, in resolution order.
type ActionEntry struct {
	Declaration
	Effects []Effect `json:"effects"`

	rec *Recorder
}

// Add appends an effect to the action.
//
// Precondition: the owning Recorder has not been ended.
func (a *ActionEntry) Add(e Effect) {
	a.rec.mustBeOpen()
	a.Effects = append(a.Effects, e)
}

// Entry is one element of the battle log.
type Entry struct {
	Kind    EntryKind    `json:"kind"`
	Turn    int          `json:"turn"`
	Action  *ActionEntry `json:"action,omitempty"`
	Outcome *Outcome     `json:"outcome,omitempty"`
}

// Recorder is the append-only write side of a battle log.
// It is not safe for concurrent use; one battle session owns it.
type Recorder struct {
	entries []Entry
	ended   bool
}

// NewRecorder returns an empty, open Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) mustBeOpen() {
	if r.ended {
		panic("battlelog: write after End")
	}
}

// TurnStart appends a turn-start marker.
func (r *Recorder) TurnStart(turn int) {
	r.mustBeOpen()
	r.entries = append(r.entries, Entry{Kind: EntryTurnStart, Turn: turn})
}

// Action appends an action entry for turn and returns it for effect recording.
func (r *Recorder) Action(turn int, d Declaration) *ActionEntry {
	r.mustBeOpen()
	a := &ActionEntry{Declaration: d, rec: r}
	a.Targets = slices.Clone(d.Targets)
	r.entries = append(r.entries, Entry{Kind: EntryAction, Turn: turn, Action: a})
	return a
}

// TurnEnd appends a turn-end marker.
func (r *Recorder) TurnEnd(turn int) {
	r.mustBeOpen()
	r.entries = append(r.entries, Entry{Kind: EntryTurnEnd, Turn: turn})
}

// End appends the battle-end marker, seals the recorder and returns the
// read-only log.
//
// Postcondition: every later write through r or its ActionEntries panics.
func (r *Recorder) End(outcome Outcome, turns int) *Log {
	r.mustBeOpen()
	o := outcome
	r.entries = append(r.entries, Entry{Kind: EntryBattleEnd, Turn: turns, Outcome: &o})
	r.ended = true
	return &Log{entries: r.entries, outcome: outcome, turns: turns}
}

// Len returns the number of entries recorded so far.
func (r *Recorder) Len() int { return len(r.entries) }

// Log is the immutable record of a finished battle.
type Log struct {
	entries []Entry
	outcome Outcome
	turns   int
}

// Outcome returns the terminal outcome tag.
func (l *Log) Outcome() Outcome { return l.outcome }

// Turns returns the number of resolved turns.
func (l *Log) Turns() int { return l.turns }

// Entries returns a deep copy of every entry in order.
func (l *Log) Entries() []Entry {
	out := make([]Entry, len(l.entries))
	for i, e := range l.entries {
		out[i] = e
		if e.Action != nil {
			a := e.Action.clone()
			out[i].Action = &a
		}
		if e.Outcome != nil {
			o := *e.Outcome
			out[i].Outcome = &o
		}
	}
	return out
}

// Actions returns a copy of every action entry in order.
func (l *Log) Actions() []ActionEntry {
	var out []ActionEntry
	for _, e := range l.entries {
		if e.Action != nil {
			out = append(out, e.Action.clone())
		}
	}
	return out
}

func (a *ActionEntry) clone() ActionEntry {
	return ActionEntry{
		Declaration: Declaration{
			Kind:    a.Kind,
			Actor:   a.Actor,
			Targets: slices.Clone(a.Targets),
			Ref:     a.Ref,
			Depth:   a.Depth,
		},
		Effects: slices.Clone(a.Effects),
	}
}

// MarshalJSON encodes the whole log with enum names.
func (l *Log) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Outcome Outcome `json:"outcome"`
		Turns   int     `json:"turns"`
		Entries []Entry `json:"entries"`
	}{l.outcome, l.turns, l.entries})
}
