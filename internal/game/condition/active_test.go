package condition_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/epika/internal/game/condition"
	"github.com/cory-johannsen/epika/internal/game/dice"
)

func curse() *condition.ConditionDef {
	return &condition.ConditionDef{ID: "curse", Name: "Curse", DurationType: condition.DurationPermanent}
}

func poison() *condition.ConditionDef {
	return &condition.ConditionDef{
		ID: "poison", Name: "Poison", DurationType: condition.DurationTurns,
		Duration: 3, MaxStacks: 4, TickDamagePercent: 5, ResidualHarm: true,
	}
}

func sleep() *condition.ConditionDef {
	return &condition.ConditionDef{ID: "sleep", Name: "Sleep", DurationType: condition.DurationTurns, Duration: 2, ActionLock: true}
}

// fixedStream returns the same float for every Float64 draw and counts draws.
type fixedStream struct {
	f     float64
	draws int
}

func (s *fixedStream) Intn(int) int       { s.draws++; return 0 }
func (s *fixedStream) Float64() float64 { s.draws++; return s.f }

func TestActiveSet_Apply_Permanent(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(curse(), 1, 5, false))
	assert.True(t, s.Has("curse"))
	assert.Equal(t, 1, s.Stacks("curse"))
	assert.Equal(t, -1, s.All()[0].DurationRemaining)
}

func TestActiveSet_Apply_DefaultDuration(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(poison(), 1, 0, false))
	assert.Equal(t, 3, s.All()[0].DurationRemaining)
}

func TestActiveSet_Apply_RefreshesWithoutStacking(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(poison(), 1, 2, false))
	require.NoError(t, s.Apply(poison(), 1, 5, false))
	assert.Equal(t, 1, s.Stacks("poison"))
	assert.Equal(t, 5, s.All()[0].DurationRemaining)

	require.NoError(t, s.Apply(poison(), 1, 1, false))
	assert.Equal(t, 5, s.All()[0].DurationRemaining, "refresh never shortens")
}

func TestActiveSet_Apply_StackableCapped(t *testing.T) {
	s := condition.NewActiveSet()
	for i := 0; i < 6; i++ {
		require.NoError(t, s.Apply(poison(), 1, 3, true))
	}
	assert.Equal(t, 4, s.Stacks("poison"))
}

func TestActiveSet_Apply_NilDef(t *testing.T) {
	s := condition.NewActiveSet()
	assert.Error(t, s.Apply(nil, 1, 1, false))
}

func TestActiveSet_Remove(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(poison(), 1, 3, false))
	require.NoError(t, s.Apply(sleep(), 1, 2, false))
	s.Remove("poison")
	s.Remove("poison")
	assert.False(t, s.Has("poison"))
	require.Len(t, s.All(), 1)
	assert.Equal(t, "sleep", s.All()[0].Def.ID)
}

func TestActiveSet_All_InsertionOrder(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(sleep(), 1, 2, false))
	require.NoError(t, s.Apply(curse(), 1, 0, false))
	require.NoError(t, s.Apply(poison(), 1, 3, false))
	var ids []string
	for _, ac := range s.All() {
		ids = append(ids, ac.Def.ID)
	}
	assert.Equal(t, []string{"sleep", "curse", "poison"}, ids)
}

func TestActiveSet_Tick_DamageAndExpiry(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(poison(), 1, 2, false))
	require.NoError(t, s.Apply(curse(), 1, 0, false))

	res := s.Tick(1000)
	require.Len(t, res, 2)
	assert.Equal(t, condition.TickResult{ID: "poison", Stacks: 1, Damage: 50, Def: res[0].Def}, res[0])
	assert.False(t, res[1].Expired)

	res = s.Tick(1000)
	assert.True(t, res[0].Expired)
	assert.False(t, s.Has("poison"))
	assert.True(t, s.Has("curse"), "permanent conditions never expire")
}

func TestActiveSet_Tick_ResidualFloor(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(poison(), 1, 3, false))
	res := s.Tick(10)
	assert.Equal(t, 1, res[0].Damage, "floor(10 × 5%) is 0, raised to 1")

	noResidual := poison()
	noResidual.ResidualHarm = false
	s2 := condition.NewActiveSet()
	require.NoError(t, s2.Apply(noResidual, 1, 3, false))
	assert.Equal(t, 0, s2.Tick(10)[0].Damage)
}

func TestActiveSet_Tick_ScalesWithStacks(t *testing.T) {
	s := condition.NewActiveSet()
	require.NoError(t, s.Apply(poison(), 3, 3, true))
	assert.Equal(t, 150, s.Tick(1000)[0].Damage)
}

func TestActiveSet_TryApply_Resistance(t *testing.T) {
	s := condition.NewActiveSet()
	r := &fixedStream{f: 0.4}

	ok, err := s.TryApply(sleep(), 100, 0.5, 0, false, r)
	require.NoError(t, err)
	assert.True(t, ok, "0.4 < 1.0 × 0.5")

	s.Clear()
	ok, err = s.TryApply(sleep(), 100, 0.3, 0, false, r)
	require.NoError(t, err)
	assert.False(t, ok, "0.4 >= 1.0 × 0.3")
	assert.False(t, s.Has("sleep"))
	assert.Equal(t, 2, r.draws)
}

func TestActiveSet_TryApply_ImmuneStillDraws(t *testing.T) {
	s := condition.NewActiveSet()
	r := &fixedStream{f: 0}
	ok, err := s.TryApply(sleep(), 100, 0, 0, false, r)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, r.draws)
}

func TestActiveSet_TryApply_DefaultChance(t *testing.T) {
	def := sleep()
	def.ChancePercent = 60
	s := condition.NewActiveSet()
	ok, err := s.TryApply(def, 0, 1, 0, false, &fixedStream{f: 0.59})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = condition.NewActiveSet().TryApply(def, 0, 1, 0, false, &fixedStream{f: 0.6})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPropertyActiveSet_TickTerminates(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := condition.NewActiveSet()
		r := dice.NewSplitMix64(rapid.Uint64().Draw(rt, "seed"))
		n := rapid.IntRange(1, 10).Draw(rt, "n")
		longest := 0
		for i := 0; i < n; i++ {
			d := rapid.IntRange(1, 6).Draw(rt, "duration")
			longest = max(longest, d)
			_, err := s.TryApply(poison(), 100, 1, d, rapid.Bool().Draw(rt, "stack"), r)
			require.NoError(rt, err)
		}
		for i := 0; i < longest; i++ {
			for _, res := range s.Tick(rapid.IntRange(1, 10000).Draw(rt, "maxHP")) {
				require.GreaterOrEqual(rt, res.Damage, 1)
			}
		}
		assert.Equal(rt, 0, s.Len())
	})
}
