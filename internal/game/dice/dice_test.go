package dice_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/epika/internal/game/dice"
)

// scriptedStream replays fixed Intn and Float64 values in order and counts draws.
type scriptedStream struct {
	ints   []int
	floats []float64
	draws  int
}

func (s *scriptedStream) Intn(n int) int {
	s.draws++
	v := s.ints[0]
	s.ints = s.ints[1:]
	if v >= n {
		return n - 1
	}
	return v
}

func (s *scriptedStream) Float64() float64 {
	s.draws++
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func TestSplitMix64_ReferenceVector(t *testing.T) {
	s := dice.NewSplitMix64(0)
	assert.Equal(t, uint64(0xe220a8397b1dcdaf), s.Next())
	assert.Equal(t, uint64(0x6e789e6aa1b965f4), s.Next())
	assert.Equal(t, uint64(0x06c45d188009454f), s.Next())
}

func TestSplitMix64_CaptureRestore(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		skip := rapid.IntRange(0, 50).Draw(rt, "skip")
		s := dice.NewSplitMix64(seed)
		for i := 0; i < skip; i++ {
			s.Next()
		}
		captured := s.State()
		want := []uint64{s.Next(), s.Next(), s.Next()}

		resumed := dice.NewSplitMix64(0)
		resumed.Restore(captured)
		got := []uint64{resumed.Next(), resumed.Next(), resumed.Next()}
		assert.Equal(rt, want, got)
	})
}

func TestSplitMix64_SameSeedSameStream(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Uint64().Draw(rt, "seed")
		a, b := dice.NewSplitMix64(seed), dice.NewSplitMix64(seed)
		for i := 0; i < 20; i++ {
			assert.Equal(rt, a.Next(), b.Next())
		}
	})
}

func TestSplitMix64_IntnAndFloat64InRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := dice.NewSplitMix64(rapid.Uint64().Draw(rt, "seed"))
		n := rapid.IntRange(1, 10_000).Draw(rt, "n")
		v := s.Intn(n)
		assert.GreaterOrEqual(rt, v, 0)
		assert.Less(rt, v, n)
		f := s.Float64()
		assert.GreaterOrEqual(rt, f, 0.0)
		assert.Less(rt, f, 1.0)
	})
}

func TestSplitMix64_IntnPanicsOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewSplitMix64(1).Intn(0) })
}

func TestStatMultiplier_LuckPlateau(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		luck := rapid.IntRange(60, 1000).Draw(rt, "luck")
		s := dice.NewSplitMix64(rapid.Uint64().Draw(rt, "seed"))
		before := s.State()
		assert.Equal(rt, 1.0, dice.StatMultiplier(s, luck))
		assert.NotEqual(rt, before, s.State(), "the draw is consumed even on the plateau")
	})
}

func TestStatMultiplier_Bounds(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		luck := rapid.IntRange(-100, 59).Draw(rt, "luck")
		s := dice.NewSplitMix64(rapid.Uint64().Draw(rt, "seed"))
		lower := float64(dice.ClampInt(40+luck, 0, 100)) / 100
		v := dice.StatMultiplier(s, luck)
		assert.GreaterOrEqual(rt, v, lower)
		assert.LessOrEqual(rt, v, 1.0)
	})
}

func TestStatMultiplier_LowestDraw(t *testing.T) {
	s := &scriptedStream{ints: []int{0}}
	assert.InDelta(t, 0.45, dice.StatMultiplier(s, 5), 1e-9)
	assert.Equal(t, 1, s.draws)
}

func TestSpeedMultiplier_WiderThanStat(t *testing.T) {
	// luck 35: stat lower bound 75, speed lower bound 50.
	stat := dice.StatMultiplier(&scriptedStream{ints: []int{0}}, 35)
	speed := dice.SpeedMultiplier(&scriptedStream{ints: []int{0}}, 35)
	assert.InDelta(t, 0.75, stat, 1e-9)
	assert.InDelta(t, 0.50, speed, 1e-9)
}

func TestSpeedMultiplier_LowLuckFullRange(t *testing.T) {
	s := &scriptedStream{ints: []int{0}}
	assert.Equal(t, 0.0, dice.SpeedMultiplier(s, 0))
}

func TestPercentChance_Saturation(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		s := dice.NewSplitMix64(rapid.Uint64().Draw(rt, "seed"))
		before := s.State()
		assert.False(rt, dice.PercentChance(s, rapid.Float64Range(-500, 0).Draw(rt, "low")))
		assert.True(rt, dice.PercentChance(s, rapid.Float64Range(100, 500).Draw(rt, "high")))
		after := dice.NewSplitMix64(before)
		after.Next()
		after.Next()
		assert.Equal(rt, after.State(), s.State(), "each call consumes exactly one draw")
	})
}

func TestPercentChance_Boundary(t *testing.T) {
	// draw is Intn(100)+1, so Intn=9 → 10.
	assert.True(t, dice.PercentChance(&scriptedStream{ints: []int{9}}, 10))
	assert.False(t, dice.PercentChance(&scriptedStream{ints: []int{10}}, 10))
}

func TestProbability(t *testing.T) {
	assert.True(t, dice.Probability(&scriptedStream{floats: []float64{0.25}}, 0.3))
	assert.False(t, dice.Probability(&scriptedStream{floats: []float64{0.3}}, 0.3))
	assert.False(t, dice.Probability(&scriptedStream{floats: []float64{0}}, 0))
	assert.True(t, dice.Probability(&scriptedStream{floats: []float64{0.99}}, 1))
}

func TestUniform(t *testing.T) {
	v := dice.Uniform(&scriptedStream{floats: []float64{0.5}}, 0, 10000)
	assert.Equal(t, 5000.0, v)
}

func TestRollResult_Total(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, 12, r.Total())
	assert.Equal(t, "2d6+3 → [4 5] +3 = 12", r.String())
}

func TestRollResult_String_PanicsOnEmptyExpression(t *testing.T) {
	assert.Panics(t, func() { _ = dice.RollResult{Dice: []int{1}}.String() })
}

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want dice.Expression
	}{
		{"d3", dice.Expression{Raw: "d3", Count: 1, Sides: 3}},
		{"2d6", dice.Expression{Raw: "2d6", Count: 2, Sides: 6}},
		{"1d3+1", dice.Expression{Raw: "1d3+1", Count: 1, Sides: 3, Modifier: 1}},
		{"1d4-1", dice.Expression{Raw: "1d4-1", Count: 1, Sides: 4, Modifier: -1}},
		{"2", dice.Expression{Raw: "2", Modifier: 2}},
	}
	for _, tc := range tests {
		got, err := dice.Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "xd6", "0d6", "1d0", "1d6+x", "-3"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, in)
	}
}

func TestRoller_LogsRoll(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	roller := dice.NewLoggedRoller(dice.NewSplitMix64(7), zap.New(core))
	res, err := roller.RollExpr("3d4+1")
	require.NoError(t, err)
	require.Len(t, res.Dice, 3)
	for _, d := range res.Dice {
		assert.GreaterOrEqual(t, d, 1)
		assert.LessOrEqual(t, d, 4)
	}
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "dice roll", logs.All()[0].Message)
}

func TestNewSeed(t *testing.T) {
	a, err := dice.NewSeed()
	require.NoError(t, err)
	b, err := dice.NewSeed()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
