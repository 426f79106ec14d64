package dice

const (
	splitMixGamma = 0x9E3779B97F4A7C15
	splitMixMul1  = 0xBF58476D1CE4E5B9
	splitMixMul2  = 0x94D049BB133111EB
)

// SplitMix64 is a seeded pseudo-random stream. Its entire internal state is a
// single uint64, so a stream can be captured with State and resumed with Restore
// at any draw boundary.
//
// Invariant: the sequence of values is a pure function of the seed and the
// number of draws taken so far.
type SplitMix64 struct {
	state uint64
}

// NewSplitMix64 returns a stream positioned at seed.
//
// Postcondition: State() == seed.
func NewSplitMix64(seed uint64) *SplitMix64 {
	return &SplitMix64{state: seed}
}

// Next advances the stream and returns the next 64-bit value.
func (s *SplitMix64) Next() uint64 {
	s.state += splitMixGamma
	z := s.state
	z = (z ^ (z >> 30)) * splitMixMul1
	z = (z ^ (z >> 27)) * splitMixMul2
	return z ^ (z >> 31)
}

// State returns the current internal state.
func (s *SplitMix64) State() uint64 { return s.state }

// Restore repositions the stream at a previously captured state.
//
// Postcondition: the following draws equal those that followed the capture.
func (s *SplitMix64) Restore(state uint64) { s.state = state }

// Intn returns a value in [0, n) from exactly one draw.
//
// Precondition: n > 0. Panics with "dice: Intn called with n <= 0" otherwise.
func (s *SplitMix64) Intn(n int) int {
	if n <= 0 {
		panic("dice: Intn called with n <= 0")
	}
	return int(s.Next() % uint64(n))
}

// Float64 returns a uniform value in [0, 1) from exactly one draw, using the top
// 53 bits of the next value.
func (s *SplitMix64) Float64() float64 {
	return float64(s.Next()>>11) / (1 << 53)
}
