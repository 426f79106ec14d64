package dice

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// NewSeed draws a fresh 64-bit seed from crypto/rand for sessions whose caller
// did not supply one.
//
// Postcondition: Returns a seed or a wrapped crypto/rand error.
func NewSeed() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("dice: reading random seed: %w", err)
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}
