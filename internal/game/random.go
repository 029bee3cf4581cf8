package game

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand"
	"time"
)

// Rand is the randomness source used for tie-breaks. *math/rand.Rand
// satisfies it.
type Rand interface {
	Intn(n int) int
}

// NewRand returns a generator seeded from crypto/rand. The result is not
// safe for concurrent use; every room owns its own.
func NewRand() Rand {
	var b [8]byte
	seed := time.Now().UnixNano()
	if _, err := crand.Read(b[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return rand.New(rand.NewSource(seed))
}
