package rng

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Seeded is a provably-fair draw stream. Each block of 32 bytes is
// HMAC-SHA256(serverSeed, "clientSeed:nonce:block"); every float consumes 4 bytes.
// Anyone holding the revealed server seed can regenerate the same stream.
type Seeded struct {
	serverSeed string
	clientSeed string
	nonce      uint64
	block      uint64
	pos        int
	buf        [32]byte
	drawn      int
}

// NewSeeded starts a stream at block 0
func NewSeeded(serverSeed, clientSeed string, nonce uint64) *Seeded {
	s := &Seeded{serverSeed: serverSeed, clientSeed: clientSeed, nonce: nonce}
	s.fill()
	return s
}

func (s *Seeded) fill() {
	h := hmac.New(sha256.New, []byte(s.serverSeed))
	fmt.Fprintf(h, "%s:%d:%d", s.clientSeed, s.nonce, s.block)
	copy(s.buf[:], h.Sum(nil))
	s.pos = 0
}

func (s *Seeded) next() byte {
	if s.pos >= len(s.buf) {
		s.block++
		s.fill()
	}
	b := s.buf[s.pos]
	s.pos++
	return b
}

// Float64 returns the next draw in [0,1)
func (s *Seeded) Float64() float64 {
	s.drawn++
	var f float64
	div := 1.0
	for i := 0; i < 4; i++ {
		div *= 256
		f += float64(s.next()) / div
	}
	return f
}

// Drawn returns how many floats have been consumed
func (s *Seeded) Drawn() int {
	return s.drawn
}

// HashSeed returns the hex SHA-256 commitment published before a round
func HashSeed(serverSeed string) string {
	sum := sha256.Sum256([]byte(serverSeed))
	return hex.EncodeToString(sum[:])
}
