// Package roomid generates and validates room identifiers.
//
// A room id is 60 random bits rendered as 12 characters of Crockford's base32
// (lowercase, no i/l/o/u), short enough to read out loud or paste into a URL.
package roomid

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"strings"
)

// Crockford's base32, lowercase
const alphabet = "0123456789abcdefghjkmnpqrstvwxyz"

// Length is the number of characters in a room id.
const Length = 12

// RandSource allows injecting deterministic randomness in tests.
type RandSource interface {
	Uint64() uint64
}

// Generator produces room ids from a RandSource, or crypto/rand when nil.
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a generator; a nil source uses crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate returns a fresh room id backed by crypto/rand.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate returns a new room id.
func (g *Generator) Generate() string {
	return encode(g.bits())
}

func (g *Generator) bits() uint64 {
	if g.randSource != nil {
		return g.randSource.Uint64()
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	return binary.BigEndian.Uint64(buf[:])
}

// encode renders the low 60 bits of v, most significant group first.
func encode(v uint64) string {
	var out [Length]byte
	for i := Length - 1; i >= 0; i-- {
		out[i] = alphabet[v&0x1f]
		v >>= 5
	}
	return string(out[:])
}

// Validate checks that id has the shape of a generated room id.
func Validate(id string) error {
	if len(id) != Length {
		return fmt.Errorf("room ID must be exactly %d characters, got %d", Length, len(id))
	}

	for i, char := range id {
		if !strings.ContainsRune(alphabet, char) {
			return fmt.Errorf("invalid character %c at position %d", char, i)
		}
	}

	return nil
}
