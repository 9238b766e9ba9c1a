// Package id provides sortable identifier generation for entities that
// benefit from creation-time ordering (sessions, audit rows).
package id

import (
	"crypto/rand"
	"encoding/binary"
	"time"
)

// Crockford's Base32 alphabet (excludes I, L, O, U to avoid confusion).
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewULID generates a 26-character ULID: a 48-bit millisecond timestamp
// followed by 80 bits of randomness, both Base32-encoded. The timestamp
// prefix makes IDs lexicographically sortable by creation time.
func NewULID() string {
	ms := uint64(time.Now().UnixMilli())

	random := make([]byte, 10)
	if _, err := rand.Read(random); err != nil {
		// Degraded but functional fallback when the CSPRNG is unavailable.
		binary.BigEndian.PutUint64(random[:8], uint64(time.Now().UnixNano()))
	}

	var out [26]byte

	// 48-bit timestamp packs into 10 Base32 characters.
	for i := 0; i < 10; i++ {
		shift := uint(45 - i*5)
		out[i] = alphabet[(ms>>shift)&0x1F]
	}

	// 80 random bits pack into 16 characters; walk the bytes as a
	// continuous bit stream, 5 bits at a time.
	var acc uint32
	bits := 0
	pos := 10
	for _, b := range random {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[pos] = alphabet[(acc>>uint(bits))&0x1F]
			pos++
		}
	}

	return string(out[:])
}
