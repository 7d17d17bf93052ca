// Package idgen generates the high-entropy tokens used as client-ids and
// lock owner-ids throughout distkv. No ID-generation or UUID library
// appears anywhere in the retrieved corpus, so this is one of the
// deliberate standard-library exceptions (see DESIGN.md).
package idgen

import (
	"crypto/rand"
	"encoding/hex"
)

// New returns a fresh 128-bit token, hex-encoded, suitable for use as a
// client-id or lock owner-id. Two calls are distinct with overwhelming
// probability.
func New() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand.Read on the standard Reader does not fail in
		// practice on supported platforms; panicking here would make
		// every caller of New defensive for no real-world benefit, but
		// silently returning a non-random/degenerate id would violate the
		// "distinct with overwhelming probability" contract. Panic is the
		// correct failure mode for a broken entropy source.
		panic("idgen: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b[:])
}
