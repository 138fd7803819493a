// Package idgen derives record identifiers from their content.
//
// An id is Keccak-256 over the actor, the record kind, the semantic fields,
// the request timestamp and a per-generator sequence number. The sequence
// keeps ids unique when the same actor submits identical fields within one
// clock tick.
package idgen

import (
	"encoding/binary"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/crypto/sha3"

	"crossledger/pkg/domain"
)

// Generator issues ids for one component. Each component owns its own
// generator so sequences never interleave across record families.
type Generator struct {
	namespace string
	seq       atomic.Uint64
}

// New returns a generator whose ids are scoped by namespace.
func New(namespace string) *Generator {
	return &Generator{namespace: namespace}
}

// Next derives a fresh id. Fields are rendered with %v and length-prefixed
// so ("ab","c") and ("a","bc") hash differently.
func (g *Generator) Next(actor domain.Wallet, kind string, at time.Time, fields ...any) domain.RecordID {
	seq := g.seq.Add(1)

	h := sha3.NewLegacyKeccak256()
	writePart(h, []byte(g.namespace))
	writePart(h, []byte(actor))
	writePart(h, []byte(kind))
	for _, f := range fields {
		writePart(h, []byte(fmt.Sprint(f)))
	}

	var tail [16]byte
	binary.BigEndian.PutUint64(tail[:8], uint64(at.UnixNano()))
	binary.BigEndian.PutUint64(tail[8:], seq)
	h.Write(tail[:])

	var id domain.RecordID
	copy(id[:], h.Sum(nil))
	return id
}

// Sequence returns the number of ids issued so far.
func (g *Generator) Sequence() uint64 {
	return g.seq.Load()
}

type writer interface {
	Write(p []byte) (int, error)
}

func writePart(w writer, p []byte) {
	var n [4]byte
	binary.BigEndian.PutUint32(n[:], uint32(len(p)))
	_, _ = w.Write(n[:])
	_, _ = w.Write(p)
}

// Derive hashes parts without a sequence. Use it only for keys that are
// already unique, such as a wallet's entity record.
func Derive(parts ...string) domain.RecordID {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		writePart(h, []byte(p))
	}
	var id domain.RecordID
	copy(id[:], h.Sum(nil))
	return id
}
