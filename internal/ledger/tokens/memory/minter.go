// Package memory mints certificate tokens in process memory.
package memory

import (
	"context"
	"sync"

	"crossledger/internal/ledger"
)

// Token is a minted certificate.
type Token struct {
	Class    ledger.TokenClass
	Serial   uint64
	Metadata []byte
}

// Minter assigns serials per class starting at 1.
type Minter struct {
	mu     sync.Mutex
	serial map[ledger.TokenClass]uint64
	tokens []Token
}

func New() *Minter {
	return &Minter{serial: make(map[ledger.TokenClass]uint64)}
}

func (m *Minter) Mint(_ context.Context, class ledger.TokenClass, metadata []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serial[class]++
	n := m.serial[class]
	m.tokens = append(m.tokens, Token{Class: class, Serial: n, Metadata: append([]byte(nil), metadata...)})
	return n, nil
}

// Minted returns tokens of class in mint order.
func (m *Minter) Minted(class ledger.TokenClass) []Token {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Token
	for _, t := range m.tokens {
		if t.Class == class {
			out = append(out, t)
		}
	}
	return out
}
