package models

import (
	"time"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/idgen"
)

const (
	InitialReputation = 500
	MinReputation     = 0
	MaxReputation     = 1000
)

// Entity is a registered participant.
//
// Invariants:
//   - Wallet is non-zero and unique across the registry
//   - Modules is non-empty
//   - Reputation stays within [MinReputation, MaxReputation]
//   - Verified only ever moves false → true
//   - entities are never deleted
type Entity struct {
	Wallet            domain.Wallet     `json:"wallet"`
	Type              domain.EntityType `json:"type"`
	Modules           domain.ModuleSet  `json:"modules"`
	Reputation        int               `json:"reputation"`
	Verified          bool              `json:"verified"`
	TotalTransactions uint64            `json:"total_transactions"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewEntity validates and builds an unverified entity.
func NewEntity(wallet domain.Wallet, typ domain.EntityType, modules domain.ModuleSet, now time.Time) (*Entity, error) {
	if wallet.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "wallet is required")
	}
	if !typ.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown entity type %q", typ)
	}
	if len(modules) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one module is required")
	}
	return &Entity{
		Wallet:     wallet,
		Type:       typ,
		Modules:    modules.Clone(),
		Reputation: InitialReputation,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// CanVerify rejects a second verification.
func (e *Entity) CanVerify() error {
	if e.Verified {
		return dErrors.Newf(dErrors.CodeAlreadyVerified, "entity %s is already verified", e.Wallet)
	}
	return nil
}

func (e *Entity) ApplyVerification(now time.Time) {
	e.Verified = true
	e.UpdatedAt = now
}

// ApplyReputationDelta adds delta and clamps the result to the reputation
// bounds. Comparisons are made against the remaining headroom so extreme
// deltas cannot overflow.
func (e *Entity) ApplyReputationDelta(delta int64, now time.Time) {
	current := int64(e.Reputation)
	switch {
	case delta >= MaxReputation-current:
		e.Reputation = MaxReputation
	case delta <= MinReputation-current:
		e.Reputation = MinReputation
	default:
		e.Reputation = int(current + delta)
	}
	e.UpdatedAt = now
}

func (e *Entity) ApplyTransactionRecorded(now time.Time) {
	e.TotalTransactions++
	e.UpdatedAt = now
}

func (e *Entity) ApplyModules(modules domain.ModuleSet, now time.Time) {
	e.Modules = e.Modules.Union(modules)
	e.UpdatedAt = now
}

// Clone returns a deep copy safe to hand across component boundaries.
func (e *Entity) Clone() *Entity {
	c := *e
	c.Modules = e.Modules.Clone()
	return &c
}

// RecordID is the ledger record id of the entity owned by wallet. Wallets
// register once, so the id is derived from the wallet alone.
func RecordID(wallet domain.Wallet) domain.RecordID {
	return idgen.Derive("entity", string(wallet))
}
