package models

import (
	"time"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
)

// Status is the lifecycle state of a cross-module transaction.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// transitions lists the moves Advance may make. Completion goes through
// Complete so the registry counter is updated with it.
var transitions = map[Status][]Status{
	StatusPending:    {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusFailed, StatusCancelled},
}

func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// CanAdvanceTo reports whether Advance may move s to next.
func (s Status) CanAdvanceTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Transaction is a multi-module business transaction started by a verified
// entity.
type Transaction struct {
	ID        domain.RecordID  `json:"id"`
	Initiator domain.Wallet    `json:"initiator"`
	Modules   domain.ModuleSet `json:"modules"`
	Status    Status           `json:"status"`
	Value     uint64           `json:"value"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func NewTransaction(id domain.RecordID, initiator domain.Wallet, modules domain.ModuleSet, value uint64, now time.Time) (*Transaction, error) {
	if initiator.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "initiator is required")
	}
	if len(modules) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "at least one module is required")
	}
	return &Transaction{
		ID:        id,
		Initiator: initiator,
		Modules:   modules.Clone(),
		Status:    StatusPending,
		Value:     value,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Advance moves the transaction to next if the lifecycle allows it.
func (t *Transaction) Advance(next Status, now time.Time) error {
	if !t.Status.CanAdvanceTo(next) {
		return dErrors.Newf(dErrors.CodeInvalidState, "cannot move transaction from %s to %s", t.Status, next)
	}
	t.Status = next
	t.UpdatedAt = now
	return nil
}

// Complete finishes a processing transaction.
func (t *Transaction) Complete(now time.Time) error {
	if t.Status != StatusProcessing {
		return dErrors.Newf(dErrors.CodeInvalidState, "transaction is %s, not processing", t.Status)
	}
	t.Status = StatusCompleted
	t.UpdatedAt = now
	return nil
}

func (t *Transaction) Clone() *Transaction {
	c := *t
	c.Modules = t.Modules.Clone()
	return &c
}
