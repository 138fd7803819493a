// Package ledger defines the boundary between the ledger components and the
// external network: the Operation records every committed state change
// produces, and the ports that anchor, notarize, store and mint for them.
package ledger

import (
	"context"
	"encoding/json"
	"time"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	audit "crossledger/pkg/platform/audit"
)

// Transfer instructs the ledger to release funds held by the platform.
type Transfer struct {
	To     domain.Wallet `json:"to"`
	Amount uint64        `json:"amount"`
}

// Operation is a finalized state change awaiting submission. Its ID is the
// idempotency key for ledger replay.
type Operation struct {
	ID        domain.RecordID `json:"id"`
	Module    domain.Module   `json:"module"`
	Kind      audit.Action    `json:"kind"`
	RecordID  domain.RecordID `json:"record_id"`
	Actor     domain.Wallet   `json:"actor"`
	Payload   json.RawMessage `json:"payload"`
	Transfer  *Transfer       `json:"transfer,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Event returns the auditable copy of the operation published to the notary.
func (op Operation) Event(requestID string) audit.Event {
	ev := audit.Event{
		ID:        op.ID,
		Module:    op.Module,
		Action:    op.Kind,
		Category:  op.Kind.Category(),
		Actor:     op.Actor,
		Subject:   op.RecordID.String(),
		Timestamp: op.CreatedAt,
		RequestID: requestID,
	}
	if op.Transfer != nil {
		ev.Amount = op.Transfer.Amount
		ev.Details = map[string]string{"beneficiary": op.Transfer.To.String()}
	}
	return ev
}

// NewOperation snapshots record as the operation payload.
func NewOperation(id domain.RecordID, module domain.Module, kind audit.Action, recordID domain.RecordID, actor domain.Wallet, at time.Time, record any) (Operation, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return Operation{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode operation payload")
	}
	return Operation{
		ID:        id,
		Module:    module,
		Kind:      kind,
		RecordID:  recordID,
		Actor:     actor,
		Payload:   payload,
		CreatedAt: at,
	}, nil
}

// Recorder accepts finalized operations inside a component transaction.
// Implementations must not perform external I/O.
type Recorder interface {
	Enqueue(ctx context.Context, op Operation) error
}
