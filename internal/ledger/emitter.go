package ledger

import (
	"context"
	"fmt"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	audit "crossledger/pkg/platform/audit"
	"crossledger/pkg/platform/idgen"
	"crossledger/pkg/requestcontext"
)

// Emitter builds operations for one module and hands them to the Recorder.
// It is called inside the module's transaction.
type Emitter struct {
	module   domain.Module
	ids      *idgen.Generator
	recorder Recorder
}

// NewEmitter returns an emitter for module. Operation ids come from ids so
// they share the module's sequence.
func NewEmitter(module domain.Module, ids *idgen.Generator, recorder Recorder) *Emitter {
	return &Emitter{module: module, ids: ids, recorder: recorder}
}

// Emit snapshots record and enqueues it as a kind operation. A non-nil
// transfer makes the operation release funds when anchored.
func (e *Emitter) Emit(ctx context.Context, kind audit.Action, recordID domain.RecordID, actor domain.Wallet, record any, transfer *Transfer) (Operation, error) {
	now := requestcontext.Now(ctx)
	opID := e.ids.Next(actor, "op:"+string(kind), now, recordID)
	op, err := NewOperation(opID, e.module, kind, recordID, actor, now, record)
	if err != nil {
		return Operation{}, err
	}
	op.Transfer = transfer
	if e.recorder == nil {
		return op, nil
	}
	if err := e.recorder.Enqueue(ctx, op); err != nil {
		return Operation{}, dErrors.Wrap(fmt.Errorf("enqueue %s: %w", kind, err), dErrors.CodeInternal, "failed to record operation")
	}
	return op, nil
}

// NewRecordID derives a fresh record id from the module's generator.
func (e *Emitter) NewRecordID(ctx context.Context, actor domain.Wallet, kind string, fields ...any) domain.RecordID {
	return e.ids.Next(actor, kind, requestcontext.Now(ctx), fields...)
}
