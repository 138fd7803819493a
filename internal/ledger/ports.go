package ledger

import (
	"context"
	"time"
)

// Confirmation is the ledger's receipt for a submitted operation.
type Confirmation struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submitted_at"`
	// Replayed is true when the operation id was already anchored and the
	// original confirmation was returned.
	Replayed bool `json:"replayed"`
}

// Submitter anchors operations on the ledger network. Submit must be
// idempotent by Operation.ID: resubmitting returns the first confirmation.
type Submitter interface {
	Submit(ctx context.Context, op Operation) (Confirmation, error)
}

// DocumentHandle addresses a stored blob.
type DocumentHandle string

// DocumentStore keeps large payloads the core does not parse.
type DocumentStore interface {
	Put(ctx context.Context, blob []byte) (DocumentHandle, error)
	Get(ctx context.Context, handle DocumentHandle) ([]byte, error)
}

// InlineDocumentLimit is the largest payload kept inline on a record; larger
// payloads go to the DocumentStore.
const InlineDocumentLimit = 4 << 10

// TokenClass names a family of minted tokens.
type TokenClass string

const (
	TokenIdentity     TokenClass = "identity"
	TokenCarbonCredit TokenClass = "carbon_credit"
)

// TokenMinter mints certificate tokens and returns their serial number.
type TokenMinter interface {
	Mint(ctx context.Context, class TokenClass, metadata []byte) (uint64, error)
}
