// Package documents holds the content-addressed DocumentStore adapters.
package documents

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"crossledger/internal/ledger"
	dErrors "crossledger/pkg/domain-errors"
)

const handlePrefix = "sha256:"

// HandleFor returns the content address of blob. Storing the same blob twice
// yields the same handle.
func HandleFor(blob []byte) ledger.DocumentHandle {
	sum := sha256.Sum256(blob)
	return ledger.DocumentHandle(handlePrefix + hex.EncodeToString(sum[:]))
}

// Validate rejects handles that no adapter could have issued.
func Validate(h ledger.DocumentHandle) error {
	digest, ok := strings.CutPrefix(string(h), handlePrefix)
	if !ok || len(digest) != sha256.Size*2 {
		return dErrors.Newf(dErrors.CodeInvalidInput, "malformed document handle %q", h)
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return dErrors.Newf(dErrors.CodeInvalidInput, "malformed document handle %q", h)
	}
	return nil
}
