// Package domain holds the value types shared by every ledger component:
// wallets, content-derived record ids, entity types and module names.
package domain

import (
	"encoding/hex"
	"strings"

	dErrors "crossledger/pkg/domain-errors"
)

// Wallet is the owner key of a participant. It is opaque to the core; both
// network account ids ("0.0.1234") and hex addresses are accepted.
type Wallet string

var zeroAddress = "0x" + strings.Repeat("0", 40)

// IsZero reports whether w is a null identity: empty, the zero account
// "0.0.0" or the zero hex address.
func (w Wallet) IsZero() bool {
	switch strings.TrimSpace(string(w)) {
	case "", "0.0.0", "0x", zeroAddress:
		return true
	}
	return false
}

func (w Wallet) String() string { return string(w) }

// ParseWallet trims and validates a wallet read at a trust boundary.
func ParseWallet(s string) (Wallet, error) {
	w := Wallet(strings.TrimSpace(s))
	if w.IsZero() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "wallet is required")
	}
	return w, nil
}

// RecordIDSize is the byte length of every record identifier.
const RecordIDSize = 32

// RecordID is a fixed-size content-derived identifier.
type RecordID [RecordIDSize]byte

// IsNil reports whether the id is all zeroes.
func (id RecordID) IsNil() bool {
	return id == RecordID{}
}

// String renders the id as 0x-prefixed lowercase hex.
func (id RecordID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// MarshalText implements encoding.TextMarshaler so ids serialize as hex.
func (id RecordID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. The zero id decodes,
// since optional references such as an uncovered visit's policy store it.
func (id *RecordID) UnmarshalText(b []byte) error {
	parsed, err := decodeRecordID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ParseRecordID decodes a hex id, with or without the 0x prefix, read at a
// trust boundary. The zero id is rejected.
func ParseRecordID(s string) (RecordID, error) {
	id, err := decodeRecordID(s)
	if err != nil {
		return id, err
	}
	if id.IsNil() {
		return id, dErrors.New(dErrors.CodeInvalidInput, "record id must not be zero")
	}
	return id, nil
}

func decodeRecordID(s string) (RecordID, error) {
	var id RecordID
	raw := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(raw) != RecordIDSize*2 {
		return id, dErrors.Newf(dErrors.CodeInvalidInput, "record id must be %d hex characters", RecordIDSize*2)
	}
	if _, err := hex.Decode(id[:], []byte(raw)); err != nil {
		return id, dErrors.Wrap(err, dErrors.CodeInvalidInput, "record id is not valid hex")
	}
	return id, nil
}
