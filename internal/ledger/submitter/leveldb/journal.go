// Package leveldb anchors operations in a local LevelDB journal. It stands
// in for the ledger network on single-node deployments.
//
// Key layout:
//
//	conf_<op id>      confirmation JSON
//	op_<op id>        operation JSON
//	seq_<height>      op id, zero-padded height for ordered scans
//	credit_<wallet>   running credited total (decimal)
//	height_latest     last assigned height
package leveldb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"crossledger/internal/ledger"
	"crossledger/pkg/domain"
	"crossledger/pkg/requestcontext"
)

const keyHeight = "height_latest"

// Journal is a LevelDB-backed Submitter.
type Journal struct {
	mu sync.Mutex
	db *leveldb.DB
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb journal %s: %w", path, err)
	}
	return &Journal{db: db}, nil
}

// New wraps an already opened database.
func New(db *leveldb.DB) *Journal {
	return &Journal{db: db}
}

func (j *Journal) Close() error {
	return j.db.Close()
}

// Submit writes the operation, its confirmation and any credit in one
// batch. Resubmitting an anchored id returns the stored confirmation.
func (j *Journal) Submit(ctx context.Context, op ledger.Operation) (ledger.Confirmation, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if c, ok, err := j.confirmation(op.ID); err != nil {
		return ledger.Confirmation{}, err
	} else if ok {
		c.Replayed = true
		return c, nil
	}

	height, err := j.height()
	if err != nil {
		return ledger.Confirmation{}, err
	}
	height++

	c := ledger.Confirmation{ID: uuid.NewString(), SubmittedAt: requestcontext.Now(ctx)}
	confJSON, err := json.Marshal(c)
	if err != nil {
		return ledger.Confirmation{}, fmt.Errorf("encode confirmation: %w", err)
	}
	opJSON, err := json.Marshal(op)
	if err != nil {
		return ledger.Confirmation{}, fmt.Errorf("encode operation: %w", err)
	}

	batch := new(leveldb.Batch)
	batch.Put([]byte("conf_"+op.ID.String()), confJSON)
	batch.Put([]byte("op_"+op.ID.String()), opJSON)
	batch.Put(seqKey(height), []byte(op.ID.String()))
	batch.Put([]byte(keyHeight), []byte(strconv.FormatUint(height, 10)))
	if op.Transfer != nil {
		credited, err := j.Credited(op.Transfer.To)
		if err != nil {
			return ledger.Confirmation{}, err
		}
		credited += op.Transfer.Amount
		batch.Put(creditKey(op.Transfer.To), []byte(strconv.FormatUint(credited, 10)))
	}
	if err := j.db.Write(batch, nil); err != nil {
		return ledger.Confirmation{}, fmt.Errorf("write journal batch: %w", err)
	}
	return c, nil
}

// Credited returns the total transferred to wallet.
func (j *Journal) Credited(wallet domain.Wallet) (uint64, error) {
	v, err := j.db.Get(creditKey(wallet), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read credit: %w", err)
	}
	return strconv.ParseUint(string(v), 10, 64)
}

// Operations returns anchored operations in submission order.
func (j *Journal) Operations() ([]ledger.Operation, error) {
	iter := j.db.NewIterator(util.BytesPrefix([]byte("seq_")), nil)
	defer iter.Release()

	var ops []ledger.Operation
	for iter.Next() {
		data, err := j.db.Get([]byte("op_"+string(iter.Value())), nil)
		if err != nil {
			return nil, fmt.Errorf("read operation %s: %w", iter.Value(), err)
		}
		var op ledger.Operation
		if err := json.Unmarshal(data, &op); err != nil {
			return nil, fmt.Errorf("decode operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return ops, nil
}

func (j *Journal) confirmation(id domain.RecordID) (ledger.Confirmation, bool, error) {
	data, err := j.db.Get([]byte("conf_"+id.String()), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return ledger.Confirmation{}, false, nil
	}
	if err != nil {
		return ledger.Confirmation{}, false, fmt.Errorf("read confirmation: %w", err)
	}
	var c ledger.Confirmation
	if err := json.Unmarshal(data, &c); err != nil {
		return ledger.Confirmation{}, false, fmt.Errorf("decode confirmation: %w", err)
	}
	return c, true, nil
}

func (j *Journal) height() (uint64, error) {
	v, err := j.db.Get([]byte(keyHeight), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read height: %w", err)
	}
	return strconv.ParseUint(string(v), 10, 64)
}

func seqKey(height uint64) []byte {
	return fmt.Appendf(nil, "seq_%020d", height)
}

func creditKey(w domain.Wallet) []byte {
	return []byte("credit_" + string(w))
}
