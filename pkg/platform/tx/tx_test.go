package tx

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "crossledger/pkg/domain-errors"
)

func TestSerial_SerializesOperations(t *testing.T) {
	runner := NewSerial()
	counter := 0

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = runner.RunInTx(context.Background(), func(context.Context) error {
				v := counter
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
}

func TestSerial_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := NewSerial().RunInTx(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeTimeout))
	assert.False(t, called)
}

func TestFrom_Empty(t *testing.T) {
	_, ok := From(WithTx(context.Background(), nil))
	assert.False(t, ok)
}

// fakeTx records how a transaction ended; other pgx.Tx methods are unused.
type fakeTx struct {
	pgx.Tx
	committed, rolledBack bool
}

func (f *fakeTx) Commit(context.Context) error {
	f.committed = true
	return nil
}

func (f *fakeTx) Rollback(context.Context) error {
	if f.committed || f.rolledBack {
		return pgx.ErrTxClosed
	}
	f.rolledBack = true
	return nil
}

type fakeBeginner struct {
	begun []*fakeTx
}

func (b *fakeBeginner) Begin(context.Context) (pgx.Tx, error) {
	tx := &fakeTx{}
	b.begun = append(b.begun, tx)
	return tx, nil
}

func TestPostgres_RunInTx(t *testing.T) {
	t.Run("commits and exposes the transaction", func(t *testing.T) {
		db := &fakeBeginner{}
		var seen pgx.Tx
		err := NewPostgres(db).RunInTx(context.Background(), func(txCtx context.Context) error {
			var ok bool
			seen, ok = From(txCtx)
			require.True(t, ok)
			return nil
		})
		require.NoError(t, err)
		require.Len(t, db.begun, 1)
		assert.Same(t, db.begun[0], seen)
		assert.True(t, db.begun[0].committed)
	})

	t.Run("rolls back on error", func(t *testing.T) {
		db := &fakeBeginner{}
		boom := errors.New("boom")
		err := NewPostgres(db).RunInTx(context.Background(), func(context.Context) error { return boom })
		require.ErrorIs(t, err, boom)
		require.Len(t, db.begun, 1)
		assert.True(t, db.begun[0].rolledBack)
		assert.False(t, db.begun[0].committed)
	})

	t.Run("joins a transaction already on ctx", func(t *testing.T) {
		outer := &fakeTx{}
		db := &fakeBeginner{}
		err := NewPostgres(db).RunInTx(WithTx(context.Background(), outer), func(txCtx context.Context) error {
			inner, ok := From(txCtx)
			require.True(t, ok)
			assert.Same(t, outer, inner)
			return nil
		})
		require.NoError(t, err)
		assert.Empty(t, db.begun)
		assert.False(t, outer.committed, "the owner of the outer transaction commits it")
	})
}
