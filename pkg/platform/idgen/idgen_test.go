package idgen

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossledger/pkg/domain"
)

func TestNext_IdenticalInputsSameInstantDiffer(t *testing.T) {
	g := New("agriculture")
	at := time.Unix(1_700_000_000, 0)

	a := g.Next("0.0.1001", "harvest", at, "coffee", 500, 4)
	b := g.Next("0.0.1001", "harvest", at, "coffee", 500, 4)

	assert.NotEqual(t, a, b)
	assert.False(t, a.IsNil())
	assert.Equal(t, uint64(2), g.Sequence())
}

func TestNext_FieldBoundariesAreUnambiguous(t *testing.T) {
	at := time.Unix(0, 0)
	a := New("x").Next("w", "k", at, "ab", "c")
	b := New("x").Next("w", "k", at, "a", "bc")
	assert.NotEqual(t, a, b)
}

func TestNext_NamespacesSeparateFamilies(t *testing.T) {
	at := time.Unix(42, 0)
	a := New("healthcare").Next("w", "policy", at)
	b := New("sustainability").Next("w", "policy", at)
	assert.NotEqual(t, a, b)
}

func TestNext_ConcurrentCallersNeverCollide(t *testing.T) {
	g := New("registry")
	at := time.Unix(1, 0)

	const workers, perWorker = 8, 200
	ids := make(chan domain.RecordID, workers*perWorker)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range perWorker {
				ids <- g.Next("same", "same", at, "same")
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[domain.RecordID]struct{}, workers*perWorker)
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
}

func TestDerive_IsStable(t *testing.T) {
	assert.Equal(t, Derive("entity", "0.0.5"), Derive("entity", "0.0.5"))
	assert.NotEqual(t, Derive("entity", "0.0.5"), Derive("entity", "0.0.6"))
}
