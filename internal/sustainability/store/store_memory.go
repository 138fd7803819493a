package store

import (
	"context"
	"sync"

	"crossledger/internal/sustainability/models"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/memstore"
)

type Credits = memstore.Table[*models.Credit]

func NewCredits() *Credits {
	return memstore.NewTable("carbon credit", (*models.Credit).Clone,
		func(c *models.Credit) domain.Wallet { return c.Entity })
}

// Accounts holds per-entity balances. Entities without credits have a zero
// account.
type Accounts struct {
	mu       sync.RWMutex
	accounts map[domain.Wallet]models.Account
}

func NewAccounts() *Accounts {
	return &Accounts{accounts: make(map[domain.Wallet]models.Account)}
}

func (a *Accounts) Get(_ context.Context, entity domain.Wallet) (models.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acct, ok := a.accounts[entity]
	if !ok {
		return models.Account{Entity: entity}, nil
	}
	return acct, nil
}

func (a *Accounts) Put(_ context.Context, acct models.Account) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[acct.Entity] = acct
	return nil
}
