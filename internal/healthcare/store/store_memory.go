package store

import (
	"context"
	"fmt"
	"sync"

	"crossledger/internal/healthcare/models"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/memstore"
	"crossledger/pkg/platform/sentinel"
)

type (
	Policies = memstore.Table[*models.Policy]
	Visits   = memstore.Table[*models.Visit]
)

func NewPolicies() *Policies {
	return memstore.NewTable("health policy", (*models.Policy).Clone,
		func(p *models.Policy) domain.Wallet { return p.Patient })
}

func NewVisits() *Visits {
	return memstore.NewTable("visit", (*models.Visit).Clone,
		func(v *models.Visit) domain.Wallet { return v.Patient })
}

// CurrentPolicies maps each patient to their latest policy id.
type CurrentPolicies struct {
	mu      sync.RWMutex
	current map[domain.Wallet]domain.RecordID
}

func NewCurrentPolicies() *CurrentPolicies {
	return &CurrentPolicies{current: make(map[domain.Wallet]domain.RecordID)}
}

// Set points patient at policyID, replacing any earlier pointer.
func (c *CurrentPolicies) Set(_ context.Context, patient domain.Wallet, policyID domain.RecordID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current[patient] = policyID
	return nil
}

func (c *CurrentPolicies) Get(_ context.Context, patient domain.Wallet) (domain.RecordID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.current[patient]
	if !ok {
		return domain.RecordID{}, fmt.Errorf("current policy for %s: %w", patient, sentinel.ErrNotFound)
	}
	return id, nil
}
