package store

import (
	"crossledger/internal/agriculture/models"
	"crossledger/pkg/domain"
	"crossledger/pkg/platform/memstore"
)

type (
	Harvests  = memstore.Table[*models.Harvest]
	Contracts = memstore.Table[*models.SalesContract]
	Policies  = memstore.Table[*models.CropPolicy]
)

// NewHarvests indexes harvests by farmer.
func NewHarvests() *Harvests {
	return memstore.NewTable("harvest", (*models.Harvest).Clone,
		func(h *models.Harvest) domain.Wallet { return h.Farmer })
}

// NewContracts indexes contracts by buyer.
func NewContracts() *Contracts {
	return memstore.NewTable("sales contract", (*models.SalesContract).Clone,
		func(c *models.SalesContract) domain.Wallet { return c.Buyer })
}

// NewPolicies indexes crop policies by farmer.
func NewPolicies() *Policies {
	return memstore.NewTable("crop policy", (*models.CropPolicy).Clone,
		func(p *models.CropPolicy) domain.Wallet { return p.Farmer })
}
