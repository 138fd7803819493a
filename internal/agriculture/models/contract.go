package models

import (
	"time"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/money"
)

// PlatformFeeBasisPoints is the fee withheld from escrow on payment (0.15%).
const PlatformFeeBasisPoints = 15

// SalesContract sells part of a harvest to a buyer against escrow.
//
// Lifecycle: created, escrow deposited, delivery and quality confirmed,
// payment released. Completed is terminal. Escrow deposit and confirmation
// may happen in either order.
type SalesContract struct {
	ID                domain.RecordID `json:"id"`
	Farmer            domain.Wallet   `json:"farmer"`
	Buyer             domain.Wallet   `json:"buyer"`
	HarvestID         domain.RecordID `json:"harvest_id"`
	Quantity          uint64          `json:"quantity"`
	PricePerUnit      uint64          `json:"price_per_unit"`
	Total             uint64          `json:"total"`
	EscrowAmount      uint64          `json:"escrow_amount"`
	DeliveryConfirmed bool            `json:"delivery_confirmed"`
	QualityVerified   bool            `json:"quality_verified"`
	Completed         bool            `json:"completed"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       time.Time       `json:"completed_at,omitzero"`
}

// NewSalesContract checks the seller owns harvest and has enough of it, and
// computes the contract total.
func NewSalesContract(id domain.RecordID, harvest *Harvest, seller, buyer domain.Wallet, quantity, pricePerUnit uint64, now time.Time) (*SalesContract, error) {
	if seller != harvest.Farmer {
		return nil, dErrors.Newf(dErrors.CodeNotOwner, "%s does not own harvest %s", seller, harvest.ID)
	}
	if quantity == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "quantity must be positive")
	}
	if quantity > harvest.Quantity {
		return nil, dErrors.Newf(dErrors.CodeInsufficientQuantity, "harvest holds %d units, %d requested", harvest.Quantity, quantity)
	}
	if buyer.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidBuyer, "buyer identity is empty")
	}
	total, err := money.Mul(quantity, pricePerUnit)
	if err != nil {
		return nil, err
	}
	return &SalesContract{
		ID:           id,
		Farmer:       harvest.Farmer,
		Buyer:        buyer,
		HarvestID:    harvest.ID,
		Quantity:     quantity,
		PricePerUnit: pricePerUnit,
		Total:        total,
		CreatedAt:    now,
	}, nil
}

// DepositEscrow records the buyer's escrow. A later deposit replaces the
// earlier amount; there is no refund of the first.
func (c *SalesContract) DepositEscrow(caller domain.Wallet, amount uint64) error {
	if caller != c.Buyer {
		return dErrors.New(dErrors.CodeUnauthorized, "only the buyer may deposit escrow")
	}
	if c.Completed {
		return dErrors.New(dErrors.CodeAlreadyCompleted, "contract is already completed")
	}
	if amount < c.Total {
		return dErrors.Newf(dErrors.CodeInsufficientPayment, "escrow %d is below contract total %d", amount, c.Total)
	}
	c.EscrowAmount = amount
	return nil
}

func (c *SalesContract) ConfirmDeliveryAndQuality() error {
	if c.Completed {
		return dErrors.New(dErrors.CodeAlreadyCompleted, "contract is already completed")
	}
	c.DeliveryConfirmed = true
	c.QualityVerified = true
	return nil
}

// PaymentReceipt describes a released escrow.
type PaymentReceipt struct {
	ContractID    domain.RecordID `json:"contract_id"`
	Farmer        domain.Wallet   `json:"farmer"`
	EscrowAmount  uint64          `json:"escrow_amount"`
	PlatformFee   uint64          `json:"platform_fee"`
	FarmerPayment uint64          `json:"farmer_payment"`
	OperationID   domain.RecordID `json:"operation_id"`
	ReleasedAt    time.Time       `json:"released_at"`
}

// ReleasePayment completes the contract and returns the payment split. The
// contract is marked completed here, before any funds move.
func (c *SalesContract) ReleasePayment(now time.Time) (PaymentReceipt, error) {
	if c.Completed {
		return PaymentReceipt{}, dErrors.New(dErrors.CodeAlreadyCompleted, "payment was already processed")
	}
	switch {
	case !c.DeliveryConfirmed:
		return PaymentReceipt{}, dErrors.New(dErrors.CodePreconditionFailed, "delivery is not confirmed")
	case !c.QualityVerified:
		return PaymentReceipt{}, dErrors.New(dErrors.CodePreconditionFailed, "quality is not verified")
	case c.EscrowAmount == 0:
		return PaymentReceipt{}, dErrors.New(dErrors.CodePreconditionFailed, "no escrow deposited")
	}
	fee, err := money.BasisPoints(c.EscrowAmount, PlatformFeeBasisPoints)
	if err != nil {
		return PaymentReceipt{}, err
	}
	payment, err := money.Sub(c.EscrowAmount, fee)
	if err != nil {
		return PaymentReceipt{}, err
	}
	c.Completed = true
	c.CompletedAt = now
	return PaymentReceipt{
		ContractID:    c.ID,
		Farmer:        c.Farmer,
		EscrowAmount:  c.EscrowAmount,
		PlatformFee:   fee,
		FarmerPayment: payment,
		ReleasedAt:    now,
	}, nil
}

func (c *SalesContract) Clone() *SalesContract {
	cp := *c
	return &cp
}
