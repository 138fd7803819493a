package models

import (
	"strings"
	"time"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
)

const secondsPerYear = 365 * 24 * 60 * 60

// VintageYear approximates the calendar year of t as whole 365-day years
// since 1970. Leap days are ignored on purpose; issued vintages depend on
// this exact arithmetic.
func VintageYear(t time.Time) uint32 {
	return uint32(t.Unix()/secondsPerYear + 1970)
}

// Credit is an issued carbon credit measured in whole tons of CO2. Credits
// are verified at issuance and can be retired once.
type Credit struct {
	ID          domain.RecordID `json:"id"`
	Entity      domain.Wallet   `json:"entity"`
	Amount      uint64          `json:"amount"`
	Vintage     uint32          `json:"vintage"`
	ProjectType string          `json:"project_type"`
	Verified    bool            `json:"verified"`
	Retired     bool            `json:"retired"`
	RetiredAt   time.Time       `json:"retired_at,omitzero"`
	IssuedAt    time.Time       `json:"issued_at"`
}

func NewCredit(id domain.RecordID, entity domain.Wallet, amount uint64, projectType string, now time.Time) (*Credit, error) {
	projectType = strings.TrimSpace(projectType)
	switch {
	case entity.IsZero():
		return nil, dErrors.New(dErrors.CodeInvalidInput, "entity is required")
	case amount == 0:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	case projectType == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "project type is required")
	}
	return &Credit{
		ID:          id,
		Entity:      entity,
		Amount:      amount,
		Vintage:     VintageYear(now),
		ProjectType: projectType,
		Verified:    true,
		IssuedAt:    now,
	}, nil
}

// Retire marks the credit retired by caller.
func (c *Credit) Retire(caller domain.Wallet, now time.Time) error {
	if caller != c.Entity {
		return dErrors.New(dErrors.CodeNotOwner, "only the credit holder may retire it")
	}
	if c.Retired {
		return dErrors.New(dErrors.CodeAlreadyRetired, "credit is already retired")
	}
	c.Retired = true
	c.RetiredAt = now
	return nil
}

func (c *Credit) Clone() *Credit {
	cp := *c
	return &cp
}

// Account is an entity's running credit position.
type Account struct {
	Entity  domain.Wallet `json:"entity"`
	Balance uint64        `json:"balance"`
	Retired uint64        `json:"retired"`
}
