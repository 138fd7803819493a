package models

import (
	"math"
	"strings"
	"time"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/money"
)

// PremiumPercent is the up-front premium as a percentage of insured value.
const PremiumPercent = 4

const maxDurationDays = uint64(math.MaxInt64 / int64(24*time.Hour))

// CropPolicy is parametric crop insurance. A policy pays out at most once,
// even for a partial loss; the payout deactivates it for good.
type CropPolicy struct {
	ID           domain.RecordID `json:"id"`
	Farmer       domain.Wallet   `json:"farmer"`
	CropType     string          `json:"crop_type"`
	InsuredValue uint64          `json:"insured_value"`
	Premium      uint64          `json:"premium"`
	PaidPremium  uint64          `json:"paid_premium"`
	CoveragePct  uint64          `json:"coverage_pct"`
	Active       bool            `json:"active"`
	StartAt      time.Time       `json:"start_at"`
	EndAt        time.Time       `json:"end_at"`
	Payout       uint64          `json:"payout"`
	PaidOutAt    time.Time       `json:"paid_out_at,omitzero"`
}

// RequiredPremium is PremiumPercent of insuredValue, truncated.
func RequiredPremium(insuredValue uint64) (uint64, error) {
	return money.Percent(insuredValue, PremiumPercent)
}

func NewCropPolicy(id domain.RecordID, farmer domain.Wallet, cropType string, insuredValue, coveragePct, durationDays, paidPremium uint64, now time.Time) (*CropPolicy, error) {
	cropType = strings.TrimSpace(cropType)
	switch {
	case farmer.IsZero():
		return nil, dErrors.New(dErrors.CodeInvalidInput, "farmer is required")
	case cropType == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "crop type is required")
	case insuredValue == 0:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "insured value must be positive")
	case coveragePct == 0 || coveragePct > 100:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "coverage percentage must be in (0, 100]")
	case durationDays == 0 || durationDays > maxDurationDays:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "duration is out of range")
	}
	premium, err := RequiredPremium(insuredValue)
	if err != nil {
		return nil, err
	}
	if paidPremium < premium {
		return nil, dErrors.Newf(dErrors.CodeInsufficientPremium, "premium %d required, %d paid", premium, paidPremium)
	}
	return &CropPolicy{
		ID:           id,
		Farmer:       farmer,
		CropType:     cropType,
		InsuredValue: insuredValue,
		Premium:      premium,
		PaidPremium:  paidPremium,
		CoveragePct:  coveragePct,
		Active:       true,
		StartAt:      now,
		EndAt:        now.Add(time.Duration(durationDays) * 24 * time.Hour),
	}, nil
}

// ProcessPayout pays insuredValue × coverage × payoutPct / 10000 and
// deactivates the policy.
func (p *CropPolicy) ProcessPayout(payoutPct uint64, now time.Time) (uint64, error) {
	if payoutPct > 100 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "payout percentage must be in [0, 100]")
	}
	if !p.Active {
		return 0, dErrors.New(dErrors.CodeNotActive, "policy is not active")
	}
	if now.After(p.EndAt) {
		return 0, dErrors.New(dErrors.CodeExpired, "policy has expired")
	}
	payout, err := money.MulDiv(p.InsuredValue, p.CoveragePct*payoutPct, 10_000)
	if err != nil {
		return 0, err
	}
	p.Active = false
	p.Payout = payout
	p.PaidOutAt = now
	return payout, nil
}

func (p *CropPolicy) Clone() *CropPolicy {
	c := *p
	return &c
}
