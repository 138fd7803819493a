package models

import (
	"strings"
	"time"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
)

const (
	MinQualityGrade = 1
	MaxQualityGrade = 5
)

// Harvest is a crop yield recorded by its farmer. Only Verified changes
// after creation.
type Harvest struct {
	ID           domain.RecordID `json:"id"`
	Farmer       domain.Wallet   `json:"farmer"`
	CropType     string          `json:"crop_type"`
	Quantity     uint64          `json:"quantity"`
	QualityGrade uint8           `json:"quality_grade"`
	RecordedAt   time.Time       `json:"recorded_at"`
	Verified     bool            `json:"verified"`
}

func NewHarvest(id domain.RecordID, farmer domain.Wallet, cropType string, quantity uint64, grade uint8, now time.Time) (*Harvest, error) {
	cropType = strings.TrimSpace(cropType)
	switch {
	case farmer.IsZero():
		return nil, dErrors.New(dErrors.CodeInvalidInput, "farmer is required")
	case cropType == "":
		return nil, dErrors.New(dErrors.CodeInvalidInput, "crop type is required")
	case quantity == 0:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "quantity must be positive")
	case grade < MinQualityGrade || grade > MaxQualityGrade:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "quality grade must be between %d and %d", MinQualityGrade, MaxQualityGrade)
	}
	return &Harvest{
		ID:           id,
		Farmer:       farmer,
		CropType:     cropType,
		Quantity:     quantity,
		QualityGrade: grade,
		RecordedAt:   now,
	}, nil
}

func (h *Harvest) Verify() error {
	if h.Verified {
		return dErrors.New(dErrors.CodeAlreadyVerified, "harvest is already verified")
	}
	h.Verified = true
	return nil
}

func (h *Harvest) Clone() *Harvest {
	c := *h
	return &c
}
