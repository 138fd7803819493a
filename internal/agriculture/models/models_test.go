package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
)

var now = time.Unix(1_700_000_000, 0).UTC()

func TestNewHarvest(t *testing.T) {
	cases := []struct {
		name     string
		crop     string
		quantity uint64
		grade    uint8
		ok       bool
	}{
		{"valid", "coffee", 100, 3, true},
		{"grade lower bound", "coffee", 1, 1, true},
		{"grade upper bound", "coffee", 1, 5, true},
		{"zero quantity", "coffee", 0, 3, false},
		{"grade zero", "coffee", 10, 0, false},
		{"grade six", "coffee", 10, 6, false},
		{"blank crop", "  ", 10, 3, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, err := NewHarvest(domain.RecordID{1}, "0.0.1", tc.crop, tc.quantity, tc.grade, now)
			if tc.ok {
				require.NoError(t, err)
				assert.False(t, h.Verified)
				return
			}
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		})
	}
}

func TestSalesContract(t *testing.T) {
	harvest, err := NewHarvest(domain.RecordID{1}, "0.0.1", "maize", 100, 4, now)
	require.NoError(t, err)

	t.Run("guards", func(t *testing.T) {
		_, err := NewSalesContract(domain.RecordID{2}, harvest, "0.0.9", "0.0.2", 10, 5, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotOwner))

		_, err = NewSalesContract(domain.RecordID{2}, harvest, "0.0.1", "0.0.2", 101, 5, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientQuantity))

		_, err = NewSalesContract(domain.RecordID{2}, harvest, "0.0.1", "0.0.0", 10, 5, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidBuyer))

		_, err = NewSalesContract(domain.RecordID{2}, harvest, "0.0.1", "0.0.2", 100, math.MaxUint64, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeOverflow))
	})

	t.Run("payment requires confirmation and escrow", func(t *testing.T) {
		c, err := NewSalesContract(domain.RecordID{2}, harvest, "0.0.1", "0.0.2", 50, 20, now)
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), c.Total)

		_, err = c.ReleasePayment(now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePreconditionFailed))

		require.NoError(t, c.ConfirmDeliveryAndQuality())
		_, err = c.ReleasePayment(now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodePreconditionFailed), "no escrow yet")

		assert.True(t, dErrors.HasCode(c.DepositEscrow("0.0.9", 1000), dErrors.CodeUnauthorized))
		assert.True(t, dErrors.HasCode(c.DepositEscrow("0.0.2", 999), dErrors.CodeInsufficientPayment))
		require.NoError(t, c.DepositEscrow("0.0.2", 1000))
		require.NoError(t, c.DepositEscrow("0.0.2", 1500))
		assert.Equal(t, uint64(1500), c.EscrowAmount, "second deposit replaces the first")

		r, err := c.ReleasePayment(now)
		require.NoError(t, err)
		assert.Equal(t, uint64(2), r.PlatformFee)
		assert.Equal(t, uint64(1498), r.FarmerPayment)
		assert.True(t, c.Completed)

		_, err = c.ReleasePayment(now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAlreadyCompleted))
		assert.True(t, dErrors.HasCode(c.DepositEscrow("0.0.2", 2000), dErrors.CodeAlreadyCompleted))
		assert.True(t, dErrors.HasCode(c.ConfirmDeliveryAndQuality(), dErrors.CodeAlreadyCompleted))
	})
}

func TestCropPolicy(t *testing.T) {
	t.Run("premium is four percent", func(t *testing.T) {
		_, err := NewCropPolicy(domain.RecordID{1}, "0.0.1", "coffee", 10_000, 80, 90, 400, now)
		require.NoError(t, err)

		_, err = NewCropPolicy(domain.RecordID{1}, "0.0.1", "coffee", 10_000, 80, 90, 399, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientPremium))
	})

	t.Run("input guards", func(t *testing.T) {
		for _, tc := range []struct{ insured, coverage, days uint64 }{
			{0, 80, 90}, {100, 0, 90}, {100, 101, 90}, {100, 50, 0}, {100, 50, math.MaxUint64},
		} {
			_, err := NewCropPolicy(domain.RecordID{1}, "0.0.1", "coffee", tc.insured, tc.coverage, tc.days, math.MaxUint64, now)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput), "%+v", tc)
		}
	})

	t.Run("single payout then inactive", func(t *testing.T) {
		p, err := NewCropPolicy(domain.RecordID{1}, "0.0.1", "coffee", 10_000, 80, 90, 400, now)
		require.NoError(t, err)

		payout, err := p.ProcessPayout(50, now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, uint64(4000), payout)
		assert.False(t, p.Active)

		_, err = p.ProcessPayout(50, now.Add(time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotActive))
	})

	t.Run("expired policy", func(t *testing.T) {
		p, err := NewCropPolicy(domain.RecordID{1}, "0.0.1", "coffee", 10_000, 80, 1, 400, now)
		require.NoError(t, err)
		_, err = p.ProcessPayout(10, now.Add(48*time.Hour))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeExpired))
		assert.True(t, p.Active)
	})

	t.Run("payout percentage above 100", func(t *testing.T) {
		p, err := NewCropPolicy(domain.RecordID{1}, "0.0.1", "coffee", 10_000, 80, 1, 400, now)
		require.NoError(t, err)
		_, err = p.ProcessPayout(101, now)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}
