package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
)

var now = time.Unix(1_700_000_000, 0).UTC()

func newPolicy(t *testing.T, autoDeduct bool) *Policy {
	t.Helper()
	p, err := NewPolicy(domain.RecordID{1}, "0.0.5", "gold", 300, 5000, autoDeduct, now)
	require.NoError(t, err)
	return p
}

func TestVisitSplit(t *testing.T) {
	cases := []struct {
		name           string
		policy         func(t *testing.T) *Policy
		cost           uint64
		covered, toPay uint64
	}{
		{"active policy within limit", func(t *testing.T) *Policy { return newPolicy(t, true) }, 2500, 2000, 500},
		{"cost equal to limit", func(t *testing.T) *Policy { return newPolicy(t, true) }, 5000, 4000, 1000},
		{"cost above limit", func(t *testing.T) *Policy { return newPolicy(t, true) }, 5001, 0, 5001},
		{"truncates toward zero", func(t *testing.T) *Policy { return newPolicy(t, true) }, 7, 5, 2},
		{"no policy", func(*testing.T) *Policy { return nil }, 2500, 0, 2500},
		{"inactive policy", func(t *testing.T) *Policy {
			p := newPolicy(t, true)
			require.NoError(t, p.Deactivate(now))
			return p
		}, 2500, 0, 2500},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v, err := NewVisit(domain.RecordID{2}, "0.0.5", "0.0.6", tc.policy(t), tc.cost, now)
			require.NoError(t, err)
			assert.Equal(t, tc.covered, v.InsuranceCovered)
			assert.Equal(t, tc.toPay, v.PatientPayment)
			assert.Equal(t, tc.cost, v.InsuranceCovered+v.PatientPayment)
		})
	}
}

func TestUncoveredVisitDecodes(t *testing.T) {
	v, err := NewVisit(domain.RecordID{9}, "0.0.5", "0.0.77", nil, 2500, now)
	require.NoError(t, err)
	require.True(t, v.PolicyID.IsNil())

	raw, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded Visit
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, *v, decoded)
}

func TestAuthorizeDeduction(t *testing.T) {
	_, err := newPolicy(t, false).AuthorizeDeduction(300, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeAutoDeductDisabled))

	p := newPolicy(t, true)
	_, err = p.AuthorizeDeduction(299, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInsufficientAmount))

	d, err := p.AuthorizeDeduction(300, now)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), d.Premium)

	require.NoError(t, p.Deactivate(now))
	_, err = p.AuthorizeDeduction(300, now)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotActive))
	assert.True(t, dErrors.HasCode(p.Deactivate(now), dErrors.CodeNotActive))
}
