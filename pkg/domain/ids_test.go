package domain

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "crossledger/pkg/domain-errors"
)

// TestWallet_ZeroIdentities covers the null identities rejected as buyers and owners.
func TestWallet_ZeroIdentities(t *testing.T) {
	for _, w := range []string{"", "  ", "0.0.0", "0x", "0x" + strings.Repeat("0", 40)} {
		assert.True(t, Wallet(w).IsZero(), "expected %q to be zero", w)
	}
	assert.False(t, Wallet("0.0.1234").IsZero())

	_, err := ParseWallet("0.0.0")
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestParseRecordID(t *testing.T) {
	t.Run("round trips through text encoding", func(t *testing.T) {
		var id RecordID
		id[0], id[31] = 0xab, 0x01

		raw, err := json.Marshal(id)
		require.NoError(t, err)

		var decoded RecordID
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, id, decoded)
	})

	t.Run("zero id decodes from text but not at a boundary", func(t *testing.T) {
		raw, err := json.Marshal(struct {
			Ref RecordID `json:"ref"`
		}{})
		require.NoError(t, err)

		var decoded struct {
			Ref RecordID `json:"ref"`
		}
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.True(t, decoded.Ref.IsNil())

		_, err = ParseRecordID(decoded.Ref.String())
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("text decoding still rejects bad hex", func(t *testing.T) {
		var id RecordID
		err := id.UnmarshalText([]byte(strings.Repeat("zz", 32)))
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("accepts missing prefix", func(t *testing.T) {
		id, err := ParseRecordID(strings.Repeat("0f", 32))
		require.NoError(t, err)
		assert.Equal(t, byte(0x0f), id[7])
	})

	t.Run("rejects wrong length, bad hex and zero id", func(t *testing.T) {
		for _, s := range []string{"0x1234", strings.Repeat("zz", 32), strings.Repeat("00", 32)} {
			_, err := ParseRecordID(s)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
		}
	})
}

func TestModuleSet(t *testing.T) {
	set := NewModuleSet(" Healthcare", "agriculture", "", "AGRICULTURE")
	assert.Equal(t, ModuleSet{ModuleAgriculture, ModuleHealthcare}, set)
	assert.True(t, set.Contains(ModuleHealthcare))
	assert.False(t, set.Contains(ModuleSustainability))

	merged := set.Union(NewModuleSet("sustainability", "healthcare"))
	assert.Equal(t, ModuleSet{ModuleAgriculture, ModuleHealthcare, ModuleSustainability}, merged)
	assert.Len(t, set, 2, "union must not mutate the receiver")
}

func TestParseEntityType(t *testing.T) {
	typ, err := ParseEntityType(" Farmer ")
	require.NoError(t, err)
	assert.Equal(t, EntityFarmer, typ)

	_, err = ParseEntityType("wizard")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
