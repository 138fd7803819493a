package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossledger/internal/platform/config"
)

func TestNewWithWriter(t *testing.T) {
	t.Run("json at configured level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, config.Log{Level: "warn", Format: "json"})
		log.Info("dropped")
		log.Warn("kept", "operation", "process_payment")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "kept", rec["msg"])
		assert.Equal(t, "crossledger", rec["service"])
		assert.Equal(t, "process_payment", rec["operation"])
	})

	t.Run("text format and unknown level", func(t *testing.T) {
		var buf bytes.Buffer
		log := NewWithWriter(&buf, config.Log{Level: "loud", Format: "TEXT"})
		log.Debug("hidden")
		log.Info("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "msg=shown")
	})
}
