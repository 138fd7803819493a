package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "crossledger/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal", body["error"])
		assert.NotContains(t, body, "error_description")
	})

	t.Run("uncoded error is internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("boom"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "boom")
	})

	t.Run("domain error includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeAlreadyCompleted, "payment already released"))

		assert.Equal(t, http.StatusConflict, w.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "already_completed", body["error"])
		assert.Equal(t, "payment already released", body["error_description"])
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeInvalidInput:         http.StatusBadRequest,
		dErrors.CodeUnauthorized:         http.StatusUnauthorized,
		dErrors.CodeNotOwner:             http.StatusForbidden,
		dErrors.CodeNotFound:             http.StatusNotFound,
		dErrors.CodeAlreadyRetired:       http.StatusConflict,
		dErrors.CodePreconditionFailed:   http.StatusPreconditionFailed,
		dErrors.CodeInsufficientQuantity: http.StatusUnprocessableEntity,
		dErrors.CodeOverflow:             http.StatusUnprocessableEntity,
		dErrors.CodeUnavailable:          http.StatusServiceUnavailable,
		dErrors.CodeRateLimited:          http.StatusTooManyRequests,
		dErrors.CodeTimeout:              http.StatusGatewayTimeout,
	}
	for code, status := range cases {
		assert.Equal(t, status, StatusFor(code), code)
	}
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Amount uint64 `json:"amount"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":5,"extra":1}`))
	err := DecodeJSON(r, &v)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"amount":5}`))
	require.NoError(t, DecodeJSON(r, &v))
	assert.Equal(t, uint64(5), v.Amount)
}
