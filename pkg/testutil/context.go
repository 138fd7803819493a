package testutil

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"crossledger/internal/platform/middleware"
	"crossledger/pkg/authz"
	"crossledger/pkg/domain"
)

// WithCapability attaches c to the request context, as RequireCapability
// would after a successful token check.
func WithCapability(req *http.Request, c authz.Capability) *http.Request {
	return req.WithContext(middleware.WithCapability(req.Context(), c))
}

// WithBearer signs a short-lived capability for subject and sets it as the
// request's bearer token.
func WithBearer(t *testing.T, req *http.Request, issuer *authz.Issuer, subject domain.Wallet, roles ...authz.Role) *http.Request {
	t.Helper()
	token, err := issuer.Issue(subject, time.Minute, roles...)
	require.NoError(t, err, "failed to issue capability")
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
