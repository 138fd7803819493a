package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"crossledger/pkg/authz"
	dErrors "crossledger/pkg/domain-errors"
	"crossledger/pkg/platform/httputil"
	"crossledger/pkg/requestcontext"
)

// CapabilityParser turns a bearer token into a capability.
type CapabilityParser interface {
	Parse(token string) (authz.Capability, error)
}

type contextKeyCapability struct{}

// GetCapability returns the capability attached by RequireCapability. The
// zero capability has no subject and fails every authority check.
func GetCapability(ctx context.Context) authz.Capability {
	c, _ := ctx.Value(contextKeyCapability{}).(authz.Capability)
	return c
}

// WithCapability attaches c to ctx, as RequireCapability does.
func WithCapability(ctx context.Context, c authz.Capability) context.Context {
	return context.WithValue(ctx, contextKeyCapability{}, c)
}

// RequireCapability rejects requests without a valid bearer capability.
func RequireCapability(parser CapabilityParser, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing capability",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}
			c, err := parser.Parse(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid capability",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCapability(ctx, c)))
		})
	}
}
