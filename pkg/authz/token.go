package authz

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
)

const tokenIssuer = "crossledger"

type capabilityClaims struct {
	Roles []Role `json:"roles"`
	jwt.RegisteredClaims
}

// Issuer signs capability tokens with a shared HMAC key.
type Issuer struct {
	key []byte
	now func() time.Time
}

// NewIssuer returns an issuer signing with key.
func NewIssuer(key []byte) *Issuer {
	return &Issuer{key: key, now: time.Now}
}

// Issue signs a token granting roles to subject for ttl.
func (i *Issuer) Issue(subject domain.Wallet, ttl time.Duration, roles ...Role) (string, error) {
	if subject.IsZero() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "subject is required")
	}
	now := i.now()
	claims := capabilityClaims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   subject.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign capability")
	}
	return signed, nil
}

// Verifier parses capability tokens signed by an Issuer with the same key.
type Verifier struct {
	key []byte
}

// NewVerifier returns a verifier for key.
func NewVerifier(key []byte) *Verifier {
	return &Verifier{key: key}
}

// Parse validates the token and returns the capability it carries.
func (v *Verifier) Parse(token string) (Capability, error) {
	var claims capabilityClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Capability{}, dErrors.Wrap(err, dErrors.CodeExpired, "capability expired")
		}
		return Capability{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "invalid capability")
	}
	subject, err := domain.ParseWallet(claims.Subject)
	if err != nil {
		return Capability{}, dErrors.Wrap(err, dErrors.CodeUnauthorized, "capability subject is invalid")
	}
	return Capability{Subject: subject, Roles: claims.Roles}, nil
}
