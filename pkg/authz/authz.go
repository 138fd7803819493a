// Package authz models caller authority as an explicit capability value.
//
// Every engine operation receives the caller's Capability and checks it with a
// Policy before touching state. Capabilities are minted by the caller layer,
// typically from a signed token (see Issuer and Verifier).
package authz

import (
	"slices"

	"crossledger/pkg/domain"
	dErrors "crossledger/pkg/domain-errors"
)

// Role is a named authority a capability may carry.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleVerifier Role = "verifier"
	RoleModule   Role = "module"
	RoleProvider Role = "provider"
)

// Capability is the caller's identity plus the roles granted to it.
type Capability struct {
	Subject domain.Wallet
	Roles   []Role
}

// For returns a capability for subject holding roles.
func For(subject domain.Wallet, roles ...Role) Capability {
	return Capability{Subject: subject, Roles: roles}
}

// Has reports whether the capability lists role.
func (c Capability) Has(role Role) bool {
	return slices.Contains(c.Roles, role)
}

// Policy decides whether a capability grants role.
type Policy func(c Capability, role Role) bool

// ExactRole grants only roles the capability lists explicitly.
func ExactRole(c Capability, role Role) bool {
	return c.Has(role)
}

// AdminImplies grants every role to admins in addition to ExactRole.
func AdminImplies(c Capability, role Role) bool {
	return c.Has(role) || c.Has(RoleAdmin)
}

// Authorizer checks capabilities against a policy.
type Authorizer struct {
	policy Policy
}

// NewAuthorizer builds an authorizer; a nil policy means ExactRole.
func NewAuthorizer(policy Policy) *Authorizer {
	if policy == nil {
		policy = ExactRole
	}
	return &Authorizer{policy: policy}
}

// Require fails with Unauthorized unless c carries role.
func (a *Authorizer) Require(c Capability, role Role) error {
	if err := requireSubject(c); err != nil {
		return err
	}
	if !a.policy(c, role) {
		return dErrors.Newf(dErrors.CodeUnauthorized, "caller %s lacks %s authority", c.Subject, role)
	}
	return nil
}

// RequireAny fails with Unauthorized unless c carries at least one of roles.
func (a *Authorizer) RequireAny(c Capability, roles ...Role) error {
	if err := requireSubject(c); err != nil {
		return err
	}
	for _, r := range roles {
		if a.policy(c, r) {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeUnauthorized, "caller %s lacks any of %v", c.Subject, roles)
}

// Allows reports whether c carries role without building an error.
func (a *Authorizer) Allows(c Capability, role Role) bool {
	return !c.Subject.IsZero() && a.policy(c, role)
}

// RequireSubject fails with Unauthorized when the capability names nobody.
func RequireSubject(c Capability) error {
	return requireSubject(c)
}

func requireSubject(c Capability) error {
	if c.Subject.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "capability has no subject")
	}
	return nil
}
