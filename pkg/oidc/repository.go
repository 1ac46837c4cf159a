package oidc

import (
	"context"
	"time"
)

// IdentityBinding pins the local admin account to a single IdP identity.
// The first successful login writes the binding; every later login must
// present the same (issuer, subject) pair.
type IdentityBinding struct {
	Issuer  string    `json:"issuer"`
	Subject string    `json:"subject"`
	BoundAt time.Time `json:"bound_at"`
}

// Matches reports whether the binding covers the given identity. Issuers
// are compared after trailing-slash normalization; subjects are compared
// exactly.
func (b IdentityBinding) Matches(issuer, subject string) bool {
	return normalizeIssuer(b.Issuer) == normalizeIssuer(issuer) && b.Subject == subject
}

// BindingRepository defines the interface for identity binding storage
// operations. The store holds at most one binding.
type BindingRepository interface {
	// GetBinding returns the current binding, or (nil, nil) when the
	// account has never completed an OIDC login.
	GetBinding(ctx context.Context) (*IdentityBinding, error)

	// BindIdentity records the binding if none exists and returns the
	// effective binding. When a binding already exists it is returned
	// unchanged, so concurrent first logins converge on a single winner.
	BindIdentity(ctx context.Context, issuer, subject string) (*IdentityBinding, error)

	// ClearBinding removes the binding, letting the next login re-bind.
	ClearBinding(ctx context.Context) error
}
