package oidc

import (
	"context"
	"sync"
	"time"
)

// InMemBindingRepository implements BindingRepository using in-memory
// storage. Bindings do not survive a restart; intended for tests and
// ephemeral deployments.
type InMemBindingRepository struct {
	mutex   sync.RWMutex
	binding *IdentityBinding
}

// NewInMemBindingRepository creates a new in-memory binding repository
func NewInMemBindingRepository() *InMemBindingRepository {
	return &InMemBindingRepository{}
}

// GetBinding returns the current binding, or nil when unbound
func (r *InMemBindingRepository) GetBinding(ctx context.Context) (*IdentityBinding, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if r.binding == nil {
		return nil, nil
	}
	binding := *r.binding
	return &binding, nil
}

// BindIdentity records the binding if none exists and returns the
// effective binding
func (r *InMemBindingRepository) BindIdentity(ctx context.Context, issuer, subject string) (*IdentityBinding, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.binding != nil {
		binding := *r.binding
		return &binding, nil
	}

	r.binding = &IdentityBinding{
		Issuer:  issuer,
		Subject: subject,
		BoundAt: time.Now().UTC(),
	}
	binding := *r.binding
	return &binding, nil
}

// ClearBinding removes the binding
func (r *InMemBindingRepository) ClearBinding(ctx context.Context) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.binding = nil
	return nil
}
