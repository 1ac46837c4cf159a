package oidc

import (
	"fmt"
	"sync"
	"time"
)

// DefaultTransactionTTL bounds how long a pending login transaction can
// wait for the IdP redirect to come back.
const DefaultTransactionTTL = 5 * time.Minute

// Transaction holds the values minted for one authorization attempt,
// keyed by the opaque state parameter.
type Transaction struct {
	Nonce        string
	CodeVerifier string
	CreatedAt    time.Time
}

// TransactionStore is an in-memory, TTL-bounded, single-use store of
// pending login transactions. Expired entries are swept opportunistically
// on Create; there is no background timer.
type TransactionStore struct {
	mu      sync.Mutex
	entries map[string]Transaction
	ttl     time.Duration
	now     func() time.Time
}

// StoreOption configures a TransactionStore.
type StoreOption func(*TransactionStore)

// WithTTL sets the transaction lifetime for this store instance.
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *TransactionStore) {
		s.ttl = ttl
	}
}

// WithClock overrides the store's clock. Used by tests.
func WithClock(now func() time.Time) StoreOption {
	return func(s *TransactionStore) {
		s.now = now
	}
}

// NewTransactionStore creates a transaction store with the default TTL.
func NewTransactionStore(opts ...StoreOption) *TransactionStore {
	s := &TransactionStore{
		entries: make(map[string]Transaction),
		ttl:     DefaultTransactionTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create mints a new transaction: a random state, nonce and PKCE code
// verifier, stored under the state. Expired entries are swept first.
func (s *TransactionStore) Create() (state, nonce, codeVerifier string, err error) {
	state, err = randomToken(32)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate state: %w", err)
	}
	nonce, err = randomToken(32)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	codeVerifier, err = GenerateCodeVerifier()
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate code verifier: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	s.entries[state] = Transaction{
		Nonce:        nonce,
		CodeVerifier: codeVerifier,
		CreatedAt:    s.now(),
	}
	return state, nonce, codeVerifier, nil
}

// Consume atomically removes the transaction for state and returns its
// nonce and code verifier. A second consume of the same state, or a
// consume of an expired state, reports absent; the two cases are
// indistinguishable on purpose.
func (s *TransactionStore) Consume(state string) (nonce, codeVerifier string, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, present := s.entries[state]
	if !present {
		return "", "", false
	}
	delete(s.entries, state)
	if s.now().Sub(tx.CreatedAt) > s.ttl {
		return "", "", false
	}
	return tx.Nonce, tx.CodeVerifier, true
}

// Len reports the number of live entries, expired or not. Used by tests.
func (s *TransactionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *TransactionStore) sweepLocked() {
	now := s.now()
	for state, tx := range s.entries {
		if now.Sub(tx.CreatedAt) > s.ttl {
			delete(s.entries, state)
		}
	}
}
