package oidc

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Settings carries everything needed to build the process-wide OIDC
// components.
type Settings struct {
	Provider       Config
	RequiredGroup  string
	GroupsClaim    string
	TransactionTTL time.Duration

	Bindings BindingRepository
	Issuer   SessionIssuer
}

// fingerprint captures the comparable part of the settings, used to
// detect configuration drift between calls.
func (s Settings) fingerprint() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%s|%s",
		s.Provider.IssuerURL,
		s.Provider.ClientID,
		s.Provider.RedirectURI,
		strings.Join(s.Provider.Scopes, " "),
		s.Provider.Name,
		s.RequiredGroup,
		s.GroupsClaim,
		s.TransactionTTL)
}

// AuthContext bundles the process-wide OIDC components. Exactly one
// exists per process; all handlers share it so transactions and caches
// are never split across instances.
type AuthContext struct {
	Provider     *Provider
	Transactions *TransactionStore
	Flow         *FlowService
}

var (
	contextMutex      sync.Mutex
	activeContext     *AuthContext
	activeFingerprint string
)

// GetOrCreate returns the process-wide auth context, building it on
// first call. Later calls with different settings keep the original
// components and log a warning; a process restart is required to apply
// new settings.
func GetOrCreate(settings Settings) (*AuthContext, error) {
	contextMutex.Lock()
	defer contextMutex.Unlock()

	if activeContext != nil {
		if settings.fingerprint() != activeFingerprint {
			slog.Warn("OIDC settings changed after initialization, keeping original configuration",
				"issuer_url", settings.Provider.IssuerURL)
		}
		return activeContext, nil
	}

	provider, err := NewProvider(settings.Provider)
	if err != nil {
		return nil, err
	}

	var storeOpts []StoreOption
	if settings.TransactionTTL > 0 {
		storeOpts = append(storeOpts, WithTTL(settings.TransactionTTL))
	}
	transactions := NewTransactionStore(storeOpts...)

	var flowOpts []FlowOption
	if settings.RequiredGroup != "" {
		flowOpts = append(flowOpts, WithRequiredGroup(settings.RequiredGroup))
	}
	if settings.GroupsClaim != "" {
		flowOpts = append(flowOpts, WithGroupsClaim(settings.GroupsClaim))
	}
	flow := NewFlowService(provider, transactions, settings.Bindings, settings.Issuer, flowOpts...)

	activeContext = &AuthContext{
		Provider:     provider,
		Transactions: transactions,
		Flow:         flow,
	}
	activeFingerprint = settings.fingerprint()

	slog.Info("OIDC context initialized", "provider", provider.Name())
	return activeContext, nil
}

// Reset discards the process-wide auth context so the next GetOrCreate
// rebuilds it. Intended for tests.
func Reset() {
	contextMutex.Lock()
	defer contextMutex.Unlock()

	activeContext = nil
	activeFingerprint = ""
}
