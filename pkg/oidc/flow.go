package oidc

import (
	"context"
	"log/slog"
	"time"
)

// SessionTokens is the local session material handed back after a
// successful login. The IdP's tokens never leave the flow service.
type SessionTokens struct {
	AccessToken      string
	RefreshToken     string
	TokenType        string
	ExpiresIn        int
	RefreshExpiresAt time.Time
}

// SessionIssuer mints local session tokens for the authenticated admin
// account. Implemented by the API layer on top of the JWT service.
type SessionIssuer interface {
	IssueSession(ctx context.Context, subject string, claims Claims) (SessionTokens, error)
}

// FlowService orchestrates the OIDC login flow: transaction creation,
// code exchange, ID token validation, group gating, identity binding
// and local session issuance.
type FlowService struct {
	provider     *Provider
	transactions *TransactionStore
	bindings     BindingRepository
	issuer       SessionIssuer

	requiredGroup string
	groupsClaim   string
}

// FlowOption configures optional FlowService behavior
type FlowOption func(*FlowService)

// WithRequiredGroup enables the group-membership gate. Logins whose ID
// token does not carry the group are denied.
func WithRequiredGroup(group string) FlowOption {
	return func(s *FlowService) {
		s.requiredGroup = group
	}
}

// WithGroupsClaim overrides the claim inspected for group membership
func WithGroupsClaim(claim string) FlowOption {
	return func(s *FlowService) {
		s.groupsClaim = claim
	}
}

// NewFlowService creates a new flow service
func NewFlowService(provider *Provider, transactions *TransactionStore, bindings BindingRepository, issuer SessionIssuer, opts ...FlowOption) *FlowService {
	s := &FlowService{
		provider:     provider,
		transactions: transactions,
		bindings:     bindings,
		issuer:       issuer,
		groupsClaim:  DefaultGroupsClaim,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Provider returns the underlying provider, for configuration reporting.
func (s *FlowService) Provider() *Provider {
	return s.provider
}

// Start begins a login: it creates a single-use transaction and builds
// the IdP authorization URL the browser should be sent to.
func (s *FlowService) Start(ctx context.Context) (authURL, state string, err error) {
	state, nonce, codeVerifier, err := s.transactions.Create()
	if err != nil {
		return "", "", err
	}

	authURL, err = s.provider.BuildAuthURL(ctx, state, nonce, codeVerifier)
	if err != nil {
		return "", "", err
	}

	slog.Info("OIDC login started", "provider", s.provider.Name())
	return authURL, state, nil
}

// Complete finishes a login: it consumes the transaction, exchanges the
// authorization code, validates the ID token, enforces the group gate
// and the identity binding, and issues local session tokens.
func (s *FlowService) Complete(ctx context.Context, code, state string) (*SessionTokens, Claims, error) {
	nonce, codeVerifier, ok := s.transactions.Consume(state)
	if !ok {
		return nil, nil, transactionErr("login transaction is unknown or expired")
	}

	tokens, err := s.provider.ExchangeCode(ctx, code, codeVerifier)
	if err != nil {
		return nil, nil, err
	}
	if tokens.IDToken == "" {
		return nil, nil, validationErrf("token response did not include an ID token")
	}

	claims, err := s.provider.ValidateIDToken(ctx, tokens.IDToken, nonce)
	if err != nil {
		return nil, nil, err
	}

	if err := CheckGroupClaim(claims, s.groupsClaim, s.requiredGroup); err != nil {
		slog.Warn("OIDC login denied by group gate", "sub", claims.String("sub"))
		return nil, nil, err
	}

	issuer := claims.String("iss")
	subject := claims.String("sub")
	if err := s.checkBinding(ctx, issuer, subject); err != nil {
		return nil, nil, err
	}

	session, err := s.issuer.IssueSession(ctx, subject, claims)
	if err != nil {
		return nil, nil, err
	}

	slog.Info("OIDC login completed", "sub", subject)
	return &session, claims, nil
}

// checkBinding enforces the single-account identity pin. An unbound
// account is bound to the presented identity; concurrent first logins
// converge because the repository insert is first-write-wins.
func (s *FlowService) checkBinding(ctx context.Context, issuer, subject string) error {
	binding, err := s.bindings.GetBinding(ctx)
	if err != nil {
		return err
	}

	if binding == nil {
		binding, err = s.bindings.BindIdentity(ctx, issuer, subject)
		if err != nil {
			return err
		}
		if binding.Matches(issuer, subject) {
			slog.Info("OIDC identity bound", "iss", issuer, "sub", subject)
			return nil
		}
	}

	if !binding.Matches(issuer, subject) {
		slog.Warn("OIDC identity mismatch",
			"bound_iss", binding.Issuer, "bound_sub", binding.Subject,
			"presented_iss", issuer, "presented_sub", subject)
		return identityMismatchErr("account is bound to a different identity")
	}
	return nil
}

// LogoutURL builds the IdP end-session URL for RP-initiated logout. The
// second return is false when the IdP does not advertise one.
func (s *FlowService) LogoutURL(ctx context.Context, postLogoutRedirectURI string) (string, bool, error) {
	return s.provider.BuildLogoutURL(ctx, postLogoutRedirectURI)
}

// Summary describes the configured provider for the config endpoint.
type Summary struct {
	Enabled       bool     `json:"enabled"`
	IssuerURL     string   `json:"issuer_url"`
	ClientID      string   `json:"client_id"`
	RedirectURI   string   `json:"redirect_uri"`
	Scopes        []string `json:"scopes"`
	ProviderName  string   `json:"provider_name"`
	RequiredGroup string   `json:"required_group,omitempty"`
	Bound         bool     `json:"bound"`
}

// Summarize reports the provider configuration and whether the account
// already has an identity binding. Secrets are never included.
func (s *FlowService) Summarize(ctx context.Context) (Summary, error) {
	binding, err := s.bindings.GetBinding(ctx)
	if err != nil {
		return Summary{}, err
	}

	cfg := s.provider.Config()
	return Summary{
		Enabled:       true,
		IssuerURL:     cfg.IssuerURL,
		ClientID:      cfg.ClientID,
		RedirectURI:   cfg.RedirectURI,
		Scopes:        cfg.Scopes,
		ProviderName:  s.provider.Name(),
		RequiredGroup: s.requiredGroup,
		Bound:         binding != nil,
	}, nil
}
