package oidc

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// BuildAuthURL constructs the authorization redirect URL for one login
// attempt. Query parameters already present on the IdP's authorization
// endpoint (provider-specific hints) are preserved; the standard
// parameter set is merged on top with proper percent encoding.
func (p *Provider) BuildAuthURL(ctx context.Context, state, nonce, codeVerifier string) (string, error) {
	if err := p.requireRuntimeConfig(); err != nil {
		return "", err
	}

	doc, err := p.FetchDiscovery(ctx)
	if err != nil {
		return "", err
	}

	authURL, err := url.Parse(doc.AuthorizationEndpoint)
	if err != nil {
		return "", configRemoteWrap(err, fmt.Sprintf("invalid authorization endpoint %q", doc.AuthorizationEndpoint))
	}

	query := authURL.Query()
	query.Set("response_type", "code")
	query.Set("client_id", p.cfg.ClientID)
	query.Set("redirect_uri", p.cfg.RedirectURI)
	query.Set("scope", strings.Join(p.cfg.Scopes, " "))
	query.Set("state", state)
	query.Set("nonce", nonce)
	query.Set("code_challenge", DeriveChallenge(codeVerifier))
	query.Set("code_challenge_method", "S256")
	authURL.RawQuery = query.Encode()

	return authURL.String(), nil
}

// BuildLogoutURL constructs the IdP end-session redirect. It reports
// ok=false when the IdP does not advertise an end_session_endpoint;
// RP-initiated logout is optional in the protocol.
func (p *Provider) BuildLogoutURL(ctx context.Context, postLogoutRedirectURI string) (string, bool, error) {
	doc, err := p.FetchDiscovery(ctx)
	if err != nil {
		return "", false, err
	}
	if doc.EndSessionEndpoint == "" {
		return "", false, nil
	}

	logoutURL, err := url.Parse(doc.EndSessionEndpoint)
	if err != nil {
		return "", false, configRemoteWrap(err, fmt.Sprintf("invalid end session endpoint %q", doc.EndSessionEndpoint))
	}

	query := logoutURL.Query()
	query.Set("client_id", p.cfg.ClientID)
	if postLogoutRedirectURI != "" {
		query.Set("post_logout_redirect_uri", postLogoutRedirectURI)
	}
	logoutURL.RawQuery = query.Encode()

	return logoutURL.String(), true, nil
}
