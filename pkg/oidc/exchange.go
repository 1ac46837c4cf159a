package oidc

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jws"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TokenResponse is the IdP's token-endpoint response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// Claims is the decoded ID token payload. It is consumed for validation
// and session issuance and never persisted verbatim.
type Claims map[string]interface{}

// String returns the named claim as a string, or "" when absent or of a
// different type.
func (c Claims) String(name string) string {
	if v, ok := c[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// ExchangeCode trades an authorization code for tokens at the IdP's
// token endpoint. Failures are reported as a generic exchange error; the
// IdP's response body is logged but not surfaced to the caller.
func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*TokenResponse, error) {
	if err := p.requireRuntimeConfig(); err != nil {
		return nil, err
	}

	doc, err := p.FetchDiscovery(ctx)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", p.cfg.RedirectURI)
	form.Set("client_id", p.cfg.ClientID)
	form.Set("code_verifier", codeVerifier)
	if p.cfg.ClientSecret != "" {
		form.Set("client_secret", p.cfg.ClientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, doc.TokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, exchangeWrap(err, "failed to create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, exchangeWrap(err, "failed to reach token endpoint")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, exchangeWrap(err, "failed to read token response")
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Token exchange failed",
			"status", resp.StatusCode,
			"body", truncate(string(body), 512))
		return nil, exchangeErr("token endpoint rejected the authorization code")
	}

	var tokens TokenResponse
	if err := json.Unmarshal(body, &tokens); err != nil {
		return nil, exchangeWrap(err, "failed to parse token response")
	}

	slog.Info("Token exchange successful", "token_type", tokens.TokenType)
	return &tokens, nil
}

// ValidateIDToken verifies the ID token's signature against the cached
// JWKS and then validates its claims. If signature verification fails,
// the JWKS is refetched forcibly exactly once and verification retried,
// tolerating IdP key rotation; a second failure is terminal.
func (p *Provider) ValidateIDToken(ctx context.Context, rawToken, expectedNonce string) (Claims, error) {
	keySet, err := p.FetchJWKS(ctx, false)
	if err != nil {
		return nil, err
	}

	tok, err := parseSigned(rawToken, keySet)
	if err != nil {
		slog.Warn("ID token signature verification failed, refetching JWKS", "err", err)
		keySet, err = p.FetchJWKS(ctx, true)
		if err != nil {
			return nil, err
		}
		tok, err = parseSigned(rawToken, keySet)
		if err != nil {
			return nil, validationWrap(err, "failed to verify ID token signature")
		}
	}

	if err := jwt.Validate(tok); err != nil {
		return nil, validationWrap(err, "ID token failed temporal validation")
	}
	if normalizeIssuer(tok.Issuer()) != normalizeIssuer(p.cfg.IssuerURL) {
		return nil, validationErrf("ID token issuer %q does not match configured issuer", tok.Issuer())
	}
	if !containsAudience(tok.Audience(), p.cfg.ClientID) {
		return nil, validationErrf("ID token audience does not include client_id")
	}
	nonce, _ := tok.Get("nonce")
	if nonceStr, ok := nonce.(string); !ok || nonceStr != expectedNonce {
		return nil, validationErrf("ID token nonce does not match the login transaction")
	}
	if strings.TrimSpace(tok.Subject()) == "" {
		return nil, validationErrf("ID token is missing the sub claim")
	}

	m, err := tok.AsMap(ctx)
	if err != nil {
		return nil, validationWrap(err, "failed to decode ID token claims")
	}
	return Claims(m), nil
}

func parseSigned(rawToken string, keySet jwk.Set) (jwt.Token, error) {
	return jwt.Parse(
		[]byte(rawToken),
		jwt.WithKeySet(keySet, jws.WithInferAlgorithmFromKey(true)),
		jwt.WithValidate(false),
	)
}

func containsAudience(audience []string, clientID string) bool {
	for _, aud := range audience {
		if aud == clientID {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
