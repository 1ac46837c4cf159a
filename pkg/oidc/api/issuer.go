package api

import (
	"context"
	"time"

	"github.com/asotbz/Fuzzbin-sub000/pkg/oidc"
	"github.com/asotbz/Fuzzbin-sub000/pkg/tokengenerator"
)

// JwtSessionIssuer mints local session tokens from validated IdP claims
type JwtSessionIssuer struct {
	jwtService *tokengenerator.JwtService
}

// NewJwtSessionIssuer creates a session issuer backed by the JWT service
func NewJwtSessionIssuer(jwtService *tokengenerator.JwtService) *JwtSessionIssuer {
	return &JwtSessionIssuer{jwtService: jwtService}
}

// IssueSession implements oidc.SessionIssuer. Only a small profile
// subset of the IdP claims is carried into the local session token.
func (i *JwtSessionIssuer) IssueSession(ctx context.Context, subject string, claims oidc.Claims) (oidc.SessionTokens, error) {
	extraClaims := map[string]interface{}{}
	for _, name := range []string{"email", "name", "preferred_username"} {
		if v := claims.String(name); v != "" {
			extraClaims[name] = v
		}
	}

	pair, err := i.jwtService.GenerateTokens(subject, extraClaims)
	if err != nil {
		return oidc.SessionTokens{}, err
	}

	return oidc.SessionTokens{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresIn:        int(time.Until(pair.AccessExpiry).Seconds()),
		RefreshExpiresAt: pair.RefreshExpiry,
	}, nil
}
