package tokengenerator

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token type constants
const (
	ACCESS_TOKEN_NAME  = "access_token"
	REFRESH_TOKEN_NAME = "refresh_token"
)

// Default token expiry durations
const (
	DefaultAccessTokenExpiry  = 15 * time.Minute
	DefaultRefreshTokenExpiry = 24 * time.Hour
)

// TokenPair holds a freshly issued access/refresh token pair
type TokenPair struct {
	AccessToken   string
	AccessExpiry  time.Time
	RefreshToken  string
	RefreshExpiry time.Time
}

// JwtService issues local session tokens and manages their cookies
type JwtService struct {
	Generator    TokenGenerator
	CookieSetter CookieSetter

	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

// JwtServiceOption is a function that configures a JwtService
type JwtServiceOption func(*JwtService)

// WithCookieSetter sets the cookie setter used for session cookies
func WithCookieSetter(cookieSetter CookieSetter) JwtServiceOption {
	return func(js *JwtService) {
		js.CookieSetter = cookieSetter
	}
}

// WithAccessTokenExpiry sets the access token expiry duration
func WithAccessTokenExpiry(expiry time.Duration) JwtServiceOption {
	return func(js *JwtService) {
		js.AccessTokenExpiry = expiry
	}
}

// WithRefreshTokenExpiry sets the refresh token expiry duration
func WithRefreshTokenExpiry(expiry time.Duration) JwtServiceOption {
	return func(js *JwtService) {
		js.RefreshTokenExpiry = expiry
	}
}

// NewJwtService creates a new JwtService
func NewJwtService(generator TokenGenerator, options ...JwtServiceOption) *JwtService {
	js := &JwtService{
		Generator:          generator,
		CookieSetter:       NewCookieSetter(true, true),
		AccessTokenExpiry:  DefaultAccessTokenExpiry,
		RefreshTokenExpiry: DefaultRefreshTokenExpiry,
	}

	for _, option := range options {
		option(js)
	}

	return js
}

// GenerateTokens issues an access/refresh token pair for the subject
func (js *JwtService) GenerateTokens(subject string, extraClaims map[string]interface{}) (TokenPair, error) {
	access, accessExpiry, err := js.Generator.GenerateToken(subject, js.AccessTokenExpiry, extraClaims)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to generate access token: %w", err)
	}

	refresh, refreshExpiry, err := js.Generator.GenerateToken(subject, js.RefreshTokenExpiry, map[string]interface{}{
		"token_use": REFRESH_TOKEN_NAME,
	})
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:   access,
		AccessExpiry:  accessExpiry,
		RefreshToken:  refresh,
		RefreshExpiry: refreshExpiry,
	}, nil
}

// ParseToken parses and validates a session token
func (js *JwtService) ParseToken(tokenStr string) (*jwt.Token, error) {
	return js.Generator.ParseToken(tokenStr)
}

// SetRefreshTokenCookie stores the refresh token in an httpOnly cookie
func (js *JwtService) SetRefreshTokenCookie(w http.ResponseWriter, tokenValue string, expire time.Time) error {
	return js.CookieSetter.SetCookie(w, REFRESH_TOKEN_NAME, tokenValue, expire)
}

// ClearRefreshTokenCookie clears the refresh token cookie
func (js *JwtService) ClearRefreshTokenCookie(w http.ResponseWriter) error {
	return js.CookieSetter.ClearCookie(w, REFRESH_TOKEN_NAME)
}
