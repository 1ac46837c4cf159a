package config

import (
	"net/http"
	"time"
)

// JWTConfig holds local session token configuration
type JWTConfig struct {
	Secret             string `env:"FUZZBIN_JWT_SECRET" env-default:"very-secure-jwt-secret"`
	CookieHttpOnly     bool   `env:"FUZZBIN_COOKIE_HTTP_ONLY" env-default:"true"`
	CookieSecure       bool   `env:"FUZZBIN_COOKIE_SECURE" env-default:"true"`
	AccessTokenExpiry  string `env:"FUZZBIN_ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshTokenExpiry string `env:"FUZZBIN_REFRESH_TOKEN_EXPIRY" env-default:"24h"`
	Issuer             string `env:"FUZZBIN_JWT_ISSUER" env-default:"fuzzbin"`
	Audience           string `env:"FUZZBIN_JWT_AUDIENCE" env-default:"fuzzbin"`
}

// ParseAccessTokenExpiry parses the access token expiry duration
func (j JWTConfig) ParseAccessTokenExpiry() (time.Duration, error) {
	return ParseDuration(j.AccessTokenExpiry)
}

// ParseRefreshTokenExpiry parses the refresh token expiry duration
func (j JWTConfig) ParseRefreshTokenExpiry() (time.Duration, error) {
	return ParseDuration(j.RefreshTokenExpiry)
}

// CookieSameSite returns the appropriate SameSite setting based on CookieSecure
func (j JWTConfig) CookieSameSite() http.SameSite {
	if j.CookieSecure {
		return http.SameSiteStrictMode
	}
	return http.SameSiteLaxMode
}
