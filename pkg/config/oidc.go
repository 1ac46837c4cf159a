package config

import (
	"strings"
	"time"
)

// OIDCConfig holds the relying-party configuration for the external
// identity provider
type OIDCConfig struct {
	IssuerURL      string `env:"FUZZBIN_OIDC_ISSUER_URL"`
	ClientID       string `env:"FUZZBIN_OIDC_CLIENT_ID"`
	ClientSecret   string `env:"FUZZBIN_OIDC_CLIENT_SECRET"`
	RedirectURI    string `env:"FUZZBIN_OIDC_REDIRECT_URI"`
	Scopes         string `env:"FUZZBIN_OIDC_SCOPES" env-default:"openid profile email"`
	ProviderName   string `env:"FUZZBIN_OIDC_PROVIDER_NAME"`
	RequiredGroup  string `env:"FUZZBIN_OIDC_REQUIRED_GROUP"`
	GroupsClaim    string `env:"FUZZBIN_OIDC_GROUPS_CLAIM" env-default:"groups"`
	TransactionTTL string `env:"FUZZBIN_OIDC_TRANSACTION_TTL" env-default:"5m"`

	// Binding storage backend: inmem, file or postgres
	Storage string `env:"FUZZBIN_OIDC_STORAGE" env-default:"file"`
	DataDir string `env:"FUZZBIN_OIDC_DATA_DIR" env-default:"./data"`
}

// Enabled reports whether OIDC login is configured at all
func (o OIDCConfig) Enabled() bool {
	return strings.TrimSpace(o.IssuerURL) != ""
}

// ParseScopes splits the space-separated scope list
func (o OIDCConfig) ParseScopes() []string {
	return strings.Fields(o.Scopes)
}

// ParseTransactionTTL parses the login transaction TTL
func (o OIDCConfig) ParseTransactionTTL() (time.Duration, error) {
	return ParseDuration(o.TransactionTTL)
}
