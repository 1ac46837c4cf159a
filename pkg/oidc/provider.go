package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lestrrat-go/jwx/v2/jwk"
)

const (
	discoveryPath = "/.well-known/openid-configuration"

	// defaultHTTPTimeout bounds every outbound call to the IdP.
	defaultHTTPTimeout = 10 * time.Second

	// jwksTTL is how long a fetched key set is served from cache before
	// a non-forced fetch goes back to the IdP.
	jwksTTL = time.Hour
)

// Config is the immutable relying-party configuration for one IdP.
type Config struct {
	IssuerURL    string   `validate:"required,url"`
	ClientID     string   `validate:"required"`
	RedirectURI  string   `validate:"required,url"`
	Scopes       []string `validate:"-"`
	ClientSecret string   `validate:"-"`
	Name         string   `validate:"-"`
}

// DiscoveryDocument is the subset of the IdP's provider metadata this
// client consumes.
type DiscoveryDocument struct {
	Issuer                string `json:"issuer"`
	AuthorizationEndpoint string `json:"authorization_endpoint"`
	TokenEndpoint         string `json:"token_endpoint"`
	JwksURI               string `json:"jwks_uri"`
	EndSessionEndpoint    string `json:"end_session_endpoint,omitempty"`
	UserinfoEndpoint      string `json:"userinfo_endpoint,omitempty"`
}

var validate = validator.New()

// Provider is an OIDC relying-party client for a single IdP. The
// discovery document is cached until ClearCache; the JWKS is cached for
// jwksTTL and can be refetched forcibly during key rotation. Caches are
// only written after a fully successful response.
type Provider struct {
	cfg        Config
	httpClient *http.Client
	now        func() time.Time

	mu            sync.Mutex
	discovery     *DiscoveryDocument
	jwks          jwk.Set
	jwksFetchedAt time.Time
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithHTTPClient overrides the HTTP client used for IdP calls.
func WithHTTPClient(client *http.Client) ProviderOption {
	return func(p *Provider) {
		p.httpClient = client
	}
}

// WithProviderClock overrides the provider's clock. Used by tests.
func WithProviderClock(now func() time.Time) ProviderOption {
	return func(p *Provider) {
		p.now = now
	}
}

// NewProvider validates cfg and creates a provider. Scopes default to
// the standard openid/profile/email set when unset.
func NewProvider(cfg Config, opts ...ProviderOption) (*Provider, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, &Error{Kind: KindConfig, Message: "invalid provider configuration", Err: err}
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "profile", "email"}
	}

	p := &Provider{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the provider's configuration.
func (p *Provider) Config() Config {
	return p.cfg
}

// Name returns the provider's display name, falling back to the issuer
// URL when none is configured.
func (p *Provider) Name() string {
	if p.cfg.Name != "" {
		return p.cfg.Name
	}
	return p.cfg.IssuerURL
}

// FetchDiscovery returns the IdP's provider metadata, fetching it on
// first use and serving the cached document afterwards.
func (p *Provider) FetchDiscovery(ctx context.Context) (*DiscoveryDocument, error) {
	if strings.TrimSpace(p.cfg.IssuerURL) == "" {
		return nil, configErrf("issuer URL is not configured")
	}

	p.mu.Lock()
	if p.discovery != nil {
		doc := *p.discovery
		p.mu.Unlock()
		return &doc, nil
	}
	p.mu.Unlock()

	discoveryURL := strings.TrimRight(p.cfg.IssuerURL, "/") + discoveryPath
	body, status, err := p.get(ctx, discoveryURL)
	if err != nil {
		return nil, configRemoteWrap(err, fmt.Sprintf("failed to fetch discovery document from %s", discoveryURL))
	}
	if status != http.StatusOK {
		return nil, configRemoteErrf("discovery request to %s returned status %d", discoveryURL, status)
	}

	var doc DiscoveryDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, configRemoteWrap(err, "failed to parse discovery document")
	}
	if missing := doc.missingKeys(); len(missing) > 0 {
		return nil, configRemoteErrf("discovery document is missing required keys: %s", strings.Join(missing, ", "))
	}
	if normalizeIssuer(doc.Issuer) != normalizeIssuer(p.cfg.IssuerURL) {
		return nil, configRemoteErrf("discovery issuer %q does not match configured issuer %q", doc.Issuer, p.cfg.IssuerURL)
	}

	p.mu.Lock()
	p.discovery = &doc
	p.mu.Unlock()

	result := doc
	return &result, nil
}

// FetchJWKS returns the IdP's signing keys. The cached set is served
// until it is older than jwksTTL, unless force is set, in which case the
// keys are always refetched. force is used exactly once per validation,
// in the key-rotation retry path.
func (p *Provider) FetchJWKS(ctx context.Context, force bool) (jwk.Set, error) {
	p.mu.Lock()
	if !force && p.jwks != nil && p.now().Sub(p.jwksFetchedAt) < jwksTTL {
		set := p.jwks
		p.mu.Unlock()
		return set, nil
	}
	p.mu.Unlock()

	doc, err := p.FetchDiscovery(ctx)
	if err != nil {
		return nil, err
	}

	body, status, err := p.get(ctx, doc.JwksURI)
	if err != nil {
		return nil, configRemoteWrap(err, fmt.Sprintf("failed to fetch JWKS from %s", doc.JwksURI))
	}
	if status != http.StatusOK {
		return nil, configRemoteErrf("JWKS request to %s returned status %d", doc.JwksURI, status)
	}

	set, err := jwk.Parse(body)
	if err != nil {
		return nil, configRemoteWrap(err, "failed to parse JWKS")
	}

	p.mu.Lock()
	p.jwks = set
	p.jwksFetchedAt = p.now()
	p.mu.Unlock()

	return set, nil
}

// ClearCache drops the cached discovery document and key set. The next
// call refetches both.
func (p *Provider) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.discovery = nil
	p.jwks = nil
	p.jwksFetchedAt = time.Time{}
}

// requireRuntimeConfig checks the settings every IdP-facing operation
// needs, naming all missing fields at once.
func (p *Provider) requireRuntimeConfig() error {
	var missing []string
	if strings.TrimSpace(p.cfg.IssuerURL) == "" {
		missing = append(missing, "issuer_url")
	}
	if strings.TrimSpace(p.cfg.ClientID) == "" {
		missing = append(missing, "client_id")
	}
	if strings.TrimSpace(p.cfg.RedirectURI) == "" {
		missing = append(missing, "redirect_uri")
	}
	if len(missing) > 0 {
		return configErrf("missing required OIDC settings: %s", strings.Join(missing, ", "))
	}
	return nil
}

func (p *Provider) get(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (d *DiscoveryDocument) missingKeys() []string {
	var missing []string
	if d.Issuer == "" {
		missing = append(missing, "issuer")
	}
	if d.AuthorizationEndpoint == "" {
		missing = append(missing, "authorization_endpoint")
	}
	if d.TokenEndpoint == "" {
		missing = append(missing, "token_endpoint")
	}
	if d.JwksURI == "" {
		missing = append(missing, "jwks_uri")
	}
	return missing
}

// normalizeIssuer strips trailing slashes so issuer comparison tolerates
// the common with/without-slash discrepancy.
func normalizeIssuer(issuer string) string {
	return strings.TrimRight(issuer, "/")
}
