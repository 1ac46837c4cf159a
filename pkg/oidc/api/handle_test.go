package api

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/asotbz/Fuzzbin-sub000/pkg/oidc"
	"github.com/asotbz/Fuzzbin-sub000/pkg/tokengenerator"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testIdP is a minimal in-process identity provider for handler tests
type testIdP struct {
	t      *testing.T
	server *httptest.Server
	key    jwk.Key

	mu    sync.Mutex
	nonce string
	extra map[string]interface{}
}

func newTestIdP(t *testing.T) *testIdP {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test-key"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))

	idp := &testIdP{t: t, key: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"issuer":                 idp.server.URL,
			"authorization_endpoint": idp.server.URL + "/authorize",
			"token_endpoint":         idp.server.URL + "/token",
			"jwks_uri":               idp.server.URL + "/keys",
			"end_session_endpoint":   idp.server.URL + "/logout",
		})
	})
	mux.HandleFunc("/keys", func(w http.ResponseWriter, r *http.Request) {
		pub, err := jwk.PublicKeyOf(idp.key)
		require.NoError(t, err)
		set := jwk.NewSet()
		require.NoError(t, set.AddKey(pub))
		json.NewEncoder(w).Encode(set)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		idp.mu.Lock()
		nonce := idp.nonce
		extra := idp.extra
		idp.mu.Unlock()

		now := time.Now()
		builder := jwt.NewBuilder().
			Issuer(idp.server.URL).
			Subject("admin-subject").
			Audience([]string{"fuzzbin-client"}).
			IssuedAt(now).
			Expiration(now.Add(5 * time.Minute)).
			Claim("nonce", nonce)
		for name, value := range extra {
			builder = builder.Claim(name, value)
		}
		tok, err := builder.Build()
		require.NoError(t, err)
		signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, idp.key))
		require.NoError(t, err)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "idp-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     string(signed),
		})
	})

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (idp *testIdP) setNonce(nonce string, extra map[string]interface{}) {
	idp.mu.Lock()
	idp.nonce = nonce
	idp.extra = extra
	idp.mu.Unlock()
}

func newTestHandle(t *testing.T, idp *testIdP, opts ...oidc.FlowOption) *Handle {
	t.Helper()

	provider, err := oidc.NewProvider(oidc.Config{
		IssuerURL:   idp.server.URL,
		ClientID:    "fuzzbin-client",
		RedirectURI: "https://app.example.com/auth/callback",
	})
	require.NoError(t, err)

	jwtService := tokengenerator.NewJwtService(
		tokengenerator.NewJwtTokenGenerator("test-secret", "fuzzbin", "fuzzbin"),
	)

	flow := oidc.NewFlowService(
		provider,
		oidc.NewTransactionStore(),
		oidc.NewInMemBindingRepository(),
		NewJwtSessionIssuer(jwtService),
		opts...,
	)
	return NewHandle(flow, jwtService)
}

// startLogin calls the start endpoint and points the IdP at the login's
// nonce, returning the state to exchange
func startLogin(t *testing.T, h *Handle, idp *testIdP, extra map[string]interface{}) string {
	t.Helper()

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodGet, "/start", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AuthURL)
	require.NotEmpty(t, resp.State)

	u, err := url.Parse(resp.AuthURL)
	require.NoError(t, err)
	require.Equal(t, resp.State, u.Query().Get("state"))
	idp.setNonce(u.Query().Get("nonce"), extra)

	return resp.State
}

func TestStartEndpoint(t *testing.T) {
	idp := newTestIdP(t)
	h := newTestHandle(t, idp)

	rec := httptest.NewRecorder()
	h.Start(rec, httptest.NewRequest(http.MethodGet, "/start", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	u, err := url.Parse(resp.AuthURL)
	require.NoError(t, err)
	assert.Equal(t, "/authorize", u.Path)
	assert.Equal(t, "code", u.Query().Get("response_type"))
	assert.Equal(t, "S256", u.Query().Get("code_challenge_method"))
}

func TestExchangeEndpoint(t *testing.T) {
	idp := newTestIdP(t)
	h := newTestHandle(t, idp)

	state := startLogin(t, h, idp, map[string]interface{}{"email": "admin@example.com"})

	body := `{"code":"auth-code","state":"` + state + `"}`
	rec := httptest.NewRecorder()
	h.Exchange(rec, httptest.NewRequest(http.MethodPost, "/exchange", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ExchangeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Greater(t, resp.ExpiresIn, 0)

	var refreshCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokengenerator.REFRESH_TOKEN_NAME {
			refreshCookie = c
		}
	}
	require.NotNil(t, refreshCookie, "exchange sets the refresh token cookie")
	assert.True(t, refreshCookie.HttpOnly)
	assert.NotEmpty(t, refreshCookie.Value)
}

func TestExchangeEndpointRejectsBadRequests(t *testing.T) {
	idp := newTestIdP(t)
	h := newTestHandle(t, idp)

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"missing code", `{"state":"s"}`},
		{"missing state", `{"code":"c"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.Exchange(rec, httptest.NewRequest(http.MethodPost, "/exchange", strings.NewReader(tt.body)))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestExchangeEndpointUnknownState(t *testing.T) {
	idp := newTestIdP(t)
	h := newTestHandle(t, idp)

	rec := httptest.NewRecorder()
	h.Exchange(rec, httptest.NewRequest(http.MethodPost, "/exchange",
		strings.NewReader(`{"code":"c","state":"never-issued"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown or expired")
}

func TestExchangeEndpointGroupGate(t *testing.T) {
	idp := newTestIdP(t)
	h := newTestHandle(t, idp, oidc.WithRequiredGroup("admins"))

	state := startLogin(t, h, idp, map[string]interface{}{"groups": []string{"users"}})

	body := `{"code":"auth-code","state":"` + state + `"}`
	rec := httptest.NewRecorder()
	h.Exchange(rec, httptest.NewRequest(http.MethodPost, "/exchange", strings.NewReader(body)))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), "Access denied")
}

func TestLogoutEndpoint(t *testing.T) {
	idp := newTestIdP(t)
	h := newTestHandle(t, idp)

	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodGet, "/logout?post_logout_redirect_uri=https://app.example.com/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp LogoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.LogoutURL, "/logout")
	assert.Contains(t, resp.LogoutURL, "post_logout_redirect_uri")

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == tokengenerator.REFRESH_TOKEN_NAME && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "logout clears the refresh token cookie")
}

func TestGetConfigEndpoint(t *testing.T) {
	idp := newTestIdP(t)
	h := newTestHandle(t, idp)

	rec := httptest.NewRecorder()
	h.GetConfig(rec, httptest.NewRequest(http.MethodGet, "/config", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var summary oidc.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.Enabled)
	assert.Equal(t, "fuzzbin-client", summary.ClientID)
	assert.False(t, summary.Bound)
	assert.NotContains(t, rec.Body.String(), "secret")
}

func TestRoutes(t *testing.T) {
	idp := newTestIdP(t)
	h := newTestHandle(t, idp)

	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/start")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
