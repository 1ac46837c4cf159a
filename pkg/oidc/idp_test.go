package oidc

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/require"
)

// fakeIdP is an in-process identity provider serving discovery, JWKS
// and token endpoints for tests.
type fakeIdP struct {
	t      *testing.T
	server *httptest.Server

	mu            sync.Mutex
	signingKey    jwk.Key
	publicKeys    jwk.Set
	endSession    bool
	tokenHandler  http.HandlerFunc
	discoveryHits int
	jwksHits      int
	tokenHits     int
}

func newSigningKey(t *testing.T, kid string) jwk.Key {
	t.Helper()

	raw, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	key, err := jwk.FromRaw(raw)
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, kid))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.RS256))
	return key
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	idp := &fakeIdP{t: t, endSession: true}
	idp.rotateKey("key-1")

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", idp.handleDiscovery)
	mux.HandleFunc("/keys", idp.handleJWKS)
	mux.HandleFunc("/token", idp.handleToken)

	idp.server = httptest.NewServer(mux)
	t.Cleanup(idp.server.Close)
	return idp
}

func (idp *fakeIdP) issuer() string {
	return idp.server.URL
}

// rotateKey replaces the signing key and the published key set
func (idp *fakeIdP) rotateKey(kid string) {
	key := newSigningKey(idp.t, kid)
	pub, err := jwk.PublicKeyOf(key)
	require.NoError(idp.t, err)

	set := jwk.NewSet()
	require.NoError(idp.t, set.AddKey(pub))

	idp.mu.Lock()
	idp.signingKey = key
	idp.publicKeys = set
	idp.mu.Unlock()
}

func (idp *fakeIdP) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	idp.mu.Lock()
	idp.discoveryHits++
	endSession := idp.endSession
	idp.mu.Unlock()

	doc := map[string]string{
		"issuer": idp.server.URL,
		// A pre-existing query parameter login URLs must preserve
		"authorization_endpoint": idp.server.URL + "/authorize?audience=primary",
		"token_endpoint":         idp.server.URL + "/token",
		"jwks_uri":               idp.server.URL + "/keys",
	}
	if endSession {
		doc["end_session_endpoint"] = idp.server.URL + "/logout"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

func (idp *fakeIdP) handleJWKS(w http.ResponseWriter, r *http.Request) {
	idp.mu.Lock()
	idp.jwksHits++
	set := idp.publicKeys
	idp.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(set)
}

func (idp *fakeIdP) handleToken(w http.ResponseWriter, r *http.Request) {
	idp.mu.Lock()
	idp.tokenHits++
	handler := idp.tokenHandler
	idp.mu.Unlock()

	if handler != nil {
		handler(w, r)
		return
	}

	idToken := idp.mintIDToken(r.FormValue("client_id"), "nonce-unset", nil)
	writeTokenResponse(w, idToken)
}

func (idp *fakeIdP) setTokenHandler(handler http.HandlerFunc) {
	idp.mu.Lock()
	idp.tokenHandler = handler
	idp.mu.Unlock()
}

// mintIDToken signs an ID token with the IdP's current key
func (idp *fakeIdP) mintIDToken(clientID, nonce string, extra map[string]interface{}) string {
	idp.t.Helper()

	now := time.Now()
	builder := jwt.NewBuilder().
		Issuer(idp.server.URL).
		Subject("admin-subject").
		Audience([]string{clientID}).
		IssuedAt(now).
		Expiration(now.Add(5 * time.Minute)).
		Claim("nonce", nonce)
	for name, value := range extra {
		builder = builder.Claim(name, value)
	}

	tok, err := builder.Build()
	require.NoError(idp.t, err)

	idp.mu.Lock()
	key := idp.signingKey
	idp.mu.Unlock()

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, key))
	require.NoError(idp.t, err)
	return string(signed)
}

func writeTokenResponse(w http.ResponseWriter, idToken string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": "idp-access-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     idToken,
	})
}

func (idp *fakeIdP) counts() (discovery, jwks, token int) {
	idp.mu.Lock()
	defer idp.mu.Unlock()
	return idp.discoveryHits, idp.jwksHits, idp.tokenHits
}

// testProviderConfig returns a config pointed at the fake IdP
func (idp *fakeIdP) providerConfig() Config {
	return Config{
		IssuerURL:   idp.server.URL,
		ClientID:    "fuzzbin-client",
		RedirectURI: "https://app.example.com/auth/callback",
	}
}
