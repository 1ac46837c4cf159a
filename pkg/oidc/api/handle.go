package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/asotbz/Fuzzbin-sub000/pkg/oidc"
	"github.com/asotbz/Fuzzbin-sub000/pkg/tokengenerator"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
)

// Handle handles HTTP requests for OIDC login
type Handle struct {
	flowService *oidc.FlowService
	jwtService  *tokengenerator.JwtService
}

// NewHandle creates a new OIDC API handler
func NewHandle(flowService *oidc.FlowService, jwtService *tokengenerator.JwtService) *Handle {
	return &Handle{
		flowService: flowService,
		jwtService:  jwtService,
	}
}

// StartResponse represents the response body for starting a login
type StartResponse struct {
	AuthURL string `json:"auth_url"`
	State   string `json:"state"`
}

// ExchangeRequest represents the request body for completing a login
type ExchangeRequest struct {
	Code  string `json:"code"`
	State string `json:"state"`
}

// ExchangeResponse represents the response body for completing a login
type ExchangeResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// LogoutResponse represents the response body for logging out
type LogoutResponse struct {
	LogoutURL string `json:"logout_url,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Routes returns the router for the public OIDC login endpoints.
// The config endpoint is registered separately behind authentication.
func (h *Handle) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/start", h.Start)
	r.Post("/exchange", h.Exchange)
	r.Get("/logout", h.Logout)
	return r
}

// Start handles beginning a login flow
func (h *Handle) Start(w http.ResponseWriter, r *http.Request) {
	authURL, state, err := h.flowService.Start(r.Context())
	if err != nil {
		slog.Error("Failed to start OIDC login", "error", err)
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, StartResponse{
		AuthURL: authURL,
		State:   state,
	})
}

// Exchange handles completing a login flow with the authorization code
func (h *Handle) Exchange(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		renderErrorStatus(w, r, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Code == "" || req.State == "" {
		renderErrorStatus(w, r, http.StatusBadRequest, "code and state are required")
		return
	}

	session, _, err := h.flowService.Complete(r.Context(), req.Code, req.State)
	if err != nil {
		slog.Error("Failed to complete OIDC login", "error", err)
		renderError(w, r, err)
		return
	}

	if err := h.jwtService.SetRefreshTokenCookie(w, session.RefreshToken, session.RefreshExpiresAt); err != nil {
		slog.Error("Failed to set refresh token cookie", "error", err)
		renderErrorStatus(w, r, http.StatusInternalServerError, "Failed to establish session")
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, ExchangeResponse{
		AccessToken: session.AccessToken,
		TokenType:   session.TokenType,
		ExpiresIn:   session.ExpiresIn,
	})
}

// Logout clears the local session and reports the IdP end-session URL
// when the IdP advertises one
func (h *Handle) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.jwtService.ClearRefreshTokenCookie(w); err != nil {
		slog.Error("Failed to clear refresh token cookie", "error", err)
	}

	postLogoutRedirectURI := r.URL.Query().Get("post_logout_redirect_uri")
	logoutURL, ok, err := h.flowService.LogoutURL(r.Context(), postLogoutRedirectURI)
	if err != nil {
		slog.Error("Failed to build logout URL", "error", err)
		renderError(w, r, err)
		return
	}

	resp := LogoutResponse{}
	if ok {
		resp.LogoutURL = logoutURL
	}
	render.Status(r, http.StatusOK)
	render.JSON(w, r, resp)
}

// GetConfig reports the provider configuration. Mounted behind the
// session-token middleware.
func (h *Handle) GetConfig(w http.ResponseWriter, r *http.Request) {
	summary, err := h.flowService.Summarize(r.Context())
	if err != nil {
		slog.Error("Failed to summarize OIDC configuration", "error", err)
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusOK)
	render.JSON(w, r, summary)
}

// renderError maps a flow error onto its HTTP status with a generic
// message, keeping IdP details out of responses
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := oidc.HTTPStatus(err)
	message := "Authentication failed"
	switch status {
	case http.StatusBadRequest:
		message = "Login session is unknown or expired"
	case http.StatusForbidden:
		message = "Access denied"
	case http.StatusServiceUnavailable:
		message = "Identity provider is unavailable"
	case http.StatusInternalServerError:
		message = "Authentication is not configured correctly"
	}
	renderErrorStatus(w, r, status, message)
}

func renderErrorStatus(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	render.Status(r, statusCode)
	render.JSON(w, r, ErrorResponse{
		Status:  "error",
		Message: message,
	})
}
