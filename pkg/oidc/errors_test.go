package oidc

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"transaction", transactionErr("gone"), http.StatusBadRequest},
		{"validation", validationErrf("bad token"), http.StatusUnauthorized},
		{"group gate", groupGateErrf("not a member"), http.StatusForbidden},
		{"identity mismatch", identityMismatchErr("different identity"), http.StatusForbidden},
		{"exchange", exchangeErr("rejected"), http.StatusServiceUnavailable},
		{"local config", configErrf("missing setting"), http.StatusInternalServerError},
		{"remote config", configRemoteErrf("idp down"), http.StatusServiceUnavailable},
		{"unclassified", errors.New("whatever"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := configRemoteWrap(cause, "failed to fetch discovery document")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestIsKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("complete login: %w", validationErrf("nonce mismatch"))

	assert.True(t, IsKind(err, KindValidation))
	assert.False(t, IsKind(err, KindExchange))
	assert.False(t, IsKind(errors.New("plain"), KindValidation))
}
