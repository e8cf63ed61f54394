package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/findosh/quantdesk/internal/services/auth"
	"github.com/rs/zerolog"
)

// TokenRequest carries client credentials
type TokenRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// APIToken exchanges client credentials for a bearer token
func (h *Handler) APIToken(w http.ResponseWriter, r *http.Request) {
	if h.authService == nil || !h.authService.Enabled() {
		h.jsonError(w, "Authentication is not enabled", http.StatusNotFound)
		return
	}

	var req TokenRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" || req.ClientSecret == "" {
		h.jsonError(w, "client_id and client_secret required", http.StatusBadRequest)
		return
	}

	token, err := h.authService.IssueToken(clientID, req.ClientSecret)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			zerolog.Ctx(r.Context()).Warn().Str("client_id", clientID).Msg("rejected client credentials")
			h.jsonError(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		h.serviceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	h.jsonResponse(w, r, http.StatusOK, token)
}
