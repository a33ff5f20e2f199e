package handlers

import (
	"net/http"

	apierrors "github.com/woredasystem/woreda1inspection/internal/api/errors"
)

type validateTokenBody struct {
	Token string `json:"token"`
}

type grantResponse struct {
	Valid     bool   `json:"valid"`
	ScopeID   string `json:"scope_id"`
	ExpiresAt string `json:"expires_at"`
}

// ValidateToken проверяет токен доступа для внешних потребителей.
// POST /api/v1/tokens/validate. Любая причина отказа даёт одинаковый 401.
func (h *APIHandler) ValidateToken(w http.ResponseWriter, r *http.Request) {
	var body validateTokenBody
	if err := decodeJSON(r, &body); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	grant, err := h.validator.Validate(r.Context(), body.Token, h.clock.Now())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, grantResponse{
		Valid:     true,
		ScopeID:   grant.ScopeID,
		ExpiresAt: formatTime(grant.ExpiresAt),
	})
}
