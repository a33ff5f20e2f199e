// access_requests.go: публичные обработчики заявок посетителей.
package handlers

import (
	"net"
	"net/http"
	"strings"
	"time"

	apierrors "github.com/woredasystem/woreda1inspection/internal/api/errors"
	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/service"
)

type recordAccessRequestBody struct {
	Code    string `json:"code"`
	ScopeID string `json:"scope_id"`
}

type accessRequestResponse struct {
	ID        string `json:"id"`
	Code      string `json:"code"`
	Status    string `json:"status"`
	ScopeID   string `json:"scope_id"`
	CreatedAt string `json:"created_at"`
}

type accessRequestStatusResponse struct {
	Status         string  `json:"status"`
	AccessToken    *string `json:"access_token,omitempty"`
	ExpiresAt      *string `json:"expires_at,omitempty"`
	PollIntervalMs int64   `json:"poll_interval_ms"`
}

func toAccessRequestResponse(req *model.AccessRequest) accessRequestResponse {
	return accessRequestResponse{
		ID:        req.ID,
		Code:      req.Code,
		Status:    string(req.Status),
		ScopeID:   req.ScopeID,
		CreatedAt: formatTime(req.CreatedAt),
	}
}

// RecordAccessRequest регистрирует сканирование QR-кода.
// POST /api/v1/access-requests: 201 для новой заявки, 200 для существующей.
func (h *APIHandler) RecordAccessRequest(w http.ResponseWriter, r *http.Request) {
	var body recordAccessRequestBody
	if err := decodeJSON(r, &body); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	req, created, err := h.requests.Record(r.Context(), service.RecordInput{
		Code:     body.Code,
		OriginIP: clientIP(r),
		ScopeID:  body.ScopeID,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toAccessRequestResponse(req))
}

// GetAccessRequestStatus отдаёт статус заявки опрашивающему клиенту.
// GET /api/v1/access-requests/status?code=
func (h *APIHandler) GetAccessRequestStatus(w http.ResponseWriter, r *http.Request) {
	view, err := h.requests.StatusOf(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, accessRequestStatusResponse{
		Status:         string(view.Status),
		AccessToken:    view.Token,
		ExpiresAt:      formatTimePtr(view.ExpiresAt),
		PollIntervalMs: pollIntervalMs(h.pollInterval),
	})
}

// clientIP: первый адрес X-Forwarded-For, затем X-Real-IP, затем адрес соединения.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// pollIntervalMs: интервал опроса в миллисекундах, по умолчанию 2 с.
func pollIntervalMs(d time.Duration) int64 {
	if d <= 0 {
		return 2000
	}
	return d.Milliseconds()
}
