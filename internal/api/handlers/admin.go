// admin.go: административные обработчики заявок.
// Доступ проверяется JWTAuth и RequireRole до вызова обработчика.
package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/oapi-codegen/runtime"

	apierrors "github.com/woredasystem/woreda1inspection/internal/api/errors"
	"github.com/woredasystem/woreda1inspection/internal/api/middleware"
	"github.com/woredasystem/woreda1inspection/internal/domain/model"
	"github.com/woredasystem/woreda1inspection/internal/service"
)

type adminAccessRequestResponse struct {
	accessRequestResponse
	OriginIP       string  `json:"origin_ip,omitempty"`
	TokenExpiresAt *string `json:"token_expires_at,omitempty"`
	DecidedAt      *string `json:"decided_at,omitempty"`
	DecidedBy      *string `json:"decided_by,omitempty"`
}

type adminAccessRequestListResponse struct {
	Items []adminAccessRequestResponse `json:"items"`
}

type decisionResponse struct {
	ID          string  `json:"id"`
	Status      string  `json:"status"`
	AccessToken *string `json:"access_token,omitempty"`
	ExpiresAt   *string `json:"expires_at,omitempty"`
}

// toAdminAccessRequestResponse не раскрывает сам токен: он уходит только
// посетителю через опрос статуса и одобрившему администратору.
func toAdminAccessRequestResponse(req *model.AccessRequest) adminAccessRequestResponse {
	return adminAccessRequestResponse{
		accessRequestResponse: toAccessRequestResponse(req),
		OriginIP:              req.OriginIP,
		TokenExpiresAt:        formatTimePtr(req.TokenExpiresAt),
		DecidedAt:             formatTimePtr(req.DecidedAt),
		DecidedBy:             req.DecidedBy,
	}
}

// ListAccessRequests: GET /api/v1/admin/access-requests?limit=
func (h *APIHandler) ListAccessRequests(w http.ResponseWriter, r *http.Request) {
	var limit *int
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр limit")
		return
	}
	n := 0
	if limit != nil {
		n = *limit
	}

	list, err := h.requests.ListRecent(r.Context(), n)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	items := make([]adminAccessRequestResponse, 0, len(list))
	for _, req := range list {
		items = append(items, toAdminAccessRequestResponse(req))
	}
	writeJSON(w, http.StatusOK, adminAccessRequestListResponse{Items: items})
}

// GetAccessRequest: GET /api/v1/admin/access-requests/{id}
func (h *APIHandler) GetAccessRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := bindIDPath(w, r)
	if !ok {
		return
	}

	req, err := h.requests.Get(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAdminAccessRequestResponse(req))
}

// ApproveAccessRequest: POST /api/v1/admin/access-requests/{id}/approve
func (h *APIHandler) ApproveAccessRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.approvals.Approve)
}

// DenyAccessRequest: POST /api/v1/admin/access-requests/{id}/deny
func (h *APIHandler) DenyAccessRequest(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, h.approvals.Deny)
}

type decideFunc func(ctx context.Context, requestID, decidedBy string) (*service.Decision, error)

func (h *APIHandler) decide(w http.ResponseWriter, r *http.Request, fn decideFunc) {
	id, ok := bindIDPath(w, r)
	if !ok {
		return
	}

	actor := middleware.ActorFromContext(r.Context())
	if actor == "" {
		apierrors.Unauthorized(w, "Требуется аутентификация")
		return
	}

	decision, err := fn(r.Context(), id, actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.logger.Info("Решение по заявке принято",
		slog.String("request_id", id),
		slog.String("status", string(decision.Status)),
		slog.String("decided_by", actor),
	)

	resp := decisionResponse{ID: id, Status: string(decision.Status)}
	if decision.Status == model.StatusApproved {
		token := decision.Token
		resp.AccessToken = &token
		resp.ExpiresAt = formatTimePtr(&decision.ExpiresAt)
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, resp)
}
