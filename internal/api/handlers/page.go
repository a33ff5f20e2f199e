// page.go: страница посетителя, на которую ведёт QR-код.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/a-h/templ"

	apierrors "github.com/woredasystem/woreda1inspection/internal/api/errors"
	"github.com/woredasystem/woreda1inspection/internal/api/middleware"
	"github.com/woredasystem/woreda1inspection/internal/service"
	"github.com/woredasystem/woreda1inspection/internal/ui/pages"
)

// RequestAccessPage: GET /request-access?code=&scope=
// Открытие страницы регистрирует заявку, затем страница опрашивает статус.
func (h *APIHandler) RequestAccessPage(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	req, _, err := h.requests.Record(r.Context(), service.RecordInput{
		Code:     code,
		OriginIP: clientIP(r),
		ScopeID:  r.URL.Query().Get("scope"),
	})
	if err != nil {
		h.renderPageError(w, r, err)
		return
	}

	q := url.Values{}
	q.Set("code", req.Code)
	component := pages.RequestAccess(pages.RequestAccessData{
		Code:           req.Code,
		ScopeID:        req.ScopeID,
		Status:         string(req.Status),
		StatusURL:      "/api/v1/access-requests/status?" + q.Encode(),
		DocumentsURL:   "/api/v1/documents",
		PollIntervalMs: pollIntervalMs(h.pollInterval),
	})
	w.Header().Set("Cache-Control", "no-store")
	templ.Handler(component).ServeHTTP(w, r)
}

func (h *APIHandler) renderPageError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	data := pages.ErrorData{
		Title:   "Ошибка",
		Message: "Не удалось зарегистрировать заявку. Попробуйте позже.",
	}
	switch {
	case errors.Is(err, service.ErrValidation):
		status = http.StatusBadRequest
		data = pages.ErrorData{
			Title:   "Некорректный QR-код",
			Message: "Код заявки не распознан. Отсканируйте QR-код ещё раз.",
		}
	case errors.Is(err, service.ErrStoreUnavailable):
		status = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", strconv.Itoa(apierrors.RetryAfterSeconds))
		data.Message = "Сервис временно недоступен. Обновите страницу через несколько секунд."
	default:
		h.logger.Error("Ошибка страницы посетителя",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	templ.Handler(pages.Error(data), templ.WithStatus(status)).ServeHTTP(w, r)
}

// actorOrEmpty: имя администратора для журнала, если запрос аутентифицирован.
func actorOrEmpty(r *http.Request) string {
	return middleware.ActorFromContext(r.Context())
}
