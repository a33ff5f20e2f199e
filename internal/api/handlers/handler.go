// handler.go: основной обработчик API шлюза доступа.
// Объединяет доменные обработчики и делегирует запросы в сервисный слой.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/woredasystem/woreda1inspection/internal/api/errors"
	"github.com/woredasystem/woreda1inspection/internal/service"
)

// APIHandler: обработчик публичного и административного API.
type APIHandler struct {
	health       *HealthHandler
	requests     *service.AccessRequestService
	approvals    *service.ApprovalService
	validator    *service.AccessValidator
	documents    *service.DocumentService
	clock        service.Clock
	pollInterval time.Duration
	logger       *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
// pollInterval сообщается клиентам, опрашивающим статус заявки.
func NewAPIHandler(
	health *HealthHandler,
	requests *service.AccessRequestService,
	approvals *service.ApprovalService,
	validator *service.AccessValidator,
	documents *service.DocumentService,
	clock service.Clock,
	pollInterval time.Duration,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:       health,
		requests:     requests,
		approvals:    approvals,
		validator:    validator,
		documents:    documents,
		clock:        clock,
		pollInterval: pollInterval,
		logger:       logger.With(slog.String("component", "api_handler")),
	}
}

// HealthLive: liveness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady: readiness probe (делегируется в HealthHandler).
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics: Prometheus метрики (делегируется в HealthHandler).
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON разбирает тело запроса. Неизвестные поля игнорируются.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	return json.NewDecoder(r.Body).Decode(dst)
}

// writeServiceError преобразует ошибку сервисного слоя в HTTP-ответ.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var decided *service.AlreadyDecidedError
	switch {
	case errors.As(err, &decided):
		apierrors.AlreadyDecided(w, string(decided.Current))
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrInvalidToken):
		apierrors.InvalidToken(w)
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Ресурс не найден")
	case errors.Is(err, service.ErrStoreUnavailable):
		apierrors.StoreUnavailable(w)
	case errors.Is(err, service.ErrObjectStoreUnavailable):
		apierrors.ObjectStoreUnavailable(w)
	default:
		h.logger.Error("Необработанная ошибка",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка сервера")
	}
}

// timeLayout: RFC 3339 с миллисекундами, точность хранения сроков токенов.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}
