// Пакет errors: ответы с ошибками в едином формате шлюза.
// Формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками проходят через WriteError.
package errors

import (
	"encoding/json"
	"net/http"
	"strconv"
)

// Коды ошибок из OpenAPI контракта.
const (
	CodeValidationError        = "VALIDATION_ERROR"
	CodeNotFound               = "NOT_FOUND"
	CodeUnauthorized           = "UNAUTHORIZED"
	CodeInvalidToken           = "INVALID_TOKEN"
	CodeForbidden              = "FORBIDDEN"
	CodeAlreadyDecided         = "ALREADY_DECIDED"
	CodeStoreUnavailable       = "STORE_UNAVAILABLE"
	CodeObjectStoreUnavailable = "OBJECT_STORE_UNAVAILABLE"
	CodeInternalError          = "INTERNAL_ERROR"
)

// InvalidTokenMessage: единое сообщение для любой причины отказа в токене.
const InvalidTokenMessage = "Токен доступа недействителен или истёк"

// RetryAfterSeconds: подсказка клиенту при недоступности хранилища.
const RetryAfterSeconds = 2

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CurrentStatus string `json:"current_status,omitempty"`
}

// WriteError записывает ответ ошибки.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	write(w, statusCode, errorDetail{Code: code, Message: message})
}

func write(w http.ResponseWriter, statusCode int, detail errorDetail) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{Error: detail})
}

// --- Конструкторы типичных ошибок ---

// ValidationError: 400, некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound: 404.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// Unauthorized: 401, нет или невалиден JWT администратора.
func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

// InvalidToken: 401, временный токен посетителя не принят.
// Сообщение одно и то же для всех причин.
func InvalidToken(w http.ResponseWriter) {
	WriteError(w, http.StatusUnauthorized, CodeInvalidToken, InvalidTokenMessage)
}

// Forbidden: 403, недостаточно прав.
func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, CodeForbidden, message)
}

// AlreadyDecided: 409, заявка уже решена. currentStatus носит справочный характер.
func AlreadyDecided(w http.ResponseWriter, currentStatus string) {
	write(w, http.StatusConflict, errorDetail{
		Code:          CodeAlreadyDecided,
		Message:       "Заявка уже решена",
		CurrentStatus: currentStatus,
	})
}

// StoreUnavailable: 503 с Retry-After.
func StoreUnavailable(w http.ResponseWriter) {
	w.Header().Set("Retry-After", strconv.Itoa(RetryAfterSeconds))
	WriteError(w, http.StatusServiceUnavailable, CodeStoreUnavailable, "Хранилище заявок временно недоступно")
}

// ObjectStoreUnavailable: 502, объектное хранилище документов недоступно.
func ObjectStoreUnavailable(w http.ResponseWriter) {
	WriteError(w, http.StatusBadGateway, CodeObjectStoreUnavailable, "Хранилище документов недоступно")
}

// InternalError: 500.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
