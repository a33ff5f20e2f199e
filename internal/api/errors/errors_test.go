package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type decoded struct {
	Error struct {
		Code          string `json:"code"`
		Message       string `json:"message"`
		CurrentStatus string `json:"current_status"`
	} `json:"error"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) decoded {
	t.Helper()
	var body decoded
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("ошибка декодирования: %v", err)
	}
	return body
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter)
		status int
		code   string
	}{
		{"validation", func(w http.ResponseWriter) { ValidationError(w, "x") }, http.StatusBadRequest, CodeValidationError},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "x") }, http.StatusNotFound, CodeNotFound},
		{"unauthorized", func(w http.ResponseWriter) { Unauthorized(w, "x") }, http.StatusUnauthorized, CodeUnauthorized},
		{"invalid token", InvalidToken, http.StatusUnauthorized, CodeInvalidToken},
		{"forbidden", func(w http.ResponseWriter) { Forbidden(w, "x") }, http.StatusForbidden, CodeForbidden},
		{"object store", ObjectStoreUnavailable, http.StatusBadGateway, CodeObjectStoreUnavailable},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "x") }, http.StatusInternalServerError, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w)
			if w.Code != tt.status {
				t.Errorf("статус = %d, ожидался %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if body := decode(t, w); body.Error.Code != tt.code {
				t.Errorf("code = %q, ожидался %q", body.Error.Code, tt.code)
			}
		})
	}
}

func TestAlreadyDecided(t *testing.T) {
	w := httptest.NewRecorder()
	AlreadyDecided(w, "approved")

	if w.Code != http.StatusConflict {
		t.Errorf("статус = %d, ожидался 409", w.Code)
	}
	body := decode(t, w)
	if body.Error.Code != CodeAlreadyDecided || body.Error.CurrentStatus != "approved" {
		t.Errorf("тело = %+v", body.Error)
	}
}

func TestStoreUnavailable(t *testing.T) {
	w := httptest.NewRecorder()
	StoreUnavailable(w)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("статус = %d, ожидался 503", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "2" {
		t.Errorf("Retry-After = %q, ожидался 2", got)
	}
	if body := decode(t, w); body.Error.Code != CodeStoreUnavailable {
		t.Errorf("code = %q", body.Error.Code)
	}
}

func TestInvalidToken_NoCurrentStatus(t *testing.T) {
	w := httptest.NewRecorder()
	InvalidToken(w)
	body := decode(t, w)
	if body.Error.Message != InvalidTokenMessage || body.Error.CurrentStatus != "" {
		t.Errorf("тело = %+v", body.Error)
	}
}
