package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type staticChecker struct {
	status, message string
}

func (c staticChecker) CheckReady() (string, string) {
	return c.status, c.message
}

func TestHealthLive(t *testing.T) {
	h := NewHealthHandler(nil, nil)
	w := httptest.NewRecorder()
	h.HealthLive(w, httptest.NewRequest(http.MethodGet, "/health/live", nil))

	if w.Code != http.StatusOK {
		t.Errorf("статус = %d, ожидался 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"service":"access-gate"`) {
		t.Errorf("тело = %s", w.Body.String())
	}
}

func TestHealthReady(t *testing.T) {
	tests := []struct {
		name       string
		store      ReadinessChecker
		keycloak   ReadinessChecker
		wantCode   int
		wantStatus string
	}{
		{"всё доступно", staticChecker{"ok", ""}, staticChecker{"ok", ""}, http.StatusOK, `"status":"ok"`},
		{"Keycloak недоступен", staticChecker{"ok", ""}, staticChecker{"degraded", "timeout"}, http.StatusOK, `"status":"degraded"`},
		{"хранилище недоступно", staticChecker{"fail", "refused"}, staticChecker{"ok", ""}, http.StatusServiceUnavailable, `"status":"fail"`},
		{"без проверок", nil, nil, http.StatusServiceUnavailable, `"status":"fail"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.store, tt.keycloak)
			w := httptest.NewRecorder()
			h.HealthReady(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

			if w.Code != tt.wantCode {
				t.Errorf("статус = %d, ожидался %d", w.Code, tt.wantCode)
			}
			if !strings.HasPrefix(w.Body.String(), "{"+tt.wantStatus) {
				t.Errorf("тело = %s, ожидался %s", w.Body.String(), tt.wantStatus)
			}
		})
	}
}

func TestOverallStatus(t *testing.T) {
	tests := []struct {
		in   []string
		want string
	}{
		{[]string{"ok", "ok"}, "ok"},
		{[]string{"ok", "degraded"}, "degraded"},
		{[]string{"degraded", "fail"}, "fail"},
		{nil, "ok"},
	}
	for _, tt := range tests {
		if got := overallStatus(tt.in...); got != tt.want {
			t.Errorf("overallStatus(%v) = %q, ожидался %q", tt.in, got, tt.want)
		}
	}
}
