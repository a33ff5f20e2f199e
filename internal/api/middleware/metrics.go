// metrics.go: Prometheus HTTP-метрики шлюза
// (ag_http_requests_total, ag_http_request_duration_seconds).
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ag_http_requests_total",
			Help: "Общее количество HTTP-запросов к шлюзу",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ag_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к шлюзу в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware считает запросы и их длительность по нормализованному пути.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			rec := recordStatus(w)

			next.ServeHTTP(rec, r)

			path := normalizePath(r.URL.Path)
			httpRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(started).Seconds())
		})
	}
}

// dynamicPrefixes: префиксы путей с идентификатором в следующем сегменте.
var dynamicPrefixes = []struct {
	prefix string
	result string
}{
	{"/api/v1/admin/access-requests/", "/api/v1/admin/access-requests/{id}"},
	{"/api/v1/admin/qr-codes/", "/api/v1/admin/qr-codes/{code}"},
	{"/api/v1/documents/", "/api/v1/documents/{id}"},
}

// normalizePath заменяет идентификаторы в пути на шаблон,
// чтобы не раздувать кардинальность лейблов.
// /api/v1/documents/a1b2.../content → /api/v1/documents/{id}/content
func normalizePath(path string) string {
	for _, p := range dynamicPrefixes {
		rest, ok := strings.CutPrefix(path, p.prefix)
		if !ok || rest == "" {
			continue
		}
		if _, suffix, found := strings.Cut(rest, "/"); found {
			return p.result + "/" + suffix
		}
		return p.result
	}
	return path
}
