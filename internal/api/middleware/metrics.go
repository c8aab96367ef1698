// metrics.go — Prometheus HTTP метрики сервиса согласования.
// Регистрирует метрики: ar_http_requests_total, ar_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
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
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ar_http_requests_total",
			Help: "Общее количество HTTP-запросов",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ar_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := captureResponse(w)
			next.ServeHTTP(rec, r)

			// Шаблон маршрута известен только после маршрутизации
			route := routeLabel(r)
			httpRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
			httpRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// dynamicPrefixes — префиксы путей, последний сегмент которых — идентификатор.
var dynamicPrefixes = []string{
	"/api/artwork/",
	"/api/review/",
	"/artwork/",
	"/review/",
	"/uploads/",
}

// normalizePath заменяет идентификатор в конце пути на {id}.
// Используется для запросов, не сопоставленных маршруту chi.
// /api/review/8e1b9d52-... → /api/review/{id}
// Неизвестные пути сворачиваются в "other".
func normalizePath(path string) string {
	switch path {
	case "/", "/artwork-approval.html", "/health/live", "/health/ready", "/metrics",
		"/api/upload", "/upload":
		return path
	}

	for _, prefix := range dynamicPrefixes {
		if rest, ok := strings.CutPrefix(path, prefix); ok && rest != "" && !strings.Contains(rest, "/") {
			return prefix + "{id}"
		}
	}
	if strings.HasPrefix(path, "/img/") {
		return "/img/{name}"
	}
	return "other"
}
