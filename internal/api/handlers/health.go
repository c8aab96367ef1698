// health.go — обработчики health endpoints для Kubernetes probes.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/bigkaa/artwork-review/internal/config"
	"github.com/bigkaa/artwork-review/internal/domain/model"
)

// statusFail — строковая константа для статуса "fail" в health checks.
const statusFail = "fail"

// serviceName — имя сервиса в ответах health endpoints.
const serviceName = "artwork-review"

// pingTimeout — ограничение времени на проверку одного хранилища.
const pingTimeout = 3 * time.Second

// Pinger — хранилище, поддерживающее проверку готовности.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StatsProvider — источник количества записей по статусам.
type StatsProvider interface {
	Stats(ctx context.Context) (map[model.Status]int, error)
}

// DependencyHealth — состояние внешних зависимостей (dephealth).
type DependencyHealth interface {
	Health() map[string]bool
}

// HealthHandler реализует health endpoints: /health/live, /health/ready.
type HealthHandler struct {
	version   string
	records   Pinger
	artifacts Pinger
	stats     StatsProvider
	// deps — nil, если мониторинг зависимостей не настроен
	deps DependencyHealth
}

// NewHealthHandler создаёт обработчик health endpoints.
func NewHealthHandler(records, artifacts Pinger, stats StatsProvider, deps DependencyHealth) *HealthHandler {
	return &HealthHandler{
		version:   config.Version,
		records:   records,
		artifacts: artifacts,
		stats:     stats,
		deps:      deps,
	}
}

// HealthLive обрабатывает GET /health/live.
// Возвращает 200, если процесс жив. Не проверяет зависимости.
func (h *HealthHandler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
	})
}

// HealthReady обрабатывает GET /health/ready.
// Проверяет: хранилище записей, хранилище артефактов, внешние зависимости.
func (h *HealthHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	overallStatus := "ok"
	httpStatus := http.StatusOK

	recordsCheck := checkPing(r.Context(), h.records)
	if recordsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	artifactsCheck := checkPing(r.Context(), h.artifacts)
	if artifactsCheck["status"] != "ok" {
		overallStatus = statusFail
		httpStatus = http.StatusServiceUnavailable
	}

	checks := map[string]any{
		"record_store":   recordsCheck,
		"artifact_store": artifactsCheck,
	}

	// Внешние зависимости некритичны: отказ почтового провайдера не
	// блокирует загрузку и согласование
	if h.deps != nil {
		depsCheck := h.checkDependencies()
		checks["dependencies"] = depsCheck
		if depsCheck["status"] != "ok" && overallStatus != statusFail {
			overallStatus = "degraded"
		}
	}

	resp := map[string]any{
		"status":    overallStatus,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   h.version,
		"service":   serviceName,
		"checks":    checks,
	}

	if h.stats != nil && httpStatus == http.StatusOK {
		if counts, err := h.stats.Stats(r.Context()); err == nil {
			records := make(map[string]int, len(counts))
			for status, n := range counts {
				records[string(status)] = n
			}
			resp["records"] = records
		}
	}

	writeJSON(w, httpStatus, resp)
}

// checkPing проверяет готовность хранилища.
func checkPing(ctx context.Context, p Pinger) map[string]any {
	if p == nil {
		return map[string]any{
			"status":  "ok",
			"message": "Проверка не настроена",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		return map[string]any{
			"status":  statusFail,
			"message": err.Error(),
		}
	}
	return map[string]any{"status": "ok"}
}

// checkDependencies собирает статусы зависимостей dephealth.
func (h *HealthHandler) checkDependencies() map[string]any {
	health := h.deps.Health()
	status := "ok"
	for _, healthy := range health {
		if !healthy {
			status = "degraded"
			break
		}
	}
	return map[string]any{
		"status":  status,
		"details": health,
	}
}
