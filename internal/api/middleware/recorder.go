// recorder.go — общая обёртка ответа для логирования и метрик.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// statusRecorder запоминает статус и объём ответа.
// Одна обёртка на запрос: второй middleware переиспользует её.
type statusRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

// captureResponse оборачивает w или возвращает уже установленную обёртку.
func captureResponse(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *statusRecorder) WriteHeader(code int) {
	if !rec.wroteHeader {
		rec.status = code
		rec.wroteHeader = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	rec.wroteHeader = true
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

// Unwrap нужен http.ResponseController и http.ServeContent.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// routeLabel возвращает шаблон маршрута chi (/api/review/{id}).
// Идентификатор записи служит ссылкой на согласование и не должен
// попадать в логи и метрики. Без шаблона путь нормализуется.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" && pattern != "/*" {
			return pattern
		}
	}
	return normalizePath(r.URL.Path)
}
