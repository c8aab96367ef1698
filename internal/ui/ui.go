// Пакет ui — встроенная страница загрузки и согласования макетов.
package ui

import (
	"embed"
	"net/http"
	"strings"
)

//go:embed static/artwork-approval.html static/img/logo.svg
var staticFS embed.FS

const (
	pagePath = "static/artwork-approval.html"
	logoPath = "static/img/logo.svg"
)

// Page обрабатывает GET / и GET /artwork-approval.html.
func Page(w http.ResponseWriter, _ *http.Request) {
	data, err := staticFS.ReadFile(pagePath)
	if err != nil {
		http.Error(w, "page unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

// Logo обрабатывает GET /img/{name}. Логотип в письмах ссылается
// на {brand}_logo.svg, любое такое имя отдаёт встроенный логотип.
func Logo(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "_logo.svg") && !strings.HasSuffix(r.URL.Path, "/logo.svg") {
		http.NotFound(w, r)
		return
	}
	data, err := staticFS.ReadFile(logoPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/svg+xml")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(data)
}
