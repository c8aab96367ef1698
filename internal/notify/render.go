// render.go — формирование HTML-писем из шаблонов.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/bigkaa/artwork-review/internal/domain/model"
)

const (
	subjectClientReview  = "Artwork Approval Request - %s"
	subjectAdminDecision = "Artwork Approval Response"
)

var clientReviewTmpl = template.Must(template.New("client_review").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <img src="{{.LogoURL}}" alt="{{.Brand}} Logo" style="width: 120px; margin-bottom: 20px;">
  <h2>Artwork Approval Request</h2>
  <p>Hello,</p>
  <p>We have prepared your artwork for review. Please click the link below to view and approve or request changes:</p>
  <a href="{{.ReviewURL}}" style="background: #0074d9; color: white; padding: 12px 24px; text-decoration: none; border-radius: 6px; display: inline-block; margin: 20px 0;">Review Artwork</a>
  <p>If you have any questions, please don't hesitate to contact us.</p>
  <p>Best regards,<br>The {{.Brand}} Team</p>
</div>
`))

var adminDecisionTmpl = template.Must(template.New("admin_decision").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <img src="{{.LogoURL}}" alt="{{.Brand}} Logo" style="width: 120px; margin-bottom: 20px;">
  <h2>Artwork Approval Response</h2>
  <p><strong>Client:</strong> {{.ClientEmail}}</p>
  <p><strong>File:</strong> {{.DisplayName}}</p>
  <p><strong>Status:</strong> {{.Status}}</p>
  {{- if .Notes}}
  <p><strong>Notes:</strong> {{.Notes}}</p>
  {{- end}}
  <p><strong>Artwork:</strong> <a href="{{.ArtworkURL}}">View Artwork</a></p>
</div>
`))

// Renderer формирует тему и тело писем.
type Renderer struct {
	baseURL string
	brand   string
	logoURL string
}

// NewRenderer создаёт Renderer.
// baseURL — абсолютный адрес сервиса для ссылок в письмах.
func NewRenderer(baseURL, brand string) *Renderer {
	baseURL = strings.TrimRight(baseURL, "/")
	return &Renderer{
		baseURL: baseURL,
		brand:   brand,
		logoURL: baseURL + "/img/" + brand + "_logo.svg",
	}
}

// ReviewURL — абсолютная ссылка на страницу согласования.
func (r *Renderer) ReviewURL(id string) string {
	return r.baseURL + "/review/" + id
}

// ArtworkURL — абсолютная ссылка на загруженный файл.
func (r *Renderer) ArtworkURL(ref string) string {
	return r.baseURL + "/uploads/" + ref
}

// ClientReviewRequest формирует письмо клиенту со ссылкой на согласование.
func (r *Renderer) ClientReviewRequest(rec *model.ArtworkRecord) (string, string, error) {
	var buf bytes.Buffer
	err := clientReviewTmpl.Execute(&buf, map[string]string{
		"Brand":     r.brand,
		"LogoURL":   r.logoURL,
		"ReviewURL": r.ReviewURL(rec.ID),
	})
	if err != nil {
		return "", "", fmt.Errorf("ошибка формирования письма клиенту: %w", err)
	}
	return fmt.Sprintf(subjectClientReview, r.brand), buf.String(), nil
}

// AdminDecision формирует письмо администратору о решении клиента.
func (r *Renderer) AdminDecision(rec *model.ArtworkRecord, clientEmail string) (string, string, error) {
	var buf bytes.Buffer
	err := adminDecisionTmpl.Execute(&buf, map[string]string{
		"Brand":       r.brand,
		"LogoURL":     r.logoURL,
		"ClientEmail": clientEmail,
		"DisplayName": rec.DisplayName(),
		"Status":      string(rec.Status),
		"Notes":       rec.Notes,
		"ArtworkURL":  r.ArtworkURL(rec.StoredFileRef),
	})
	if err != nil {
		return "", "", fmt.Errorf("ошибка формирования письма администратору: %w", err)
	}
	return subjectAdminDecision, buf.String(), nil
}

// linkFor возвращает основную ссылку письма для вывода в лог.
func (r *Renderer) linkFor(ev Event, rec *model.ArtworkRecord) string {
	if ev == EventAdminDecisionRecorded {
		return r.ArtworkURL(rec.StoredFileRef)
	}
	return r.ReviewURL(rec.ID)
}
