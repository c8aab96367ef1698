// resend.go — отправка писем через HTTP API Resend.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// DefaultResendURL — адрес API Resend по умолчанию.
const DefaultResendURL = "https://api.resend.com"

// maxErrorBody — сколько байт тела ответа с ошибкой сохраняется в сообщении.
const maxErrorBody = 512

// ResendSender — транспорт писем через Resend (POST {baseURL}/emails).
type ResendSender struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewResendSender создаёт транспорт Resend.
// timeout — таймаут HTTP-запросов (дополнительно к контексту вызова).
func NewResendSender(baseURL, apiKey string, timeout time.Duration) *ResendSender {
	if baseURL == "" {
		baseURL = DefaultResendURL
	}
	return &ResendSender{
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
			},
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Name возвращает имя провайдера.
func (s *ResendSender) Name() string { return "resend" }

// resendRequest — тело запроса POST /emails.
type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Send отправляет письмо. Любой ответ кроме 2xx считается ошибкой.
func (s *ResendSender) Send(ctx context.Context, msg *Message) error {
	body, err := json.Marshal(resendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("сериализация запроса Resend: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("создание запроса Resend: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return fmt.Errorf("запрос к Resend: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("Resend вернул статус %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

var _ Sender = (*ResendSender)(nil)
