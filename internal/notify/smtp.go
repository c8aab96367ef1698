// smtp.go — отправка писем через SMTP (go-mail).
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
)

// SMTPOptions — параметры SMTP-сервера.
type SMTPOptions struct {
	Host     string
	Port     int
	Username string
	Password string
	// Timeout — таймаут соединения и операций SMTP
	Timeout time.Duration
}

// SMTPSender — транспорт писем через SMTP.
// Порт 465 — неявный TLS, остальные — STARTTLS, если сервер его поддерживает.
type SMTPSender struct {
	opts SMTPOptions
}

// NewSMTPSender создаёт SMTP-транспорт.
func NewSMTPSender(opts SMTPOptions) *SMTPSender {
	return &SMTPSender{opts: opts}
}

// Name возвращает имя провайдера.
func (s *SMTPSender) Name() string { return "smtp" }

// Send устанавливает соединение, отправляет письмо и закрывает соединение.
func (s *SMTPSender) Send(ctx context.Context, msg *Message) error {
	m := mail.NewMsg()
	if err := m.From(msg.From); err != nil {
		return fmt.Errorf("некорректный адрес отправителя %q: %w", msg.From, err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("некорректный адрес получателя %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)

	clientOpts := []mail.Option{mail.WithPort(s.opts.Port)}
	if s.opts.Port == 465 {
		clientOpts = append(clientOpts, mail.WithSSL())
	} else {
		clientOpts = append(clientOpts, mail.WithTLSPolicy(mail.TLSOpportunistic))
	}
	if s.opts.Timeout > 0 {
		clientOpts = append(clientOpts, mail.WithTimeout(s.opts.Timeout))
	}
	if s.opts.Username != "" {
		clientOpts = append(clientOpts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.opts.Username),
			mail.WithPassword(s.opts.Password),
		)
	}

	client, err := mail.NewClient(s.opts.Host, clientOpts...)
	if err != nil {
		return fmt.Errorf("создание SMTP-клиента %s: %w", s.opts.Host, err)
	}
	if err := client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("отправка через SMTP %s:%d: %w", s.opts.Host, s.opts.Port, err)
	}
	return nil
}

var _ Sender = (*SMTPSender)(nil)
