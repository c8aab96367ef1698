package notify

import (
	"fmt"
	"log/slog"
	"time"
)

// Имена провайдеров (AR_EMAIL_PROVIDER).
const (
	ProviderAuto   = "auto"
	ProviderResend = "resend"
	ProviderSMTP   = "smtp"
	ProviderLog    = "log"
)

// Options — параметры выбора и настройки почтового провайдера.
type Options struct {
	Provider string

	ResendAPIKey string
	ResendURL    string

	SMTP SMTPOptions

	From       string
	AdminEmail string
	BaseURL    string
	Brand      string
	Timeout    time.Duration
}

// ResolveProvider определяет провайдер. Для auto: resend при наличии
// ключа API, smtp при наличии учётных данных, иначе log.
func ResolveProvider(opts Options) (string, error) {
	switch opts.Provider {
	case ProviderResend, ProviderSMTP, ProviderLog:
		return opts.Provider, nil
	case "", ProviderAuto:
		switch {
		case opts.ResendAPIKey != "":
			return ProviderResend, nil
		case opts.SMTP.Username != "" && opts.SMTP.Password != "":
			return ProviderSMTP, nil
		default:
			return ProviderLog, nil
		}
	default:
		return "", fmt.Errorf("неизвестный почтовый провайдер %q", opts.Provider)
	}
}

// New создаёт Notifier по параметрам.
func New(opts Options, logger *slog.Logger) (Notifier, error) {
	provider, err := ResolveProvider(opts)
	if err != nil {
		return nil, err
	}

	admin := opts.AdminEmail
	if admin == "" {
		admin = opts.From
	}
	renderer := NewRenderer(opts.BaseURL, opts.Brand)

	switch provider {
	case ProviderResend:
		if opts.ResendAPIKey == "" {
			return nil, fmt.Errorf("для провайдера resend требуется AR_RESEND_API_KEY")
		}
		if opts.From == "" {
			return nil, fmt.Errorf("для провайдера resend требуется AR_EMAIL_FROM")
		}
		sender := NewResendSender(opts.ResendURL, opts.ResendAPIKey, opts.Timeout)
		return NewEmailNotifier(sender, renderer, opts.From, admin, logger), nil

	case ProviderSMTP:
		if opts.SMTP.Host == "" {
			return nil, fmt.Errorf("для провайдера smtp требуется AR_SMTP_HOST")
		}
		from := opts.From
		if from == "" {
			from = opts.SMTP.Username
		}
		if admin == "" {
			admin = from
		}
		if from == "" {
			return nil, fmt.Errorf("для провайдера smtp требуется AR_EMAIL_FROM или AR_SMTP_USER")
		}
		smtpOpts := opts.SMTP
		if smtpOpts.Timeout == 0 {
			smtpOpts.Timeout = opts.Timeout
		}
		return NewEmailNotifier(NewSMTPSender(smtpOpts), renderer, from, admin, logger), nil

	default:
		return NewLogNotifier(renderer, opts.From, admin, logger), nil
	}
}
