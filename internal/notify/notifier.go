// Пакет notify — уведомления участников согласования по электронной почте.
//
// Сервисный слой зависит только от интерфейса Notifier. Отсутствие
// настроенного почтового провайдера — не ошибка: LogNotifier печатает
// письмо в лог и возвращает DeliverySkipped.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bigkaa/artwork-review/internal/domain/model"
)

// Event — тип события, о котором отправляется уведомление.
type Event string

const (
	// EventClientReviewRequested — клиенту отправлена ссылка на согласование
	EventClientReviewRequested Event = "client_review_requested"
	// EventAdminDecisionRecorded — администратору сообщается решение клиента
	EventAdminDecisionRecorded Event = "admin_decision_recorded"
)

// Delivery — результат отправки уведомления.
type Delivery string

const (
	// DeliverySent — письмо принято почтовым провайдером
	DeliverySent Delivery = "sent"
	// DeliverySkipped — провайдер не настроен, отправка пропущена
	DeliverySkipped Delivery = "skipped"
	// DeliveryFailed — ошибка отправки (возвращается вместе с ошибкой)
	DeliveryFailed Delivery = "failed"
)

// ErrDelivery — ошибка доставки уведомления провайдером.
var ErrDelivery = errors.New("ошибка отправки уведомления")

// Extra — дополнительные данные события.
type Extra struct {
	// ClientEmail — адрес, указанный клиентом в форме согласования.
	// Если пуст, используется адрес из записи.
	ClientEmail string
}

// Notifier — отправитель уведомлений.
// Реализации не должны блокироваться дольше, чем позволяет ctx.
type Notifier interface {
	Notify(ctx context.Context, ev Event, rec *model.ArtworkRecord, extra Extra) (Delivery, error)
}

// Sender — низкоуровневый транспорт отправки готового письма.
type Sender interface {
	// Name — имя провайдера для логов и метрик.
	Name() string
	Send(ctx context.Context, msg *Message) error
}

// Message — готовое к отправке письмо.
type Message struct {
	From    string
	To      string
	Subject string
	HTML    string
}

// EmailNotifier формирует письма по событиям и отправляет их через Sender.
type EmailNotifier struct {
	sender   Sender
	renderer *Renderer
	from     string
	admin    string
	logger   *slog.Logger
}

// NewEmailNotifier создаёт уведомитель.
// from — адрес отправителя, admin — адрес администратора.
func NewEmailNotifier(sender Sender, renderer *Renderer, from, admin string, logger *slog.Logger) *EmailNotifier {
	return &EmailNotifier{
		sender:   sender,
		renderer: renderer,
		from:     from,
		admin:    admin,
		logger:   logger.With(slog.String("component", "notifier"), slog.String("provider", sender.Name())),
	}
}

// Notify формирует и отправляет письмо для события.
func (n *EmailNotifier) Notify(ctx context.Context, ev Event, rec *model.ArtworkRecord, extra Extra) (Delivery, error) {
	msg, err := buildMessage(n.renderer, ev, rec, extra, n.from, n.admin)
	if err != nil {
		return DeliveryFailed, err
	}

	if err := n.sender.Send(ctx, msg); err != nil {
		emailsTotal.WithLabelValues(string(ev), string(DeliveryFailed)).Inc()
		return DeliveryFailed, fmt.Errorf("%w: %s: %v", ErrDelivery, n.sender.Name(), err)
	}

	emailsTotal.WithLabelValues(string(ev), string(DeliverySent)).Inc()
	n.logger.Info("Уведомление отправлено",
		slog.String("event", string(ev)),
		slog.String("record_id", rec.ID),
		slog.String("to", msg.To),
	)
	return DeliverySent, nil
}

// LogNotifier печатает письма в лог вместо отправки.
// Используется, когда почтовый провайдер не настроен.
type LogNotifier struct {
	renderer *Renderer
	from     string
	admin    string
	logger   *slog.Logger
}

// NewLogNotifier создаёт уведомитель без отправки.
func NewLogNotifier(renderer *Renderer, from, admin string, logger *slog.Logger) *LogNotifier {
	return &LogNotifier{
		renderer: renderer,
		from:     from,
		admin:    admin,
		logger:   logger.With(slog.String("component", "notifier"), slog.String("provider", "log")),
	}
}

// Notify выводит письмо в лог и возвращает DeliverySkipped.
func (n *LogNotifier) Notify(_ context.Context, ev Event, rec *model.ArtworkRecord, extra Extra) (Delivery, error) {
	msg, err := buildMessage(n.renderer, ev, rec, extra, n.from, n.admin)
	if err != nil {
		return DeliveryFailed, err
	}

	emailsTotal.WithLabelValues(string(ev), string(DeliverySkipped)).Inc()
	n.logger.Info("Почтовый провайдер не настроен, письмо не отправлено",
		slog.String("event", string(ev)),
		slog.String("record_id", rec.ID),
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("link", n.renderer.linkFor(ev, rec)),
	)
	return DeliverySkipped, nil
}

// buildMessage формирует письмо для события.
func buildMessage(r *Renderer, ev Event, rec *model.ArtworkRecord, extra Extra, from, admin string) (*Message, error) {
	switch ev {
	case EventClientReviewRequested:
		subject, html, err := r.ClientReviewRequest(rec)
		if err != nil {
			return nil, err
		}
		return &Message{From: from, To: rec.ClientEmail, Subject: subject, HTML: html}, nil

	case EventAdminDecisionRecorded:
		clientEmail := extra.ClientEmail
		if clientEmail == "" {
			clientEmail = rec.ClientEmail
		}
		subject, html, err := r.AdminDecision(rec, clientEmail)
		if err != nil {
			return nil, err
		}
		return &Message{From: from, To: admin, Subject: subject, HTML: html}, nil

	default:
		return nil, fmt.Errorf("неизвестное событие уведомления %q", ev)
	}
}

var (
	_ Notifier = (*EmailNotifier)(nil)
	_ Notifier = (*LogNotifier)(nil)
)
