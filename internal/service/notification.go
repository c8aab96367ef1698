// notification.go — мягкая обработка результата уведомления.
// Ошибка отправки никогда не превращается в ошибку запроса:
// запись уже сохранена и ссылка на согласование действительна.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/bigkaa/artwork-review/internal/domain/model"
	"github.com/bigkaa/artwork-review/internal/notify"
)

// defaultNotifyTimeout — ограничение на отправку, если таймаут не задан.
const defaultNotifyTimeout = 10 * time.Second

// Notification — итог уведомления для ответа API.
type Notification struct {
	Delivery notify.Delivery
	// Sent — письмо принято провайдером
	Sent bool
	// Warning — сообщение для клиента при ошибке отправки
	Warning string
}

// notifier — общая обёртка над notify.Notifier с таймаутом и логированием.
type notifier struct {
	next    notify.Notifier
	timeout time.Duration
	logger  *slog.Logger
}

// send вызывает уведомитель с ограничением по времени.
func (n *notifier) send(ctx context.Context, ev notify.Event, rec *model.ArtworkRecord, extra notify.Extra, warning string) Notification {
	if n.next == nil {
		return Notification{Delivery: notify.DeliverySkipped}
	}

	// Контекст запроса может быть отменён клиентом после сохранения записи,
	// уведомление всё равно должно уйти.
	timeout := n.timeout
	if timeout <= 0 {
		timeout = defaultNotifyTimeout
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	delivery, err := n.next.Notify(notifyCtx, ev, rec, extra)
	if err != nil {
		n.logger.Error("Ошибка отправки уведомления",
			slog.String("event", string(ev)),
			slog.String("record_id", rec.ID),
			slog.String("error", err.Error()),
		)
		return Notification{Delivery: notify.DeliveryFailed, Warning: warning}
	}

	return Notification{Delivery: delivery, Sent: delivery == notify.DeliverySent}
}
