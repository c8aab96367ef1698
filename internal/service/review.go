// review.go — приём решения клиента по макету.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	apierrors "github.com/bigkaa/artwork-review/internal/api/errors"
	"github.com/bigkaa/artwork-review/internal/domain/model"
	"github.com/bigkaa/artwork-review/internal/domain/validation"
	"github.com/bigkaa/artwork-review/internal/notify"
	"github.com/bigkaa/artwork-review/internal/storage/recordstore"
)

// warningAdminNotification — предупреждение при неудачной отправке письма администратору.
const warningAdminNotification = "Решение сохранено, но уведомление администратору не отправлено."

// ReviewParams — решение клиента.
type ReviewParams struct {
	ID     string
	Action string
	Notes  string
	// ClientEmail — адрес из формы, только для письма администратору
	ClientEmail string
}

// ReviewResult — результат сохранения решения.
type ReviewResult struct {
	Record       *model.ArtworkRecord
	Notification Notification
}

// ReviewService — сервис приёма решений.
type ReviewService struct {
	records  recordstore.Store
	rules    *validation.Rules
	policy   model.TransitionPolicy
	notifier *notifier
	now      func() time.Time
	logger   *slog.Logger
}

// NewReviewService создаёт сервис приёма решений.
func NewReviewService(
	records recordstore.Store,
	n notify.Notifier,
	rules *validation.Rules,
	policy model.TransitionPolicy,
	notifyTimeout time.Duration,
	logger *slog.Logger,
) *ReviewService {
	logger = logger.With(slog.String("component", "review_service"))
	return &ReviewService{
		records:  records,
		rules:    rules,
		policy:   policy,
		notifier: &notifier{next: n, timeout: notifyTimeout, logger: logger},
		now:      func() time.Time { return time.Now().UTC() },
		logger:   logger,
	}
}

// Submit проверяет и сохраняет решение, затем уведомляет администратора.
//
// Порядок проверок: существование записи, допустимость действия,
// правила валидации, допустимость перехода (под блокировкой хранилища).
func (s *ReviewService) Submit(ctx context.Context, params ReviewParams) (*ReviewResult, error) {
	if _, err := s.records.Get(ctx, params.ID); err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return nil, errNotFound(params.ID)
		}
		return nil, AsError(err)
	}

	target, err := model.ParseAction(params.Action)
	if err != nil {
		return nil, transitionError(err)
	}

	notes := strings.TrimSpace(params.Notes)
	clientEmail := strings.TrimSpace(params.ClientEmail)

	if err := s.rules.CheckAmendNotes(target == model.StatusAmend, notes); err != nil {
		return nil, newError(apierrors.CodeValidationError, err.Error(), err)
	}
	if clientEmail != "" {
		if err := s.rules.CheckEmail("clientEmail", clientEmail); err != nil {
			return nil, newError(apierrors.CodeValidationError, err.Error(), err)
		}
	}

	now := s.now()
	updated, err := s.records.Update(ctx, params.ID, func(rec *model.ArtworkRecord) error {
		return s.policy.Apply(rec, target, notes, now)
	})
	if err != nil {
		var trErr *model.TransitionError
		switch {
		case errors.As(err, &trErr):
			return nil, transitionError(err)
		case errors.Is(err, recordstore.ErrNotFound):
			return nil, errNotFound(params.ID)
		default:
			s.logger.Error("Ошибка сохранения решения",
				slog.String("record_id", params.ID),
				slog.String("error", err.Error()),
			)
			return nil, errStoreWrite(err)
		}
	}

	decisionsTotal.WithLabelValues(string(updated.Status)).Inc()
	s.logger.Info("Решение по макету сохранено",
		slog.String("record_id", updated.ID),
		slog.String("status", string(updated.Status)),
	)

	n := s.notifier.send(ctx, notify.EventAdminDecisionRecorded, updated,
		notify.Extra{ClientEmail: clientEmail}, warningAdminNotification)
	return &ReviewResult{Record: updated, Notification: n}, nil
}

// transitionError преобразует ошибку перехода в ошибку сервиса.
func transitionError(err error) *Error {
	var trErr *model.TransitionError
	if !errors.As(err, &trErr) {
		return AsError(err)
	}
	code := apierrors.CodeInvalidAction
	message := "Недопустимое действие, допустимые значения: approved, amend"
	if trErr.Code == model.CodeConflict {
		code = apierrors.CodeConflict
		message = "Решение по этому макету уже принято"
	}
	return newError(code, message, err)
}
