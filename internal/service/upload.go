// Пакет service — бизнес-логика согласования макетов.
// upload.go — загрузка макета и отправка клиенту ссылки на согласование.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/artwork-review/internal/api/errors"
	"github.com/bigkaa/artwork-review/internal/domain/model"
	"github.com/bigkaa/artwork-review/internal/domain/validation"
	"github.com/bigkaa/artwork-review/internal/notify"
	"github.com/bigkaa/artwork-review/internal/storage/artifact"
	"github.com/bigkaa/artwork-review/internal/storage/recordstore"
)

// Prometheus-метрики загрузок и решений.
var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ar_uploads_total",
		Help: "Общее количество загрузок макетов по результату.",
	}, []string{"result"})
	uploadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ar_upload_bytes_total",
		Help: "Общий объём загруженных макетов в байтах.",
	})
	decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ar_decisions_total",
		Help: "Общее количество решений клиентов по статусу.",
	}, []string{"status"})
)

// warningClientNotification — предупреждение при неудачной отправке письма клиенту.
const warningClientNotification = "Макет загружен, но письмо клиенту не отправлено. Передайте ссылку на согласование вручную."

// UploadParams — параметры загрузки макета.
type UploadParams struct {
	// Reader — поток данных файла
	Reader io.Reader
	// OriginalName — оригинальное имя файла (только для отображения)
	OriginalName string
	// Size — размер из multipart part, -1 если неизвестен
	Size int64
	// ClientEmail — адрес клиента для запроса согласования
	ClientEmail string
}

// UploadResult — результат загрузки.
type UploadResult struct {
	Record       *model.ArtworkRecord
	Notification Notification
}

// UploadService — сервис загрузки макетов.
type UploadService struct {
	records   recordstore.Store
	artifacts artifact.Store
	rules     *validation.Rules
	notifier  *notifier
	maxSize   int64
	now       func() time.Time
	logger    *slog.Logger
}

// NewUploadService создаёт сервис загрузки.
// maxSize — максимальный размер файла в байтах (AR_MAX_UPLOAD_SIZE).
func NewUploadService(
	records recordstore.Store,
	artifacts artifact.Store,
	n notify.Notifier,
	rules *validation.Rules,
	maxSize int64,
	notifyTimeout time.Duration,
	logger *slog.Logger,
) *UploadService {
	logger = logger.With(slog.String("component", "upload_service"))
	return &UploadService{
		records:   records,
		artifacts: artifacts,
		rules:     rules,
		notifier:  &notifier{next: n, timeout: notifyTimeout, logger: logger},
		maxSize:   maxSize,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// Upload сохраняет макет и создаёт запись pending.
//
// Поток:
//  1. Проверка обязательных полей (файл, clientEmail)
//  2. Проверка размера и правил валидации
//  3. Сохранение артефакта (temp → fsync → rename)
//  4. Создание записи; при ошибке артефакт удаляется
//  5. Уведомление клиента (ошибка отправки не прерывает загрузку)
func (s *UploadService) Upload(ctx context.Context, params UploadParams) (*UploadResult, error) {
	clientEmail := strings.TrimSpace(params.ClientEmail)
	if params.Reader == nil || clientEmail == "" {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, newError(apierrors.CodeMissingInput, "Необходимо передать файл (artwork) и адрес клиента (clientEmail)", nil)
	}

	if s.maxSize > 0 && params.Size > s.maxSize {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, s.tooLarge(params.Size)
	}

	if err := s.rules.CheckEmail("clientEmail", clientEmail); err != nil {
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, newError(apierrors.CodeValidationError, err.Error(), err)
	}

	reader, size := params.Reader, params.Size
	if rs, ok := params.Reader.(io.ReadSeeker); ok {
		// Файл формы передаётся хранилищу как есть: S3 подписывает
		// только тело с поддержкой Seek
		n, err := seekLen(rs)
		if err != nil {
			uploadsTotal.WithLabelValues("error").Inc()
			s.logger.Error("Ошибка чтения загруженного файла", slog.String("error", err.Error()))
			return nil, errStoreWrite(err)
		}
		if s.maxSize > 0 && n > s.maxSize {
			uploadsTotal.WithLabelValues("rejected").Inc()
			return nil, s.tooLarge(n)
		}
		size = n
	} else if s.maxSize > 0 {
		// +1 байт позволяет отличить файл ровно на границе от превышения
		reader = io.LimitReader(params.Reader, s.maxSize+1)
	}

	saved, err := s.artifacts.Save(ctx, reader, size, params.OriginalName)
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			uploadsTotal.WithLabelValues("rejected").Inc()
			return nil, s.tooLarge(-1)
		}
		uploadsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка сохранения артефакта", slog.String("error", err.Error()))
		return nil, errStoreWrite(err)
	}

	if s.maxSize > 0 && saved.Size > s.maxSize {
		s.deleteArtifact(ctx, saved.Ref)
		uploadsTotal.WithLabelValues("rejected").Inc()
		return nil, s.tooLarge(-1)
	}

	rec := model.NewPendingRecord(saved.Ref, params.OriginalName, clientEmail, s.now())
	rec.ContentType = saved.ContentType
	rec.Size = saved.Size

	id, err := s.records.Create(ctx, rec)
	if err != nil {
		s.logger.Error("Ошибка создания записи, артефакт удаляется",
			slog.String("stored_file_ref", saved.Ref),
			slog.String("error", err.Error()),
		)
		s.deleteArtifact(ctx, saved.Ref)
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, errStoreWrite(err)
	}
	rec.ID = id

	uploadsTotal.WithLabelValues("success").Inc()
	uploadBytes.Add(float64(saved.Size))
	s.logger.Info("Макет загружен",
		slog.String("record_id", id),
		slog.String("stored_file_ref", saved.Ref),
		slog.String("content_type", saved.ContentType),
		slog.Int64("size", saved.Size),
	)

	n := s.notifier.send(ctx, notify.EventClientReviewRequested, rec, notify.Extra{}, warningClientNotification)
	return &UploadResult{Record: rec, Notification: n}, nil
}

func (s *UploadService) tooLarge(size int64) *Error {
	if size > 0 {
		return newError(apierrors.CodeFileTooLarge,
			fmt.Sprintf("Размер файла %d байт превышает максимум %d байт", size, s.maxSize), nil)
	}
	return newError(apierrors.CodeFileTooLarge,
		fmt.Sprintf("Размер файла превышает максимум %d байт", s.maxSize), nil)
}

// seekLen возвращает размер данных и переводит позицию в начало.
func seekLen(rs io.ReadSeeker) (int64, error) {
	n, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("ошибка определения размера файла: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("ошибка позиционирования файла: %w", err)
	}
	return n, nil
}

// deleteArtifact удаляет артефакт, для которого не удалось создать запись.
func (s *UploadService) deleteArtifact(ctx context.Context, ref string) {
	if err := s.artifacts.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.Error("Не удалось удалить артефакт без записи",
			slog.String("stored_file_ref", ref),
			slog.String("error", err.Error()),
		)
	}
}
