// artwork.go — чтение записей и артефактов для страницы согласования.
package service

import (
	"context"
	"errors"
	"log/slog"

	apierrors "github.com/bigkaa/artwork-review/internal/api/errors"
	"github.com/bigkaa/artwork-review/internal/domain/model"
	"github.com/bigkaa/artwork-review/internal/storage/artifact"
	"github.com/bigkaa/artwork-review/internal/storage/recordstore"
)

// ArtworkView — запись и признак наличия артефакта.
type ArtworkView struct {
	Record *model.ArtworkRecord
	// Available — артефакт существует в хранилище
	Available bool
}

// ArtworkService — сервис чтения макетов.
type ArtworkService struct {
	records   recordstore.Store
	artifacts artifact.Store
	logger    *slog.Logger
}

// NewArtworkService создаёт сервис чтения макетов.
func NewArtworkService(records recordstore.Store, artifacts artifact.Store, logger *slog.Logger) *ArtworkService {
	return &ArtworkService{
		records:   records,
		artifacts: artifacts,
		logger:    logger.With(slog.String("component", "artwork_service")),
	}
}

// Get возвращает запись по id. Отсутствующий артефакт не подменяется
// другим файлом: Available = false, нарушение целостности логируется.
func (s *ArtworkService) Get(ctx context.Context, id string) (*ArtworkView, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	available, err := s.artifacts.Exists(ctx, rec.StoredFileRef)
	if err != nil {
		s.logger.Error("Ошибка проверки артефакта",
			slog.String("record_id", rec.ID),
			slog.String("stored_file_ref", rec.StoredFileRef),
			slog.String("error", err.Error()),
		)
		available = false
	} else if !available {
		s.logger.Error("Артефакт записи отсутствует в хранилище",
			slog.String("record_id", rec.ID),
			slog.String("stored_file_ref", rec.StoredFileRef),
		)
	}

	return &ArtworkView{Record: rec, Available: available}, nil
}

// Exists проверяет, что запись с id существует.
func (s *ArtworkService) Exists(ctx context.Context, id string) error {
	_, err := s.lookup(ctx, id)
	return err
}

// OpenArtifact открывает артефакт по сгенерированному имени.
// Вызывающий код обязан закрыть Body.
func (s *ArtworkService) OpenArtifact(ctx context.Context, ref string) (*artifact.Object, error) {
	if !artifact.ValidRef(ref) {
		return nil, newError(apierrors.CodeNotFound, "Файл не найден", nil)
	}
	obj, err := s.artifacts.Open(ctx, ref)
	if err != nil {
		if errors.Is(err, artifact.ErrNotFound) {
			return nil, newError(apierrors.CodeNotFound, "Файл не найден", err)
		}
		s.logger.Error("Ошибка чтения артефакта",
			slog.String("stored_file_ref", ref),
			slog.String("error", err.Error()),
		)
		return nil, AsError(err)
	}
	return obj, nil
}

// Stats возвращает количество записей по статусам.
func (s *ArtworkService) Stats(ctx context.Context) (map[model.Status]int, error) {
	return s.records.CountByStatus(ctx)
}

func (s *ArtworkService) lookup(ctx context.Context, id string) (*model.ArtworkRecord, error) {
	rec, err := s.records.Get(ctx, id)
	if err != nil {
		if errors.Is(err, recordstore.ErrNotFound) {
			return nil, errNotFound(id)
		}
		s.logger.Error("Ошибка чтения записи",
			slog.String("record_id", id),
			slog.String("error", err.Error()),
		)
		return nil, AsError(err)
	}
	return rec, nil
}
