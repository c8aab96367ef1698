// snapshot.go — хранилище записей в одном JSON-файле.
//
// Файл содержит отображение id → запись и загружается целиком при старте.
// Каждое изменение перезаписывает файл полностью (temp → fsync → rename),
// поэтому на диске всегда лежит либо старый, либо новый снапшот.
// Все изменения сериализуются одним мьютексом: конкурентные обновления
// разных записей не теряются.
//
// Записи, не прошедшие проверку при загрузке, недоступны через API, но
// сохраняются в файле как есть при каждой перезаписи.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/artwork-review/internal/domain/model"
)

// SnapshotFileName — имя файла снапшота в директории данных.
const SnapshotFileName = "records.json"

// Snapshot — хранилище записей с полной перезаписью снапшота.
type Snapshot struct {
	mu      sync.RWMutex
	path    string
	records map[string]*model.ArtworkRecord
	// rejected — исходный JSON отклонённых при загрузке записей
	rejected map[string]json.RawMessage
	logger   *slog.Logger

	// writeFile — запись снапшота на диск (подменяется в тестах).
	writeFile func(path string, data []byte) error
	// newID — генератор идентификаторов.
	newID func() string
	now   func() time.Time
}

// OpenSnapshot открывает (или создаёт) снапшот в директории dataDir
// и загружает все записи в память.
func OpenSnapshot(dataDir string, logger *slog.Logger) (*Snapshot, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	s := &Snapshot{
		path:      filepath.Join(dataDir, SnapshotFileName),
		records:   make(map[string]*model.ArtworkRecord),
		rejected:  make(map[string]json.RawMessage),
		logger:    logger.With(slog.String("component", "record_store")),
		writeFile: writeFileAtomic,
		newID:     uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
	}

	if err := s.load(); err != nil {
		return nil, err
	}

	s.logger.Info("Снапшот записей загружен",
		slog.String("path", s.path),
		slog.Int("records", len(s.records)),
		slog.Int("rejected", len(s.rejected)),
	)
	return s, nil
}

// load читает снапшот с диска. Отсутствующий файл — пустое хранилище.
// Некорректный JSON — ошибка: перезаписывать повреждённые данные нельзя.
func (s *Snapshot) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("ошибка чтения снапшота %s: %w", s.path, err)
	}
	if len(data) == 0 {
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("ошибка десериализации снапшота %s: %w", s.path, err)
	}

	for id, entry := range raw {
		rec, err := decodeSnapshotRecord(id, entry)
		if err != nil {
			s.logger.Warn("Некорректная запись в снапшоте отложена без изменений",
				slog.String("key", id),
				slog.String("error", err.Error()),
			)
			s.rejected[id] = entry
			continue
		}
		s.records[id] = rec
	}
	return nil
}

// decodeSnapshotRecord разбирает и проверяет одну запись снапшота.
func decodeSnapshotRecord(id string, entry json.RawMessage) (*model.ArtworkRecord, error) {
	var rec *model.ArtworkRecord
	if err := json.Unmarshal(entry, &rec); err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, errors.New("пустая запись")
	}
	if rec.ID == "" {
		rec.ID = id
	}
	if rec.ID != id {
		return nil, fmt.Errorf("ключ не совпадает с id записи %q", rec.ID)
	}
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Create сохраняет новую запись под свежим id.
func (s *Snapshot) Create(_ context.Context, rec *model.ArtworkRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	for s.idTakenLocked(id) {
		id = s.newID()
	}

	stored := rec.Clone()
	stored.ID = id
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = s.now()
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}

	next := s.cloneRecordsLocked()
	next[id] = stored
	if err := s.persistLocked(next); err != nil {
		return "", err
	}

	s.records = next
	return id, nil
}

// Get возвращает копию записи.
func (s *Snapshot) Get(_ context.Context, id string) (*model.ArtworkRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

// Update применяет мутатор к копии записи, сохраняет снапшот и только
// после успешной записи публикует новое значение в памяти.
func (s *Snapshot) Update(_ context.Context, id string, fn Mutator) (*model.ArtworkRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	updated := current.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	// id неизменяем
	updated.ID = id

	next := s.cloneRecordsLocked()
	next[id] = updated
	if err := s.persistLocked(next); err != nil {
		return nil, err
	}

	s.records = next
	return updated.Clone(), nil
}

// CountByStatus возвращает количество записей по статусам.
func (s *Snapshot) CountByStatus(_ context.Context) (map[model.Status]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[model.Status]int{
		model.StatusPending:  0,
		model.StatusApproved: 0,
		model.StatusAmend:    0,
	}
	for _, rec := range s.records {
		counts[rec.Status]++
	}
	return counts, nil
}

// Ping проверяет доступность директории снапшота.
func (s *Snapshot) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Dir(s.path))
	if err != nil {
		return fmt.Errorf("директория снапшота недоступна: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s не является директорией", filepath.Dir(s.path))
	}
	return nil
}

// Path возвращает путь к файлу снапшота.
func (s *Snapshot) Path() string {
	return s.path
}

// idTakenLocked сообщает, занят ли id действующей или отклонённой записью.
func (s *Snapshot) idTakenLocked(id string) bool {
	if _, ok := s.records[id]; ok {
		return true
	}
	_, ok := s.rejected[id]
	return ok
}

// cloneRecordsLocked возвращает поверхностную копию отображения.
// Записи не копируются: опубликованные записи не изменяются.
func (s *Snapshot) cloneRecordsLocked() map[string]*model.ArtworkRecord {
	next := make(map[string]*model.ArtworkRecord, len(s.records)+1)
	for id, rec := range s.records {
		next[id] = rec
	}
	return next
}

// persistLocked сериализует и записывает снапшот вместе с отклонёнными записями.
func (s *Snapshot) persistLocked(records map[string]*model.ArtworkRecord) error {
	out := make(map[string]any, len(records)+len(s.rejected))
	for id, entry := range s.rejected {
		out[id] = entry
	}
	for id, rec := range records {
		out[id] = rec
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: ошибка сериализации: %v", ErrWrite, err)
	}
	if err := s.writeFile(s.path, data); err != nil {
		s.logger.Error("Ошибка записи снапшота",
			slog.String("path", s.path),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// writeFileAtomic атомарно записывает данные: temp → fsync → rename.
func writeFileAtomic(path string, data []byte) error {
	tmpPath := path + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка записи: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return nil
}

// IsNotFound проверяет, является ли ошибка ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ Store = (*Snapshot)(nil)
