// local.go — хранение артефактов в локальной директории.
// Streaming-запись во временный файл, temp → fsync → rename.
package artifact

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Local — хранилище артефактов на локальном диске.
type Local struct {
	// dir — директория хранения загруженных файлов (AR_UPLOAD_DIR)
	dir string
}

// NewLocal создаёт хранилище. Создаёт директорию, если она не существует.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию загрузок %s: %w", dir, err)
	}
	return &Local{dir: dir}, nil
}

// Save записывает данные на диск под сгенерированным именем.
// При ошибке временный файл удаляется.
func (l *Local) Save(_ context.Context, r io.Reader, _ int64, originalName string) (*SaveResult, error) {
	contentType, reader, err := sniff(r)
	if err != nil {
		return nil, err
	}

	ref := NewRef(originalName)
	fullPath := filepath.Join(l.dir, ref)
	tmpPath := fullPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания временного файла: %w", err)
	}

	size, err := io.Copy(f, reader)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка записи данных: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка fsync: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tmpPath, fullPath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("ошибка атомарного переименования: %w", err)
	}

	return &SaveResult{
		Ref:         ref,
		Size:        size,
		ContentType: contentType,
	}, nil
}

// Open открывает артефакт. Body — *os.File (поддерживает Seek).
func (l *Local) Open(_ context.Context, ref string) (*Object, error) {
	if !ValidRef(ref) {
		return nil, ErrNotFound
	}
	fullPath := filepath.Join(l.dir, ref)

	f, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка открытия файла %s: %w", ref, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("ошибка получения информации о файле %s: %w", ref, err)
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(fullPath); err == nil {
		contentType = mt.String()
	}

	return &Object{
		Body:        f,
		ContentType: contentType,
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}, nil
}

// Exists проверяет существование артефакта на диске.
func (l *Local) Exists(_ context.Context, ref string) (bool, error) {
	if !ValidRef(ref) {
		return false, nil
	}
	_, err := os.Stat(filepath.Join(l.dir, ref))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("ошибка проверки файла %s: %w", ref, err)
}

// Delete удаляет артефакт. Возвращает nil, если файла уже нет.
func (l *Local) Delete(_ context.Context, ref string) error {
	if !ValidRef(ref) {
		return nil
	}
	err := os.Remove(filepath.Join(l.dir, ref))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("ошибка удаления файла %s: %w", ref, err)
	}
	return nil
}

// Ping проверяет доступность директории загрузок.
func (l *Local) Ping(_ context.Context) error {
	info, err := os.Stat(l.dir)
	if err != nil {
		return fmt.Errorf("директория загрузок недоступна: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s не является директорией", l.dir)
	}
	return nil
}

// Dir возвращает путь к директории загрузок.
func (l *Local) Dir() string {
	return l.dir
}

var _ Store = (*Local)(nil)
