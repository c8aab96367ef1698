// Пакет artifact — хранение загруженных файлов макетов.
//
// Файл сохраняется под сгенерированным именем {uuid}{ext}, которое никогда
// не совпадает с оригинальным именем: это исключает path traversal и
// коллизии. Реализации: локальная директория (Local) и S3 (S3).
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// ErrNotFound — артефакт отсутствует в хранилище.
var ErrNotFound = errors.New("артефакт не найден")

// sniffLen — объём заголовка файла для определения MIME-типа.
const sniffLen = 3072

// maxExtLen — максимальная длина сохраняемого расширения (с точкой).
const maxExtLen = 10

// SaveResult — результат сохранения артефакта.
type SaveResult struct {
	// Ref — сгенерированное имя артефакта
	Ref string
	// Size — размер записанных данных в байтах
	Size int64
	// ContentType — MIME-тип, определённый по содержимому
	ContentType string
}

// Object — открытый для чтения артефакт. Вызывающий код обязан закрыть Body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Store — хранилище артефактов.
type Store interface {
	// Save записывает данные под новым сгенерированным именем.
	// size — ожидаемый размер (-1 если неизвестен).
	Save(ctx context.Context, r io.Reader, size int64, originalName string) (*SaveResult, error)
	// Open открывает артефакт для чтения или возвращает ErrNotFound.
	Open(ctx context.Context, ref string) (*Object, error)
	// Exists проверяет наличие артефакта.
	Exists(ctx context.Context, ref string) (bool, error)
	// Delete удаляет артефакт. Отсутствующий артефакт — не ошибка.
	Delete(ctx context.Context, ref string) error
	// Ping проверяет готовность хранилища.
	Ping(ctx context.Context) error
}

// NewRef генерирует имя артефакта: UUID v4 и нормализованное
// расширение оригинального файла.
// Пример: "Логотип Final.PNG" → "3f2b…-…c1.png"
func NewRef(originalName string) string {
	return uuid.NewString() + sanitizeExt(filepath.Ext(originalName))
}

// ValidRef проверяет, что имя сгенерировано NewRef.
// Используется при раздаче файлов по имени из URL.
func ValidRef(ref string) bool {
	if ref == "" || strings.ContainsAny(ref, `/\`) {
		return false
	}
	ext := filepath.Ext(ref)
	if sanitizeExt(ext) != ext {
		return false
	}
	_, err := uuid.Parse(strings.TrimSuffix(ref, ext))
	return err == nil && len(strings.TrimSuffix(ref, ext)) == 36
}

// sanitizeExt приводит расширение к нижнему регистру и оставляет
// только латинские буквы и цифры.
func sanitizeExt(ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	var b strings.Builder
	for _, r := range ext {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 || b.Len()+1 > maxExtLen {
		return ""
	}
	return "." + b.String()
}

// sniff определяет MIME-тип по заголовку данных и возвращает reader,
// из которого можно прочитать данные целиком.
// Для io.ReadSeeker позиция возвращается в начало.
func sniff(r io.Reader) (string, io.Reader, error) {
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, fmt.Errorf("ошибка чтения заголовка файла: %w", err)
	}
	header = header[:n]
	contentType := mimetype.Detect(header).String()

	if rs, ok := r.(io.ReadSeeker); ok {
		if _, err := rs.Seek(0, io.SeekStart); err == nil {
			return contentType, rs, nil
		}
	}
	return contentType, io.MultiReader(bytes.NewReader(header), r), nil
}
