// Пакет model — доменные модели сервиса согласования макетов.
// ArtworkRecord — единая структура записи согласования, используется
// как in-memory представление и как формат снапшота на диске.
package model

import (
	"fmt"
	"time"
)

// Status — статус согласования макета.
type Status string

const (
	// StatusPending — макет отправлен клиенту, решение не принято
	StatusPending Status = "pending"
	// StatusApproved — клиент утвердил макет
	StatusApproved Status = "approved"
	// StatusAmend — клиент запросил правки
	StatusAmend Status = "amend"
)

// DefaultDisplayName — подпись макета, если оригинальное имя неизвестно.
const DefaultDisplayName = "Artwork"

// ArtworkRecord — запись согласования одного загруженного макета.
type ArtworkRecord struct {
	// ID — уникальный идентификатор (UUID v4), он же токен ссылки на согласование
	ID string `json:"id"`

	// StoredFileRef — сгенерированное имя артефакта в хранилище.
	// Никогда не совпадает с оригинальным именем файла.
	StoredFileRef string `json:"stored_file_ref"`

	// OriginalName — оригинальное имя файла (только для отображения)
	OriginalName string `json:"original_name,omitempty"`

	// ContentType — MIME-тип артефакта, определённый по содержимому
	ContentType string `json:"content_type,omitempty"`

	// Size — размер артефакта в байтах
	Size int64 `json:"size"`

	// ClientEmail — адрес, на который отправлен запрос согласования
	ClientEmail string `json:"client_email"`

	// Status — текущий статус согласования
	Status Status `json:"status"`

	// Notes — комментарий клиента к правкам
	Notes string `json:"notes"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// DecidedAt — время последнего решения клиента. nil для pending.
	DecidedAt *time.Time `json:"decided_at,omitempty"`
}

// NewPendingRecord создаёт запись в начальном состоянии pending
// с пустыми notes. Идентификатор назначает хранилище.
func NewPendingRecord(storedFileRef, originalName, clientEmail string, now time.Time) *ArtworkRecord {
	return &ArtworkRecord{
		StoredFileRef: storedFileRef,
		OriginalName:  originalName,
		ClientEmail:   clientEmail,
		Status:        StatusPending,
		Notes:         "",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DisplayName возвращает имя макета для писем и интерфейса.
// Пустое имя или имя, совпадающее со ссылкой хранилища, заменяется
// на DefaultDisplayName.
func (r *ArtworkRecord) DisplayName() string {
	if r.OriginalName == "" || r.OriginalName == r.StoredFileRef {
		return DefaultDisplayName
	}
	return r.OriginalName
}

// IsPending проверяет, что решение по макету ещё не принято.
func (r *ArtworkRecord) IsPending() bool {
	return r.Status == StatusPending
}

// Clone возвращает глубокую копию записи.
func (r *ArtworkRecord) Clone() *ArtworkRecord {
	copied := *r
	if r.DecidedAt != nil {
		t := *r.DecidedAt
		copied.DecidedAt = &t
	}
	return &copied
}

// Validate проверяет структурную корректность записи, прочитанной
// из хранилища.
func (r *ArtworkRecord) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("пустой id записи")
	}
	if r.StoredFileRef == "" {
		return fmt.Errorf("запись %s: пустая ссылка на артефакт", r.ID)
	}
	if !IsValidStatus(r.Status) {
		return fmt.Errorf("запись %s: недопустимый статус %q", r.ID, r.Status)
	}
	return nil
}
