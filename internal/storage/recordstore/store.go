// Пакет recordstore — хранилище записей согласования.
//
// Store скрывает способ персистентности от вызывающего кода:
// снапшот-файл (Snapshot), PostgreSQL (Postgres) или любая из них
// за LRU-кэшем (Cached). Все реализации возвращают копии записей.
package recordstore

import (
	"context"
	"errors"

	"github.com/bigkaa/artwork-review/internal/domain/model"
)

// Ошибки слоя хранения.
var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrWrite — не удалось сохранить изменение. Изменение не применено.
	ErrWrite = errors.New("ошибка записи хранилища")
)

// Mutator изменяет копию записи внутри Update.
// Ошибка мутатора отменяет обновление без изменения хранилища.
type Mutator func(rec *model.ArtworkRecord) error

// Store — хранилище записей согласования.
type Store interface {
	// Create сохраняет новую запись под новым уникальным id и возвращает его.
	// Поле ID переданной записи игнорируется.
	Create(ctx context.Context, rec *model.ArtworkRecord) (string, error)
	// Get возвращает копию записи или ErrNotFound.
	Get(ctx context.Context, id string) (*model.ArtworkRecord, error)
	// Update атомарно применяет мутатор и сохраняет запись.
	// Возвращает обновлённую копию или ErrNotFound.
	Update(ctx context.Context, id string, fn Mutator) (*model.ArtworkRecord, error)
	// CountByStatus возвращает количество записей по статусам.
	CountByStatus(ctx context.Context) (map[model.Status]int, error)
	// Ping проверяет готовность хранилища.
	Ping(ctx context.Context) error
}
