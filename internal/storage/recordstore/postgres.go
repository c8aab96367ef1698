// postgres.go — хранилище записей в PostgreSQL.
// Чистый SQL через pgx, без ORM. Update выполняется в транзакции
// с блокировкой строки (SELECT … FOR UPDATE).
package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/artwork-review/internal/domain/model"
)

// DBTX — интерфейс для выполнения SQL-запросов.
// Реализуется как *pgxpool.Pool, так и pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres — хранилище записей в таблице artwork_records.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres создаёт хранилище поверх пула подключений.
// Миграции должны быть применены заранее (database.Migrate).
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const recordColumns = `id, stored_file_ref, original_name, content_type, size,
	client_email, status, notes, created_at, updated_at, decided_at`

// Create сохраняет новую запись под свежим id.
func (p *Postgres) Create(ctx context.Context, rec *model.ArtworkRecord) (string, error) {
	now := time.Now().UTC()
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	// Коллизия UUID v4 практически невозможна, но id обязан быть уникальным.
	for attempt := 0; attempt < 3; attempt++ {
		id := uuid.NewString()
		tag, err := p.pool.Exec(ctx, `
			INSERT INTO artwork_records (`+recordColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO NOTHING`,
			id, rec.StoredFileRef, rec.OriginalName, rec.ContentType, rec.Size,
			rec.ClientEmail, string(rec.Status), rec.Notes, createdAt, updatedAt, rec.DecidedAt,
		)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrWrite, err)
		}
		if tag.RowsAffected() == 1 {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: не удалось сгенерировать уникальный id", ErrWrite)
}

// Get возвращает запись по id.
func (p *Postgres) Get(ctx context.Context, id string) (*model.ArtworkRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return getRecord(ctx, p.pool, id, false)
}

// Update блокирует строку, применяет мутатор и сохраняет запись
// в одной транзакции.
func (p *Postgres) Update(ctx context.Context, id string, fn Mutator) (*model.ArtworkRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: ошибка начала транзакции: %v", ErrWrite, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // откат после коммита — no-op

	rec, err := getRecord(ctx, tx, id, true)
	if err != nil {
		return nil, err
	}

	if err := fn(rec); err != nil {
		return nil, err
	}
	rec.ID = id

	_, err = tx.Exec(ctx, `
		UPDATE artwork_records
		SET original_name = $2, content_type = $3, size = $4, client_email = $5,
		    status = $6, notes = $7, updated_at = $8, decided_at = $9
		WHERE id = $1`,
		id, rec.OriginalName, rec.ContentType, rec.Size, rec.ClientEmail,
		string(rec.Status), rec.Notes, rec.UpdatedAt, rec.DecidedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWrite, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: ошибка коммита: %v", ErrWrite, err)
	}
	return rec, nil
}

// CountByStatus возвращает количество записей по статусам.
func (p *Postgres) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	rows, err := p.pool.Query(ctx, `SELECT status, count(*) FROM artwork_records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ошибка подсчёта записей: %w", err)
	}
	defer rows.Close()

	counts := map[model.Status]int{
		model.StatusPending:  0,
		model.StatusApproved: 0,
		model.StatusAmend:    0,
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("ошибка чтения строки: %w", err)
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

// Ping проверяет подключение к PostgreSQL.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// getRecord читает запись, при forUpdate — с блокировкой строки.
func getRecord(ctx context.Context, db DBTX, id string, forUpdate bool) (*model.ArtworkRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM artwork_records WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var (
		rec    model.ArtworkRecord
		status string
	)
	err := db.QueryRow(ctx, query, id).Scan(
		&rec.ID, &rec.StoredFileRef, &rec.OriginalName, &rec.ContentType, &rec.Size,
		&rec.ClientEmail, &status, &rec.Notes, &rec.CreatedAt, &rec.UpdatedAt, &rec.DecidedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения записи %s: %w", id, err)
	}
	rec.Status = model.Status(status)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if rec.DecidedAt != nil {
		t := rec.DecidedAt.UTC()
		rec.DecidedAt = &t
	}
	return &rec, nil
}

var _ Store = (*Postgres)(nil)
