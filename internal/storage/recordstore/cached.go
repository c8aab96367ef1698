// cached.go — LRU-кэш записей с TTL поверх любого Store.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package recordstore

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/artwork-review/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ar_record_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш записей.",
	})
	cacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ar_record_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша записей.",
	})
)

// Cached — Store с кэшированием Get.
// Кэш заполняется при Get, Create и Update его сбрасывают.
//
// Промах Get читает запись из хранилища без блокировки, поэтому
// параллельный Update может завершиться раньше, чем Get положит
// прочитанное значение в кэш. generation увеличивается при каждом
// сбросе из Create/Update; Get кладёт запись, только если
// за время чтения поколение не изменилось.
type Cached struct {
	next  Store
	cache *expirable.LRU[string, *model.ArtworkRecord]

	mu         sync.Mutex
	generation uint64
}

// NewCached создаёт кэширующую обёртку.
// maxSize — максимальное количество записей, ttl — время жизни записи.
func NewCached(next Store, maxSize int, ttl time.Duration) *Cached {
	return &Cached{
		next:  next,
		cache: expirable.NewLRU[string, *model.ArtworkRecord](maxSize, nil, ttl),
	}
}

// Create сохраняет запись и сбрасывает её ключ в кэше.
func (c *Cached) Create(ctx context.Context, rec *model.ArtworkRecord) (string, error) {
	id, err := c.next.Create(ctx, rec)
	if err != nil {
		return "", err
	}
	// Время создания назначает хранилище, поэтому при первом Get
	// запись перечитывается.
	c.mu.Lock()
	c.generation++
	c.cache.Remove(id)
	c.mu.Unlock()
	return id, nil
}

// Get возвращает запись из кэша или из хранилища.
func (c *Cached) Get(ctx context.Context, id string) (*model.ArtworkRecord, error) {
	if rec, ok := c.cache.Get(id); ok {
		cacheHitsTotal.Inc()
		return rec.Clone(), nil
	}
	cacheMissesTotal.Inc()

	c.mu.Lock()
	gen := c.generation
	c.mu.Unlock()

	rec, err := c.next.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.generation == gen {
		c.cache.Add(id, rec.Clone())
	}
	c.mu.Unlock()
	return rec, nil
}

// Update обновляет запись в хранилище и удаляет её из кэша.
// Следующий Get перечитает зафиксированное значение.
func (c *Cached) Update(ctx context.Context, id string, fn Mutator) (*model.ArtworkRecord, error) {
	rec, err := c.next.Update(ctx, id, fn)

	c.mu.Lock()
	c.generation++
	c.cache.Remove(id)
	c.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return rec, nil
}

// CountByStatus делегирует в хранилище.
func (c *Cached) CountByStatus(ctx context.Context) (map[model.Status]int, error) {
	return c.next.CountByStatus(ctx)
}

// Ping делегирует в хранилище.
func (c *Cached) Ping(ctx context.Context) error {
	return c.next.Ping(ctx)
}

// Len возвращает количество записей в кэше.
func (c *Cached) Len() int {
	return c.cache.Len()
}

var _ Store = (*Cached)(nil)
