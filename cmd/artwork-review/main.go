// Точка входа Artwork Review — сервиса загрузки и согласования макетов.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/bigkaa/artwork-review/internal/api/handlers"
	"github.com/bigkaa/artwork-review/internal/config"
	"github.com/bigkaa/artwork-review/internal/database"
	"github.com/bigkaa/artwork-review/internal/domain/model"
	"github.com/bigkaa/artwork-review/internal/notify"
	"github.com/bigkaa/artwork-review/internal/server"
	"github.com/bigkaa/artwork-review/internal/service"
	"github.com/bigkaa/artwork-review/internal/storage/artifact"
	"github.com/bigkaa/artwork-review/internal/storage/recordstore"
)

func main() {
	// .env необязателен: в контейнере переменные задаются окружением
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Ошибка чтения .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка конфигурации: %v\n", err)
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)
	logger.Info("Artwork Review запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("base_url", cfg.BaseURL),
		slog.String("store", cfg.StoreBackend),
		slog.String("artifacts", cfg.ArtifactBackend),
	)

	if err := run(cfg, logger); err != nil {
		logger.Error("Сервис завершился с ошибкой", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	// 1. Хранилище записей
	records, pool, cleanup, err := openRecordStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	// 2. Хранилище артефактов
	artifacts, err := openArtifactStore(ctx, cfg)
	if err != nil {
		return err
	}

	// 3. Уведомления
	notifier, err := notify.New(cfg.NotifyOptions(), logger)
	if err != nil {
		return fmt.Errorf("ошибка инициализации уведомлений: %w", err)
	}

	// 4. Сервисы
	policy := model.TransitionPolicy{AllowResubmit: cfg.AllowResubmit}
	uploadSvc := service.NewUploadService(records, artifacts, notifier, cfg.ValidationRules,
		cfg.MaxUploadSize, cfg.NotifyTimeout, logger)
	reviewSvc := service.NewReviewService(records, notifier, cfg.ValidationRules, policy,
		cfg.NotifyTimeout, logger)
	artworkSvc := service.NewArtworkService(records, artifacts, logger)

	// 5. topologymetrics — мониторинг почтового провайдера и PostgreSQL
	var deps handlers.DependencyHealth
	if cfg.DephealthEnabled {
		dephealthSvc, dephealthErr := service.NewDephealthService(service.DependencyOptions{
			Name:          "artwork-review",
			Group:         cfg.DephealthGroup,
			CheckInterval: cfg.DephealthCheckInterval,
			TLSSkipVerify: cfg.DephealthTLSSkipVerify,
			Notify:        cfg.NotifyOptions(),
			Database:      pool,
		}, logger)
		switch {
		case errors.Is(dephealthErr, service.ErrNoDependencies):
			logger.Info("topologymetrics: нет зависимостей для мониторинга")
		case dephealthErr != nil:
			logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
				slog.String("error", dephealthErr.Error()),
			)
		default:
			if startErr := dephealthSvc.Start(ctx); startErr != nil {
				logger.Warn("Ошибка запуска topologymetrics",
					slog.String("error", startErr.Error()),
				)
			} else {
				defer dephealthSvc.Stop()
				deps = dephealthSvc
				logger.Info("topologymetrics запущен",
					slog.String("check_interval", cfg.DephealthCheckInterval.String()),
					slog.Bool("tls_skip_verify", cfg.DephealthTLSSkipVerify),
				)
			}
		}
	}

	// 6. Handlers и сервер
	artworkHandler := handlers.NewArtworkHandler(uploadSvc, reviewSvc, artworkSvc, cfg.MaxUploadSize, logger)
	healthHandler := handlers.NewHealthHandler(records, artifacts, artworkSvc, deps)

	return server.New(cfg, logger, artworkHandler, healthHandler).Run()
}

// openRecordStore открывает хранилище записей выбранного бэкенда.
// Возвращаемая функция освобождает ресурсы хранилища; пул PostgreSQL
// равен nil для snapshot-бэкенда.
func openRecordStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (recordstore.Store, *pgxpool.Pool, func(), error) {
	var (
		store   recordstore.Store
		pool    *pgxpool.Pool
		cleanup = func() {}
	)

	switch cfg.StoreBackend {
	case config.StorePostgres:
		if err := database.Migrate(cfg.DatabaseDSN, logger); err != nil {
			return nil, nil, nil, fmt.Errorf("ошибка миграций: %w", err)
		}
		var err error
		pool, err = database.Connect(ctx, cfg.DatabaseDSN, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
		}
		store = recordstore.NewPostgres(pool)
		cleanup = pool.Close
	default:
		snapshot, err := recordstore.OpenSnapshot(cfg.DataDir, logger)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("ошибка открытия снапшота: %w", err)
		}
		store = snapshot
	}

	if cfg.CacheSize > 0 {
		logger.Info("Кэш записей включён",
			slog.Int("size", cfg.CacheSize),
			slog.String("ttl", cfg.CacheTTL.String()),
		)
		store = recordstore.NewCached(store, cfg.CacheSize, cfg.CacheTTL)
	}

	return store, pool, cleanup, nil
}

// openArtifactStore открывает хранилище артефактов выбранного бэкенда.
func openArtifactStore(ctx context.Context, cfg *config.Config) (artifact.Store, error) {
	if cfg.ArtifactBackend == config.ArtifactS3 {
		s3, err := artifact.NewS3(ctx, artifact.S3Options{
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации S3: %w", err)
		}
		return s3, nil
	}

	local, err := artifact.NewLocal(cfg.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации каталога загрузок: %w", err)
	}
	return local, nil
}
