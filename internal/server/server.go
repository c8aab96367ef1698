// Пакет server — HTTP-сервер сервиса согласования макетов с graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bigkaa/artwork-review/internal/api/handlers"
	"github.com/bigkaa/artwork-review/internal/api/middleware"
	"github.com/bigkaa/artwork-review/internal/config"
	"github.com/bigkaa/artwork-review/internal/ui"
)

// Server — HTTP-сервер сервиса.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, artwork *handlers.ArtworkHandler, health *handlers.HealthHandler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, artwork, health),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "server")),
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты сервиса.
// Маршруты без префикса /api сохранены для старых ссылок и клиентов.
func NewRouter(logger *slog.Logger, artwork *handlers.ArtworkHandler, health *handlers.HealthHandler) http.Handler {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.MetricsMiddleware())

	// Страница
	router.Get("/", ui.Page)
	router.Get("/artwork-approval.html", ui.Page)
	router.Get("/img/{name}", ui.Logo)

	// API
	router.Route("/api", func(r chi.Router) {
		r.Post("/upload", artwork.Upload)
		r.Get("/artwork/{id}", artwork.GetArtwork)
		r.Post("/review/{id}", artwork.SubmitReview)
	})
	router.Post("/upload", artwork.Upload)
	router.Get("/artwork/{id}", artwork.GetArtwork)
	router.Post("/review/{id}", artwork.SubmitReview)

	router.Get("/review/{id}", artwork.ReviewRedirect)
	router.Get("/uploads/{name}", artwork.ServeUpload)

	// Служебные
	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Handle("/metrics", promhttp.Handler())

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown с таймаутом ShutdownTimeout.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
			slog.String("base_url", s.cfg.BaseURL),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
