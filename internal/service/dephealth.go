// dephealth.go — мониторинг зависимостей через topologymetrics SDK.
//
// Набор зависимостей выводится из конфигурации сервиса:
//   - email-provider — Resend API (HTTP, AR_RESEND_API_URL) или SMTP-сервер (TCP);
//     для провайдера log не проверяется
//   - postgresql — пул соединений хранилища записей, если выбран бэкенд postgres
//
// Метрики доступны на /metrics вместе с остальными Prometheus-метриками:
//   - app_dependency_health — состояние зависимости (1 = ok, 0 = fail)
//   - app_dependency_latency_seconds — задержка проверки
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/BigKAA/topologymetrics/sdk-go/dephealth"
	"github.com/BigKAA/topologymetrics/sdk-go/dephealth/checks"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bigkaa/artwork-review/internal/notify"
)

// ErrNoDependencies — в конфигурации нет зависимостей для мониторинга.
var ErrNoDependencies = errors.New("нет зависимостей для мониторинга")

const (
	depEmailProvider = "email-provider"
	depPostgres      = "postgresql"

	// resendHealthPath — лёгкий GET, требующий валидного ключа API
	resendHealthPath = "/domains"
)

// DependencyOptions — параметры мониторинга зависимостей.
type DependencyOptions struct {
	// Name — имя вершины графа текущего приложения
	Name          string
	Group         string
	CheckInterval time.Duration
	// TLSSkipVerify отключает проверку сертификата HTTPS-зависимостей
	// (AR_DEPHEALTH_TLS_SKIP_VERIFY)
	TLSSkipVerify bool
	Notify        notify.Options
	// Database — пул PostgreSQL; nil для snapshot-хранилища
	Database *pgxpool.Pool
	// Registerer — nil означает глобальный Prometheus registry
	Registerer prometheus.Registerer
}

// dependencyTarget — проверяемая зависимость.
type dependencyTarget struct {
	name       string
	kind       dephealth.DependencyType
	host       string
	port       string
	healthPath string
	tls        bool
	critical   bool
}

// DephealthService — сервис мониторинга зависимостей через topologymetrics.
type DephealthService struct {
	dh     *dephealth.DepHealth
	deps   []string
	logger *slog.Logger
}

// NewDephealthService создаёт сервис мониторинга зависимостей.
// Возвращает ErrNoDependencies, если проверять нечего.
func NewDephealthService(opts DependencyOptions, logger *slog.Logger) (*DephealthService, error) {
	targets, err := planDependencies(opts)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, ErrNoDependencies
	}

	dhOpts := []dephealth.Option{dephealth.WithLogger(logger)}
	if opts.Registerer != nil {
		dhOpts = append(dhOpts, dephealth.WithRegisterer(opts.Registerer))
	}

	names := make([]string, 0, len(targets))
	for _, target := range targets {
		depOpts := []dephealth.DependencyOption{
			dephealth.FromParams(target.host, target.port),
			dephealth.CheckInterval(opts.CheckInterval),
			dephealth.Timeout(checkTimeout(opts.CheckInterval)),
			dephealth.Critical(target.critical),
		}

		switch target.kind {
		case dephealth.TypeHTTP:
			depOpts = append(depOpts,
				dephealth.WithHTTPHealthPath(target.healthPath),
				dephealth.WithHTTPTLS(target.tls),
			)
			if target.tls {
				depOpts = append(depOpts, dephealth.WithHTTPTLSSkipVerify(opts.TLSSkipVerify))
			}
			if opts.Notify.ResendAPIKey != "" {
				depOpts = append(depOpts, dephealth.WithHTTPBearerToken(opts.Notify.ResendAPIKey))
			}
			dhOpts = append(dhOpts, dephealth.HTTP(target.name, depOpts...))
		case dephealth.TypeTCP:
			dhOpts = append(dhOpts, dephealth.TCP(target.name, depOpts...))
		case dephealth.TypePostgres:
			// Проверка через *sql.DB поверх рабочего пула отражает его
			// реальное состояние, включая исчерпание соединений
			checker := checks.NewPostgresChecker(checks.WithPostgresDB(stdlib.OpenDBFromPool(opts.Database)))
			dhOpts = append(dhOpts, dephealth.AddDependency(target.name, dephealth.TypePostgres, checker, depOpts...))
		}
		names = append(names, target.name+"("+string(target.kind)+" "+target.host+":"+target.port+")")
	}

	dh, err := dephealth.New(opts.Name, opts.Group, dhOpts...)
	if err != nil {
		return nil, err
	}

	return &DephealthService{
		dh:     dh,
		deps:   names,
		logger: logger.With(slog.String("component", "dephealth")),
	}, nil
}

// planDependencies определяет набор зависимостей по конфигурации.
func planDependencies(opts DependencyOptions) ([]dependencyTarget, error) {
	var targets []dependencyTarget

	provider, err := notify.ResolveProvider(opts.Notify)
	if err != nil {
		return nil, err
	}

	// Почтовый провайдер не критичен: без него сервис работает, письма
	// помечаются как failed
	switch provider {
	case notify.ProviderResend:
		target, err := resendTarget(opts.Notify.ResendURL)
		if err != nil {
			return nil, err
		}
		targets = append(targets, target)
	case notify.ProviderSMTP:
		if opts.Notify.SMTP.Host == "" {
			return nil, fmt.Errorf("%s: не задан SMTP-хост", depEmailProvider)
		}
		targets = append(targets, dependencyTarget{
			name: depEmailProvider,
			kind: dephealth.TypeTCP,
			host: opts.Notify.SMTP.Host,
			port: strconv.Itoa(opts.Notify.SMTP.Port),
		})
	}

	if opts.Database != nil {
		conn := opts.Database.Config().ConnConfig
		targets = append(targets, dependencyTarget{
			name:     depPostgres,
			kind:     dephealth.TypePostgres,
			host:     conn.Host,
			port:     strconv.Itoa(int(conn.Port)),
			critical: true,
		})
	}

	return targets, nil
}

// checkTimeout — таймаут одной проверки, строго меньше интервала.
func checkTimeout(interval time.Duration) time.Duration {
	if timeout := interval / 2; timeout < dephealth.DefaultTimeout {
		return timeout
	}
	return dephealth.DefaultTimeout
}

// resendTarget строит HTTP-проверку по базовому адресу Resend API.
// Путь базового адреса сохраняется: прокси вида https://proxy/resend
// проверяется по https://proxy/resend/domains.
func resendTarget(rawURL string) (dependencyTarget, error) {
	if rawURL == "" {
		rawURL = notify.DefaultResendURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return dependencyTarget{}, fmt.Errorf("%s: некорректный URL %q: %w", depEmailProvider, rawURL, err)
	}

	target := dependencyTarget{
		name:       depEmailProvider,
		kind:       dephealth.TypeHTTP,
		host:       u.Hostname(),
		port:       u.Port(),
		healthPath: strings.TrimRight(u.Path, "/") + resendHealthPath,
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		target.tls = true
		if target.port == "" {
			target.port = "443"
		}
	case "http":
		if target.port == "" {
			target.port = "80"
		}
	default:
		return dependencyTarget{}, fmt.Errorf("%s: неподдерживаемая схема URL %q", depEmailProvider, rawURL)
	}
	if target.host == "" {
		return dependencyTarget{}, fmt.Errorf("%s: в URL %q нет хоста", depEmailProvider, rawURL)
	}
	return target, nil
}

// Start запускает периодическую проверку зависимостей.
func (ds *DephealthService) Start(ctx context.Context) error {
	ds.logger.Info("Мониторинг зависимостей запущен", slog.Any("dependencies", ds.deps))
	return ds.dh.Start(ctx)
}

// Stop останавливает мониторинг зависимостей.
func (ds *DephealthService) Stop() {
	ds.dh.Stop()
	ds.logger.Info("Мониторинг зависимостей остановлен")
}

// Health возвращает текущее состояние зависимостей.
// Ключ — "зависимость:хост:порт", значение — true если ok.
func (ds *DephealthService) Health() map[string]bool {
	return ds.dh.Health()
}
