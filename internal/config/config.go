// Пакет config — загрузка и валидация конфигурации сервиса согласования
// макетов из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/artwork-review/internal/domain/validation"
	"github.com/bigkaa/artwork-review/internal/notify"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды хранения.
const (
	StoreSnapshot  = "snapshot"
	StorePostgres  = "postgres"
	ArtifactLocal  = "local"
	ArtifactS3     = "s3"
	defaultMaxSize = 50 << 20
)

// Config содержит все параметры конфигурации сервиса.
type Config struct {
	// Порт HTTP-сервера
	Port int
	// Абсолютный адрес сервиса для ссылок в письмах
	BaseURL string

	// Директория снапшота записей
	DataDir string
	// Директория локального хранения артефактов
	UploadDir string

	// Бэкенд записей: snapshot или postgres
	StoreBackend string
	// DSN PostgreSQL (для postgres)
	DatabaseDSN string
	// Размер LRU-кэша записей, 0 — кэш отключён
	CacheSize int
	// Время жизни записи в кэше
	CacheTTL time.Duration

	// Бэкенд артефактов: local или s3
	ArtifactBackend string
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PathStyle     bool
	S3Prefix        string

	// Максимальный размер загружаемого файла в байтах
	MaxUploadSize int64

	// Почтовый провайдер: auto, resend, smtp, log
	EmailProvider string
	ResendAPIKey  string
	ResendAPIURL  string
	SMTPHost      string
	SMTPPort      int
	SMTPUser      string
	SMTPPassword  string
	EmailFrom     string
	AdminEmail    string
	BrandName     string
	// Ограничение времени на отправку одного уведомления
	NotifyTimeout time.Duration

	// Разрешить повторное решение по уже согласованному макету
	AllowResubmit bool
	// Включённые правила валидации
	ValidationRules *validation.Rules

	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// Мониторинг зависимостей topologymetrics: почтовый провайдер и PostgreSQL
	DephealthEnabled bool
	// Отключить проверку сертификата HTTPS-зависимостей
	DephealthTLSSkipVerify bool
	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// значения и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}

	// AR_PORT — порт HTTP-сервера (по умолчанию 3001)
	port, err := getEnvInt("AR_PORT", 3001)
	if err != nil {
		return nil, fmt.Errorf("AR_PORT: %w", err)
	}
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("AR_PORT: значение %d вне допустимого диапазона 1-65535", port)
	}
	cfg.Port = port

	// AR_BASE_URL — по умолчанию http://localhost:{port}
	cfg.BaseURL = strings.TrimRight(getEnvDefault("AR_BASE_URL", fmt.Sprintf("http://localhost:%d", port)), "/")
	if !strings.HasPrefix(cfg.BaseURL, "http://") && !strings.HasPrefix(cfg.BaseURL, "https://") {
		return nil, fmt.Errorf("AR_BASE_URL: ожидается абсолютный http(s) адрес, получено %q", cfg.BaseURL)
	}

	cfg.DataDir = getEnvDefault("AR_DATA_DIR", "./data")
	cfg.UploadDir = getEnvDefault("AR_UPLOAD_DIR", "./uploads")

	// AR_STORE_BACKEND — snapshot (по умолчанию) или postgres
	cfg.StoreBackend = getEnvDefault("AR_STORE_BACKEND", StoreSnapshot)
	switch cfg.StoreBackend {
	case StoreSnapshot:
	case StorePostgres:
		cfg.DatabaseDSN, err = getEnvRequired("AR_DB_DSN")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("AR_STORE_BACKEND: недопустимое значение %q, допустимые: snapshot, postgres", cfg.StoreBackend)
	}

	cfg.CacheSize, err = getEnvInt("AR_CACHE_SIZE", 0)
	if err != nil {
		return nil, fmt.Errorf("AR_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("AR_CACHE_SIZE: значение не может быть отрицательным")
	}
	cfg.CacheTTL, err = getEnvDuration("AR_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AR_CACHE_TTL: %w", err)
	}

	// AR_ARTIFACT_BACKEND — local (по умолчанию) или s3
	cfg.ArtifactBackend = getEnvDefault("AR_ARTIFACT_BACKEND", ArtifactLocal)
	switch cfg.ArtifactBackend {
	case ArtifactLocal:
	case ArtifactS3:
		cfg.S3Bucket, err = getEnvRequired("AR_S3_BUCKET")
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("AR_ARTIFACT_BACKEND: недопустимое значение %q, допустимые: local, s3", cfg.ArtifactBackend)
	}
	cfg.S3Region = getEnvDefault("AR_S3_REGION", "")
	cfg.S3Endpoint = getEnvDefault("AR_S3_ENDPOINT", "")
	cfg.S3Prefix = getEnvDefault("AR_S3_PREFIX", "")
	cfg.S3PathStyle, err = getEnvBool("AR_S3_PATH_STYLE", false)
	if err != nil {
		return nil, fmt.Errorf("AR_S3_PATH_STYLE: %w", err)
	}

	// AR_MAX_UPLOAD_SIZE — максимальный размер файла (по умолчанию 50 MB)
	cfg.MaxUploadSize, err = getEnvInt64("AR_MAX_UPLOAD_SIZE", defaultMaxSize)
	if err != nil {
		return nil, fmt.Errorf("AR_MAX_UPLOAD_SIZE: %w", err)
	}
	if cfg.MaxUploadSize <= 0 {
		return nil, fmt.Errorf("AR_MAX_UPLOAD_SIZE: значение должно быть положительным")
	}

	// Почта
	cfg.EmailProvider = strings.ToLower(getEnvDefault("AR_EMAIL_PROVIDER", notify.ProviderAuto))
	switch cfg.EmailProvider {
	case notify.ProviderAuto, notify.ProviderResend, notify.ProviderSMTP, notify.ProviderLog:
	default:
		return nil, fmt.Errorf("AR_EMAIL_PROVIDER: недопустимое значение %q, допустимые: auto, resend, smtp, log", cfg.EmailProvider)
	}
	cfg.ResendAPIKey = getEnvDefault("AR_RESEND_API_KEY", "")
	cfg.ResendAPIURL = getEnvDefault("AR_RESEND_API_URL", notify.DefaultResendURL)
	cfg.SMTPHost = getEnvDefault("AR_SMTP_HOST", "smtp.gmail.com")
	cfg.SMTPPort, err = getEnvInt("AR_SMTP_PORT", 587)
	if err != nil {
		return nil, fmt.Errorf("AR_SMTP_PORT: %w", err)
	}
	cfg.SMTPUser = getEnvDefault("AR_SMTP_USER", "")
	cfg.SMTPPassword = getEnvDefault("AR_SMTP_PASSWORD", "")
	cfg.EmailFrom = getEnvDefault("AR_EMAIL_FROM", cfg.SMTPUser)
	cfg.AdminEmail = getEnvDefault("AR_ADMIN_EMAIL", cfg.EmailFrom)
	cfg.BrandName = getEnvDefault("AR_BRAND_NAME", "PBJA")
	cfg.NotifyTimeout, err = getEnvDuration("AR_NOTIFY_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AR_NOTIFY_TIMEOUT: %w", err)
	}
	if cfg.NotifyTimeout <= 0 {
		return nil, fmt.Errorf("AR_NOTIFY_TIMEOUT: значение должно быть положительным")
	}

	// Политика решений и валидация
	cfg.AllowResubmit, err = getEnvBool("AR_ALLOW_RESUBMIT", false)
	if err != nil {
		return nil, fmt.Errorf("AR_ALLOW_RESUBMIT: %w", err)
	}
	rules, ok := os.LookupEnv("AR_VALIDATION_RULES")
	if !ok {
		rules = string(validation.RuleAmendNotesRequired)
	}
	cfg.ValidationRules, err = validation.Parse(rules)
	if err != nil {
		return nil, fmt.Errorf("AR_VALIDATION_RULES: %w", err)
	}

	// AR_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("AR_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("AR_LOG_LEVEL: %w", err)
	}

	// AR_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("AR_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AR_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// Таймауты HTTP-сервера
	if cfg.ReadTimeout, err = getEnvDuration("AR_HTTP_READ_TIMEOUT", 30*time.Second); err != nil {
		return nil, fmt.Errorf("AR_HTTP_READ_TIMEOUT: %w", err)
	}
	if cfg.WriteTimeout, err = getEnvDuration("AR_HTTP_WRITE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("AR_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.IdleTimeout, err = getEnvDuration("AR_HTTP_IDLE_TIMEOUT", 120*time.Second); err != nil {
		return nil, fmt.Errorf("AR_HTTP_IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("AR_SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("AR_SHUTDOWN_TIMEOUT: %w", err)
	}

	// topologymetrics
	if cfg.DephealthEnabled, err = getEnvBool("AR_DEPHEALTH_ENABLED", true); err != nil {
		return nil, fmt.Errorf("AR_DEPHEALTH_ENABLED: %w", err)
	}
	if cfg.DephealthTLSSkipVerify, err = getEnvBool("AR_DEPHEALTH_TLS_SKIP_VERIFY", false); err != nil {
		return nil, fmt.Errorf("AR_DEPHEALTH_TLS_SKIP_VERIFY: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("AR_DEPHEALTH_GROUP", "artwork-review")
	cfg.DephealthCheckInterval, err = getEnvDuration("AR_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AR_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// NotifyOptions возвращает параметры почтового провайдера.
func (c *Config) NotifyOptions() notify.Options {
	return notify.Options{
		Provider:     c.EmailProvider,
		ResendAPIKey: c.ResendAPIKey,
		ResendURL:    c.ResendAPIURL,
		SMTP: notify.SMTPOptions{
			Host:     c.SMTPHost,
			Port:     c.SMTPPort,
			Username: c.SMTPUser,
			Password: c.SMTPPassword,
			Timeout:  c.NotifyTimeout,
		},
		From:       c.EmailFrom,
		AdminEmail: c.AdminEmail,
		BaseURL:    c.BaseURL,
		Brand:      c.BrandName,
		Timeout:    c.NotifyTimeout,
	}
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 возвращает int64 значение переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 10s, 5m, 1h)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
