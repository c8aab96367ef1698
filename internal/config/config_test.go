package config

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/bigkaa/artwork-review/internal/domain/validation"
)

// allKeys — все переменные окружения сервиса.
var allKeys = []string{
	"AR_PORT", "AR_BASE_URL", "AR_DATA_DIR", "AR_UPLOAD_DIR",
	"AR_STORE_BACKEND", "AR_DB_DSN", "AR_CACHE_SIZE", "AR_CACHE_TTL",
	"AR_ARTIFACT_BACKEND", "AR_S3_BUCKET", "AR_S3_REGION", "AR_S3_ENDPOINT",
	"AR_S3_PATH_STYLE", "AR_S3_PREFIX", "AR_MAX_UPLOAD_SIZE",
	"AR_EMAIL_PROVIDER", "AR_RESEND_API_KEY", "AR_RESEND_API_URL",
	"AR_SMTP_HOST", "AR_SMTP_PORT", "AR_SMTP_USER", "AR_SMTP_PASSWORD",
	"AR_EMAIL_FROM", "AR_ADMIN_EMAIL", "AR_BRAND_NAME", "AR_NOTIFY_TIMEOUT",
	"AR_ALLOW_RESUBMIT", "AR_VALIDATION_RULES", "AR_LOG_LEVEL", "AR_LOG_FORMAT",
	"AR_HTTP_READ_TIMEOUT", "AR_HTTP_WRITE_TIMEOUT", "AR_HTTP_IDLE_TIMEOUT",
	"AR_SHUTDOWN_TIMEOUT", "AR_DEPHEALTH_ENABLED", "AR_DEPHEALTH_TLS_SKIP_VERIFY",
	"AR_DEPHEALTH_GROUP", "AR_DEPHEALTH_CHECK_INTERVAL",
}

// clearAllEnvVars очищает все переменные AR_* для чистого теста.
// Исходные значения восстанавливаются после теста.
func clearAllEnvVars(t *testing.T) {
	t.Helper()
	originals := make(map[string]string)
	for _, k := range allKeys {
		if v, ok := os.LookupEnv(k); ok {
			originals[k] = v
		}
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for _, k := range allKeys {
			if v, ok := originals[k]; ok {
				os.Setenv(k, v)
			} else {
				os.Unsetenv(k)
			}
		}
	})
}

// setEnvVars устанавливает переменные окружения на время теста.
func setEnvVars(t *testing.T, vars map[string]string) {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearAllEnvVars(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() с пустым окружением: %v", err)
	}

	if cfg.Port != 3001 {
		t.Errorf("Port: ожидалось 3001, получено %d", cfg.Port)
	}
	if cfg.BaseURL != "http://localhost:3001" {
		t.Errorf("BaseURL: получено %q", cfg.BaseURL)
	}
	if cfg.DataDir != "./data" || cfg.UploadDir != "./uploads" {
		t.Errorf("директории: %q, %q", cfg.DataDir, cfg.UploadDir)
	}
	if cfg.StoreBackend != StoreSnapshot || cfg.ArtifactBackend != ArtifactLocal {
		t.Errorf("бэкенды: %q, %q", cfg.StoreBackend, cfg.ArtifactBackend)
	}
	if cfg.CacheSize != 0 || cfg.CacheTTL != 5*time.Minute {
		t.Errorf("кэш: %d, %v", cfg.CacheSize, cfg.CacheTTL)
	}
	if cfg.MaxUploadSize != 52428800 {
		t.Errorf("MaxUploadSize: получено %d", cfg.MaxUploadSize)
	}
	if cfg.EmailProvider != "auto" || cfg.SMTPHost != "smtp.gmail.com" || cfg.SMTPPort != 587 {
		t.Errorf("почта: %q %q %d", cfg.EmailProvider, cfg.SMTPHost, cfg.SMTPPort)
	}
	if cfg.ResendAPIURL != "https://api.resend.com" {
		t.Errorf("ResendAPIURL: %q", cfg.ResendAPIURL)
	}
	if cfg.BrandName != "PBJA" {
		t.Errorf("BrandName: %q", cfg.BrandName)
	}
	if cfg.NotifyTimeout != 10*time.Second {
		t.Errorf("NotifyTimeout: %v", cfg.NotifyTimeout)
	}
	if cfg.AllowResubmit {
		t.Error("AllowResubmit по умолчанию должен быть false")
	}
	if !cfg.ValidationRules.Enabled(validation.RuleAmendNotesRequired) {
		t.Error("amend_notes_required должно быть включено по умолчанию")
	}
	if cfg.ValidationRules.Enabled(validation.RuleEmailFormat) {
		t.Error("email_format не должно быть включено по умолчанию")
	}
	if cfg.LogLevel != slog.LevelInfo || cfg.LogFormat != "json" {
		t.Errorf("логирование: %v %q", cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.ReadTimeout != 30*time.Second || cfg.WriteTimeout != 60*time.Second || cfg.IdleTimeout != 120*time.Second {
		t.Errorf("таймауты: %v %v %v", cfg.ReadTimeout, cfg.WriteTimeout, cfg.IdleTimeout)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout: %v", cfg.ShutdownTimeout)
	}
	if !cfg.DephealthEnabled || cfg.DephealthTLSSkipVerify || cfg.DephealthCheckInterval != 15*time.Second {
		t.Errorf("dephealth: %v %v %v", cfg.DephealthEnabled, cfg.DephealthTLSSkipVerify, cfg.DephealthCheckInterval)
	}
}

func TestLoad_CustomValues(t *testing.T) {
	clearAllEnvVars(t)
	setEnvVars(t, map[string]string{
		"AR_PORT":             "8080",
		"AR_BASE_URL":         "https://art.example.com/",
		"AR_STORE_BACKEND":    "postgres",
		"AR_DB_DSN":           "postgres://u:p@localhost:5432/ar",
		"AR_CACHE_SIZE":       "256",
		"AR_CACHE_TTL":        "1m",
		"AR_ARTIFACT_BACKEND": "s3",
		"AR_S3_BUCKET":        "artwork",
		"AR_S3_PATH_STYLE":    "true",
		"AR_SMTP_USER":        "sender@example.com",
		"AR_ALLOW_RESUBMIT":   "true",
		"AR_VALIDATION_RULES": "email_format,amend_notes_required",
		"AR_LOG_LEVEL":        "debug",
		"AR_LOG_FORMAT":       "text",

		"AR_DEPHEALTH_TLS_SKIP_VERIFY": "true",
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port: %d", cfg.Port)
	}
	if cfg.BaseURL != "https://art.example.com" {
		t.Errorf("BaseURL должен быть без завершающего слэша: %q", cfg.BaseURL)
	}
	if cfg.StoreBackend != StorePostgres || cfg.DatabaseDSN == "" {
		t.Errorf("postgres: %q %q", cfg.StoreBackend, cfg.DatabaseDSN)
	}
	if cfg.CacheSize != 256 || cfg.CacheTTL != time.Minute {
		t.Errorf("кэш: %d %v", cfg.CacheSize, cfg.CacheTTL)
	}
	if cfg.ArtifactBackend != ArtifactS3 || cfg.S3Bucket != "artwork" || !cfg.S3PathStyle {
		t.Errorf("s3: %q %q %v", cfg.ArtifactBackend, cfg.S3Bucket, cfg.S3PathStyle)
	}
	// Отправитель и администратор по умолчанию — учётная запись SMTP
	if cfg.EmailFrom != "sender@example.com" || cfg.AdminEmail != "sender@example.com" {
		t.Errorf("адреса: from=%q admin=%q", cfg.EmailFrom, cfg.AdminEmail)
	}
	if !cfg.AllowResubmit {
		t.Error("AllowResubmit должен быть true")
	}
	if !cfg.ValidationRules.Enabled(validation.RuleEmailFormat) {
		t.Error("email_format должно быть включено")
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.LogFormat != "text" {
		t.Errorf("логирование: %v %q", cfg.LogLevel, cfg.LogFormat)
	}

	if !cfg.DephealthTLSSkipVerify {
		t.Error("DephealthTLSSkipVerify должен быть true")
	}

	opts := cfg.NotifyOptions()
	if opts.SMTP.Username != "sender@example.com" || opts.BaseURL != "https://art.example.com" {
		t.Errorf("NotifyOptions: %+v", opts)
	}
}

func TestLoad_ValidationRulesDisabled(t *testing.T) {
	clearAllEnvVars(t)
	setEnvVars(t, map[string]string{"AR_VALIDATION_RULES": "none"})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load(): %v", err)
	}
	if len(cfg.ValidationRules.List()) != 0 {
		t.Errorf("правила должны быть отключены: %v", cfg.ValidationRules.List())
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"порт не число", map[string]string{"AR_PORT": "abc"}},
		{"порт вне диапазона", map[string]string{"AR_PORT": "70000"}},
		{"относительный base url", map[string]string{"AR_BASE_URL": "example.com"}},
		{"неизвестный бэкенд записей", map[string]string{"AR_STORE_BACKEND": "redis"}},
		{"postgres без DSN", map[string]string{"AR_STORE_BACKEND": "postgres"}},
		{"отрицательный кэш", map[string]string{"AR_CACHE_SIZE": "-1"}},
		{"неизвестный бэкенд артефактов", map[string]string{"AR_ARTIFACT_BACKEND": "ftp"}},
		{"s3 без бакета", map[string]string{"AR_ARTIFACT_BACKEND": "s3"}},
		{"некорректный path style", map[string]string{"AR_S3_PATH_STYLE": "maybe"}},
		{"нулевой размер загрузки", map[string]string{"AR_MAX_UPLOAD_SIZE": "0"}},
		{"неизвестный провайдер", map[string]string{"AR_EMAIL_PROVIDER": "sendgrid"}},
		{"некорректный таймаут уведомлений", map[string]string{"AR_NOTIFY_TIMEOUT": "ten"}},
		{"нулевой таймаут уведомлений", map[string]string{"AR_NOTIFY_TIMEOUT": "0s"}},
		{"некорректный resubmit", map[string]string{"AR_ALLOW_RESUBMIT": "yes please"}},
		{"неизвестное правило", map[string]string{"AR_VALIDATION_RULES": "phone_format"}},
		{"неизвестный уровень логов", map[string]string{"AR_LOG_LEVEL": "trace"}},
		{"неизвестный формат логов", map[string]string{"AR_LOG_FORMAT": "xml"}},
		{"некорректный read timeout", map[string]string{"AR_HTTP_READ_TIMEOUT": "1x"}},
		{"некорректный интервал dephealth", map[string]string{"AR_DEPHEALTH_CHECK_INTERVAL": "often"}},
		{"некорректный флаг dephealth", map[string]string{"AR_DEPHEALTH_ENABLED": "sometimes"}},
		{"некорректный tls skip verify", map[string]string{"AR_DEPHEALTH_TLS_SKIP_VERIFY": "nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearAllEnvVars(t)
			setEnvVars(t, tt.vars)

			if _, err := Load(); err == nil {
				t.Errorf("ожидалась ошибка для %v", tt.vars)
			}
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := parseLogLevel(in)
		if err != nil || got != want {
			t.Errorf("parseLogLevel(%q) = %v, %v; ожидалось %v", in, got, err, want)
		}
	}
}

func TestSetupLogger(t *testing.T) {
	for _, format := range []string{"json", "text"} {
		logger := SetupLogger(&Config{LogLevel: slog.LevelWarn, LogFormat: format})
		if logger == nil {
			t.Fatalf("SetupLogger(%s) вернул nil", format)
		}
		if logger.Enabled(context.Background(), slog.LevelInfo) {
			t.Errorf("уровень info не должен быть включён при warn (%s)", format)
		}
	}
}
