// Пакет config: загрузка и валидация конфигурации Access Gate
// из переменных окружения (префикс AG_).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Драйверы хранилища заявок.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverSQLite   = "sqlite"
	StoreDriverMemory   = "memory"
)

// Код заявки: <префикс>-<unix>-<10 символов>, не длиннее 64 символов,
// поэтому на префикс остаётся 42.
var (
	codePrefixPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9-]{0,41}$`)
	scopeIDPattern    = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{0,63}$`)
)

// Config содержит все параметры конфигурации Access Gate.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймауты HTTP-сервера
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration

	// --- Хранилище ---

	// Драйвер: postgres, sqlite, memory
	StoreDriver string

	// PostgreSQL (обязательны при StoreDriver = postgres)
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// Путь к файлу SQLite (при StoreDriver = sqlite)
	SQLitePath string

	// --- Keycloak / JWT администраторов ---

	KeycloakURL   string
	KeycloakRealm string
	// Issuer JWT (авто-вычисляется из KeycloakURL, если не задан)
	JWTIssuer string
	// URL JWKS endpoint (авто-вычисляется из KeycloakURL, если не задан)
	JWTJWKSURL string
	// Таймаут HTTP-клиента JWKS
	JWKSClientTimeout time.Duration
	// Интервал фонового обновления JWKS
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение часов при проверке exp/nbf
	JWTLeeway time.Duration
	// Путь к CA-сертификату для TLS к Keycloak и объектному хранилищу (опционально)
	CACertPath string

	// --- Маппинг групп → ролей ---

	RoleApproverGroups []string
	RoleViewerGroups   []string

	// --- Жизненный цикл заявок ---

	// Окно действия временного токена после одобрения
	TokenTTL time.Duration
	// Интервал опроса статуса, сообщается клиенту
	PollInterval time.Duration
	// Префикс кодов заявок в QR
	CodePrefix string
	// Scope по умолчанию, если QR не содержит scope
	DefaultScope string
	// Базовый URL страницы посетителя (для QR payload)
	PublicBaseURL string
	// Размер и TTL кэша положительных результатов валидации (0 = выключен)
	ValidationCacheSize int
	ValidationCacheTTL  time.Duration

	// --- Объектное хранилище документов ---

	// Базовый URL, к которому дописывается object_key (пусто = выдача содержимого отключена)
	ObjectBaseURL string
	// Таймаут загрузки объекта
	ObjectFetchTimeout time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
// Если рядом лежит .env, он читается первым и не перекрывает окружение.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("чтение .env: %w", err)
	}

	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("AG_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("AG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("AG_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("AG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("AG_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("AG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AG_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	if cfg.HTTPReadTimeout, err = getEnvDuration("AG_HTTP_READ_TIMEOUT", 15*time.Second); err != nil {
		return nil, fmt.Errorf("AG_HTTP_READ_TIMEOUT: %w", err)
	}
	// Выдача содержимого документов может идти дольше обычного ответа
	if cfg.HTTPWriteTimeout, err = getEnvDuration("AG_HTTP_WRITE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, fmt.Errorf("AG_HTTP_WRITE_TIMEOUT: %w", err)
	}
	if cfg.HTTPIdleTimeout, err = getEnvDuration("AG_HTTP_IDLE_TIMEOUT", 60*time.Second); err != nil {
		return nil, fmt.Errorf("AG_HTTP_IDLE_TIMEOUT: %w", err)
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("AG_SHUTDOWN_TIMEOUT", 5*time.Second); err != nil {
		return nil, fmt.Errorf("AG_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Хранилище ---

	cfg.StoreDriver = strings.ToLower(getEnvDefault("AG_STORE_DRIVER", StoreDriverPostgres))
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if err := loadPostgres(cfg); err != nil {
			return nil, err
		}
	case StoreDriverSQLite:
		cfg.SQLitePath = getEnvDefault("AG_SQLITE_PATH", "access-gate.db")
	case StoreDriverMemory:
	default:
		return nil, fmt.Errorf("AG_STORE_DRIVER: недопустимое значение %q, допустимые: postgres, sqlite, memory", cfg.StoreDriver)
	}

	// --- Keycloak ---

	cfg.KeycloakURL, err = getEnvRequired("AG_KEYCLOAK_URL")
	if err != nil {
		return nil, err
	}
	cfg.KeycloakURL = strings.TrimRight(cfg.KeycloakURL, "/")
	cfg.KeycloakRealm = getEnvDefault("AG_KEYCLOAK_REALM", "woreda")

	cfg.JWTIssuer = getEnvDefault("AG_JWT_ISSUER",
		fmt.Sprintf("%s/realms/%s", cfg.KeycloakURL, cfg.KeycloakRealm))
	cfg.JWTJWKSURL = getEnvDefault("AG_JWT_JWKS_URL",
		fmt.Sprintf("%s/realms/%s/protocol/openid-connect/certs", cfg.KeycloakURL, cfg.KeycloakRealm))

	if cfg.JWKSClientTimeout, err = getEnvDuration("AG_JWKS_CLIENT_TIMEOUT", 10*time.Second); err != nil {
		return nil, fmt.Errorf("AG_JWKS_CLIENT_TIMEOUT: %w", err)
	}
	if cfg.JWKSRefreshInterval, err = getEnvDuration("AG_JWKS_REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, fmt.Errorf("AG_JWKS_REFRESH_INTERVAL: %w", err)
	}
	if cfg.JWTLeeway, err = getEnvDuration("AG_JWT_LEEWAY", 5*time.Second); err != nil {
		return nil, fmt.Errorf("AG_JWT_LEEWAY: %w", err)
	}
	cfg.CACertPath = getEnvDefault("AG_CA_CERT_PATH", "")

	// --- Маппинг групп → ролей ---

	cfg.RoleApproverGroups = parseCSV(getEnvDefault("AG_ROLE_APPROVER_GROUPS", "woreda-admins"))
	cfg.RoleViewerGroups = parseCSV(getEnvDefault("AG_ROLE_VIEWER_GROUPS", "woreda-viewers"))

	// --- Жизненный цикл заявок ---

	if cfg.TokenTTL, err = getEnvDuration("AG_TOKEN_TTL", 2*time.Hour); err != nil {
		return nil, fmt.Errorf("AG_TOKEN_TTL: %w", err)
	}
	if cfg.TokenTTL < time.Minute {
		return nil, fmt.Errorf("AG_TOKEN_TTL: значение %s меньше минимального 1m", cfg.TokenTTL)
	}
	if cfg.PollInterval, err = getEnvDuration("AG_POLL_INTERVAL", 2*time.Second); err != nil {
		return nil, fmt.Errorf("AG_POLL_INTERVAL: %w", err)
	}
	if cfg.PollInterval < 500*time.Millisecond {
		return nil, fmt.Errorf("AG_POLL_INTERVAL: значение %s меньше минимального 500ms", cfg.PollInterval)
	}

	cfg.CodePrefix = getEnvDefault("AG_CODE_PREFIX", "WRD")
	if !codePrefixPattern.MatchString(cfg.CodePrefix) {
		return nil, fmt.Errorf("AG_CODE_PREFIX: недопустимое значение %q, ожидается до 42 символов [A-Za-z0-9-], первый не дефис", cfg.CodePrefix)
	}
	cfg.DefaultScope = getEnvDefault("AG_DEFAULT_SCOPE", "")
	if cfg.DefaultScope != "" && !scopeIDPattern.MatchString(cfg.DefaultScope) {
		return nil, fmt.Errorf("AG_DEFAULT_SCOPE: недопустимое значение %q, ожидается [a-z0-9-]", cfg.DefaultScope)
	}

	cfg.PublicBaseURL = strings.TrimRight(getEnvDefault("AG_PUBLIC_BASE_URL", fmt.Sprintf("http://localhost:%d", cfg.Port)), "/")
	if _, err := url.ParseRequestURI(cfg.PublicBaseURL); err != nil {
		return nil, fmt.Errorf("AG_PUBLIC_BASE_URL: некорректный URL %q", cfg.PublicBaseURL)
	}

	if cfg.ValidationCacheSize, err = getEnvInt("AG_VALIDATION_CACHE_SIZE", 10000); err != nil {
		return nil, fmt.Errorf("AG_VALIDATION_CACHE_SIZE: %w", err)
	}
	if cfg.ValidationCacheSize < 0 {
		return nil, fmt.Errorf("AG_VALIDATION_CACHE_SIZE: отрицательное значение %d", cfg.ValidationCacheSize)
	}
	if cfg.ValidationCacheTTL, err = getEnvDuration("AG_VALIDATION_CACHE_TTL", time.Minute); err != nil {
		return nil, fmt.Errorf("AG_VALIDATION_CACHE_TTL: %w", err)
	}

	// --- Объектное хранилище ---

	cfg.ObjectBaseURL = strings.TrimRight(getEnvDefault("AG_OBJECT_BASE_URL", ""), "/")
	if cfg.ObjectBaseURL != "" {
		if _, err := url.ParseRequestURI(cfg.ObjectBaseURL); err != nil {
			return nil, fmt.Errorf("AG_OBJECT_BASE_URL: некорректный URL %q", cfg.ObjectBaseURL)
		}
	}
	if cfg.ObjectFetchTimeout, err = getEnvDuration("AG_OBJECT_FETCH_TIMEOUT", 2*time.Minute); err != nil {
		return nil, fmt.Errorf("AG_OBJECT_FETCH_TIMEOUT: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("AG_DEPHEALTH_GROUP", "woreda")
	if cfg.DephealthCheckInterval, err = getEnvDuration("AG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second); err != nil {
		return nil, fmt.Errorf("AG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	return cfg, nil
}

// loadPostgres читает параметры подключения к PostgreSQL.
func loadPostgres(cfg *Config) error {
	var err error

	if cfg.DBHost, err = getEnvRequired("AG_DB_HOST"); err != nil {
		return err
	}
	if cfg.DBPort, err = getEnvInt("AG_DB_PORT", 5432); err != nil {
		return fmt.Errorf("AG_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("AG_DB_NAME"); err != nil {
		return err
	}
	if cfg.DBUser, err = getEnvRequired("AG_DB_USER"); err != nil {
		return err
	}
	if cfg.DBPassword, err = getEnvRequired("AG_DB_PASSWORD"); err != nil {
		return err
	}

	cfg.DBSSLMode = getEnvDefault("AG_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return fmt.Errorf("AG_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}
	return nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
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

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

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

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
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

// parseCSV разбирает строку через запятую; пустые элементы отбрасываются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
