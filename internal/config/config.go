// Пакет config — загрузка и валидация конфигурации Media Gate
// из переменных окружения (и необязательных .env файлов).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые значения MS_MEDIA_STORE.
const (
	StoreFS = "fs"
	StoreS3 = "s3"
)

// Допустимые значения MS_MALFORMED_RANGE_POLICY.
const (
	// RangePolicyFull — некорректный Range игнорируется, отдаётся весь файл (200).
	RangePolicyFull = "full"
	// RangePolicyReject — некорректный Range отклоняется с 416.
	RangePolicyReject = "reject"
)

// minJWTSecretLen — минимальная длина секрета подписи HS256.
const minJWTSecretLen = 32

// Config содержит все параметры конфигурации Media Gate.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Таймаут graceful shutdown
	ShutdownTimeout time.Duration
	// Разрешённые CORS origins
	CORSAllowedOrigins []string

	// --- Хранилище медиафайлов ---

	// Тип хранилища: fs или s3
	MediaStore string
	// Директория медиафайлов (fs)
	MediaDir string
	// Параметры S3-совместимого хранилища (s3)
	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3Prefix    string
	S3AccessKey string
	S3SecretKey string

	// --- Streaming ---

	// Политика обработки некорректного Range: full или reject
	MalformedRangePolicy string
	// Размер буфера чтения при streaming (байт)
	StreamChunkSize int

	// --- Учётные данные ---

	// Секрет подписи токенов (HS256)
	JWTSecret []byte
	// Срок действия токена
	JWTTTL time.Duration
	// Имя cookie с токеном
	CookieName string
	// Флаг Secure для cookie
	CookieSecure bool

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	// --- Кэш пользователей ---

	// Максимальное количество записей
	UserCacheSize int
	// Время жизни записи
	UserCacheTTL time.Duration

	// --- topologymetrics ---

	DephealthCheckInterval time.Duration
	DephealthGroup         string

	// --- Начальный администратор (cmd/media-seed) ---

	AdminEmail     string
	AdminUsername  string
	AdminPassword  string
	AdminFirstName string
	AdminLastName  string
}

// LoadDotEnv подгружает .env и .env.local, если файлы существуют.
// Уже заданные переменные окружения не перезаписываются.
func LoadDotEnv() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err != nil {
			continue
		}
		if err := godotenv.Load(name); err != nil {
			fmt.Fprintf(os.Stderr, "предупреждение: не удалось загрузить %s: %v\n", name, err)
		}
	}
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// MS_PORT — порт HTTP-сервера (по умолчанию 5000)
	cfg.Port, err = getEnvInt("MS_PORT", 5000)
	if err != nil {
		return nil, fmt.Errorf("MS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("MS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MS_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("MS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MS_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("MS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_SHUTDOWN_TIMEOUT: %w", err)
	}

	cfg.CORSAllowedOrigins = getEnvList("MS_CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"})

	// --- Хранилище ---

	cfg.MediaStore = getEnvDefault("MS_MEDIA_STORE", StoreFS)
	switch cfg.MediaStore {
	case StoreFS:
		cfg.MediaDir = getEnvDefault("MS_MEDIA_DIR", "./media-files")
	case StoreS3:
		cfg.S3Endpoint = getEnvDefault("MS_S3_ENDPOINT", "")
		cfg.S3Region = getEnvDefault("MS_S3_REGION", "us-east-1")
		cfg.S3Prefix = getEnvDefault("MS_S3_PREFIX", "")
		if cfg.S3Bucket, err = getEnvRequired("MS_S3_BUCKET"); err != nil {
			return nil, err
		}
		if cfg.S3AccessKey, err = getEnvRequired("MS_S3_ACCESS_KEY"); err != nil {
			return nil, err
		}
		if cfg.S3SecretKey, err = getEnvRequired("MS_S3_SECRET_KEY"); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("MS_MEDIA_STORE: недопустимое значение %q, допустимые: fs, s3", cfg.MediaStore)
	}

	// --- Streaming ---

	cfg.MalformedRangePolicy = getEnvDefault("MS_MALFORMED_RANGE_POLICY", RangePolicyFull)
	if cfg.MalformedRangePolicy != RangePolicyFull && cfg.MalformedRangePolicy != RangePolicyReject {
		return nil, fmt.Errorf("MS_MALFORMED_RANGE_POLICY: недопустимое значение %q, допустимые: full, reject",
			cfg.MalformedRangePolicy)
	}

	cfg.StreamChunkSize, err = getEnvInt("MS_STREAM_CHUNK_SIZE", 64*1024)
	if err != nil {
		return nil, fmt.Errorf("MS_STREAM_CHUNK_SIZE: %w", err)
	}
	if cfg.StreamChunkSize < 1024 || cfg.StreamChunkSize > 4*1024*1024 {
		return nil, fmt.Errorf("MS_STREAM_CHUNK_SIZE: значение %d вне диапазона 1024-4194304", cfg.StreamChunkSize)
	}

	// --- Учётные данные ---

	secret, err := getEnvRequired("MS_JWT_SECRET")
	if err != nil {
		return nil, err
	}
	if len(secret) < minJWTSecretLen {
		return nil, fmt.Errorf("MS_JWT_SECRET: длина секрета должна быть не меньше %d байт", minJWTSecretLen)
	}
	cfg.JWTSecret = []byte(secret)

	cfg.JWTTTL, err = getEnvDuration("MS_JWT_TTL", 7*24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("MS_JWT_TTL: %w", err)
	}
	if cfg.JWTTTL <= 0 {
		return nil, fmt.Errorf("MS_JWT_TTL: значение должно быть положительным")
	}

	cfg.CookieName = getEnvDefault("MS_COOKIE_NAME", "token")

	cfg.CookieSecure, err = getEnvBool("MS_COOKIE_SECURE", false)
	if err != nil {
		return nil, fmt.Errorf("MS_COOKIE_SECURE: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("MS_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("MS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("MS_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("MS_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("MS_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("MS_DB_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("MS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("MS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full",
			cfg.DBSSLMode)
	}

	// --- Кэш пользователей ---

	cfg.UserCacheSize, err = getEnvInt("MS_USER_CACHE_SIZE", 1000)
	if err != nil {
		return nil, fmt.Errorf("MS_USER_CACHE_SIZE: %w", err)
	}
	if cfg.UserCacheSize <= 0 {
		return nil, fmt.Errorf("MS_USER_CACHE_SIZE: значение должно быть положительным")
	}
	cfg.UserCacheTTL, err = getEnvDuration("MS_USER_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_USER_CACHE_TTL: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthCheckInterval, err = getEnvDuration("MS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("MS_DEPHEALTH_GROUP", "media-gate")

	// --- Начальный администратор ---

	cfg.AdminEmail = getEnvDefault("MS_ADMIN_EMAIL", "admin@media-player.com")
	cfg.AdminUsername = getEnvDefault("MS_ADMIN_USERNAME", "admin")
	cfg.AdminPassword = getEnvDefault("MS_ADMIN_PASSWORD", "")
	cfg.AdminFirstName = getEnvDefault("MS_ADMIN_FIRST_NAME", "Admin")
	cfg.AdminLastName = getEnvDefault("MS_ADMIN_LAST_NAME", "User")

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL в формате key=value.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL подключения без пароля (для меток метрик и логов).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
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
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 6h)", val)
	}
	return d, nil
}

// getEnvList возвращает список значений, разделённых запятыми.
// Пустые элементы отбрасываются.
func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var result []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			result = append(result, item)
		}
	}
	return result
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
