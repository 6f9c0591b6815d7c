// Точка входа Media Gate — сервис потоковой отдачи медиафайлов.
// Загружает конфигурацию, подключается к PostgreSQL, применяет миграции,
// открывает хранилище медиафайлов (локальная директория или S3),
// создаёт сервисный слой и API handlers, запускает topologymetrics
// и HTTP-сервер с AccessGate и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/goartstore/media-gate/internal/api/handlers"
	"github.com/bigkaa/goartstore/media-gate/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-gate/internal/config"
	"github.com/bigkaa/goartstore/media-gate/internal/credential"
	"github.com/bigkaa/goartstore/media-gate/internal/database"
	"github.com/bigkaa/goartstore/media-gate/internal/domain/media"
	"github.com/bigkaa/goartstore/media-gate/internal/repository"
	"github.com/bigkaa/goartstore/media-gate/internal/server"
	"github.com/bigkaa/goartstore/media-gate/internal/service"
	"github.com/bigkaa/goartstore/media-gate/internal/storage"
	"github.com/bigkaa/goartstore/media-gate/internal/storage/filestore"
	"github.com/bigkaa/goartstore/media-gate/internal/storage/s3store"
)

func main() {
	// 1. Загрузка конфигурации (.env + переменные окружения)
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Media Gate запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("media_store", cfg.MediaStore),
		slog.String("malformed_range_policy", cfg.MalformedRangePolicy),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Хранилище медиафайлов
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка открытия хранилища медиафайлов", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStore()

	// 6. Выпуск и проверка токенов
	tokens, err := credential.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("Ошибка создания менеджера токенов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 7. Repositories и services
	userRepo := repository.NewUserRepository(pool)
	userCache := service.NewUserCache(cfg.UserCacheSize, cfg.UserCacheTTL)

	authSvc := service.NewAuthService(userRepo, tokens, userCache, logger)
	catalogSvc := service.NewCatalogService(store, media.Default, logger)
	streamSvc := service.NewStreamService(store, media.Default,
		cfg.MalformedRangePolicy, cfg.StreamChunkSize, logger)

	// 8. Health handler (PostgreSQL + хранилище)
	healthHandler := handlers.NewHealthHandler(
		database.NewReadinessChecker(pool),
		storage.NewReadinessChecker(store),
	)

	// 9. API handler и AccessGate
	apiHandler := handlers.NewAPIHandler(
		healthHandler,
		catalogSvc,
		streamSvc,
		authSvc,
		handlers.CookieConfig{
			Name:   cfg.CookieName,
			Secure: cfg.CookieSecure,
			TTL:    cfg.JWTTTL,
		},
		logger,
	)
	gate := middleware.NewAccessGate(tokens, cfg.CookieName, logger)

	// 10. topologymetrics — мониторинг зависимостей (PostgreSQL)
	var dephealthSvc *service.DephealthService
	dephealthSvc, dephealthErr := service.NewDephealthService(
		"media-gate",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.DephealthCheckInterval,
		logger,
	)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics",
			slog.String("error", startErr.Error()),
		)
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 11. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, gate)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 12. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Media Gate остановлен")
}

// openStore открывает хранилище по MS_MEDIA_STORE.
// Возвращает функцию освобождения ресурсов.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	switch cfg.MediaStore {
	case config.StoreS3:
		store, err := s3store.New(ctx, s3store.Options{
			Endpoint:  cfg.S3Endpoint,
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Хранилище медиафайлов: S3",
			slog.String("endpoint", cfg.S3Endpoint),
			slog.String("bucket", cfg.S3Bucket),
			slog.String("prefix", cfg.S3Prefix),
		)
		return store, func() {}, nil

	default:
		store, err := filestore.New(cfg.MediaDir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Хранилище медиафайлов: локальная директория",
			slog.String("dir", store.DataDir()),
		)
		return store, func() { _ = store.Close() }, nil
	}
}
