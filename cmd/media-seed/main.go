// Утилита media-seed — создание начального администратора Media Gate.
// Применяет миграции и создаёт пользователя из MS_ADMIN_*, если пользователя
// с таким email или username ещё нет. Повторный запуск ничего не меняет.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/bigkaa/goartstore/media-gate/internal/config"
	"github.com/bigkaa/goartstore/media-gate/internal/credential"
	"github.com/bigkaa/goartstore/media-gate/internal/database"
	"github.com/bigkaa/goartstore/media-gate/internal/repository"
	"github.com/bigkaa/goartstore/media-gate/internal/service"
)

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger := config.SetupLogger(cfg)

	if cfg.AdminPassword == "" {
		logger.Error("MS_ADMIN_PASSWORD не задана")
		os.Exit(1)
	}

	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	tokens, err := credential.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("Ошибка создания менеджера токенов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	authSvc := service.NewAuthService(repository.NewUserRepository(pool), tokens, nil, logger)

	user, created, err := authSvc.SeedAdmin(ctx, service.AdminSeed{
		Email:     cfg.AdminEmail,
		Username:  cfg.AdminUsername,
		Password:  cfg.AdminPassword,
		FirstName: cfg.AdminFirstName,
		LastName:  cfg.AdminLastName,
	})
	if err != nil {
		logger.Error("Ошибка создания администратора", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Готово",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
		slog.Bool("created", created),
	)
}
