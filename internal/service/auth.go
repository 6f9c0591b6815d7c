// auth.go — вход по паролю, проверка сессии и создание администратора.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/goartstore/media-gate/internal/credential"
	"github.com/bigkaa/goartstore/media-gate/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gate/internal/repository"
)

// Ошибки аутентификации.
var (
	// ErrLoginRequired — не передан логин или пароль.
	ErrLoginRequired = errors.New("логин и пароль обязательны")
	// ErrInvalidLogin — пользователь не найден или пароль неверен (не различаются).
	ErrInvalidLogin = errors.New("неверный логин или пароль")
	// ErrAccountDisabled — учётная запись отключена.
	ErrAccountDisabled = errors.New("учётная запись отключена")
	// ErrUserInvalid — владелец токена удалён или отключён.
	ErrUserInvalid = errors.New("пользователь не найден или неактивен")
)

// Prometheus-метрики аутентификации.
var loginsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ms_auth_logins_total",
	Help: "Общее количество попыток входа (по результату).",
}, []string{"result"})

// TokenIssuer выпускает токены доступа.
type TokenIssuer interface {
	Issue(subjectID, email, username string) (string, time.Time, error)
}

// LoginResult — результат успешного входа.
type LoginResult struct {
	User      *model.User
	Token     string
	ExpiresAt time.Time
}

// AdminSeed — параметры начального администратора.
type AdminSeed struct {
	Email     string
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// AuthService — сервис учётных записей.
type AuthService struct {
	users  repository.UserRepository
	issuer TokenIssuer
	cache  *UserCache
	now    func() time.Time
	logger *slog.Logger
}

// NewAuthService создаёт сервис учётных записей.
// cache может быть nil — тогда Verify всегда читает из БД.
func NewAuthService(
	users repository.UserRepository,
	issuer TokenIssuer,
	cache *UserCache,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		issuer: issuer,
		cache:  cache,
		now:    time.Now,
		logger: logger.With(slog.String("component", "auth_service")),
	}
}

// dummyHash — хэш для сравнения при неизвестном логине,
// чтобы время ответа не выдавало существование пользователя.
var dummyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("media-gate-dummy-password"), bcrypt.DefaultCost)
	if err != nil {
		panic(fmt.Sprintf("bcrypt: %v", err))
	}
	return h
})

// Login проверяет пароль и выпускает токен.
// login — email (без учёта регистра) или username.
func (a *AuthService) Login(ctx context.Context, login, password string) (*LoginResult, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		loginsTotal.WithLabelValues("validation_error").Inc()
		return nil, ErrLoginRequired
	}

	user, err := a.users.GetByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(dummyHash(), []byte(password))
			loginsTotal.WithLabelValues("invalid").Inc()
			return nil, ErrInvalidLogin
		}
		loginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("поиск пользователя: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		loginsTotal.WithLabelValues("invalid").Inc()
		a.logger.Info("Неудачная попытка входа", slog.String("user_id", user.ID))
		return nil, ErrInvalidLogin
	}

	if !user.IsActive {
		loginsTotal.WithLabelValues("disabled").Inc()
		a.logger.Info("Вход в отключённую учётную запись", slog.String("user_id", user.ID))
		return nil, ErrAccountDisabled
	}

	now := a.now()
	if err := a.users.TouchLastLogin(ctx, user.ID, now); err != nil {
		a.logger.Warn("Не удалось обновить время входа",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	} else {
		user.LastLoginAt = &now
	}

	token, expiresAt, err := a.issuer.Issue(user.ID, user.Email, user.Username)
	if err != nil {
		loginsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("выпуск токена: %w", err)
	}

	if a.cache != nil {
		a.cache.Set(user)
	}

	loginsTotal.WithLabelValues("success").Inc()
	a.logger.Info("Успешный вход", slog.String("user_id", user.ID))

	return &LoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Verify возвращает актуальную учётную запись владельца токена.
// Удалённый или отключённый пользователь — ErrUserInvalid.
func (a *AuthService) Verify(ctx context.Context, identity *credential.Identity) (*model.User, error) {
	if identity == nil {
		return nil, ErrUserInvalid
	}

	user, err := a.lookup(ctx, identity.SubjectID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrUserInvalid
	}
	return user, nil
}

func (a *AuthService) lookup(ctx context.Context, id string) (*model.User, error) {
	if a.cache != nil {
		if user, ok := a.cache.Get(id); ok {
			return user, nil
		}
	}

	user, err := a.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserInvalid
		}
		return nil, fmt.Errorf("получение пользователя: %w", err)
	}

	if a.cache != nil {
		a.cache.Set(user)
	}
	return user, nil
}

// SeedAdmin создаёт начального администратора, если пользователя
// с таким email или username ещё нет. Возвращает пользователя и признак создания.
func (a *AuthService) SeedAdmin(ctx context.Context, seed AdminSeed) (*model.User, bool, error) {
	if seed.Email == "" || seed.Username == "" || seed.Password == "" {
		return nil, false, fmt.Errorf("email, username и пароль администратора обязательны")
	}

	for _, login := range []string{seed.Email, seed.Username} {
		existing, err := a.users.GetByLogin(ctx, login)
		if err == nil {
			a.logger.Info("Администратор уже существует",
				slog.String("email", existing.Email),
				slog.String("username", existing.Username),
			)
			return existing, false, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("поиск администратора: %w", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(seed.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("хэширование пароля: %w", err)
	}

	user := &model.User{
		Email:         seed.Email,
		Username:      seed.Username,
		PasswordHash:  string(hash),
		FirstName:     optional(seed.FirstName),
		LastName:      optional(seed.LastName),
		IsActive:      true,
		EmailVerified: true,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, false, fmt.Errorf("создание администратора: %w", err)
	}

	a.logger.Info("Администратор создан",
		slog.String("user_id", user.ID),
		slog.String("email", user.Email),
		slog.String("username", user.Username),
	)
	return user, true, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
