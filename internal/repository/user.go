package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/media-gate/internal/domain/model"
)

// userColumns — список столбцов таблицы users для SELECT-запросов.
const userColumns = `id, email, username, password_hash, first_name, last_name,
	is_active, email_verified, created_at, updated_at, last_login_at`

// UserRepository — интерфейс доступа к учётным записям.
type UserRepository interface {
	// GetByLogin ищет пользователя по email (без учёта регистра) или username.
	GetByLogin(ctx context.Context, login string) (*model.User, error)
	// GetByID возвращает пользователя по UUID.
	GetByID(ctx context.Context, id string) (*model.User, error)
	// Create добавляет пользователя. Пустой ID заполняется новым UUID.
	Create(ctx context.Context, user *model.User) error
	// TouchLastLogin фиксирует время успешного входа.
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}

// userRepo — реализация UserRepository через pgx.
type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

// GetByLogin ищет пользователя по email или username.
func (r *userRepo) GetByLogin(ctx context.Context, login string) (*model.User, error) {
	query := fmt.Sprintf(
		`SELECT %s FROM users WHERE LOWER(email) = LOWER($1) OR username = $1 LIMIT 1`,
		userColumns,
	)
	return r.scanOne(r.db.QueryRow(ctx, query, strings.TrimSpace(login)))
}

// GetByID возвращает пользователя по UUID или ErrNotFound.
func (r *userRepo) GetByID(ctx context.Context, id string) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = $1`, userColumns)
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// Create добавляет пользователя. Email приводится к нижнему регистру.
// CreatedAt/UpdatedAt заполняются значениями из БД.
func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	err := r.db.QueryRow(ctx,
		`INSERT INTO users (id, email, username, password_hash, first_name, last_name,
			is_active, email_verified)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		user.ID, user.Email, user.Username, user.PasswordHash, user.FirstName, user.LastName,
		user.IsActive, user.EmailVerified,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка создания пользователя: %w", err)
	}
	return nil
}

// TouchLastLogin обновляет last_login_at.
func (r *userRepo) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET last_login_at = $2, updated_at = NOW() WHERE id = $1`,
		id, at,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления last_login_at: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepo) scanOne(row pgx.Row) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Email, &u.Username, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.IsActive, &u.EmailVerified, &u.CreatedAt, &u.UpdatedAt, &u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return u, nil
}
