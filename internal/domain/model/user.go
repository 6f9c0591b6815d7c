package model

import "time"

// User — учётная запись пользователя (таблица users).
type User struct {
	// ID — UUID пользователя, используется как sub токена
	ID string
	// Email — уникальный адрес, хранится в нижнем регистре
	Email string
	// Username — уникальное имя для входа
	Username string
	// PasswordHash — bcrypt-хэш пароля
	PasswordHash string
	FirstName    *string
	LastName     *string
	// IsActive — false блокирует вход и проверку сессии
	IsActive      bool
	EmailVerified bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
	// LastLoginAt — время последнего успешного входа
	LastLoginAt *time.Time
}

// PublicUser — представление пользователя для ответов API (без хэша пароля).
type PublicUser struct {
	ID            string     `json:"id"`
	Email         string     `json:"email"`
	Username      string     `json:"username"`
	FirstName     *string    `json:"firstName,omitempty"`
	LastName      *string    `json:"lastName,omitempty"`
	IsActive      bool       `json:"isActive"`
	EmailVerified bool       `json:"emailVerified"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastLoginAt   *time.Time `json:"lastLoginAt,omitempty"`
}

// Public возвращает представление пользователя без секретных полей.
func (u *User) Public() PublicUser {
	return PublicUser{
		ID:            u.ID,
		Email:         u.Email,
		Username:      u.Username,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		IsActive:      u.IsActive,
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
		LastLoginAt:   u.LastLoginAt,
	}
}
