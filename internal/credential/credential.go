// Пакет credential — выпуск и проверка подписанных токенов доступа (HS256).
// Секрет подписи передаётся в конструктор, глобального состояния нет:
// несколько экземпляров Manager с разными ключами изолированы друг от друга.
package credential

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Ошибки проверки токена.
var (
	// ErrInvalid — подпись или формат токена некорректны.
	ErrInvalid = errors.New("невалидный токен")
	// ErrExpired — подпись верна, но срок действия истёк.
	ErrExpired = errors.New("срок действия токена истёк")
)

// Claims — набор claims токена доступа.
// sub — идентификатор пользователя, iat/exp — окно действия.
type Claims struct {
	jwt.RegisteredClaims
	Email    string `json:"email"`
	Username string `json:"username"`
}

// Identity — декодированная личность, прикрепляемая к запросу.
type Identity struct {
	SubjectID string
	Email     string
	Username  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Manager выпускает и проверяет токены одним секретом.
type Manager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewManager создаёт Manager с секретом подписи и сроком действия токенов.
func NewManager(secret []byte, ttl time.Duration) (*Manager, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("секрет подписи не задан")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("срок действия токена должен быть положительным")
	}

	key := make([]byte, len(secret))
	copy(key, secret)

	return &Manager{
		secret: key,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// TTL возвращает срок действия выпускаемых токенов.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue подписывает новый токен для пользователя.
// Возвращает строку токена и момент истечения.
func (m *Manager) Issue(subjectID, email, username string) (string, time.Time, error) {
	if subjectID == "" {
		return "", time.Time{}, fmt.Errorf("пустой subject")
	}

	issuedAt := m.now()
	expiresAt := issuedAt.Add(m.ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Email:    email,
		Username: username,
	})

	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("подпись токена: %w", err)
	}

	// exp хранится с точностью до секунды
	return signed, expiresAt.Truncate(time.Second), nil
}

// Verify проверяет подпись и срок действия токена.
// Подпись проверяется до claims, поэтому подделанный просроченный
// токен классифицируется как ErrInvalid, а не ErrExpired.
func (m *Manager) Verify(tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, m.keyfunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalid
	}

	identity := &Identity{
		SubjectID: claims.Subject,
		Email:     claims.Email,
		Username:  claims.Username,
	}
	if claims.IssuedAt != nil {
		identity.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

func (m *Manager) keyfunc(_ *jwt.Token) (any, error) {
	return m.secret, nil
}
