// auth.go — AccessGate: проверка токена доступа перед медиа-маршрутами.
// Токен ищется в cookie, затем в заголовке Authorization: Bearer,
// затем (только для маршрутов с AllowQueryToken) в параметре запроса token.
// Проверка — только подпись и срок действия, без обращения к БД.
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	apierrors "github.com/bigkaa/goartstore/media-gate/internal/api/errors"
	"github.com/bigkaa/goartstore/media-gate/internal/credential"
)

// contextKey — тип для ключей контекста (избегаем коллизий).
type contextKey string

// ContextKeyIdentity — личность владельца токена в контексте запроса.
const ContextKeyIdentity contextKey = "identity"

// QueryTokenParam — имя параметра запроса с токеном.
const QueryTokenParam = "token"

// ErrUnauthenticated — токен не передан ни в одном из допустимых мест.
var ErrUnauthenticated = errors.New("требуется аутентификация")

var authRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "ms_auth_rejections_total",
	Help: "Количество запросов, отклонённых AccessGate (по причине).",
}, []string{"reason"})

// Verifier проверяет подпись и срок действия токена.
type Verifier interface {
	Verify(token string) (*credential.Identity, error)
}

// AccessGate — middleware аутентификации по токену доступа.
type AccessGate struct {
	verifier   Verifier
	cookieName string
	logger     *slog.Logger
}

// NewAccessGate создаёт AccessGate.
// cookieName — имя cookie с токеном (MS_COOKIE_NAME).
func NewAccessGate(verifier Verifier, cookieName string, logger *slog.Logger) *AccessGate {
	return &AccessGate{
		verifier:   verifier,
		cookieName: cookieName,
		logger:     logger.With(slog.String("component", "access_gate")),
	}
}

// GateOption — опция маршрута для AccessGate.
type GateOption func(*gateOptions)

type gateOptions struct {
	allowQuery bool
}

// AllowQueryToken разрешает передачу токена в параметре ?token=.
// Нужен медиаэлементам браузера, которые не могут выставить заголовок.
func AllowQueryToken() GateOption {
	return func(o *gateOptions) { o.allowQuery = true }
}

func buildOptions(opts []GateOption) gateOptions {
	var o gateOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Authorize находит и проверяет токен запроса.
// Побеждает первый найденный токен: невалидный cookie не
// «исправляется» валидным заголовком.
//
// Ошибки: ErrUnauthenticated, credential.ErrInvalid, credential.ErrExpired.
func (g *AccessGate) Authorize(r *http.Request, allowQuery bool) (*credential.Identity, error) {
	token := g.discover(r, allowQuery)
	if token == "" {
		return nil, ErrUnauthenticated
	}
	return g.verifier.Verify(token)
}

func (g *AccessGate) discover(r *http.Request, allowQuery bool) string {
	if c, err := r.Cookie(g.cookieName); err == nil && c.Value != "" {
		return c.Value
	}

	if scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " "); ok &&
		strings.EqualFold(scheme, "Bearer") {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}

	if allowQuery {
		return r.URL.Query().Get(QueryTokenParam)
	}
	return ""
}

// Required возвращает middleware, отклоняющий запросы без валидного токена
// ответом 401 с кодом причины.
func (g *AccessGate) Required(opts ...GateOption) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := g.Authorize(r, o.allowQuery)
			if err != nil {
				g.reject(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Optional возвращает middleware, прикрепляющий личность, если токен валиден.
// Любая ошибка проверки игнорируется: запрос продолжается без личности.
func (g *AccessGate) Optional(opts ...GateOption) func(http.Handler) http.Handler {
	o := buildOptions(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := g.Authorize(r, o.allowQuery)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeyIdentity, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g *AccessGate) reject(w http.ResponseWriter, r *http.Request, err error) {
	var code, message, reason string
	switch {
	case errors.Is(err, ErrUnauthenticated):
		code, message, reason = apierrors.CodeUnauthenticated, "Требуется аутентификация", "missing"
	case errors.Is(err, credential.ErrExpired):
		code, message, reason = apierrors.CodeTokenExpired, "Срок действия токена истёк", "expired"
	default:
		code, message, reason = apierrors.CodeInvalidCredential, "Невалидный токен", "invalid"
	}

	authRejectionsTotal.WithLabelValues(reason).Inc()
	g.logger.Debug("Запрос отклонён",
		slog.String("reason", reason),
		slog.String("path", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)
	apierrors.Unauthorized(w, code, message)
}

// IdentityFromContext извлекает личность из контекста запроса.
// Возвращает nil, если запрос не аутентифицирован.
func IdentityFromContext(ctx context.Context) *credential.Identity {
	identity, _ := ctx.Value(ContextKeyIdentity).(*credential.Identity)
	return identity
}
