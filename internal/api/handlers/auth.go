// auth.go — обработчики /api/auth: вход, проверка сессии, выход.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apierrors "github.com/bigkaa/goartstore/media-gate/internal/api/errors"
	"github.com/bigkaa/goartstore/media-gate/internal/api/middleware"
	"github.com/bigkaa/goartstore/media-gate/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gate/internal/service"
)

// maxLoginBody — ограничение размера тела запроса входа.
const maxLoginBody = 64 << 10

// loginRequest — тело POST /api/auth/login.
// Поле email принимает и username; login — синоним.
type loginRequest struct {
	Email    string `json:"email"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success bool             `json:"success"`
	User    model.PublicUser `json:"user"`
	Token   string           `json:"token"`
}

type verifyResponse struct {
	Success bool             `json:"success"`
	User    model.PublicUser `json:"user"`
}

type logoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Login — POST /api/auth/login. Без авторизации.
func (h *APIHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		apierrors.ValidationError(w, "Некорректное тело запроса")
		return
	}

	login := req.Email
	if login == "" {
		login = req.Login
	}

	result, err := h.accounts.Login(r.Context(), login, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrLoginRequired):
			apierrors.ValidationError(w, "Логин и пароль обязательны")
		case errors.Is(err, service.ErrInvalidLogin):
			apierrors.Unauthorized(w, apierrors.CodeInvalidLogin, "Неверный логин или пароль")
		case errors.Is(err, service.ErrAccountDisabled):
			apierrors.Unauthorized(w, apierrors.CodeAccountDisabled, "Учётная запись отключена")
		default:
			h.logger.Error("Ошибка входа", slog.String("error", err.Error()))
			apierrors.InternalError(w, "Внутренняя ошибка при входе")
		}
		return
	}

	http.SetCookie(w, h.tokenCookie(result.Token, int(h.cookie.TTL.Seconds())))
	writeJSON(w, http.StatusOK, loginResponse{
		Success: true,
		User:    result.User.Public(),
		Token:   result.Token,
	})
}

// Verify — GET /api/auth/verify. Авторизация: AccessGate (required).
// Возвращает актуальные данные пользователя из БД.
func (h *APIHandler) Verify(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		apierrors.Unauthorized(w, apierrors.CodeUnauthenticated, "Требуется аутентификация")
		return
	}

	user, err := h.accounts.Verify(r.Context(), identity)
	if err != nil {
		if errors.Is(err, service.ErrUserInvalid) {
			apierrors.Unauthorized(w, apierrors.CodeInvalidCredential, "Пользователь не найден или отключён")
			return
		}
		h.logger.Error("Ошибка проверки сессии",
			slog.String("user_id", identity.SubjectID),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при проверке сессии")
		return
	}

	writeJSON(w, http.StatusOK, verifyResponse{Success: true, User: user.Public()})
}

// Logout — POST /api/auth/logout. Авторизация: AccessGate (optional).
// Токен остаётся валидным до истечения, удаляется только cookie.
func (h *APIHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if identity := middleware.IdentityFromContext(r.Context()); identity != nil {
		h.logger.Info("Выход из системы", slog.String("user_id", identity.SubjectID))
	}

	http.SetCookie(w, h.tokenCookie("", -1))
	writeJSON(w, http.StatusOK, logoutResponse{Success: true, Message: "Выход выполнен"})
}

// tokenCookie формирует cookie с токеном. maxAge < 0 удаляет cookie.
func (h *APIHandler) tokenCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookie.Name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteStrictMode,
	}
}
