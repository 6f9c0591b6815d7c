// handler.go — основной обработчик API Media Gate.
// Объединяет health, каталог, streaming и учётные записи.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/bigkaa/goartstore/media-gate/internal/credential"
	"github.com/bigkaa/goartstore/media-gate/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gate/internal/service"
)

// Catalog — перечисление медиафайлов.
type Catalog interface {
	List(ctx context.Context) ([]model.MediaDescriptor, error)
}

// Streamer — отдача медиафайла с поддержкой Range.
type Streamer interface {
	Serve(w http.ResponseWriter, r *http.Request, name string) error
}

// Accounts — вход и проверка сессии.
type Accounts interface {
	Login(ctx context.Context, login, password string) (*service.LoginResult, error)
	Verify(ctx context.Context, identity *credential.Identity) (*model.User, error)
}

// CookieConfig — параметры cookie с токеном доступа.
type CookieConfig struct {
	Name   string
	Secure bool
	TTL    time.Duration
}

// APIHandler — основной обработчик API.
type APIHandler struct {
	health   *HealthHandler
	catalog  Catalog
	streamer Streamer
	accounts Accounts
	cookie   CookieConfig
	logger   *slog.Logger
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	catalog Catalog,
	streamer Streamer,
	accounts Accounts,
	cookie CookieConfig,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		catalog:  catalog,
		streamer: streamer,
		accounts: accounts,
		cookie:   cookie,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
