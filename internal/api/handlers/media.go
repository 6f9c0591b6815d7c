// media.go — обработчики GET /api/media и GET|HEAD /api/media/{filename}.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/bigkaa/goartstore/media-gate/internal/api/errors"
	"github.com/bigkaa/goartstore/media-gate/internal/service"
)

// mediaItem — элемент списка каталога. id совпадает с name.
type mediaItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

// ListMedia — GET /api/media. Авторизация: AccessGate (required).
func (h *APIHandler) ListMedia(w http.ResponseWriter, r *http.Request) {
	descriptors, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения каталога",
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Не удалось получить список медиафайлов")
		return
	}

	items := make([]mediaItem, 0, len(descriptors))
	for _, d := range descriptors {
		items = append(items, mediaItem{
			ID:       d.Name,
			Name:     d.Name,
			Type:     string(d.Kind),
			Size:     d.Size,
			Modified: d.ModifiedAt.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, items)
}

// StreamMedia — GET|HEAD /api/media/{filename}.
// Авторизация: AccessGate (required, токен в query разрешён).
func (h *APIHandler) StreamMedia(w http.ResponseWriter, r *http.Request) {
	name, ok := filenameParam(r)
	if !ok {
		apierrors.NotFound(w, "Медиафайл не найден")
		return
	}

	err := h.streamer.Serve(w, r, name)
	if err == nil {
		return
	}

	var rangeErr *service.RangeNotSatisfiableError
	switch {
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, "Медиафайл не найден")
	case errors.As(err, &rangeErr):
		apierrors.RangeNotSatisfiable(w, rangeErr.Size, "Запрошенный диапазон не может быть удовлетворён")
	default:
		h.logger.Error("Ошибка отдачи медиафайла",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Внутренняя ошибка при чтении медиафайла")
	}
}

// filenameParam извлекает имя файла из пути.
// chi отдаёт экранированный сегмент, если в пути были %-последовательности.
func filenameParam(r *http.Request) (string, bool) {
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath == "" {
		return name, name != ""
	}
	unescaped, err := url.PathUnescape(name)
	if err != nil || unescaped == "" {
		return "", false
	}
	return unescaped, true
}
