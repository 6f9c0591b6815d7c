package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bigkaa/goartstore/media-gate/internal/domain/media"
	"github.com/bigkaa/goartstore/media-gate/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gate/internal/service"
)

func TestListMedia(t *testing.T) {
	modified := time.Date(2024, 5, 1, 15, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	catalog := &fakeCatalog{items: []model.MediaDescriptor{
		{Name: "b.mp4", Kind: media.KindVideo, Size: 500, ModifiedAt: modified},
		{Name: "a.mp3", Kind: media.KindAudio, Size: 42, ModifiedAt: modified},
	}}
	h := newTestHandler(catalog, nil, nil)

	rec := httptest.NewRecorder()
	h.ListMedia(rec, httptest.NewRequest(http.MethodGet, "/api/media", http.NoBody))

	if rec.Code != http.StatusOK {
		t.Fatalf("статус = %d", rec.Code)
	}
	var items []mediaItem
	if err := json.NewDecoder(rec.Body).Decode(&items); err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("ожидалось 2 элемента, получено %d", len(items))
	}

	want := mediaItem{ID: "b.mp4", Name: "b.mp4", Type: "video", Size: 500, Modified: "2024-05-01T12:00:00Z"}
	if items[0] != want {
		t.Errorf("items[0] = %+v, ожидалось %+v", items[0], want)
	}
	if items[1].Name != "a.mp3" || items[1].Type != "audio" {
		t.Errorf("порядок или тип нарушен: %+v", items[1])
	}
}

func TestListMedia_Empty(t *testing.T) {
	h := newTestHandler(&fakeCatalog{}, nil, nil)

	rec := httptest.NewRecorder()
	h.ListMedia(rec, httptest.NewRequest(http.MethodGet, "/api/media", http.NoBody))

	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("тело = %q, ожидалось []", got)
	}
}

func TestListMedia_StoreUnavailable(t *testing.T) {
	h := newTestHandler(&fakeCatalog{err: service.ErrStoreUnavailable}, nil, nil)

	rec := httptest.NewRecorder()
	h.ListMedia(rec, httptest.NewRequest(http.MethodGet, "/api/media", http.NoBody))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("статус = %d, ожидался 500", rec.Code)
	}
	if code := errorCode(t, rec); code != "INTERNAL_ERROR" {
		t.Errorf("код = %q", code)
	}
}

// streamRouter подключает StreamMedia к chi, чтобы работал URLParam.
func streamRouter(h *APIHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/media/{filename}", h.StreamMedia)
	r.Head("/api/media/{filename}", h.StreamMedia)
	return r
}

func TestStreamMedia_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"не найден", service.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{
			"диапазон",
			&service.RangeNotSatisfiableError{Size: 500, Reason: service.ErrRangeNotSatisfiable},
			http.StatusRequestedRangeNotSatisfiable, "INVALID_RANGE",
		},
		{"хранилище", service.ErrStoreUnavailable, http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"прочее", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestHandler(nil, &fakeStreamer{err: tt.err}, nil)

			rec := httptest.NewRecorder()
			streamRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/media/a.mp4", http.NoBody))

			if rec.Code != tt.wantStatus {
				t.Fatalf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusRequestedRangeNotSatisfiable {
				if got := rec.Header().Get("Content-Range"); got != "bytes */500" {
					t.Errorf("Content-Range = %q", got)
				}
			}
			if code := errorCode(t, rec); code != tt.wantCode {
				t.Errorf("код = %q, ожидался %q", code, tt.wantCode)
			}
			if strings.Contains(rec.Body.String(), "boom") {
				t.Error("детали внутренней ошибки попали в ответ")
			}
		})
	}
}

func TestStreamMedia_FilenameDecoding(t *testing.T) {
	tests := []struct {
		target string
		want   string
	}{
		{"/api/media/movie.mp4", "movie.mp4"},
		{"/api/media/My%20Song.mp3", "My Song.mp3"},
		{"/api/media/%D0%BF%D0%B5%D1%81%D0%BD%D1%8F.mp3", "песня.mp3"},
		// Экранированный разделитель доходит до сервиса как есть и отклоняется там
		{"/api/media/..%2Fsecret.mp4", "../secret.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			streamer := &fakeStreamer{}
			h := newTestHandler(nil, streamer, nil)

			rec := httptest.NewRecorder()
			streamRouter(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, http.NoBody))

			if streamer.gotName != tt.want {
				t.Errorf("имя = %q, ожидалось %q", streamer.gotName, tt.want)
			}
		})
	}
}
