package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/media-gate/internal/credential"
	"github.com/bigkaa/goartstore/media-gate/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gate/internal/service"
)

// --- Тестовые заглушки сервисного слоя ---

type fakeCatalog struct {
	items []model.MediaDescriptor
	err   error
}

func (c *fakeCatalog) List(context.Context) ([]model.MediaDescriptor, error) {
	return c.items, c.err
}

type fakeStreamer struct {
	err     error
	gotName string
}

func (s *fakeStreamer) Serve(w http.ResponseWriter, _ *http.Request, name string) error {
	s.gotName = name
	if s.err != nil {
		return s.err
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("media"))
	return nil
}

type fakeAccounts struct {
	user      *model.User
	loginErr  error
	verifyErr error

	gotLogin    string
	gotPassword string
}

func (a *fakeAccounts) Login(_ context.Context, login, password string) (*service.LoginResult, error) {
	a.gotLogin, a.gotPassword = login, password
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return &service.LoginResult{User: a.user, Token: "signed-token", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (a *fakeAccounts) Verify(_ context.Context, _ *credential.Identity) (*model.User, error) {
	if a.verifyErr != nil {
		return nil, a.verifyErr
	}
	return a.user, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newTestHandler(catalog Catalog, streamer Streamer, accounts Accounts) *APIHandler {
	return NewAPIHandler(
		NewHealthHandler(nil, nil),
		catalog, streamer, accounts,
		CookieConfig{Name: "token", Secure: true, TTL: 7 * 24 * time.Hour},
		testLogger(),
	)
}

// errorCode декодирует код ошибки из стандартного конверта.
func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("невалидный JSON ответа: %v", err)
	}
	return body.Error.Code
}
