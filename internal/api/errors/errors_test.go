package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("невалидный JSON ответа: %v", err)
	}
	return body
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name       string
		write      func(w http.ResponseWriter)
		wantStatus int
		wantCode   string
	}{
		{"validation", func(w http.ResponseWriter) { ValidationError(w, "x") }, http.StatusBadRequest, CodeValidationError},
		{"unauthenticated", func(w http.ResponseWriter) { Unauthorized(w, CodeUnauthenticated, "x") }, http.StatusUnauthorized, CodeUnauthenticated},
		{"expired", func(w http.ResponseWriter) { Unauthorized(w, CodeTokenExpired, "x") }, http.StatusUnauthorized, CodeTokenExpired},
		{"not found", func(w http.ResponseWriter) { NotFound(w, "x") }, http.StatusNotFound, CodeNotFound},
		{"internal", func(w http.ResponseWriter) { InternalError(w, "x") }, http.StatusInternalServerError, CodeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tt.write(rec)

			if rec.Code != tt.wantStatus {
				t.Errorf("статус = %d, ожидался %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			body := decode(t, rec)
			if body.Error.Code != tt.wantCode || body.Error.Message != "x" {
				t.Errorf("тело = %+v", body)
			}
		})
	}
}

func TestRangeNotSatisfiable(t *testing.T) {
	rec := httptest.NewRecorder()
	RangeNotSatisfiable(rec, 500, "диапазон вне файла")

	if rec.Code != http.StatusRequestedRangeNotSatisfiable {
		t.Fatalf("статус = %d, ожидался 416", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes */500" {
		t.Errorf("Content-Range = %q, ожидалось bytes */500", got)
	}
	if body := decode(t, rec); body.Error.Code != CodeInvalidRange {
		t.Errorf("код = %q", body.Error.Code)
	}
}
