package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/bigkaa/goartstore/media-gate/internal/config"
	"github.com/bigkaa/goartstore/media-gate/internal/domain/media"
	"github.com/bigkaa/goartstore/media-gate/internal/storage"
)

// newTestStreamService создаёт StreamService с маленьким чанком,
// чтобы копирование проходило в несколько итераций.
func newTestStreamService(store storage.Store, policy string) *StreamService {
	return NewStreamService(store, media.Default, policy, 7, testLogger())
}

func serve(t *testing.T, svc *StreamService, method, name, rangeHeader string) (*httptest.ResponseRecorder, error) {
	t.Helper()
	req := httptest.NewRequest(method, "/api/media/"+name, nil)
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	rec := httptest.NewRecorder()
	err := svc.Serve(rec, req, name)
	return rec, err
}

func TestServe_FullBody(t *testing.T) {
	store := newFakeStore()
	data := testData(500)
	store.put("movie.mp4", data)
	svc := newTestStreamService(store, config.RangePolicyFull)

	rec, err := serve(t, svc, http.MethodGet, "movie.mp4", "")
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}

	if rec.Code != http.StatusOK {
		t.Errorf("статус = %d, ожидался 200", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "500" {
		t.Errorf("Content-Length = %q, ожидалось 500", got)
	}
	if got := rec.Header().Get("Content-Type"); got != "video/mp4" {
		t.Errorf("Content-Type = %q", got)
	}
	if got := rec.Header().Get("Accept-Ranges"); got != "bytes" {
		t.Errorf("Accept-Ranges = %q", got)
	}
	if got := rec.Header().Get("Content-Range"); got != "" {
		t.Errorf("Content-Range для полного ответа: %q", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("тело ответа не совпадает с файлом")
	}
	if store.leaked() != 0 {
		t.Errorf("незакрытых источников: %d", store.leaked())
	}
}

// TestServe_AllWindows проверяет 206 для всех окон 0 ≤ start ≤ end < size.
func TestServe_AllWindows(t *testing.T) {
	const size = 24
	store := newFakeStore()
	data := testData(size)
	store.put("clip.webm", data)
	svc := newTestStreamService(store, config.RangePolicyFull)

	for start := 0; start < size; start++ {
		for end := start; end < size; end++ {
			rec, err := serve(t, svc, http.MethodGet, "clip.webm", fmt.Sprintf("bytes=%d-%d", start, end))
			if err != nil {
				t.Fatalf("Serve(%d-%d): %v", start, end, err)
			}
			if rec.Code != http.StatusPartialContent {
				t.Fatalf("Serve(%d-%d): статус %d", start, end, rec.Code)
			}
			wantRange := fmt.Sprintf("bytes %d-%d/%d", start, end, size)
			if got := rec.Header().Get("Content-Range"); got != wantRange {
				t.Fatalf("Content-Range = %q, ожидалось %q", got, wantRange)
			}
			if got := rec.Header().Get("Content-Length"); got != strconv.Itoa(end-start+1) {
				t.Fatalf("Content-Length = %q для %d-%d", got, start, end)
			}
			if !bytes.Equal(rec.Body.Bytes(), data[start:end+1]) {
				t.Fatalf("тело не совпадает для %d-%d", start, end)
			}
		}
	}

	if store.leaked() != 0 {
		t.Errorf("незакрытых источников: %d", store.leaked())
	}
}

func TestServe_SuffixRange(t *testing.T) {
	const size = 50
	store := newFakeStore()
	data := testData(size)
	store.put("song.mp3", data)
	svc := newTestStreamService(store, config.RangePolicyFull)

	for n := 1; n <= size; n++ {
		rec, err := serve(t, svc, http.MethodGet, "song.mp3", fmt.Sprintf("bytes=-%d", n))
		if err != nil {
			t.Fatalf("Serve(-%d): %v", n, err)
		}
		if rec.Code != http.StatusPartialContent {
			t.Fatalf("Serve(-%d): статус %d", n, rec.Code)
		}
		if !bytes.Equal(rec.Body.Bytes(), data[size-n:]) {
			t.Fatalf("Serve(-%d): тело не совпадает с последними %d байтами", n, n)
		}
	}

	rec, err := serve(t, svc, http.MethodGet, "song.mp3", "bytes=-1000")
	if err != nil {
		t.Fatal(err)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-49/50" {
		t.Errorf("суффикс длиннее файла: Content-Range = %q", got)
	}
}

func TestServe_ClampsEnd(t *testing.T) {
	store := newFakeStore()
	data := testData(500)
	store.put("movie.mp4", data)
	svc := newTestStreamService(store, config.RangePolicyFull)

	rec, err := serve(t, svc, http.MethodGet, "movie.mp4", "bytes=0-999999")
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if rec.Code != http.StatusPartialContent {
		t.Errorf("статус = %d, ожидался 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Range"); got != "bytes 0-499/500" {
		t.Errorf("Content-Range = %q, ожидалось bytes 0-499/500", got)
	}
	if got := rec.Header().Get("Content-Length"); got != "500" {
		t.Errorf("Content-Length = %q, ожидалось 500", got)
	}
	if !bytes.Equal(rec.Body.Bytes(), data) {
		t.Error("тело не совпадает")
	}
}

var malformedRanges = []string{
	"bytes=200-100",
	"bytes=0-10,20-30",
	"items=0-10",
	"bytes=abc-",
	"garbage",
}

func TestServe_MalformedRange_FullPolicy(t *testing.T) {
	store := newFakeStore()
	data := testData(300)
	store.put("movie.mp4", data)
	svc := newTestStreamService(store, config.RangePolicyFull)

	for _, header := range malformedRanges {
		rec, err := serve(t, svc, http.MethodGet, "movie.mp4", header)
		if err != nil {
			t.Fatalf("Serve(%q): %v", header, err)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("Serve(%q): статус %d, ожидался 200", header, rec.Code)
		}
		if !bytes.Equal(rec.Body.Bytes(), data) {
			t.Errorf("Serve(%q): ожидался весь файл", header)
		}
	}
}

func TestServe_MalformedRange_RejectPolicy(t *testing.T) {
	store := newFakeStore()
	store.put("movie.mp4", testData(300))
	svc := newTestStreamService(store, config.RangePolicyReject)

	for _, header := range malformedRanges {
		rec, err := serve(t, svc, http.MethodGet, "movie.mp4", header)

		var rangeErr *RangeNotSatisfiableError
		if !errors.As(err, &rangeErr) {
			t.Fatalf("Serve(%q): ожидалась RangeNotSatisfiableError, получено %v", header, err)
		}
		if rangeErr.Size != 300 || !errors.Is(err, ErrMalformedRange) {
			t.Errorf("Serve(%q): неожиданная ошибка %+v", header, rangeErr)
		}
		if rec.Body.Len() != 0 {
			t.Errorf("Serve(%q): тело не должно записываться", header)
		}
	}
	if store.opens.Load() != 0 {
		t.Errorf("источник открыт %d раз, ожидалось 0", store.opens.Load())
	}
}

func TestServe_UnsatisfiableRange(t *testing.T) {
	for _, policy := range []string{config.RangePolicyFull, config.RangePolicyReject} {
		t.Run(policy, func(t *testing.T) {
			store := newFakeStore()
			store.put("movie.mp4", testData(500))
			svc := newTestStreamService(store, policy)

			_, err := serve(t, svc, http.MethodGet, "movie.mp4", "bytes=500-600")

			var rangeErr *RangeNotSatisfiableError
			if !errors.As(err, &rangeErr) || !errors.Is(err, ErrRangeNotSatisfiable) {
				t.Fatalf("ожидалась ErrRangeNotSatisfiable, получено %v", err)
			}
			if rangeErr.Size != 500 {
				t.Errorf("Size = %d, ожидалось 500", rangeErr.Size)
			}
		})
	}
}

func TestServe_NotFoundDoesNotOpenSource(t *testing.T) {
	store := newFakeStore()
	svc := newTestStreamService(store, config.RangePolicyFull)

	for _, name := range []string{"missing.mp4", "../secret.mp4", ".hidden.mp4", "notes.txt", ""} {
		_, err := serve(t, svc, http.MethodGet, name, "bytes=0-10")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("Serve(%q): ожидалась ErrNotFound, получено %v", name, err)
		}
	}

	if store.opens.Load() != 0 {
		t.Errorf("источник открыт %d раз, ожидалось 0", store.opens.Load())
	}
	// Недопустимые имена не доходят до хранилища
	if store.statCalls.Load() != 1 {
		t.Errorf("Stat вызван %d раз, ожидался 1", store.statCalls.Load())
	}
}

func TestServe_StoreUnavailable(t *testing.T) {
	store := newFakeStore()
	store.put("movie.mp4", testData(10))
	store.statErrs["movie.mp4"] = fmt.Errorf("%w: диск отключён", storage.ErrUnavailable)
	svc := newTestStreamService(store, config.RangePolicyFull)

	if _, err := serve(t, svc, http.MethodGet, "movie.mp4", ""); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("ожидалась ErrStoreUnavailable, получено %v", err)
	}
}

func TestServe_Head(t *testing.T) {
	store := newFakeStore()
	store.put("movie.mp4", testData(500))
	svc := newTestStreamService(store, config.RangePolicyFull)

	rec, err := serve(t, svc, http.MethodHead, "movie.mp4", "bytes=100-199")
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if rec.Code != http.StatusPartialContent {
		t.Errorf("статус = %d, ожидался 206", rec.Code)
	}
	if got := rec.Header().Get("Content-Length"); got != "100" {
		t.Errorf("Content-Length = %q, ожидалось 100", got)
	}
	if rec.Body.Len() != 0 {
		t.Error("HEAD не должен содержать тело")
	}
	if store.opens.Load() != 0 {
		t.Error("HEAD не должен открывать источник")
	}
}

func TestServe_EmptyFile(t *testing.T) {
	store := newFakeStore()
	store.put("empty.mp4", nil)
	svc := newTestStreamService(store, config.RangePolicyFull)

	rec, err := serve(t, svc, http.MethodGet, "empty.mp4", "")
	if err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Length") != "0" {
		t.Errorf("статус %d, Content-Length %q", rec.Code, rec.Header().Get("Content-Length"))
	}

	if _, err := serve(t, svc, http.MethodGet, "empty.mp4", "bytes=0-"); !errors.Is(err, ErrRangeNotSatisfiable) {
		t.Errorf("Range на пустом файле: ожидалась ErrRangeNotSatisfiable, получено %v", err)
	}
}

func TestServe_TruncatedSourceClosesHandle(t *testing.T) {
	store := newFakeStore()
	store.put("movie.mp4", testData(100))
	store.sizes["movie.mp4"] = 200
	svc := newTestStreamService(store, config.RangePolicyFull)

	rec, err := serve(t, svc, http.MethodGet, "movie.mp4", "")
	if err != nil {
		t.Fatalf("после начала ответа ошибка не возвращается: %v", err)
	}
	if rec.Body.Len() != 100 {
		t.Errorf("передано %d байт, ожидалось 100", rec.Body.Len())
	}
	if store.leaked() != 0 {
		t.Errorf("незакрытых источников: %d", store.leaked())
	}
}

// brokenWriter имитирует клиента, отключившегося после нескольких чанков.
type brokenWriter struct {
	header    http.Header
	status    int
	writes    int
	failAfter int
}

func (w *brokenWriter) Header() http.Header { return w.header }

func (w *brokenWriter) WriteHeader(status int) { w.status = status }

func (w *brokenWriter) Write(p []byte) (int, error) {
	if w.writes >= w.failAfter {
		return 0, errors.New("broken pipe")
	}
	w.writes++
	return len(p), nil
}

// TestServe_ConcurrentAbortsReleaseHandles проверяет, что прерванные
// потоки закрывают источник.
func TestServe_ConcurrentAbortsReleaseHandles(t *testing.T) {
	const streams = 50

	store := newFakeStore()
	store.put("movie.mp4", testData(10_000))
	svc := newTestStreamService(store, config.RangePolicyFull)

	var wg sync.WaitGroup
	for i := range streams {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodGet, "/api/media/movie.mp4", nil)
			ctx, cancel := context.WithCancel(req.Context())
			defer cancel()

			var w http.ResponseWriter
			if i%2 == 0 {
				w = &brokenWriter{header: http.Header{}, failAfter: i % 5}
			} else {
				// Клиент ушёл до начала копирования
				cancel()
				w = httptest.NewRecorder()
			}

			if err := svc.Serve(w, req.WithContext(ctx), "movie.mp4"); err != nil {
				t.Errorf("Serve: %v", err)
			}
		}()
	}
	wg.Wait()

	if store.opens.Load() != streams {
		t.Errorf("открыто %d источников, ожидалось %d", store.opens.Load(), streams)
	}
	if store.leaked() != 0 {
		t.Errorf("незакрытых источников: %d", store.leaked())
	}
}

func TestCopyChunks_StopsOnCanceledContext(t *testing.T) {
	store := newFakeStore()
	store.put("movie.mp4", testData(1000))
	svc := newTestStreamService(store, config.RangePolicyFull)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc, err := store.Open(ctx, "movie.mp4", 0, 1000)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()

	var buf bytes.Buffer
	written, err := svc.copyChunks(ctx, &buf, &io.LimitedReader{R: rc, N: 1000})
	if !errors.Is(err, ErrStreamAborted) || !errors.Is(err, context.Canceled) {
		t.Fatalf("ожидалась ErrStreamAborted(context.Canceled), получено %v", err)
	}
	if written != 0 {
		t.Errorf("записано %d байт после отмены", written)
	}
}

func TestPrepare(t *testing.T) {
	store := newFakeStore()
	store.put("track.ogg", testData(100))
	svc := newTestStreamService(store, config.RangePolicyFull)

	st, err := svc.Prepare(context.Background(), "track.ogg", "bytes=10-19")
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if st.Status != http.StatusPartialContent || st.Window != (ByteRange{10, 19}) || st.Size != 100 {
		t.Errorf("неожиданный план: %+v", st)
	}
	if st.ContentType != "video/ogg" {
		t.Errorf("ContentType = %q, ожидалось video/ogg", st.ContentType)
	}
	if !st.ModTime.Equal(testModTime) {
		t.Errorf("ModTime = %v", st.ModTime)
	}
	if store.opens.Load() != 0 {
		t.Error("Prepare не должен открывать источник")
	}

	h := http.Header{}
	st.SetHeaders(h)
	if h.Get("Content-Range") != "bytes 10-19/100" || h.Get("Content-Length") != "10" {
		t.Errorf("заголовки: %v", h)
	}
	if h.Get("Last-Modified") != "Wed, 01 May 2024 12:00:00 GMT" {
		t.Errorf("Last-Modified = %q", h.Get("Last-Modified"))
	}
}
