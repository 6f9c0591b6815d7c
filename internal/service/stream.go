// stream.go — потоковая отдача медиафайлов с поддержкой HTTP Range.
// Разрешает имя в хранилище, вычисляет окно по заголовку Range и размеру,
// прочитанному в момент запроса, и копирует окно клиенту чанками.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/media-gate/internal/config"
	"github.com/bigkaa/goartstore/media-gate/internal/domain/media"
	"github.com/bigkaa/goartstore/media-gate/internal/storage"
)

// ErrStreamAborted — клиент отключился или запись в соединение не удалась.
// Не возвращается клиенту: ответ уже начат.
var ErrStreamAborted = errors.New("streaming прерван")

// Prometheus-метрики streaming.
var (
	streamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ms_streams_total",
		Help: "Общее количество запросов streaming (по результату).",
	}, []string{"result"})

	streamBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_stream_bytes_total",
		Help: "Общее количество переданных байт медиафайлов.",
	})

	streamDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ms_stream_duration_seconds",
		Help:    "Длительность streaming (от запроса до завершения копирования).",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 60, 300, 1800},
	})

	activeStreams = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ms_active_streams",
		Help: "Количество активных потоков.",
	})
)

// RangeNotSatisfiableError — ответ 416. Size — текущий размер ресурса
// для заголовка Content-Range: bytes */Size.
type RangeNotSatisfiableError struct {
	Size int64
	// Reason — ErrRangeNotSatisfiable или ErrMalformedRange (политика reject)
	Reason error
}

func (e *RangeNotSatisfiableError) Error() string {
	return fmt.Sprintf("диапазон не может быть удовлетворён (размер %d): %v", e.Size, e.Reason)
}

func (e *RangeNotSatisfiableError) Unwrap() error {
	return e.Reason
}

// Stream — план ответа на запрос медиафайла: статус, заголовки и окно.
// Источник байт открывается только при отдаче тела.
type Stream struct {
	Name        string
	ContentType string
	// Status — 200 (весь файл) или 206 (окно)
	Status int
	// Size — полный размер ресурса на момент запроса
	Size    int64
	Window  ByteRange
	ModTime time.Time
}

// Partial сообщает, что отдаётся окно (206).
func (s *Stream) Partial() bool {
	return s.Status == http.StatusPartialContent
}

// SetHeaders выставляет заголовки ответа.
func (s *Stream) SetHeaders(h http.Header) {
	h.Set("Content-Type", s.ContentType)
	h.Set("Content-Length", strconv.FormatInt(s.Window.Length(), 10))
	h.Set("Accept-Ranges", "bytes")
	if !s.ModTime.IsZero() {
		h.Set("Last-Modified", s.ModTime.UTC().Format(http.TimeFormat))
	}
	if s.Partial() {
		h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", s.Window.Start, s.Window.End, s.Size))
	}
}

// StreamService — отдача медиафайлов с поддержкой Range.
type StreamService struct {
	store          storage.Store
	table          *media.Table
	rejectBadRange bool
	chunkSize      int
	logger         *slog.Logger
}

// NewStreamService создаёт сервис streaming.
// rangePolicy — config.RangePolicyFull или config.RangePolicyReject.
// chunkSize — размер буфера одной итерации копирования.
func NewStreamService(
	store storage.Store,
	table *media.Table,
	rangePolicy string,
	chunkSize int,
	logger *slog.Logger,
) *StreamService {
	if chunkSize <= 0 {
		chunkSize = 64 * 1024
	}
	return &StreamService{
		store:          store,
		table:          table,
		rejectBadRange: rangePolicy == config.RangePolicyReject,
		chunkSize:      chunkSize,
		logger:         logger.With(slog.String("component", "stream_service")),
	}
}

// Prepare разрешает имя и вычисляет план ответа без открытия источника.
//
// Ошибки: ErrNotFound (имя недопустимо или файла нет), ErrStoreUnavailable,
// *RangeNotSatisfiableError (416).
func (s *StreamService) Prepare(ctx context.Context, name, rangeHeader string) (*Stream, error) {
	if err := s.table.ValidateName(name); err != nil {
		return nil, ErrNotFound
	}

	entry, err := s.store.Stat(ctx, name)
	if err != nil {
		return nil, s.storeError(name, err)
	}

	st := &Stream{
		Name:        name,
		ContentType: s.table.ContentType(name),
		Status:      http.StatusOK,
		Size:        entry.Size,
		Window:      fullRange(entry.Size),
		ModTime:     entry.ModTime,
	}

	if rangeHeader == "" {
		return st, nil
	}

	window, err := ParseRange(rangeHeader, entry.Size)
	switch {
	case err == nil:
		st.Status = http.StatusPartialContent
		st.Window = window
	case errors.Is(err, ErrMalformedRange) && !s.rejectBadRange:
		s.logger.Debug("Некорректный Range, отдаётся весь файл",
			slog.String("name", name),
			slog.String("range", rangeHeader),
		)
	default:
		return nil, &RangeNotSatisfiableError{Size: entry.Size, Reason: err}
	}

	return st, nil
}

// Serve отвечает на GET/HEAD запрос медиафайла.
//
// Ошибки до начала ответа возвращаются вызывающему коду (ErrNotFound,
// ErrStoreUnavailable, *RangeNotSatisfiableError) для записи ответа об ошибке.
// После отправки заголовков ошибки только логируются и учитываются в метриках;
// обрыв соединения клиентом — ErrStreamAborted, уровень debug.
// Источник закрывается при любом исходе.
func (s *StreamService) Serve(w http.ResponseWriter, r *http.Request, name string) error {
	ctx := r.Context()
	start := time.Now()
	activeStreams.Inc()
	defer activeStreams.Dec()

	st, err := s.Prepare(ctx, name, r.Header.Get("Range"))
	if err != nil {
		streamsTotal.WithLabelValues(resultLabel(err)).Inc()
		return err
	}

	var body io.ReadCloser
	if r.Method != http.MethodHead && st.Window.Length() > 0 {
		body, err = s.store.Open(ctx, name, st.Window.Start, st.Window.Length())
		if err != nil {
			err = s.storeError(name, err)
			streamsTotal.WithLabelValues(resultLabel(err)).Inc()
			return err
		}
		defer body.Close()
	}

	st.SetHeaders(w.Header())
	w.WriteHeader(st.Status)

	if body == nil {
		streamsTotal.WithLabelValues(outcomeLabel(st)).Inc()
		return nil
	}

	written, err := s.copyChunks(ctx, w, &io.LimitedReader{R: body, N: st.Window.Length()})
	streamBytesTotal.Add(float64(written))

	switch {
	case errors.Is(err, ErrStreamAborted):
		streamsTotal.WithLabelValues("aborted").Inc()
		s.logger.Debug("Streaming прерван клиентом",
			slog.String("name", name),
			slog.Int64("bytes_written", written),
			slog.Int64("bytes_expected", st.Window.Length()),
		)
		return nil
	case err != nil:
		streamsTotal.WithLabelValues("error").Inc()
		s.logger.Error("Ошибка чтения медиафайла во время streaming",
			slog.String("name", name),
			slog.Int64("bytes_written", written),
			slog.String("error", err.Error()),
		)
		return nil
	}

	duration := time.Since(start)
	streamsTotal.WithLabelValues(outcomeLabel(st)).Inc()
	streamDuration.Observe(duration.Seconds())

	s.logger.Debug("Streaming завершён",
		slog.String("name", name),
		slog.Int("status", st.Status),
		slog.Int64("bytes", written),
		slog.Duration("duration", duration),
	)

	return nil
}

// copyChunks копирует src в w чанками размера chunkSize.
// Перед каждым чанком проверяется контекст запроса; ошибка записи
// или отмена контекста — ErrStreamAborted. Источник, отдавший меньше
// заявленного окна (файл усечён), — io.ErrUnexpectedEOF.
func (s *StreamService) copyChunks(ctx context.Context, w io.Writer, src *io.LimitedReader) (int64, error) {
	buf := make([]byte, s.chunkSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			return written, fmt.Errorf("%w: %w", ErrStreamAborted, err)
		}

		n, rerr := src.Read(buf)
		if n > 0 {
			m, werr := w.Write(buf[:n])
			written += int64(m)
			if werr != nil {
				return written, fmt.Errorf("%w: %w", ErrStreamAborted, werr)
			}
		}

		switch {
		case rerr == io.EOF:
			if src.N > 0 {
				return written, io.ErrUnexpectedEOF
			}
			return written, nil
		case rerr != nil:
			return written, rerr
		}
	}
}

// storeError сводит ошибки хранилища к ошибкам сервиса.
func (s *StreamService) storeError(name string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	s.logger.Error("Ошибка хранилища",
		slog.String("name", name),
		slog.String("error", err.Error()),
	)
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func resultLabel(err error) string {
	var rangeErr *RangeNotSatisfiableError
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.As(err, &rangeErr):
		return "invalid_range"
	default:
		return "error"
	}
}

func outcomeLabel(st *Stream) string {
	if st.Partial() {
		return "partial"
	}
	return "full"
}
