// catalog.go — листинг каталога медиафайлов.
// Перечисляет плоское хранилище, фильтрует по таблице расширений,
// классифицирует и получает актуальные размер и время изменения.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/bigkaa/goartstore/media-gate/internal/domain/media"
	"github.com/bigkaa/goartstore/media-gate/internal/domain/model"
	"github.com/bigkaa/goartstore/media-gate/internal/storage"
)

// Ошибки сервисного слоя.
var (
	// ErrNotFound — медиафайл не найден.
	ErrNotFound = errors.New("медиафайл не найден")
	// ErrStoreUnavailable — хранилище не ответило; детали только в логах.
	ErrStoreUnavailable = errors.New("хранилище медиафайлов недоступно")
)

// Prometheus-метрики каталога.
var (
	catalogListTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ms_catalog_list_total",
		Help: "Общее количество запросов листинга каталога (по статусу).",
	}, []string{"status"})

	catalogListDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ms_catalog_list_duration_seconds",
		Help:    "Длительность листинга каталога.",
		Buckets: prometheus.DefBuckets,
	})

	catalogEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ms_catalog_entries",
		Help: "Количество медиафайлов в последнем успешном листинге.",
	})
)

// defaultStatConcurrency — число одновременных Stat при листинге.
const defaultStatConcurrency = 8

// CatalogService — листинг медиафайлов хранилища.
type CatalogService struct {
	store           storage.Store
	table           *media.Table
	statConcurrency int
	logger          *slog.Logger
}

// NewCatalogService создаёт сервис каталога.
// table — таблицы расширений (media.Default для production).
func NewCatalogService(store storage.Store, table *media.Table, logger *slog.Logger) *CatalogService {
	return &CatalogService{
		store:           store,
		table:           table,
		statConcurrency: defaultStatConcurrency,
		logger:          logger.With(slog.String("component", "catalog_service")),
	}
}

// List возвращает медиафайлы каталога в порядке перечисления хранилища.
//
// Каждая запись получает размер и время изменения из Stat в момент запроса.
// Ошибка перечисления или Stat любой записи (включая файл, удалённый между
// листингом и Stat) — ErrStoreUnavailable для всего листинга, без частичных результатов.
func (c *CatalogService) List(ctx context.Context) ([]model.MediaDescriptor, error) {
	start := time.Now()

	names, err := c.store.List(ctx)
	if err != nil {
		catalogListTotal.WithLabelValues("error").Inc()
		c.logger.Error("Ошибка перечисления хранилища", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	// Имена, недопустимые как ключ каталога, не попадают в листинг:
	// каждая запись должна быть доступна для streaming
	candidates := names[:0:0]
	for _, name := range names {
		if c.table.ValidateName(name) == nil {
			candidates = append(candidates, name)
		}
	}

	result := make([]model.MediaDescriptor, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.statConcurrency)

	for i, name := range candidates {
		g.Go(func() error {
			entry, err := c.store.Stat(gctx, name)
			if err != nil {
				return fmt.Errorf("stat %s: %w", name, err)
			}
			result[i] = model.MediaDescriptor{
				Name:       name,
				Kind:       c.table.KindOf(name),
				Size:       entry.Size,
				ModifiedAt: entry.ModTime,
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		catalogListTotal.WithLabelValues("error").Inc()
		c.logger.Error("Ошибка получения метаданных медиафайла", slog.String("error", err.Error()))
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	catalogListTotal.WithLabelValues("success").Inc()
	catalogListDuration.Observe(time.Since(start).Seconds())
	catalogEntries.Set(float64(len(result)))

	c.logger.Debug("Листинг каталога",
		slog.Int("entries", len(result)),
		slog.Int("skipped", len(names)-len(candidates)),
	)

	return result, nil
}
