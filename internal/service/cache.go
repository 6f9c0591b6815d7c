// cache.go — LRU-кэш учётных записей с TTL для проверки сессии.
// Обёртка над hashicorp/golang-lru/v2/expirable.
package service

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/media-gate/internal/domain/model"
)

// Prometheus-метрики кэша.
var (
	userCacheHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_user_cache_hits_total",
		Help: "Общее количество попаданий в LRU-кэш пользователей.",
	})
	userCacheMissesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ms_user_cache_misses_total",
		Help: "Общее количество промахов LRU-кэша пользователей.",
	})
)

// UserCache — LRU-кэш пользователей по ID с автоматическим TTL.
// Кэш локален для экземпляра (MS_USER_CACHE_SIZE, MS_USER_CACHE_TTL).
type UserCache struct {
	cache *expirable.LRU[string, *model.User]
}

// NewUserCache создаёт LRU-кэш с указанным максимальным размером и TTL.
func NewUserCache(maxSize int, ttl time.Duration) *UserCache {
	return &UserCache{cache: expirable.NewLRU[string, *model.User](maxSize, nil, ttl)}
}

// Get возвращает пользователя из кэша. Обновляет метрики hit/miss.
func (c *UserCache) Get(id string) (*model.User, bool) {
	user, ok := c.cache.Get(id)
	if ok {
		userCacheHitsTotal.Inc()
		return user, true
	}
	userCacheMissesTotal.Inc()
	return nil, false
}

// Set добавляет или обновляет запись.
func (c *UserCache) Set(user *model.User) {
	c.cache.Add(user.ID, user)
}

// Delete удаляет запись.
func (c *UserCache) Delete(id string) {
	c.cache.Remove(id)
}

// Len возвращает текущее количество записей.
func (c *UserCache) Len() int {
	return c.cache.Len()
}
