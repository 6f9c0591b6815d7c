// Пакет storage — контракт хранилища медиафайлов.
// Хранилище — плоское пространство имён: ключ файла совпадает с его именем
// в каталоге. Реализации: filestore (локальная директория) и s3store
// (S3-совместимое объектное хранилище).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// Ошибки хранилища.
var (
	// ErrNotFound — объект с таким именем отсутствует.
	ErrNotFound = errors.New("объект не найден в хранилище")
	// ErrUnavailable — хранилище недоступно (директория не читается, бакет не отвечает).
	ErrUnavailable = errors.New("хранилище недоступно")
)

// Entry — метаданные одного объекта.
type Entry struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// Store — источник медиафайлов.
// Все методы безопасны для конкурентного вызова.
type Store interface {
	// List возвращает имена объектов верхнего уровня в порядке перечисления.
	// Вложенные директории и префиксы пропускаются.
	List(ctx context.Context) ([]string, error)

	// Stat возвращает актуальные размер и время изменения объекта.
	Stat(ctx context.Context, name string) (Entry, error)

	// Open открывает окно [offset, offset+length) объекта для последовательного
	// чтения. Вызывающий код обязан закрыть ReadCloser.
	Open(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error)

	// Check проверяет доступность хранилища (readiness probe).
	Check(ctx context.Context) error
}

// ReadinessChecker — проверка готовности хранилища для health endpoint.
type ReadinessChecker struct {
	store Store
}

// NewReadinessChecker создаёт проверку готовности хранилища.
func NewReadinessChecker(store Store) *ReadinessChecker {
	return &ReadinessChecker{store: store}
}

// CheckReady вызывает Store.Check с таймаутом.
// Возвращает статус ("ok", "fail") и сообщение.
func (c *ReadinessChecker) CheckReady() (status string, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := c.store.Check(ctx); err != nil {
		return "fail", fmt.Sprintf("хранилище медиафайлов недоступно: %v", err)
	}
	return "ok", "хранилище доступно"
}
