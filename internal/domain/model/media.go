// Пакет model — доменные модели Media Gate.
package model

import (
	"time"

	"github.com/bigkaa/goartstore/media-gate/internal/domain/media"
)

// MediaDescriptor — запись каталога: один медиафайл в корне хранилища.
type MediaDescriptor struct {
	// Name — имя файла; уникальный ключ каталога
	Name string
	// Kind — класс по расширению: video, audio или unknown
	Kind media.Kind
	// Size — размер в байтах на момент листинга
	Size int64
	// ModifiedAt — время последнего изменения
	ModifiedAt time.Time
}
