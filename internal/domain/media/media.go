// Пакет media — статические таблицы медиатипов: допустимые расширения,
// классификация video/audio и сопоставление расширения с MIME-типом.
// Также проверяет имена ресурсов из запросов перед обращением к хранилищу.
package media

import (
	"errors"
	"path"
	"strings"
)

// Kind — класс медиафайла в каталоге.
type Kind string

const (
	KindVideo   Kind = "video"
	KindAudio   Kind = "audio"
	KindUnknown Kind = "unknown"
)

// DefaultContentType — MIME-тип для нераспознанных расширений.
const DefaultContentType = "application/octet-stream"

// ErrInvalidName — имя ресурса не может быть ключом каталога.
var ErrInvalidName = errors.New("недопустимое имя медиафайла")

// Table — набор таблиц расширений. Все ключи — в нижнем регистре, с точкой.
// Таблица только читается и безопасна для конкурентного использования.
type Table struct {
	// Allowed — расширения, попадающие в каталог
	Allowed map[string]bool
	// Kinds — классификация; допустимое расширение без записи — KindUnknown
	Kinds map[string]Kind
	// ContentTypes — MIME-типы для ответа streaming
	ContentTypes map[string]string
}

// Default — таблицы каталога по умолчанию.
// .ogg классифицирован как audio, но отдаётся с MIME-типом video/ogg.
var Default = &Table{
	Allowed: map[string]bool{
		".mp4": true, ".mp3": true, ".webm": true, ".ogg": true, ".wav": true,
		".m4a": true, ".avi": true, ".mov": true, ".mkv": true,
	},
	Kinds: map[string]Kind{
		".mp4":  KindVideo,
		".webm": KindVideo,
		".avi":  KindVideo,
		".mov":  KindVideo,
		".mkv":  KindVideo,
		".mp3":  KindAudio,
		".ogg":  KindAudio,
		".wav":  KindAudio,
		".m4a":  KindAudio,
	},
	ContentTypes: map[string]string{
		".mp4":  "video/mp4",
		".webm": "video/webm",
		".ogg":  "video/ogg",
		".avi":  "video/x-msvideo",
		".mov":  "video/quicktime",
		".mkv":  "video/x-matroska",
		".mp3":  "audio/mpeg",
		".wav":  "audio/wav",
		".m4a":  "audio/mp4",
	},
}

// Ext возвращает расширение имени в нижнем регистре (с точкой).
func Ext(name string) string {
	return strings.ToLower(path.Ext(name))
}

// IsAllowed сообщает, входит ли файл в каталог по расширению.
func (t *Table) IsAllowed(name string) bool {
	return t.Allowed[Ext(name)]
}

// KindOf классифицирует файл. Расширения вне таблицы Kinds — KindUnknown.
func (t *Table) KindOf(name string) Kind {
	if k, ok := t.Kinds[Ext(name)]; ok {
		return k
	}
	return KindUnknown
}

// ContentType возвращает MIME-тип по расширению.
func (t *Table) ContentType(name string) string {
	if ct, ok := t.ContentTypes[Ext(name)]; ok {
		return ct
	}
	return DefaultContentType
}

// ValidateName проверяет, что имя из запроса — ключ плоского каталога:
// один элемент пути без разделителей, без "..", без управляющих символов,
// не скрытый файл, с допустимым расширением.
func (t *Table) ValidateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return ErrInvalidName
	case len(name) > 255:
		return ErrInvalidName
	case strings.ContainsAny(name, `/\`):
		return ErrInvalidName
	case strings.HasPrefix(name, "."):
		return ErrInvalidName
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7f {
			return ErrInvalidName
		}
	}
	if !t.IsAllowed(name) {
		return ErrInvalidName
	}
	return nil
}
