// Пакет filestore — хранилище медиафайлов в локальной директории.
// Все обращения идут через os.Root: имя файла не может выйти за пределы
// директории ни через "..", ни через символическую ссылку.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bigkaa/goartstore/media-gate/internal/storage"
)

// FileStore — плоская директория медиафайлов.
type FileStore struct {
	// dataDir — корневая директория (MS_MEDIA_DIR)
	dataDir string
	root    *os.Root
}

// New создаёт FileStore. Создаёт директорию, если она не существует.
func New(dataDir string) (*FileStore, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию медиафайлов %s: %w", dataDir, err)
	}

	root, err := os.OpenRoot(dataDir)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть директорию медиафайлов %s: %w", dataDir, err)
	}

	return &FileStore{dataDir: dataDir, root: root}, nil
}

// Close освобождает дескриптор корневой директории.
func (s *FileStore) Close() error {
	return s.root.Close()
}

// DataDir возвращает путь к директории медиафайлов.
func (s *FileStore) DataDir() string {
	return s.dataDir
}

// List возвращает имена обычных файлов в корне директории, по алфавиту.
// Поддиректории и символические ссылки пропускаются.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := s.root.Open(".")
	if err != nil {
		return nil, fmt.Errorf("%w: открытие директории: %w", storage.ErrUnavailable, err)
	}
	defer dir.Close()

	entries, err := dir.ReadDir(-1)
	if err != nil {
		return nil, fmt.Errorf("%w: чтение директории: %w", storage.ErrUnavailable, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	slices.Sort(names)

	return names, nil
}

// Stat возвращает размер и время изменения файла.
func (s *FileStore) Stat(ctx context.Context, name string) (storage.Entry, error) {
	if err := ctx.Err(); err != nil {
		return storage.Entry{}, err
	}
	if !isFlatName(name) {
		return storage.Entry{}, storage.ErrNotFound
	}

	info, err := s.root.Lstat(name)
	if err != nil {
		return storage.Entry{}, classify(name, err)
	}
	if !info.Mode().IsRegular() {
		return storage.Entry{}, storage.ErrNotFound
	}

	return storage.Entry{
		Name:    name,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Open открывает окно [offset, offset+length) файла.
// Дескриптор файла закрывается вместе с возвращённым ReadCloser.
func (s *FileStore) Open(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !isFlatName(name) {
		return nil, storage.ErrNotFound
	}
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("некорректное окно чтения %d+%d", offset, length)
	}

	f, err := s.root.Open(name)
	if err != nil {
		return nil, classify(name, err)
	}

	return &sectionFile{
		SectionReader: io.NewSectionReader(f, offset, length),
		file:          f,
	}, nil
}

// Check проверяет, что директория доступна.
func (s *FileStore) Check(_ context.Context) error {
	if _, err := s.root.Stat("."); err != nil {
		return fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
	}
	return nil
}

// sectionFile — окно файла с закрытием исходного дескриптора.
type sectionFile struct {
	*io.SectionReader
	file *os.File
}

func (f *sectionFile) Close() error {
	return f.file.Close()
}

// isFlatName проверяет, что имя — один локальный элемент пути.
func isFlatName(name string) bool {
	return filepath.IsLocal(name) && !strings.ContainsAny(name, `/\`)
}

func classify(name string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return storage.ErrNotFound
	}
	return fmt.Errorf("%w: %s: %w", storage.ErrUnavailable, name, err)
}
