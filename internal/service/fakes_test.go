package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bigkaa/goartstore/media-gate/internal/storage"
)

var testModTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// fakeStore — хранилище в памяти со счётчиками открытых источников.
type fakeStore struct {
	mu    sync.Mutex
	files map[string][]byte
	// order — порядок перечисления в List
	order []string
	// sizes — переопределение размера в Stat (имитация усечённого файла)
	sizes    map[string]int64
	listErr  error
	statErrs map[string]error

	statCalls atomic.Int64
	opens     atomic.Int64
	closes    atomic.Int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		files:    map[string][]byte{},
		sizes:    map[string]int64{},
		statErrs: map[string]error{},
	}
}

func (f *fakeStore) put(name string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.files[name]; !ok {
		f.order = append(f.order, name)
	}
	f.files[name] = data
}

func (f *fakeStore) List(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]string(nil), f.order...), nil
}

func (f *fakeStore) Stat(_ context.Context, name string) (storage.Entry, error) {
	f.statCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.statErrs[name]; err != nil {
		return storage.Entry{}, err
	}
	data, ok := f.files[name]
	if !ok {
		return storage.Entry{}, storage.ErrNotFound
	}
	size := int64(len(data))
	if s, ok := f.sizes[name]; ok {
		size = s
	}
	return storage.Entry{Name: name, Size: size, ModTime: testModTime}, nil
}

func (f *fakeStore) Open(_ context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	f.mu.Lock()
	data, ok := f.files[name]
	f.mu.Unlock()
	if !ok {
		return nil, storage.ErrNotFound
	}

	f.opens.Add(1)
	end := min(offset+length, int64(len(data)))
	start := min(offset, end)
	return &trackedReader{Reader: bytes.NewReader(data[start:end]), store: f}, nil
}

func (f *fakeStore) Check(_ context.Context) error {
	return nil
}

// leaked возвращает количество незакрытых источников.
func (f *fakeStore) leaked() int64 {
	return f.opens.Load() - f.closes.Load()
}

type trackedReader struct {
	io.Reader
	store  *fakeStore
	closed atomic.Bool
}

func (r *trackedReader) Close() error {
	if r.closed.CompareAndSwap(false, true) {
		r.store.closes.Add(1)
	}
	return nil
}

// testData возвращает детерминированное содержимое длины n.
func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*7 + 3)
	}
	return data
}
