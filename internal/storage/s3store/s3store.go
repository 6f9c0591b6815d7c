// Пакет s3store — хранилище медиафайлов в S3-совместимом бакете
// (AWS S3, MinIO). Каталог — объекты верхнего уровня под префиксом;
// окна файла читаются через GetObject с заголовком Range.
package s3store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/bigkaa/goartstore/media-gate/internal/storage"
)

// Options — параметры подключения к бакету.
type Options struct {
	// Endpoint — URL S3-совместимого сервиса; пусто — AWS по региону
	Endpoint string
	Region   string
	Bucket   string
	// Prefix — префикс ключей каталога ("media/"); пусто — корень бакета
	Prefix    string
	AccessKey string
	SecretKey string
}

// Store — каталог медиафайлов в бакете.
type Store struct {
	client *s3.Client
	bucket string
	prefix string
}

// New создаёт клиент S3 со статическими учётными данными
// и path-style адресацией (требуется для MinIO).
func New(ctx context.Context, opts Options) (*Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("не задан бакет S3")
	}

	loadOpts := []func(*config.LoadOptions) error{
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, ""),
		),
	}
	if opts.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithBaseEndpoint(opts.Endpoint))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("загрузка конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})

	prefix := opts.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	return &Store{client: client, bucket: opts.Bucket, prefix: prefix}, nil
}

// List возвращает имена объектов непосредственно под префиксом.
// Вложенные «директории» (CommonPrefixes) пропускаются.
func (s *Store) List(ctx context.Context) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(s.bucket),
		Prefix:    aws.String(s.prefix),
		Delimiter: aws.String("/"),
	})

	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, unavailable("листинг бакета", err)
		}
		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), s.prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}

	return names, nil
}

// Stat возвращает размер и время изменения объекта (HeadObject).
func (s *Store) Stat(ctx context.Context, name string) (storage.Entry, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
	})
	if err != nil {
		return storage.Entry{}, classifyObject(name, err)
	}

	return storage.Entry{
		Name:    name,
		Size:    aws.ToInt64(out.ContentLength),
		ModTime: aws.ToTime(out.LastModified),
	}, nil
}

// Open запрашивает окно объекта. Тело ответа читается потоково
// и закрывается вместе с возвращённым ReadCloser.
func (s *Store) Open(ctx context.Context, name string, offset, length int64) (io.ReadCloser, error) {
	if offset < 0 || length < 0 {
		return nil, fmt.Errorf("некорректное окно чтения %d+%d", offset, length)
	}
	if length == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.prefix + name),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", offset, offset+length-1)),
	})
	if err != nil {
		return nil, classifyObject(name, err)
	}

	return out.Body, nil
}

// Check проверяет доступность бакета (HeadBucket).
func (s *Store) Check(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucket),
	}); err != nil {
		return unavailable("бакет "+s.bucket, err)
	}
	return nil
}

// classifyObject сводит ошибки SDK по объекту к ошибкам хранилища.
func classifyObject(name string, err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return storage.ErrNotFound
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return storage.ErrNotFound
	}

	return unavailable(name, err)
}

func unavailable(what string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", storage.ErrUnavailable, what, err)
}
