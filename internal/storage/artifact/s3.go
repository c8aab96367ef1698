// s3.go — хранение артефактов в S3-совместимом хранилище (AWS S3, MinIO).
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3API — подмножество операций S3, используемое хранилищем.
// Позволяет подменять клиент в тестах.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Options — параметры подключения к S3.
type S3Options struct {
	Bucket string
	// Prefix — префикс ключей объектов (например, "artwork/")
	Prefix string
	Region string
	// Endpoint — адрес S3-совместимого сервиса (MinIO, LocalStack)
	Endpoint string
	// PathStyle — path-style адресация (обязательна для MinIO)
	PathStyle bool
	// Timeout — таймаут HTTP-клиента
	Timeout time.Duration
}

// S3 — хранилище артефактов в бакете S3.
type S3 struct {
	client S3API
	bucket string
	prefix string
}

// NewS3 создаёт хранилище с клиентом из стандартной цепочки
// учётных данных AWS (env, shared config, IAM role).
func NewS3(ctx context.Context, opts S3Options) (*S3, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("не задан бакет S3")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации AWS: %w", err)
	}
	if opts.Region != "" {
		cfg.Region = opts.Region
	} else if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	var s3Opts []func(*s3.Options)
	if opts.PathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}
	if opts.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		})
	}
	if opts.Timeout > 0 {
		httpClient := &http.Client{Timeout: opts.Timeout}
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.HTTPClient = httpClient
		})
	}

	return NewS3WithClient(s3.NewFromConfig(cfg, s3Opts...), opts.Bucket, opts.Prefix), nil
}

// NewS3WithClient создаёт хранилище с готовым клиентом.
func NewS3WithClient(client S3API, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: prefix}
}

// Save загружает объект под сгенерированным ключом.
func (s *S3) Save(ctx context.Context, r io.Reader, size int64, originalName string) (*SaveResult, error) {
	contentType, reader, err := sniff(r)
	if err != nil {
		return nil, err
	}

	ref := NewRef(originalName)

	// SDK считает контрольную сумму тела до отправки и без TLS
	// принимает только тело с поддержкой Seek. Остальные потоки
	// сначала записываются во временный файл.
	body, ok := reader.(io.ReadSeeker)
	if ok {
		if size < 0 {
			if size, err = seekSize(body); err != nil {
				return nil, err
			}
		}
	} else {
		spool, n, err := spoolToTemp(reader)
		if err != nil {
			return nil, err
		}
		defer func() {
			_ = spool.Close()
			_ = os.Remove(spool.Name())
		}()
		body, size = spool, n
	}

	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(ref)),
		Body:        body,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return nil, fmt.Errorf("ошибка загрузки объекта %s в S3: %w", ref, err)
	}

	return &SaveResult{
		Ref:         ref,
		Size:        size,
		ContentType: contentType,
	}, nil
}

// Open открывает объект для чтения.
func (s *S3) Open(ctx context.Context, ref string) (*Object, error) {
	if !ValidRef(ref) {
		return nil, ErrNotFound
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения объекта %s из S3: %w", ref, err)
	}

	obj := &Object{
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
		Size:        aws.ToInt64(out.ContentLength),
	}
	if out.LastModified != nil {
		obj.ModTime = *out.LastModified
	}
	if obj.ContentType == "" {
		obj.ContentType = "application/octet-stream"
	}
	return obj, nil
}

// Exists проверяет наличие объекта через HeadObject.
func (s *S3) Exists(ctx context.Context, ref string) (bool, error) {
	if !ValidRef(ref) {
		return false, nil
	}
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err == nil {
		return true, nil
	}
	if isS3NotFound(err) {
		return false, nil
	}
	return false, fmt.Errorf("ошибка проверки объекта %s в S3: %w", ref, err)
}

// Delete удаляет объект. S3 не возвращает ошибку для отсутствующего ключа.
func (s *S3) Delete(ctx context.Context, ref string) error {
	if !ValidRef(ref) {
		return nil
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil && !isS3NotFound(err) {
		return fmt.Errorf("ошибка удаления объекта %s из S3: %w", ref, err)
	}
	return nil
}

// Ping проверяет доступность бакета.
func (s *S3) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("бакет %s недоступен: %w", s.bucket, err)
	}
	return nil
}

// key возвращает ключ объекта с учётом префикса.
func (s *S3) key(ref string) string {
	if s.prefix == "" {
		return ref
	}
	return path.Join(s.prefix, ref)
}

// isS3NotFound распознаёт ответы S3 об отсутствии объекта.
func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

// seekSize определяет размер данных и возвращает позицию в начало.
func seekSize(rs io.ReadSeeker) (int64, error) {
	n, err := rs.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, fmt.Errorf("ошибка определения размера файла: %w", err)
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("ошибка позиционирования файла: %w", err)
	}
	return n, nil
}

// spoolToTemp копирует поток во временный файл и возвращает файл,
// позиционированный в начало, и размер данных.
func spoolToTemp(r io.Reader) (*os.File, int64, error) {
	f, err := os.CreateTemp("", "artwork-s3-*")
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка создания временного файла: %w", err)
	}
	n, err := io.Copy(f, r)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return nil, 0, fmt.Errorf("ошибка буферизации данных: %w", err)
	}
	return f, n, nil
}

var _ Store = (*S3)(nil)
