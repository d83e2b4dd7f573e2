package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Scheme — схема URI объектов хранилища.
const Scheme = "s3"

// DefaultListLimit — сколько имён максимум возвращает List.
// Для проверки landing достаточно одного, лимит защищает от огромных префиксов.
const DefaultListLimit = 100

// Client — обёртка над minio.Client.
//
// Безопасен для конкурентного использования.
type Client struct {
	mc        *minio.Client
	listLimit int
}

// New создаёт клиента по конфигурации.
func New(cfg Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Client{mc: mc, listLimit: DefaultListLimit}, nil
}

// List возвращает имена объектов под prefix в bucket (не более listLimit).
func (c *Client) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if c == nil || c.mc == nil {
		return nil, ErrNotInitialized
	}

	// Отменяем листинг, как только набрали лимит
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	names := make([]string, 0, 1)
	for obj := range c.mc.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, obj.Err)
		}
		names = append(names, obj.Key)
		if len(names) >= c.listLimit {
			break
		}
	}
	return names, nil
}

// Get читает объект целиком.
func (c *Client) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	if c == nil || c.mc == nil {
		return nil, ErrNotInitialized
	}

	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", bucket, key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Put записывает объект (перезаписывает существующий).
func (c *Client) Put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	if c == nil || c.mc == nil {
		return ErrNotInitialized
	}

	_, err := c.mc.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", bucket, key, err)
	}
	return nil
}

// EnsureBucket создаёт bucket, если его нет.
func (c *Client) EnsureBucket(ctx context.Context, bucket, region string) error {
	if c == nil || c.mc == nil {
		return ErrNotInitialized
	}

	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("bucket exists %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	return c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}

// ParseURI разбирает s3://bucket/key и s3:///bucket/key.
func ParseURI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, Scheme+"://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	rest = strings.TrimPrefix(rest, "/")

	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return bucket, key, nil
}

// FormatURI собирает s3://bucket/key.
func FormatURI(bucket, key string) string {
	return Scheme + "://" + bucket + "/" + strings.TrimPrefix(key, "/")
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
