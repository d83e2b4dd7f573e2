package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shaiso/Cascade/internal/objectstore"
)

// ContentType — MIME-тип документа конфигурации.
const ContentType = "application/yaml"

// FileStore сохраняет документы в каталог на диске.
type FileStore struct {
	Dir string
}

// Put записывает документ в Dir/location и возвращает file:// URI.
func (s FileStore) Put(ctx context.Context, location string, doc []byte) (string, error) {
	if err := checkLocation(location); err != nil {
		return "", err
	}

	path, err := filepath.Abs(filepath.Join(s.Dir, filepath.FromSlash(location)))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}
	return "file://" + filepath.ToSlash(path), nil
}

// ObjectPutter — запись объекта в хранилище (реализует *objectstore.Client).
type ObjectPutter interface {
	Put(ctx context.Context, bucket, key string, data []byte, contentType string) error
}

// ObjectStore сохраняет документы в bucket объектного хранилища.
type ObjectStore struct {
	Putter ObjectPutter
	Bucket string
}

// Put записывает документ в Bucket/location и возвращает s3:// URI.
func (s ObjectStore) Put(ctx context.Context, location string, doc []byte) (string, error) {
	if err := checkLocation(location); err != nil {
		return "", err
	}
	if err := s.Putter.Put(ctx, s.Bucket, location, doc, ContentType); err != nil {
		return "", err
	}
	return objectstore.FormatURI(s.Bucket, location), nil
}

func checkLocation(location string) error {
	if location == "" {
		return fmt.Errorf("empty config location")
	}
	for _, part := range strings.Split(location, "/") {
		if part == ".." {
			return fmt.Errorf("config location must not contain '..': %q", location)
		}
	}
	return nil
}
