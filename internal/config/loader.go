package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/shaiso/Cascade/internal/domain"
	"github.com/shaiso/Cascade/internal/objectstore"
)

// Fetcher — получение байтов документа по URI.
//
// Реализации соответствуют схемам URI и регистрируются в Loader.
type Fetcher interface {
	Fetch(ctx context.Context, uri string) ([]byte, error)
}

// FileFetcher читает документ с локального диска.
// Принимает путь без схемы и file:///path.
type FileFetcher struct{}

// Fetch реализует Fetcher.
func (FileFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	path := strings.TrimPrefix(uri, "file://")
	return os.ReadFile(path)
}

// ObjectGetter — чтение объекта из хранилища (реализует *objectstore.Client).
type ObjectGetter interface {
	Get(ctx context.Context, bucket, key string) ([]byte, error)
}

// ObjectFetcher читает документ из объектного хранилища по s3://bucket/key.
type ObjectFetcher struct {
	Getter ObjectGetter
}

// Fetch реализует Fetcher.
func (f ObjectFetcher) Fetch(ctx context.Context, uri string) ([]byte, error) {
	bucket, key, err := objectstore.ParseURI(uri)
	if err != nil {
		return nil, err
	}
	return f.Getter.Get(ctx, bucket, key)
}

// Loader загружает конфигурацию по URI, выбирая Fetcher по схеме.
type Loader struct {
	fetchers map[string]Fetcher
	logger   *slog.Logger
}

// NewLoader создаёт загрузчик с FileFetcher для путей без схемы и file://.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		fetchers: map[string]Fetcher{"file": FileFetcher{}},
		logger:   logger,
	}
}

// NewRemoteLoader создаёт загрузчик без доступа к локальному диску.
// Пути без схемы и file:// отклоняются с ErrUnsupportedScheme.
// Используется там, где URI приходит от внешнего клиента (HTTP API).
func NewRemoteLoader(logger *slog.Logger) *Loader {
	return NewLoader(logger).Unregister("file")
}

// Register регистрирует Fetcher для схемы (s3, file).
func (l *Loader) Register(scheme string, f Fetcher) *Loader {
	l.fetchers[strings.ToLower(scheme)] = f
	return l
}

// Unregister убирает Fetcher для схемы.
func (l *Loader) Unregister(scheme string) *Loader {
	delete(l.fetchers, strings.ToLower(scheme))
	return l
}

// Schemes возвращает зарегистрированные схемы.
func (l *Loader) Schemes() []string {
	out := make([]string, 0, len(l.fetchers))
	for s := range l.fetchers {
		out = append(out, s)
	}
	return out
}

// Fetch получает байты документа.
func (l *Loader) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if strings.TrimSpace(uri) == "" {
		return nil, fmt.Errorf("%w: empty URI", ErrConfigFetch)
	}

	scheme := SchemeOf(uri)
	f, ok := l.fetchers[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %w: %q", ErrConfigFetch, ErrUnsupportedScheme, scheme)
	}

	data, err := f.Fetch(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConfigFetch, uri, err)
	}

	l.logger.Debug("config fetched", "uri", uri, "bytes", len(data))
	return data, nil
}

// Load получает, разбирает и валидирует конфигурацию.
func (l *Loader) Load(ctx context.Context, uri string) (domain.RunConfig, error) {
	data, err := l.Fetch(ctx, uri)
	if err != nil {
		return domain.RunConfig{}, err
	}
	return Decode(data)
}

// SchemeOf возвращает схему URI в нижнем регистре; для пути без схемы — "file".
func SchemeOf(uri string) string {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok || scheme == "" {
		return "file"
	}
	return strings.ToLower(scheme)
}
