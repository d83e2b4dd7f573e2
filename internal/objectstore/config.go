package objectstore

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config — параметры подключения к объектному хранилищу.
type Config struct {
	// Endpoint — host:port без схемы.
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// ConfigFromEnv читает конфигурацию из переменных окружения.
//
// Переменные: S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, S3_REGION, S3_USE_SSL.
func ConfigFromEnv() (Config, error) {
	useSSL := false
	if raw := strings.TrimSpace(os.Getenv("S3_USE_SSL")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return Config{}, fmt.Errorf("S3_USE_SSL: %w", err)
		}
		useSSL = v
	}

	cfg := Config{
		Endpoint:  envOr("S3_ENDPOINT", DefaultEndpoint),
		AccessKey: envOr("S3_ACCESS_KEY", "minioadmin"),
		SecretKey: envOr("S3_SECRET_KEY", "minioadmin"),
		Region:    envOr("S3_REGION", "us-east-1"),
		UseSSL:    useSSL,
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DefaultEndpoint — адрес локального MinIO для разработки.
const DefaultEndpoint = "localhost:9000"

// Validate проверяет обязательные поля.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return fmt.Errorf("%w: endpoint is required", ErrInvalidConfig)
	}
	if strings.Contains(c.Endpoint, "://") {
		return fmt.Errorf("%w: endpoint must not include scheme: %q", ErrInvalidConfig, c.Endpoint)
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return fmt.Errorf("%w: access key is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return fmt.Errorf("%w: secret key is required", ErrInvalidConfig)
	}
	return nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
