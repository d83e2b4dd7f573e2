package objectstore

import "errors"

var (
	// ErrInvalidConfig — некорректные параметры подключения.
	ErrInvalidConfig = errors.New("invalid object store config")

	// ErrInvalidURI — URI не соответствует формату s3://bucket/key.
	ErrInvalidURI = errors.New("invalid object URI")

	// ErrNotInitialized — клиент не создан.
	ErrNotInitialized = errors.New("object store client not initialized")
)
