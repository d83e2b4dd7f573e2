package mq

import "errors"

var (
	// ErrNoChannel — канал недоступен (соединение разорвано или закрыто).
	ErrNoChannel = errors.New("no channel available")

	// ErrUnexpectedType — тип сообщения не соответствует очереди.
	ErrUnexpectedType = errors.New("unexpected message type")
)
