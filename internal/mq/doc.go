// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений из очередей
//
// Типы сообщений:
//   - run.requested  — run из журнала ожидает выполнения
//   - run.completed  — итоговое событие RunEvent
//
// Exchanges:
//   - cascade.runs   — запросы на выполнение
//   - cascade.events — события завершения
//   - cascade.dlq    — dead letter queue
package mq
