package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeRuns   Exchange = "cascade.runs"
	ExchangeEvents Exchange = "cascade.events"
	ExchangeDLQ    Exchange = "cascade.dlq"
)

// Queues — имена очередей.
const (
	QueueRunsRequested     Queue = "runs.requested"
	QueueEventsRunComplete Queue = "events.run_completed"
	QueueDLQRuns           Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyRequested    RoutingKey = "requested"
	RoutingKeyRunCompleted RoutingKey = "run.completed"
	RoutingKeyDLQRuns      RoutingKey = "runs"
)

type exchangeDecl struct {
	name Exchange
	kind string
}

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// Topology — полный набор объектов RabbitMQ.
type Topology struct {
	Exchanges []exchangeDecl
	Queues    []queueDecl
	Bindings  []bindingDecl
}

// DefaultTopology возвращает топологию Cascade.
func DefaultTopology() Topology {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
	}

	return Topology{
		Exchanges: []exchangeDecl{
			{ExchangeRuns, "direct"},
			{ExchangeEvents, "topic"},
			{ExchangeDLQ, "direct"},
		},
		Queues: []queueDecl{
			// runs.requested — отклонённые запросы уходят в DLQ
			{QueueRunsRequested, dlqArgs},

			// events.run_completed — события для внешних подписчиков
			{QueueEventsRunComplete, nil},

			{QueueDLQRuns, nil},
		},
		Bindings: []bindingDecl{
			{QueueRunsRequested, RoutingKeyRequested, ExchangeRuns},
			{QueueEventsRunComplete, RoutingKeyRunCompleted, ExchangeEvents},
			{QueueDLQRuns, RoutingKeyDLQRuns, ExchangeDLQ},
		},
	}
}

// SetupTopology объявляет exchanges, queues и bindings.
func SetupTopology(ctx context.Context, conn *Connection) error {
	topo := DefaultTopology()

	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Exchanges
		for _, ex := range topo.Exchanges {
			if err := ch.ExchangeDeclare(string(ex.name), ex.kind, true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex.name, err)
			}
		}

		// 2. Queues
		for _, q := range topo.Queues {
			if _, err := ch.QueueDeclare(string(q.name), true, false, false, false, q.args); err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		// 3. Bindings
		for _, b := range topo.Bindings {
			if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Cascade RabbitMQ Topology:

    cascade.runs (direct)
    └── runs.requested [routing: requested]
            Consumer: cascade-orchestrator
            DLQ: dlq.runs

    cascade.events (topic)
    └── events.run_completed [routing: run.completed]
            Consumers: downstream subscribers

    cascade.dlq (direct)
    └── dlq.runs [routing: runs]
            Manual processing
  `
}
