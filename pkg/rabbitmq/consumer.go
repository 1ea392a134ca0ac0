package rabbitmq

import (
	"context"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"lecture-gen/config"
)

type Consumer[T any] interface {
	Consume(ctx context.Context, dependencies T) error
}

type consumer[T any] struct {
	conn       *amqp.Connection
	cfg        *config.RabbitMQ
	handler    func(ctx context.Context, msg amqp.Delivery, dependencies T) error
	numWorkers int
}

// declareTopology declares the work exchange and queue plus the dead letter
// exchange and queue that receive rejected deliveries.
func declareTopology(ctx context.Context, ch *amqp.Channel, cfg *config.RabbitMQ) error {
	err := ch.ExchangeDeclare(cfg.ExchangeName, cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("exchange", cfg.ExchangeName).Msg("failed to declare exchange")
		return err
	}

	err = ch.ExchangeDeclare(cfg.DeadLetterExchange(), cfg.Kind, true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("exchange", cfg.DeadLetterExchange()).Msg("failed to declare dlx")
		return err
	}

	dlq, err := ch.QueueDeclare(cfg.DeadLetterQueue(), true, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", cfg.DeadLetterQueue()).Msg("failed to declare dlq")
		return err
	}

	err = ch.QueueBind(dlq.Name, cfg.DeadLetterRoutingKey(), cfg.DeadLetterExchange(), false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to bind dlq")
		return err
	}

	args := amqp.Table{
		"x-dead-letter-exchange":    cfg.DeadLetterExchange(),
		"x-dead-letter-routing-key": cfg.DeadLetterRoutingKey(),
	}
	q, err := ch.QueueDeclare(cfg.QueueName, true, false, false, false, args)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", cfg.QueueName).Msg("failed to declare queue")
		return err
	}

	err = ch.QueueBind(q.Name, cfg.RoutingKey, cfg.ExchangeName, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("queue", cfg.QueueName).Msg("failed to bind queue")
		return err
	}

	return nil
}

func (c consumer[T]) Consume(ctx context.Context, dependencies T) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if err := declareTopology(ctx, ch, c.cfg); err != nil {
		return err
	}

	err = ch.Qos(c.numWorkers, 0, false)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", c.cfg.QueueName).Msg("failed to set QoS")
		return err
	}

	deliveries, err := ch.Consume(c.cfg.QueueName, "", false, false, false, false, nil)
	if err != nil {
		zerolog.Ctx(ctx).Error().Str("queue", c.cfg.QueueName).Msg("failed to consume queue")
		return err
	}

	zerolog.Ctx(ctx).Info().
		Str("queue", c.cfg.QueueName).
		Str("exchange", c.cfg.ExchangeName).
		Str("routing_key", c.cfg.RoutingKey).
		Int("workers", c.numWorkers).
		Msg("lecture consumer started")

	jobs := make(chan amqp.Delivery, c.numWorkers)
	var wg sync.WaitGroup
	for i := 1; i <= c.numWorkers; i++ {
		wg.Add(1)
		go func(workerId int) {
			defer wg.Done()
			for msg := range jobs {
				settle(ctx, workerId, msg, c.handler(ctx, msg, dependencies))
			}
		}(i)
	}

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				close(jobs)
				wg.Wait()
				return nil
			}

			jobs <- delivery
		case <-ctx.Done():
			close(jobs)
			wg.Wait()
			return ctx.Err()
		}
	}
}

type acknowledger interface {
	Ack(multiple bool) error
	Nack(multiple, requeue bool) error
}

// settle acks a handled delivery and dead-letters a failed one. Failed runs
// are not requeued: the job record already reports the failure and a new
// dispatch is the way to retry.
func settle(ctx context.Context, workerId int, msg acknowledger, err error) {
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int("worker_id", workerId).Msg("failed to handle message")
		if nackErr := msg.Nack(false, false); nackErr != nil {
			zerolog.Ctx(ctx).Error().Err(nackErr).Msg("failed to nack message to send to DLQ")
		}
		return
	}

	if ackErr := msg.Ack(false); ackErr != nil {
		zerolog.Ctx(ctx).Error().Err(ackErr).Msg("failed to acknowledge message")
	}
}

func NewConsumer[T any](
	conn *amqp.Connection,
	cfg *config.RabbitMQ,
	numWorkers int,
	handler func(ctx context.Context, msg amqp.Delivery, dependencies T) error,
) Consumer[T] {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &consumer[T]{
		conn:       conn,
		cfg:        cfg,
		handler:    handler,
		numWorkers: numWorkers,
	}
}
