package rabbitmq

import (
	"context"
	"encoding/json"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"lecture-gen/config"
	"lecture-gen/dto"
)

// Publisher hands lecture jobs to the consumer side through the work exchange.
type Publisher struct {
	conn     *amqp.Connection
	cfg      *config.RabbitMQ
	mu       sync.Mutex
	declared bool
}

func NewPublisher(conn *amqp.Connection, cfg *config.RabbitMQ) *Publisher {
	return &Publisher{
		conn: conn,
		cfg:  cfg,
	}
}

func (p *Publisher) Enqueue(ctx context.Context, message dto.LectureJobMessage) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	// Declaring the queue before the first publish keeps messages from being
	// dropped when no consumer has bound it yet.
	if err := p.ensureTopology(ctx, ch); err != nil {
		return err
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(
		ctx,
		p.cfg.ExchangeName,
		p.cfg.RoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Debug().
		Str("user_id", message.UserId).
		Str("run_id", message.RunId.String()).
		Msg("published lecture job")
	return nil
}

func (p *Publisher) ensureTopology(ctx context.Context, ch *amqp.Channel) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.declared {
		return nil
	}
	if err := declareTopology(ctx, ch, p.cfg); err != nil {
		return err
	}
	p.declared = true
	return nil
}
