package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName = "trade_events"
	dialTimeout  = 10 * time.Second
)

// AMQPGateway publishes trade events to a durable topic exchange. Routing key
// is the event kind, so consumers can bind per event type.
type AMQPGateway struct {
	conn    *amqp091.Connection
	channel *amqp091.Channel
}

func NewAMQPGateway(amqpURL string) (*AMQPGateway, error) {
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{Dial: amqp091.DefaultDial(dialTimeout)})
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &AMQPGateway{conn: conn, channel: ch}, nil
}

func (g *AMQPGateway) Notify(ctx context.Context, accountID uuid.UUID, ev Event) error {
	ev.AccountID = accountID
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return g.channel.PublishWithContext(ctx,
		exchangeName,
		ev.Kind,
		false,
		false,
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   ev.Timestamp,
			Body:        body,
		},
	)
}

func (g *AMQPGateway) Close() {
	if g.channel != nil {
		g.channel.Close()
	}
	if g.conn != nil {
		g.conn.Close()
	}
}
