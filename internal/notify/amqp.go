package notify

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AmqpNotifier publishes message events to a durable RabbitMQ queue consumed
// by the email worker.
type AmqpNotifier struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewAmqpNotifier dials the broker and declares the queue.
func NewAmqpNotifier(url, queue string) (*AmqpNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false,
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	return &AmqpNotifier{conn: conn, ch: ch, queue: queue}, nil
}

func (n *AmqpNotifier) NotifyNewMessage(ctx context.Context, evt *Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return n.ch.PublishWithContext(cctx,
		"",      // default exchange
		n.queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

func (n *AmqpNotifier) Close() error {
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
