package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	q "github.com/iliyamo/docconv/internal/queue"
)

// Publisher delivers completion events.  Implementations must not block the
// caller for long; the orchestrator treats every error as best effort.
type Publisher interface {
	PublishConversionCompleted(ctx context.Context, ev q.ConversionCompletedEvent) error
}

// AMQPPublisher publishes to the durable conversion.completed queue.  A
// connection is dialled per event, which is enough at conversion rates.
type AMQPPublisher struct {
	URL string
}

// NewAMQPPublisher returns a publisher for the broker at url.
func NewAMQPPublisher(url string) *AMQPPublisher {
	return &AMQPPublisher{URL: url}
}

// PublishConversionCompleted marshals ev and publishes it as a persistent
// message.
func (p *AMQPPublisher) PublishConversionCompleted(ctx context.Context, ev q.ConversionCompletedEvent) error {
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		return fmt.Errorf("rabbitmq: dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("rabbitmq: channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		q.ConversionCompletedQueue, // name
		true,                       // durable
		false,                      // autoDelete
		false,                      // exclusive
		false,                      // noWait
		nil,                        // args
	); err != nil {
		return fmt.Errorf("rabbitmq: queue declare: %w", err)
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("rabbitmq: marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.JobID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", q.ConversionCompletedQueue, false, false, pub); err != nil {
		return fmt.Errorf("rabbitmq: publish: %w", err)
	}
	return nil
}

type nopPublisher struct{}

func (nopPublisher) PublishConversionCompleted(context.Context, q.ConversionCompletedEvent) error {
	return nil
}
