package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// EventsQueueName is the durable queue seating events are published to.
const EventsQueueName = "seating.events"

// Publisher delivers seating events to RabbitMQ.  The broker URL is fixed
// at construction time; nothing is read from the environment at publish
// time.  Publish attempts to be robust and to never panic; any error is
// logged and returned so the caller can choose to ignore it.  Messages
// are marked persistent.
type Publisher struct {
	url string
}

// NewPublisher returns a Publisher bound to the given broker URL.
func NewPublisher(url string) *Publisher { return &Publisher{url: url} }

// Publish marshals the event and sends it to the seating events queue.
// The queue is declared durable on every publish, which is idempotent.
func (p *Publisher) Publish(ctx context.Context, event SeatingEvent) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.Printf("rabbitmq: dial failed: %v", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Printf("rabbitmq: channel open failed: %v", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		EventsQueueName, // name
		true,            // durable
		false,           // autoDelete
		false,           // exclusive
		false,           // noWait
		nil,             // args
	); err != nil {
		log.Printf("rabbitmq: queue declare failed: %v", err)
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx,
		"",              // default exchange
		EventsQueueName, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		pub,
	); err != nil {
		log.Printf("rabbitmq: publish failed: %v", err)
		return err
	}

	return nil
}
