package queue

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartEventsConsumer connects to RabbitMQ, declares the seating events
// queue (durable), and starts consuming messages.  Each message is
// appended to logs/seating.log in a single-line, human-friendly format.
// The function runs a reconnect loop with exponential backoff and keeps
// running indefinitely; processing errors are logged and the offending
// message rejected so the service continues operating.
func StartEventsConsumer(url string) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("events-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("events-consumer: consume loop ended: %v; reconnecting", err)
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(EventsQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	deliveries, err := ch.Consume(EventsQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for d := range deliveries {
		if err := appendEventLog(d.Body); err != nil {
			log.Printf("events-consumer: failed to process message: %v", err)
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return fmt.Errorf("delivery channel closed")
}

// appendEventLog writes one formatted line per event to logs/seating.log,
// creating the directory on first use.
func appendEventLog(body []byte) error {
	var evt SeatingEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		return fmt.Errorf("unmarshal event: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s kind=%s subscription=%s tenant=%s",
		evt.OccurredAt, evt.Kind, evt.SubscriptionID, evt.TenantID)
	if evt.Reason != "" {
		fmt.Fprintf(&b, " reason=%s", evt.Reason)
	}
	if evt.Seat != nil {
		fmt.Fprintf(&b, " seat=%s type=%s", evt.Seat.SeatID, evt.Seat.SeatType)
		if evt.Seat.UserID != "" {
			fmt.Fprintf(&b, " user=%s", evt.Seat.UserID)
		}
	}
	if evt.StandardSeats != nil && evt.TotalSeats != nil {
		fmt.Fprintf(&b, " standard=%d/%d", *evt.StandardSeats, *evt.TotalSeats)
	}
	b.WriteByte('\n')

	dir := "logs"
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, "seating.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.WriteString(b.String()); err != nil {
		return fmt.Errorf("write log line: %w", err)
	}
	return nil
}
