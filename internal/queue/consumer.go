package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// Message is a received event with its payload left undecoded.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

type MessageHandler func(ctx context.Context, msg Message) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, js, err := connect(natsURL)
	if err != nil {
		return nil, err
	}
	return &Consumer{nc: nc, js: js}, nil
}

// filterSubjects maps event kinds onto subjects. No kinds means all events.
func filterSubjects(kinds []string) []string {
	if len(kinds) == 0 {
		return []string{EventsSubjectBase + ".>"}
	}
	subjects := make([]string, 0, len(kinds))
	for _, k := range kinds {
		subjects = append(subjects, Subject(k))
	}
	return subjects
}

// ConsumeEvents delivers new events of the given kinds to handler until ctx
// is done. Malformed payloads are acked and skipped; handler errors are
// redelivered up to three times.
func (c *Consumer) ConsumeEvents(ctx context.Context, consumerName string, kinds []string, handler MessageHandler) error {
	stream, err := c.js.Stream(ctx, EventsStreamName)
	if err != nil {
		return fmt.Errorf("get stream %s: %w", EventsStreamName, err)
	}

	cons, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:           consumerName,
		Durable:        consumerName,
		AckPolicy:      jetstream.AckExplicitPolicy,
		AckWait:        10 * time.Second,
		MaxDeliver:     3,
		FilterSubjects: filterSubjects(kinds),
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create consumer %s: %w", consumerName, err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch events error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				var m Message
				if err := json.Unmarshal(msg.Data(), &m); err != nil {
					slog.Error("unmarshal event", "subject", msg.Subject(), "error", err)
					_ = msg.Ack()
					continue
				}
				if err := handler(ctx, m); err != nil {
					slog.Error("process event error", "subject", msg.Subject(), "error", err)
					_ = msg.Nak()
				} else {
					_ = msg.Ack()
				}
			}
		}
	}()

	slog.Info("event consumer started", "consumer", consumerName, "kinds", kinds)
	return nil
}

func (c *Consumer) Close() {
	c.nc.Close()
}
