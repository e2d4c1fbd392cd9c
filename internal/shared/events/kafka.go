package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"resume-builder/internal/shared/telemetry"
)

const (
	defaultConnAttempts = 5
	defaultConnTimeout  = time.Second
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by resume id, so all
// events for one resume land on the same partition in order.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

// KafkaOption tweaks NewKafkaPublisher.
type KafkaOption func(*kafkaSettings)

type kafkaSettings struct {
	connAttempts int
	connTimeout  time.Duration
}

// ConnAttempts sets how many times the broker is probed before giving up.
func ConnAttempts(n int) KafkaOption {
	return func(s *kafkaSettings) { s.connAttempts = n }
}

// ConnTimeout sets the pause between broker probes.
func ConnTimeout(d time.Duration) KafkaOption {
	return func(s *kafkaSettings) { s.connTimeout = d }
}

// NewKafkaPublisher probes the first broker and returns a publisher for topic.
func NewKafkaPublisher(ctx context.Context, brokers []string, topic string, opts ...KafkaOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 || topic == "" {
		return nil, errors.New("kafka brokers and topic are required")
	}
	settings := kafkaSettings{connAttempts: defaultConnAttempts, connTimeout: defaultConnTimeout}
	for _, opt := range opts {
		opt(&settings)
	}

	var err error
	for attempt := 1; attempt <= settings.connAttempts; attempt++ {
		if err = ping(ctx, brokers[0]); err == nil {
			break
		}
		telemetry.Warn("events.kafka.connect_retry", map[string]any{
			"attempt": attempt,
			"broker":  brokers[0],
			"error":   err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(settings.connTimeout):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("kafka connect: %w", err)
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: w, topic: topic}, nil
}

func ping(ctx context.Context, broker string) error {
	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("brokers: %w", err)
	}
	return nil
}

// Publish writes ev synchronously.
func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	msg, err := toMessage(ev)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka write %s: %w", ev.Type, err)
	}
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func toMessage(ev Event) (kafka.Message, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("encode event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(ev.ResumeID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(ev.ID)},
			{Key: "event_type", Value: []byte(ev.Type)},
		},
		Time: ev.At,
	}, nil
}
