package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// messageWriter is the subset of *kafka.Writer the publisher needs
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends alert events to Kafka
type Publisher struct {
	writer messageWriter
	logger *zap.Logger
}

// NewPublisher creates a publisher for the configured brokers and topic
func NewPublisher(cfg config.NotifyConfig, logger *zap.Logger) *Publisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  1,
	}
	return &Publisher{writer: writer, logger: logger}
}

// PublishAlert publishes one alert event keyed by account
func (p *Publisher) PublishAlert(ctx context.Context, event models.AlertEvent) error {
	message, err := buildMessage(event)
	if err != nil {
		return err
	}

	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("failed to publish alert event: %w", err)
	}

	p.logger.Info("Published alert event", zap.String("account", event.Account))
	return nil
}

func buildMessage(event models.AlertEvent) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to marshal event: %w", err)
	}

	return kafka.Message{
		Key:   []byte(event.Account),
		Value: data,
		Time:  event.DetectedAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte("risk_alert")},
		},
	}, nil
}

// Close closes the Kafka writer
func (p *Publisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}
