package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/vzahanych/weather-alert-bot/internal/alert"
	"github.com/vzahanych/weather-alert-bot/internal/config"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// KafkaPublisher emits every generated alert as an event on a Kafka topic.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) *KafkaPublisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newKafkaPublisher(w, cfg.Topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		writer: w,
		topic:  topic,
		logger: logger.With(zap.String("component", "publisher"), zap.String("topic", topic)),
	}
}

// Publish writes one message per alert in a single batch.
func (p *KafkaPublisher) Publish(ctx context.Context, alerts []alert.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	msgs := make([]kafkago.Message, len(alerts))
	for i := range alerts {
		msg, err := serializeToMessage(alerts[i])
		if err != nil {
			return err
		}
		msgs[i] = msg
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish alerts: %w", err)
	}
	p.logger.Info("Published alerts", zap.Int("count", len(msgs)))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func serializeToMessage(a alert.Alert) (kafkago.Message, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(a.LocationName + "|" + string(a.Type)),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "alert_type", Value: []byte(a.Type)},
			{Key: "severity", Value: []byte(a.Severity)},
		},
	}, nil
}
