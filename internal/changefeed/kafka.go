package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	"transport-ledger/internal/observability/metrics"
)

// Writer is the subset of kafka.Writer the notifier needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes change events to a Kafka topic keyed by collection.
type KafkaNotifier struct {
	writer  Writer
	logger  *log.Logger
	timeout time.Duration
}

// NewKafkaNotifier creates a notifier writing to brokers/topic.
func NewKafkaNotifier(brokers []string, topic string, logger *log.Logger) (*KafkaNotifier, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka notifier: no brokers")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("kafka notifier: empty topic")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return NewKafkaNotifierWithWriter(w, logger), nil
}

// NewKafkaNotifierWithWriter allows injecting a test writer.
func NewKafkaNotifierWithWriter(w Writer, logger *log.Logger) *KafkaNotifier {
	return &KafkaNotifier{writer: w, logger: logger, timeout: 5 * time.Second}
}

// Publish writes one event synchronously.
func (k *KafkaNotifier) Publish(ctx context.Context, event Event) error {
	if k == nil || k.writer == nil {
		return errors.New("kafka notifier: nil writer")
	}
	value, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := kafka.Message{Key: []byte(event.Collection), Value: value, Time: event.At}
	return k.writer.WriteMessages(ctx, msg)
}

// Notify implements Notifier. Failures are logged; the write that produced
// the event has already committed.
func (k *KafkaNotifier) Notify(ctx context.Context, event Event) {
	if k == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), k.timeout)
	defer cancel()
	if err := k.Publish(ctx, event); err != nil {
		metrics.IncChangePublished("kafka", metrics.ResultError)
		if k.logger != nil {
			k.logger.Printf("changefeed kafka publish failed: collection=%s err=%v", event.Collection, err)
		}
		return
	}
	metrics.IncChangePublished("kafka", metrics.ResultSuccess)
}

// Close closes the underlying writer.
func (k *KafkaNotifier) Close() error {
	if k == nil || k.writer == nil {
		return nil
	}
	return k.writer.Close()
}
