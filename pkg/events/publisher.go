package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v2/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"go.uber.org/zap"

	"github.com/noah-isme/learnhub-api/pkg/config"
	"github.com/noah-isme/learnhub-api/pkg/middleware/requestid"
)

// Domain event topics.
const (
	TopicCourseCompleted    = "learning.course_completed"
	TopicCertificateIssued  = "learning.certificate_issued"
	TopicQuizAttempted      = "learning.quiz_attempted"
	metadataRequestID       = "request_id"
	metadataOccurredAt      = "occurred_at"
	defaultGoChannelBufSize = 64
)

// Publisher emits domain events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
	Close() error
}

// WatermillPublisher serialises payloads to JSON and hands them to a watermill publisher.
type WatermillPublisher struct {
	pub    message.Publisher
	logger *zap.Logger
}

// NewPublisher builds the publisher selected by cfg.Driver. The returned
// GoChannel is non-nil only for the in-process driver so callers can subscribe.
func NewPublisher(cfg config.EventsConfig, logger *zap.Logger) (*WatermillPublisher, *gochannel.GoChannel, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	adapter := NewZapAdapter(logger)

	switch cfg.Driver {
	case config.EventsDriverKafka:
		if len(cfg.KafkaBrokers) == 0 {
			return nil, nil, fmt.Errorf("kafka events driver requires EVENTS_KAFKA_BROKERS")
		}
		pub, err := kafka.NewPublisher(kafka.PublisherConfig{
			Brokers:   cfg.KafkaBrokers,
			Marshaler: kafka.DefaultMarshaler{},
		}, adapter)
		if err != nil {
			return nil, nil, fmt.Errorf("create kafka publisher: %w", err)
		}
		return &WatermillPublisher{pub: pub, logger: logger}, nil, nil
	case config.EventsDriverGoChannel, "":
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: defaultGoChannelBufSize}, adapter)
		return &WatermillPublisher{pub: ch, logger: logger}, ch, nil
	default:
		return nil, nil, fmt.Errorf("unknown events driver %q", cfg.Driver)
	}
}

// Publish implements Publisher.
func (p *WatermillPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	msg := message.NewMessage(watermill.NewUUID(), body)
	msg.Metadata.Set(metadataOccurredAt, time.Now().UTC().Format(time.RFC3339Nano))
	if id := requestid.FromContext(ctx); id != "" {
		msg.Metadata.Set(metadataRequestID, id)
	}
	msg.SetContext(ctx)

	if err := p.pub.Publish(topic, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}
	p.logger.Debug("event published", zap.String("topic", topic), zap.String("message_id", msg.UUID))
	return nil
}

// Close releases the underlying publisher.
func (p *WatermillPublisher) Close() error {
	return p.pub.Close()
}

// Recorded is an event captured by RecordingPublisher.
type Recorded struct {
	Topic   string
	Payload interface{}
}

// RecordingPublisher keeps published events in memory. Used in tests.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []Recorded
	Err    error
}

// Publish implements Publisher.
func (r *RecordingPublisher) Publish(_ context.Context, topic string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.events = append(r.events, Recorded{Topic: topic, Payload: payload})
	return nil
}

// Close implements Publisher.
func (r *RecordingPublisher) Close() error { return nil }

// Events returns a snapshot of recorded events.
func (r *RecordingPublisher) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Recorded, len(r.events))
	copy(out, r.events)
	return out
}

// Topics returns the recorded topics in publish order.
func (r *RecordingPublisher) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Topic)
	}
	return out
}
