package events

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// LogConsumer subscribes to topics and logs every event it receives. It is
// attached to the in-process driver so events are observable without a broker.
// It returns once all subscriptions are established; consumption stops with ctx.
func LogConsumer(ctx context.Context, sub message.Subscriber, logger *zap.Logger, topics ...string) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, topic := range topics {
		messages, err := sub.Subscribe(ctx, topic)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
		go func(topic string, messages <-chan *message.Message) {
			for msg := range messages {
				logger.Info("domain event",
					zap.String("topic", topic),
					zap.String("message_id", msg.UUID),
					zap.String("request_id", msg.Metadata.Get(metadataRequestID)),
					zap.ByteString("payload", msg.Payload))
				msg.Ack()
			}
		}(topic, messages)
	}
	return nil
}
