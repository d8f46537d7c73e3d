package processing

import (
	"context"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"
)

// DLQPublisher records IDs the scan had to move past without a record, so
// they can be fetched again later.
type DLQPublisher interface {
	Publish(ctx context.Context, id uint64, reason string) error
}

// PubSubDLQPublisher implements DLQPublisher using a Pub/Sub topic.
type PubSubDLQPublisher struct {
	topic *pubsub.Topic
}

// NewPubSubDLQPublisher constructs a DLQ publisher for the given topic. If the
// topic is nil, publishes are treated as no-ops.
func NewPubSubDLQPublisher(topic *pubsub.Topic) *PubSubDLQPublisher {
	return &PubSubDLQPublisher{topic: topic}
}

// Publish sends the ID to the DLQ topic. If topic is nil, it is a no-op.
func (p *PubSubDLQPublisher) Publish(ctx context.Context, id uint64, reason string) error {
	if p.topic == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	idStr := strconv.FormatUint(id, 10)
	_, err := p.topic.Publish(ctx, &pubsub.Message{
		Data: []byte(idStr),
		Attributes: map[string]string{
			"reason":    reason,
			"record_id": idStr,
		},
	}).Get(ctx)
	return err
}

// NoopDLQPublisher is used when no DLQ topic is configured.
type NoopDLQPublisher struct{}

func (n *NoopDLQPublisher) Publish(ctx context.Context, id uint64, reason string) error {
	return nil
}
