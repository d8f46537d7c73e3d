package topic

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/pubsub"

	"github.com/kzharvest/harvester/pkg/record"
	"github.com/kzharvest/harvester/pkg/storage"
)

const publishTimeout = 10 * time.Second

// Sink publishes each record's JSON line to a Pub/Sub topic.
type Sink struct {
	topic *pubsub.Topic
}

// NewSink constructs a sink for the given topic. If the topic is nil,
// publishes are treated as no-ops.
func NewSink(topic *pubsub.Topic) *Sink {
	return &Sink{topic: topic}
}

// Persist publishes rec and waits for the server to acknowledge it.
func (s *Sink) Persist(ctx context.Context, rec record.Record) error {
	if s.topic == nil {
		return nil
	}
	line, err := record.Encode(rec)
	if err != nil {
		return fmt.Errorf("pubsub sink: %w: %w", storage.ErrSerialization, err)
	}

	attrs := map[string]string{}
	if rec.ID != nil {
		attrs["record_id"] = strconv.FormatUint(*rec.ID, 10)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err = s.topic.Publish(ctx, &pubsub.Message{
		Data:       line[:len(line)-1],
		Attributes: attrs,
	}).Get(ctx)
	if err != nil {
		return fmt.Errorf("pubsub sink: %w: publish %s: %w", storage.ErrIO, rec.Label(), err)
	}
	return nil
}

// Close flushes pending publishes and stops the topic's goroutines.
func (s *Sink) Close() error {
	if s.topic != nil {
		s.topic.Stop()
	}
	return nil
}
