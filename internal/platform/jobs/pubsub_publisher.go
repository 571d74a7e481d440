package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/anuntul/api/internal/services"
)

// PubSubListingEventPublisher publishes listing lifecycle events to a Pub/Sub topic.
type PubSubListingEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubListingEventPublisher constructs a Pub/Sub backed listing event publisher.
func NewPubSubListingEventPublisher(topic *pubsub.Topic) (*PubSubListingEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub listing event publisher: topic is required")
	}
	return &PubSubListingEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishListingEvent enqueues a listing lifecycle event on the configured topic.
func (p *PubSubListingEventPublisher) PublishListingEvent(ctx context.Context, event services.ListingEvent) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub listing event publisher: not initialised")
	}

	data, err := p.marshal(event)
	if err != nil {
		return fmt.Errorf("marshal listing event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "listingId", event.ListingID)
	setAttr(attrs, "userId", event.UserID)
	setAttr(attrs, "status", string(event.Status))

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish listing event: %w", err)
	}
	return nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ services.ListingEventPublisher = (*PubSubListingEventPublisher)(nil)
