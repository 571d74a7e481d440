package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/anuntul/api/internal/domain"
	"github.com/anuntul/api/internal/services"
)

func TestPubSubListingEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "listing-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubListingEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubListingEventPublisher: %v", err)
	}

	occurredAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	event := services.ListingEvent{
		Type:       "listing.created",
		ListingID:  "lst_test",
		UserID:     "user-1",
		ActorID:    "user-1",
		Status:     domain.ListingStatusActive,
		OccurredAt: occurredAt,
		Metadata:   map[string]any{"categoryId": "vehicule"},
	}

	if err := publisher.PublishListingEvent(ctx, event); err != nil {
		t.Fatalf("PublishListingEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.ListingEvent
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Type != event.Type || payload.ListingID != event.ListingID {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if !payload.OccurredAt.Equal(occurredAt) {
		t.Fatalf("expected occurredAt %s, got %s", occurredAt, payload.OccurredAt)
	}
	if attr := messages[0].Attributes["eventType"]; attr != "listing.created" {
		t.Fatalf("expected eventType attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["status"]; attr != "active" {
		t.Fatalf("expected status attribute, got %q", attr)
	}
}

func TestNewPubSubListingEventPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubListingEventPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
