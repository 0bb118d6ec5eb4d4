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

	"github.com/hanko-field/variants/internal/platform/config"
	"github.com/hanko-field/variants/internal/variations"
)

func newTestClientOptions(srv *pstest.Server) []option.ClientOption {
	return []option.ClientOption{
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
}

func TestPubSubSaveEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project", newTestClientOptions(srv)...)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "variations.saved")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubSaveEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubSaveEventPublisher: %v", err)
	}

	savedAt := time.Date(2026, 5, 6, 9, 0, 0, 0, time.UTC)
	event := variations.VariationsSavedEvent{
		ProductID:    "prod_1",
		Mode:         variations.ModeEdit,
		VariationIDs: []string{"var_a", "var_b"},
		RemovedIDs:   []string{"var_old"},
		SavedAt:      savedAt,
	}

	if _, err := publisher.PublishVariationsSaved(ctx, event); err != nil {
		t.Fatalf("PublishVariationsSaved: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload VariationsSavedMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.ProductID != "prod_1" || payload.Mode != "edit" || payload.EventType != eventTypeVariationsSaved {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if len(payload.VariationIDs) != 2 || len(payload.RemovedIDs) != 1 {
		t.Fatalf("unexpected ids %#v", payload)
	}
	if !payload.SavedAt.Equal(savedAt) {
		t.Fatalf("unexpected savedAt %s", payload.SavedAt)
	}
	if attr := messages[0].Attributes["productId"]; attr != "prod_1" {
		t.Fatalf("expected productId attribute, got %q", attr)
	}
	if messages[0].OrderingKey != "" {
		t.Fatalf("ordering key set without message ordering: %q", messages[0].OrderingKey)
	}
}

func TestPubSubSaveEventPublisherUsesOrderingKey(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, topic, err := OpenSavedTopic(ctx, config.PubSubConfig{ProjectID: "test-project", SavedTopic: "variations.saved"}, newTestClientOptions(srv)...)
	if err != nil {
		t.Fatalf("OpenSavedTopic: %v", err)
	}
	defer func() {
		topic.Stop()
		_ = client.Close()
	}()
	if _, err := client.CreateTopic(ctx, "variations.saved"); err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubSaveEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubSaveEventPublisher: %v", err)
	}
	if _, err := publisher.PublishVariationsSaved(ctx, variations.VariationsSavedEvent{ProductID: "prod_9", Mode: variations.ModeCreate}); err != nil {
		t.Fatalf("PublishVariationsSaved: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	if messages[0].OrderingKey != "prod_9" {
		t.Fatalf("expected ordering key prod_9, got %q", messages[0].OrderingKey)
	}

	var payload VariationsSavedMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.VariationIDs == nil {
		t.Fatal("expected empty id list rather than null")
	}
}

func TestOpenSavedTopicRequiresConfig(t *testing.T) {
	if _, _, err := OpenSavedTopic(context.Background(), config.PubSubConfig{ProjectID: "p"}); err == nil {
		t.Fatal("expected error for missing topic")
	}
}

func TestNewPubSubSaveEventPublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubSaveEventPublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
