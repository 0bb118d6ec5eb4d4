package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/hanko-field/variants/internal/platform/config"
	"github.com/hanko-field/variants/internal/variations"
)

const eventTypeVariationsSaved = "variations.saved"

// VariationsSavedMessage is the JSON payload of a save notification.
type VariationsSavedMessage struct {
	EventType    string    `json:"eventType"`
	ProductID    string    `json:"productId"`
	Mode         string    `json:"mode"`
	VariationIDs []string  `json:"variationIds"`
	RemovedIDs   []string  `json:"removedIds,omitempty"`
	SavedAt      time.Time `json:"savedAt"`
}

// PubSubSaveEventPublisher publishes save notifications to a Pub/Sub topic.
type PubSubSaveEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ variations.SaveEventPublisher = (*PubSubSaveEventPublisher)(nil)

// NewPubSubSaveEventPublisher constructs a Pub/Sub backed publisher. When the topic has message
// ordering enabled, events of one product are delivered in publish order.
func NewPubSubSaveEventPublisher(topic *pubsub.Topic) (*PubSubSaveEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub save event publisher: topic is required")
	}
	return &PubSubSaveEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishVariationsSaved publishes event and waits for the server acknowledgement.
func (p *PubSubSaveEventPublisher) PublishVariationsSaved(ctx context.Context, event variations.VariationsSavedEvent) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub save event publisher: not initialised")
	}

	message := VariationsSavedMessage{
		EventType:    eventTypeVariationsSaved,
		ProductID:    strings.TrimSpace(event.ProductID),
		Mode:         string(event.Mode),
		VariationIDs: event.VariationIDs,
		RemovedIDs:   event.RemovedIDs,
		SavedAt:      event.SavedAt.UTC(),
	}
	if message.VariationIDs == nil {
		message.VariationIDs = []string{}
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal variations saved event: %w", err)
	}

	attrs := map[string]string{"eventType": eventTypeVariationsSaved}
	setAttr(attrs, "productId", message.ProductID)
	setAttr(attrs, "mode", message.Mode)

	msg := &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	}
	if p.topic.EnableMessageOrdering {
		msg.OrderingKey = message.ProductID
	}

	id, err := p.topic.Publish(ctx, msg).Get(ctx)
	if err != nil {
		if msg.OrderingKey != "" {
			p.topic.ResumePublish(msg.OrderingKey)
		}
		return "", fmt.Errorf("publish variations saved event: %w", err)
	}
	return id, nil
}

// OpenSavedTopic connects to Pub/Sub and returns the topic for save notifications. The caller
// owns the returned client and must close it. The topic is expected to exist.
func OpenSavedTopic(ctx context.Context, cfg config.PubSubConfig, opts ...option.ClientOption) (*pubsub.Client, *pubsub.Topic, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	topicID := strings.TrimSpace(cfg.SavedTopic)
	if projectID == "" || topicID == "" {
		return nil, nil, errors.New("pubsub: project id and topic are required")
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub: create client: %w", err)
	}
	topic := client.Topic(topicID)
	topic.EnableMessageOrdering = true
	return client, topic, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
