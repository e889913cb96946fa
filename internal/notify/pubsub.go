package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"
	"github.com/rs/zerolog"
)

// AlertEvent is the payload published to the ops topic for each alert, so
// downstream automation (paging, dashboards) can consume swaps and failures
// without parsing WhatsApp text.
type AlertEvent struct {
	Message string    `json:"message"`
	Source  string    `json:"source"`
	At      time.Time `json:"at"`
}

// PubSubConfig holds configuration for the Pub/Sub notifier.
type PubSubConfig struct {
	ProjectID string
	TopicID   string
	Logger    zerolog.Logger
}

// PubSubNotifier publishes alert events to a Google Pub/Sub topic.
type PubSubNotifier struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    zerolog.Logger
}

// NewPubSubNotifier creates a Pub/Sub notifier.
func NewPubSubNotifier(ctx context.Context, cfg PubSubConfig) (*PubSubNotifier, error) {
	client, err := pubsub.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("creating pubsub client: %w", err)
	}
	return &PubSubNotifier{
		client:    client,
		publisher: client.Publisher(cfg.TopicID),
		logger:    cfg.Logger,
	}, nil
}

// Notify publishes the alert event and waits for server acknowledgement.
func (n *PubSubNotifier) Notify(ctx context.Context, message string) bool {
	payload, err := json.Marshal(AlertEvent{
		Message: message,
		Source:  "botsentinel",
		At:      time.Now().UTC(),
	})
	if err != nil {
		n.logger.Error().Err(err).Msg("alert event encode failed")
		return false
	}

	result := n.publisher.Publish(ctx, &pubsub.Message{Data: payload})
	if _, err := result.Get(ctx); err != nil {
		n.logger.Error().Err(err).Msg("alert event publish failed")
		return false
	}
	return true
}

// Close releases the underlying Pub/Sub client.
func (n *PubSubNotifier) Close() error {
	n.publisher.Stop()
	return n.client.Close()
}

// Ensure PubSubNotifier implements Notifier.
var _ Notifier = (*PubSubNotifier)(nil)
