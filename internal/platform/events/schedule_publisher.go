package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/workshop-planner/api/internal/services"
)

// PubSubSchedulePublisher publishes schedule change notifications to a Pub/Sub topic.
// Messages for the same work item share an ordering key.
type PubSubSchedulePublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

var _ services.ScheduleEventPublisher = (*PubSubSchedulePublisher)(nil)

// NewPubSubSchedulePublisher constructs a Pub/Sub backed schedule change publisher.
func NewPubSubSchedulePublisher(topic *pubsub.Topic) (*PubSubSchedulePublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub schedule publisher: topic is required")
	}
	topic.EnableMessageOrdering = true
	return &PubSubSchedulePublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishScheduleChange sends the change message and waits for the server id.
func (p *PubSubSchedulePublisher) PublishScheduleChange(ctx context.Context, message services.ScheduleChangeMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub schedule publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal schedule change: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "messageId", message.MessageID)
	setAttr(attrs, "workItemId", message.WorkItemID)
	setAttr(attrs, "action", message.Action)
	setAttr(attrs, "status", message.Status)

	orderingKey := strings.TrimSpace(message.WorkItemID)
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: orderingKey,
	})

	id, err := result.Get(ctx)
	if err != nil {
		if orderingKey != "" {
			// A failed publish pauses the key; resume so later changes are not rejected.
			p.topic.ResumePublish(orderingKey)
		}
		return "", fmt.Errorf("publish schedule change: %w", err)
	}
	return id, nil
}

// Ping reports whether the topic is reachable, for readiness checks.
func (p *PubSubSchedulePublisher) Ping(ctx context.Context) error {
	if p == nil || p.topic == nil {
		return errors.New("pubsub schedule publisher: not initialised")
	}
	ok, err := p.topic.Exists(ctx)
	if err != nil {
		return fmt.Errorf("pubsub topic %s: %w", p.topic.ID(), err)
	}
	if !ok {
		return fmt.Errorf("pubsub topic %s does not exist", p.topic.ID())
	}
	return nil
}

// Stop flushes pending messages.
func (p *PubSubSchedulePublisher) Stop() {
	if p != nil && p.topic != nil {
		p.topic.Stop()
	}
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
