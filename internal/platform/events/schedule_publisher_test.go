package events

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

	"github.com/workshop-planner/api/internal/services"
)

func newTestTopic(t *testing.T, id string) (*pstest.Server, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, id)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return srv, topic
}

func TestPubSubSchedulePublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv, topic := newTestTopic(t, "schedule-changes")

	publisher, err := NewPubSubSchedulePublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubSchedulePublisher: %v", err)
	}
	defer publisher.Stop()

	occurred := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	msg := services.ScheduleChangeMessage{
		MessageID:  "01HTEST",
		WorkItemID: "w1",
		Action:     "accepted",
		Status:     "scheduled",
		StartDate:  "2024-03-08",
		EndDate:    "2024-03-11",
		ActorID:    "uid-1",
		OccurredAt: occurred,
	}

	if _, err := publisher.PublishScheduleChange(ctx, msg); err != nil {
		t.Fatalf("PublishScheduleChange: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.ScheduleChangeMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.WorkItemID != "w1" || payload.StartDate != "2024-03-08" || !payload.OccurredAt.Equal(occurred) {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["action"]; attr != "accepted" {
		t.Fatalf("expected action attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["actorId"]; ok {
		t.Fatalf("actor should not be exposed as an attribute")
	}
	if messages[0].OrderingKey != "w1" {
		t.Fatalf("expected ordering key w1, got %q", messages[0].OrderingKey)
	}
}

func TestPubSubSchedulePublisherPing(t *testing.T) {
	_, topic := newTestTopic(t, "schedule-ping")

	publisher, err := NewPubSubSchedulePublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubSchedulePublisher: %v", err)
	}
	if err := publisher.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func TestNewPubSubSchedulePublisherRequiresTopic(t *testing.T) {
	if _, err := NewPubSubSchedulePublisher(nil); err == nil {
		t.Fatal("expected error for nil topic")
	}
}
