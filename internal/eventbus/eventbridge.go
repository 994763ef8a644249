package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
)

// EventBridgePublisher puts pipeline lifecycle events onto a custom
// EventBridge bus, source "filmgraph.pipeline", so external consumers
// (dashboards, alarms) can react without polling the chunk-artifact
// directory.
type EventBridgePublisher struct {
	Client   *eventbridge.Client
	BusName  string
	Source   string
}

// NewEventBridgePublisher returns a publisher targeting busName.
func NewEventBridgePublisher(client *eventbridge.Client, busName string) *EventBridgePublisher {
	return &EventBridgePublisher{Client: client, BusName: busName, Source: "filmgraph.pipeline"}
}

func (p *EventBridgePublisher) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	detail, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("eventbridge publish: marshal event: %w", err)
	}
	_, err = p.Client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{
			{
				EventBusName: aws.String(p.BusName),
				Source:       aws.String(p.Source),
				DetailType:   aws.String(e.Type),
				Detail:       aws.String(string(detail)),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("eventbridge publish: %w", err)
	}
	return nil
}
