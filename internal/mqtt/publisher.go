package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// topicLevel percent-encodes the characters that would turn a camera id into
// a wildcard or extra topic levels.
var topicLevel = strings.NewReplacer("%", "%25", "/", "%2F", "+", "%2B", "#", "%23")

// Publisher serializes alert events onto a topic.
type Publisher struct {
	client Client
	topic  string
}

// NewPublisher publishes to topic through client. An empty topic uses DefaultTopic.
func NewPublisher(client Client, topic string) *Publisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{client: client, topic: topic}
}

// PublishAlert sends the event to {topic}/{camera id}, with the id escaped to a
// single topic level.
func (p *Publisher) PublishAlert(ctx context.Context, ev AlertEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding alert event: %w", err)
	}
	return p.client.Publish(ctx, p.topic+"/"+topicLevel.Replace(ev.CameraID), string(payload))
}

