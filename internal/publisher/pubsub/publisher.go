// Package pubsub implements a Google Cloud Pub/Sub run publisher.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"

	"github.com/fitsched/schedule-crawler/internal/crawl"
)

// Publisher pushes run summaries to a Pub/Sub topic.
type Publisher struct {
	topic *pubsub.Topic
}

// New creates a Publisher for the provided topic.
func New(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

// PublishRunResult marshals the summary to JSON and publishes it,
// returning the server-assigned message ID.
func (p *Publisher) PublishRunResult(ctx context.Context, summary crawl.RunSummary) (string, error) {
	if p.topic == nil {
		return "", fmt.Errorf("pubsub topic is not configured")
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return "", fmt.Errorf("marshal run summary: %w", err)
	}

	msg := &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"run_id": summary.RunID,
			"state":  string(summary.State),
		},
	}
	result := p.topic.Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish run summary: %w", err)
	}
	return id, nil
}

// Stop flushes pending messages and releases topic resources.
func (p *Publisher) Stop() {
	if p.topic != nil {
		p.topic.Stop()
	}
}
