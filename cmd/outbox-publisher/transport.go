package main

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/devicehub-backend/pkg/kafka"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox/registry"
	"github.com/angelmondragon/devicehub-backend/pkg/pubsub"
)

type pubSubClient interface {
	Publisher(name string) *gcppubsub.Publisher
}

func pubSubPublisherFactory(client pubSubClient) publisherFactory {
	return func(topic string) publisher {
		p := client.Publisher(topic)
		if p == nil {
			return nil
		}
		return &gcpPublisher{publisher: p}
	}
}

// gcpPublisher publishes with the aggregate id as ordering key. A failed
// publish pauses that key inside the client, so it is resumed before the row
// is retried on a later batch.
type gcpPublisher struct {
	publisher *gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg outboundMessage) error {
	if p == nil || p.publisher == nil {
		return registry.NewNonRetryableError(errors.New("pubsub publisher is nil"))
	}
	result := p.publisher.Publish(ctx, &gcppubsub.Message{
		Data:        msg.Data,
		Attributes:  msg.Attributes,
		OrderingKey: msg.Key,
	})
	if _, err := result.Get(ctx); err != nil {
		if msg.Key != "" {
			p.publisher.ResumePublish(msg.Key)
		}
		return classifyPublishError(err, pubsub.IsPermanent)
	}
	return nil
}

type kafkaProducer interface {
	Publish(context.Context, kafka.Message) error
}

func kafkaPublisherFactory(producer kafkaProducer) publisherFactory {
	return func(topic string) publisher {
		if producer == nil || topic == "" {
			return nil
		}
		return &kafkaPublisher{producer: producer, topic: topic}
	}
}

type kafkaPublisher struct {
	producer kafkaProducer
	topic    string
}

func (p *kafkaPublisher) Publish(ctx context.Context, msg outboundMessage) error {
	err := p.producer.Publish(ctx, kafka.Message{
		Topic:   p.topic,
		Key:     []byte(msg.Key),
		Value:   msg.Data,
		Headers: msg.Attributes,
	})
	if err != nil {
		return classifyPublishError(err, func(e error) bool { return !kafka.IsRetryable(e) })
	}
	return nil
}

// classifyPublishError marks errors the transport will keep rejecting as
// non-retryable so the row is parked instead of retried.
func classifyPublishError(err error, permanent func(error) bool) error {
	if !permanent(err) {
		return fmt.Errorf("transient publish failure: %w", err)
	}
	return registry.NewNonRetryableError(fmt.Errorf("permanent publish failure: %w", err))
}
