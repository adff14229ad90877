package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/devicehub-backend/pkg/config"
	"github.com/angelmondragon/devicehub-backend/pkg/db/models"
	"github.com/angelmondragon/devicehub-backend/pkg/logger"
	"github.com/angelmondragon/devicehub-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize   = 50
	defaultPollMs      = 500
	defaultMaxAttempts = 10
	publishTimeout     = 15 * time.Second
	maxIdleBackoff     = 10 * time.Second
	jitterWindow       = 250 * time.Millisecond

	terminalReasonNonRetryable = "non_retryable"
	terminalReasonMaxAttempts  = "max_attempts"
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

// transport is the broker connection checked before polling starts.
type transport interface {
	Ping(context.Context) error
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

// outboundMessage is the broker-neutral form of an outbox row.
type outboundMessage struct {
	Key        string
	Data       []byte
	Attributes map[string]string
}

type publisherFactory func(topic string) publisher

// publisher blocks until the broker acknowledges the message. Permanent broker
// failures come back wrapped in registry.NonRetryableError.
type publisher interface {
	Publish(context.Context, outboundMessage) error
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	Transport        transport
	TransportName    string
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQTopic         string
}

// Service relays outbox rows to the broker in created_at order. Rows are
// locked for the length of one batch transaction, so several publishers can
// run side by side.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	transport        transport
	transportName    string
	registry         registryResolver
	publisherFactory publisherFactory
	dlqTopic         string
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	var missing error
	for name, present := range map[string]bool{
		"config":            params.Config != nil,
		"logger":            params.Logger != nil,
		"database client":   params.DB != nil,
		"transport":         params.Transport != nil,
		"outbox repository": params.Repository != nil,
		"event registry":    params.Registry != nil,
		"publisher factory": params.PublisherFactory != nil,
	} {
		if !present {
			missing = multierr.Append(missing, fmt.Errorf("%s is required", name))
		}
	}
	if missing != nil {
		return nil, missing
	}

	outboxCfg := params.Config.Outbox
	name := params.TransportName
	if name == "" {
		name = "transport"
	}
	return &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		transport:        params.Transport,
		transportName:    name,
		registry:         params.Registry,
		publisherFactory: params.PublisherFactory,
		dlqTopic:         params.DLQTopic,
		batchSize:        positiveOr(outboxCfg.BatchSize, defaultBatchSize),
		maxAttempts:      positiveOr(outboxCfg.MaxAttempts, defaultMaxAttempts),
		pollInterval:     time.Duration(positiveOr(outboxCfg.PollIntervalMS, defaultPollMs)) * time.Millisecond,
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is cancelled. A full batch is followed immediately by
// the next one; an empty batch waits one poll interval; a failing batch backs
// off exponentially up to maxIdleBackoff.
func (s *Service) Run(ctx context.Context) error {
	if err := multierr.Combine(
		s.ping(ctx, "database", s.db.Ping),
		s.ping(ctx, s.transportName, s.transport.Ping),
	); err != nil {
		return err
	}

	wait := s.pollInterval
	for ctx.Err() == nil {
		processed, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = nextBackoff(wait, s.pollInterval, maxIdleBackoff)
		case processed:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}
		if err := sleep(ctx, wait+jitter()); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox publisher stopping")
	return ctx.Err()
}

func (s *Service) ping(ctx context.Context, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		s.logg.Error(s.logg.WithField(ctx, "dependency", name), "outbox.ping_failed", err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// delivery is what happened to a single row within a batch.
type delivery struct {
	topic    string
	err      error
	terminal string
}

// processBatch reports whether any row was fetched.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	fetched := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		fetched = len(events)

		var published, retried, parked int
		for _, event := range events {
			result := s.deliver(ctx, event)
			switch {
			case result.terminal != "":
				parked++
				err = s.park(ctx, tx, event, result)
			case result.err != nil:
				retried++
				s.logg.Warn(s.eventContext(ctx, event, result), "outbox.publish_retry")
				err = s.repo.MarkFailedTx(tx, event.ID, result.err)
			default:
				published++
				err = s.repo.MarkPublishedTx(tx, event.ID)
			}
			if err != nil {
				return fmt.Errorf("settle outbox row %s: %w", event.ID, err)
			}
		}

		if fetched > 0 {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"fetched":   fetched,
				"published": published,
				"retried":   retried,
				"parked":    parked,
			}), "outbox.batch")
		}
		return nil
	})
	return fetched > 0, err
}

// deliver resolves and publishes one row without touching the database.
func (s *Service) deliver(ctx context.Context, event models.OutboxEvent) delivery {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return delivery{err: err, terminal: terminalReasonNonRetryable}
	}
	result := delivery{topic: resolved.Descriptor.Topic}

	pub := s.publisherFactory(result.topic)
	if pub == nil {
		result.err = fmt.Errorf("no publisher for topic %q", result.topic)
		result.terminal = terminalReasonNonRetryable
		return result
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result.err = pub.Publish(publishCtx, outboundMessage{
		Key:        event.AggregateID.String(),
		Data:       event.Payload,
		Attributes: messageAttributes(event),
	})

	switch {
	case result.err == nil:
	case registry.IsNonRetryable(result.err):
		result.terminal = terminalReasonNonRetryable
	case event.AttemptCount+1 >= s.maxAttempts:
		result.err = fmt.Errorf("max publish attempts reached: %w", result.err)
		result.terminal = terminalReasonMaxAttempts
	}
	return result
}

// park stops retrying the row and copies its payload to the dead-letter topic
// when one is configured. A dead-letter failure is logged, not retried.
func (s *Service) park(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, result delivery) error {
	logCtx := s.eventContext(ctx, event, result)
	s.logg.Warn(logCtx, "outbox.parked")

	if s.dlqTopic != "" {
		if err := s.deadLetter(ctx, event, result); err != nil {
			s.logg.Error(logCtx, "outbox.dead_letter_failed", err)
		}
	}
	return s.repo.MarkTerminalTx(tx, event.ID, result.err, s.maxAttempts)
}

func (s *Service) deadLetter(ctx context.Context, event models.OutboxEvent, result delivery) error {
	pub := s.publisherFactory(s.dlqTopic)
	if pub == nil {
		return fmt.Errorf("no publisher for dead-letter topic %q", s.dlqTopic)
	}
	attrs := messageAttributes(event)
	attrs["terminal_reason"] = result.terminal
	attrs["error"] = result.err.Error()

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return pub.Publish(publishCtx, outboundMessage{
		Key:        event.AggregateID.String(),
		Data:       event.Payload,
		Attributes: attrs,
	})
}

// messageAttributes mirrors the row metadata onto the message. event_id is the
// outbox row id, which is also the envelope's eventId.
func messageAttributes(event models.OutboxEvent) map[string]string {
	return map[string]string{
		"event_id":       event.ID.String(),
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"created_at":     event.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Service) eventContext(ctx context.Context, event models.OutboxEvent, result delivery) context.Context {
	fields := map[string]any{
		"event_id":      event.ID.String(),
		"event_type":    event.EventType,
		"aggregate_id":  event.AggregateID.String(),
		"attempt_count": event.AttemptCount + 1,
		"transport":     s.transportName,
	}
	if result.topic != "" {
		fields["topic"] = result.topic
	}
	if result.terminal != "" {
		fields["terminal_reason"] = result.terminal
	}
	if result.err != nil {
		fields["error"] = result.err.Error()
	}
	return s.logg.WithFields(ctx, fields)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current < base {
		current = base
	}
	return min(current*2, max)
}

func jitter() time.Duration {
	return rand.N(jitterWindow)
}
