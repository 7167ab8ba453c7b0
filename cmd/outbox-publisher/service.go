package main

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/homedoc-backend/pkg/config"
	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	"github.com/angelmondragon/homedoc-backend/pkg/enums"
	"github.com/angelmondragon/homedoc-backend/pkg/logger"
	"github.com/angelmondragon/homedoc-backend/pkg/metrics"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox"
	"github.com/angelmondragon/homedoc-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	publishTimeout      = 15 * time.Second
	maxErrorWait        = 10 * time.Second
	pollJitter          = 100 * time.Millisecond
)

type transactor interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type broker interface {
	Ping(context.Context) error
	Publisher(topic string) *gcppubsub.Publisher
}

type outboxStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, cause error) error
	DeadLetterTx(tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, terminalAttempts int) error
}

type router interface {
	Route(models.OutboxEvent) (registry.Route, error)
}

// topicPublisher is the slice of *pubsub.Publisher the relay drives.
type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type ServiceParams struct {
	Config *config.Config
	Logger *logger.Logger
	DB     transactor
	PubSub broker
	Store  outboxStore
	Router router
	// OpenPublisher overrides how topic publishers are created.
	OpenPublisher func(topic string) topicPublisher
	Metrics       *metrics.OutboxMetrics
}

// Service relays committed order_paid rows to Pub/Sub. Messages carry the
// doctor ordering key, so a failed publish holds back that doctor's later
// rows until the next batch.
type Service struct {
	logg         *logger.Logger
	db           transactor
	pubsub       broker
	store        outboxStore
	router       router
	publishers   *publisherSet
	metrics      *metrics.OutboxMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Config == nil:
		return nil, errors.New("config is required")
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database client is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Store == nil:
		return nil, errors.New("outbox store is required")
	case params.Router == nil:
		return nil, errors.New("event router is required")
	}

	open := params.OpenPublisher
	if open == nil {
		open = orderedPublisher(params.PubSub)
	}

	cfg := params.Config.Outbox
	svc := &Service{
		logg:         params.Logger,
		db:           params.DB,
		pubsub:       params.PubSub,
		store:        params.Store,
		router:       params.Router,
		publishers:   &publisherSet{open: open, byTopic: map[string]topicPublisher{}},
		metrics:      params.Metrics,
		batchSize:    positiveOr(cfg.BatchSize, defaultBatchSize),
		maxAttempts:  positiveOr(cfg.MaxAttempts, defaultMaxAttempts),
		pollInterval: defaultPollInterval,
	}
	if cfg.PollIntervalMS > 0 {
		svc.pollInterval = time.Duration(cfg.PollIntervalMS) * time.Millisecond
	}
	return svc, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run drains the outbox until ctx is canceled. Idle polls wait pollInterval;
// failed batches back off exponentially up to maxErrorWait.
func (s *Service) Run(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub ping failed: %w", err)
	}
	defer s.publishers.stopAll()

	idle := retry.WithJitter(pollJitter, retry.NewConstant(s.pollInterval))
	failing := s.errorBackoff()
	for {
		if err := ctx.Err(); err != nil {
			s.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		wait := idle
		relayed, err := s.drain(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox relay batch failed", err)
			wait = failing
		case relayed > 0:
			failing = s.errorBackoff()
			continue
		default:
			failing = s.errorBackoff()
		}

		delay, _ := wait.Next()
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox relay stopping")
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Service) errorBackoff() retry.Backoff {
	return retry.WithCappedDuration(maxErrorWait, retry.NewExponential(s.pollInterval))
}

type outcome int

const (
	delivered outcome = iota
	// held rows stay untouched because an earlier row with the same
	// ordering key failed in this batch.
	held
	retryLater
	deadLetter
)

type delivery struct {
	outcome outcome
	route   registry.Route
	reason  enums.OutboxDLQErrorReason
	err     error
}

// drain relays one locked batch and returns how many rows it fetched.
func (s *Service) drain(ctx context.Context) (int, error) {
	started := time.Now()
	defer func() { s.metrics.ObserveBatch(time.Since(started)) }()

	fetched := 0
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := s.store.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		fetched = len(rows)

		stalled := map[string]struct{}{}
		for _, row := range rows {
			if err := s.settle(ctx, tx, row, s.deliver(ctx, row, stalled)); err != nil {
				return err
			}
		}
		return nil
	})
	return fetched, err
}

func (s *Service) deliver(ctx context.Context, row models.OutboxEvent, stalled map[string]struct{}) delivery {
	route, err := s.router.Route(row)
	if err != nil {
		return delivery{outcome: deadLetter, reason: enums.OutboxDLQReasonNonRetryable, err: err}
	}
	if _, ok := stalled[route.OrderingKey]; ok {
		return delivery{outcome: held, route: route}
	}

	pub := s.publishers.get(route.Topic)
	if pub == nil {
		return delivery{outcome: deadLetter, route: route, reason: enums.OutboxDLQReasonNonRetryable,
			err: fmt.Errorf("no publisher for topic %s", route.Topic)}
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	_, err = pub.Publish(publishCtx, &gcppubsub.Message{
		Data:        row.Payload,
		Attributes:  route.Attributes,
		OrderingKey: route.OrderingKey,
	}).Get(publishCtx)
	if err == nil {
		return delivery{outcome: delivered, route: route}
	}

	// The client pauses a key after a failure; resume it so the next batch
	// can retry, and hold this key's later rows for now.
	pub.ResumePublish(route.OrderingKey)
	stalled[route.OrderingKey] = struct{}{}

	if row.AttemptCount+1 >= s.maxAttempts {
		return delivery{outcome: deadLetter, route: route, reason: enums.OutboxDLQReasonMaxAttempts,
			err: fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)}
	}
	return delivery{outcome: retryLater, route: route, err: err}
}

func (s *Service) settle(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, d delivery) error {
	fields := map[string]any{
		"outbox_id":     row.ID.String(),
		"attempt_count": row.AttemptCount,
	}
	for k, v := range d.route.Attributes {
		fields[k] = v
	}
	if d.route.OrderingKey != "" {
		fields["ordering_key"] = d.route.OrderingKey
	}
	logCtx := s.logg.WithFields(ctx, fields)
	eventType := string(row.EventType)

	switch d.outcome {
	case delivered:
		if err := s.store.MarkPublishedTx(tx, row.ID); err != nil {
			return fmt.Errorf("mark %s published: %w", row.ID, err)
		}
		s.metrics.IncPublished(eventType)
		s.logg.Info(logCtx, "outbox event published")
	case held:
		s.logg.Info(logCtx, "outbox event held behind failed ordering key")
	case retryLater:
		if err := s.store.MarkFailedTx(tx, row.ID, d.err); err != nil {
			return fmt.Errorf("mark %s failed: %w", row.ID, err)
		}
		s.metrics.IncFailed(eventType)
		s.logg.Warn(s.logg.WithField(logCtx, "error", d.err.Error()), "outbox publish failed")
	case deadLetter:
		if d.reason == enums.OutboxDLQReasonMaxAttempts {
			row.AttemptCount++
			s.metrics.IncFailed(eventType)
		}
		if err := s.store.DeadLetterTx(tx, row, d.reason, d.err, s.maxAttempts); err != nil {
			return fmt.Errorf("dead-letter %s: %w", row.ID, err)
		}
		s.metrics.IncDeadLettered(string(d.reason))
		s.logg.Warn(s.logg.WithFields(logCtx, map[string]any{
			"error":        d.err.Error(),
			"error_reason": d.reason,
		}), "outbox event dead-lettered")
	}
	return nil
}

// publisherSet opens one publisher per topic and flushes them all on shutdown.
type publisherSet struct {
	mu      sync.Mutex
	open    func(topic string) topicPublisher
	byTopic map[string]topicPublisher
}

func (p *publisherSet) get(topic string) topicPublisher {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pub, ok := p.byTopic[topic]; ok {
		return pub
	}
	pub := p.open(topic)
	if pub != nil {
		p.byTopic[topic] = pub
	}
	return pub
}

func (p *publisherSet) stopAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for topic, pub := range p.byTopic {
		pub.Stop()
		delete(p.byTopic, topic)
	}
}

func orderedPublisher(b broker) func(topic string) topicPublisher {
	return func(topic string) topicPublisher {
		pub := b.Publisher(topic)
		if pub == nil {
			return nil
		}
		pub.EnableMessageOrdering = true
		return gcpPublisher{pub}
	}
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return p.Publisher.Publish(ctx, msg)
}

var _ outboxStore = (*outbox.Repository)(nil)
