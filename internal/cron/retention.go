package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/homedoc-backend/pkg/logger"
)

const (
	defaultOutboxRetention       = 30 * 24 * time.Hour
	defaultNotificationRetention = 90 * 24 * time.Hour
	defaultTerminalAttempts      = 10
)

// retentionJob deletes rows older than now minus retention.
type retentionJob struct {
	name      string
	logg      *logger.Logger
	retention time.Duration
	now       func() time.Time
	prune     func(ctx context.Context, cutoff time.Time) (int64, error)
	fields    map[string]any
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.prune(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	ctx = j.logg.WithFields(ctx, j.fields)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{"cutoff": cutoff, "rows_deleted": deleted}), j.name+" complete")
	return nil
}

func newRetentionJob(name string, logg *logger.Logger, retention, fallback time.Duration) *retentionJob {
	if retention <= 0 {
		retention = fallback
	}
	return &retentionJob{name: name, logg: logg, retention: retention, now: time.Now}
}

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	// Retention is how long delivered or dead-lettered rows are kept.
	Retention time.Duration
	// TerminalAttempts matches the publisher's max attempts; rows at that count
	// already have a DLQ copy.
	TerminalAttempts int
}

type outboxPruner interface {
	DeleteSettledBefore(tx *gorm.DB, cutoff time.Time, terminalAttempts int) (int64, error)
}

// NewOutboxRetentionJob prunes outbox rows that no publisher will touch again.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	terminal := params.TerminalAttempts
	if terminal <= 0 {
		terminal = defaultTerminalAttempts
	}
	job := newRetentionJob("outbox-retention", params.Logger, params.Retention, defaultOutboxRetention)
	job.fields = map[string]any{"terminal_attempts": terminal}
	job.prune = func(ctx context.Context, cutoff time.Time) (deleted int64, err error) {
		err = params.DB.WithTx(ctx, func(tx *gorm.DB) error {
			deleted, err = params.Repository.DeleteSettledBefore(tx, cutoff, terminal)
			return err
		})
		return deleted, err
	}
	return job, nil
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository readNotificationPruner
	Retention  time.Duration
}

type readNotificationPruner interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob drops read notifications past the retention window.
// Unread entries are never removed.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Repository == nil:
		return nil, errors.New("notifications repository required")
	}
	job := newRetentionJob("notification-cleanup", params.Logger, params.Retention, defaultNotificationRetention)
	job.prune = params.Repository.DeleteReadBefore
	return job, nil
}
