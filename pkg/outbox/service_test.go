package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/homedoc-backend/pkg/db/dbtest"
	"github.com/angelmondragon/homedoc-backend/pkg/db/models"
	"github.com/angelmondragon/homedoc-backend/pkg/enums"
)

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	orderID := uuid.New()
	profileID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateMedicationOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{ProfileID: profileID, Role: "doctor"},
			Data:          map[string]string{"order_id": orderID.String()},
		})
	})
	require.NoError(t, err)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, orderID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 1, envelope.Version)
	require.NotEmpty(t, envelope.EventID)
	require.False(t, envelope.OccurredAt.IsZero())
	require.Equal(t, profileID, envelope.Actor.ProfileID)
	require.JSONEq(t, `{"order_id":"`+orderID.String()+`"}`, string(envelope.Data))
}

func TestEmitRequiresTransactionAndKnownType(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	require.Error(t, svc.Emit(context.Background(), nil, DomainEvent{EventType: enums.EventOrderPaid}))

	conn := dbtest.Open(t)
	err := svc.Emit(context.Background(), conn, DomainEvent{EventType: "order_lost"})
	require.Error(t, err)

	err = svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateMedicationOrder,
	})
	require.ErrorContains(t, err, "without aggregate id")
}

func TestRollbackDiscardsEvent(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateMedicationOrder,
			AggregateID:   uuid.New(),
			Data:          map[string]any{},
		}); err != nil {
			return err
		}
		return gorm.ErrInvalidData
	})
	require.Error(t, err)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestMarkPublishedAndFailed(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	row := models.OutboxEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateMedicationOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
	}
	require.NoError(t, conn.Create(&row).Error)

	require.NoError(t, repo.MarkFailedTx(conn, row.ID, gorm.ErrInvalidData))
	var stored models.OutboxEvent
	require.NoError(t, conn.First(&stored, "id = ?", row.ID).Error)
	require.Equal(t, 1, stored.AttemptCount)
	require.NotNil(t, stored.LastError)

	require.NoError(t, repo.MarkPublishedTx(conn, row.ID))
	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestDeadLetterPinsRowAndCopiesPayload(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	row := models.OutboxEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateMedicationOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{"version":1}`),
		AttemptCount:  2,
	}
	require.NoError(t, conn.Create(&row).Error)

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	cause := errors.New(strings.Repeat("e", maxDeadLetterMessage+10))
	require.NoError(t, repo.DeadLetterTx(conn, rows[0], enums.OutboxDLQReasonMaxAttempts, cause, 3))

	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 3)
	require.NoError(t, err)
	require.Empty(t, rows)

	var letter models.OutboxDLQ
	require.NoError(t, conn.First(&letter, "event_id = ?", row.ID).Error)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, letter.ErrorReason)
	require.Equal(t, 2, letter.AttemptCount)
	require.JSONEq(t, `{"version":1}`, string(letter.Payload))
	require.Len(t, *letter.ErrorMessage, maxDeadLetterMessage)

	require.ErrorIs(t, repo.DeadLetterTx(nil, row, enums.OutboxDLQReasonNonRetryable, cause, 3), errTxRequired)
	require.ErrorIs(t, repo.MarkPublishedTx(nil, row.ID), errTxRequired)
}

func TestEmitHonoursExplicitVersionAndTime(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc := NewService(repo, nil)
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.FixedZone("EST", -5*3600))

	require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateMedicationOrder,
		AggregateID:   uuid.New(),
		Version:       2,
		OccurredAt:    at,
	}))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, 2, envelope.Version)
	require.True(t, envelope.OccurredAt.Equal(at))
	require.Equal(t, time.UTC, envelope.OccurredAt.Location())
	require.JSONEq(t, `null`, string(envelope.Data))
}

func TestEmitRejectsInvalidEventsWithSentinel(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), dbtest.Open(t), DomainEvent{EventType: enums.EventOrderPaid, AggregateType: "prescription"})
	require.ErrorIs(t, err, errInvalidEvent)
	require.ErrorContains(t, err, `unknown aggregate type "prescription"`)
}
