package infrastructure

import (
	"context"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/application"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// PostgresSagaEventLog implements application.EventLog against the
// append-only saga_event_log audit table: one row per processed inbound
// event, independent of the saga row's own lifecycle.
type PostgresSagaEventLog struct {
	db *sqlx.DB
}

func NewPostgresSagaEventLog(db *sqlx.DB) *PostgresSagaEventLog {
	return &PostgresSagaEventLog{db: db}
}

type postgresSagaEventLogRow struct {
	ID               string    `db:"id"`
	SagaID           string    `db:"saga_id"`
	EventType        string    `db:"event_type"`
	Payload          []byte    `db:"payload"`
	CorrelationID    string    `db:"correlation_id"`
	ProcessingStatus string    `db:"processing_status"`
	CreatedAt        time.Time `db:"created_at"`
}

func (l *PostgresSagaEventLog) Record(ctx context.Context, sagaID models.ID, eventType string, payload []byte, correlationID models.ID, status application.ProcessingStatus) error {
	if payload == nil {
		payload = []byte("null")
	}

	row := postgresSagaEventLogRow{
		ID:               uuid.New().String(),
		SagaID:           sagaID.String(),
		EventType:        eventType,
		Payload:          payload,
		CorrelationID:    correlationID.String(),
		ProcessingStatus: string(status),
		CreatedAt:        time.Now(),
	}

	query := `
		INSERT INTO saga_event_log (
			id, saga_id, event_type, payload, correlation_id, processing_status, created_at
		) VALUES (
			:id, :saga_id, :event_type, :payload, :correlation_id, :processing_status, :created_at
		)`

	if _, err := l.db.NamedExecContext(ctx, query, row); err != nil {
		return errors.Wrap(err, "failed to record saga event log entry")
	}
	return nil
}
