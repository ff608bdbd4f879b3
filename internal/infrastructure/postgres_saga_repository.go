package infrastructure

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// PostgresSagaRepository implements domain.SagaRepository against the
// order_processing_saga table (C2).
type PostgresSagaRepository struct {
	db *sqlx.DB
}

func NewPostgresSagaRepository(db *sqlx.DB) *PostgresSagaRepository {
	return &PostgresSagaRepository{db: db}
}

// postgresSaga mirrors order_processing_saga's column layout.
type postgresSaga struct {
	ID                     string          `db:"id"`
	OrderID                string          `db:"order_id"`
	CustomerID             string          `db:"customer_id"`
	OrderNumber            string          `db:"order_number"`
	TotalAmount            int64           `db:"total_amount"`
	Currency               string          `db:"currency"`
	Status                 string          `db:"status"`
	CurrentStep            string          `db:"current_step"`
	PaymentID              *string         `db:"payment_id"`
	InventoryReservationID *string         `db:"inventory_reservation_id"`
	ShippingID             *string         `db:"shipping_id"`
	OrderItems             json.RawMessage `db:"order_items"`
	ShippingAddress        json.RawMessage `db:"shipping_address"`
	BillingAddress         json.RawMessage `db:"billing_address"`
	RetryCount             int             `db:"retry_count"`
	MaxRetries             int             `db:"max_retries"`
	ErrorMessage           *string         `db:"error_message"`
	CorrelationID          string          `db:"correlation_id"`
	CreatedAt              time.Time       `db:"created_at"`
	UpdatedAt              time.Time       `db:"updated_at"`
	CompletedAt            *time.Time      `db:"completed_at"`
	Version                int             `db:"version"`
}

const pgUniqueViolation = "23505"

func (r *PostgresSagaRepository) Create(ctx context.Context, saga *domain.Saga) error {
	query := `
		INSERT INTO order_processing_saga (
			id, order_id, customer_id, order_number, total_amount, currency,
			status, current_step, payment_id, inventory_reservation_id, shipping_id,
			order_items, shipping_address, billing_address, retry_count, max_retries,
			error_message, correlation_id, created_at, updated_at, completed_at, version
		) VALUES (
			:id, :order_id, :customer_id, :order_number, :total_amount, :currency,
			:status, :current_step, :payment_id, :inventory_reservation_id, :shipping_id,
			:order_items, :shipping_address, :billing_address, :retry_count, :max_retries,
			:error_message, :correlation_id, :created_at, :updated_at, :completed_at, :version
		)`

	_, err := r.db.NamedExecContext(ctx, query, toPostgresSaga(saga))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return apperrors.AlreadyExists("saga already exists for order", err)
		}
		return errors.Wrap(err, "failed to insert saga")
	}
	return nil
}

func (r *PostgresSagaRepository) FindByOrderID(ctx context.Context, orderID models.ID) (*domain.Saga, error) {
	query := `
		SELECT id, order_id, customer_id, order_number, total_amount, currency,
		       status, current_step, payment_id, inventory_reservation_id, shipping_id,
		       order_items, shipping_address, billing_address, retry_count, max_retries,
		       error_message, correlation_id, created_at, updated_at, completed_at, version
		FROM order_processing_saga
		WHERE order_id = $1`

	var row postgresSaga
	if err := r.db.GetContext(ctx, &row, query, orderID.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find saga by order id")
	}
	return fromPostgresSaga(&row), nil
}

func (r *PostgresSagaRepository) FindByID(ctx context.Context, id models.ID) (*domain.Saga, error) {
	query := `
		SELECT id, order_id, customer_id, order_number, total_amount, currency,
		       status, current_step, payment_id, inventory_reservation_id, shipping_id,
		       order_items, shipping_address, billing_address, retry_count, max_retries,
		       error_message, correlation_id, created_at, updated_at, completed_at, version
		FROM order_processing_saga
		WHERE id = $1`

	var row postgresSaga
	if err := r.db.GetContext(ctx, &row, query, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to find saga by id")
	}
	return fromPostgresSaga(&row), nil
}

// FindAll returns a page of sagas ordered newest-first for the admin
// listing endpoint.
func (r *PostgresSagaRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.Saga, error) {
	query := `
		SELECT id, order_id, customer_id, order_number, total_amount, currency,
		       status, current_step, payment_id, inventory_reservation_id, shipping_id,
		       order_items, shipping_address, billing_address, retry_count, max_retries,
		       error_message, correlation_id, created_at, updated_at, completed_at, version
		FROM order_processing_saga
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	var rows []postgresSaga
	if err := r.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to list sagas")
	}

	sagas := make([]*domain.Saga, len(rows))
	for i := range rows {
		sagas[i] = fromPostgresSaga(&rows[i])
	}
	return sagas, nil
}

func (r *PostgresSagaRepository) Save(ctx context.Context, saga *domain.Saga) error {
	query := `
		UPDATE order_processing_saga
		SET status = :status, current_step = :current_step, payment_id = :payment_id,
		    inventory_reservation_id = :inventory_reservation_id, shipping_id = :shipping_id,
		    retry_count = :retry_count, error_message = :error_message,
		    updated_at = :updated_at, completed_at = :completed_at, version = :version
		WHERE id = :id AND version = :old_version`

	pg := toPostgresSaga(saga)
	params := map[string]interface{}{
		"id":                       pg.ID,
		"status":                   pg.Status,
		"current_step":             pg.CurrentStep,
		"payment_id":               pg.PaymentID,
		"inventory_reservation_id": pg.InventoryReservationID,
		"shipping_id":              pg.ShippingID,
		"retry_count":              pg.RetryCount,
		"error_message":            pg.ErrorMessage,
		"updated_at":               pg.UpdatedAt,
		"completed_at":             pg.CompletedAt,
		"version":                  saga.Version.Value + 1,
		"old_version":              saga.Version.Value,
	}

	result, err := r.db.NamedExecContext(ctx, query, params)
	if err != nil {
		return errors.Wrap(err, "failed to update saga")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "failed to read rows affected")
	}
	if affected == 0 {
		return apperrors.Conflict("saga version mismatch", nil)
	}
	saga.Version = saga.Version.Update()
	return nil
}

func (r *PostgresSagaRepository) Delete(ctx context.Context, saga *domain.Saga) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM order_processing_saga WHERE id = $1`, saga.ID.String())
	if err != nil {
		return errors.Wrap(err, "failed to delete saga")
	}
	return nil
}

func (r *PostgresSagaRepository) FindStuck(ctx context.Context, statuses []domain.SagaStatus, olderThan time.Time) ([]*domain.Saga, error) {
	query := `
		SELECT id, order_id, customer_id, order_number, total_amount, currency,
		       status, current_step, payment_id, inventory_reservation_id, shipping_id,
		       order_items, shipping_address, billing_address, retry_count, max_retries,
		       error_message, correlation_id, created_at, updated_at, completed_at, version
		FROM order_processing_saga
		WHERE status = ANY($1) AND updated_at < $2`

	var rows []postgresSaga
	if err := r.db.SelectContext(ctx, &rows, query, pq.Array(statusStrings(statuses)), olderThan); err != nil {
		return nil, errors.Wrap(err, "failed to find stuck sagas")
	}

	sagas := make([]*domain.Saga, len(rows))
	for i := range rows {
		sagas[i] = fromPostgresSaga(&rows[i])
	}
	return sagas, nil
}

func (r *PostgresSagaRepository) CountByStatus(ctx context.Context, status domain.SagaStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM order_processing_saga WHERE status = $1`, string(status))
	if err != nil {
		return 0, errors.Wrap(err, "failed to count sagas by status")
	}
	return count, nil
}

func (r *PostgresSagaRepository) CountByStatusIn(ctx context.Context, statuses []domain.SagaStatus) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count, `SELECT count(*) FROM order_processing_saga WHERE status = ANY($1)`, pq.Array(statusStrings(statuses)))
	if err != nil {
		return 0, errors.Wrap(err, "failed to count sagas by status set")
	}
	return count, nil
}

func (r *PostgresSagaRepository) CountStuck(ctx context.Context, statuses []domain.SagaStatus, olderThan time.Time) (int64, error) {
	var count int64
	err := r.db.GetContext(ctx, &count,
		`SELECT count(*) FROM order_processing_saga WHERE status = ANY($1) AND updated_at < $2`,
		pq.Array(statusStrings(statuses)), olderThan)
	if err != nil {
		return 0, errors.Wrap(err, "failed to count stuck sagas")
	}
	return count, nil
}

func statusStrings(statuses []domain.SagaStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func toPostgresSaga(saga *domain.Saga) *postgresSaga {
	return &postgresSaga{
		ID:                     saga.ID.String(),
		OrderID:                saga.OrderID.String(),
		CustomerID:             saga.CustomerID,
		OrderNumber:            saga.OrderNumber,
		TotalAmount:            saga.TotalAmount.Amount,
		Currency:               saga.TotalAmount.Currency,
		Status:                 string(saga.Status),
		CurrentStep:            string(saga.CurrentStep),
		PaymentID:              saga.PaymentID,
		InventoryReservationID: saga.InventoryReservationID,
		ShippingID:             saga.ShippingID,
		OrderItems:             saga.OrderItems,
		ShippingAddress:        saga.ShippingAddress,
		BillingAddress:         saga.BillingAddress,
		RetryCount:             saga.RetryCount,
		MaxRetries:             saga.MaxRetries,
		ErrorMessage:           saga.ErrorMessage,
		CorrelationID:          saga.CorrelationID.String(),
		CreatedAt:              saga.Timestamps.CreatedAt,
		UpdatedAt:              saga.Timestamps.UpdatedAt,
		CompletedAt:            saga.CompletedAt,
		Version:                saga.Version.Value,
	}
}

func fromPostgresSaga(pg *postgresSaga) *domain.Saga {
	return &domain.Saga{
		ID:                     models.ID(pg.ID),
		OrderID:                models.ID(pg.OrderID),
		CustomerID:             pg.CustomerID,
		OrderNumber:            pg.OrderNumber,
		TotalAmount:            models.NewMoney(pg.TotalAmount, pg.Currency),
		Status:                 domain.SagaStatus(pg.Status),
		CurrentStep:            domain.ProcessingStep(pg.CurrentStep),
		PaymentID:              pg.PaymentID,
		InventoryReservationID: pg.InventoryReservationID,
		ShippingID:             pg.ShippingID,
		OrderItems:             pg.OrderItems,
		ShippingAddress:        pg.ShippingAddress,
		BillingAddress:         pg.BillingAddress,
		RetryCount:             pg.RetryCount,
		MaxRetries:             pg.MaxRetries,
		ErrorMessage:           pg.ErrorMessage,
		CorrelationID:          models.ID(pg.CorrelationID),
		Timestamps: models.Timestamps{
			CreatedAt: pg.CreatedAt,
			UpdatedAt: pg.UpdatedAt,
		},
		CompletedAt: pg.CompletedAt,
		Version:     models.Version{Value: pg.Version},
	}
}
