package infrastructure

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/aioutlet/order-saga-coordinator/internal/apperrors"
	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresSagaRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	sqlxDB := sqlx.NewDb(db, "postgres")
	return NewPostgresSagaRepository(sqlxDB), mock
}

func newTestDomainSaga(t *testing.T) *domain.Saga {
	t.Helper()
	saga, err := domain.NewSaga(models.GenerateUUID(), "cust-1", "ORD-4001", models.NewMoney(1000, "USD"), "", nil, nil, nil, 3)
	require.NoError(t, err)
	saga.ClearEvents()
	return saga
}

func TestPostgresSagaRepository_Create(t *testing.T) {
	t.Run("inserts the row", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		saga := newTestDomainSaga(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_processing_saga")).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := repo.Create(context.Background(), saga)
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps a unique violation to ALREADY_EXISTS", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		saga := newTestDomainSaga(t)

		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_processing_saga")).
			WillReturnError(&pq.Error{Code: pgUniqueViolation})

		err := repo.Create(context.Background(), saga)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryAlreadyExists))
	})
}

func TestPostgresSagaRepository_FindByOrderID(t *testing.T) {
	columns := []string{
		"id", "order_id", "customer_id", "order_number", "total_amount", "currency",
		"status", "current_step", "payment_id", "inventory_reservation_id", "shipping_id",
		"order_items", "shipping_address", "billing_address", "retry_count", "max_retries",
		"error_message", "correlation_id", "created_at", "updated_at", "completed_at", "version",
	}

	t.Run("returns the saga when found", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		id := models.GenerateUUID()
		orderID := models.GenerateUUID()
		now := time.Now()

		rows := sqlmock.NewRows(columns).AddRow(
			id.String(), orderID.String(), "cust-1", "ORD-5001", int64(1000), "USD",
			"PAYMENT_PROCESSING", "PAYMENT", nil, nil, nil,
			[]byte("[]"), []byte("{}"), []byte("{}"), 0, 3,
			nil, models.GenerateUUID().String(), now, now, nil, 0,
		)
		mock.ExpectQuery(regexp.QuoteMeta("FROM order_processing_saga")).WillReturnRows(rows)

		saga, err := repo.FindByOrderID(context.Background(), orderID)
		require.NoError(t, err)
		require.NotNil(t, saga)
		assert.Equal(t, orderID, saga.OrderID)
		assert.Equal(t, domain.SagaStatusPaymentProcessing, saga.Status)
	})

	t.Run("returns nil, nil when no row matches", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM order_processing_saga")).WillReturnError(sql.ErrNoRows)

		saga, err := repo.FindByOrderID(context.Background(), models.GenerateUUID())
		require.NoError(t, err)
		assert.Nil(t, saga)
	})
}

func TestPostgresSagaRepository_Save(t *testing.T) {
	t.Run("bumps the version on a successful update", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		saga := newTestDomainSaga(t)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE order_processing_saga")).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := repo.Save(context.Background(), saga)
		require.NoError(t, err)
		assert.Equal(t, 1, saga.Version.Value)
	})

	t.Run("maps zero rows affected to CONFLICT", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		saga := newTestDomainSaga(t)

		mock.ExpectExec(regexp.QuoteMeta("UPDATE order_processing_saga")).
			WillReturnResult(sqlmock.NewResult(0, 0))

		err := repo.Save(context.Background(), saga)
		assert.True(t, apperrors.IsCategory(err, apperrors.CategoryConflict))
	})
}

func TestPostgresSagaRepository_Delete(t *testing.T) {
	repo, mock := newMockRepo(t)
	saga := newTestDomainSaga(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM order_processing_saga")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Delete(context.Background(), saga)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSagaRepository_CountByStatus(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM order_processing_saga WHERE status = $1")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

	count, err := repo.CountByStatus(context.Background(), domain.SagaStatusPaymentProcessing)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
