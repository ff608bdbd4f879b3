package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aioutlet/order-saga-coordinator/internal/domain"
	"github.com/aioutlet/order-saga-coordinator/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAdminRouter(repo *stubSagaRepository) chi.Router {
	r := chi.NewRouter()
	NewAdminHandlers(repo).RegisterRoutes(r)
	return r
}

func TestAdminHandlers_GetSagaByOrderID(t *testing.T) {
	t.Run("200 with the saga body when found", func(t *testing.T) {
		repo := newStubSagaRepository()
		saga, err := domain.NewSaga(models.GenerateUUID(), "cust-1", "ORD-6001", models.NewMoney(500, "USD"), "", nil, nil, nil, 3)
		require.NoError(t, err)
		require.NoError(t, repo.Create(context.Background(), saga))

		router := newTestAdminRouter(repo)
		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/sagas/order/"+string(saga.OrderID), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("404 when no saga exists for the order", func(t *testing.T) {
		repo := newStubSagaRepository()
		router := newTestAdminRouter(repo)

		req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/sagas/order/"+string(models.GenerateUUID()), nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAdminHandlers_ListSagas(t *testing.T) {
	repo := newStubSagaRepository()
	for i := 0; i < 3; i++ {
		saga, err := domain.NewSaga(models.GenerateUUID(), "cust-1", fmt.Sprintf("ORD-700%d", i), models.NewMoney(100, "USD"), "", nil, nil, nil, 3)
		require.NoError(t, err)
		require.NoError(t, repo.Create(context.Background(), saga))
	}

	router := newTestAdminRouter(repo)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/sagas/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminHandlers_SagaStats(t *testing.T) {
	repo := newStubSagaRepository()
	saga, err := domain.NewSaga(models.GenerateUUID(), "cust-1", "ORD-8001", models.NewMoney(100, "USD"), "", nil, nil, nil, 3)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), saga))

	router := newTestAdminRouter(repo)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/sagas/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "PAYMENT_PROCESSING")
}

type alwaysHealthy struct{}

func (alwaysHealthy) IsHealthy(ctx context.Context) error { return nil }

type alwaysUnhealthy struct{ err error }

func (c alwaysUnhealthy) IsHealthy(ctx context.Context) error { return c.err }

func TestHealthHandler(t *testing.T) {
	t.Run("200 when every checker is healthy", func(t *testing.T) {
		handler := NewHealthHandler(alwaysHealthy{})
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("503 when any checker fails", func(t *testing.T) {
		handler := NewHealthHandler(alwaysHealthy{}, alwaysUnhealthy{err: assertErr("broker down")})
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
