package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zelyx-order-tracker/internal/client"
	"zelyx-order-tracker/internal/config"
	"zelyx-order-tracker/internal/dto"
	"zelyx-order-tracker/internal/model"
	"zelyx-order-tracker/internal/repository"
	"zelyx-order-tracker/internal/scheduler"
	"zelyx-order-tracker/internal/service"
)

// shopBackend serves one bank deposit order awaiting payment.
func shopBackend(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders/ORD-1001", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"_id":"64f0","orderNumber":"ORD-1001","status":"pending","paymentMethod":"bank_deposit","paymentStatus":"pending","paymentConfirmed":false,"total":"25.00","currency":"USD","items":[]}}`))
	})
	mux.HandleFunc("GET /orders/ORD-1001/timeout", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"data":{"timeRemainingMs":3600000,"expired":false}}`))
	})
	mux.HandleFunc("PUT /orders/64f0/confirm-payment", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"message":"Order not found"}`))
	})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	backend := shopBackend(t)
	shopClient := client.NewShopClient(&config.Shop{BaseApiURL: backend.URL, Timeout: 5 * time.Second})
	sched := scheduler.NewManual(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tracker := service.NewTrackerService(shopClient, repository.NewMemoryDeadlineRepository(), sched,
		config.Tracker{
			OrderStatusPollInterval:  10 * time.Second,
			BankTransferPollInterval: 30 * time.Second,
			TickInterval:             time.Second,
			PaymentWindow:            6 * time.Hour,
		},
		config.Receipt{MaxSizeBytes: 1 << 20}, 5*time.Second, logger)
	t.Cleanup(tracker.Shutdown)

	return NewServer(tracker, config.HTTPServer{AdminToken: "s3cret"}, config.Receipt{MaxSizeBytes: 1 << 20})
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSessionRoutes(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/ORD-1001/sessions?view=bank-transfer", nil))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders/ORD-1001/sessions/bank-transfer", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var view dto.SessionView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, model.StageAwaitingPayment, view.Stage)
	assert.Equal(t, int64(3600000), view.Countdown.RemainingMs)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/orders/ORD-1001/sessions/bank-transfer", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/orders/ORD-9/sessions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminRoutesRequireToken(t *testing.T) {
	s := newTestServer(t)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/admin/orders/64f0/confirm-payment", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPut, "/api/admin/orders/64f0/confirm-payment", nil)
	req.Header.Set("Authorization", "Bearer s3cret")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
