package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/kasirkita/backend-kasir/internal/events"
	"github.com/kasirkita/backend-kasir/internal/payment"
	"github.com/kasirkita/backend-kasir/internal/pricing"
	"github.com/kasirkita/backend-kasir/internal/receipt"
)

type fakeTxnGetter struct {
	txn payment.Transaction
	err error
}

func (f fakeTxnGetter) GetByID(_ context.Context, _, _ string) (payment.Transaction, error) {
	return f.txn, f.err
}

func sampleTransaction() payment.Transaction {
	return payment.Transaction{
		ID:          uuid.New(),
		TenantID:    "toko-utama",
		OrderNo:     "TRX-20250812-000042",
		CashierName: "Budi",
		Items: []pricing.Line{
			{Name: "Kopi Susu", Qty: 2, UnitPrice: 18000, Total: 36000},
		},
		Totals:    pricing.Totals{Subtotal: 36000, Total: 36000},
		Payments:  []payment.Payment{{Method: payment.MethodCash, Amount: 36000}},
		CreatedAt: time.Date(2025, 8, 12, 10, 30, 0, 0, time.UTC),
	}
}

func TestReceiptDeliveryPostsRenderedText(t *testing.T) {
	var gotBody string
	var gotTenant, gotOrder string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotTenant = r.Header.Get("X-Tenant-ID")
		gotOrder = r.Header.Get("X-Order-No")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	txn := sampleTransaction()
	h := &ReceiptDeliveryHandler{
		Store:      fakeTxnGetter{txn: txn},
		Company:    receipt.CompanyInfo{Name: "Toko Utama"},
		WebhookURL: srv.URL,
		Logger:     zerolog.Nop(),
	}

	task, err := NewReceiptDeliverTask("toko-utama", txn.ID.String())
	require.NoError(t, err)

	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Equal(t, "toko-utama", gotTenant)
	require.Equal(t, "TRX-20250812-000042", gotOrder)
	require.Contains(t, gotBody, "Toko Utama")
	require.Contains(t, gotBody, "Kopi Susu")
	require.Contains(t, gotBody, "Terima kasih")
}

func TestReceiptDeliveryRejectedStatusFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	txn := sampleTransaction()
	h := &ReceiptDeliveryHandler{
		Store:      fakeTxnGetter{txn: txn},
		WebhookURL: srv.URL,
		Logger:     zerolog.Nop(),
	}
	task, err := NewReceiptDeliverTask("toko-utama", txn.ID.String())
	require.NoError(t, err)

	err = h.ProcessTask(context.Background(), task)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 502")
}

func TestReceiptDeliverySkipsWithoutWebhook(t *testing.T) {
	h := &ReceiptDeliveryHandler{
		Store:  fakeTxnGetter{err: errors.New("should not be called")},
		Logger: zerolog.Nop(),
	}
	task, err := NewReceiptDeliverTask("toko-utama", uuid.NewString())
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
}

func TestReceiptDeliveryBadPayloadSkipsRetry(t *testing.T) {
	h := &ReceiptDeliveryHandler{WebhookURL: "http://localhost:0", Logger: zerolog.Nop()}
	task := asynq.NewTask(TypeReceiptDeliver, []byte("{not json"))

	err := h.ProcessTask(context.Background(), task)
	require.Error(t, err)
	require.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestNewReceiptDeliverTaskPayload(t *testing.T) {
	task, err := NewReceiptDeliverTask("toko-utama", "abc-123")
	require.NoError(t, err)
	require.Equal(t, TypeReceiptDeliver, task.Type())

	var payload ReceiptDeliverPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, "toko-utama", payload.TenantID)
	require.Equal(t, "abc-123", payload.TransactionID)
}

func TestSchedulerIgnoresUnrelatedTopics(t *testing.T) {
	s := Scheduler{Client: &asynq.Client{}}
	ev := events.Event{
		ID:       uuid.New(),
		TenantID: "toko-utama",
		Topic:    events.TopicShiftOpened,
		Payload:  json.RawMessage(`{"shiftId":"x"}`),
	}
	require.NoError(t, s.Schedule(context.Background(), ev))
}
