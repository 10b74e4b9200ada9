package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/kasirkita/backend-kasir/internal/events"
	"github.com/kasirkita/backend-kasir/internal/obs"
	"github.com/kasirkita/backend-kasir/internal/payment"
	"github.com/kasirkita/backend-kasir/internal/receipt"
	"github.com/kasirkita/backend-kasir/internal/tenant"
)

// TypeReceiptDeliver is the asynq task type for receipt webhook delivery.
const TypeReceiptDeliver = "receipt:deliver"

// ReceiptDeliverPayload identifies the transaction whose receipt to deliver.
type ReceiptDeliverPayload struct {
	TenantID      string `json:"tenantId"`
	TransactionID string `json:"transactionId"`
}

// NewReceiptDeliverTask builds the delivery task for a completed transaction.
func NewReceiptDeliverTask(tenantID, transactionID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ReceiptDeliverPayload{TenantID: tenantID, TransactionID: transactionID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeReceiptDeliver, payload, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)), nil
}

// Scheduler bridges the domain event bus to the asynq queue: completed
// and refunded transactions get their receipt delivery enqueued.
type Scheduler struct {
	Client *asynq.Client
}

// Schedule implements events.DeliveryScheduler.
func (s Scheduler) Schedule(ctx context.Context, event events.Event) error {
	if s.Client == nil {
		return nil
	}
	switch event.Topic {
	case events.TopicTransactionCompleted, events.TopicTransactionRefunded:
	default:
		return nil
	}
	var body struct {
		TransactionID string `json:"transactionId"`
	}
	if err := json.Unmarshal(event.Payload, &body); err != nil || body.TransactionID == "" {
		return fmt.Errorf("schedule receipt delivery: missing transaction id")
	}
	task, err := NewReceiptDeliverTask(event.TenantID, body.TransactionID)
	if err != nil {
		return err
	}
	_, err = s.Client.EnqueueContext(ctx, task)
	return err
}

type transactionGetter interface {
	GetByID(ctx context.Context, tenantID, id string) (payment.Transaction, error)
}

// ReceiptDeliveryHandler renders the receipt and POSTs it to the
// configured webhook. A missing webhook URL makes delivery a no-op.
type ReceiptDeliveryHandler struct {
	Store      transactionGetter
	Company    receipt.CompanyInfo
	WebhookURL string
	HTTP       *http.Client
	Logger     zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h *ReceiptDeliveryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ReceiptDeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode receipt task: %w: %w", err, asynq.SkipRetry)
	}
	if strings.TrimSpace(h.WebhookURL) == "" {
		return nil
	}

	ctx = tenant.WithTenant(ctx, payload.TenantID)
	transaction, err := h.Store.GetByID(ctx, payload.TenantID, payload.TransactionID)
	if err != nil {
		return fmt.Errorf("load transaction %s: %w", payload.TransactionID, err)
	}
	text := receipt.Render(transaction, h.Company)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.WebhookURL, bytes.NewBufferString(text))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("X-Tenant-ID", payload.TenantID)
	req.Header.Set("X-Order-No", transaction.OrderNo)

	client := h.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		h.recordDelivery("error")
		return fmt.Errorf("deliver receipt: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		h.recordDelivery("rejected")
		return fmt.Errorf("deliver receipt: unexpected status %d", resp.StatusCode)
	}
	h.recordDelivery("ok")
	h.Logger.Info().
		Str("transaction_id", payload.TransactionID).
		Str("order_no", transaction.OrderNo).
		Msg("receipt delivered")
	return nil
}

func (h *ReceiptDeliveryHandler) recordDelivery(result string) {
	if obs.ReceiptDeliveriesTotal != nil {
		obs.ReceiptDeliveriesTotal.WithLabelValues(result).Inc()
	}
}

// NewServeMux registers all task handlers on an asynq mux.
func NewServeMux(receipts *ReceiptDeliveryHandler) (*asynq.ServeMux, error) {
	if receipts == nil {
		return nil, errors.New("tasks: receipt handler is required")
	}
	mux := asynq.NewServeMux()
	mux.Handle(TypeReceiptDeliver, receipts)
	return mux, nil
}
