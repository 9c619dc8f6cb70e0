package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"payment-service/internal/models"
	"payment-service/internal/util"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WebhookStore is the persistence surface the webhook receiver needs
type WebhookStore interface {
	CompletePurchase(ctx context.Context, userID, assetID, transactionID string, amount int64, method string) (*models.Purchase, bool, error)
	RefundPurchase(ctx context.Context, transactionID string) (*models.Purchase, bool, error)
	InsertSystemLog(ctx context.Context, category, action, message string, metadata []byte) error
}

// WebhookDeduper suppresses duplicate webhook deliveries
type WebhookDeduper interface {
	MarkWebhookSeen(ctx context.Context, eventType, transactionID string, ttl time.Duration) (bool, error)
}

// PurchaseEventSink receives purchase lifecycle events for downstream
// consumers
type PurchaseEventSink interface {
	PublishPurchaseCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error
	PublishPurchaseRefunded(ctx context.Context, event *models.PurchaseRefundedEvent) error
}

// WebhookService applies provider payment notifications to purchase state
type WebhookService struct {
	store    WebhookStore
	dedup    WebhookDeduper
	events   PurchaseEventSink
	logger   *zap.Logger
	secret   []byte
	dedupTTL time.Duration
}

// NewWebhookService creates a new webhook service. dedup and events may be
// nil; the database guards alone then keep processing idempotent.
func NewWebhookService(store WebhookStore, dedup WebhookDeduper, events PurchaseEventSink, secret string, dedupTTL time.Duration) *WebhookService {
	return &WebhookService{
		store:    store,
		dedup:    dedup,
		events:   events,
		logger:   util.GetLogger(),
		secret:   []byte(secret),
		dedupTTL: dedupTTL,
	}
}

// VerifySignature checks the x-signature header against the HMAC-SHA256 of
// the raw request body. This is the only authentication on the webhook
// endpoint.
func (s *WebhookService) VerifySignature(body []byte, signature string) bool {
	if len(s.secret) == 0 || signature == "" {
		return false
	}

	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleEvent applies a verified provider event to the purchase record.
// Known no-op event types (withdraw.*, unrecognized) return nil so the
// provider receives a 2xx and stops retrying.
func (s *WebhookService) HandleEvent(ctx context.Context, event *models.WebhookEvent) error {
	ctx, span := util.StartSpan(ctx, "WebhookService.HandleEvent")
	defer span.End()

	util.WebhooksReceivedTotal.WithLabelValues(event.Type).Inc()

	if event.Ignorable() {
		s.logger.Info("Ignoring webhook event", zap.String("type", event.Type))
		return nil
	}

	var data *models.BillingEventData
	if event.Paid != nil {
		data = event.Paid
	} else {
		data = event.Disputed
	}

	if s.dedup != nil {
		first, err := s.dedup.MarkWebhookSeen(ctx, event.Type, data.ID, s.dedupTTL)
		if err != nil {
			s.logger.Warn("Webhook dedup unavailable, relying on database guards",
				zap.Error(err))
		} else if !first {
			util.WebhookReplaysTotal.Inc()
			s.logger.Info("Duplicate webhook delivery suppressed",
				zap.String("type", event.Type),
				zap.String("transaction_id", data.ID))
			return nil
		}
	}

	if event.Paid != nil {
		return s.handlePaid(ctx, event.Paid)
	}
	return s.handleDisputed(ctx, event.Disputed)
}

func (s *WebhookService) handlePaid(ctx context.Context, data *models.BillingEventData) error {
	purchase, transitioned, err := s.store.CompletePurchase(ctx,
		data.Metadata.UserID, data.Metadata.AssetID, data.ID, data.Amount, data.Method)
	if err != nil {
		return fmt.Errorf("failed to complete purchase: %w", err)
	}

	if !transitioned {
		status := "unknown"
		if purchase != nil {
			status = purchase.Status()
		}
		s.logger.Info("billing.paid left purchase unchanged",
			zap.String("transaction_id", data.ID),
			zap.String("status", status))
		return nil
	}

	util.PurchasesCompletedTotal.Inc()
	s.logger.Info("Purchase completed",
		zap.String("user_id", purchase.UserID),
		zap.String("asset_id", purchase.AssetID),
		zap.String("transaction_id", data.ID))

	s.audit(ctx, "billing_paid", "purchase completed", purchase)

	if s.events != nil {
		event := &models.PurchaseCompletedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePurchaseCompleted,
				Timestamp: time.Now(),
			},
			UserID:        purchase.UserID,
			AssetID:       purchase.AssetID,
			TransactionID: purchase.TransactionID,
			AmountPaid:    purchase.AmountPaid,
			PaymentMethod: purchase.PaymentMethod,
		}
		if err := s.events.PublishPurchaseCompleted(ctx, event); err != nil {
			s.logger.Error("Failed to publish PurchaseCompleted event", zap.Error(err))
		}
	}

	return nil
}

// handleDisputed refunds completed purchases only. A dispute for an unknown
// or non-completed transaction is acknowledged without a state change.
func (s *WebhookService) handleDisputed(ctx context.Context, data *models.BillingEventData) error {
	purchase, transitioned, err := s.store.RefundPurchase(ctx, data.ID)
	if err != nil {
		return fmt.Errorf("failed to refund purchase: %w", err)
	}

	if purchase == nil {
		s.logger.Warn("billing.disputed for unknown transaction",
			zap.String("transaction_id", data.ID))
		s.audit(ctx, "billing_disputed", "dispute for unknown transaction", nil)
		return nil
	}

	if !transitioned {
		s.logger.Info("billing.disputed left purchase unchanged",
			zap.String("transaction_id", data.ID),
			zap.String("status", purchase.Status()))
		return nil
	}

	util.PurchasesRefundedTotal.Inc()
	s.logger.Info("Purchase refunded",
		zap.String("user_id", purchase.UserID),
		zap.String("asset_id", purchase.AssetID),
		zap.String("transaction_id", data.ID))

	s.audit(ctx, "billing_disputed", "purchase refunded", purchase)

	if s.events != nil {
		event := &models.PurchaseRefundedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypePurchaseRefunded,
				Timestamp: time.Now(),
			},
			UserID:        purchase.UserID,
			AssetID:       purchase.AssetID,
			TransactionID: purchase.TransactionID,
		}
		if err := s.events.PublishPurchaseRefunded(ctx, event); err != nil {
			s.logger.Error("Failed to publish PurchaseRefunded event", zap.Error(err))
		}
	}

	return nil
}

func (s *WebhookService) audit(ctx context.Context, action, message string, purchase *models.Purchase) {
	metadata := map[string]string{}
	if purchase != nil {
		metadata["user_id"] = purchase.UserID
		metadata["asset_id"] = purchase.AssetID
		metadata["transaction_id"] = purchase.TransactionID
	}
	payload, _ := json.Marshal(metadata)
	if err := s.store.InsertSystemLog(ctx, models.LogCategoryWebhook, action, message, payload); err != nil {
		s.logger.Warn("Audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
