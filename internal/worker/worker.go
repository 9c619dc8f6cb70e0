package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"payment-service/internal/broker"
	"payment-service/internal/models"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

// EntitlementStore is the persistence surface the entitlement worker needs
type EntitlementStore interface {
	GrantEntitlement(ctx context.Context, userID, assetID string) error
	RevokeEntitlement(ctx context.Context, userID, assetID string) error
	IsEventProcessed(ctx context.Context, eventID string) (bool, error)
	MarkEventProcessed(ctx context.Context, eventID, eventType string) error
	InsertSystemLog(ctx context.Context, category, action, message string, metadata []byte) error
}

// EntitlementWorker grants and revokes asset access from purchase events
type EntitlementWorker struct {
	consumer     *broker.Consumer
	eventHandler *broker.EventHandler
	store        EntitlementStore
	logger       *zap.Logger
}

// NewEntitlementWorker creates a new entitlement worker
func NewEntitlementWorker(consumer *broker.Consumer, store EntitlementStore) *EntitlementWorker {
	w := &EntitlementWorker{
		consumer: consumer,
		store:    store,
		logger:   util.GetLogger(),
	}

	eventHandler := broker.NewEventHandler()
	eventHandler.OnPurchaseCompleted(w.handleCompleted)
	eventHandler.OnPurchaseRefunded(w.handleRefunded)
	w.eventHandler = eventHandler

	return w
}

// Start starts the worker
func (w *EntitlementWorker) Start(ctx context.Context) error {
	w.logger.Info("Starting entitlement worker")
	return w.consumer.StartConsuming(ctx, w.eventHandler.HandleMessage)
}

// Stop stops the worker
func (w *EntitlementWorker) Stop() error {
	w.logger.Info("Stopping entitlement worker")
	return w.consumer.Close()
}

func (w *EntitlementWorker) handleCompleted(ctx context.Context, event *models.PurchaseCompletedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := w.store.GrantEntitlement(ctx, event.UserID, event.AssetID); err != nil {
		return fmt.Errorf("failed to grant entitlement: %w", err)
	}

	util.EntitlementsGrantedTotal.Inc()
	w.logger.Info("Entitlement granted",
		zap.String("user_id", event.UserID),
		zap.String("asset_id", event.AssetID))

	w.audit(ctx, "entitlement_granted", event.UserID, event.AssetID, event.TransactionID)

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

func (w *EntitlementWorker) handleRefunded(ctx context.Context, event *models.PurchaseRefundedEvent) error {
	processed, err := w.store.IsEventProcessed(ctx, event.EventID)
	if err != nil {
		return fmt.Errorf("failed to check event processed: %w", err)
	}
	if processed {
		w.logger.Info("Event already processed", zap.String("event_id", event.EventID))
		return nil
	}

	if err := w.store.RevokeEntitlement(ctx, event.UserID, event.AssetID); err != nil {
		return fmt.Errorf("failed to revoke entitlement: %w", err)
	}

	util.EntitlementsRevokedTotal.Inc()
	w.logger.Info("Entitlement revoked",
		zap.String("user_id", event.UserID),
		zap.String("asset_id", event.AssetID))

	w.audit(ctx, "entitlement_revoked", event.UserID, event.AssetID, event.TransactionID)

	if err := w.store.MarkEventProcessed(ctx, event.EventID, event.EventType); err != nil {
		w.logger.Error("Failed to mark event processed", zap.Error(err))
	}
	return nil
}

func (w *EntitlementWorker) audit(ctx context.Context, action, userID, assetID, transactionID string) {
	payload, _ := json.Marshal(map[string]string{
		"user_id":        userID,
		"asset_id":       assetID,
		"transaction_id": transactionID,
	})
	if err := w.store.InsertSystemLog(ctx, models.LogCategoryWorker, action, action, payload); err != nil {
		w.logger.Warn("Audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
