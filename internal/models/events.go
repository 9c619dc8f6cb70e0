package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Provider webhook event types
const (
	WebhookEventPaid     = "billing.paid"
	WebhookEventDisputed = "billing.disputed"
)

// WebhookEnvelope is the raw provider event as delivered on the wire
type WebhookEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// WebhookMetadata identifies the purchase a billing event belongs to
type WebhookMetadata struct {
	UserID  string `json:"user_id"`
	AssetID string `json:"asset_id"`
}

// BillingEventData is the payload of billing.* events
type BillingEventData struct {
	ID       string          `json:"id"`
	Amount   int64           `json:"amount"`
	Method   string          `json:"method"`
	Metadata WebhookMetadata `json:"metadata"`
}

// WebhookEvent is the validated, typed form of a provider notification.
// Exactly one of Paid/Disputed is set for billing events; both are nil for
// event types this service ignores.
type WebhookEvent struct {
	Type     string
	Paid     *BillingEventData
	Disputed *BillingEventData
}

// Ignorable reports whether the event type is a known no-op for this service
func (e *WebhookEvent) Ignorable() bool {
	return e.Paid == nil && e.Disputed == nil
}

// ParseWebhookEvent decodes a provider envelope into a typed event.
// Billing events must carry a transaction id and purchase metadata;
// withdraw.* and unrecognized types parse into an ignorable event.
func ParseWebhookEvent(body []byte) (*WebhookEvent, error) {
	var envelope WebhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode webhook envelope: %w", err)
	}
	if envelope.Type == "" {
		return nil, fmt.Errorf("webhook envelope missing type")
	}

	event := &WebhookEvent{Type: envelope.Type}

	switch envelope.Type {
	case WebhookEventPaid, WebhookEventDisputed:
		var data BillingEventData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to decode %s data: %w", envelope.Type, err)
		}
		if data.ID == "" {
			return nil, fmt.Errorf("%s event missing transaction id", envelope.Type)
		}
		if envelope.Type == WebhookEventPaid {
			if data.Metadata.UserID == "" || data.Metadata.AssetID == "" {
				return nil, fmt.Errorf("%s event missing purchase metadata", envelope.Type)
			}
			event.Paid = &data
		} else {
			event.Disputed = &data
		}
	default:
		// withdraw.* and anything unknown are acknowledged without processing
	}

	return event, nil
}

// Internal event types published to Kafka
const (
	EventTypePurchaseCompleted = "PURCHASE_COMPLETED"
	EventTypePurchaseRefunded  = "PURCHASE_REFUNDED"
)

// BaseEvent contains common fields for all internal events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// PurchaseCompletedEvent published when a purchase reaches completed
type PurchaseCompletedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AssetID       string `json:"asset_id"`
	TransactionID string `json:"transaction_id"`
	AmountPaid    int64  `json:"amount_paid"`
	PaymentMethod string `json:"payment_method"`
}

// PurchaseRefundedEvent published when a completed purchase is refunded
type PurchaseRefundedEvent struct {
	BaseEvent
	UserID        string `json:"user_id"`
	AssetID       string `json:"asset_id"`
	TransactionID string `json:"transaction_id"`
}
