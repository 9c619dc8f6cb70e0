package models

import (
	"database/sql"
	"time"
)

// Asset represents a purchasable digital product in the catalog
type Asset struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	Price       int64     `db:"price" json:"price"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Profile holds the buyer data used for provider customer registration
type Profile struct {
	UserID   string `db:"user_id" json:"user_id"`
	FullName string `db:"full_name" json:"full_name"`
	Email    string `db:"email" json:"email"`
	Phone    string `db:"phone" json:"phone"`
	TaxID    string `db:"tax_id" json:"tax_id"`
}

// Purchase tracks a user's attempt to acquire an asset
type Purchase struct {
	ID            int64          `db:"id" json:"id"`
	UserID        string         `db:"user_id" json:"user_id"`
	AssetID       string         `db:"asset_id" json:"asset_id"`
	TransactionID string         `db:"transaction_id" json:"transaction_id"`
	PaymentStatus sql.NullString `db:"payment_status" json:"payment_status"`
	AmountPaid    int64          `db:"amount_paid" json:"amount_paid"`
	PaymentMethod string         `db:"payment_method" json:"payment_method"`
	CustomerID    string         `db:"customer_id" json:"customer_id,omitempty"`
	ExpiresAt     sql.NullTime   `db:"expires_at" json:"expires_at,omitempty"`
	PurchaseDate  time.Time      `db:"purchase_date" json:"purchase_date"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// Status returns the payment status, defaulting to pending when unset
func (p *Purchase) Status() string {
	if p.PaymentStatus.Valid && p.PaymentStatus.String != "" {
		return p.PaymentStatus.String
	}
	return PurchaseStatusPending
}

// Entitlement grants a user access to an asset after a completed purchase
type Entitlement struct {
	UserID    string    `db:"user_id" json:"user_id"`
	AssetID   string    `db:"asset_id" json:"asset_id"`
	GrantedAt time.Time `db:"granted_at" json:"granted_at"`
}

// SystemLog is an append-only audit entry
type SystemLog struct {
	ID        string    `db:"id" json:"id"`
	Category  string    `db:"category" json:"category"`
	Action    string    `db:"action" json:"action"`
	Message   string    `db:"message" json:"message"`
	Metadata  []byte    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Purchase statuses
const (
	PurchaseStatusPending   = "pending"
	PurchaseStatusCompleted = "completed"
	PurchaseStatusRefunded  = "refunded"
	PurchaseStatusExpired   = "expired"
)

// Audit categories
const (
	LogCategoryPayment = "payment"
	LogCategoryWebhook = "webhook"
	LogCategoryWorker  = "worker"
)

// ProcessedEvent for consumer idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
