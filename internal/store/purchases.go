package store

import (
	"context"
	"database/sql"
	"time"

	"payment-service/internal/models"
)

// CreatePendingPurchase inserts a pending purchase keyed by the provider
// transaction id. A replayed insert for the same transaction id is a no-op.
func (s *Store) CreatePendingPurchase(ctx context.Context, p *models.Purchase) error {
	query := `
		INSERT INTO purchases (user_id, asset_id, transaction_id, payment_status,
			amount_paid, payment_method, customer_id, expires_at)
		VALUES ($1, $2, $3, 'pending', $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING`

	_, err := s.db.ExecContext(ctx, query,
		p.UserID, p.AssetID, p.TransactionID, p.AmountPaid,
		p.PaymentMethod, p.CustomerID, p.ExpiresAt)
	return err
}

// GetPurchaseByTransactionID retrieves a purchase by provider transaction id
func (s *Store) GetPurchaseByTransactionID(ctx context.Context, transactionID string) (*models.Purchase, error) {
	var purchase models.Purchase
	err := s.db.GetContext(ctx, &purchase,
		"SELECT * FROM purchases WHERE transaction_id = $1", transactionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// HasCompletedPurchase reports whether a completed purchase exists for
// the (user, asset) pair
func (s *Store) HasCompletedPurchase(ctx context.Context, userID, assetID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS(SELECT 1 FROM purchases
		 WHERE user_id = $1 AND asset_id = $2 AND payment_status = 'completed')`,
		userID, assetID)
	return exists, err
}

// CompletePurchase marks the purchase for a transaction id as completed.
// The update only fires while the row is not already completed or refunded;
// if no row exists for the transaction id one is inserted, guarded by the
// transaction-id unique index and the partial completed-per-pair index so a
// replayed delivery can never produce a second completed row. Returns the
// resulting row and whether this call performed the transition.
func (s *Store) CompletePurchase(ctx context.Context, userID, assetID, transactionID string, amount int64, method string) (*models.Purchase, bool, error) {
	var purchase models.Purchase
	err := s.db.GetContext(ctx, &purchase, `
		UPDATE purchases
		SET payment_status = 'completed', amount_paid = $2, payment_method = $3,
			updated_at = NOW()
		WHERE transaction_id = $1 AND payment_status NOT IN ('completed', 'refunded')
		RETURNING *`,
		transactionID, amount, method)
	if err == nil {
		return &purchase, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	// No pending row to transition: either a replay or a webhook that beat
	// the checkout insert.
	err = s.db.GetContext(ctx, &purchase, `
		INSERT INTO purchases (user_id, asset_id, transaction_id, payment_status,
			amount_paid, payment_method)
		VALUES ($1, $2, $3, 'completed', $4, $5)
		ON CONFLICT DO NOTHING
		RETURNING *`,
		userID, assetID, transactionID, amount, method)
	if err == nil {
		return &purchase, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	existing, err := s.GetPurchaseByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// RefundPurchase transitions a completed purchase to refunded. Returns the
// row and whether the transition happened; a nil row means the transaction
// id is unknown.
func (s *Store) RefundPurchase(ctx context.Context, transactionID string) (*models.Purchase, bool, error) {
	var purchase models.Purchase
	err := s.db.GetContext(ctx, &purchase, `
		UPDATE purchases
		SET payment_status = 'refunded', updated_at = NOW()
		WHERE transaction_id = $1 AND payment_status = 'completed'
		RETURNING *`,
		transactionID)
	if err == nil {
		return &purchase, true, nil
	}
	if err != sql.ErrNoRows {
		return nil, false, err
	}

	existing, err := s.GetPurchaseByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// GetPurchasesByUserID retrieves a user's purchases newest-first
func (s *Store) GetPurchasesByUserID(ctx context.Context, userID string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := s.db.SelectContext(ctx, &purchases,
		"SELECT * FROM purchases WHERE user_id = $1 ORDER BY purchase_date DESC", userID)
	return purchases, err
}

// ExpirePendingPurchases marks pending purchases past their QR expiry as
// expired and returns how many rows changed
func (s *Store) ExpirePendingPurchases(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE purchases
		SET payment_status = 'expired', updated_at = NOW()
		WHERE payment_status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1`,
		now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
