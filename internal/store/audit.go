package store

import (
	"context"

	"github.com/google/uuid"
)

// InsertSystemLog appends an audit entry. Callers treat failures as
// best-effort; nothing in the request path depends on this write.
func (s *Store) InsertSystemLog(ctx context.Context, category, action, message string, metadata []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO system_logs (id, category, action, message, metadata)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), category, action, message, metadata)
	return err
}

// GrantEntitlement grants asset access to a user, idempotently
func (s *Store) GrantEntitlement(ctx context.Context, userID, assetID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO entitlements (user_id, asset_id)
		VALUES ($1, $2)
		ON CONFLICT (user_id, asset_id) DO NOTHING`,
		userID, assetID)
	return err
}

// RevokeEntitlement removes a user's access to an asset
func (s *Store) RevokeEntitlement(ctx context.Context, userID, assetID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM entitlements WHERE user_id = $1 AND asset_id = $2",
		userID, assetID)
	return err
}

// IsEventProcessed checks if an internal event has been processed
func (s *Store) IsEventProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		"SELECT EXISTS(SELECT 1 FROM processed_events WHERE event_id = $1)", eventID)
	return exists, err
}

// MarkEventProcessed marks an internal event as processed
func (s *Store) MarkEventProcessed(ctx context.Context, eventID, eventType string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO processed_events (event_id, event_type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING",
		eventID, eventType)
	return err
}
