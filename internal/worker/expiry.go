package worker

import (
	"context"
	"time"

	"payment-service/internal/util"

	"go.uber.org/zap"
)

// ExpiryStore is the persistence surface the expiry sweeper needs
type ExpiryStore interface {
	ExpirePendingPurchases(ctx context.Context, now time.Time) (int64, error)
}

// ExpirySweeper periodically marks pending purchases whose QR code lapsed
// as expired. A later billing.paid still completes them; the provider is
// the source of truth.
type ExpirySweeper struct {
	store    ExpiryStore
	interval time.Duration
	logger   *zap.Logger
}

// NewExpirySweeper creates a new expiry sweeper
func NewExpirySweeper(store ExpiryStore, interval time.Duration) *ExpirySweeper {
	return &ExpirySweeper{
		store:    store,
		interval: interval,
		logger:   util.GetLogger(),
	}
}

// Start runs the sweep loop until the context is cancelled
func (s *ExpirySweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting expiry sweeper", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *ExpirySweeper) sweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expired, err := s.store.ExpirePendingPurchases(ctx, time.Now())
	if err != nil {
		s.logger.Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		util.PurchasesExpiredTotal.Add(float64(expired))
		s.logger.Info("Expired stale pending purchases", zap.Int64("count", expired))
	}
}
