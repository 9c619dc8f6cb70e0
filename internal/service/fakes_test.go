package service

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"payment-service/internal/abacatepay"
	"payment-service/internal/models"
)

func nullStatus(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

// fakeStore is an in-memory CheckoutStore and WebhookStore that mirrors the
// database guards: unique transaction ids and at most one completed
// purchase per (user, asset) pair.
type fakeStore struct {
	mu         sync.Mutex
	assets     map[string]*models.Asset
	profiles   map[string]*models.Profile
	purchases  map[string]*models.Purchase // by transaction id
	logs       []models.SystemLog
	auditErr   error
	storeErr   error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		assets:    make(map[string]*models.Asset),
		profiles:  make(map[string]*models.Profile),
		purchases: make(map[string]*models.Purchase),
	}
}

func (f *fakeStore) GetAssetByID(_ context.Context, id string) (*models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	return f.assets[id], nil
}

func (f *fakeStore) GetProfileByUserID(_ context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profiles[userID], nil
}

func (f *fakeStore) HasCompletedPurchase(_ context.Context, userID, assetID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.purchases {
		if p.UserID == userID && p.AssetID == assetID && p.Status() == models.PurchaseStatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreatePendingPurchase(_ context.Context, p *models.Purchase) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.purchases[p.TransactionID]; exists {
		return nil
	}
	clone := *p
	clone.PaymentStatus = nullStatus(models.PurchaseStatusPending)
	clone.PurchaseDate = time.Now()
	f.purchases[p.TransactionID] = &clone
	return nil
}

func (f *fakeStore) GetPurchaseByTransactionID(_ context.Context, transactionID string) (*models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, f.storeErr
	}
	p, ok := f.purchases[transactionID]
	if !ok {
		return nil, nil
	}
	clone := *p
	return &clone, nil
}

func (f *fakeStore) GetPurchasesByUserID(_ context.Context, userID string) ([]models.Purchase, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Purchase
	for _, p := range f.purchases {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakeStore) CompletePurchase(_ context.Context, userID, assetID, transactionID string, amount int64, method string) (*models.Purchase, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.storeErr != nil {
		return nil, false, f.storeErr
	}

	if p, ok := f.purchases[transactionID]; ok {
		status := p.Status()
		if status == models.PurchaseStatusCompleted || status == models.PurchaseStatusRefunded {
			clone := *p
			return &clone, false, nil
		}
		p.PaymentStatus = nullStatus(models.PurchaseStatusCompleted)
		p.AmountPaid = amount
		p.PaymentMethod = method
		clone := *p
		return &clone, true, nil
	}

	for _, p := range f.purchases {
		if p.UserID == userID && p.AssetID == assetID && p.Status() == models.PurchaseStatusCompleted {
			return nil, false, nil
		}
	}

	p := &models.Purchase{
		UserID:        userID,
		AssetID:       assetID,
		TransactionID: transactionID,
		PaymentStatus: nullStatus(models.PurchaseStatusCompleted),
		AmountPaid:    amount,
		PaymentMethod: method,
		PurchaseDate:  time.Now(),
	}
	f.purchases[transactionID] = p
	clone := *p
	return &clone, true, nil
}

func (f *fakeStore) RefundPurchase(_ context.Context, transactionID string) (*models.Purchase, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.purchases[transactionID]
	if !ok {
		return nil, false, nil
	}
	if p.Status() != models.PurchaseStatusCompleted {
		clone := *p
		return &clone, false, nil
	}
	p.PaymentStatus = nullStatus(models.PurchaseStatusRefunded)
	clone := *p
	return &clone, true, nil
}

func (f *fakeStore) InsertSystemLog(_ context.Context, category, action, message string, metadata []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.auditErr != nil {
		return f.auditErr
	}
	f.logs = append(f.logs, models.SystemLog{
		Category: category,
		Action:   action,
		Message:  message,
		Metadata: metadata,
	})
	return nil
}

func (f *fakeStore) completedCount(userID, assetID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, p := range f.purchases {
		if p.UserID == userID && p.AssetID == assetID && p.Status() == models.PurchaseStatusCompleted {
			count++
		}
	}
	return count
}

// fakeProvider is an in-memory PixProvider
type fakeProvider struct {
	mu           sync.Mutex
	customerID   string
	customerErr  error
	qr           *abacatepay.QRCode
	qrErr        error
	customers    []abacatepay.Customer
	lastParams   abacatepay.QRCodeParams
	qrCallCount  int
}

func (f *fakeProvider) CreateCustomer(_ context.Context, customer abacatepay.Customer) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.customers = append(f.customers, customer)
	if f.customerErr != nil {
		return "", f.customerErr
	}
	return f.customerID, nil
}

func (f *fakeProvider) CreateQRCode(_ context.Context, params abacatepay.QRCodeParams) (*abacatepay.QRCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.qrCallCount++
	f.lastParams = params
	if f.qrErr != nil {
		return nil, f.qrErr
	}
	if f.qr != nil {
		qr := *f.qr
		return &qr, nil
	}
	return &abacatepay.QRCode{
		ID:     fmt.Sprintf("tx_%d", f.qrCallCount),
		BRCode: "000201fake",
		Amount: params.Amount,
	}, nil
}

// fakeLocker is an in-memory CheckoutLocker
type fakeLocker struct {
	mu     sync.Mutex
	held   map[string]bool
	failOn bool
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool)}
}

func (f *fakeLocker) AcquireCheckoutLock(_ context.Context, userID, assetID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn {
		return false, fmt.Errorf("redis unavailable")
	}
	key := userID + ":" + assetID
	if f.held[key] {
		return false, nil
	}
	f.held[key] = true
	return true, nil
}

func (f *fakeLocker) ReleaseCheckoutLock(_ context.Context, userID, assetID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.held, userID+":"+assetID)
	return nil
}

// fakeDeduper is an in-memory WebhookDeduper
type fakeDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (f *fakeDeduper) MarkWebhookSeen(_ context.Context, eventType, transactionID string, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	key := eventType + ":" + transactionID
	if f.seen[key] {
		return false, nil
	}
	f.seen[key] = true
	return true, nil
}

// fakeEventSink captures published purchase events
type fakeEventSink struct {
	mu        sync.Mutex
	completed []*models.PurchaseCompletedEvent
	refunded  []*models.PurchaseRefundedEvent
	err       error
}

func (f *fakeEventSink) PublishPurchaseCompleted(_ context.Context, event *models.PurchaseCompletedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.completed = append(f.completed, event)
	return nil
}

func (f *fakeEventSink) PublishPurchaseRefunded(_ context.Context, event *models.PurchaseRefundedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.refunded = append(f.refunded, event)
	return nil
}
