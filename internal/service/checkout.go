package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"payment-service/internal/abacatepay"
	"payment-service/internal/models"
	"payment-service/internal/util"

	"go.uber.org/zap"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrAssetNotFound      = errors.New("asset not found")
	ErrAlreadyOwned       = errors.New("asset already purchased")
	ErrCheckoutInProgress = errors.New("checkout already in progress")
	ErrUnknownTransaction = errors.New("unknown transaction")
)

// minTaxIDDigits is the shortest valid Brazilian tax id (CPF) after
// stripping non-digits
const minTaxIDDigits = 11

// CheckoutStore is the persistence surface the checkout flow needs
type CheckoutStore interface {
	GetAssetByID(ctx context.Context, id string) (*models.Asset, error)
	GetProfileByUserID(ctx context.Context, userID string) (*models.Profile, error)
	HasCompletedPurchase(ctx context.Context, userID, assetID string) (bool, error)
	CreatePendingPurchase(ctx context.Context, p *models.Purchase) error
	GetPurchaseByTransactionID(ctx context.Context, transactionID string) (*models.Purchase, error)
	GetPurchasesByUserID(ctx context.Context, userID string) ([]models.Purchase, error)
	InsertSystemLog(ctx context.Context, category, action, message string, metadata []byte) error
}

// PixProvider is the payment-provider surface the checkout flow needs
type PixProvider interface {
	CreateCustomer(ctx context.Context, customer abacatepay.Customer) (string, error)
	CreateQRCode(ctx context.Context, params abacatepay.QRCodeParams) (*abacatepay.QRCode, error)
}

// CheckoutLocker serializes concurrent checkouts of the same (user, asset)
type CheckoutLocker interface {
	AcquireCheckoutLock(ctx context.Context, userID, assetID string, ttl time.Duration) (bool, error)
	ReleaseCheckoutLock(ctx context.Context, userID, assetID string) error
}

// CheckoutService handles PIX charge creation and purchase status reads
type CheckoutService struct {
	store         CheckoutStore
	provider      PixProvider
	locker        CheckoutLocker
	logger        *zap.Logger
	expirySeconds int
}

// NewCheckoutService creates a new checkout service. locker may be nil, in
// which case concurrent duplicate checkouts are only caught by the
// database constraints.
func NewCheckoutService(store CheckoutStore, provider PixProvider, locker CheckoutLocker, expirySeconds int) *CheckoutService {
	return &CheckoutService{
		store:         store,
		provider:      provider,
		locker:        locker,
		logger:        util.GetLogger(),
		expirySeconds: expirySeconds,
	}
}

// PixCharge is the client-facing QR code payload
type PixCharge struct {
	ID          string    `json:"id"`
	QRCode      string    `json:"qrCode"`
	QRCodeImage string    `json:"qrCodeImage"`
	Amount      float64   `json:"amount"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// AssetSummary is the client-facing asset payload
type AssetSummary struct {
	Title string  `json:"title"`
	Price float64 `json:"price"`
}

// CreatePixResult is the response of a successful checkout initiation
type CreatePixResult struct {
	Pix   PixCharge    `json:"pix"`
	Asset AssetSummary `json:"asset"`
}

// CreatePix validates entitlement, requests a PIX QR code from the
// provider and records a pending purchase keyed by the provider
// transaction id
func (s *CheckoutService) CreatePix(ctx context.Context, userID, assetID string) (*CreatePixResult, error) {
	ctx, span := util.StartSpan(ctx, "CheckoutService.CreatePix")
	defer span.End()

	if assetID == "" {
		util.PixChargesFailedTotal.WithLabelValues("missing_asset_id").Inc()
		return nil, ErrValidation
	}

	asset, err := s.store.GetAssetByID(ctx, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to load asset: %w", err)
	}
	if asset == nil {
		util.PixChargesFailedTotal.WithLabelValues("asset_not_found").Inc()
		return nil, ErrAssetNotFound
	}

	owned, err := s.store.HasCompletedPurchase(ctx, userID, assetID)
	if err != nil {
		return nil, fmt.Errorf("failed to check ownership: %w", err)
	}
	if owned {
		util.PixChargesFailedTotal.WithLabelValues("already_owned").Inc()
		return nil, ErrAlreadyOwned
	}

	if s.locker != nil {
		acquired, err := s.locker.AcquireCheckoutLock(ctx, userID, assetID, 30*time.Second)
		if err != nil {
			s.logger.Warn("Checkout lock unavailable, proceeding without it",
				zap.String("user_id", userID), zap.Error(err))
		} else if !acquired {
			return nil, ErrCheckoutInProgress
		} else {
			defer func() {
				if err := s.locker.ReleaseCheckoutLock(context.Background(), userID, assetID); err != nil {
					s.logger.Warn("Failed to release checkout lock", zap.Error(err))
				}
			}()
		}
	}

	profile, err := s.store.GetProfileByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	customerID := s.registerCustomer(ctx, userID, profile)

	params := abacatepay.QRCodeParams{
		Amount:      asset.Price,
		ExpiresIn:   s.expirySeconds,
		Description: abacatepay.SanitizeDescription(asset.Title),
		Metadata: map[string]string{
			"user_id":  userID,
			"asset_id": assetID,
		},
	}
	if customerID != "" {
		params.CustomerID = customerID
	} else if c := inlineCustomer(profile); c != nil {
		params.Customer = c
	}

	qr, err := s.provider.CreateQRCode(ctx, params)
	if err != nil {
		util.PixChargesFailedTotal.WithLabelValues("provider_error").Inc()
		s.audit(ctx, models.LogCategoryPayment, "create_pix_failed", err.Error(), map[string]string{
			"user_id":  userID,
			"asset_id": assetID,
		})
		return nil, fmt.Errorf("failed to create pix charge: %w", err)
	}

	purchase := &models.Purchase{
		UserID:        userID,
		AssetID:       assetID,
		TransactionID: qr.ID,
		AmountPaid:    qr.Amount,
		PaymentMethod: "PIX",
		CustomerID:    customerID,
	}
	if !qr.ExpiresAt.IsZero() {
		purchase.ExpiresAt = sql.NullTime{Time: qr.ExpiresAt, Valid: true}
	}

	if err := s.store.CreatePendingPurchase(ctx, purchase); err != nil {
		util.PixChargesFailedTotal.WithLabelValues("db_error").Inc()
		return nil, fmt.Errorf("failed to record pending purchase: %w", err)
	}

	util.PixChargesCreatedTotal.Inc()
	s.logger.Info("PIX charge created",
		zap.String("user_id", userID),
		zap.String("asset_id", assetID),
		zap.String("transaction_id", qr.ID))

	s.audit(ctx, models.LogCategoryPayment, "create_pix", "pix charge created", map[string]string{
		"user_id":        userID,
		"asset_id":       assetID,
		"transaction_id": qr.ID,
	})

	return &CreatePixResult{
		Pix: PixCharge{
			ID:          qr.ID,
			QRCode:      qr.BRCode,
			QRCodeImage: qr.BRCodeBase64,
			Amount:      float64(qr.Amount) / 100,
			ExpiresAt:   qr.ExpiresAt,
		},
		Asset: AssetSummary{
			Title: asset.Title,
			Price: float64(asset.Price) / 100,
		},
	}, nil
}

// registerCustomer attempts provider customer registration when the profile
// carries enough data. Failures are non-fatal.
func (s *CheckoutService) registerCustomer(ctx context.Context, userID string, profile *models.Profile) string {
	if profile == nil || profile.FullName == "" || profile.Phone == "" || profile.TaxID == "" {
		return ""
	}

	customerID, err := s.provider.CreateCustomer(ctx, abacatepay.Customer{
		Name:      profile.FullName,
		Email:     profile.Email,
		Cellphone: profile.Phone,
		TaxID:     abacatepay.DigitsOnly(profile.TaxID),
	})
	if err != nil {
		s.logger.Warn("Provider customer registration failed, continuing without customer id",
			zap.String("user_id", userID), zap.Error(err))
		return ""
	}
	return customerID
}

// inlineCustomer builds the inline customer payload when phone, a full tax
// id and email are all present
func inlineCustomer(profile *models.Profile) *abacatepay.Customer {
	if profile == nil {
		return nil
	}
	taxID := abacatepay.DigitsOnly(profile.TaxID)
	if profile.Phone == "" || profile.Email == "" || len(taxID) < minTaxIDDigits {
		return nil
	}
	return &abacatepay.Customer{
		Name:      profile.FullName,
		Email:     profile.Email,
		Cellphone: profile.Phone,
		TaxID:     taxID,
	}
}

// StatusResult is the status poller response
type StatusResult struct {
	Status    string `json:"status"`
	Completed bool   `json:"completed"`
}

// CheckStatus reads the current purchase status for a transaction id
func (s *CheckoutService) CheckStatus(ctx context.Context, transactionID string) (*StatusResult, error) {
	if transactionID == "" {
		return nil, ErrValidation
	}

	purchase, err := s.store.GetPurchaseByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to check status: %w", err)
	}
	if purchase == nil {
		return nil, ErrUnknownTransaction
	}

	status := purchase.Status()
	return &StatusResult{
		Status:    status,
		Completed: status == models.PurchaseStatusCompleted,
	}, nil
}

// ListPurchases retrieves the caller's purchase history
func (s *CheckoutService) ListPurchases(ctx context.Context, userID string) ([]models.Purchase, error) {
	return s.store.GetPurchasesByUserID(ctx, userID)
}

// audit writes a best-effort system log entry. Failures are swallowed with
// a fallback log line.
func (s *CheckoutService) audit(ctx context.Context, category, action, message string, metadata map[string]string) {
	payload, _ := json.Marshal(metadata)
	if err := s.store.InsertSystemLog(ctx, category, action, message, payload); err != nil {
		s.logger.Warn("Audit log write failed",
			zap.String("category", category),
			zap.String("action", action),
			zap.Error(err))
	}
}
