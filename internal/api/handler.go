package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"payment-service/internal/models"
	"payment-service/internal/service"
	"payment-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// maxWebhookBody caps how much of a webhook request is read before
// signature verification
const maxWebhookBody = 1 << 20

// Handler contains HTTP handlers
type Handler struct {
	checkout *service.CheckoutService
	webhook  *service.WebhookService
	auth     *SessionAuth
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(checkout *service.CheckoutService, webhook *service.WebhookService, auth *SessionAuth) *Handler {
	return &Handler{
		checkout: checkout,
		webhook:  webhook,
		auth:     auth,
		logger:   util.GetLogger(),
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	// non-POST on the webhook path must answer 405, not 404
	router.HandleMethodNotAllowed = true

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	payment := router.Group("/api/payment")
	{
		payment.POST("/create-pix", h.auth.Require(), h.createPix)
		payment.GET("/check-status", h.checkStatus)
		payment.GET("/purchases", h.auth.Require(), h.listPurchases)
	}

	router.POST("/api/webhooks/payment", h.paymentWebhook)
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck handles readiness check requests
func (h *Handler) readinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

type createPixRequest struct {
	AssetID string `json:"assetId"`
}

// createPix handles checkout initiation
func (h *Handler) createPix(c *gin.Context) {
	userID := SessionUserID(c)

	var req createPixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.checkout.CreatePix(c.Request.Context(), userID, req.AssetID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "assetId is required"})
		case errors.Is(err, service.ErrAssetNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		case errors.Is(err, service.ErrAlreadyOwned):
			c.JSON(http.StatusBadRequest, gin.H{"error": "asset already purchased"})
		case errors.Is(err, service.ErrCheckoutInProgress):
			c.JSON(http.StatusBadRequest, gin.H{"error": "checkout already in progress"})
		default:
			h.logger.Error("Checkout initiation failed",
				zap.String("user_id", userID),
				zap.String("asset_id", req.AssetID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create pix charge"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"pix":     result.Pix,
		"asset":   result.Asset,
	})
}

// checkStatus handles purchase status polling
func (h *Handler) checkStatus(c *gin.Context) {
	transactionID := c.Query("transactionId")

	result, err := h.checkout.CheckStatus(c.Request.Context(), transactionID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrValidation):
			c.JSON(http.StatusBadRequest, gin.H{"error": "transactionId is required"})
		case errors.Is(err, service.ErrUnknownTransaction):
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown transaction"})
		default:
			h.logger.Error("Status lookup failed",
				zap.String("transaction_id", transactionID),
				zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "error checking status"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// listPurchases handles the caller's purchase history
func (h *Handler) listPurchases(c *gin.Context) {
	userID := SessionUserID(c)

	purchases, err := h.checkout.ListPurchases(c.Request.Context(), userID)
	if err != nil {
		h.logger.Error("Purchase listing failed", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list purchases"})
		return
	}
	if purchases == nil {
		purchases = []models.Purchase{}
	}

	c.JSON(http.StatusOK, gin.H{"purchases": purchases})
}

// paymentWebhook handles provider payment notifications. The raw body is
// read before any parsing so the signature covers the exact bytes on the
// wire.
func (h *Handler) paymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read body"})
		return
	}

	if !h.webhook.VerifySignature(body, c.GetHeader("x-signature")) {
		util.WebhookSignatureFailures.Inc()
		h.logger.Warn("Webhook signature verification failed",
			zap.String("remote_addr", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	event, err := models.ParseWebhookEvent(body)
	if err != nil {
		h.logger.Warn("Malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed event"})
		return
	}

	if err := h.webhook.HandleEvent(c.Request.Context(), event); err != nil {
		h.logger.Error("Webhook processing failed",
			zap.String("type", event.Type),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
