package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PixChargesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pix_charges_created_total",
		Help: "Total number of PIX charges created",
	})

	PixChargesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pix_charges_failed_total",
		Help: "Total number of failed PIX charge attempts",
	}, []string{"reason"})

	ProviderRequestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "provider_request_latency_seconds",
		Help:    "Latency of payment provider API calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_received_total",
		Help: "Total number of webhook events received",
	}, []string{"type"})

	WebhookSignatureFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_signature_failures_total",
		Help: "Total number of webhook requests rejected for bad signatures",
	})

	WebhookReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_replays_total",
		Help: "Total number of duplicate webhook deliveries suppressed",
	})

	PurchasesCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_completed_total",
		Help: "Total number of purchases marked completed",
	})

	PurchasesRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_refunded_total",
		Help: "Total number of purchases marked refunded",
	})

	PurchasesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_expired_total",
		Help: "Total number of pending purchases expired by the sweeper",
	})

	EntitlementsGrantedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entitlements_granted_total",
		Help: "Total number of entitlements granted",
	})

	EntitlementsRevokedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "entitlements_revoked_total",
		Help: "Total number of entitlements revoked after refunds",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
