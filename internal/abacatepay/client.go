package abacatepay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"payment-service/internal/util"
)

const (
	customerCreatePath = "/v1/customer/create"
	qrCodeCreatePath   = "/v1/pixQrCode/create"
)

// Client is an HTTP client for the AbacatePay PIX API
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a new AbacatePay client
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

// SetHTTPClient overrides the underlying HTTP client, used by tests
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.http = hc
}

// Customer is the provider-side customer payload
type Customer struct {
	Name      string `json:"name"`
	Email     string `json:"email"`
	Cellphone string `json:"cellphone"`
	TaxID     string `json:"taxId"`
}

// QRCodeParams describes a PIX charge request
type QRCodeParams struct {
	Amount      int64             `json:"amount"`
	ExpiresIn   int               `json:"expiresIn"`
	Description string            `json:"description"`
	CustomerID  string            `json:"customerId,omitempty"`
	Customer    *Customer         `json:"customer,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// QRCode is the provider's PIX charge response
type QRCode struct {
	ID           string    `json:"id"`
	BRCode       string    `json:"brCode"`
	BRCodeBase64 string    `json:"brCodeBase64"`
	Amount       int64     `json:"amount"`
	Status       string    `json:"status"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

type customerEnvelope struct {
	Data struct {
		ID       string   `json:"id"`
		Metadata Customer `json:"metadata"`
	} `json:"data"`
	Error string `json:"error"`
}

type qrCodeEnvelope struct {
	Data  QRCode `json:"data"`
	Error string `json:"error"`
}

// CreateCustomer registers a customer with the provider and returns its id
func (c *Client) CreateCustomer(ctx context.Context, customer Customer) (string, error) {
	start := time.Now()
	defer func() {
		util.ProviderRequestLatency.WithLabelValues("create_customer").Observe(time.Since(start).Seconds())
	}()

	var envelope customerEnvelope
	if err := c.post(ctx, customerCreatePath, customer, &envelope); err != nil {
		return "", err
	}
	if envelope.Error != "" {
		return "", fmt.Errorf("abacatepay customer create: %s", envelope.Error)
	}
	if envelope.Data.ID == "" {
		return "", fmt.Errorf("abacatepay customer create: empty customer id")
	}
	return envelope.Data.ID, nil
}

// CreateQRCode creates a PIX charge and returns the QR code payload
func (c *Client) CreateQRCode(ctx context.Context, params QRCodeParams) (*QRCode, error) {
	start := time.Now()
	defer func() {
		util.ProviderRequestLatency.WithLabelValues("create_qrcode").Observe(time.Since(start).Seconds())
	}()

	var envelope qrCodeEnvelope
	if err := c.post(ctx, qrCodeCreatePath, params, &envelope); err != nil {
		return nil, err
	}
	if envelope.Error != "" {
		return nil, fmt.Errorf("abacatepay qrcode create: %s", envelope.Error)
	}
	if envelope.Data.ID == "" {
		return nil, fmt.Errorf("abacatepay qrcode create: empty transaction id")
	}
	return &envelope.Data, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("provider request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("provider returned %d: %s", resp.StatusCode, truncate(string(data), 200))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
