package abacatepay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateQRCode(t *testing.T) {
	var gotAuth string
	var gotBody QRCodeParams

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, qrCodeCreatePath, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id":     "pix_char_123",
				"brCode": "000201real",
				"amount": 29700,
				"status": "PENDING",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "abc_dev_key")

	qr, err := client.CreateQRCode(context.Background(), QRCodeParams{
		Amount:      29700,
		ExpiresIn:   3600,
		Description: "Curso Avancado",
		Metadata:    map[string]string{"user_id": "U1", "asset_id": "A1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer abc_dev_key", gotAuth)
	assert.Equal(t, int64(29700), gotBody.Amount)
	assert.Equal(t, "U1", gotBody.Metadata["user_id"])
	assert.Equal(t, "pix_char_123", qr.ID)
	assert.Equal(t, "000201real", qr.BRCode)
	assert.Equal(t, int64(29700), qr.Amount)
}

func TestCreateQRCodeProviderError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"error": "amount below minimum"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "abc_dev_key")

	_, err := client.CreateQRCode(context.Background(), QRCodeParams{Amount: 10})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "amount below minimum")
}

func TestCreateQRCodeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "wrong_key")

	_, err := client.CreateQRCode(context.Background(), QRCodeParams{Amount: 29700})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestCreateCustomer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, customerCreatePath, r.URL.Path)

		var customer Customer
		require.NoError(t, json.NewDecoder(r.Body).Decode(&customer))
		assert.Equal(t, "12345678909", customer.TaxID)

		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"id": "cust_456",
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "abc_dev_key")

	id, err := client.CreateCustomer(context.Background(), Customer{
		Name:      "Maria Silva",
		Email:     "maria@example.com",
		Cellphone: "5511999998888",
		TaxID:     "12345678909",
	})
	require.NoError(t, err)
	assert.Equal(t, "cust_456", id)
}

func TestCreateCustomerEmptyID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{}})
	}))
	defer server.Close()

	client := NewClient(server.URL, "abc_dev_key")

	_, err := client.CreateCustomer(context.Background(), Customer{Name: "Maria"})
	assert.Error(t, err)
}
