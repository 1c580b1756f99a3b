package clients_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"ticketing/clients"
	"ticketing/entity"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPaystack(t *testing.T, handler http.HandlerFunc) clients.Paystack {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return clients.NewPaystack(clients.PaystackConfig{
		SecretKey:   "sk_test",
		BaseURL:     srv.URL,
		CallbackURL: "https://eventful.local/payments/callback",
		Timeout:     time.Second,
	})
}

func TestPaystack_Initialize(t *testing.T) {
	p := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, float64(250050), body["amount"])
		assert.Equal(t, "PAY-1", body["reference"])
		assert.Equal(t, "buyer@example.com", body["email"])
		assert.Equal(t, "https://eventful.local/payments/callback", body["callback_url"])

		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created","data":{
			"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"PAY-1"}}`))
	})

	checkout, err := p.Initialize(context.Background(), "buyer@example.com", "PAY-1", decimal.RequireFromString("2500.50"), "NGN")
	require.NoError(t, err)

	assert.Equal(t, "https://checkout.paystack.com/abc", checkout.AuthorizationURL)
	assert.Equal(t, "PAY-1", checkout.Reference)
}

func TestPaystack_Initialize_ProviderRejects(t *testing.T) {
	p := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"status":false,"message":"Invalid email"}`))
	})

	_, err := p.Initialize(context.Background(), "nope", "PAY-1", decimal.NewFromInt(10), "NGN")

	assert.Equal(t, entity.KindGateway, entity.KindOf(err))
	assert.Contains(t, err.Error(), "Invalid email")
}

func TestPaystack_Initialize_StatusFalseOn200(t *testing.T) {
	p := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":false,"message":"Duplicate reference"}`))
	})

	_, err := p.Initialize(context.Background(), "a@b.c", "PAY-1", decimal.NewFromInt(10), "NGN")

	assert.Equal(t, entity.KindGateway, entity.KindOf(err))
}

func TestPaystack_Timeout(t *testing.T) {
	p := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(1500 * time.Millisecond)
	})

	_, err := p.Verify(context.Background(), "PAY-1")

	assert.Equal(t, entity.KindGateway, entity.KindOf(err))
}

func TestPaystack_Verify(t *testing.T) {
	p := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/transaction/verify/PAY-1", r.URL.Path)

		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful","data":{
			"reference":"PAY-1","status":"success","amount":500000,"currency":"NGN"}}`))
	})

	tx, err := p.Verify(context.Background(), "PAY-1")
	require.NoError(t, err)

	assert.Equal(t, "success", tx.Status)
	assert.True(t, tx.Amount.Equal(decimal.NewFromInt(5000)), tx.Amount.String())
	assert.Equal(t, "NGN", tx.Currency)
}

func TestPaystack_Refund(t *testing.T) {
	p := newPaystack(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refund", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "PAY-1", body["transaction"])
		assert.Equal(t, float64(100000), body["amount"])

		_, _ = w.Write([]byte(`{"status":true,"message":"Refund has been queued for processing","data":{}}`))
	})

	require.NoError(t, p.Refund(context.Background(), "PAY-1", decimal.NewFromInt(1000)))
}

func TestPaystack_Unconfigured(t *testing.T) {
	p := clients.NewPaystack(clients.PaystackConfig{BaseURL: "http://127.0.0.1:1"})

	_, err := p.Initialize(context.Background(), "a@b.c", "PAY-1", decimal.NewFromInt(10), "NGN")
	assert.Equal(t, entity.KindConfiguration, entity.KindOf(err))

	_, err = p.Verify(context.Background(), "PAY-1")
	assert.Equal(t, entity.KindConfiguration, entity.KindOf(err))
}

func TestPaystack_VerifySignature(t *testing.T) {
	p := clients.NewPaystack(clients.PaystackConfig{SecretKey: "sk_test"})
	body := []byte(`{"event":"charge.success","data":{"reference":"PAY-1"}}`)

	mac := hmac.New(sha512.New, []byte("sk_test"))
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	assert.NoError(t, p.VerifySignature(body, signature))
	assert.ErrorIs(t, p.VerifySignature(body, "deadbeef"), entity.ErrInvalidSignature)
	assert.ErrorIs(t, p.VerifySignature([]byte(`{"event":"charge.success"}`), signature), entity.ErrInvalidSignature)
}
