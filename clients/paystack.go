package clients

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"ticketing/entity"
	"ticketing/monitoring"
	"time"

	"github.com/shopspring/decimal"
)

// minorUnits converts a major-unit amount to the integer the gateway expects
// (kobo for NGN, cents for USD).
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}

type PaystackConfig struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
	Timeout     time.Duration
}

type Paystack struct {
	client      jsonClient
	secretKey   string
	callbackURL string
}

func NewPaystack(cfg PaystackConfig) Paystack {
	return Paystack{
		client: jsonClient{
			hc:      &http.Client{Timeout: cfg.Timeout},
			baseURL: cfg.BaseURL,
			headers: map[string]string{"Authorization": "Bearer " + cfg.SecretKey},
		},
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
	}
}

type Checkout struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

type Transaction struct {
	Reference string
	Status    string
	Amount    decimal.Decimal
	Currency  string
}

type paystackReply[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

type initializeRequest struct {
	Email       string `json:"email"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type verifyData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
}

type refundRequest struct {
	Transaction string `json:"transaction"`
	Amount      int64  `json:"amount"`
}

func (p Paystack) configured() error {
	if p.secretKey == "" {
		return entity.Configuration("payment gateway secret key is not set")
	}
	return nil
}

// Initialize opens a hosted checkout for amount under reference.
func (p Paystack) Initialize(ctx context.Context, email, reference string, amount decimal.Decimal, currency string) (Checkout, error) {
	if err := p.configured(); err != nil {
		return Checkout{}, err
	}
	defer monitoring.TrackGatewayCall("initialize", time.Now())

	var reply paystackReply[initializeData]
	status, err := p.client.do(ctx, http.MethodPost, "/transaction/initialize", initializeRequest{
		Email:       email,
		Amount:      minorUnits(amount),
		Currency:    currency,
		Reference:   reference,
		CallbackURL: p.callbackURL,
	}, &reply)
	if err := gatewayFailure("initializing transaction", status, err, reply.Status, reply.Message); err != nil {
		return Checkout{}, err
	}

	return Checkout{
		AuthorizationURL: reply.Data.AuthorizationURL,
		AccessCode:       reply.Data.AccessCode,
		Reference:        reply.Data.Reference,
	}, nil
}

// Verify reads the provider's view of a transaction.
func (p Paystack) Verify(ctx context.Context, reference string) (Transaction, error) {
	if err := p.configured(); err != nil {
		return Transaction{}, err
	}
	defer monitoring.TrackGatewayCall("verify", time.Now())

	var reply paystackReply[verifyData]
	status, err := p.client.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &reply)
	if err := gatewayFailure("verifying transaction", status, err, reply.Status, reply.Message); err != nil {
		return Transaction{}, err
	}

	return Transaction{
		Reference: reply.Data.Reference,
		Status:    reply.Data.Status,
		Amount:    fromMinorUnits(reply.Data.Amount),
		Currency:  reply.Data.Currency,
	}, nil
}

func (p Paystack) Refund(ctx context.Context, reference string, amount decimal.Decimal) error {
	if err := p.configured(); err != nil {
		return err
	}
	defer monitoring.TrackGatewayCall("refund", time.Now())

	var reply paystackReply[map[string]any]
	status, err := p.client.do(ctx, http.MethodPost, "/refund", refundRequest{
		Transaction: reference,
		Amount:      minorUnits(amount),
	}, &reply)

	return gatewayFailure("refunding transaction", status, err, reply.Status, reply.Message)
}

// VerifySignature checks a webhook body against its X-Paystack-Signature
// header: hex HMAC-SHA512 of the raw body keyed with the secret key.
func (p Paystack) VerifySignature(body []byte, signature string) error {
	if err := p.configured(); err != nil {
		return err
	}

	mac := hmac.New(sha512.New, []byte(p.secretKey))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return entity.ErrInvalidSignature
	}

	return nil
}

func gatewayFailure(op string, status int, err error, ok bool, message string) error {
	if err != nil {
		return entity.Gateway(op, err)
	}
	if status < 200 || status >= 300 || !ok {
		return entity.Gateway(op, fmt.Errorf("provider returned %d: %s", status, message))
	}
	return nil
}
