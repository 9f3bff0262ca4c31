package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/razorpay/razorpay-go"
)

// Provider is the payment-processor contract the reconciliation engine
// consumes: opaque order issuance plus the two signature schemes Razorpay
// publishes (per-payment key secret, webhook-specific secret).
type Provider interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (string, error)
	VerifyPaymentSignature(providerOrderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
}

type razorpayProvider struct {
	client        *razorpay.Client
	keySecret     string
	webhookSecret string
}

// NewRazorpayProvider wraps the Razorpay SDK client. The key secret signs
// individual payment confirmations; the webhook secret signs deliveries.
func NewRazorpayProvider(keyID, keySecret, webhookSecret string) Provider {
	return &razorpayProvider{
		client:        razorpay.NewClient(keyID, keySecret),
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
	}
}

// CreateOrder issues a provider order. The SDK client does not take a
// context; the surrounding request deadline still bounds the handler.
func (p *razorpayProvider) CreateOrder(_ context.Context, amountMinor int64, currency, receipt string) (string, error) {
	data := map[string]interface{}{
		"amount":          amountMinor,
		"currency":        currency,
		"receipt":         receipt,
		"payment_capture": 1,
	}

	order, err := p.client.Order.Create(data, nil)
	if err != nil {
		return "", fmt.Errorf("create razorpay order: %w", err)
	}

	id, ok := order["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("razorpay order response missing id")
	}
	return id, nil
}

func (p *razorpayProvider) VerifyPaymentSignature(providerOrderID, paymentID, signature string) bool {
	return signatureValid([]byte(providerOrderID+"|"+paymentID), signature, p.keySecret)
}

func (p *razorpayProvider) VerifyWebhookSignature(body []byte, signature string) bool {
	return signatureValid(body, signature, p.webhookSecret)
}

// signatureValid checks a hex-encoded HMAC-SHA256 over payload. The compare
// is constant time.
func signatureValid(payload []byte, signature, secret string) bool {
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
