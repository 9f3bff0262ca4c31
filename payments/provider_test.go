package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureValid(t *testing.T) {
	payload := []byte("order_test|pay_test")
	good := sign(string(payload), "secret")

	assert.True(t, signatureValid(payload, good, "secret"))
	assert.False(t, signatureValid(payload, good, "other-secret"))
	assert.False(t, signatureValid([]byte("order_test|pay_other"), good, "secret"))
	assert.False(t, signatureValid(payload, "", "secret"))
	assert.False(t, signatureValid(payload, good, ""))
}

func TestRazorpayProviderSignatureSchemes(t *testing.T) {
	p := NewRazorpayProvider("key_id", "key_secret", "hook_secret")

	paySig := sign("order_1|pay_1", "key_secret")
	assert.True(t, p.VerifyPaymentSignature("order_1", "pay_1", paySig))
	assert.False(t, p.VerifyPaymentSignature("order_1", "pay_2", paySig))

	// The webhook secret is distinct from the key secret.
	body := []byte(`{"event":"payment.captured"}`)
	hookSig := sign(string(body), "hook_secret")
	assert.True(t, p.VerifyWebhookSignature(body, hookSig))
	assert.False(t, p.VerifyWebhookSignature(body, sign(string(body), "key_secret")))
}
