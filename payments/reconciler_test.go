package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rishcx/newtrip/models"
	"github.com/rishcx/newtrip/store"
)

const (
	testKeySecret     = "test_key_secret"
	testWebhookSecret = "test_webhook_secret"
)

func sign(payload, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

type fakeProductStore struct {
	products map[string]*models.Product
}

func (f *fakeProductStore) GetByID(_ context.Context, id string) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, store.ErrProductNotFound
	}
	return p, nil
}

type fakeOrderStore struct {
	orders map[string]*models.Order
	items  map[string][]models.OrderItem

	failItemInsert bool
	completeWrites int
	failWrites     int
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{
		orders: map[string]*models.Order{},
		items:  map[string][]models.OrderItem{},
	}
}

func (f *fakeOrderStore) Insert(_ context.Context, o *models.Order) (string, error) {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	copied := *o
	f.orders[o.ID.Hex()] = &copied
	return o.ID.Hex(), nil
}

func (f *fakeOrderStore) InsertItems(_ context.Context, items []models.OrderItem) error {
	if f.failItemInsert {
		return errors.New("item insert failed")
	}
	for _, item := range items {
		key := item.OrderID.Hex()
		f.items[key] = append(f.items[key], item)
	}
	return nil
}

func (f *fakeOrderStore) Delete(_ context.Context, orderID string) error {
	delete(f.orders, orderID)
	delete(f.items, orderID)
	return nil
}

func (f *fakeOrderStore) SetProviderOrderID(_ context.Context, orderID, providerOrderID string) error {
	o, ok := f.orders[orderID]
	if !ok {
		return store.ErrOrderNotFound
	}
	o.ProviderOrderID = providerOrderID
	return nil
}

func (f *fakeOrderStore) GetByIDAndUser(_ context.Context, orderID, userID string) (*models.Order, error) {
	o, ok := f.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, store.ErrOrderNotFound
	}
	copied := *o
	return &copied, nil
}

func (f *fakeOrderStore) GetByProviderOrderID(_ context.Context, providerOrderID string) (*models.Order, error) {
	for _, o := range f.orders {
		if o.ProviderOrderID == providerOrderID {
			copied := *o
			return &copied, nil
		}
	}
	return nil, store.ErrOrderNotFound
}

func (f *fakeOrderStore) ListByUser(_ context.Context, userID string) ([]models.Order, error) {
	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderStore) GetItems(_ context.Context, orderID string) ([]models.OrderItem, error) {
	return f.items[orderID], nil
}

func (f *fakeOrderStore) Complete(_ context.Context, orderID, paymentID string) (bool, error) {
	return f.transition(orderID, paymentID, models.OrderStatusCompleted, models.PaymentStatusPaid, &f.completeWrites)
}

func (f *fakeOrderStore) Fail(_ context.Context, orderID, paymentID string) (bool, error) {
	return f.transition(orderID, paymentID, models.OrderStatusFailed, models.PaymentStatusFailed, &f.failWrites)
}

func (f *fakeOrderStore) transition(orderID, paymentID, status, paymentStatus string, writes *int) (bool, error) {
	o, ok := f.orders[orderID]
	if !ok || o.Status != models.OrderStatusPending {
		return false, nil
	}
	o.Status = status
	o.PaymentStatus = paymentStatus
	if paymentID != "" {
		o.PaymentID = paymentID
	}
	*writes++
	return true, nil
}

type fakeEventStore struct {
	seen map[string]bool
}

func newFakeEventStore() *fakeEventStore {
	return &fakeEventStore{seen: map[string]bool{}}
}

func (f *fakeEventStore) MarkProcessed(_ context.Context, event *models.PaymentEvent) (bool, error) {
	if f.seen[event.EventID] {
		return false, nil
	}
	f.seen[event.EventID] = true
	return true, nil
}

type fakeProvider struct {
	failCreate bool
	created    []int64
}

func (f *fakeProvider) CreateOrder(_ context.Context, amountMinor int64, _, _ string) (string, error) {
	if f.failCreate {
		return "", errors.New("provider unreachable")
	}
	f.created = append(f.created, amountMinor)
	return "order_rzp_test123", nil
}

func (f *fakeProvider) VerifyPaymentSignature(providerOrderID, paymentID, signature string) bool {
	return signatureValid([]byte(providerOrderID+"|"+paymentID), signature, testKeySecret)
}

func (f *fakeProvider) VerifyWebhookSignature(body []byte, signature string) bool {
	return signatureValid(body, signature, testWebhookSecret)
}

type testEnv struct {
	products *fakeProductStore
	orders   *fakeOrderStore
	events   *fakeEventStore
	provider *fakeProvider
}

func newTestReconciler(mockMode bool) (*Reconciler, *testEnv) {
	env := &testEnv{
		products: &fakeProductStore{products: map[string]*models.Product{}},
		orders:   newFakeOrderStore(),
		events:   newFakeEventStore(),
		provider: &fakeProvider{},
	}
	return NewReconciler(env.products, env.orders, env.events, env.provider, mockMode), env
}

func addProduct(env *testEnv, price float64) string {
	id := primitive.NewObjectID()
	env.products.products[id.Hex()] = &models.Product{
		ID:    id,
		Name:  "Trippy Tee",
		Price: price,
	}
	return id.Hex()
}

func TestCreateOrderComputesTotalServerSide(t *testing.T) {
	r, env := newTestReconciler(false)
	productID := addProduct(env, 499.00)

	result, err := r.CreateOrder(context.Background(), "user-1", []ItemRequest{
		{ProductID: productID, Quantity: 2, Size: "M", Color: "red"},
	})
	require.NoError(t, err)

	assert.Equal(t, 998.00, result.Amount)
	assert.Equal(t, int64(99800), result.AmountMinor)
	assert.Equal(t, "order_rzp_test123", result.ProviderOrderID)
	assert.False(t, result.Mock)

	order := env.orders.orders[result.OrderID]
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, 998.00, order.TotalAmount)

	items := env.orders.items[result.OrderID]
	require.Len(t, items, 1)
	assert.Equal(t, 499.00, items[0].UnitPrice)
	assert.Equal(t, 2, items[0].Quantity)
	assert.Equal(t, "M", items[0].Size)
	assert.Equal(t, "red", items[0].Color)
}

func TestCreateOrderEmptyCart(t *testing.T) {
	r, env := newTestReconciler(false)

	_, err := r.CreateOrder(context.Background(), "user-1", nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, env.orders.orders)
}

func TestCreateOrderUnknownProductWritesNothing(t *testing.T) {
	r, env := newTestReconciler(false)
	known := addProduct(env, 100.00)

	_, err := r.CreateOrder(context.Background(), "user-1", []ItemRequest{
		{ProductID: known, Quantity: 1},
		{ProductID: primitive.NewObjectID().Hex(), Quantity: 1},
	})
	assert.ErrorIs(t, err, store.ErrProductNotFound)
	assert.Empty(t, env.orders.orders)
	assert.Empty(t, env.orders.items)
}

func TestCreateOrderCompensatesFailedItemInsert(t *testing.T) {
	r, env := newTestReconciler(false)
	productID := addProduct(env, 250.00)
	env.orders.failItemInsert = true

	_, err := r.CreateOrder(context.Background(), "user-1", []ItemRequest{
		{ProductID: productID, Quantity: 1},
	})
	require.Error(t, err)

	// The compensating delete must leave no orphan order behind.
	assert.Empty(t, env.orders.orders)
	assert.Empty(t, env.orders.items)
}

func TestCreateOrderPlaceholderHandleOnProviderFailure(t *testing.T) {
	r, env := newTestReconciler(false)
	productID := addProduct(env, 100.00)
	env.provider.failCreate = true

	result, err := r.CreateOrder(context.Background(), "user-1", []ItemRequest{
		{ProductID: productID, Quantity: 1},
	})
	require.NoError(t, err)

	assert.True(t, result.Mock)
	assert.True(t, strings.HasPrefix(result.ProviderOrderID, MockOrderPrefix))
	assert.Equal(t, result.ProviderOrderID, env.orders.orders[result.OrderID].ProviderOrderID)
}

func createPendingOrder(t *testing.T, r *Reconciler, env *testEnv, userID string) *CreateOrderResult {
	t.Helper()
	productID := addProduct(env, 499.00)
	result, err := r.CreateOrder(context.Background(), userID, []ItemRequest{
		{ProductID: productID, Quantity: 1, Size: "L"},
	})
	require.NoError(t, err)
	return result
}

func TestVerifyPaymentDoubleConfirmationIsIdempotent(t *testing.T) {
	r, env := newTestReconciler(false)
	created := createPendingOrder(t, r, env, "user-1")

	req := VerifyRequest{
		OrderID:         created.OrderID,
		ProviderOrderID: created.ProviderOrderID,
		PaymentID:       "pay_abc123",
		Signature:       sign(created.ProviderOrderID+"|pay_abc123", testKeySecret),
	}

	first, err := r.VerifyPayment(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.True(t, first.Verified)
	assert.Equal(t, models.OrderStatusCompleted, first.Status)
	assert.False(t, first.AlreadyFinal)

	second, err := r.VerifyPayment(context.Background(), "user-1", req)
	require.NoError(t, err)
	assert.True(t, second.Verified)
	assert.Equal(t, models.OrderStatusCompleted, second.Status)
	assert.True(t, second.AlreadyFinal)

	// Exactly one state write across both confirmations.
	assert.Equal(t, 1, env.orders.completeWrites)
	assert.Equal(t, 0, env.orders.failWrites)
}

func TestVerifyPaymentTamperedSignatureNeverCompletes(t *testing.T) {
	r, env := newTestReconciler(false)
	created := createPendingOrder(t, r, env, "user-1")

	result, err := r.VerifyPayment(context.Background(), "user-1", VerifyRequest{
		OrderID:         created.OrderID,
		ProviderOrderID: created.ProviderOrderID,
		PaymentID:       "pay_abc123",
		Signature:       "deadbeef",
	})
	assert.ErrorIs(t, err, ErrSignatureInvalid)
	assert.False(t, result.Verified)
	assert.Equal(t, models.OrderStatusFailed, result.Status)

	order := env.orders.orders[created.OrderID]
	assert.Equal(t, models.OrderStatusFailed, order.Status)
	assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)
}

func TestVerifyPaymentForeignOwnerLeavesOrderUntouched(t *testing.T) {
	r, env := newTestReconciler(false)
	created := createPendingOrder(t, r, env, "user-a")

	_, err := r.VerifyPayment(context.Background(), "user-b", VerifyRequest{
		OrderID:         created.OrderID,
		ProviderOrderID: created.ProviderOrderID,
		PaymentID:       "pay_abc123",
		Signature:       sign(created.ProviderOrderID+"|pay_abc123", testKeySecret),
	})
	assert.ErrorIs(t, err, store.ErrOrderNotFound)

	order := env.orders.orders[created.OrderID]
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, models.PaymentStatusPending, order.PaymentStatus)
}

func TestVerifyPaymentMockModeSoftPasses(t *testing.T) {
	r, env := newTestReconciler(true)
	created := createPendingOrder(t, r, env, "user-1")

	result, err := r.VerifyPayment(context.Background(), "user-1", VerifyRequest{
		OrderID:         created.OrderID,
		ProviderOrderID: created.ProviderOrderID,
		PaymentID:       "pay_abc123",
		Signature:       "not-a-signature",
	})
	require.NoError(t, err)
	assert.True(t, result.Verified)
	assert.Equal(t, models.OrderStatusCompleted, result.Status)
}

func capturedEventBody(providerOrderID, paymentID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"payment.captured","payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`,
		paymentID, providerOrderID,
	))
}

func TestWebhookCapturedCompletesOrder(t *testing.T) {
	r, env := newTestReconciler(false)
	created := createPendingOrder(t, r, env, "user-1")

	body := capturedEventBody(created.ProviderOrderID, "pay_hook1")
	result, err := r.HandleWebhook(context.Background(), body, sign(string(body), testWebhookSecret), "evt_1")
	require.NoError(t, err)

	assert.True(t, result.Applied)
	assert.False(t, result.Duplicate)
	assert.Equal(t, created.OrderID, result.OrderID)

	order := env.orders.orders[created.OrderID]
	assert.Equal(t, models.OrderStatusCompleted, order.Status)
	assert.Equal(t, models.PaymentStatusPaid, order.PaymentStatus)
	assert.Equal(t, "pay_hook1", order.PaymentID)
}

func TestWebhookRedeliveryIsNoOp(t *testing.T) {
	r, env := newTestReconciler(false)
	created := createPendingOrder(t, r, env, "user-1")

	body := capturedEventBody(created.ProviderOrderID, "pay_hook1")
	signature := sign(string(body), testWebhookSecret)

	first, err := r.HandleWebhook(context.Background(), body, signature, "evt_1")
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := r.HandleWebhook(context.Background(), body, signature, "evt_1")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.False(t, second.Applied)

	assert.Equal(t, 1, env.orders.completeWrites)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	r, env := newTestReconciler(false)
	created := createPendingOrder(t, r, env, "user-1")

	body := capturedEventBody(created.ProviderOrderID, "pay_hook1")
	_, err := r.HandleWebhook(context.Background(), body, "bogus", "evt_1")
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	// Rejected deliveries must not consume the event id.
	assert.Empty(t, env.events.seen)
	assert.Equal(t, models.OrderStatusPending, env.orders.orders[created.OrderID].Status)
}

func TestWebhookPaymentFailedFailsOrder(t *testing.T) {
	r, env := newTestReconciler(false)
	created := createPendingOrder(t, r, env, "user-1")

	body := []byte(fmt.Sprintf(
		`{"event":"payment.failed","payload":{"payment":{"entity":{"id":"pay_bad","order_id":%q,"status":"failed"}}}}`,
		created.ProviderOrderID,
	))
	result, err := r.HandleWebhook(context.Background(), body, sign(string(body), testWebhookSecret), "evt_2")
	require.NoError(t, err)
	assert.True(t, result.Applied)

	order := env.orders.orders[created.OrderID]
	assert.Equal(t, models.OrderStatusFailed, order.Status)
	assert.Equal(t, models.PaymentStatusFailed, order.PaymentStatus)
}

func TestWebhookUnknownEventIsAcknowledged(t *testing.T) {
	r, _ := newTestReconciler(false)

	body := []byte(`{"event":"refund.processed","payload":{}}`)
	result, err := r.HandleWebhook(context.Background(), body, sign(string(body), testWebhookSecret), "evt_3")
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.Equal(t, "refund.processed", result.Event)
}

func TestWebhookDeduplicatesOnBodyDigestWithoutHeader(t *testing.T) {
	r, env := newTestReconciler(false)
	created := createPendingOrder(t, r, env, "user-1")

	body := capturedEventBody(created.ProviderOrderID, "pay_hook1")
	signature := sign(string(body), testWebhookSecret)

	first, err := r.HandleWebhook(context.Background(), body, signature, "")
	require.NoError(t, err)
	assert.True(t, first.Applied)

	second, err := r.HandleWebhook(context.Background(), body, signature, "")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
}

func TestWebhookAlreadyTerminalOrderNotReapplied(t *testing.T) {
	r, env := newTestReconciler(false)
	created := createPendingOrder(t, r, env, "user-1")

	// Client confirmation wins first.
	_, err := r.VerifyPayment(context.Background(), "user-1", VerifyRequest{
		OrderID:         created.OrderID,
		ProviderOrderID: created.ProviderOrderID,
		PaymentID:       "pay_abc123",
		Signature:       sign(created.ProviderOrderID+"|pay_abc123", testKeySecret),
	})
	require.NoError(t, err)

	body := capturedEventBody(created.ProviderOrderID, "pay_hook_late")
	result, err := r.HandleWebhook(context.Background(), body, sign(string(body), testWebhookSecret), "evt_late")
	require.NoError(t, err)

	// The CAS guard refuses a second terminal transition.
	assert.False(t, result.Applied)
	assert.Equal(t, "pay_abc123", env.orders.orders[created.OrderID].PaymentID)
}
