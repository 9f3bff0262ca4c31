package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rishcx/newtrip/models"
	"github.com/rishcx/newtrip/store"
)

// MockOrderPrefix tags placeholder payment handles created when the provider
// is unreachable, so reconciliation never mistakes one for a real Razorpay id.
const MockOrderPrefix = "order_mock_"

const defaultCurrency = "INR"

var (
	ErrEmptyCart        = errors.New("cart is empty")
	ErrInvalidQuantity  = errors.New("item quantity must be at least 1")
	ErrSignatureInvalid = errors.New("invalid payment signature")
	ErrMalformedEvent   = errors.New("malformed webhook payload")
)

// Reconciler owns the order lifecycle: creation with compensation, one-shot
// terminal transitions on verified confirmations, and idempotent webhook
// reconciliation.
type Reconciler struct {
	products store.ProductStore
	orders   store.OrderStore
	events   store.EventStore
	provider Provider

	// mockMode soft-passes failed signature checks for deployments without
	// live payment credentials. Every soft-pass is logged.
	mockMode bool
}

func NewReconciler(products store.ProductStore, orders store.OrderStore, events store.EventStore, provider Provider, mockMode bool) *Reconciler {
	return &Reconciler{
		products: products,
		orders:   orders,
		events:   events,
		provider: provider,
		mockMode: mockMode,
	}
}

// ItemRequest is one requested cart line. Unit price is never taken from
// the client.
type ItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

type CreateOrderResult struct {
	OrderID         string
	ProviderOrderID string
	Amount          float64
	AmountMinor     int64
	Currency        string
	Mock            bool
}

type VerifyRequest struct {
	OrderID         string
	ProviderOrderID string
	PaymentID       string
	Signature       string
}

type VerifyResult struct {
	OrderID       string
	Status        string
	PaymentStatus string
	Verified      bool
	AlreadyFinal  bool
}

type WebhookResult struct {
	EventID   string
	Event     string
	OrderID   string
	Duplicate bool
	Applied   bool
}

// CreateOrder prices the cart from the catalog, persists the order and its
// line items, and obtains a payment handle. Any failure before the order
// insert is side-effect free; a failed item insert deletes the order row;
// a provider failure degrades to a placeholder handle but never fails the
// request.
func (r *Reconciler) CreateOrder(ctx context.Context, userID string, items []ItemRequest) (*CreateOrderResult, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	total := decimal.Zero
	orderItems := make([]models.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, ErrInvalidQuantity
		}

		product, err := r.products.GetByID(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}

		unitPrice := decimal.NewFromFloat(product.Price)
		total = total.Add(unitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))

		orderItems = append(orderItems, models.OrderItem{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
			Size:      item.Size,
			Color:     item.Color,
		})
	}

	now := time.Now()
	order := &models.Order{
		UserID:        userID,
		Status:        models.OrderStatusPending,
		PaymentStatus: models.PaymentStatusPending,
		TotalAmount:   total.InexactFloat64(),
		Currency:      defaultCurrency,
		Receipt:       "receipt_" + uuid.NewString(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	orderID, err := r.orders.Insert(ctx, order)
	if err != nil {
		return nil, err
	}

	for i := range orderItems {
		orderItems[i].OrderID = order.ID
	}

	if err := r.orders.InsertItems(ctx, orderItems); err != nil {
		// No cross-collection transaction: compensate by removing the
		// order so no item-less order is ever visible.
		if delErr := r.orders.Delete(ctx, orderID); delErr != nil {
			log.Printf("compensation failed for order %s: %v", orderID, delErr)
		}
		return nil, err
	}

	// Paise via integer conversion; float accumulation would drift.
	amountMinor := total.Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	result := &CreateOrderResult{
		OrderID:     orderID,
		Amount:      total.InexactFloat64(),
		AmountMinor: amountMinor,
		Currency:    defaultCurrency,
	}

	providerOrderID, err := r.provider.CreateOrder(ctx, amountMinor, defaultCurrency, order.Receipt)
	if err != nil {
		log.Printf("razorpay order creation failed, issuing placeholder handle: %v", err)
		providerOrderID = MockOrderPrefix + shortID(orderID)
		result.Mock = true
	}

	if err := r.orders.SetProviderOrderID(ctx, orderID, providerOrderID); err != nil {
		return nil, err
	}
	result.ProviderOrderID = providerOrderID

	return result, nil
}

// VerifyPayment applies the one-shot terminal transition for a client
// confirmation. Re-invoking on a terminal order returns the stored outcome
// without writing; concurrent confirmations race on a conditional update.
func (r *Reconciler) VerifyPayment(ctx context.Context, userID string, req VerifyRequest) (*VerifyResult, error) {
	order, err := r.orders.GetByIDAndUser(ctx, req.OrderID, userID)
	if err != nil {
		return nil, err
	}

	if order.Terminal() {
		return &VerifyResult{
			OrderID:       req.OrderID,
			Status:        order.Status,
			PaymentStatus: order.PaymentStatus,
			Verified:      order.Status == models.OrderStatusCompleted,
			AlreadyFinal:  true,
		}, nil
	}

	verified := r.provider.VerifyPaymentSignature(req.ProviderOrderID, req.PaymentID, req.Signature)
	if !verified && r.mockMode {
		log.Printf("mock mode: accepting unverified payment for order %s", req.OrderID)
		verified = true
	}

	if verified {
		applied, err := r.orders.Complete(ctx, req.OrderID, req.PaymentID)
		if err != nil {
			return nil, err
		}
		if !applied {
			// Lost the race to a concurrent confirmation; report what won.
			return r.currentOutcome(ctx, userID, req.OrderID)
		}
		return &VerifyResult{
			OrderID:       req.OrderID,
			Status:        models.OrderStatusCompleted,
			PaymentStatus: models.PaymentStatusPaid,
			Verified:      true,
		}, nil
	}

	applied, err := r.orders.Fail(ctx, req.OrderID, req.PaymentID)
	if err != nil {
		return nil, err
	}
	if !applied {
		return r.currentOutcome(ctx, userID, req.OrderID)
	}
	return &VerifyResult{
		OrderID:       req.OrderID,
		Status:        models.OrderStatusFailed,
		PaymentStatus: models.PaymentStatusFailed,
	}, ErrSignatureInvalid
}

func (r *Reconciler) currentOutcome(ctx context.Context, userID, orderID string) (*VerifyResult, error) {
	order, err := r.orders.GetByIDAndUser(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{
		OrderID:       orderID,
		Status:        order.Status,
		PaymentStatus: order.PaymentStatus,
		Verified:      order.Status == models.OrderStatusCompleted,
		AlreadyFinal:  true,
	}, nil
}

// webhookEvent is the slice of the Razorpay delivery we act on.
type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook verifies the delivery against the raw body, records the
// event id before acting, and reconciles order state from the event alone.
// Redelivery of a recorded event id is a no-op.
func (r *Reconciler) HandleWebhook(ctx context.Context, body []byte, signature, eventID string) (*WebhookResult, error) {
	if !r.provider.VerifyWebhookSignature(body, signature) {
		if !r.mockMode {
			return nil, ErrSignatureInvalid
		}
		log.Printf("mock mode: accepting webhook with unverified signature")
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Event == "" {
		return nil, ErrMalformedEvent
	}

	if eventID == "" {
		// Deliveries without an event id header still deduplicate on the
		// body digest.
		sum := sha256.Sum256(body)
		eventID = hex.EncodeToString(sum[:])
	}

	first, err := r.events.MarkProcessed(ctx, &models.PaymentEvent{
		EventID:    eventID,
		Event:      event.Event,
		ReceivedAt: time.Now(),
	})
	if err != nil {
		return nil, err
	}

	result := &WebhookResult{EventID: eventID, Event: event.Event}
	if !first {
		result.Duplicate = true
		return result, nil
	}

	switch event.Event {
	case "payment.captured":
		return r.reconcileFromEvent(ctx, result, event, true)
	case "payment.failed":
		return r.reconcileFromEvent(ctx, result, event, false)
	default:
		// Acknowledge events we do not act on so the provider stops
		// retrying them.
		return result, nil
	}
}

func (r *Reconciler) reconcileFromEvent(ctx context.Context, result *WebhookResult, event webhookEvent, captured bool) (*WebhookResult, error) {
	entity := event.Payload.Payment.Entity
	if entity.OrderID == "" {
		return nil, ErrMalformedEvent
	}

	order, err := r.orders.GetByProviderOrderID(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, store.ErrOrderNotFound) {
			log.Printf("webhook %s references unknown provider order %s", event.Event, entity.OrderID)
			return result, nil
		}
		return nil, err
	}
	result.OrderID = order.ID.Hex()

	var applied bool
	if captured {
		applied, err = r.orders.Complete(ctx, order.ID.Hex(), entity.ID)
	} else {
		applied, err = r.orders.Fail(ctx, order.ID.Hex(), entity.ID)
	}
	if err != nil {
		return nil, err
	}
	result.Applied = applied

	return result, nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
