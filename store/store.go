package store

import (
	"context"

	"github.com/rishcx/newtrip/models"
)

// ProductStore is the read-only catalog view the reconciliation engine
// needs: existence and current price at order-creation time.
type ProductStore interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
}

// OrderStore persists orders and their line items. The backing store gives
// per-document atomicity but no cross-collection transactions, so the
// order/item insert pair is two calls and Delete exists as compensation.
type OrderStore interface {
	Insert(ctx context.Context, o *models.Order) (string, error)
	InsertItems(ctx context.Context, items []models.OrderItem) error
	Delete(ctx context.Context, orderID string) error
	SetProviderOrderID(ctx context.Context, orderID, providerOrderID string) error

	GetByIDAndUser(ctx context.Context, orderID, userID string) (*models.Order, error)
	GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error)
	ListByUser(ctx context.Context, userID string) ([]models.Order, error)
	GetItems(ctx context.Context, orderID string) ([]models.OrderItem, error)

	// Complete and Fail apply the terminal transition only while the order
	// is still pending and report whether this call won the transition.
	Complete(ctx context.Context, orderID, paymentID string) (bool, error)
	Fail(ctx context.Context, orderID, paymentID string) (bool, error)
}

// EventStore is the webhook idempotency ledger. MarkProcessed returns false
// when the event id has been seen before.
type EventStore interface {
	MarkProcessed(ctx context.Context, event *models.PaymentEvent) (bool, error)
}
