package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order status values. Status and PaymentStatus always move together:
// pending/pending at creation, then exactly one transition to
// completed/paid or failed/failed.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusFailed    = "failed"

	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// Order represents one purchase attempt. TotalAmount is computed server-side
// at creation and never changes afterwards.
type Order struct {
	ID              primitive.ObjectID `json:"id" bson:"_id"`
	UserID          string             `json:"userId" bson:"userId"`
	Status          string             `json:"status" bson:"status"`
	PaymentStatus   string             `json:"paymentStatus" bson:"paymentStatus"`
	TotalAmount     float64            `json:"totalAmount" bson:"totalAmount"`
	Currency        string             `json:"currency" bson:"currency"`
	ProviderOrderID string             `json:"razorpayOrderId" bson:"razorpayOrderId"`
	PaymentID       string             `json:"paymentId,omitempty" bson:"paymentId,omitempty"`
	Receipt         string             `json:"receipt" bson:"receipt"`
	CreatedAt       time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt" bson:"updatedAt"`

	// Items is filled on reads that join order_items; it is not stored on
	// the order document itself.
	Items []OrderItem `json:"items,omitempty" bson:"-"`
}

// Terminal reports whether the order has already left pending.
func (o *Order) Terminal() bool {
	return o.Status != OrderStatusPending
}

// OrderItem is a line of an order with the unit price snapshotted at
// creation time. Items are only ever deleted together with their order,
// as compensation for a failed batch insert.
type OrderItem struct {
	ID        primitive.ObjectID `json:"id" bson:"_id"`
	OrderID   primitive.ObjectID `json:"orderId" bson:"orderId"`
	ProductID primitive.ObjectID `json:"productId" bson:"productId"`
	Quantity  int                `json:"quantity" bson:"quantity"`
	UnitPrice float64            `json:"unitPrice" bson:"unitPrice"`
	Size      string             `json:"size,omitempty" bson:"size,omitempty"`
	Color     string             `json:"color,omitempty" bson:"color,omitempty"`
}
