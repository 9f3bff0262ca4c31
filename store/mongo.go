package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rishcx/newtrip/models"
)

type mongoProductStore struct {
	products *mongo.Collection
}

func NewProductStore(products *mongo.Collection) ProductStore {
	return &mongoProductStore{products: products}
}

func (s *mongoProductStore) GetByID(ctx context.Context, id string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		// A malformed id cannot name an existing product.
		return nil, ErrProductNotFound
	}

	var p models.Product
	if err := s.products.FindOne(ctx, bson.M{"_id": oid}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("fetch product %s: %w", id, err)
	}
	return &p, nil
}

type mongoOrderStore struct {
	orders *mongo.Collection
	items  *mongo.Collection
}

func NewOrderStore(orders, items *mongo.Collection) OrderStore {
	return &mongoOrderStore{orders: orders, items: items}
}

func (s *mongoOrderStore) Insert(ctx context.Context, o *models.Order) (string, error) {
	if o.ID.IsZero() {
		o.ID = primitive.NewObjectID()
	}
	if _, err := s.orders.InsertOne(ctx, o); err != nil {
		return "", fmt.Errorf("insert order: %w", err)
	}
	return o.ID.Hex(), nil
}

func (s *mongoOrderStore) InsertItems(ctx context.Context, items []models.OrderItem) error {
	docs := make([]interface{}, 0, len(items))
	for i := range items {
		if items[i].ID.IsZero() {
			items[i].ID = primitive.NewObjectID()
		}
		docs = append(docs, items[i])
	}
	if _, err := s.items.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("insert order items: %w", err)
	}
	return nil
}

func (s *mongoOrderStore) Delete(ctx context.Context, orderID string) error {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return ErrOrderNotFound
	}
	if _, err := s.items.DeleteMany(ctx, bson.M{"orderId": oid}); err != nil {
		return fmt.Errorf("delete order items: %w", err)
	}
	if _, err := s.orders.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return nil
}

func (s *mongoOrderStore) SetProviderOrderID(ctx context.Context, orderID, providerOrderID string) error {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return ErrOrderNotFound
	}
	_, err = s.orders.UpdateOne(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": bson.M{"razorpayOrderId": providerOrderID, "updatedAt": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("set provider order id: %w", err)
	}
	return nil
}

func (s *mongoOrderStore) GetByIDAndUser(ctx context.Context, orderID, userID string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	var o models.Order
	if err := s.orders.FindOne(ctx, bson.M{"_id": oid, "userId": userID}).Decode(&o); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	return &o, nil
}

func (s *mongoOrderStore) GetByProviderOrderID(ctx context.Context, providerOrderID string) (*models.Order, error) {
	var o models.Order
	if err := s.orders.FindOne(ctx, bson.M{"razorpayOrderId": providerOrderID}).Decode(&o); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("fetch order by provider id %s: %w", providerOrderID, err)
	}
	return &o, nil
}

func (s *mongoOrderStore) ListByUser(ctx context.Context, userID string) ([]models.Order, error) {
	cursor, err := s.orders.Find(ctx,
		bson.M{"userId": userID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

func (s *mongoOrderStore) GetItems(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}

	cursor, err := s.items.Find(ctx, bson.M{"orderId": oid})
	if err != nil {
		return nil, fmt.Errorf("list order items: %w", err)
	}
	defer cursor.Close(ctx)

	var items []models.OrderItem
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode order items: %w", err)
	}
	return items, nil
}

func (s *mongoOrderStore) Complete(ctx context.Context, orderID, paymentID string) (bool, error) {
	return s.transition(ctx, orderID, paymentID, models.OrderStatusCompleted, models.PaymentStatusPaid)
}

func (s *mongoOrderStore) Fail(ctx context.Context, orderID, paymentID string) (bool, error) {
	return s.transition(ctx, orderID, paymentID, models.OrderStatusFailed, models.PaymentStatusFailed)
}

// transition is the compare-and-set boundary: the filter requires the order
// to still be pending, so two concurrent confirmations cannot both win.
func (s *mongoOrderStore) transition(ctx context.Context, orderID, paymentID, status, paymentStatus string) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return false, ErrOrderNotFound
	}

	set := bson.M{
		"status":        status,
		"paymentStatus": paymentStatus,
		"updatedAt":     time.Now(),
	}
	if paymentID != "" {
		set["paymentId"] = paymentID
	}

	result, err := s.orders.UpdateOne(ctx,
		bson.M{"_id": oid, "status": models.OrderStatusPending},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("transition order %s: %w", orderID, err)
	}
	return result.ModifiedCount == 1, nil
}

type mongoEventStore struct {
	events *mongo.Collection
}

func NewEventStore(events *mongo.Collection) EventStore {
	return &mongoEventStore{events: events}
}

func (s *mongoEventStore) MarkProcessed(ctx context.Context, event *models.PaymentEvent) (bool, error) {
	if _, err := s.events.InsertOne(ctx, event); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("record payment event: %w", err)
	}
	return true, nil
}

// EnsureIndexes creates the unique index backing webhook idempotency and the
// lookup index for provider order ids. Safe to call on every startup.
func EnsureIndexes(ctx context.Context, orders, events *mongo.Collection) error {
	_, err := events.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "eventId", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("create event index: %w", err)
	}

	_, err = orders.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "razorpayOrderId", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create order index: %w", err)
	}
	return nil
}
