package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Product supplies the authoritative price and existence check at order
// creation time. Later price changes never touch existing orders.
type Product struct {
	ID            primitive.ObjectID `json:"id" bson:"_id"`
	Name          string             `json:"name" bson:"name"`
	Description   string             `json:"description,omitempty" bson:"description,omitempty"`
	Price         float64            `json:"price" bson:"price"`
	ImageURL      string             `json:"imageUrl,omitempty" bson:"imageUrl,omitempty"`
	Category      string             `json:"category" bson:"category"`
	Sizes         []string           `json:"sizes" bson:"sizes"`
	Colors        []string           `json:"colors" bson:"colors"`
	StockQuantity int                `json:"stockQuantity" bson:"stockQuantity"`
}
