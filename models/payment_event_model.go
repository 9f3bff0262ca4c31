package models

import "time"

// PaymentEvent records a processed webhook delivery. EventID carries a
// unique index; inserting it before acting is what makes redelivery a no-op.
type PaymentEvent struct {
	EventID    string    `json:"eventId" bson:"eventId"`
	Event      string    `json:"event" bson:"event"`
	ReceivedAt time.Time `json:"receivedAt" bson:"receivedAt"`
}
