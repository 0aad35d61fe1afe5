package model

import (
	"time"
)

// QueueMessage is the document shape of a message held by the Mongo-backed queue.
type QueueMessage struct {
	ID           string    `bson:"_id" json:"id"`
	Body         string    `bson:"body" json:"body"`
	VisibleAt    time.Time `bson:"visibleAt" json:"visible_at"`       // hidden from receivers until then
	Receipt      string    `bson:"receipt,omitempty" json:"receipt"` // set while a receiver owns it
	ReceiveCount int       `bson:"receiveCount" json:"receive_count"`
	CreatedAt    time.Time `bson:"createdAt" json:"created_at"` // UTC
	// DeadAt is set once the message used up its receives; a TTL index
	// removes it after the dead-letter retention.
	DeadAt *time.Time `bson:"deadAt,omitempty" json:"dead_at,omitempty"`
}
