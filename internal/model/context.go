package model

import "time"

// ContextRecord is a published payload as held by a ContextStore.
// Records are immutable once stored.
type ContextRecord struct {
	ID        string    `json:"id"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
}

// PublishRequest is the body accepted by POST /context.
type PublishRequest struct {
	Payload *string `json:"payload"`
}
