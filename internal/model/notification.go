package model

import "time"

// Notification is sent to every subscriber when new context is published.
// It is never stored.
type Notification struct {
	ContextID  string    `json:"contextId"`
	ContextURL string    `json:"contextUrl"`
	Timestamp  time.Time `json:"timestamp"`
}

// DeliveryResult is the outcome of one webhook delivery.
type DeliveryResult struct {
	Endpoint   string
	StatusCode int
	Duration   time.Duration
	Err        error
}

func (r DeliveryResult) OK() bool {
	return r.Err == nil
}
