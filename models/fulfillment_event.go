package models

import "time"

// FulfillmentEvent is the message published to SNS after each processed
// checkout session.
type FulfillmentEvent struct {
	Type            string    `json:"type"` // "fulfillment_delivered", "fulfillment_failed", "fulfillment_skipped"
	SessionID       string    `json:"session_id"`
	CustomerEmail   string    `json:"customer_email"`
	AttachmentCount int       `json:"attachment_count"`
	Error           string    `json:"error,omitempty"`
	Timestamp       time.Time `json:"timestamp"` // UTC event time
}
