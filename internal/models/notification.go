// internal/models/notification.go
package models

import "time"

// NotificationEvent is published after a successful status transition and
// consumed by the delivery worker.
type NotificationEvent struct {
	ID          string          `json:"id"`
	ComplaintID int64           `json:"complaintId"`
	PhoneNumber string          `json:"phoneNumber"`
	Category    string          `json:"category"`
	Status      ComplaintStatus `json:"status"`
	Attempts    int             `json:"attempts"`
	LastError   string          `json:"lastError,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// NotificationPayload is the body accepted by the WhatsApp notification service.
type NotificationPayload struct {
	PhoneNumber string `json:"phoneNumber"`
	ComplaintID string `json:"complaintId"`
	Category    string `json:"category"`
	Status      string `json:"status"`
}

// Delivery outcomes
const (
	DeliveryDelivered    = "delivered"
	DeliveryRetried      = "retried"
	DeliveryDeadLettered = "dead_lettered"
)
