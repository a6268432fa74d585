// internal/models/complaint.go
package models

import (
	"fmt"
	"strings"
	"time"
)

type ComplaintStatus string

const (
	StatusPending      ComplaintStatus = "pending"
	StatusInProgress   ComplaintStatus = "in_progress"
	StatusNotCompleted ComplaintStatus = "not_completed"
	StatusCompleted    ComplaintStatus = "completed"
)

// AllStatuses lists every status in dashboard display order.
var AllStatuses = []ComplaintStatus{
	StatusPending,
	StatusInProgress,
	StatusNotCompleted,
	StatusCompleted,
}

func (s ComplaintStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusNotCompleted, StatusCompleted:
		return true
	}
	return false
}

// IsOpen reports whether the complaint still needs work.
func (s ComplaintStatus) IsOpen() bool {
	return s == StatusPending || s == StatusInProgress
}

// HasAssignment reports whether a complaint in this status carries a worker and deadline.
func (s ComplaintStatus) HasAssignment() bool {
	return s == StatusInProgress || s == StatusCompleted
}

// Complaint is a filed issue with its lifecycle state.
type Complaint struct {
	ID                  int64           `json:"id"`
	PhoneNumber         string          `json:"phone_number"`
	Category            string          `json:"category"`
	Subcategory         *string         `json:"subcategory,omitempty"`
	Address             string          `json:"address"`
	Description         string          `json:"description"`
	Status              ComplaintStatus `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	CompletedAt         *time.Time      `json:"completed_at,omitempty"`
	FieldWorkerID       *int64          `json:"field_worker_id,omitempty"`
	FieldWorkerAssigned *string         `json:"field_worker_assigned"`
	DeadlineDate        *time.Time      `json:"deadline_date"`
}

// DisplayPhone strips the intake channel suffix, e.g. "919876543210@c.us" -> "919876543210".
func (c Complaint) DisplayPhone() string {
	return StripChannelSuffix(c.PhoneNumber)
}

func StripChannelSuffix(phone string) string {
	phone = strings.TrimSpace(phone)
	if i := strings.IndexByte(phone, '@'); i >= 0 {
		phone = phone[:i]
	}
	return strings.TrimPrefix(phone, "whatsapp:")
}

// CheckAssignmentInvariant verifies that worker reference and deadline are present
// exactly when the status carries an assignment.
func (c Complaint) CheckAssignmentInvariant() error {
	assigned := c.FieldWorkerAssigned != nil && c.DeadlineDate != nil
	cleared := c.FieldWorkerAssigned == nil && c.DeadlineDate == nil && c.FieldWorkerID == nil

	switch {
	case c.Status == StatusPending && !cleared:
		return fmt.Errorf("complaint %d is pending but carries an assignment", c.ID)
	case c.Status.HasAssignment() && !assigned:
		return fmt.Errorf("complaint %d is %s without worker and deadline", c.ID, c.Status)
	}
	return nil
}

// ComplaintFilter narrows a complaint listing. Zero values match everything.
type ComplaintFilter struct {
	Status   ComplaintStatus `json:"status,omitempty"`
	Category string          `json:"category,omitempty"`
}

func (f ComplaintFilter) Matches(c Complaint) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Category != "" && c.Category != f.Category {
		return false
	}
	return true
}
