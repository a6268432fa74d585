package notification

import (
	"context"
	"time"

	"complaint-desk/internal/models"

	"github.com/google/uuid"
)

// Publisher accepts events for later delivery.
type Publisher interface {
	Publish(ctx context.Context, ev models.NotificationEvent) error
}

// Notifier turns complaint changes into queued notification events. Newly
// filed complaints are acknowledged by the intake channel itself and are not
// queued.
type Notifier struct {
	publisher Publisher
	now       func() time.Time
}

func NewNotifier(p Publisher) *Notifier {
	return &Notifier{
		publisher: p,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (n *Notifier) ComplaintChanged(ctx context.Context, c models.Complaint) error {
	if c.Status == models.StatusPending {
		return nil
	}
	return n.publisher.Publish(ctx, NewEvent(c, n.now()))
}

// NewEvent builds a fresh event for c.
func NewEvent(c models.Complaint, at time.Time) models.NotificationEvent {
	return models.NotificationEvent{
		ID:          uuid.NewString(),
		ComplaintID: c.ID,
		PhoneNumber: c.PhoneNumber,
		Category:    c.Category,
		Status:      c.Status,
		OccurredAt:  at,
	}
}
