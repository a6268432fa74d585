package complaint

import (
	"context"

	"complaint-desk/internal/models"
)

// Listener is told about every complaint that was created or changed status.
// Errors are logged by the coordinator and never undo the change.
type Listener interface {
	ComplaintChanged(ctx context.Context, c models.Complaint) error
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(ctx context.Context, c models.Complaint) error

func (f ListenerFunc) ComplaintChanged(ctx context.Context, c models.Complaint) error {
	return f(ctx, c)
}
