package complaint

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// ParseDeadline accepts an RFC 3339 timestamp or a bare YYYY-MM-DD date.
// Timestamps are normalised to UTC; dates are midnight UTC.
func ParseDeadline(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", s)
	}
	return t, nil
}
