package assigncomplaint

import "time"

// Input names the worker by id or by name. Deadline is RFC 3339 or a plain
// date (2006-01-02); empty means the configured default.
type Input struct {
	ComplaintID     int64  `json:"complaintId"`
	FieldWorkerID   int64  `json:"fieldWorkerId,omitempty"`
	FieldWorkerName string `json:"fieldWorkerName,omitempty"`
	Deadline        string `json:"deadline,omitempty"`
}

type Output struct {
	ComplaintID         int64     `json:"complaintId"`
	Status              string    `json:"status"`
	FieldWorkerID       int64     `json:"fieldWorkerId"`
	FieldWorkerAssigned string    `json:"fieldWorkerAssigned"`
	DeadlineDate        time.Time `json:"deadlineDate"`
}
