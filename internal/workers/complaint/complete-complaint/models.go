package completecomplaint

import "time"

type Input struct {
	ComplaintID int64 `json:"complaintId"`
}

type Output struct {
	ComplaintID         int64     `json:"complaintId"`
	Status              string    `json:"status"`
	FieldWorkerAssigned string    `json:"fieldWorkerAssigned"`
	CompletedAt         time.Time `json:"completedAt"`
}
