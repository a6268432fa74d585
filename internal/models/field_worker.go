// internal/models/field_worker.go
package models

// FieldWorker is a person assignable to complaints of one category.
// WorkStatus true means the worker is free to take an assignment.
type FieldWorker struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	PhoneNumber    string `json:"phone_number"`
	MasterCategory string `json:"master_category"`
	WorkStatus     bool   `json:"work_status"`
	Version        int64  `json:"version"`
}

type FieldWorkerFilter struct {
	Category      string
	Name          string
	AvailableOnly bool
}

func (f FieldWorkerFilter) Matches(w FieldWorker) bool {
	if f.Category != "" && w.MasterCategory != f.Category {
		return false
	}
	if f.Name != "" && w.Name != f.Name {
		return false
	}
	if f.AvailableOnly && !w.WorkStatus {
		return false
	}
	return true
}

type Category struct {
	Name string `json:"name"`
}
