// pkg/registry/registry.go
package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

func LoadRegistry(path string) (*ActivityRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var reg ActivityRegistry
	err = json.Unmarshal(data, &reg)
	return &reg, err
}

// Default is the catalog of task types served by complaint-desk.
func Default() *ActivityRegistry {
	return &ActivityRegistry{
		Version:     "1.0.0",
		LastUpdated: "2024-03-01",
		Activities: []Activity{
			{
				ID:          "assign-complaint",
				DisplayName: "Assign Complaint",
				Description: "Moves a pending complaint to in_progress and marks the worker unavailable",
				Category:    "complaint",
				TaskType:    "assign-complaint",
				InputVars:   []string{"complaintId", "fieldWorkerId", "fieldWorkerName", "deadline"},
				OutputVars:  []string{"complaintId", "status", "fieldWorkerId", "fieldWorkerAssigned", "deadlineDate"},
				ErrorCodes: []string{"VALIDATION_FAILED", "COMPLAINT_NOT_FOUND", "INVALID_TRANSITION", "WORKER_NOT_FOUND",
					"WORKER_UNAVAILABLE", "WORKER_AMBIGUOUS", "CATEGORY_MISMATCH", "STORE_OPERATION_FAILED"},
				Timeout: "30s",
				Retries: 3,
			},
			{
				ID:          "complete-complaint",
				DisplayName: "Complete Complaint",
				Description: "Marks an in_progress complaint completed and frees its worker",
				Category:    "complaint",
				TaskType:    "complete-complaint",
				InputVars:   []string{"complaintId"},
				OutputVars:  []string{"complaintId", "status", "fieldWorkerAssigned", "completedAt"},
				ErrorCodes:  []string{"VALIDATION_FAILED", "COMPLAINT_NOT_FOUND", "INVALID_TRANSITION", "STORE_OPERATION_FAILED"},
				Timeout:     "30s",
				Retries:     3,
			},
			{
				ID:          "list-eligible-workers",
				DisplayName: "List Eligible Workers",
				Description: "Lists available field workers of a category",
				Category:    "complaint",
				TaskType:    "list-eligible-workers",
				InputVars:   []string{"category"},
				OutputVars:  []string{"category", "workers", "count"},
				ErrorCodes:  []string{"VALIDATION_FAILED", "STORE_OPERATION_FAILED"},
				Timeout:     "10s",
				Retries:     3,
			},
			{
				ID:          "register-field-worker",
				DisplayName: "Register Field Worker",
				Description: "Adds an available field worker to a known category",
				Category:    "field-worker",
				TaskType:    "register-field-worker",
				InputVars:   []string{"name", "phoneNumber", "masterCategory"},
				OutputVars:  []string{"fieldWorkerId", "name", "masterCategory", "workStatus"},
				ErrorCodes:  []string{"VALIDATION_FAILED", "STORE_OPERATION_FAILED"},
				Timeout:     "10s",
				Retries:     3,
			},
			{
				ID:          "complaint-summary",
				DisplayName: "Complaint Summary",
				Description: "Computes the dashboard aggregates",
				Category:    "reporting",
				TaskType:    "complaint-summary",
				OutputVars:  []string{"summary", "openCount", "totalCount"},
				ErrorCodes:  []string{"STORE_OPERATION_FAILED"},
				Timeout:     "30s",
				Retries:     3,
			},
		},
	}
}

// Find returns the activity registered for taskType.
func (r *ActivityRegistry) Find(taskType string) (Activity, bool) {
	for _, a := range r.Activities {
		if a.TaskType == taskType {
			return a, true
		}
	}
	return Activity{}, false
}

// Validate rejects empty or duplicate task types.
func (r *ActivityRegistry) Validate() error {
	seen := make(map[string]bool, len(r.Activities))
	for _, a := range r.Activities {
		if a.TaskType == "" {
			return fmt.Errorf("activity %q has no taskType", a.ID)
		}
		if seen[a.TaskType] {
			return fmt.Errorf("duplicate taskType %q", a.TaskType)
		}
		seen[a.TaskType] = true
	}
	return nil
}
