package complaintsummary

import "complaint-desk/internal/models"

// Input is empty; the summary always covers every complaint.
type Input struct{}

type Output struct {
	Summary    models.DashboardSummary `json:"summary"`
	OpenCount  int                     `json:"openCount"`
	TotalCount int                     `json:"totalCount"`
}
