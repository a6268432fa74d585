package listeligibleworkers

import "complaint-desk/internal/models"

type Input struct {
	Category string `json:"category"`
}

// Output always carries a non-nil worker list so the process can branch on count.
type Output struct {
	Category string               `json:"category"`
	Workers  []models.FieldWorker `json:"workers"`
	Count    int                  `json:"count"`
}
