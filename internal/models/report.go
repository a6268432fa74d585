// internal/models/report.go
package models

import "time"

type StatusBreakdown struct {
	Counts map[ComplaintStatus]int `json:"counts"`
	Open   int                     `json:"open"`
	Closed int                     `json:"closed"`
	Total  int                     `json:"total"`
}

type CategoryStat struct {
	Name   string `json:"name"`
	Open   int    `json:"open"`
	Closed int    `json:"closed"`
}

type MonthlyStat struct {
	Month  string `json:"month"` // 2006-01
	Open   int    `json:"open"`
	Closed int    `json:"closed"`
}

type WorkerPerformance struct {
	Name                   string  `json:"name"`
	FieldWorkerID          *int64  `json:"fieldWorkerId,omitempty"`
	Assigned               int     `json:"assigned"`
	Resolved               int     `json:"resolved"`
	AverageResolutionHours float64 `json:"averageResolutionTime"`
}

type DashboardSummary struct {
	GeneratedAt time.Time           `json:"generatedAt"`
	Status      StatusBreakdown     `json:"status"`
	Categories  []CategoryStat      `json:"categories"`
	Monthly     []MonthlyStat       `json:"monthly"`
	Workers     []WorkerPerformance `json:"workers"`
}
