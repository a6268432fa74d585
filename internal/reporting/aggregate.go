// Package reporting builds the dashboard figures from the complaint list.
package reporting

import (
	"sort"
	"strconv"
	"time"

	"complaint-desk/internal/models"
)

const monthLayout = "2006-01"

func isClosed(s models.ComplaintStatus) bool {
	return s == models.StatusCompleted || s == models.StatusNotCompleted
}

// ByStatus counts complaints per status. Every known status is present in
// Counts, zero or not.
func ByStatus(complaints []models.Complaint) models.StatusBreakdown {
	out := models.StatusBreakdown{Counts: make(map[models.ComplaintStatus]int, len(models.AllStatuses))}
	for _, s := range models.AllStatuses {
		out.Counts[s] = 0
	}

	for _, c := range complaints {
		out.Counts[c.Status]++
		out.Total++
		if isClosed(c.Status) {
			out.Closed++
		} else {
			out.Open++
		}
	}
	return out
}

// ByCategory returns open and closed counts per category, sorted by name.
func ByCategory(complaints []models.Complaint) []models.CategoryStat {
	index := make(map[string]*models.CategoryStat)
	for _, c := range complaints {
		stat, ok := index[c.Category]
		if !ok {
			stat = &models.CategoryStat{Name: c.Category}
			index[c.Category] = stat
		}
		if isClosed(c.Status) {
			stat.Closed++
		} else {
			stat.Open++
		}
	}

	out := make([]models.CategoryStat, 0, len(index))
	for _, stat := range index {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Monthly buckets complaints by creation month, oldest first.
func Monthly(complaints []models.Complaint) []models.MonthlyStat {
	index := make(map[string]*models.MonthlyStat)
	for _, c := range complaints {
		month := c.CreatedAt.UTC().Format(monthLayout)
		stat, ok := index[month]
		if !ok {
			stat = &models.MonthlyStat{Month: month}
			index[month] = stat
		}
		if isClosed(c.Status) {
			stat.Closed++
		} else {
			stat.Open++
		}
	}

	out := make([]models.MonthlyStat, 0, len(index))
	for _, stat := range index {
		out = append(out, *stat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

// WorkerPerformance reports, per assigned worker, how many complaints were
// handed out and resolved and the mean hours from filing to completion.
// Sorted by resolved count descending, then name.
func WorkerPerformance(complaints []models.Complaint) []models.WorkerPerformance {
	type acc struct {
		perf  models.WorkerPerformance
		hours float64
	}
	index := make(map[string]*acc)
	var order []string

	for _, c := range complaints {
		if c.FieldWorkerAssigned == nil {
			continue
		}
		key := "name:" + *c.FieldWorkerAssigned
		if c.FieldWorkerID != nil {
			key = "id:" + strconv.FormatInt(*c.FieldWorkerID, 10)
		}

		a, ok := index[key]
		if !ok {
			a = &acc{perf: models.WorkerPerformance{Name: *c.FieldWorkerAssigned}}
			if c.FieldWorkerID != nil {
				id := *c.FieldWorkerID
				a.perf.FieldWorkerID = &id
			}
			index[key] = a
			order = append(order, key)
		}

		a.perf.Assigned++
		if c.Status == models.StatusCompleted && c.CompletedAt != nil {
			a.perf.Resolved++
			a.hours += c.CompletedAt.Sub(c.CreatedAt).Hours()
		}
	}

	out := make([]models.WorkerPerformance, 0, len(order))
	for _, key := range order {
		a := index[key]
		if a.perf.Resolved > 0 {
			a.perf.AverageResolutionHours = a.hours / float64(a.perf.Resolved)
		}
		out = append(out, a.perf)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Resolved != out[j].Resolved {
			return out[i].Resolved > out[j].Resolved
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Summarize bundles every dashboard figure.
func Summarize(complaints []models.Complaint, now time.Time) models.DashboardSummary {
	return models.DashboardSummary{
		GeneratedAt: now,
		Status:      ByStatus(complaints),
		Categories:  ByCategory(complaints),
		Monthly:     Monthly(complaints),
		Workers:     WorkerPerformance(complaints),
	}
}
