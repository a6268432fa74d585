package api

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/complaint"
	"complaint-desk/internal/fieldworker"
	"complaint-desk/internal/models"
	"complaint-desk/internal/search"
)

// ==========================
// Complaints
// ==========================

func (s *Server) listComplaints(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	complaints, err := s.coordinator.Refresh(r.Context(), models.ComplaintFilter{
		Status:   models.ComplaintStatus(q.Get("status")),
		Category: q.Get("category"),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if complaints == nil {
		complaints = []models.Complaint{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"complaints": complaints,
		"count":      len(complaints),
	})
}

func (s *Server) getComplaint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.coordinator.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) createComplaint(w http.ResponseWriter, r *http.Request) {
	var req complaint.IntakeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.coordinator.Create(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

type assignBody struct {
	FieldWorkerID   int64  `json:"fieldWorkerId"`
	FieldWorkerName string `json:"fieldWorkerName"`
	Deadline        string `json:"deadline"`
}

func (s *Server) assignComplaint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var body assignBody
	if err := decodeBody(r, &body); err != nil {
		s.writeError(w, r, err)
		return
	}

	req := complaint.AssignRequest{
		ComplaintID:   id,
		FieldWorkerID: body.FieldWorkerID,
		WorkerName:    body.FieldWorkerName,
	}
	if body.Deadline != "" {
		deadline, err := complaint.ParseDeadline(body.Deadline)
		if err != nil {
			s.writeError(w, r, apperrors.NewValidationFailedError(fmt.Sprintf("deadline: %v", err)))
			return
		}
		req.Deadline = &deadline
	}

	c, err := s.coordinator.Assign(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) completeComplaint(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.coordinator.Complete(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

type searchHit struct {
	Score     float64          `json:"score"`
	Complaint models.Complaint `json:"complaint"`
}

// searchComplaints resolves index hits against the store. Hits whose
// complaint no longer exists are dropped.
func (s *Server) searchComplaints(w http.ResponseWriter, r *http.Request) {
	if s.search == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
			Code:    string(apperrors.ErrCodeSearchFailed),
			Message: "search is disabled",
		}})
		return
	}

	params := r.URL.Query()
	q := search.Query{
		Text:     params.Get("q"),
		Status:   models.ComplaintStatus(params.Get("status")),
		Category: params.Get("category"),
	}
	if raw := params.Get("size"); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, apperrors.NewValidationFailedError(fmt.Sprintf("size must be an integer, got %q", raw)))
			return
		}
		q.Size = size
	}

	res, err := s.search.Search(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	hits := make([]searchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		c, err := s.coordinator.Get(r.Context(), h.ComplaintID)
		if apperrors.HasCode(err, apperrors.ErrCodeComplaintNotFound) {
			continue
		}
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		hits = append(hits, searchHit{Score: h.Score, Complaint: c})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total": res.Total,
		"hits":  hits,
	})
}

// ==========================
// Field workers
// ==========================

func (s *Server) listFieldWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := s.registry.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if workers == nil {
		workers = []models.FieldWorker{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"workers":    workers,
		"byCategory": fieldworker.GroupByCategory(workers),
		"count":      len(workers),
	})
}

func (s *Server) eligibleFieldWorkers(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	workers, err := s.coordinator.ListEligibleWorkers(r.Context(), category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if workers == nil {
		workers = []models.FieldWorker{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"category": strings.TrimSpace(category),
		"workers":  workers,
		"count":    len(workers),
	})
}

func (s *Server) addFieldWorker(w http.ResponseWriter, r *http.Request) {
	var req fieldworker.NewWorker
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	created, err := s.registry.Add(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) removeFieldWorker(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.registry.Remove(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ==========================
// Categories and dashboard
// ==========================

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.registry.Categories(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if categories == nil {
		categories = []models.Category{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (s *Server) dashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := s.reporting.Summary(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ==========================
// Notifications
// ==========================

// listDeadLetters returns notifications that exhausted their delivery
// attempts, newest first. limit defaults to 100.
func (s *Server) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	if s.deadLetters == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: errorDetail{
			Code:    string(apperrors.ErrCodeNotificationSendFailed),
			Message: "notifications are disabled",
		}})
		return
	}

	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			s.writeError(w, r, apperrors.NewValidationFailedError(fmt.Sprintf("limit must be a positive integer, got %q", raw)))
			return
		}
		limit = n
	}

	events, err := s.deadLetters.DeadLetters(r.Context(), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"events": events,
		"count":  len(events),
	})
}

// ==========================
// Probes
// ==========================

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	failing := map[string]string{}
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		err := s.checks[name](ctx)
		cancel()
		if err != nil {
			failing[name] = err.Error()
		}
	}

	if len(failing) > 0 {
		s.logger.Warn("readiness check failed", map[string]interface{}{"failing": failing})
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "not_ready",
			"failing": failing,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
