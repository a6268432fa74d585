package assigncomplaint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"complaint-desk/internal/common/camunda"
	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/common/metrics"
	"complaint-desk/internal/complaint"
	"complaint-desk/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "assign-complaint"

// Assigner is satisfied by *complaint.Coordinator.
type Assigner interface {
	Assign(ctx context.Context, req complaint.AssignRequest) (models.Complaint, error)
}

type Handler struct {
	config       *Config
	assigner     Assigner
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, assigner Assigner, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		assigner:     assigner,
		errorHandler: apperrors.NewErrorHandler(log).WithSender(camunda.SendJobCommand),
		logger:       log,
	}
}

var _ camunda.ContextJobHandler = (*Handler)(nil)

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.HandleContext(context.Background(), client, job)
}

// HandleContext processes job under parent, which carries the job span.
func (h *Handler) HandleContext(parent context.Context, client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(parent, h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, apperrors.NewValidationFailedError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	camunda.CompleteJob(ctx, client, job, output, h.logger)
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
	metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	req := complaint.AssignRequest{
		ComplaintID:   input.ComplaintID,
		FieldWorkerID: input.FieldWorkerID,
		WorkerName:    input.FieldWorkerName,
	}
	if input.Deadline != "" {
		deadline, err := complaint.ParseDeadline(input.Deadline)
		if err != nil {
			return nil, apperrors.NewValidationFailedError(fmt.Sprintf("deadline: %v", err))
		}
		req.Deadline = &deadline
	}

	updated, err := h.assigner.Assign(ctx, req)
	if err != nil {
		return nil, err
	}

	return &Output{
		ComplaintID:         updated.ID,
		Status:              string(updated.Status),
		FieldWorkerID:       *updated.FieldWorkerID,
		FieldWorkerAssigned: *updated.FieldWorkerAssigned,
		DeadlineDate:        *updated.DeadlineDate,
	}, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := string(apperrors.ErrCodeInternal)
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
