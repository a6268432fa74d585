package completecomplaint

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"complaint-desk/internal/common/camunda"
	apperrors "complaint-desk/internal/common/errors"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/common/metrics"
	"complaint-desk/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "complete-complaint"

// Completer is satisfied by *complaint.Coordinator.
type Completer interface {
	Complete(ctx context.Context, complaintID int64) (models.Complaint, error)
}

type Handler struct {
	config       *Config
	completer    Completer
	errorHandler *apperrors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, completer Completer, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		completer:    completer,
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
	updated, err := h.completer.Complete(ctx, input.ComplaintID)
	if err != nil {
		return nil, err
	}

	output := &Output{
		ComplaintID: updated.ID,
		Status:      string(updated.Status),
	}
	if updated.FieldWorkerAssigned != nil {
		output.FieldWorkerAssigned = *updated.FieldWorkerAssigned
	}
	if updated.CompletedAt != nil {
		output.CompletedAt = *updated.CompletedAt
	}
	return output, nil
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	code := string(apperrors.ErrCodeInternal)
	if stdErr, ok := apperrors.AsStandardError(err); ok {
		code = string(stdErr.Code)
	}
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, code).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
