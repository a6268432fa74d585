package errors

import (
	"context"
	"encoding/json"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

// ErrorHandler fails or throws a Zeebe job from a StandardError.
type ErrorHandler struct {
	logger Logger
	send   CommandSender
}

// CommandSender sends a job command, optionally retrying it.
type CommandSender func(ctx context.Context, operation string, send func(context.Context) error) error

func sendOnce(ctx context.Context, operation string, send func(context.Context) error) error {
	return send(ctx)
}

// Logger is the slice of logger.Logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger, send: sendOnce}
}

// WithSender routes fail and throw commands through send.
func (h *ErrorHandler) WithSender(send CommandSender) *ErrorHandler {
	if send != nil {
		h.send = send
	}
	return h
}

// HandleJobError fails the job with retries when the code is retryable and
// the job has retries left, and throws a BPMN error otherwise.
func (h *ErrorHandler) HandleJobError(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	stdErr := h.normalizeError(err)
	bpmnErr := ConvertToBPMNError(stdErr)
	h.logError(job, stdErr, bpmnErr)

	retries := GetRetryCount(stdErr.Code)
	if retries > 0 && job.Retries > 0 {
		h.failJobWithRetries(ctx, client, job, bpmnErr, retries)
	} else {
		h.throwBPMNError(ctx, client, job, bpmnErr)
	}
}

func (h *ErrorHandler) normalizeError(err error) *StandardError {
	if stdErr, ok := AsStandardError(err); ok {
		return stdErr
	}
	return NewInternalError(err)
}

func (h *ErrorHandler) failJobWithRetries(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError, maxRetries int) {
	// job.Retries is what the broker has left; never raise it.
	retriesToUse := maxRetries
	if job.Retries > 0 && int(job.Retries) < maxRetries {
		retriesToUse = int(job.Retries)
	}

	vars := bpmnErr.ToErrorVariables()
	varsJSON, _ := json.Marshal(vars)

	cmd := client.NewFailJobCommand().
		JobKey(job.Key).
		Retries(int32(retriesToUse)).
		ErrorMessage(bpmnErr.Message)

	send := func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	}
	if len(vars) > 0 {
		if varsJSONStr := string(varsJSON); varsJSONStr != "null" {
			if cmdWithVars, err := cmd.VariablesFromString(varsJSONStr); err == nil {
				send = func(ctx context.Context) error {
					_, err := cmdWithVars.Send(ctx)
					return err
				}
			}
		}
	}

	h.dispatch(ctx, job, "fail job", send)
}

func (h *ErrorHandler) throwBPMNError(ctx context.Context, client worker.JobClient, job entities.Job, bpmnErr *BPMNError) {
	vars := bpmnErr.ToErrorVariables()
	varsJSON, _ := json.Marshal(vars)

	cmd := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(bpmnErr.Code).
		ErrorMessage(bpmnErr.Message)

	send := func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	}
	if len(vars) > 0 {
		if varsJSONStr := string(varsJSON); varsJSONStr != "null" {
			if cmdWithVars, err := cmd.VariablesFromString(varsJSONStr); err == nil {
				send = func(ctx context.Context) error {
					_, err := cmdWithVars.Send(ctx)
					return err
				}
			}
		}
	}

	h.dispatch(ctx, job, "throw error", send)
}

func (h *ErrorHandler) dispatch(ctx context.Context, job entities.Job, operation string, send func(context.Context) error) {
	if err := h.send(ctx, operation, send); err != nil {
		h.logger.Error("failed to send job command", map[string]interface{}{
			"jobKey":    job.Key,
			"operation": operation,
			"error":     err.Error(),
		})
	}
}

func (h *ErrorHandler) logError(job entities.Job, stdErr *StandardError, bpmnErr *BPMNError) {
	h.logger.Error("Job failed", map[string]interface{}{
		"jobKey":           job.Key,
		"jobType":          job.Type,
		"errorCode":        string(stdErr.Code),
		"bpmnErrorCode":    bpmnErr.Code,
		"message":          bpmnErr.Message,
		"details":          stdErr.Details,
		"retryable":        stdErr.Retryable,
		"retries":          GetRetryCount(stdErr.Code),
		"errorCategory":    GetErrorCategory(stdErr.Code),
		"workflowInstance": job.ProcessInstanceKey,
	})
}
