package camunda

import (
	"context"
	"time"

	"complaint-desk/internal/common/config"
	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/common/observability"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.opentelemetry.io/otel/attribute"
)

// JobHandler is implemented by every task handler under internal/workers.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

// ContextJobHandler is a JobHandler that can run under a parent context.
type ContextJobHandler interface {
	JobHandler
	HandleContext(ctx context.Context, client worker.JobClient, job entities.Job)
}

type instrumentedHandler struct {
	taskType string
	next     JobHandler
	obs      *observability.Observability
}

// Instrument records every handled job of taskType on obs. Handlers that
// implement ContextJobHandler run inside the job span.
func Instrument(taskType string, next JobHandler, obs *observability.Observability) JobHandler {
	return &instrumentedHandler{taskType: taskType, next: next, obs: obs}
}

func (h *instrumentedHandler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	ctx, span := observability.StartSpan(context.Background(), h.taskType,
		attribute.Int64("job.key", job.GetKey()),
		attribute.Int64("job.process_instance_key", job.GetProcessInstanceKey()),
	)
	defer span.End()

	if next, ok := h.next.(ContextJobHandler); ok {
		next.HandleContext(ctx, client, job)
	} else {
		h.next.Handle(client, job)
	}
	h.obs.RecordJobProcessed(ctx, h.taskType, "handled")
	h.obs.RecordJobDuration(ctx, h.taskType, time.Since(start))
}

// StartWorker opens a job worker for taskType. It returns nil when the worker
// is disabled in configuration.
func StartWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler JobHandler, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(time.Duration(wcfg.Timeout) * time.Millisecond).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jw
}

// CompleteJob completes job with output as its variables.
func CompleteJob(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}, log logger.Logger) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		log.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	err = SendJobCommand(ctx, "complete job", func(ctx context.Context) error {
		_, err := cmd.Send(ctx)
		return err
	})
	if err != nil {
		log.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
	}
}
