package notification

import (
	"context"
	"time"

	"complaint-desk/internal/common/logger"
	"complaint-desk/internal/common/metrics"
	"complaint-desk/internal/models"
)

// handoffTimeout bounds queue writes made after the dispatcher context is
// cancelled.
const handoffTimeout = 5 * time.Second

// RetryPolicy governs redelivery of failed events.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	PollTimeout time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 5
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = time.Minute
	}
	if p.PollTimeout <= 0 {
		p.PollTimeout = time.Second
	}
	return p
}

// Backoff returns BaseDelay * 2^attempt capped at MaxDelay. attempt counts
// from zero for the first retry.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := p.BaseDelay
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Dispatcher drains the queue and delivers each event through its Sender.
type Dispatcher struct {
	queue   *Queue
	sender  Sender
	alerter Alerter
	policy  RetryPolicy
	logger  logger.Logger
	now     func() time.Time
}

// NewDispatcher builds a dispatcher. alerter may be nil.
func NewDispatcher(q *Queue, sender Sender, alerter Alerter, policy RetryPolicy, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		queue:   q,
		sender:  sender,
		alerter: alerter,
		policy:  policy.withDefaults(),
		logger: log.WithFields(map[string]interface{}{
			"component": "notification-dispatcher",
			"channel":   sender.Channel(),
		}),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Used by tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Run processes events until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("notification dispatcher started", map[string]interface{}{
		"maxAttempts": d.policy.MaxAttempts,
	})
	for {
		if ctx.Err() != nil {
			d.logger.Info("notification dispatcher stopped", nil)
			return nil
		}
		if _, err := d.ProcessOnce(ctx); err != nil {
			if ctx.Err() != nil {
				continue
			}
			d.logger.Error("notification poll failed", map[string]interface{}{
				"error": err.Error(),
			})
			select {
			case <-ctx.Done():
			case <-time.After(d.policy.PollTimeout):
			}
		}
	}
}

// ProcessOnce promotes due retries and handles at most one ready event. It
// reports whether an event was handled.
func (d *Dispatcher) ProcessOnce(ctx context.Context) (bool, error) {
	if n, err := d.queue.PromoteDue(ctx, d.now()); err != nil {
		return false, err
	} else if n > 0 {
		d.logger.Debug("promoted due retries", map[string]interface{}{"count": n})
	}

	ev, err := d.queue.Pop(ctx, d.policy.PollTimeout)
	if err != nil || ev == nil {
		return false, err
	}

	d.deliver(ctx, *ev)
	return true, nil
}

func (d *Dispatcher) deliver(ctx context.Context, ev models.NotificationEvent) {
	channel := d.sender.Channel()
	fields := map[string]interface{}{
		"eventId":     ev.ID,
		"complaintId": ev.ComplaintID,
		"status":      string(ev.Status),
	}

	err := d.sender.Send(ctx, ev)
	if err == nil {
		metrics.NotificationsDelivered.WithLabelValues(channel).Inc()
		d.logger.Info("notification delivered", fields)
		return
	}

	// The event left the ready list on Pop; from here on queue writes must
	// outlive a shutdown.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handoffTimeout)
	defer cancel()

	if ctx.Err() != nil {
		// Interrupted by shutdown, not a delivery failure.
		if err := d.queue.Requeue(wctx, ev); err != nil {
			fields["requeueError"] = err.Error()
			d.logger.Error("failed to requeue interrupted notification", fields)
			return
		}
		d.logger.Info("notification interrupted by shutdown, requeued", fields)
		return
	}

	metrics.NotificationsFailed.WithLabelValues(channel).Inc()
	ev.Attempts++
	ev.LastError = err.Error()
	fields["attempt"] = ev.Attempts
	fields["error"] = ev.LastError

	if ev.Attempts >= d.policy.MaxAttempts {
		d.deadLetter(wctx, ev, fields)
		return
	}

	delay := d.policy.Backoff(ev.Attempts - 1)
	fields["retryIn"] = delay.String()
	if err := d.queue.ScheduleRetry(wctx, ev, d.now().Add(delay)); err != nil {
		fields["scheduleError"] = err.Error()
		d.logger.Error("failed to schedule notification retry", fields)
		return
	}
	metrics.NotificationsRetried.WithLabelValues(channel).Inc()
	d.logger.Warn("notification failed, retry scheduled", fields)
}

func (d *Dispatcher) deadLetter(ctx context.Context, ev models.NotificationEvent, fields map[string]interface{}) {
	metrics.NotificationsDeadLettered.WithLabelValues(d.sender.Channel()).Inc()
	if err := d.queue.DeadLetter(ctx, ev); err != nil {
		fields["deadLetterError"] = err.Error()
	}
	d.logger.Error("notification dead-lettered", fields)

	if d.alerter == nil {
		return
	}
	if err := d.alerter.Alert(ctx, ev); err != nil {
		d.logger.Error("failed to send dead-letter alert", map[string]interface{}{
			"eventId": ev.ID,
			"error":   err.Error(),
		})
	}
}
