package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-contracts/core"
	glog "github.com/goliatone/go-logger/glog"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue/worker"
)

const (
	JobIDAgreementDelete = "contracts.agreement.delete"

	ParamAgreementID = "agreement_id"
	ParamProcessID   = "process_id"
	ParamReason      = "reason"

	dedupPolicyDrop = "drop"
)

// AgreementDeletionKey is the idempotency key of the cleanup job for an
// agreement. Repeated failures for one agreement collapse into one job.
func AgreementDeletionKey(agreementID string) string {
	return "agreement-delete:" + strings.TrimSpace(agreementID)
}

// CleanupScheduler enqueues agreement deletions that failed during
// negotiation termination.
type CleanupScheduler struct {
	enqueuer core.JobEnqueuer
}

func NewCleanupScheduler(enqueuer core.JobEnqueuer) *CleanupScheduler {
	return &CleanupScheduler{enqueuer: enqueuer}
}

func (s *CleanupScheduler) ScheduleAgreementDeletion(ctx context.Context, req core.AgreementCleanupRequest) error {
	if s == nil || s.enqueuer == nil {
		return fmt.Errorf("gojob: cleanup enqueuer is not configured")
	}
	agreementID := strings.TrimSpace(req.AgreementID)
	if agreementID == "" {
		return fmt.Errorf("gojob: agreement id is required")
	}
	return s.enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:      JobIDAgreementDelete,
		ScriptPath: JobIDAgreementDelete,
		Parameters: map[string]any{
			ParamAgreementID: agreementID,
			ParamProcessID:   strings.TrimSpace(req.ProcessID),
			ParamReason:      strings.TrimSpace(req.Reason),
		},
		IdempotencyKey: AgreementDeletionKey(agreementID),
		DedupPolicy:    dedupPolicyDrop,
	})
}

// AgreementDeleter is the slice of core.NegotiationGateway the worker needs.
type AgreementDeleter interface {
	DeleteAgreement(ctx context.Context, agreementID string) (bool, error)
}

// CleanupWorker drains agreement deletion jobs.
type CleanupWorker struct {
	dequeuer *DequeuerAdapter
	deleter  AgreementDeleter
	policy   RetryPolicy
	hook     worker.Hook
	logger   core.Logger
	idle     time.Duration
}

type CleanupWorkerOption func(*CleanupWorker)

func WithWorkerHook(hook worker.Hook) CleanupWorkerOption {
	return func(w *CleanupWorker) {
		w.hook = hook
	}
}

func WithWorkerLogger(logger core.Logger) CleanupWorkerOption {
	return func(w *CleanupWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewCleanupWorker(dequeuer *DequeuerAdapter, deleter AgreementDeleter, policy RetryPolicy, opts ...CleanupWorkerOption) *CleanupWorker {
	w := &CleanupWorker{
		dequeuer: dequeuer,
		deleter:  deleter,
		policy:   policy,
		idle:     time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	if w.logger == nil {
		w.logger = glog.Nop()
	}
	return w
}

// Run processes jobs until ctx is done.
func (w *CleanupWorker) Run(ctx context.Context) error {
	for {
		err := w.ProcessNext(ctx)
		if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
			return nil
		}
		if err != nil {
			w.logger.Error("agreement cleanup worker failed", "error", err.Error())
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.idle):
			}
		}
	}
}

// ProcessNext handles one job. Deletion failures are nacked for retry and do
// not surface as errors; only queue failures do.
func (w *CleanupWorker) ProcessNext(ctx context.Context) error {
	if w == nil || w.dequeuer == nil || w.deleter == nil {
		return fmt.Errorf("gojob: cleanup worker is not configured")
	}
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	msg := delivery.Message()
	attempt := attemptOf(delivery)
	event := worker.Event{
		Message:   ToExecutionMessage(msg),
		Attempt:   attempt,
		StartedAt: time.Now().UTC(),
	}

	agreementID, processID := cleanupParams(msg)
	if msg == nil || msg.JobID != JobIDAgreementDelete || agreementID == "" {
		event.Err = errors.New("gojob: not an agreement deletion job")
		w.onFailure(ctx, event)
		return delivery.Nack(ctx, core.JobNackOptions{DeadLetter: true, Reason: event.Err.Error()})
	}

	w.onStart(ctx, event)
	deleted, err := w.deleter.DeleteAgreement(ctx, agreementID)
	if err == nil && !deleted {
		err = fmt.Errorf("gojob: agreement %s was not deleted", agreementID)
	}
	event.Duration = time.Since(event.StartedAt)
	if err == nil {
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			return ackErr
		}
		w.onSuccess(ctx, event)
		w.logger.Info("agreement cleanup succeeded",
			"agreement_id", agreementID,
			"process_id", processID,
			"attempt", attempt,
		)
		return nil
	}

	opts := w.policy.NormalizeAttempt(core.JobNackOptions{
		Delay:   w.policy.Backoff(attempt),
		Requeue: true,
		Reason:  err.Error(),
	}, attempt)
	event.Err = err
	event.Delay = opts.Delay
	if opts.Requeue {
		w.onRetry(ctx, event)
	} else {
		w.onFailure(ctx, event)
	}
	w.logger.Warn("agreement cleanup failed",
		"agreement_id", agreementID,
		"process_id", processID,
		"attempt", attempt,
		"requeue", opts.Requeue,
		"error", err.Error(),
	)
	if adapter, ok := delivery.(*DeliveryAdapter); ok {
		return adapter.NackForAttempt(ctx, opts, attempt)
	}
	return delivery.Nack(ctx, opts)
}

func (w *CleanupWorker) onStart(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnStart(ctx, event)
	}
}

func (w *CleanupWorker) onSuccess(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnSuccess(ctx, event)
	}
}

func (w *CleanupWorker) onFailure(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnFailure(ctx, event)
	}
}

func (w *CleanupWorker) onRetry(ctx context.Context, event worker.Event) {
	if w.hook != nil {
		w.hook.OnRetry(ctx, event)
	}
}

func attemptOf(delivery core.JobDelivery) int {
	if counted, ok := delivery.(interface{ Attempt() int }); ok && counted.Attempt() > 0 {
		return counted.Attempt()
	}
	return 1
}

func cleanupParams(msg *core.JobExecutionMessage) (string, string) {
	if msg == nil {
		return "", ""
	}
	return paramString(msg.Parameters, ParamAgreementID), paramString(msg.Parameters, ParamProcessID)
}

func paramString(params map[string]any, key string) string {
	value, ok := params[key]
	if !ok || value == nil {
		return ""
	}
	if text, ok := value.(string); ok {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(fmt.Sprint(value))
}

// MetricsHook records cleanup job outcomes through a core.MetricsRecorder.
type MetricsHook struct {
	recorder core.MetricsRecorder
}

func NewMetricsHook(recorder core.MetricsRecorder) *MetricsHook {
	if recorder == nil {
		recorder = core.NopMetricsRecorder{}
	}
	return &MetricsHook{recorder: recorder}
}

func (h *MetricsHook) OnStart(context.Context, worker.Event) {}

func (h *MetricsHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.record(ctx, event, "success")
}

func (h *MetricsHook) OnFailure(ctx context.Context, event worker.Event) {
	h.record(ctx, event, "failure")
}

func (h *MetricsHook) OnRetry(ctx context.Context, event worker.Event) {
	h.record(ctx, event, "retry")
}

func (h *MetricsHook) record(ctx context.Context, event worker.Event, status string) {
	tags := map[string]string{"job_id": jobID(event.Message), "status": status}
	h.recorder.IncCounter(ctx, "contracts.cleanup.jobs.total", 1, tags)
	if event.Duration > 0 {
		h.recorder.ObserveHistogram(ctx, "contracts.cleanup.jobs.duration_ms", float64(event.Duration.Milliseconds()), tags)
	}
}

func jobID(msg *job.ExecutionMessage) string {
	if msg == nil {
		return "unknown"
	}
	return msg.JobID
}

var (
	_ core.AgreementCleanupScheduler = (*CleanupScheduler)(nil)
	_ AgreementDeleter               = (core.NegotiationGateway)(nil)
	_ worker.Hook                    = (*MetricsHook)(nil)
)
