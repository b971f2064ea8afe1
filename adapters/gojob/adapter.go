package gojob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/transport"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDDeliverSubmission   = "integrations.submission.deliver"
	JobIDRefreshFormSettings = "integrations.form_settings.refresh"

	paramHandle     = "handle"
	paramSubmission = "submission"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		BaseDelay:       2 * time.Second,
		MaxDelay:        5 * time.Minute,
		DeadLetterOnMax: true,
	}
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation. An
// empty disposition means retry; retries past MaxAttempts become terminal.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition == queue.NackDispositionRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
	}
	if out.Disposition != queue.NackDispositionRetry {
		out.Delay = 0
	}
	return out
}

// Backoff doubles BaseDelay per attempt, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 || attempt <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// NewDeliveryMessage builds the queue message for one submission. The
// idempotency key is "<handle>:<submission id>".
func NewDeliveryMessage(handle string, submission core.Submission) (*job.ExecutionMessage, error) {
	handle = strings.TrimSpace(handle)
	submission.ID = strings.TrimSpace(submission.ID)
	if handle == "" || submission.ID == "" {
		return nil, core.NewValidationError(
			"gojob: delivery message requires integration handle and submission id",
			missingFields(handle, submission.ID)...,
		)
	}
	encoded, err := encodeSubmission(submission)
	if err != nil {
		return nil, err
	}
	return &job.ExecutionMessage{
		JobID:      JobIDDeliverSubmission,
		ScriptPath: JobIDDeliverSubmission,
		Parameters: map[string]any{
			paramHandle:     handle,
			paramSubmission: encoded,
		},
		IdempotencyKey: handle + ":" + submission.ID,
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}, nil
}

// NewRefreshMessage builds the queue message that refreshes stored form
// settings for one integration.
func NewRefreshMessage(handle string) (*job.ExecutionMessage, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, core.NewValidationError("gojob: refresh message requires integration handle",
			goerrors.FieldError{Field: paramHandle, Message: "required"})
	}
	return &job.ExecutionMessage{
		JobID:          JobIDRefreshFormSettings,
		ScriptPath:     JobIDRefreshFormSettings,
		Parameters:     map[string]any{paramHandle: handle},
		IdempotencyKey: JobIDRefreshFormSettings + ":" + handle,
		DedupPolicy:    job.DeduplicationPolicy("merge"),
	}, nil
}

// DecodeDeliveryMessage reverses NewDeliveryMessage. The submission parameter
// may arrive as a struct or as a JSON-decoded map.
func DecodeDeliveryMessage(msg *job.ExecutionMessage) (string, core.Submission, error) {
	if msg == nil {
		return "", core.Submission{}, core.NewValidationError("gojob: execution message is required")
	}
	handle := stringParam(msg.Parameters, paramHandle)
	raw, ok := msg.Parameters[paramSubmission]
	if handle == "" || !ok || raw == nil {
		return "", core.Submission{}, core.NewValidationError(
			"gojob: delivery message is missing parameters",
			goerrors.FieldError{Field: paramHandle, Message: "required"},
			goerrors.FieldError{Field: paramSubmission, Message: "required"},
		)
	}
	var submission core.Submission
	switch value := raw.(type) {
	case core.Submission:
		submission = value
	default:
		payload, err := json.Marshal(value)
		if err != nil {
			return "", core.Submission{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "gojob: encode submission parameter").
				WithTextCode(core.IntegrationErrorBadInput)
		}
		if err := json.Unmarshal(payload, &submission); err != nil {
			return "", core.Submission{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "gojob: decode submission parameter").
				WithTextCode(core.IntegrationErrorBadInput)
		}
	}
	if strings.TrimSpace(submission.ID) == "" {
		return "", core.Submission{}, core.NewValidationError("gojob: submission id is required",
			goerrors.FieldError{Field: "submission.id", Message: "required"})
	}
	return handle, submission, nil
}

// SubmissionEnqueuer puts submissions and settings refreshes on a host queue.
type SubmissionEnqueuer struct {
	enqueuer queue.Enqueuer
}

func NewSubmissionEnqueuer(enqueuer queue.Enqueuer) *SubmissionEnqueuer {
	return &SubmissionEnqueuer{enqueuer: enqueuer}
}

func (e *SubmissionEnqueuer) EnqueueSubmission(ctx context.Context, handle string, submission core.Submission) (queue.EnqueueReceipt, error) {
	if e == nil || e.enqueuer == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := NewDeliveryMessage(handle, submission)
	if err != nil {
		return queue.EnqueueReceipt{}, err
	}
	return e.enqueuer.Enqueue(ctx, msg)
}

func (e *SubmissionEnqueuer) EnqueueRefresh(ctx context.Context, handle string) (queue.EnqueueReceipt, error) {
	if e == nil || e.enqueuer == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := NewRefreshMessage(handle)
	if err != nil {
		return queue.EnqueueReceipt{}, err
	}
	return e.enqueuer.Enqueue(ctx, msg)
}

// PartialDeliveryError reports a failed send that had already created
// remote records. Replaying it would create those records again.
type PartialDeliveryError struct {
	Records map[string]string
	Err     error
}

func (e *PartialDeliveryError) Error() string {
	entities := make([]string, 0, len(e.Records))
	for entity := range e.Records {
		entities = append(entities, entity)
	}
	sort.Strings(entities)
	created := make([]string, 0, len(entities))
	for _, entity := range entities {
		created = append(created, entity+"="+e.Records[entity])
	}
	return fmt.Sprintf("partial delivery, created %s: %v", strings.Join(created, " "), e.Err)
}

func (e *PartialDeliveryError) Unwrap() error { return e.Err }

// DeliveryService is the part of core.Service the worker drives.
type DeliveryService interface {
	SendSubmission(ctx context.Context, req core.SendSubmissionRequest) core.DeliveryResult
	FetchFormSettings(ctx context.Context, req core.FetchFormSettingsRequest) (core.FormSettings, error)
}

type WorkerOption func(*DeliveryWorker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *DeliveryWorker) {
		w.policy = policy
	}
}

func WithHook(hook worker.Hook) WorkerOption {
	return func(w *DeliveryWorker) {
		if hook != nil {
			w.hooks = append(w.hooks, hook)
		}
	}
}

func WithClock(now func() time.Time) WorkerOption {
	return func(w *DeliveryWorker) {
		if now != nil {
			w.now = now
		}
	}
}

// DeliveryWorker processes queued deliveries. Attempt counts are tracked per
// idempotency key for the lifetime of the worker.
type DeliveryWorker struct {
	service DeliveryService
	policy  RetryPolicy
	hooks   []worker.Hook
	now     func() time.Time

	mu       sync.Mutex
	attempts map[string]int
}

func NewDeliveryWorker(service DeliveryService, opts ...WorkerOption) *DeliveryWorker {
	w := &DeliveryWorker{
		service:  service,
		policy:   DefaultRetryPolicy(),
		now:      time.Now,
		attempts: map[string]int{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// ProcessNext dequeues one delivery and processes it.
func (w *DeliveryWorker) ProcessNext(ctx context.Context, dequeuer queue.Dequeuer) error {
	if dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	return w.Process(ctx, delivery)
}

// Process runs one delivery and settles it: delivered or suppressed sends are
// acked, validation and payload mismatch failures are dead-lettered, remote
// failures are retried with backoff until the retry policy gives up. A remote
// failure after some records were created is dead-lettered without retry.
func (w *DeliveryWorker) Process(ctx context.Context, delivery queue.Delivery) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("gojob: delivery service is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	key := attemptKey(msg)
	attempt := w.nextAttempt(key)
	event := worker.Event{
		Message:   msg,
		Delivery:  delivery,
		Attempt:   attempt,
		StartedAt: w.now().UTC(),
	}
	w.emit(func(h worker.Hook) { h.OnStart(ctx, event) })

	kind, err := w.execute(ctx, msg)
	event.Duration = w.now().UTC().Sub(event.StartedAt)
	event.Err = err

	if err == nil {
		w.forget(key)
		w.emit(func(h worker.Hook) { h.OnSuccess(ctx, event) })
		return delivery.Ack(ctx)
	}

	opts := queue.NackOptions{
		Disposition: queue.NackDispositionDeadLetter,
		Reason:      err.Error(),
	}
	var partial *PartialDeliveryError
	if kind == core.ErrorKindAPI && !errors.As(err, &partial) {
		opts.Disposition = queue.NackDispositionRetry
		opts.Delay = w.policy.Backoff(attempt)
		if wait, ok := transport.RetryAfterDelay(err); ok && wait > opts.Delay {
			opts.Delay = wait
		}
	}
	opts = w.policy.NormalizeAttempt(opts, attempt)
	event.Delay = opts.Delay

	if opts.Disposition == queue.NackDispositionRetry {
		w.emit(func(h worker.Hook) { h.OnRetry(ctx, event) })
	} else {
		w.forget(key)
		w.emit(func(h worker.Hook) { h.OnFailure(ctx, event) })
	}
	return delivery.Nack(ctx, opts)
}

func (w *DeliveryWorker) execute(ctx context.Context, msg *job.ExecutionMessage) (core.ErrorKind, error) {
	if msg == nil {
		return core.ErrorKindValidation, core.NewValidationError("gojob: execution message is required")
	}
	switch strings.TrimSpace(msg.JobID) {
	case JobIDDeliverSubmission:
		handle, submission, err := DecodeDeliveryMessage(msg)
		if err != nil {
			return core.ErrorKindValidation, err
		}
		result := w.service.SendSubmission(ctx, core.SendSubmissionRequest{Handle: handle, Submission: submission})
		if result.Succeeded() {
			return core.ErrorKindNone, nil
		}
		err = result.Err
		if err == nil {
			err = fmt.Errorf("gojob: delivery of %s failed", msg.IdempotencyKey)
		}
		kind := result.ErrorKind
		if kind == core.ErrorKindNone {
			kind = core.ClassifyError(err)
		}
		if len(result.Records) > 0 {
			err = &PartialDeliveryError{Records: result.Records, Err: err}
		}
		return kind, err
	case JobIDRefreshFormSettings:
		handle := stringParam(msg.Parameters, paramHandle)
		if handle == "" {
			return core.ErrorKindValidation, core.NewValidationError("gojob: refresh message requires integration handle")
		}
		if _, err := w.service.FetchFormSettings(ctx, core.FetchFormSettingsRequest{Handle: handle, Refresh: true}); err != nil {
			return core.ClassifyError(err), err
		}
		return core.ErrorKindNone, nil
	default:
		return core.ErrorKindInternal, core.NewCapabilityUnsupportedError("gojob", "job "+msg.JobID)
	}
}

func (w *DeliveryWorker) nextAttempt(key string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts[key]++
	return w.attempts[key]
}

func (w *DeliveryWorker) forget(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.attempts, key)
}

func (w *DeliveryWorker) emit(fn func(worker.Hook)) {
	for _, hook := range w.hooks {
		fn(hook)
	}
}

// LoggingHook writes worker lifecycle events to a glog logger.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.log(ctx).Debug("integration job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.log(ctx).Info("integration job completed", eventFields(event)...)
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.log(ctx).Error("integration job failed", eventFields(event)...)
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.log(ctx).Warn("integration job scheduled for retry", eventFields(event)...)
}

func (h *LoggingHook) log(ctx context.Context) glog.Logger {
	if h == nil || h.logger == nil {
		return glog.Nop()
	}
	return h.logger.WithContext(ctx)
}

func eventFields(event worker.Event) []any {
	fields := []any{
		"attempt", event.Attempt,
		"duration_ms", event.Duration.Milliseconds(),
	}
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	if message != nil {
		fields = append(fields, "job_id", message.JobID, "idempotency_key", message.IdempotencyKey)
	}
	if event.Delay > 0 {
		fields = append(fields, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error(), "error_kind", string(core.ClassifyError(event.Err)))
		var partial *PartialDeliveryError
		if errors.As(event.Err, &partial) {
			fields = append(fields, "created_records", partial.Records)
		}
	}
	return fields
}

func encodeSubmission(submission core.Submission) (map[string]any, error) {
	payload, err := json.Marshal(submission)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "gojob: encode submission").
			WithTextCode(core.IntegrationErrorBadInput)
	}
	out := map[string]any{}
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "gojob: encode submission")
	}
	return out, nil
}

func attemptKey(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	if key := strings.TrimSpace(msg.IdempotencyKey); key != "" {
		return key
	}
	return strings.TrimSpace(msg.JobID)
}

func stringParam(params map[string]any, key string) string {
	if len(params) == 0 {
		return ""
	}
	value, _ := params[key].(string)
	return strings.TrimSpace(value)
}

func missingFields(handle string, submissionID string) []goerrors.FieldError {
	var out []goerrors.FieldError
	if handle == "" {
		out = append(out, goerrors.FieldError{Field: paramHandle, Message: "required"})
	}
	if submissionID == "" {
		out = append(out, goerrors.FieldError{Field: "submission.id", Message: "required"})
	}
	return out
}

var (
	_ worker.Hook     = (*LoggingHook)(nil)
	_ DeliveryService = (*core.Service)(nil)
)
