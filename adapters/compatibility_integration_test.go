package adapters_test

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"

	"github.com/goliatone/go-form-integrations/adapters/gocommand"
	"github.com/goliatone/go-form-integrations/adapters/gojob"
	"github.com/goliatone/go-form-integrations/adapters/gologger"
	integrationscommand "github.com/goliatone/go-form-integrations/command"
	"github.com/goliatone/go-form-integrations/core"
	"github.com/goliatone/go-form-integrations/providers/devkit"
	"github.com/goliatone/go-form-integrations/providers/mailerlite"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	provider := &compatProvider{}
	_, _, jobProvider, jobLogger := gologger.ResolveForJob(gologger.RootName, provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	bus := gocommand.NewBus(command.NewRegistry())
	defer bus.Close()
	if err := bus.MirrorToQueue(queueRegistry); err != nil {
		t.Fatalf("mirror to queue: %v", err)
	}
	if err := bus.Mount(&compatService{}); err != nil {
		t.Fatalf("mount handlers: %v", err)
	}
	if err := bus.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get(integrationscommand.TypeSendSubmission); !ok {
		t.Fatalf("expected send command to be mirrored into the go-job queue registry")
	}
}

func TestQueuedDelivery_MailerLiteThroughServiceAndWorker(t *testing.T) {
	ctx := context.Background()
	fake := devkit.NewFakeTransportAdapter(mailerlite.DefaultBaseURL).
		On(http.MethodPost, "groups/42/subscribers", devkit.JSON(http.StatusOK, map[string]any{"id": 991}))

	connector, err := mailerlite.New(mailerlite.Config{
		Handle:       "newsletter",
		APIKey:       "key-1",
		ListID:       "42",
		Adapter:      fake,
		FieldMapping: core.FieldMapping{"email": "emailAddress"},
	})
	if err != nil {
		t.Fatalf("new connector: %v", err)
	}

	sink := &compatEventSink{}
	svc, err := core.NewService(core.DefaultConfig(),
		core.WithLoggerProvider(&compatProvider{}),
		core.WithEventSink(sink),
	)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if err := svc.Register(connector); err != nil {
		t.Fatalf("register connector: %v", err)
	}

	q := &compatQueue{}
	enqueuer := gojob.NewSubmissionEnqueuer(q)
	if _, err := enqueuer.EnqueueSubmission(ctx, "newsletter", core.Submission{
		ID:     "sub-1",
		Values: map[string]any{"emailAddress": "ada@example.com"},
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	worker := gojob.NewDeliveryWorker(svc, gojob.WithHook(gojob.NewLoggingHook(compatLogger{})))
	if err := worker.ProcessNext(ctx, q); err != nil {
		t.Fatalf("process next: %v", err)
	}
	if q.acked != 1 || q.nacked != 0 {
		t.Fatalf("expected one ack and no nack, got acked=%d nacked=%d", q.acked, q.nacked)
	}
	if fake.Count(http.MethodPost, "groups/42/subscribers") != 1 {
		t.Fatalf("expected one subscriber create request")
	}
	events := sink.snapshot()
	if len(events) != 1 || events[0].Status != string(core.DeliveryStatusDelivered) {
		t.Fatalf("expected one delivered event, got %#v", events)
	}
}

type compatService struct{}

func (compatService) SendSubmission(context.Context, core.SendSubmissionRequest) core.DeliveryResult {
	return core.Delivered(nil)
}

func (compatService) FetchFormSettings(context.Context, core.FetchFormSettingsRequest) (core.FormSettings, error) {
	return core.FormSettings{}, nil
}

func (compatService) CheckConnection(context.Context, string) (bool, error) { return true, nil }

func (compatService) ListEvents(context.Context, core.EventFilter) ([]core.IntegrationEvent, int, error) {
	return nil, 0, nil
}

func (compatService) RenderCaptcha(context.Context, string, string) (string, error) { return "", nil }

func (compatService) ValidateCaptcha(context.Context, string, core.Submission) (bool, error) {
	return true, nil
}

type compatQueue struct {
	mu       sync.Mutex
	messages []*job.ExecutionMessage
	acked    int
	nacked   int
}

func (q *compatQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return queue.EnqueueReceipt{DispatchID: msg.IdempotencyKey}, nil
}

func (q *compatQueue) Dequeue(context.Context) (queue.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	msg := q.messages[0]
	q.messages = q.messages[1:]
	return &compatDelivery{queue: q, msg: msg}, nil
}

type compatDelivery struct {
	queue *compatQueue
	msg   *job.ExecutionMessage
}

func (d *compatDelivery) Message() *job.ExecutionMessage { return d.msg }

func (d *compatDelivery) Ack(context.Context) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	d.queue.acked++
	return nil
}

func (d *compatDelivery) Nack(context.Context, queue.NackOptions) error {
	d.queue.mu.Lock()
	defer d.queue.mu.Unlock()
	d.queue.nacked++
	return nil
}

type compatEventSink struct {
	mu     sync.Mutex
	events []core.IntegrationEvent
}

func (s *compatEventSink) Record(_ context.Context, event core.IntegrationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *compatEventSink) snapshot() []core.IntegrationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.IntegrationEvent(nil), s.events...)
}

type compatProvider struct{}

func (compatProvider) GetLogger(string) glog.Logger { return compatLogger{} }

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }
