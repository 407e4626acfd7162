package queue

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultQueue = "default"

	exportMaxRetry  = 3
	exportTimeout   = 2 * time.Minute
	exportRetention = 24 * time.Hour
)

type Client struct {
	client *asynq.Client
	queue  string
	tracer trace.Tracer
}

func NewClient(redisOpt asynq.RedisClientOpt, queueName string) *Client {
	if queueName == "" {
		queueName = DefaultQueue
	}
	return &Client{
		client: asynq.NewClient(redisOpt),
		queue:  queueName,
		tracer: otel.Tracer("passportflow/queue"),
	}
}

// EnqueueExport schedules an export. The export id doubles as the task id,
// so enqueuing the same export twice fails with asynq.ErrTaskIDConflict.
// The caller's trace context travels with the task.
func (c *Client) EnqueueExport(ctx context.Context, payload ExportPayload) (*asynq.TaskInfo, error) {
	ctx, span := c.tracer.Start(ctx, "queue.enqueue "+TypeExportOutputs, trace.WithSpanKind(trace.SpanKindProducer))
	span.SetAttributes(
		attribute.String("export.id", payload.ExportID),
		attribute.String("session.id", payload.Request.SessionID),
		attribute.String("queue.name", c.queue),
	)
	defer span.End()

	payload.Trace = make(map[string]string)
	otel.GetTextMapPropagator().Inject(ctx, propagation.MapCarrier(payload.Trace))

	task, err := NewExportTask(payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid export")
		return nil, err
	}
	info, err := c.client.EnqueueContext(ctx, task,
		asynq.Queue(c.queue),
		asynq.TaskID(payload.ExportID),
		asynq.MaxRetry(exportMaxRetry),
		asynq.Timeout(exportTimeout),
		asynq.Retention(exportRetention),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "enqueue failed")
		return nil, err
	}
	return info, nil
}

func (c *Client) Queue() string {
	return c.queue
}

func (c *Client) Close() error {
	return c.client.Close()
}
