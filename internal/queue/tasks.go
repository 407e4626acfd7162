package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/hibiken/asynq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

const TypeExportOutputs = "export:outputs"

// ExportPayload asks the worker to copy a session's finished files into
// object storage.
type ExportPayload struct {
	ExportID    string               `json:"export_id"`
	Request     domain.ExportRequest `json:"request"`
	RequestedAt time.Time            `json:"requested_at"`
	// Trace carries the enqueuing request's trace context.
	Trace map[string]string `json:"trace,omitempty"`
}

// TraceContext returns ctx joined to the trace that enqueued the task.
func (p ExportPayload) TraceContext(ctx context.Context) context.Context {
	if len(p.Trace) == 0 {
		return ctx
	}
	return otel.GetTextMapPropagator().Extract(ctx, propagation.MapCarrier(p.Trace))
}

func NewExportTask(payload ExportPayload) (*asynq.Task, error) {
	if payload.ExportID == "" {
		return nil, fmt.Errorf("export id is required")
	}
	if err := payload.Request.Validate(); err != nil {
		return nil, fmt.Errorf("export request: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return asynq.NewTask(TypeExportOutputs, body), nil
}

func ParseExportPayload(task *asynq.Task) (ExportPayload, error) {
	var payload ExportPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExportPayload{}, fmt.Errorf("unmarshal export payload: %w", err)
	}
	if err := payload.Request.Validate(); err != nil {
		return ExportPayload{}, fmt.Errorf("export request: %w", err)
	}
	return payload, nil
}
