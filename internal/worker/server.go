package worker

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"path"
	"time"

	"github.com/dunamismax/passportflow/internal/config"
	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/dunamismax/passportflow/internal/queue"
	"github.com/dunamismax/passportflow/internal/webhook"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const exportPrefix = "exports"

type Server struct {
	logger        zerolog.Logger
	server        *asynq.Server
	downloader    downloader
	objects       objectWriter
	webhookClient webhookSender
	activity      activityRecorder
	presignTTL    time.Duration
	metrics       *metrics
	tracer        trace.Tracer
	now           func() time.Time
}

type downloader interface {
	Download(ctx context.Context, name string) ([]byte, error)
}

type objectWriter interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	PresignedGetURL(ctx context.Context, objectKey string, expiry time.Duration) (string, error)
}

type webhookSender interface {
	Send(ctx context.Context, endpoint, event string, payload any) error
}

type activityRecorder interface {
	Record(ctx context.Context, entry domain.ActivityLog) error
}

type Deps struct {
	Downloader downloader
	Objects    objectWriter
	Webhooks   webhookSender
	Activity   activityRecorder
}

func NewServer(
	logger zerolog.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	deps Deps,
) (*Server, error) {
	if deps.Downloader == nil {
		return nil, fmt.Errorf("processing client is required")
	}
	if deps.Objects == nil {
		return nil, fmt.Errorf("storage client is required")
	}

	logger = logger.With().Str("component", "worker").Logger()
	s := &Server{
		logger: logger,
		server: asynq.NewServer(
			queueCfg.RedisClientOpt(),
			asynq.Config{
				Concurrency: workerCfg.Concurrency,
				Queues: map[string]int{
					queueCfg.Name: 1,
				},
				LogLevel: asynq.InfoLevel,
				ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
					retried, _ := asynq.GetRetryCount(ctx)
					maxRetry, _ := asynq.GetMaxRetry(ctx)
					logger.Error().Err(err).Str("type", task.Type()).Int("retry", retried).Int("max_retry", maxRetry).Msg("task failed")
				}),
			},
		),
		downloader:    deps.Downloader,
		objects:       deps.Objects,
		webhookClient: deps.Webhooks,
		activity:      deps.Activity,
		presignTTL:    workerCfg.PresignTTL(),
		metrics:       newMetrics(),
		tracer:        otel.Tracer("passportflow/worker"),
		now:           time.Now,
	}
	return s, nil
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeExportOutputs, s.handleExport)
	return s.server.Run(mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleExport(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	outcome := domain.ExportStatusFailed

	payload, err := queue.ParseExportPayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}
	req := payload.Request

	ctx, span := s.tracer.Start(payload.TraceContext(ctx), "worker.export_outputs", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("export.id", payload.ExportID),
		attribute.String("session.id", req.SessionID),
		attribute.Int("export.refs", len(req.Refs())),
	)
	defer span.End()
	defer func() {
		s.metrics.exportDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())
		s.metrics.exportsTotal.WithLabelValues(outcome).Inc()
	}()

	s.metrics.activeExports.Inc()
	defer s.metrics.activeExports.Dec()

	logger := s.logger.With().Str("export_id", payload.ExportID).Str("session_id", req.SessionID).Logger()
	logger.Info().Strs("refs", req.Refs()).Msg("exporting outputs")

	result, err := s.export(ctx, payload)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "export failed")
		if finalAttempt(ctx) {
			s.dispatchWebhook(ctx, logger, req, webhook.EventExportFailed, map[string]any{
				"export_id":    payload.ExportID,
				"session_id":   req.SessionID,
				"status":       domain.ExportStatusFailed,
				"requested_at": payload.RequestedAt,
				"failed_at":    s.now().UTC(),
				"error":        err.Error(),
			})
		}
		return fmt.Errorf("export outputs: %w", err)
	}

	logger.Info().Int("objects", len(result.Objects)).Msg("export finished")
	if err := s.dispatchWebhook(ctx, logger, req, webhook.EventExportCompleted, map[string]any{
		"export_id":    payload.ExportID,
		"session_id":   req.SessionID,
		"status":       domain.ExportStatusSucceeded,
		"requested_at": payload.RequestedAt,
		"completed_at": result.CompletedAt,
		"objects":      result.Objects,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "webhook dispatch failed")
		return err
	}

	outcome = domain.ExportStatusSucceeded
	span.SetStatus(codes.Ok, "exported")
	return nil
}

func (s *Server) export(ctx context.Context, payload queue.ExportPayload) (domain.ExportResult, error) {
	req := payload.Request
	result := domain.ExportResult{ExportID: payload.ExportID, SessionID: req.SessionID}

	for _, ref := range req.Refs() {
		data, err := s.downloader.Download(ctx, ref)
		if err != nil {
			return domain.ExportResult{}, fmt.Errorf("download %s: %w", ref, err)
		}

		name := path.Base(ref)
		objectKey := path.Join(exportPrefix, req.SessionID, payload.ExportID, name)
		contentType := contentTypeFor(name)
		if err := s.objects.WriteObject(ctx, objectKey, data, contentType); err != nil {
			return domain.ExportResult{}, fmt.Errorf("store %s: %w", objectKey, err)
		}

		obj := domain.ExportedObject{
			Ref:         ref,
			ObjectKey:   objectKey,
			ContentType: contentType,
			Bytes:       len(data),
		}
		if s.presignTTL > 0 {
			url, err := s.objects.PresignedGetURL(ctx, objectKey, s.presignTTL)
			if err != nil {
				s.logger.Warn().Err(err).Str("object_key", objectKey).Msg("presign export failed")
			} else {
				obj.URL = url
			}
		}
		result.Objects = append(result.Objects, obj)
		s.metrics.exportedObjects.Inc()
		s.metrics.exportedBytes.Add(float64(len(data)))
		s.recordActivity(ctx, req.SessionID, name)
	}

	result.CompletedAt = s.now().UTC()
	return result, nil
}

func (s *Server) recordActivity(ctx context.Context, sessionID, filename string) {
	if s.activity == nil {
		return
	}
	err := s.activity.Record(ctx, domain.ActivityLog{
		SessionID: sessionID,
		Action:    domain.ActivityDownload,
		Filename:  filename,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("session_id", sessionID).Msg("activity log write failed")
	}
}

func (s *Server) dispatchWebhook(ctx context.Context, logger zerolog.Logger, req domain.ExportRequest, event string, body map[string]any) error {
	if req.WebhookURL == "" || s.webhookClient == nil {
		return nil
	}

	if err := s.webhookClient.Send(ctx, req.WebhookURL, event, body); err != nil {
		logger.Error().Err(err).Str("event", event).Msg("webhook delivery failed")
		return fmt.Errorf("dispatch webhook: %w", err)
	}
	return nil
}

// finalAttempt reports whether asynq will not retry the current task. Outside
// a worker the retry metadata is absent and every attempt is final.
func finalAttempt(ctx context.Context) bool {
	retried, ok := asynq.GetRetryCount(ctx)
	if !ok {
		return true
	}
	maxRetry, ok := asynq.GetMaxRetry(ctx)
	if !ok {
		return true
	}
	return retried >= maxRetry
}

func contentTypeFor(name string) string {
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
