// Package processing is the client for the external photo processing
// service: upload, size catalog, processing, multi-copy sheets and downloads.
package processing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/dunamismax/passportflow/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	maxJSONBytes     = 1 << 20
	maxDownloadBytes = 64 << 20
)

type Config struct {
	BaseURL    string
	PathPrefix string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     zerolog.Logger
	Registerer prometheus.Registerer
}

// Client talks to the external processing service. It performs exactly one
// HTTP request per call and never retries; duplicate-submission guarding is
// the caller's job (see InFlight).
type Client struct {
	httpClient *http.Client
	baseURL    string
	prefix     string
	logger     zerolog.Logger
	metrics    *metrics
	tracer     trace.Tracer
}

type UploadResult struct {
	Filename string `json:"filename"`
	Filepath string `json:"filepath"`
}

type ProcessRequest struct {
	SourceRef  string
	SizeKey    string
	Background domain.BackgroundSpec
	Watermark  bool
}

type processBody struct {
	Filename   string `json:"filename"`
	Size       string `json:"size"`
	Background string `json:"background"`
	Watermark  bool   `json:"watermark"`
}

type processResponse struct {
	ProcessedFilename string `json:"processed_filename"`
	ProcessedFilepath string `json:"processed_filepath"`
	Size              struct {
		Name   string `json:"name"`
		Width  int    `json:"width"`
		Height int    `json:"height"`
	} `json:"size"`
}

type outputBody struct {
	Filenames []string `json:"filenames"`
	Copies    int      `json:"copies"`
}

type outputResponse struct {
	PDFFilename string `json:"pdf_filename"`
}

func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("processing base URL is required")
	}
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid processing base URL %q", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	prefix := cfg.PathPrefix
	if prefix == "" {
		prefix = "/api"
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimSuffix(u.String(), "/"),
		prefix:     "/" + strings.Trim(prefix, "/"),
		logger:     cfg.Logger.With().Str("component", "processing").Logger(),
		metrics:    newMetrics(cfg.Registerer),
		tracer:     otel.Tracer("passportflow/processing"),
	}, nil
}

func (c *Client) Upload(ctx context.Context, name, contentType string, data []byte) (UploadResult, error) {
	var out UploadResult
	err := c.call(ctx, ActionUpload, func(ctx context.Context) error {
		body, ct, err := multipartBody(name, contentType, data)
		if err != nil {
			return err
		}
		if err := c.doJSON(ctx, http.MethodPost, "upload", ct, body, &out); err != nil {
			return err
		}
		if strings.TrimSpace(out.Filename) == "" {
			return errors.New("upload response missing filename")
		}
		return nil
	})
	if err != nil {
		return UploadResult{}, domain.Wrap(domain.ErrUpload, "upload", "Failed to upload image. Please try again.", err)
	}
	return out, nil
}

func (c *Client) FetchSizeCatalog(ctx context.Context) (domain.Catalog, error) {
	var out domain.Catalog
	err := c.call(ctx, ActionCatalog, func(ctx context.Context) error {
		if err := c.doJSON(ctx, http.MethodGet, "sizes", "", nil, &out); err != nil {
			return err
		}
		if len(out) == 0 {
			return errors.New("size catalog is empty")
		}
		return out.Validate()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCatalogUnavailable, err)
	}
	return out, nil
}

// CatalogOrFallback returns the remote catalog, or the built-in fallback when
// the catalog cannot be fetched. The boolean reports whether the fallback
// was used; the failure is logged, not returned.
func (c *Client) CatalogOrFallback(ctx context.Context) (domain.Catalog, bool) {
	catalog, err := c.FetchSizeCatalog(ctx)
	if err != nil {
		c.metrics.catalogFallback.Inc()
		c.logger.Warn().Err(err).Msg("size catalog unavailable, using built-in sizes")
		return domain.FallbackCatalog(), true
	}
	return catalog, false
}

func (c *Client) Process(ctx context.Context, req ProcessRequest) (domain.ProcessedResult, error) {
	if strings.TrimSpace(req.SourceRef) == "" {
		return domain.ProcessedResult{}, fmt.Errorf("process: %w", domain.ErrEmptyReference)
	}
	if strings.TrimSpace(req.SizeKey) == "" {
		return domain.ProcessedResult{}, fmt.Errorf("process: %w", domain.ErrUnknownSize)
	}

	var resp processResponse
	err := c.call(ctx, ActionProcess, func(ctx context.Context) error {
		body, err := json.Marshal(processBody{
			Filename:   req.SourceRef,
			Size:       req.SizeKey,
			Background: req.Background.WireValue(),
			Watermark:  req.Watermark,
		})
		if err != nil {
			return fmt.Errorf("marshal process request: %w", err)
		}
		if err := c.doJSON(ctx, http.MethodPost, "process", "application/json", bytes.NewReader(body), &resp); err != nil {
			return err
		}
		if strings.TrimSpace(resp.ProcessedFilename) == "" {
			return errors.New("process response missing processed_filename")
		}
		return nil
	})
	if err != nil {
		return domain.ProcessedResult{}, domain.Wrap(domain.ErrProcessing, "process", "Failed to process image. Please try again.", err)
	}

	return domain.ProcessedResult{
		Filename: resp.ProcessedFilename,
		Path:     resp.ProcessedFilepath,
		Size: domain.SizeSpec{
			Key:    req.SizeKey,
			Name:   resp.Size.Name,
			Width:  resp.Size.Width,
			Height: resp.Size.Height,
		},
	}, nil
}

func (c *Client) RequestMultiCopyOutput(ctx context.Context, refs []string, copies int) (string, error) {
	if !domain.ValidCopies(copies) {
		return "", fmt.Errorf("%w: %d", domain.ErrInvalidCopies, copies)
	}
	cleaned := make([]string, 0, len(refs))
	for _, ref := range refs {
		if ref = strings.TrimSpace(ref); ref != "" {
			cleaned = append(cleaned, ref)
		}
	}
	if len(cleaned) == 0 {
		return "", fmt.Errorf("output sheet: %w", domain.ErrEmptyReference)
	}

	var resp outputResponse
	err := c.call(ctx, ActionOutput, func(ctx context.Context) error {
		body, err := json.Marshal(outputBody{Filenames: cleaned, Copies: copies})
		if err != nil {
			return fmt.Errorf("marshal output request: %w", err)
		}
		if err := c.doJSON(ctx, http.MethodPost, "download-pdf", "application/json", bytes.NewReader(body), &resp); err != nil {
			return err
		}
		if strings.TrimSpace(resp.PDFFilename) == "" {
			return errors.New("output response missing pdf_filename")
		}
		return nil
	})
	if err != nil {
		return "", domain.Wrap(domain.ErrOutputGeneration, "output sheet", "Failed to generate PDF. Please try again.", err)
	}
	return resp.PDFFilename, nil
}

// Download fetches the raw bytes of an uploaded, processed, or composed artifact.
func (c *Client) Download(ctx context.Context, name string) ([]byte, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("download: %w", domain.ErrEmptyReference)
	}

	var data []byte
	err := c.call(ctx, ActionDownload, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("download", url.PathEscape(name)), nil)
		if err != nil {
			return fmt.Errorf("build download request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return classifyStatus(resp)
		}
		data, err = io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
		if err != nil {
			return fmt.Errorf("read download body: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", name, err)
	}
	return data, nil
}

func (c *Client) call(ctx context.Context, action Action, fn func(context.Context) error) error {
	startedAt := time.Now()
	ctx, span := c.tracer.Start(ctx, "processing."+string(action), trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(attribute.String("processing.action", string(action)))
	defer span.End()

	err := fn(ctx)

	outcome := "success"
	if err != nil {
		outcome = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, string(action)+" failed")
		c.logger.Warn().Err(err).Str("action", string(action)).Msg("processing call failed")
	} else {
		span.SetStatus(codes.Ok, string(action))
		c.logger.Debug().Str("action", string(action)).Dur("elapsed", time.Since(startedAt)).Msg("processing call completed")
	}
	c.metrics.requestTotal.WithLabelValues(string(action), outcome).Inc()
	c.metrics.requestDuration.WithLabelValues(string(action)).Observe(time.Since(startedAt).Seconds())
	return err
}

func (c *Client) doJSON(ctx context.Context, method, route, contentType string, body io.Reader, into any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(route), body)
	if err != nil {
		return fmt.Errorf("build %s request: %w", route, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return classifyStatus(resp)
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxJSONBytes)).Decode(into); err != nil {
		return fmt.Errorf("decode %s response: %w", route, err)
	}
	return nil
}

func (c *Client) endpoint(parts ...string) string {
	return c.baseURL + c.prefix + "/" + strings.Join(parts, "/")
}

func multipartBody(name, contentType string, data []byte) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if strings.TrimSpace(name) == "" {
		name = "photo.jpg"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, path.Base(name)))
	header.Set("Content-Type", contentType)
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart part: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", fmt.Errorf("write multipart part: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func classifyStatus(resp *http.Response) error {
	var payload struct {
		Error string `json:"error"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if err := json.Unmarshal(raw, &payload); err == nil && strings.TrimSpace(payload.Error) != "" {
		return fmt.Errorf("service returned status=%d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("service returned status=%d", resp.StatusCode)
}
