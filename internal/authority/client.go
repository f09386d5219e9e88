package authority

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/smartinvoice/internal/config"
	obsmetrics "github.com/smallbiznis/smartinvoice/internal/observability/metrics"
	"github.com/smallbiznis/smartinvoice/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	EndpointInitialize = "/initializer/selectInitInfo"
	EndpointSales      = "/sales/selectSaleInfo"
	EndpointPurchases  = "/purchases/selectPurchaseInfo"
	EndpointStock      = "/stock/selectStockInfo"

	HeaderAPIKey = "X-API-KEY"

	defaultTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second
	maxBodyBytes   = 4 << 20
)

var (
	ErrEmptyBaseURL     = errors.New("empty_authority_base_url")
	ErrResponseTooLarge = errors.New("authority_response_too_large")
)

// Request is a single POST to the authority API. Body must already be encoded.
type Request struct {
	Endpoint string
	Body     []byte
	APIKey   string
	Headers  map[string]string
}

type Response struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

// Success reports a 2xx status.
func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= http.StatusOK && r.StatusCode < http.StatusMultipleChoices
}

// Client talks to the smart-invoice API over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
	metrics    *obsmetrics.SubmissionMetrics
	tracer     trace.Tracer
}

type Params struct {
	fx.In

	Config config.Config
	Log    *zap.Logger
}

func NewClient(p Params) (*Client, error) {
	return New(p.Config.Authority, p.Log, nil)
}

// New builds a client. A nil httpClient gets one with the configured timeout.
func New(cfg config.AuthorityConfig, log *zap.Logger, httpClient *http.Client) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		log:        log.Named("authority.client"),
		metrics:    obsmetrics.Submission(),
		tracer:     otel.Tracer("smartinvoice/authority"),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Post sends the request and returns the raw response. Non-2xx statuses are not errors;
// only transport failures are.
func (c *Client) Post(ctx context.Context, req Request) (*Response, error) {
	endpoint := "/" + strings.TrimLeft(strings.TrimSpace(req.Endpoint), "/")

	ctx, span := c.tracer.Start(ctx, "zra "+endpoint, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(req.Body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if apiKey := strings.TrimSpace(req.APIKey); apiKey != "" {
		httpReq.Header.Set(HeaderAPIKey, apiKey)
	}
	for name, value := range req.Headers {
		httpReq.Header.Set(name, value)
	}
	tracing.InjectContext(ctx, propagation.HeaderCarrier(httpReq.Header))

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.IncTransportError(endpoint)
		if safeErr := tracing.SafeError(err); safeErr != nil {
			span.RecordError(safeErr)
		}
		span.SetStatus(codes.Error, "transport error")
		return nil, fmt.Errorf("post %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		c.metrics.IncTransportError(endpoint)
		span.SetStatus(codes.Error, "read body")
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if len(body) > maxBodyBytes {
		c.metrics.IncTransportError(endpoint)
		span.SetStatus(codes.Error, "response too large")
		return nil, fmt.Errorf("read %s response: %w (limit %d bytes, status %d)", endpoint, ErrResponseTooLarge, maxBodyBytes, resp.StatusCode)
	}

	elapsed := time.Since(start)
	c.metrics.ObserveRequest(endpoint, resp.StatusCode, elapsed)
	span.SetAttributes(tracing.SafeAttributes(
		attribute.String("zra.endpoint", endpoint),
		attribute.Int("http.status_code", resp.StatusCode),
	)...)
	if resp.StatusCode >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(resp.StatusCode))
	}

	c.log.Debug("authority response",
		zap.String("endpoint", endpoint),
		zap.Int("status_code", resp.StatusCode),
		zap.Int64("duration_ms", elapsed.Milliseconds()),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Header:     resp.Header.Clone(),
	}, nil
}

// Ping sends a GET to the base URL and returns the status code.
func (c *Client) Ping(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	ctx, span := c.tracer.Start(ctx, "zra ping", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return 0, err
	}
	httpReq.Header.Set("Accept", "application/json")
	tracing.InjectContext(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.IncTransportError("/")
		span.SetStatus(codes.Error, "transport error")
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, nil
}
