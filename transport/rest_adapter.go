package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-contracts/core"
	goerrors "github.com/goliatone/go-errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const KindREST = "rest"

const tracerName = "github.com/goliatone/go-contracts/transport"

const defaultRESTClientTimeout = 30 * time.Second
const defaultRESTResponseBodyLimit int64 = 10 << 20 // 10 MiB

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// RESTAdapter issues plain HTTP calls against the dataspace and commerce
// APIs. A Limiter, when set, throttles every outgoing request.
type RESTAdapter struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
	Limiter              *rate.Limiter
	Tracer               trace.Tracer
}

type RESTOption func(*RESTAdapter)

func WithDefaultHeader(key string, value string) RESTOption {
	return func(a *RESTAdapter) {
		if strings.TrimSpace(key) != "" {
			a.DefaultHeaders[strings.TrimSpace(key)] = value
		}
	}
}

// WithRateLimit allows at most requestsPerSecond calls with the given burst.
// A non-positive rate disables throttling.
func WithRateLimit(requestsPerSecond float64, burst int) RESTOption {
	return func(a *RESTAdapter) {
		if requestsPerSecond <= 0 {
			a.Limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		a.Limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

func WithTracer(tracer trace.Tracer) RESTOption {
	return func(a *RESTAdapter) {
		if tracer != nil {
			a.Tracer = tracer
		}
	}
}

func WithMaxResponseBodyBytes(limit int64) RESTOption {
	return func(a *RESTAdapter) {
		a.MaxResponseBodyBytes = limit
	}
}

func NewRESTAdapter(client HTTPDoer, opts ...RESTOption) *RESTAdapter {
	if client == nil {
		client = &http.Client{Timeout: defaultRESTClientTimeout}
	}
	adapter := &RESTAdapter{
		Client:               client,
		DefaultHeaders:       map[string]string{},
		MaxResponseBodyBytes: defaultRESTResponseBodyLimit,
		Tracer:               otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(adapter)
		}
	}
	return adapter
}

func (*RESTAdapter) Kind() string {
	return KindREST
}

func (a *RESTAdapter) Do(ctx context.Context, req core.TransportRequest) (resp core.TransportResponse, err error) {
	if a == nil || a.Client == nil {
		return core.TransportResponse{}, transportError(
			"transport: rest adapter requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			map[string]any{"adapter": KindREST},
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.TrimSpace(strings.ToUpper(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	target, err := requestURL(req)
	if err != nil {
		return core.TransportResponse{}, err
	}
	meta := map[string]any{"adapter": KindREST, "method": method, "url": target}

	ctx, span := a.tracer().Start(ctx, "http "+method, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", target),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		if resp.StatusCode >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		}
	}()

	if a.Limiter != nil {
		if waitErr := a.Limiter.Wait(ctx); waitErr != nil {
			return core.TransportResponse{}, transportWrapError(
				waitErr,
				goerrors.CategoryRateLimit,
				"transport: rate limiter wait aborted",
				http.StatusTooManyRequests,
				meta,
			)
		}
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(req.Body))
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			http.StatusBadRequest,
			meta,
		)
	}
	setHeaders(httpReq.Header, a.DefaultHeaders)
	setHeaders(httpReq.Header, req.Headers)
	if key := strings.TrimSpace(req.Idempotency); key != "" {
		httpReq.Header.Set("Idempotency-Key", key)
	}

	startedAt := time.Now().UTC()
	httpRes, err := a.Client.Do(httpReq)
	if err != nil {
		return core.TransportResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			http.StatusBadGateway,
			meta,
		)
	}
	defer httpRes.Body.Close()

	body, err := readBody(httpRes, resolveResponseBodyLimit(req.MaxResponseBodyBytes, a.MaxResponseBodyBytes))
	if err != nil {
		return core.TransportResponse{}, err
	}
	return core.TransportResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
		Metadata: map[string]any{
			"duration_ms": time.Since(startedAt).Milliseconds(),
			"kind":        KindREST,
		},
	}, nil
}

// requestURL merges req.Query into the query string already present on
// req.URL.
func requestURL(req core.TransportRequest) (string, error) {
	raw := strings.TrimSpace(req.URL)
	if raw == "" {
		return "", transportError(
			"transport: request url is required",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST},
		)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request url",
			http.StatusBadRequest,
			map[string]any{"adapter": KindREST, "url": raw},
		)
	}
	if len(req.Query) > 0 {
		values := parsed.Query()
		for key, value := range req.Query {
			if key = strings.TrimSpace(key); key != "" {
				values.Set(key, strings.TrimSpace(value))
			}
		}
		parsed.RawQuery = values.Encode()
	}
	return parsed.String(), nil
}

func setHeaders(target http.Header, headers map[string]string) {
	for key, value := range headers {
		if key = strings.TrimSpace(key); key != "" {
			target.Set(key, strings.TrimSpace(value))
		}
	}
}

// readBody reads at most limit bytes and fails when the body is longer.
func readBody(res *http.Response, limit int64) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(res.Body, limit+1))
	if err != nil {
		return nil, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			http.StatusBadGateway,
			map[string]any{"adapter": KindREST, "status_code": res.StatusCode},
		)
	}
	if int64(len(body)) > limit {
		return nil, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", limit),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{
				"adapter":        KindREST,
				"status_code":    res.StatusCode,
				"response_limit": limit,
			},
		)
	}
	return body, nil
}

func (a *RESTAdapter) tracer() trace.Tracer {
	if a.Tracer != nil {
		return a.Tracer
	}
	return otel.Tracer(tracerName)
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

func resolveResponseBodyLimit(requestLimit int64, adapterLimit int64) int64 {
	if requestLimit > 0 {
		return requestLimit
	}
	if adapterLimit > 0 {
		return adapterLimit
	}
	return defaultRESTResponseBodyLimit
}

var _ core.TransportAdapter = (*RESTAdapter)(nil)
