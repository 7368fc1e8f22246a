package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Request is the interface for building and executing HTTP requests.
type Request interface {
	Get(ctx context.Context, url string) (*Response, error)
	Post(ctx context.Context, url string) (*Response, error)

	SetBody(body interface{}) Request
	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	SetResult(result interface{}) Request
}

// Response wraps http.Response with additional helpers.
type Response struct {
	*http.Response
	body   []byte
	result interface{}
}

// Body returns the response body as bytes.
func (r *Response) Body() []byte {
	return r.body
}

// String returns the response body as string.
func (r *Response) String() string {
	return string(r.body)
}

// IsError returns true if the status code indicates an error (>= 400).
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// IsSuccess returns true if the status code indicates success (< 400).
func (r *Response) IsSuccess() bool {
	return r.StatusCode < 400
}

// Result returns the unmarshaled result.
func (r *Response) Result() interface{} {
	return r.result
}

// requestBuilder implements Request.
type requestBuilder struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	providerName   string
	tracer         trace.Tracer
	baseURL        string
	headers        map[string]string
	queryParams    map[string]string
	body           interface{}
	result         interface{}
}

// Get executes a GET request.
func (r *requestBuilder) Get(ctx context.Context, target string) (*Response, error) {
	return r.execute(ctx, http.MethodGet, target)
}

// Post executes a POST request.
func (r *requestBuilder) Post(ctx context.Context, target string) (*Response, error) {
	return r.execute(ctx, http.MethodPost, target)
}

// SetBody sets the request body (JSON encoded when not []byte).
func (r *requestBuilder) SetBody(body interface{}) Request {
	r.body = body
	return r
}

// SetHeader sets a single header.
func (r *requestBuilder) SetHeader(key, value string) Request {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

// SetQueryParam sets a single query parameter.
func (r *requestBuilder) SetQueryParam(key, value string) Request {
	if r.queryParams == nil {
		r.queryParams = make(map[string]string)
	}
	r.queryParams[key] = value
	return r
}

// SetResult sets a destination the response body is JSON-decoded into.
func (r *requestBuilder) SetResult(result interface{}) Request {
	r.result = result
	return r
}

func (r *requestBuilder) execute(ctx context.Context, method, target string) (*Response, error) {
	fullURL := target
	if r.baseURL != "" && !strings.HasPrefix(target, "http") {
		fullURL = strings.TrimSuffix(r.baseURL, "/") + "/" + strings.TrimPrefix(target, "/")
	}

	if len(r.queryParams) > 0 {
		parsed, err := url.Parse(fullURL)
		if err != nil {
			return nil, fmt.Errorf("invalid url %q: %w", fullURL, err)
		}
		q := parsed.Query()
		for k, v := range r.queryParams {
			q.Set(k, v)
		}
		parsed.RawQuery = q.Encode()
		fullURL = parsed.String()
	}

	var bodyReader io.Reader
	if r.body != nil {
		switch b := r.body.(type) {
		case []byte:
			bodyReader = bytes.NewReader(b)
		default:
			encoded, err := json.Marshal(b)
			if err != nil {
				return nil, fmt.Errorf("encode request body: %w", err)
			}
			bodyReader = bytes.NewReader(encoded)
			r.SetHeader("Content-Type", "application/json")
		}
	}

	ctx, span := r.tracer.Start(ctx, fmt.Sprintf("http.%s", strings.ToLower(method)),
		trace.WithAttributes(
			attribute.String("http.url", fullURL),
			attribute.String("provider", r.providerName),
		),
	)
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)

	attrs := metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("provider", r.providerName),
	)
	r.requestCounter.Add(ctx, 1, attrs)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("read response body: %w", err)
	}

	response := &Response{Response: resp, body: body, result: r.result}

	if r.result != nil && response.IsSuccess() && len(body) > 0 {
		if err := json.Unmarshal(body, r.result); err != nil {
			span.RecordError(err)
			return response, fmt.Errorf("decode response body: %w", err)
		}
	}

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	span.SetStatus(codes.Ok, "")
	return response, nil
}
