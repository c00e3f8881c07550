package remote

import (
	"bytes"
	"context"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/angelmondragon/posdesk/pkg/config"
	"github.com/angelmondragon/posdesk/pkg/errors"
	"github.com/angelmondragon/posdesk/pkg/logger"
)

// ErrUnreachable marks failures where no HTTP response was received.
var ErrUnreachable = stdErrors.New("upstream unreachable")

const (
	HeaderIdempotencyKey = "Idempotency-Key"
	maxErrorBody         = 2048
)

// StatusError carries a non-2xx upstream response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream responded %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream responded %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

// Request describes one upstream call.
type Request struct {
	Method         string
	Path           string
	Query          url.Values
	Body           any
	IdempotencyKey string
}

// Client talks JSON to the upstream POS API.
type Client struct {
	base        *url.URL
	http        *http.Client
	token       string
	healthPath  string
	logg        *logger.Logger
	readRetries uint64
	retryBase   time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithReadRetries sets how many times idempotent GETs are retried on
// retryable failures.
func WithReadRetries(n uint64, base time.Duration) Option {
	return func(c *Client) {
		c.readRetries = n
		c.retryBase = base
	}
}

func New(cfg config.RemoteConfig, logg *logger.Logger, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url %q", cfg.BaseURL)
	}
	if logg == nil {
		logg = logger.Nop()
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = "/health/live"
	}
	c := &Client{
		base:        base,
		http:        &http.Client{Timeout: timeout},
		token:       cfg.APIToken,
		healthPath:  healthPath,
		logg:        logg,
		readRetries: 2,
		retryBase:   200 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get fetches path and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

// Post sends body to path and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body any, idempotencyKey string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Body: body, IdempotencyKey: idempotencyKey}, out)
}

// Put replaces the resource at path.
func (c *Client) Put(ctx context.Context, path string, body any, idempotencyKey string, out any) error {
	return c.Do(ctx, Request{Method: http.MethodPut, Path: path, Body: body, IdempotencyKey: idempotencyKey}, out)
}

// Delete removes the resource at path. A 404 counts as success.
func (c *Client) Delete(ctx context.Context, path string, idempotencyKey string) error {
	err := c.Do(ctx, Request{Method: http.MethodDelete, Path: path, IdempotencyKey: idempotencyKey}, nil)
	if errors.IsCode(err, errors.CodeNotFound) {
		return nil
	}
	return err
}

// Health probes the upstream liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.once(ctx, Request{Method: http.MethodGet, Path: c.healthPath}, nil)
}

// Do executes req. GETs are retried with exponential backoff while the
// failure is retryable.
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	if req.Method != http.MethodGet || c.readRetries == 0 {
		return c.once(ctx, req, out)
	}
	backoff := retry.WithMaxRetries(c.readRetries, retry.NewExponential(c.retryBase))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.once(ctx, req, out)
		if err != nil && errors.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) once(ctx context.Context, req Request, out any) error {
	httpReq, err := c.newRequest(ctx, req)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return errors.Wrap(errors.CodeDependency, fmt.Errorf("%w: %v", ErrUnreachable, err), fmt.Sprintf("%s %s", req.Method, req.Path))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classify(req, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))})
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(errors.CodeDependency, fmt.Errorf("%w: %v", ErrUnreachable, err), "read upstream response")
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapEnvelope(raw), out); err != nil {
		return errors.Wrap(errors.CodeDependency, err, "decode upstream response")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, req Request) (*http.Request, error) {
	target := *c.base
	target.Path = strings.TrimRight(c.base.Path, "/") + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		target.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return nil, errors.Wrap(errors.CodeValidation, err, "encode upstream request")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, errors.Wrap(errors.CodeInternal, err, "build upstream request")
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}
	if req.IdempotencyKey != "" {
		httpReq.Header.Set(HeaderIdempotencyKey, req.IdempotencyKey)
	}
	return httpReq, nil
}

func classify(req Request, statusErr *StatusError) error {
	msg := fmt.Sprintf("%s %s", req.Method, req.Path)
	switch {
	case statusErr.StatusCode == http.StatusNotFound || statusErr.StatusCode == http.StatusGone:
		return errors.Wrap(errors.CodeNotFound, statusErr, msg)
	case statusErr.StatusCode == http.StatusConflict:
		return errors.Wrap(errors.CodeConflict, statusErr, msg)
	case statusErr.StatusCode == http.StatusBadRequest || statusErr.StatusCode == http.StatusUnprocessableEntity:
		return errors.Wrap(errors.CodeValidation, statusErr, msg)
	default:
		// 5xx, 429 and auth failures may clear up on their own.
		return errors.Wrap(errors.CodeDependency, statusErr, msg)
	}
}

// unwrapEnvelope returns the "data" member of a {"data": ...} envelope, or
// raw unchanged.
func unwrapEnvelope(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return raw
	}
	data, ok := env["data"]
	if !ok {
		return raw
	}
	for key := range env {
		if key != "data" && key != "meta" && key != "pagination" {
			return raw
		}
	}
	return data
}

// IsUnreachable reports whether err means no response arrived at all.
func IsUnreachable(err error) bool {
	return stdErrors.Is(err, ErrUnreachable)
}

// StatusOf returns the upstream HTTP status carried by err, or zero.
func StatusOf(err error) int {
	var statusErr *StatusError
	if stdErrors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
