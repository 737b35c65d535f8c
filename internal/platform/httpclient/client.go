package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/url"
	"strconv"
	"time"

	"dynsched/internal/shared"
	"dynsched/pkg/retry"
)

// maxBodyCapture bounds how much of a response body is kept.
const maxBodyCapture = 64 << 10

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     stdhttp.Header
	Body       []byte
}

// StatusError reports a non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	RetryAfter time.Duration
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.URL, e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch e.StatusCode {
	case stdhttp.StatusRequestTimeout, stdhttp.StatusMisdirectedRequest, stdhttp.StatusTooEarly,
		stdhttp.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// Client wraps http.Client with logging and retries.
type Client struct {
	hc          *stdhttp.Client
	log         *slog.Logger
	retry       retry.Config
	headers     map[string]string
	urlRedactor func(*url.URL) string
}

// Option configures Client.
type Option func(*Client)

// WithTimeout sets the per-attempt timeout.
func WithTimeout(t time.Duration) Option {
	return func(c *Client) {
		if t > 0 {
			c.hc.Timeout = t
		}
	}
}

// WithLogger sets logger used by client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithRetry sets the retry policy. MaxAttempts of 1 disables retries.
func WithRetry(cfg retry.Config) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithHeaders adds default headers to each request.
func WithHeaders(h map[string]string) Option {
	return func(c *Client) {
		for k, v := range h {
			c.headers[k] = v
		}
	}
}

// WithTransport sets custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// WithURLRedactor sets URL redactor for logs.
func WithURLRedactor(f func(*url.URL) string) Option {
	return func(c *Client) { c.urlRedactor = f }
}

// New creates configured Client.
func New(opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConnsPerHost = 16
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 10 * time.Second

	c := &Client{
		hc: &stdhttp.Client{
			Timeout:   15 * time.Second,
			Transport: tr,
		},
		log: slog.Default(),
		retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Jitter:       retry.JitterEqual,
		},
		headers: map[string]string{"User-Agent": "dynsched"},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Retryable classifies errors returned by a single attempt.
func Retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return retry.Transient(err)
}

// Do sends the request, retrying on transport failures and retryable
// statuses. body is replayed on each attempt. Non-2xx responses surface as
// *StatusError marked as a dependency failure.
func (c *Client) Do(ctx context.Context, method, rawURL string, body []byte, header stdhttp.Header) (*Response, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, shared.MarkKind(fmt.Errorf("parse url: %w", err), shared.KindValidation)
	}
	redacted := c.redactURL(u)

	cfg := c.retry
	userHook := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error, next time.Duration) {
		c.log.Warn("http request failed, retrying",
			"method", method, "url", redacted, "attempt", attempt, "delay", next, "err", err)
		if userHook != nil {
			userHook(attempt, err, next)
		}
	}

	var resp *Response
	err = retry.DoWithClassifier(ctx, cfg, func(ctx context.Context) error {
		r, err := c.once(ctx, method, u, body, header)
		if err != nil {
			return err
		}
		resp = r
		return nil
	}, Retryable)
	if err != nil {
		if shared.IsCanceled(err) || shared.IsTimeout(err) {
			return nil, err
		}
		return nil, shared.MarkKind(err, shared.KindDependencyFailure)
	}
	return resp, nil
}

// PostJSON posts an already encoded JSON payload.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload []byte, header stdhttp.Header) (*Response, error) {
	h := header.Clone()
	if h == nil {
		h = stdhttp.Header{}
	}
	h.Set("Content-Type", "application/json")
	return c.Do(ctx, stdhttp.MethodPost, rawURL, payload, h)
}

func (c *Client) once(ctx context.Context, method string, u *url.URL, body []byte, header stdhttp.Header) (*Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := stdhttp.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	res, err := c.hc.Do(req)
	if err != nil {
		c.log.Debug("http request error", "method", method, "url", c.redactURL(u), "err", err)
		return nil, err
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxBodyCapture))
	if err != nil {
		return nil, err
	}
	_, _ = io.Copy(io.Discard, res.Body)

	c.log.Debug("http request",
		"method", method,
		"url", c.redactURL(u),
		"status", res.StatusCode,
		"duration", time.Since(start),
	)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &StatusError{
			Method:     method,
			URL:        c.redactURL(u),
			StatusCode: res.StatusCode,
			RetryAfter: retryAfter(res.Header.Get("Retry-After")),
			Body:       data,
		}
	}
	return &Response{StatusCode: res.StatusCode, Header: res.Header, Body: data}, nil
}

func (c *Client) redactURL(u *url.URL) string {
	if c.urlRedactor != nil {
		return c.urlRedactor(u)
	}
	return u.Redacted()
}

// retryAfter parses Retry-After header value.
func retryAfter(h string) time.Duration {
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := stdhttp.ParseTime(h); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
