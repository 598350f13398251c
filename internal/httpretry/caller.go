// Package httpretry sends HTTP requests with classified retry and
// exponential backoff.
package httpretry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
)

const (
	// DefaultMaxAttempts is the attempt budget used when a Call leaves it unset.
	DefaultMaxAttempts = 3

	// DefaultBaseDelay is the first backoff delay used when a Call leaves it unset.
	DefaultBaseDelay = 200 * time.Millisecond

	// DefaultHTTPTimeout bounds a single attempt.
	DefaultHTTPTimeout = 30 * time.Second

	// maxBackoffShift keeps base<<attempt from overflowing.
	maxBackoffShift = 30
)

// Form is a body that is already application/x-www-form-urlencoded.
type Form string

// Call describes one logical request and its retry budget.
type Call struct {
	Method string
	URI    string

	// Body is url.Values or Form for a form post, nil for no body, and any
	// other value is sent as JSON.
	Body any

	MaxAttempts int
	BaseDelay   time.Duration
}

// Caller sends Calls through a shared http.Client.
type Caller struct {
	httpClient *http.Client
	logger     *slog.Logger
}

// Option configures a Caller.
type Option func(*Caller)

// WithHTTPClient sets the client used for every attempt.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Caller) {
		c.httpClient = httpClient
	}
}

// WithLogger enables one warning per retry.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Caller) {
		c.logger = logger
	}
}

// New creates a Caller. Without WithHTTPClient it uses a pooled client from
// go-cleanhttp with DefaultHTTPTimeout.
func New(opts ...Option) *Caller {
	c := &Caller{}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = cleanhttp.DefaultPooledClient()
		c.httpClient.Timeout = DefaultHTTPTimeout
	}
	return c
}

// Backoff returns the wait before the retry that follows attempt (1-indexed):
// base * 2^(attempt-1), without jitter.
func Backoff(base time.Duration, attempt int) time.Duration {
	shift := attempt - 1
	if shift < 0 {
		shift = 0
	}
	if shift > maxBackoffShift {
		shift = maxBackoffShift
	}
	return base << shift
}

// SendWithRetry performs call, retrying transient failures up to
// call.MaxAttempts times in total.
//
// A non-retryable response is returned with a nil error whatever its status;
// the caller owns its body. When attempts run out the last failure is
// returned: the transport error itself, or a *StatusError for a retryable
// status. Cancelling ctx stops the loop and returns ctx.Err().
func (c *Caller) SendWithRetry(ctx context.Context, call Call) (*http.Response, error) {
	body, contentType, err := encodeBody(call.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request body: %w", err)
	}

	var rawBody any
	if body != nil {
		rawBody = body
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, call.Method, call.URI, rawBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	maxAttempts := call.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = DefaultMaxAttempts
	}
	baseDelay := call.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}

	rc := &retryablehttp.Client{
		HTTPClient:   c.httpClient,
		RetryWaitMin: baseDelay,
		RetryMax:     maxAttempts - 1,
		CheckRetry:   checkRetry,
		Backoff: func(min, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
			// attemptNum counts from zero.
			return Backoff(min, attemptNum+1)
		},
		ErrorHandler: errorHandler(call.URI),
	}
	if c.logger != nil {
		logger := c.logger
		rc.RequestLogHook = func(_ retryablehttp.Logger, r *http.Request, retry int) {
			if retry == 0 {
				return
			}
			logger.Warn("Retrying HTTP request",
				"attempt", retry+1,
				"method", r.Method,
				"uri", call.URI)
		}
	}

	return rc.Do(req)
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if err != nil {
		return IsRetryable(err), nil
	}
	return IsRetryableStatus(resp.StatusCode), nil
}

func errorHandler(uri string) retryablehttp.ErrorHandler {
	return func(resp *http.Response, err error, _ int) (*http.Response, error) {
		if err != nil {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, err
		}
		if resp != nil && IsRetryableStatus(resp.StatusCode) {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			return nil, &StatusError{StatusCode: resp.StatusCode, URI: uri}
		}
		return resp, nil
	}
}

func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case url.Values:
		return []byte(b.Encode()), "application/x-www-form-urlencoded", nil
	case Form:
		return []byte(b), "application/x-www-form-urlencoded", nil
	default:
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/json", nil
	}
}
