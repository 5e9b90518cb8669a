package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"dashgrab/internal/logger"

	"golang.org/x/time/rate"
)

const chunkSize = 32 * 1024

var (
	// ErrExhausted is matched by every error returned after the retry budget ran out.
	ErrExhausted = errors.New("retry budget exhausted")
	// ErrTimeout marks an attempt that received no data within the policy timeout.
	ErrTimeout = errors.New("attempt timed out")
)

// Policy bounds how a single request is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts int
	// Delay separates consecutive attempts. There is no backoff or jitter.
	Delay time.Duration
	// Timeout applies to the response headers and to every individual body read.
	Timeout time.Duration
}

// DefaultPolicy returns 3 attempts, 3 seconds apart, with a 10 second timeout.
func DefaultPolicy() Policy {
	return Policy{Attempts: 3, Delay: 3 * time.Second, Timeout: 10 * time.Second}
}

// Attempt describes a failed attempt. Final is set when no retry follows.
type Attempt struct {
	URL    string
	Number int
	Max    int
	Err    error
	Final  bool
}

// Observer receives failed-attempt events, e.g. for progress reporting.
type Observer func(Attempt)

// Sink receives a response body. Reset is called before every attempt's body
// is copied so a retry restarts from byte 0. contentLength is -1 when unknown.
type Sink interface {
	io.Writer
	Reset(contentLength int64) error
}

// StatusError is returned for a response other than 200 OK.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received status code %d from %s", e.StatusCode, e.URL)
}

// ExhaustedError is returned once every attempt for URL failed. Err is the last failure.
type ExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed to download %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrExhausted, e.Err}
}

// permanentError marks a failure that retrying cannot fix, such as a
// malformed URL or a sink write error.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Options configures a Fetcher.
type Options struct {
	Policy    Policy
	UserAgent string
	// RequestsPerSecond paces requests across the Fetcher. 0 means unlimited.
	RequestsPerSecond float64
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Fetcher performs HTTP GETs with a bounded retry policy.
// It is safe for concurrent use; every call has its own retry budget.
type Fetcher struct {
	httpClient *http.Client
	logger     logger.Logger
	policy     Policy
	userAgent  string
	limiter    *rate.Limiter
}

// New creates a Fetcher. A zero Policy selects DefaultPolicy.
func New(log logger.Logger, opts Options) *Fetcher {
	policy := opts.Policy
	if policy == (Policy{}) {
		policy = DefaultPolicy()
	}
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	if policy.Timeout <= 0 {
		policy.Timeout = DefaultPolicy().Timeout
	}

	transport := opts.Transport
	if transport == nil {
		transport = &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: policy.Timeout}).DialContext,
			TLSHandshakeTimeout: policy.Timeout,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}

	return &Fetcher{
		httpClient: &http.Client{Transport: transport},
		logger:     log,
		policy:     policy,
		userAgent:  opts.UserAgent,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

// Policy returns the retry policy in effect.
func (f *Fetcher) Policy() Policy {
	return f.policy
}

// Fetch downloads the whole body of url into memory.
func (f *Fetcher) Fetch(ctx context.Context, url string, observe Observer) ([]byte, error) {
	var buf bufferSink
	if err := f.FetchTo(ctx, url, &buf, observe); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FetchTo streams the body of url into sink, retrying failed attempts.
func (f *Fetcher) FetchTo(ctx context.Context, url string, sink Sink, observe Observer) error {
	var lastErr error

	for attempt := 1; attempt <= f.policy.Attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, f.policy.Delay); err != nil {
				return fmt.Errorf("fetch %s: %w", url, err)
			}
		}

		f.logger.Debugf("Downloading %s (Attempt %d/%d)", url, attempt, f.policy.Attempts)
		lastErr = f.attempt(ctx, url, sink)
		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}
		var pe *permanentError
		if errors.As(lastErr, &pe) {
			return fmt.Errorf("fetch %s: %w", url, pe.err)
		}

		final := attempt == f.policy.Attempts
		f.logger.Warnf("download attempt %d/%d failed for %s: %v", attempt, f.policy.Attempts, url, lastErr)
		if observe != nil {
			observe(Attempt{URL: url, Number: attempt, Max: f.policy.Attempts, Err: lastErr, Final: final})
		}
	}

	return &ExhaustedError{URL: url, Attempts: f.policy.Attempts, Err: lastErr}
}

func (f *Fetcher) attempt(ctx context.Context, url string, sink Sink) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return err
	}

	reqCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return &permanentError{err: fmt.Errorf("failed to create request: %w", err)}
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	// Armed until the first byte; every body read re-arms it.
	timer := time.AfterFunc(f.policy.Timeout, func() { cancel(ErrTimeout) })
	defer timer.Stop()

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return f.classify(reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	if err := sink.Reset(resp.ContentLength); err != nil {
		return &permanentError{err: fmt.Errorf("reset sink: %w", err)}
	}

	body := &idleReader{r: resp.Body, timer: timer, timeout: f.policy.Timeout}
	buf := make([]byte, chunkSize)
	if _, err := io.CopyBuffer(sinkWriter{sink}, body, buf); err != nil {
		var pe *permanentError
		if errors.As(err, &pe) {
			return pe
		}
		return fmt.Errorf("failed while reading body: %w", f.classify(reqCtx, err))
	}
	return nil
}

// classify marks err with ErrTimeout when the attempt timer fired or the
// transport gave up on its own deadline.
func (f *Fetcher) classify(reqCtx context.Context, err error) error {
	if errors.Is(context.Cause(reqCtx), ErrTimeout) {
		return fmt.Errorf("%w after %s: %v", ErrTimeout, f.policy.Timeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return err
}

// idleReader re-arms the attempt timer on every Read so slow but steady
// bodies are never cut off by a wall-clock cap.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	ir.timer.Reset(ir.timeout)
	return ir.r.Read(p)
}

type sinkWriter struct {
	s Sink
}

func (w sinkWriter) Write(p []byte) (int, error) {
	n, err := w.s.Write(p)
	if err != nil {
		return n, &permanentError{err: fmt.Errorf("write sink: %w", err)}
	}
	return n, nil
}

type bufferSink struct {
	bytes.Buffer
}

func (b *bufferSink) Reset(contentLength int64) error {
	b.Buffer.Reset()
	if contentLength > 0 && contentLength <= 64<<20 {
		b.Grow(int(contentLength))
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
