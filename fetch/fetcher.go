// Package fetch downloads artifacts from remote Maven repositories into a local
// repository and notifies listeners once each download completes.
package fetch

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenk/backoff"
	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/rs/dnscache"
)

var (
	ErrNotFound     = errors.New("artifact not found")
	ErrRateLimited  = errors.New("rate limited by upstream")
	ErrUpstreamDown = errors.New("upstream repository unavailable")
)

// DefaultUserAgent is sent when no other agent is configured.
const DefaultUserAgent = "snapshots/1.0"

// Artifact contains the response from fetching an upstream file.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64 // -1 if unknown
	ContentType string
	ETag        string
}

// FetcherInterface defines the interface for artifact fetchers.
type FetcherInterface interface {
	Fetch(ctx context.Context, url string) (*Artifact, error)
	Head(ctx context.Context, url string) (size int64, contentType string, err error)
}

// AuthFunc returns the header authenticating a request to url. Empty
// strings send the request anonymously.
type AuthFunc func(url string) (headerName, headerValue string)

// BasicAuth returns an AuthFunc presenting username and password to URLs
// under baseURL only. It returns nil when username is empty.
func BasicAuth(baseURL, username, password string) AuthFunc {
	if username == "" {
		return nil
	}
	prefix := strings.TrimSuffix(baseURL, "/") + "/"
	value := "Basic " + base64.StdEncoding.EncodeToString([]byte(username+":"+password))
	return func(url string) (string, string) {
		if !strings.HasPrefix(url, prefix) {
			return "", ""
		}
		return "Authorization", value
	}
}

// Fetcher issues requests against remote repositories. Rate limited and
// 5xx responses are retried on an exponential schedule; anything else is
// returned to the caller straight away.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	timeout    time.Duration
	auth       AuthFunc
	logger     core.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header. Empty keeps the default.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithMaxRetries sets how many times a retryable failure is retried.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = max(n, 0)
	}
}

// WithBaseDelay sets the first retry delay; later delays double.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithTimeout bounds a single request, body included. Zero or negative
// keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithAuthFunc sets the source of authentication headers. Nil disables
// authentication.
func WithAuthFunc(fn AuthFunc) Option {
	return func(f *Fetcher) {
		f.auth = fn
	}
}

// WithLogger sets the sink for retry traces.
func WithLogger(l core.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// NewFetcher creates a Fetcher whose connections resolve hosts through a
// DNS cache refreshed every five minutes.
func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		userAgent:  DefaultUserAgent,
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
		timeout:    5 * time.Minute,
		logger:     core.NopLogger,
	}
	for _, opt := range opts {
		opt(f)
	}
	f.client = &http.Client{Timeout: f.timeout, Transport: cachingTransport()}
	return f
}

func cachingTransport() *http.Transport {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}
	dial := func(ctx context.Context, network, addr string) (net.Conn, error) {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return nil, err
		}
		ips, err := resolver.LookupHost(ctx, host)
		if err != nil {
			return nil, err
		}
		var lastErr error
		for _, ip := range ips {
			conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if err == nil {
				return conn, nil
			}
			lastErr = err
		}
		return nil, fmt.Errorf("dialing %s: %w", host, lastErr)
	}

	return &http.Transport{
		DialContext:           dial,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
}

// Fetch downloads the file at url.
// The caller must close the returned Artifact.Body when done.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Artifact, error) {
	var resp *http.Response
	err := f.retry(ctx, url, func() (err error) {
		resp, err = f.send(ctx, http.MethodGet, url)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &Artifact{
		Body:        resp.Body,
		Size:        contentLength(resp),
		ContentType: resp.Header.Get("Content-Type"),
		ETag:        resp.Header.Get("ETag"),
	}, nil
}

// Head reports the size and type of the file at url without downloading it.
// Size is -1 when the repository does not announce one.
func (f *Fetcher) Head(ctx context.Context, url string) (size int64, contentType string, err error) {
	var resp *http.Response
	err = f.retry(ctx, url, func() (err error) {
		resp, err = f.send(ctx, http.MethodHead, url)
		return err
	})
	if err != nil {
		return 0, "", err
	}
	_ = resp.Body.Close()

	return contentLength(resp), resp.Header.Get("Content-Type"), nil
}

// retry runs op until it succeeds, fails permanently, or maxRetries
// retries have been spent.
func (f *Fetcher) retry(ctx context.Context, url string, op func() error) error {
	schedule := f.newBackOff()
	for attempt := 1; ; attempt++ {
		err := op()
		if err == nil || !retryable(err) || attempt > f.maxRetries {
			return err
		}

		delay := schedule.NextBackOff()
		f.logger.Debug("retrying fetch", "url", url, "attempt", attempt, "delay", delay.String(), "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown)
}

// newBackOff returns a retry schedule doubling from baseDelay with 10% jitter.
func (f *Fetcher) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = f.baseDelay
	b.RandomizationFactor = 0.1
	b.Multiplier = 2.0
	b.MaxInterval = time.Minute
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// send performs one request and maps the status to an error. The response
// body is open only when err is nil.
func (f *Fetcher) send(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")
	if f.auth != nil {
		if name, value := f.auth(url); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", strings.ToLower(method), url, err)
	}
	if err := statusError(resp); err != nil {
		_ = resp.Body.Close()
		return nil, err
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code >= 500:
		return ErrUpstreamDown
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", code, strings.TrimSpace(string(snippet)))
	}
}

func contentLength(resp *http.Response) int64 {
	if n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64); err == nil {
		return n
	}
	return -1
}
