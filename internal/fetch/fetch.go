// Package fetch retrieves manifest documents over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-retryablehttp"
)

// DefaultMaxBodySize bounds the size of an accepted manifest.
const DefaultMaxBodySize = 8 << 20

// ErrTooLarge is returned when a manifest exceeds Config.MaxBodySize.
var ErrTooLarge = errors.New("manifest too large")

// Response is a fetched manifest.
type Response struct {
	// Body is the full response body.
	Body []byte
	// URL is the final URL after redirects. Relative references in the
	// manifest resolve against it.
	URL string
	// ContentType is the response Content-Type header.
	ContentType string
}

// Fetcher resolves a URL to the bytes of a manifest.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
}

// Config controls the HTTP fetcher.
type Config struct {
	// Timeout bounds a single attempt.
	Timeout time.Duration
	// RetryMax is the number of retries after the first attempt.
	RetryMax int
	// RetryWaitMin and RetryWaitMax bound the backoff between attempts.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// UserAgent is sent with every request when set.
	UserAgent string
	// MaxBodySize is the largest accepted response body in bytes.
	MaxBodySize int64
	// Logger receives retry diagnostics. Nil discards them.
	Logger hclog.Logger
}

// DefaultConfig returns the fetcher defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		RetryMax:     2,
		RetryWaitMin: 250 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		UserAgent:    "dash2hls/1.0",
		MaxBodySize:  DefaultMaxBodySize,
	}
}

// HTTPFetcher fetches manifests with retries on transient failures.
type HTTPFetcher struct {
	client    *retryablehttp.Client
	userAgent string
	maxBody   int64
}

// NewHTTPFetcher creates a fetcher from cfg. Zero fields take DefaultConfig values.
func NewHTTPFetcher(cfg Config) *HTTPFetcher {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	if cfg.RetryWaitMin <= 0 {
		cfg.RetryWaitMin = def.RetryWaitMin
	}
	if cfg.RetryWaitMax < cfg.RetryWaitMin {
		cfg.RetryWaitMax = cfg.RetryWaitMin
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = def.MaxBodySize
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}

	client := retryablehttp.NewClient()
	client.HTTPClient.Timeout = cfg.Timeout
	client.RetryMax = cfg.RetryMax
	client.RetryWaitMin = cfg.RetryWaitMin
	client.RetryWaitMax = cfg.RetryWaitMax
	client.Logger = cfg.Logger
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPFetcher{client: client, userAgent: cfg.UserAgent, maxBody: cfg.MaxBodySize}
}

// Fetch downloads url. Non-2xx responses are reported as *StatusError and
// bodies larger than the configured limit as ErrTooLarge.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return nil, fmt.Errorf("failed to fetch manifest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	if int64(len(body)) > f.maxBody {
		return nil, fmt.Errorf("fetch %s: %w (limit %d bytes)", url, ErrTooLarge, f.maxBody)
	}

	return &Response{
		Body:        body,
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// NewLogger creates the hclog logger used for fetch diagnostics.
func NewLogger(output io.Writer, verbose bool) hclog.Logger {
	level := hclog.Warn
	if verbose {
		level = hclog.Debug
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:   "fetch",
		Level:  level,
		Output: output,
	})
}
