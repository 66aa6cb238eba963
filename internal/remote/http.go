package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/roach88/qwsync/internal/doc"
)

// TokenSource supplies the bearer token for requests made on behalf of uid.
type TokenSource interface {
	Token(uid string) (string, error)
}

// DefaultRetryMax is the number of retries when HTTPOptions.RetryMax is 0.
const DefaultRetryMax = 3

// HTTPOptions tunes the HTTP client. Zero values select defaults.
type HTTPOptions struct {
	// RetryMax is the number of retries after the first attempt.
	// Default DefaultRetryMax; use a negative value to disable retries.
	RetryMax int

	// RetryWaitMin and RetryWaitMax bound the wait between retries.
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration

	// Timeout bounds a single attempt. Default 10s.
	Timeout time.Duration

	// Logger receives retry diagnostics. Default slog.Default().
	Logger *slog.Logger
}

// HTTPClient talks to the document server API:
//
//	GET   {base}/v1/users/{uid}/pages/{path}
//	PATCH {base}/v1/users/{uid}/pages/{path}
type HTTPClient struct {
	base   string
	tokens TokenSource
	client *retryablehttp.Client
	logger *slog.Logger
}

// NewHTTPClient creates a client for the server at baseURL.
func NewHTTPClient(baseURL string, tokens TokenSource, opts HTTPOptions) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid remote url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid remote url %q: scheme must be http or https", baseURL)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	client := retryablehttp.NewClient()
	client.Logger = logger
	switch {
	case opts.RetryMax < 0:
		client.RetryMax = 0
	case opts.RetryMax == 0:
		client.RetryMax = DefaultRetryMax
	default:
		client.RetryMax = opts.RetryMax
	}
	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	}
	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client.HTTPClient.Timeout = timeout
	// Surface the final response instead of a generic "giving up" error so
	// status codes can be classified.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPClient{
		base:   strings.TrimRight(u.String(), "/"),
		tokens: tokens,
		client: client,
		logger: logger,
	}, nil
}

// Get implements Store.
func (c *HTTPClient) Get(ctx context.Context, uid, path string) (doc.Document, error) {
	name := doc.RemotePath(uid, path)
	resp, err := c.do(ctx, http.MethodGet, uid, path, nil)
	if err != nil {
		return nil, &NetworkError{Op: "get", Path: name, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: "get", Path: name, StatusCode: resp.StatusCode, Err: err}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return nil, &NetworkError{Op: "get", Path: name, StatusCode: resp.StatusCode, Err: errors.New(statusMessage(body))}
	}

	d, err := doc.Decode(body)
	if err != nil {
		return nil, &NetworkError{Op: "get", Path: name, StatusCode: resp.StatusCode, Err: err}
	}
	return d, nil
}

// MergeWrite implements Store.
func (c *HTTPClient) MergeWrite(ctx context.Context, uid, path string, d doc.Document) error {
	name := doc.RemotePath(uid, path)
	payload, err := doc.Encode(d)
	if err != nil {
		return fmt.Errorf("remote merge %s: %w", name, err)
	}

	resp, err := c.do(ctx, http.MethodPatch, uid, path, payload)
	if err != nil {
		return &NetworkError{Op: "merge", Path: name, Err: err}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return &NetworkError{Op: "merge", Path: name, StatusCode: resp.StatusCode, Err: errors.New(statusMessage(body))}
	}
	return nil
}

// WaitReady polls GET {base}/healthz with exponential backoff until the
// server answers 200, ctx is done, or maxElapsed passes (0 means no limit).
func (c *HTTPClient) WaitReady(ctx context.Context, maxElapsed time.Duration) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	policy.MaxElapsedTime = maxElapsed

	attempt := 1
	return backoff.Retry(func() error {
		err := c.probe(ctx)
		if err != nil {
			c.logger.Info("waiting for remote", "url", c.base, "attempt", attempt, "error", err)
			attempt++
		}
		return err
	}, backoff.WithContext(policy, ctx))
}

func (c *HTTPClient) probe(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return backoff.Permanent(err)
	}
	resp, err := c.client.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz status %d", resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, uid, path string, body []byte) (*http.Response, error) {
	var reqBody any
	if body != nil {
		reqBody = bytes.NewReader(body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.documentURL(uid, path), reqBody)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.tokens != nil {
		token, err := c.tokens.Token(uid)
		if err != nil {
			return nil, fmt.Errorf("token for %s: %w", uid, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.client.Do(req)
}

func (c *HTTPClient) documentURL(uid, path string) string {
	return c.base + "/v1/users/" + url.PathEscape(uid) + "/" + doc.PagesCollection + "/" + url.PathEscape(doc.SanitizePath(path))
}

// statusMessage extracts {"error": "..."} from a server reply, falling back
// to the raw body.
func statusMessage(body []byte) string {
	if d, err := doc.Decode(body); err == nil {
		if msg, ok := d["error"].(string); ok {
			return msg
		}
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	return msg
}
