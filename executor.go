package courier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// ExecutorOption configures Executor.
type ExecutorOption func(*Executor)

// WithExecutorHTTPClient sets a custom HTTP client.
func WithExecutorHTTPClient(client *http.Client) ExecutorOption {
	return func(e *Executor) {
		e.httpClient = client
	}
}

// WithExecutorLogger sets a custom logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = logger
	}
}

// Executor performs a single network call per invocation. It never
// retries — retry is a caller policy. Every outbound request carries
// the SDK's User-Agent, fixed at construction time.
type Executor struct {
	httpClient *http.Client
	logger     *slog.Logger
	userAgent  string
}

// NewExecutor creates a new Executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     slog.Default(),
		userAgent:  userAgent,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request describes a single outbound call.
type Request struct {
	Method  string
	URL     string
	Headers http.Header
	Body    any // JSON-marshaled when non-nil
}

// Execute issues the request exactly once and classifies the response
// status against accepted. An empty accepted set means any 2xx. It
// returns the response body and status code on success; on a transport
// failure the error wraps the underlying cause, and on an unaccepted
// status it is an *APIError.
func (e *Executor) Execute(ctx context.Context, r Request, accepted ...int) ([]byte, int, error) {
	var reqData []byte
	var bodyReader io.Reader
	if r.Body != nil {
		var err error
		reqData, err = json.Marshal(r.Body)
		if err != nil {
			return nil, 0, fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(reqData)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL, bodyReader)
	if err != nil {
		return nil, 0, fmt.Errorf("creating %s request: %w", r.Method, err)
	}
	for k, v := range r.Headers {
		req.Header[k] = v
	}
	req.Header.Set("User-Agent", e.userAgent)
	if r.Body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	e.logRequest(r.Method, r.URL, req.Header, reqData)
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%s %s: %w", r.Method, r.URL, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	e.logResponse(resp, body)

	if !statusAccepted(resp.StatusCode, accepted) {
		return body, resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(body), 2000),
			URL:        r.URL,
			Method:     r.Method,
		}
	}
	return body, resp.StatusCode, nil
}

// ExecuteJSON issues the request and decodes the response body into
// result when result is non-nil and the body is non-empty.
func (e *Executor) ExecuteJSON(ctx context.Context, r Request, result any, accepted ...int) error {
	body, _, err := e.Execute(ctx, r, accepted...)
	if err != nil {
		return err
	}
	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("decoding %s %s response: %w", r.Method, r.URL, err)
		}
	}
	return nil
}

func statusAccepted(code int, accepted []int) bool {
	if len(accepted) == 0 {
		return code >= 200 && code < 300
	}
	for _, a := range accepted {
		if code == a {
			return true
		}
	}
	return false
}

func (e *Executor) logRequest(method, url string, headers http.Header, body []byte) {
	e.logger.Debug(">>> "+method, "url", url)
	for k, v := range headers {
		val := v[0]
		if len(v) > 1 {
			val = fmt.Sprintf("%v", v)
		}
		if len(val) > 120 {
			e.logger.Debug("  Request header", "key", k, "value", val[:60]+"..."+val[len(val)-20:])
		} else {
			e.logger.Debug("  Request header", "key", k, "value", val)
		}
	}
	if body != nil {
		e.logger.Debug("  Request body", "json", truncate(string(body), 2000))
	}
}

// logResponse logs status, headers, and the body as indented JSON when
// it parses. A body that fails to parse is logged raw — logging must
// never affect request completion.
func (e *Executor) logResponse(resp *http.Response, body []byte) {
	e.logger.Debug("<<< Response", "status", resp.StatusCode, "url", resp.Request.URL.String(), "bytes", len(body))
	for k, v := range resp.Header {
		e.logger.Debug("  Response header", "key", k, "value", v[0])
	}
	if len(body) == 0 {
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "  ", "  "); err != nil {
		e.logger.Debug("  Response body", "raw", truncate(string(body), 2000))
		return
	}
	e.logger.Debug("  Response body", "json", truncate(pretty.String(), 2000))
}

// truncate returns the first maxLen characters of s, or s itself if shorter.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
