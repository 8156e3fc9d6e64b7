package daemonctl

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"nightcore/internal/api"
	"nightcore/internal/artifact"
	"nightcore/internal/config"
	"nightcore/internal/jobs"
)

// ErrDaemonNotRunning indicates the daemon HTTP endpoint is unreachable.
var ErrDaemonNotRunning = errors.New("daemon not running")

// Client talks to a running daemon over its HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithToken sets the bearer token sent on credential updates.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// NewClient returns a client for the daemon at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		// Jobs wait for the slot and then run two tools back to back.
		http: &http.Client{Timeout: 15 * time.Minute},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewClientFromConfig derives the base URL and token from cfg.
func NewClientFromConfig(cfg *config.Config, opts ...ClientOption) *Client {
	base := []ClientOption{WithToken(cfg.Paths.APIToken)}
	return NewClient(BaseURL(cfg), append(base, opts...)...)
}

// BaseURL turns the configured bind address into a dialable URL. Wildcard
// hosts are replaced with loopback.
func BaseURL(cfg *config.Config) string {
	bind := "127.0.0.1:8000"
	if cfg != nil && strings.TrimSpace(cfg.Paths.APIBind) != "" {
		bind = strings.TrimSpace(cfg.Paths.APIBind)
	}
	host, port, err := net.SplitHostPort(bind)
	if err != nil {
		return "http://" + bind
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// URL returns the base URL the client targets.
func (c *Client) URL() string {
	return c.baseURL
}

// Status fetches GET /api/status.
func (c *Client) Status(ctx context.Context) (*api.DaemonStatus, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/status", nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, responseError(resp)
	}
	var status api.DaemonStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("decode status: %w", err)
	}
	return &status, nil
}

// Generate submits a job and waits for its outcome. Rejections that still
// carry an outcome body (bad JSON, rate limiting) are returned as outcomes.
func (c *Client) Generate(ctx context.Context, req jobs.Request) (jobs.Outcome, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return jobs.Outcome{}, fmt.Errorf("encode request: %w", err)
	}
	resp, err := c.do(ctx, http.MethodPost, "/generate", bytes.NewReader(body), "application/json")
	if err != nil {
		return jobs.Outcome{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadRequest, http.StatusTooManyRequests:
	default:
		return jobs.Outcome{}, responseError(resp)
	}
	var outcome jobs.Outcome
	if err := json.NewDecoder(resp.Body).Decode(&outcome); err != nil {
		return jobs.Outcome{}, fmt.Errorf("decode outcome: %w", err)
	}
	return outcome, nil
}

// Download saves the named artifact into destDir and returns the local path.
func (c *Client) Download(ctx context.Context, name, destDir string) (string, error) {
	if !artifact.ValidName(name) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	resp, err := c.do(ctx, http.MethodGet, "/download/"+url.PathEscape(name), nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", responseError(resp)
	}

	filename := name
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		if candidate := params["filename"]; artifact.ValidName(candidate) {
			filename = candidate
		}
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("create destination: %w", err)
	}
	dest := filepath.Join(destDir, filename)
	tmp, err := os.CreateTemp(destDir, ".download-*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("download %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("finalize download: %w", err)
	}
	return dest, nil
}

// UploadCookies replaces the daemon's cookie jar.
func (c *Client) UploadCookies(ctx context.Context, data []byte) (api.CookieUploadResponse, error) {
	resp, err := c.do(ctx, http.MethodPost, "/cookies", bytes.NewReader(data), "text/plain")
	if err != nil {
		return api.CookieUploadResponse{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return api.CookieUploadResponse{}, responseError(resp)
	}
	var out api.CookieUploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return api.CookieUploadResponse{}, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if isDaemonUnavailable(err) {
			return nil, fmt.Errorf("%w at %s", ErrDaemonNotRunning, c.baseURL)
		}
		return nil, err
	}
	return resp, nil
}

func responseError(resp *http.Response) error {
	var payload api.ErrorResponse
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err := json.Unmarshal(data, &payload); err == nil && payload.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", resp.StatusCode, payload.Error)
	}
	return fmt.Errorf("daemon returned %d", resp.StatusCode)
}

func isDaemonUnavailable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ENOENT) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr) && opErr.Op == "dial"
}
