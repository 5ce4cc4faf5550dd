package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yanqian/sparky-web/internal/domain/chat"
	"github.com/yanqian/sparky-web/internal/domain/summarizer"
	"github.com/yanqian/sparky-web/pkg/metrics"
)

const (
	defaultBaseURL     = "http://localhost:5000"
	defaultChatPath    = "/chat"
	defaultSummaryPath = "/process-youtube"

	endpointChat    = "chat"
	endpointSummary = "process_youtube"

	maxBodyBytes = 4 << 20
)

var (
	// ErrDecode marks a response body that is not the expected JSON document.
	ErrDecode = errors.New("decode upstream response")
	// ErrTooLarge marks a response body over the client's size cap.
	ErrTooLarge = errors.New("upstream response too large")
)

// Config locates the external Sparky service.
type Config struct {
	BaseURL     string
	ChatPath    string
	SummaryPath string
	// Timeout bounds a single call. Zero leaves calls unbounded.
	Timeout time.Duration
}

// Client calls the external Sparky service over JSON/HTTP.
type Client struct {
	baseURL     string
	chatPath    string
	summaryPath string
	httpClient  *http.Client
	metrics     *metrics.Registry
	maxBody     int64
}

// NewClient builds an API client.
func NewClient(cfg Config, registry *metrics.Registry) *Client {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		chatPath:    normalizePath(cfg.ChatPath, defaultChatPath),
		summaryPath: normalizePath(cfg.SummaryPath, defaultSummaryPath),
		httpClient:  &http.Client{Timeout: cfg.Timeout},
		metrics:     registry,
		maxBody:     maxBodyBytes,
	}
}

// Chat posts one user turn and returns the decoded reply.
func (c *Client) Chat(ctx context.Context, req chat.Request) (chat.Reply, error) {
	var out chat.Reply
	err := c.post(ctx, endpointChat, c.chatPath, req, &out)
	return out, err
}

// ProcessYouTube asks the service to summarize a video.
func (c *Client) ProcessYouTube(ctx context.Context, req summarizer.Request) (summarizer.Reply, error) {
	var out summarizer.Reply
	err := c.post(ctx, endpointSummary, c.summaryPath, req, &out)
	return out, err
}

// post sends payload and decodes the JSON body into out whatever the status
// code: the service reports validation failures as 4xx with an error field,
// which callers treat as an application-level reply.
func (c *Client) post(ctx context.Context, endpoint, path string, payload, out any) (err error) {
	start := time.Now()
	status := 0
	outcome := metrics.OutcomeOK
	defer func() {
		if err != nil && outcome == metrics.OutcomeOK {
			outcome = metrics.OutcomeTransport
		}
		c.metrics.ObserveUpstream(endpoint, outcome, status, time.Since(start))
	}()

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", endpoint, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build %s request: %w", endpoint, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return fmt.Errorf("read %s response: %w", endpoint, err)
	}
	if int64(len(raw)) > c.maxBody {
		outcome = metrics.OutcomeTooLarge
		return fmt.Errorf("%w: %s status=%d exceeds %d bytes", ErrTooLarge, endpoint, status, c.maxBody)
	}
	if bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		outcome = metrics.OutcomeDecode
		return fmt.Errorf("%w: %s status=%d: null body", ErrDecode, endpoint, status)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		outcome = metrics.OutcomeDecode
		return fmt.Errorf("%w: %s status=%d body=%s: %v", ErrDecode, endpoint, status, snippet(raw), err)
	}
	return nil
}

func normalizePath(path, fallback string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return fallback
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}

func snippet(raw []byte) string {
	const limit = 256
	if len(raw) > limit {
		return string(raw[:limit]) + "..."
	}
	return string(raw)
}

var (
	_ chat.Client       = (*Client)(nil)
	_ summarizer.Client = (*Client)(nil)
)
