// Package reply calls the remote reply endpoint under a bounded timeout and
// reports the result as a tagged Outcome instead of an error chain.
package reply

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

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/calm-companion/backend/internal/analysis/support"
	"github.com/zhouzirui/calm-companion/backend/internal/logging"
)

// DefaultTimeout bounds a single remote reply attempt.
const DefaultTimeout = 2500 * time.Millisecond

const maxResponseBytes = 64 << 10

// ErrNoEndpoint is reported when no base URL is configured.
var ErrNoEndpoint = errors.New("reply endpoint not configured")

// Kind classifies how a remote attempt ended.
type Kind int

const (
	OutcomeOK Kind = iota
	OutcomeTimeout
	OutcomeError
)

func (k Kind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// Outcome is the result of one remote attempt. Reply and Tag are only
// meaningful when Kind is OutcomeOK; Err is set otherwise.
type Outcome struct {
	Kind  Kind
	Reply string
	Tag   support.Tag
	Err   error
}

// Client posts user text to /api/reply.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logging.OrNop(logger)
	}
}

// New creates a client for the server at baseURL (e.g. "http://localhost:3000").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reply asks the server for a reply. The request is cancelled once the
// timeout elapses, so a late response can never be observed.
func (c *Client) Reply(ctx context.Context, text string) Outcome {
	if c == nil || c.baseURL == "" {
		return Outcome{Kind: OutcomeError, Err: ErrNoEndpoint}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	requestID := uuid.NewString()
	outcome := c.do(ctx, requestID, text)
	if outcome.Kind == OutcomeError && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		outcome.Kind = OutcomeTimeout
	}

	c.logger.Debug("remote reply attempt",
		zap.String("request_id", requestID),
		zap.Stringer("outcome", outcome.Kind),
		zap.Error(outcome.Err),
	)
	return outcome
}

func (c *Client) do(ctx context.Context, requestID, text string) Outcome {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return Outcome{Kind: OutcomeError, Err: fmt.Errorf("encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/reply", bytes.NewReader(body))
	if err != nil {
		return Outcome{Kind: OutcomeError, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Outcome{Kind: OutcomeError, Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Outcome{Kind: OutcomeError, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var payload struct {
		Reply json.RawMessage `json:"reply"`
		Tag   json.RawMessage `json:"tag"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return Outcome{Kind: OutcomeError, Err: fmt.Errorf("decode response: %w", err)}
	}

	reply, ok := stringValue(payload.Reply)
	if !ok {
		return Outcome{Kind: OutcomeError, Err: errors.New("response reply is not a string")}
	}

	// tag 仅供参考，缺失或类型不对时按 general 处理。
	rawTag, _ := stringValue(payload.Tag)
	tag, _ := support.ParseTag(rawTag)
	return Outcome{Kind: OutcomeOK, Reply: reply, Tag: tag}
}

// stringValue decodes raw only when it is a JSON string.
func stringValue(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
