package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"StemDeck/core/apperr"
	"StemDeck/logger"

	"golang.org/x/time/rate"
)

// Client talks to the splitting backend's REST routes.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	verifier   Verifier

	mu    sync.RWMutex
	token string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit caps outgoing requests per second; 0 disables the limit.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		}
	}
}

// WithVerifier attaches a bot-verification token source to uploads.
func WithVerifier(v Verifier) Option {
	return func(c *Client) { c.verifier = v }
}

// NewClient 创建新的API客户端
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Minute, // uploads wait for the split to finish
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken sets the bearer token; empty makes the client anonymous.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) bearer() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// BaseURL returns the configured origin.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, authenticated bool) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if token := c.bearer(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	} else if authenticated {
		return nil, apperr.Message(apperr.Unauthenticated, "sign in required for "+path)
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, apperr.Wrap(err, apperr.Transport, "request cancelled while rate limited")
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, apperr.Wrap(err, apperr.Cancelled, req.Method+" "+req.URL.Path)
		}
		return nil, apperr.Wrap(err, apperr.Transport, "backend unreachable")
	}
	return resp, nil
}

// errorPayload covers the error shapes the backend emits.
type errorPayload struct {
	Error   string          `json:"error"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
}

func (p errorPayload) text() string {
	if len(p.Detail) > 0 {
		var s string
		if err := json.Unmarshal(p.Detail, &s); err == nil && s != "" {
			return s
		}
		// validation style detail: [{"msg": "..."}]
		var items []struct {
			Msg string `json:"msg"`
		}
		if err := json.Unmarshal(p.Detail, &items); err == nil && len(items) > 0 && items[0].Msg != "" {
			return items[0].Msg
		}
	}
	if p.Error != "" {
		return p.Error
	}
	return p.Message
}

// statusError turns a non-success response into a marked error, keeping
// the backend's own text for the user when it sent one.
func statusError(resp *http.Response, action string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	mark := apperr.Transport
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		mark = apperr.Unauthenticated
	}
	err := apperr.Message(mark, fmt.Sprintf("%s failed with status %d", action, resp.StatusCode))

	var payload errorPayload
	if json.Unmarshal(body, &payload) == nil {
		if text := payload.text(); text != "" {
			return apperr.WithDetail(err, text)
		}
	}
	return err
}

func decodeJSON(resp *http.Response, v interface{}, action string) error {
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return apperr.Wrap(err, apperr.Transport, "unreadable response from "+action)
	}
	return nil
}

func (c *Client) deleteRequest(ctx context.Context, path, action string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, path, nil, true)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 && resp.StatusCode != http.StatusNotFound {
		return statusError(resp, action)
	}
	logger.Debug("backend delete confirmed", logger.String("path", path), logger.Int("status", resp.StatusCode))
	return nil
}
