package slackapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

type openViewRequest struct {
	TriggerID string `json:"trigger_id"`
	View      View   `json:"view"`
}

type postMessageRequest struct {
	Channel string  `json:"channel"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks,omitempty"`
}

// apiEnvelope is the common Slack Web API response wrapper.
type apiEnvelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("slackapi: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// APIError is a Slack-level failure: HTTP 200 with ok=false and an error
// code such as "invalid_trigger_id" or "channel_not_found".
type APIError struct {
	Method string
	Code   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("slackapi: %s failed: %s", e.Method, e.Code)
}

// Client is a focused Slack Web API client covering views.open and
// chat.postMessage.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	getter      Getter
	paramPrefix string

	tokenOnce sync.Once
	token     string
	tokenErr  error
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient creates a Client backed by the given parameter Getter for bot
// token retrieval. The token is fetched on the first API call and reused for
// the lifetime of the process. The default HTTP timeout is short: a slow
// views.open must not hold up the slash-command ack past Slack's deadline.
func NewClient(ps Getter, paramPrefix string, opts ...Option) (*Client, error) {
	if ps == nil {
		return nil, errors.New("slackapi: parameter getter must not be nil")
	}
	paramPrefix = strings.TrimRight(strings.TrimSpace(paramPrefix), "/")
	if paramPrefix == "" {
		return nil, errors.New("slackapi: parameter prefix must not be empty")
	}
	c := &Client{
		baseURL:     "https://slack.com/api",
		httpClient:  &http.Client{Timeout: 3 * time.Second},
		getter:      ps,
		paramPrefix: paramPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// OpenView calls views.open with a single-use trigger id. Trigger ids are
// time-boxed to a few seconds, so callers must not retry on failure.
func (c *Client) OpenView(ctx context.Context, triggerID string, view View) error {
	if strings.TrimSpace(triggerID) == "" {
		return errors.New("slackapi: trigger id must not be empty")
	}
	return c.call(ctx, "views.open", openViewRequest{TriggerID: triggerID, View: view})
}

// PostMessage calls chat.postMessage. text is the notification fallback for
// clients that cannot render blocks.
func (c *Client) PostMessage(ctx context.Context, channelID, text string, blocks []Block) error {
	if strings.TrimSpace(channelID) == "" {
		return errors.New("slackapi: channel id must not be empty")
	}
	return c.call(ctx, "chat.postMessage", postMessageRequest{Channel: channelID, Text: text, Blocks: blocks})
}

func (c *Client) call(ctx context.Context, method string, payload any) error {
	token, err := c.resolveToken(ctx)
	if err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("slackapi: marshal %s request: %w", method, err)
	}

	url := strings.TrimRight(c.baseURL, "/") + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slackapi: create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+token)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return fmt.Errorf("slackapi: %s request failed: %w", method, err)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("slackapi: decode %s response: %w", method, err)
	}
	if !envelope.OK {
		return &APIError{Method: method, Code: envelope.Error}
	}
	return nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

// resolveToken fetches the bot token from the parameter store on the first
// call and returns the cached result afterwards.
func (c *Client) resolveToken(ctx context.Context) (string, error) {
	c.tokenOnce.Do(func() {
		raw, err := c.getter.GetParameter(ctx, c.tokenParameterName())
		if err != nil {
			c.tokenErr = fmt.Errorf("slackapi: fetch bot token: %w", err)
			return
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			c.tokenErr = errors.New("slackapi: bot token is empty")
			return
		}
		c.token = raw
	})
	return c.token, c.tokenErr
}

func (c *Client) tokenParameterName() string {
	return c.paramPrefix + "/slack/bot-token"
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 3 * time.Second}
}
