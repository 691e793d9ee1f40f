// Package remote talks to the no-code platform's REST table API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"bizdash/internal/core"
	"bizdash/internal/log"
	"bizdash/internal/records"
)

// AccessKeyHeader carries the application access key on every request.
const AccessKeyHeader = "ApplicationAccessKey"

// Config configures the API client.
type Config struct {
	BaseURL   string // e.g. https://api.appsheet.com/api/v2
	AppID     string
	AccessKey string
	Locale    string
	Timeout   time.Duration
}

// Client implements records.TableClient over HTTP.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *log.Logger
}

var _ records.TableClient = (*Client)(nil)

type properties struct {
	Locale   string `json:"Locale,omitempty"`
	Selector string `json:"Selector,omitempty"`
}

type actionRequest struct {
	Action     records.Action `json:"Action"`
	Properties properties     `json:"Properties"`
	Rows       []core.Row     `json:"Rows"`
}

// New validates cfg and builds a client with a pooled transport.
func New(cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("missing table api base url")
	}
	if strings.TrimSpace(cfg.AppID) == "" {
		return nil, errors.New("missing table api app id")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Client{
		cfg:    cfg,
		http:   newHTTPClientWithPooling(cfg.Timeout),
		logger: logger.WithComponent(log.ComponentRecords),
	}, nil
}

// WithHTTPClient swaps the transport. Intended for tests.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	c.http = h
	return c
}

func newHTTPClientWithPooling(timeout time.Duration) *http.Client {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
		ExpectContinueTimeout: time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: timeout}
}

func (c *Client) Find(ctx context.Context, table, selector string) ([]core.Row, error) {
	return c.do(ctx, table, records.ActionFind, selector, nil)
}

func (c *Client) Add(ctx context.Context, table string, rows ...core.Row) ([]core.Row, error) {
	return c.do(ctx, table, records.ActionAdd, "", rows)
}

func (c *Client) Edit(ctx context.Context, table string, rows ...core.Row) ([]core.Row, error) {
	return c.do(ctx, table, records.ActionEdit, "", rows)
}

func (c *Client) endpoint(table string) string {
	return strings.TrimRight(c.cfg.BaseURL, "/") +
		"/apps/" + url.PathEscape(c.cfg.AppID) +
		"/tables/" + url.PathEscape(table) + "/Action"
}

func (c *Client) do(ctx context.Context, table string, action records.Action, selector string, rows []core.Row) ([]core.Row, error) {
	if rows == nil {
		rows = []core.Row{}
	}
	body, err := json.Marshal(actionRequest{
		Action:     action,
		Properties: properties{Locale: c.cfg.Locale, Selector: selector},
		Rows:       rows,
	})
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", action, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(table), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", action, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.cfg.AccessKey != "" {
		req.Header.Set(AccessKeyHeader, c.cfg.AccessKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", action, table, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", action, err)
	}

	c.logger.DebugContext(ctx, "Table API call completed",
		log.FieldTable, table,
		log.FieldOperation, string(action),
		log.FieldStatusCode, resp.StatusCode,
		log.FieldDuration, time.Since(start).Milliseconds())

	if resp.StatusCode >= 400 {
		return nil, &records.RemoteError{Table: table, Action: action, Status: resp.StatusCode, Message: failureMessage(raw)}
	}
	out, err := decodeRows(raw)
	if err != nil {
		return nil, &records.RemoteError{Table: table, Action: action, Message: err.Error()}
	}
	return out, nil
}

// decodeRows accepts a JSON array of objects, or an object wrapping one under
// "Rows". Anything else, including an object with a failure flag, is an error.
func decodeRows(raw []byte) ([]core.Row, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, errors.New("empty response")
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	switch x := v.(type) {
	case []any:
		return toRows(x)
	case map[string]any:
		if ok, present := x["success"].(bool); present && !ok {
			return nil, errors.New(messageOf(x))
		}
		if arr, ok := x["Rows"].([]any); ok {
			return toRows(arr)
		}
		return nil, errors.New(messageOf(x))
	default:
		return nil, fmt.Errorf("unexpected response of type %T", v)
	}
}

func toRows(arr []any) ([]core.Row, error) {
	out := make([]core.Row, 0, len(arr))
	for i, item := range arr {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("row %d is %T, not an object", i, item)
		}
		out = append(out, core.Row(m))
	}
	return out, nil
}

func messageOf(m map[string]any) string {
	for _, k := range []string{"Message", "message", "error", "Error", "detail"} {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return "request failed"
}

func failureMessage(raw []byte) string {
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err == nil {
		return messageOf(m)
	}
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		s = s[:200]
	}
	if s == "" {
		return "request failed"
	}
	return s
}
