// Package client is the typed gateway to the replydesk REST API.
//
// Every call maps to one endpoint (save maps to one request per key). There
// are no retries; a failure surfaces as an *APIError or a transport error,
// and ResultOf collapses either into a user-facing Result.
package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"
)

const defaultTimeout = 30 * time.Second

// Result is the outcome of an action as shown to the operator.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func ok(msg string) Result      { return Result{Success: true, Message: msg} }
func failed(msg string) Result  { return Result{Success: false, Message: msg} }
func (r Result) String() string { return r.Message }

// APIError is a non-2xx answer, or a 2xx answer with "success": false.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status %d: %s", e.StatusCode, e.Message)
}

// ValidationError is a request rejected locally before anything was sent.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

var (
	ErrNoTestAccount     = &ValidationError{Msg: "select an account to test first"}
	ErrInvalidBackupFile = &ValidationError{Msg: "only .db database files can be restored"}
	ErrInvalidUserBackup = &ValidationError{Msg: "only .json backup files can be imported"}
	ErrNotLoggedIn       = &ValidationError{Msg: "not logged in"}
)

// ResultOf collapses an outcome into a Result. The server's message wins;
// fallback is used when the failure carries nothing readable.
func ResultOf(err error, success, fallback string) Result {
	if err == nil {
		return ok(success)
	}
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return failed(vErr.Msg)
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return failed(apiErr.Message)
	}
	return failed(fallback)
}

type Option func(*Client)

func WithToken(token string) Option {
	return func(c *Client) { c.SetToken(token) }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

// WithHTTPClient routes requests through hc, e.g. an httptest server client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = resty.NewWithClient(hc).SetBaseURL(c.baseURL).SetTimeout(defaultTimeout)
	}
}

type Client struct {
	baseURL string
	token   string
	http    *resty.Client
}

// New creates a gateway rooted at baseURL, e.g. http://localhost:8080/api.
func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	c := &Client{
		baseURL: baseURL,
		http:    resty.New().SetBaseURL(baseURL).SetTimeout(defaultTimeout),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.http.SetHeader("Accept", "application/json")
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) Token() string { return c.token }

func (c *Client) SetToken(token string) {
	c.token = strings.TrimSpace(token)
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if c.token != "" {
		r.SetAuthToken(c.token)
	}
	return r
}

// errorMessage extracts the human-readable reason from an error body.
func errorMessage(body []byte) string {
	if len(body) == 0 || !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}
	res := gjson.GetManyBytes(body, "detail", "message", "error")
	for _, r := range res {
		if r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Message: errorMessage(resp.Body())}
	}
	return nil
}

// mutate checks a {success, message} envelope and returns the message.
func mutate(resp *resty.Response, err error) (string, error) {
	if err := checkResponse(resp, err); err != nil {
		return "", err
	}
	body := resp.Body()
	if s := gjson.GetBytes(body, "success"); s.Exists() && !s.Bool() {
		return "", &APIError{StatusCode: resp.StatusCode(), Message: errorMessage(body)}
	}
	return gjson.GetBytes(body, "message").String(), nil
}

// outcome turns a mutation into a Result, preferring the server's message.
func outcome(msg string, err error, success, fallback string) (Result, error) {
	if err != nil {
		return ResultOf(err, success, fallback), err
	}
	if msg == "" {
		msg = success
	}
	return ok(msg), nil
}
