// Package apiclient is a bearer-authenticated client for the task/query/user HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/tasktime/internal/errs"
	"github.com/and161185/tasktime/internal/model"
)

const defaultTimeout = 15 * time.Second

// TokenSource yields the bearer token for a call. An empty token means no session.
type TokenSource func(ctx context.Context) (string, error)

// StaticToken returns a TokenSource that always yields tok.
func StaticToken(tok string) TokenSource {
	return func(context.Context) (string, error) { return tok, nil }
}

// RemoteError describes a failed call to the API. It matches errs.ErrRemote.
type RemoteError struct {
	Op     string
	Status int // 0 when the request never got a response
	Msg    string
	Err    error
}

func (e *RemoteError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.Status != 0 {
		b.WriteString(": status ")
		b.WriteString(strconv.Itoa(e.Status))
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is makes errors.Is(err, errs.ErrRemote) hold.
func (e *RemoteError) Is(target error) bool { return target == errs.ErrRemote }

func (e *RemoteError) Unwrap() error { return e.Err }

// URLSource yields the server URL for a call. "" means the URL given to New.
type URLSource func() string

// Client calls the HTTP API. Safe for concurrent use.
type Client struct {
	base    *url.URL
	baseSrc URLSource
	http    *http.Client
	token   TokenSource
	log     *zap.Logger
}

func parseBase(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("server url %q: scheme must be http or https", raw)
	}
	return u, nil
}

// New builds a Client for baseURL. timeout <= 0 uses a default; token may be nil for Login only.
func New(baseURL string, timeout time.Duration, token TokenSource, log *zap.Logger) (*Client, error) {
	u, err := parseBase(baseURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base:  u,
		http:  &http.Client{Timeout: timeout},
		token: token,
		log:   log,
	}, nil
}

// WithURLSource makes c resolve the server URL before every call, for long-lived clients
// whose user may log in to another server. It returns c.
func (c *Client) WithURLSource(src URLSource) *Client {
	c.baseSrc = src
	return c
}

func (c *Client) baseURL() (*url.URL, error) {
	if c.baseSrc != nil {
		if raw := c.baseSrc(); raw != "" {
			return parseBase(raw)
		}
	}
	return c.base, nil
}

// Login exchanges credentials for a token. Bad credentials yield errs.ErrUnauthorized.
func (c *Client) Login(ctx context.Context, email, password string) (model.LoginResult, error) {
	var out model.LoginResult
	err := c.do(ctx, "login", http.MethodPost, "/auth/login", nil,
		model.Credentials{Email: email, Password: password}, &out, false)
	return out, err
}

// ListTasks returns all tasks visible to the caller.
func (c *Client) ListTasks(ctx context.Context) ([]model.Task, error) {
	var out []model.Task
	err := c.do(ctx, "list tasks", http.MethodGet, "/tasks", nil, nil, &out, true)
	return out, err
}

// CreateTask submits a new task.
func (c *Client) CreateTask(ctx context.Context, t model.NewTask) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, "create task", http.MethodPost, "/tasks", nil, t, &out, true)
	return out, err
}

// RegisterAssignment records the first start of taskID by userID.
func (c *Client) RegisterAssignment(ctx context.Context, taskID, userID int64) error {
	in := struct {
		TaskID int64 `json:"taskId"`
		UserID int64 `json:"userId"`
	}{taskID, userID}
	return c.do(ctx, "register assignment", http.MethodPost, "/task-assignments", nil, in, nil, true)
}

// ListQueries returns queries, optionally filtered by status ("" for all).
func (c *Client) ListQueries(ctx context.Context, status string) ([]model.Query, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	var out []model.Query
	err := c.do(ctx, "list queries", http.MethodGet, "/queries", q, nil, &out, true)
	return out, err
}

// RaiseQuery submits a query about a task.
func (c *Client) RaiseQuery(ctx context.Context, nq model.NewQuery) (model.Query, error) {
	var out model.Query
	err := c.do(ctx, "raise query", http.MethodPost, "/queries", nil, nq, &out, true)
	return out, err
}

// ListReplies returns replies, for one query when queryID > 0.
func (c *Client) ListReplies(ctx context.Context, queryID int64) ([]model.QueryReply, error) {
	q := url.Values{}
	if queryID > 0 {
		q.Set("queryId", strconv.FormatInt(queryID, 10))
	}
	var out []model.QueryReply
	err := c.do(ctx, "list replies", http.MethodGet, "/query-replies", q, nil, &out, true)
	return out, err
}

// Reply answers a query.
func (c *Client) Reply(ctx context.Context, nr model.NewReply) (model.QueryReply, error) {
	var out model.QueryReply
	err := c.do(ctx, "reply", http.MethodPost, "/query-replies", nil, nr, &out, true)
	return out, err
}

// ListEmployees returns users with the employee role.
func (c *Client) ListEmployees(ctx context.Context) ([]model.User, error) {
	q := url.Values{"role": {string(model.RoleEmployee)}}
	var out []model.User
	err := c.do(ctx, "list employees", http.MethodGet, "/users", q, nil, &out, true)
	return out, err
}

// Stats returns the superior overview.
func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	var out model.Stats
	err := c.do(ctx, "stats", http.MethodGet, "/stats", nil, nil, &out, true)
	return out, err
}

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, in, out any, auth bool) error {
	base, err := c.baseURL()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	u := *base
	u.Path += path
	u.RawQuery = query.Encode()

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		tok := ""
		if c.token != nil {
			if tok, err = c.token(ctx); err != nil {
				return err
			}
		}
		if tok == "" {
			return fmt.Errorf("%s: %w", op, errs.ErrUnauthorized)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &RemoteError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	c.log.Debug("api call",
		zap.String("op", op),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("dur", time.Since(start)),
	)

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return fmt.Errorf("%s: %w", op, errs.ErrUnauthorized)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		if json.Unmarshal(raw, &eb) != nil || eb.Error == "" {
			eb.Error = strings.TrimSpace(string(raw))
		}
		return &RemoteError{Op: op, Status: resp.StatusCode, Msg: eb.Error}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return &RemoteError{Op: op, Status: resp.StatusCode, Msg: "empty response"}
		}
		return &RemoteError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
