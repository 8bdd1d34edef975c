// Package api is the REST client for the task server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/Joseda-hg/teamboard/internal/model"
)

const (
	defaultHttpTimeout        = 60 * time.Second
	defaultHttpConnectTimeout = 5 * time.Second
	defaultHttpTlsTimeout     = 5 * time.Second
)

func defaultClient() *http.Client {
	dialer := &net.Dialer{
		Timeout: defaultHttpConnectTimeout,
	}
	transport := &http.Transport{
		DialContext:         dialer.DialContext,
		TLSHandshakeTimeout: defaultHttpTlsTimeout,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   defaultHttpTimeout,
	}
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL string, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    defaultClient(),
	}
}

// WithHTTPClient swaps the underlying transport, mostly for tests.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }
func (c *Client) Token() string   { return c.token }

type TaskQuery struct {
	Date           string
	UserID         int64
	IncludeOverdue bool
	IncludeUsers   bool
}

func (q TaskQuery) values() url.Values {
	v := url.Values{}
	if q.Date != "" {
		v.Set("date", q.Date)
	}
	if q.UserID != 0 {
		v.Set("user_id", strconv.FormatInt(q.UserID, 10))
	}
	if q.IncludeOverdue {
		v.Set("include_overdue", "1")
	}
	if q.IncludeUsers {
		v.Set("include_users", "1")
	}
	return v
}

type TaskInput struct {
	Title       string          `json:"title"`
	Description string          `json:"description"`
	UserID      int64           `json:"user_id"`
	StartTime   string          `json:"start_time"`
	EndTime     string          `json:"end_time"`
	Status      string          `json:"status,omitempty"`
	Subtasks    []model.Subtask `json:"subtasks"`
	ProjectID   *int64          `json:"project_id,omitempty"`
}

type TaskUpdate struct {
	Title          string          `json:"title,omitempty"`
	Description    string          `json:"description,omitempty"`
	StartTime      string          `json:"start_time,omitempty"`
	EndTime        string          `json:"end_time,omitempty"`
	Status         string          `json:"status,omitempty"`
	CompletionNote string          `json:"completion_note,omitempty"`
	Subtasks       []model.Subtask `json:"subtasks"`
	Locked         *bool           `json:"locked,omitempty"`
}

// UpdateFromTask builds the PUT body carrying the full state of t.
func UpdateFromTask(t model.Task) TaskUpdate {
	locked := t.Locked
	subtasks := t.Subtasks
	if subtasks == nil {
		subtasks = []model.Subtask{}
	}
	return TaskUpdate{
		Title:          t.Title,
		Description:    t.Description,
		StartTime:      t.StartTime,
		EndTime:        t.EndTime,
		Status:         t.Status,
		CompletionNote: t.CompletionNote,
		Subtasks:       subtasks,
		Locked:         &locked,
	}
}

type ReassignInput struct {
	ToUserID  int64  `json:"to_user_id"`
	Reason    string `json:"reason,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
}

type NoteQuery struct {
	Date string
}

type NoteInput struct {
	Title        string  `json:"title"`
	Content      string  `json:"content"`
	Date         string  `json:"date"`
	RecipientIDs []int64 `json:"recipient_ids"`
}

type UserInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (c *Client) ListTasks(ctx context.Context, q TaskQuery) ([]model.Task, error) {
	return list[model.Task](ctx, c, "/tasks", q.values())
}

func (c *Client) GetTask(ctx context.Context, id int64) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, http.MethodGet, "/tasks/"+itoa(id), nil, nil, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, http.MethodPost, "/tasks", nil, in, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, id int64, in TaskUpdate) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, http.MethodPut, "/tasks/"+itoa(id), nil, in, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/tasks/"+itoa(id), nil, nil, nil)
}

func (c *Client) ReassignTask(ctx context.Context, id int64, in ReassignInput) (model.Task, error) {
	var out model.Task
	err := c.do(ctx, http.MethodPost, "/tasks/"+itoa(id)+"/reassign", nil, in, &out)
	return out, err
}

func (c *Client) ListNotes(ctx context.Context, q NoteQuery) ([]model.DailyNote, error) {
	v := url.Values{}
	if q.Date != "" {
		v.Set("date", q.Date)
	}
	return list[model.DailyNote](ctx, c, "/daily-note", v)
}

func (c *Client) CreateNote(ctx context.Context, in NoteInput) (model.DailyNote, error) {
	var out model.DailyNote
	err := c.do(ctx, http.MethodPost, "/daily-note", nil, in, &out)
	return out, err
}

func (c *Client) UpdateNote(ctx context.Context, id int64, in NoteInput) (model.DailyNote, error) {
	var out model.DailyNote
	err := c.do(ctx, http.MethodPut, "/daily-note/"+itoa(id), nil, in, &out)
	return out, err
}

func (c *Client) DeleteNote(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/daily-note/"+itoa(id), nil, nil, nil)
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	return list[model.User](ctx, c, "/users", nil)
}

func (c *Client) CreateUser(ctx context.Context, in UserInput) (model.User, error) {
	var out model.User
	err := c.do(ctx, http.MethodPost, "/users", nil, in, &out)
	return out, err
}

// ListReassignments returns the full log, or one user's entries when userID is set.
func (c *Client) ListReassignments(ctx context.Context, userID int64) ([]model.Reassignment, error) {
	if userID != 0 {
		return list[model.Reassignment](ctx, c, "/users/"+itoa(userID)+"/reassignments", nil)
	}
	return list[model.Reassignment](ctx, c, "/admin/reassignments", nil)
}

func (c *Client) GetProject(ctx context.Context, id int64, date string) (model.Project, error) {
	v := url.Values{}
	if date != "" {
		v.Set("date", date)
	}
	var out model.Project
	err := c.do(ctx, http.MethodGet, "/projects/"+itoa(id), v, nil, &out)
	return out, err
}

func (c *Client) RemoveProjectMember(ctx context.Context, projectID int64, userID int64) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+itoa(projectID)+"/members/"+itoa(userID), nil, nil, nil)
}

func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/projects/"+itoa(id), nil, nil, nil)
}

func list[R any](ctx context.Context, c *Client, path string, query url.Values) ([]R, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, path, query, nil, &raw); err != nil {
		return nil, err
	}
	return decodeList[R](raw)
}

// decodeList accepts a bare array or an object wrapping it in "data".
func decodeList[R any](raw json.RawMessage) ([]R, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return []R{}, nil
	}
	if raw[0] == '{' {
		var wrapped struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, err
		}
		raw = wrapped.Data
		if len(raw) == 0 {
			return []R{}, nil
		}
	}
	var out []R
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []R{}
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method string, path string, query url.Values, body any, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s %s: %w", method, path, err)
	}
	glog.V(2).Infof("[api]%s %s -> %d", method, path, resp.StatusCode)

	if resp.StatusCode/100 != 2 {
		return &StatusError{Code: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(data))
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
