// Package client calls the tally HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/sadopc/tally/internal/api"
	"github.com/sadopc/tally/internal/dashboard"
	"github.com/sadopc/tally/internal/export"
	"github.com/sadopc/tally/internal/timeutil"
)

// Client is an authenticated API client. It implements timer.Backend.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// New creates a client for the given address or URL.
func New(addr, token string, opts ...Option) *Client {
	baseURL := strings.TrimRight(addr, "/")
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	c := &Client{baseURL: baseURL, token: token, client: &http.Client{}}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// ============================================================
// Timer
// ============================================================

func (c *Client) StartTimer(ctx context.Context, req api.StartTimerRequest) (*api.TimeEntry, error) {
	var entry api.TimeEntry
	if err := c.do(ctx, http.MethodPost, "/api/timer/start", nil, req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) StopTimer(ctx context.Context) (*api.TimeEntry, error) {
	var entry api.TimeEntry
	if err := c.do(ctx, http.MethodPost, "/api/timer/stop", nil, nil, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// ActiveTimer returns the open entry, or nil when no timer runs.
func (c *Client) ActiveTimer(ctx context.Context) (*api.TimeEntry, error) {
	var entry *api.TimeEntry
	if err := c.do(ctx, http.MethodGet, "/api/timer/active", nil, nil, &entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// ============================================================
// Time entries
// ============================================================

// EntryQuery filters ListEntries. Zero fields are not sent.
type EntryQuery struct {
	ProjectID string
	TaskID    string
	Limit     int
}

func (c *Client) ListEntries(ctx context.Context, q EntryQuery) ([]api.TimeEntry, error) {
	params := url.Values{}
	setParam(params, "projectId", q.ProjectID)
	setParam(params, "taskId", q.TaskID)
	if q.Limit > 0 {
		params.Set("limit", strconv.Itoa(q.Limit))
	}
	var entries []api.TimeEntry
	if err := c.do(ctx, http.MethodGet, "/api/time-entries", params, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *Client) EditEntry(ctx context.Context, id string, req api.EditEntryRequest) (*api.TimeEntry, error) {
	var entry api.TimeEntry
	if err := c.do(ctx, http.MethodPatch, "/api/time-entries/"+url.PathEscape(id), nil, req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/time-entries/"+url.PathEscape(id), nil, nil, &api.Success{})
}

// ============================================================
// Dashboard
// ============================================================

func (c *Client) Dashboard(ctx context.Context, r timeutil.Range) (*dashboard.Snapshot, error) {
	params := url.Values{}
	setParam(params, "range", string(r))
	var snap dashboard.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/dashboard", params, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Export streams a report into w and returns the server's suggested
// filename.
func (c *Client) Export(ctx context.Context, r timeutil.Range, f export.Format, w io.Writer) (string, error) {
	params := url.Values{}
	setParam(params, "range", string(r))
	setParam(params, "format", string(f))
	resp, err := c.send(ctx, http.MethodGet, "/api/dashboard/export", params, nil, "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", readErrorResponse(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("read export: %w", err)
	}
	return attachmentFilename(resp.Header.Get("Content-Disposition")), nil
}

// ============================================================
// Projects and tasks
// ============================================================

// ProjectQuery filters ListProjects.
type ProjectQuery struct {
	Query  string
	Status string
	Sort   string
}

func (c *Client) ListProjects(ctx context.Context, q ProjectQuery) ([]api.Project, error) {
	params := url.Values{}
	setParam(params, "q", q.Query)
	setParam(params, "status", q.Status)
	setParam(params, "sort", q.Sort)
	var projects []api.Project
	if err := c.do(ctx, http.MethodGet, "/api/projects", params, nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

func (c *Client) CreateProject(ctx context.Context, req api.ProjectCreateRequest) (*api.Project, error) {
	var p api.Project
	if err := c.do(ctx, http.MethodPost, "/api/projects", nil, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) GetProject(ctx context.Context, id string) (*api.ProjectDetail, error) {
	var d api.ProjectDetail
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (c *Client) UpdateProject(ctx context.Context, id string, req api.ProjectUpdateRequest) (*api.Project, error) {
	var p api.Project
	if err := c.do(ctx, http.MethodPatch, "/api/projects/"+url.PathEscape(id), nil, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) DeleteProject(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/projects/"+url.PathEscape(id), nil, nil, &api.Success{})
}

func (c *Client) ListTasks(ctx context.Context, projectID string) ([]api.Task, error) {
	var tasks []api.Task
	if err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(projectID)+"/tasks", nil, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) CreateTask(ctx context.Context, req api.TaskCreateRequest) (*api.Task, error) {
	var t api.Task
	if err := c.do(ctx, http.MethodPost, "/api/tasks", nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) UpdateTask(ctx context.Context, id string, req api.TaskUpdateRequest) (*api.Task, error) {
	var t api.Task
	if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), nil, req, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil, &api.Success{})
}

// ============================================================
// Attachments
// ============================================================

func (c *Client) ListAttachments(ctx context.Context, projectID, taskID string) ([]api.Attachment, error) {
	params := url.Values{}
	setParam(params, "projectId", projectID)
	setParam(params, "taskId", taskID)
	var out []api.Attachment
	if err := c.do(ctx, http.MethodGet, "/api/attachments", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UploadAttachment sends r as a multipart file upload.
func (c *Client) UploadAttachment(ctx context.Context, projectID string, taskID *string, filename string, r io.Reader) (*api.Attachment, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("projectId", projectID); err != nil {
		return nil, err
	}
	if taskID != nil {
		if err := mw.WriteField("taskId", *taskID); err != nil {
			return nil, err
		}
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, http.MethodPost, "/api/attachments/upload", nil, &body, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, readErrorResponse(resp)
	}
	var a api.Attachment
	if err := json.NewDecoder(resp.Body).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode attachment: %w", err)
	}
	return &a, nil
}

// DownloadAttachment copies the attachment bytes into w.
func (c *Client) DownloadAttachment(ctx context.Context, id string, w io.Writer) error {
	resp, err := c.send(ctx, http.MethodGet, "/api/attachments/"+url.PathEscape(id), nil, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readErrorResponse(resp)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("read attachment: %w", err)
	}
	return nil
}

func (c *Client) DeleteAttachment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/attachments/"+url.PathEscape(id), nil, nil, &api.Success{})
}

// ============================================================
// Settings
// ============================================================

func (c *Client) GetSettings(ctx context.Context) (*api.Settings, error) {
	var s api.Settings
	if err := c.do(ctx, http.MethodGet, "/api/settings", nil, nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (c *Client) UpdateSettings(ctx context.Context, req api.SettingsUpdateRequest) (*api.Settings, error) {
	var s api.Settings
	if err := c.do(ctx, http.MethodPatch, "/api/settings", nil, req, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Health checks that the server is up. It does not need a token.
func (c *Client) Health(ctx context.Context) error {
	var payload map[string]string
	return c.do(ctx, http.MethodGet, "/health", nil, nil, &payload)
}

// ============================================================
// Transport
// ============================================================

func (c *Client) do(ctx context.Context, method, path string, params url.Values, payload, dest any) error {
	var body io.Reader
	contentType := ""
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	resp, err := c.send(ctx, method, path, params, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return readErrorResponse(resp)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, params url.Values, body io.Reader, contentType string) (*http.Response, error) {
	target := c.baseURL + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func readErrorResponse(resp *http.Response) error {
	apiErr := &api.Error{Status: resp.StatusCode}
	var payload api.ErrorBody
	if err := json.NewDecoder(resp.Body).Decode(&payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Details = payload.Details
		return apiErr
	}
	apiErr.Message = resp.Status
	return apiErr
}

func setParam(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

func attachmentFilename(disposition string) string {
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
