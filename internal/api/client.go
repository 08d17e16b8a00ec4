package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultHTTPTimeout = 10 * time.Second
	httpTimeoutEnvKey  = "GCS_HTTP_TIMEOUT"
	userEnvKey         = "GCS_USER"
	passwordEnvKey     = "GCS_PASSWORD"
)

// Operation types a schema route may carry.
const (
	RouteList   = "list"
	RouteGet    = "get"
	RouteDelete = "delete"
	RouteAdd    = "add"
	RouteUpdate = "update"
)

type route struct {
	method string
	path   string
}

// Client is a simple HTTP client for a generated service.
type Client struct {
	baseURL  string
	env      string
	http     *http.Client
	username string
	password string
	routes   map[string]route
}

// NewClient creates a client that addresses environment env.
func NewClient(baseURL, env string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		env:      env,
		http:     &http.Client{Timeout: httpTimeoutFromEnv()},
		username: strings.TrimSpace(os.Getenv(userEnvKey)),
		password: os.Getenv(passwordEnvKey),
		routes: map[string]route{
			RouteList:   {http.MethodGet, "/list"},
			RouteGet:    {http.MethodGet, "/get"},
			RouteDelete: {http.MethodDelete, "/delete"},
			RouteAdd:    {http.MethodPost, "/add"},
			RouteUpdate: {http.MethodPost, "/update"},
		},
	}
}

// SetBasicAuth sets the credentials sent with every request.
func (c *Client) SetBasicAuth(username, password string) {
	c.username = strings.TrimSpace(username)
	c.password = password
}

// Ping checks whether the service is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/health", nil, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return nil
}

// Info returns the service summary.
func (c *Client) Info(ctx context.Context) (Info, error) {
	var out Info
	err := c.do(ctx, http.MethodGet, "/info", nil, nil, &out)
	return out, err
}

// Schema returns the raw service definition.
func (c *Client) Schema(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/schema", nil, nil, &out)
	return out, err
}

// UseSchema loads the service definition and addresses operations by the
// paths it declares.
func (c *Client) UseSchema(ctx context.Context) error {
	var schema struct {
		APIs map[string]struct {
			Method string `json:"method"`
			Type   string `json:"type"`
		} `json:"apis"`
	}
	if err := c.do(ctx, http.MethodGet, "/schema", nil, nil, &schema); err != nil {
		return err
	}
	for path, api := range schema.APIs {
		method := strings.ToUpper(api.Method)
		if method == "DEL" {
			method = http.MethodDelete
		}
		c.routes[api.Type] = route{method: method, path: path}
	}
	return nil
}

// List returns every record the list operation selects.
func (c *Client) List(ctx context.Context) ([]Record, error) {
	var out []Record
	err := c.op(ctx, RouteList, nil, nil, &out)
	return out, err
}

// Get returns one record, or nil when it does not exist.
func (c *Client) Get(ctx context.Context, id string) (*Record, error) {
	var out *Record
	err := c.op(ctx, RouteGet, url.Values{"id": {id}}, nil, &out)
	return out, err
}

// Add creates a record from fields.
func (c *Client) Add(ctx context.Context, fields map[string]any) (Record, error) {
	var out Record
	err := c.op(ctx, RouteAdd, nil, fields, &out)
	return out, err
}

// Update patches the fields of record id.
func (c *Client) Update(ctx context.Context, id string, fields map[string]any) (UpdateResponse, error) {
	var out UpdateResponse
	err := c.op(ctx, RouteUpdate, url.Values{"id": {id}}, fields, &out)
	return out, err
}

// Delete removes record id and its attachments.
func (c *Client) Delete(ctx context.Context, id string) (bool, error) {
	var out bool
	err := c.op(ctx, RouteDelete, url.Values{"id": {id}}, nil, &out)
	return out, err
}

// Upload streams one file to the service.
func (c *Client) Upload(ctx context.Context, params UploadParams, filename string, content io.Reader) (map[string]any, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, params, filename, content))
	}()

	req, err := c.newRequest(ctx, http.MethodPost, "/upload", nil, pr)
	if err != nil {
		pr.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out map[string]any
	if err := c.send(req, &out); err != nil {
		pr.Close()
		return nil, err
	}
	return out, nil
}

func writeUploadForm(mw *multipart.Writer, params UploadParams, filename string, content io.Reader) error {
	action := "add"
	if params.Edit {
		action = "edit"
	}
	fields := [][2]string{
		{"nid", params.RecordID},
		{"field", params.Field},
		{"position", strconv.Itoa(params.Position)},
		{"media", params.Media},
		{"action", action},
	}
	for _, kv := range fields {
		if err := mw.WriteField(kv[0], kv[1]); err != nil {
			return err
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(filename))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, content); err != nil {
		return err
	}
	return mw.Close()
}

// Download writes the content of blob id to w and returns its content type.
func (c *Client) Download(ctx context.Context, id string, w io.Writer) (string, int64, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/download", url.Values{"id": {id}}, nil)
	if err != nil {
		return "", 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", 0, decodeError(resp)
	}

	contentType := resp.Header.Get("Content-Type")
	if resp.Header.Get("X-Gcs-Envelope") == "true" {
		return "", 0, decodeEnvelope(resp.Body, nil)
	}
	n, err := io.Copy(w, resp.Body)
	return contentType, n, err
}

// DeleteFile removes one blob from its record.
func (c *Client) DeleteFile(ctx context.Context, params DeleteFileParams) error {
	query := url.Values{"id": {params.ID}}
	if params.RecordID != "" {
		query.Set("recordId", params.RecordID)
	}
	if params.Field != "" {
		query.Set("fieldName", params.Field)
	}
	return c.do(ctx, http.MethodGet, "/deleteFile", query, nil, nil)
}

func (c *Client) op(ctx context.Context, name string, query url.Values, body any, out any) error {
	r, ok := c.routes[name]
	if !ok {
		return fmt.Errorf("service has no %s operation", name)
	}
	return c.do(ctx, r.method, r.path, query, body, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.env != "" && query.Get("env") == "" {
		query.Set("env", c.env)
	}
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	c.setAuthHeader(req)
	return req, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, path, query, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	return decodeEnvelope(resp.Body, out)
}

func decodeEnvelope(r io.Reader, out any) error {
	var env Envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if !env.Result {
		if env.Errors == nil {
			return &EnvelopeFailure{Message: "request failed"}
		}
		return &EnvelopeFailure{Code: env.Errors.Code, Message: env.Errors.Message}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func decodeError(resp *http.Response) error {
	var errResp ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err == nil && errResp.Error != "" {
		return &APIError{Status: resp.StatusCode, Code: errResp.Code, ErrorCode: errResp.ErrorCode, Message: errResp.Error}
	}
	return &APIError{Status: resp.StatusCode, Message: fmt.Sprintf("api error: %s", resp.Status)}
}

func (c *Client) setAuthHeader(req *http.Request) {
	if c.username == "" || req == nil {
		return
	}
	req.SetBasicAuth(c.username, c.password)
}

func httpTimeoutFromEnv() time.Duration {
	value := strings.TrimSpace(os.Getenv(httpTimeoutEnvKey))
	if value == "" {
		return defaultHTTPTimeout
	}

	if duration, err := time.ParseDuration(value); err == nil && duration > 0 {
		return duration
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}

	return defaultHTTPTimeout
}
