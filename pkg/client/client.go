// Package client is a Go client for the filedeck HTTP API.
//
//	c := client.New("http://localhost:8000")
//	files, err := c.ListFiles(ctx, "/srv/inbox")
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the address the server listens on by default.
const DefaultBaseURL = "http://localhost:8000"

// FileInfo describes one regular file in a listing.
type FileInfo struct {
	Name     string `json:"name"`
	FullPath string `json:"full_path"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
}

// Preview is a file preview. Data holds a data URI for "image" and "text"
// types; Name is set for "other".
type Preview struct {
	Type string `json:"type"`
	Data string `json:"preview_data,omitempty"`
	Name string `json:"name,omitempty"`
}

// APIError is a non-2xx response from the server.
type APIError struct {
	Status int
	Detail string
	Code   string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("filedeck: %d %s: %s", e.Status, e.Code, e.Detail)
	}
	return fmt.Sprintf("filedeck: %d: %s", e.Status, e.Detail)
}

// IsStatus reports whether err is an APIError with the given HTTP status.
func IsStatus(err error, status int) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.Status == status
}

// Client calls the filedeck API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	requestID  func() string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestID sets a generator for the X-Request-ID header.
func WithRequestID(gen func() string) Option {
	return func(c *Client) { c.requestID = gen }
}

// New creates a client for the server at baseURL. An empty baseURL means
// DefaultBaseURL.
func New(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListFiles returns the regular files directly inside dirPath.
func (c *Client) ListFiles(ctx context.Context, dirPath string) ([]FileInfo, error) {
	var out []FileInfo
	err := c.do(ctx, http.MethodGet, "/files", url.Values{"dir_path": {dirPath}}, nil, &out)
	return out, err
}

// CountFiles returns the number of regular files directly inside dirPath.
func (c *Client) CountFiles(ctx context.Context, dirPath string) (int, error) {
	var out struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "/files/count", url.Values{"dir_path": {dirPath}}, nil, &out)
	return out.Count, err
}

type pathResult struct {
	Success bool   `json:"success"`
	NewPath string `json:"new_path"`
}

// MoveFile moves srcPath into destDir and returns the new path.
func (c *Client) MoveFile(ctx context.Context, srcPath, destDir string) (string, error) {
	var out pathResult
	body := map[string]string{"src_path": srcPath, "dest_dir": destDir}
	err := c.do(ctx, http.MethodPost, "/files/move", nil, body, &out)
	return out.NewPath, err
}

// RenameFile renames srcPath to newName within its directory and returns
// the new path.
func (c *Client) RenameFile(ctx context.Context, srcPath, newName string) (string, error) {
	var out pathResult
	body := map[string]string{"src_path": srcPath, "new_name": newName}
	err := c.do(ctx, http.MethodPost, "/files/rename", nil, body, &out)
	return out.NewPath, err
}

// PreviewFile returns a preview of filePath.
func (c *Client) PreviewFile(ctx context.Context, filePath string) (*Preview, error) {
	var out Preview
	if err := c.do(ctx, http.MethodGet, "/files/preview", url.Values{"file_path": {filePath}}, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LoadConfig returns the raw settings document stored at path, or at the
// server's default location when path is empty.
func (c *Client) LoadConfig(ctx context.Context, path string) (json.RawMessage, error) {
	var q url.Values
	if path != "" {
		q = url.Values{"path": {path}}
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, "/config", q, nil, &out)
	return out, err
}

// SaveConfig stores config, which must marshal to a JSON object, and
// returns the path it was written to.
func (c *Client) SaveConfig(ctx context.Context, config any, path string) (string, error) {
	body := struct {
		Config any     `json:"config"`
		Path   *string `json:"path"`
	}{Config: config}
	if path != "" {
		body.Path = &path
	}
	var out struct {
		Success bool   `json:"success"`
		Path    string `json:"path"`
	}
	err := c.do(ctx, http.MethodPost, "/config", nil, body, &out)
	return out.Path, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("filedeck: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("filedeck: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.requestID != nil {
		req.Header.Set("X-Request-ID", c.requestID())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("filedeck: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("filedeck: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("filedeck: decode response: %w", err)
	}
	return nil
}

func decodeError(status int, data []byte) error {
	ae := &APIError{Status: status}
	var body struct {
		Detail string `json:"detail"`
		Code   string `json:"code"`
	}
	if json.Unmarshal(data, &body) == nil && body.Detail != "" {
		ae.Detail, ae.Code = body.Detail, body.Code
	} else {
		ae.Detail = strings.TrimSpace(string(data))
	}
	return ae
}
