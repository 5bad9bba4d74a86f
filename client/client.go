// Package client is a Go client for the lead tracking API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/phbpx/leadtrack"
)

// APIError is returned for every non-2xx response.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  []string
}

func (e *APIError) Error() string {
	if len(e.Fields) > 0 {
		return fmt.Sprintf("HTTP %d: %s (%s)", e.Status, e.Message, strings.Join(e.Fields, ", "))
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsConflict reports whether err is a 409 from the API, which a lead update
// returns when the supplied version is stale.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// Client talks to a single API deployment.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout. It works on a copy, so an
// http.Client passed through WithHTTPClient is left as it was.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

// New returns a client for the API served at baseURL, e.g.
// "http://10.0.2.2:5001".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("base url %q must include scheme and host", baseURL)
	}

	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Page selects a window of a lead listing. The zero value lists everything.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) query() string {
	q := make(url.Values)
	if p.Limit > 0 {
		q.Set("limit", strconv.Itoa(p.Limit))
	}
	if p.Offset > 0 {
		q.Set("offset", strconv.Itoa(p.Offset))
	}
	if len(q) == 0 {
		return ""
	}
	return "?" + q.Encode()
}

// ListLeads fetches every lead.
func (c *Client) ListLeads(ctx context.Context, page Page) ([]leadtrack.Lead, error) {
	var leads []leadtrack.Lead
	if err := c.do(ctx, http.MethodGet, "/api/leads"+page.query(), nil, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

// ListUserLeads fetches the leads created by userID.
func (c *Client) ListUserLeads(ctx context.Context, userID string, page Page) ([]leadtrack.Lead, error) {
	var leads []leadtrack.Lead
	path := "/api/leads/" + url.PathEscape(userID) + page.query()
	if err := c.do(ctx, http.MethodGet, path, nil, &leads); err != nil {
		return nil, err
	}
	return leads, nil
}

// CreateLead stores a new lead and returns the record as the server saved it.
func (c *Client) CreateLead(ctx context.Context, nl leadtrack.NewLead) (leadtrack.Lead, error) {
	var lead leadtrack.Lead
	err := c.do(ctx, http.MethodPost, "/api/leads", nl, &lead)
	return lead, err
}

// UpdateLead applies a partial update to lead id.
func (c *Client) UpdateLead(ctx context.Context, id int64, patch leadtrack.LeadPatch) (leadtrack.Lead, error) {
	var lead leadtrack.Lead
	err := c.do(ctx, http.MethodPut, "/api/leads/"+strconv.FormatInt(id, 10), patch, &lead)
	return lead, err
}

// DeleteLead removes lead id.
func (c *Client) DeleteLead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/api/leads/"+strconv.FormatInt(id, 10), nil, nil)
}

// Stats fetches the pipeline aggregate.
func (c *Client) Stats(ctx context.Context) (leadtrack.Stats, error) {
	var stats leadtrack.Stats
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &stats)
	return stats, err
}

// RegisterUser records the signed-in user's profile.
func (c *Client) RegisterUser(ctx context.Context, u leadtrack.User) (leadtrack.User, error) {
	var user leadtrack.User
	err := c.do(ctx, http.MethodPost, "/api/users", u, &user)
	return user, err
}

// File is one image to upload.
type File struct {
	Name string
	Data io.Reader
}

// UploadImages sends files in a single multipart request and returns their
// public URLs in the same order. Relative URLs are resolved against the base
// URL so they can be stored on a lead and fetched directly.
func (c *Client) UploadImages(ctx context.Context, files ...File) ([]string, error) {
	if len(files) == 0 {
		return nil, leadtrack.ErrNoFiles
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile("images", f.Name)
		if err != nil {
			return nil, fmt.Errorf("create form file: %w", err)
		}
		if _, err := io.Copy(fw, f.Data); err != nil {
			return nil, fmt.Errorf("copy %s: %w", f.Name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp struct {
		ImageURLs []string `json:"imageUrls"`
	}
	if err := c.send(req, &resp); err != nil {
		return nil, err
	}

	urls := make([]string, len(resp.ImageURLs))
	for i, u := range resp.ImageURLs {
		urls[i] = c.resolve(u)
	}
	return urls, nil
}

func (c *Client) resolve(u string) string {
	if strings.HasPrefix(u, "/") {
		return c.baseURL + u
	}
	return u
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	return c.send(req, out)
}

func (c *Client) send(req *http.Request, out interface{}) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, body)
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w (body: %s)", err, string(body))
	}
	return nil
}

func decodeError(status int, body []byte) error {
	apiErr := &APIError{Status: status, Code: http.StatusText(status)}

	var payload struct {
		Code   string   `json:"code"`
		Error  string   `json:"error"`
		Fields []string `json:"fields"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Fields = payload.Fields
		if payload.Code != "" {
			apiErr.Code = payload.Code
		}
		return apiErr
	}

	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = apiErr.Code
	}
	return apiErr
}
