package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/vmunix/bulkimport/internal/batch"
)

// Client wraps HTTP calls to the bulkimport server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new bulkimport API client.
func NewClient(serverURL string) *Client {
	return &Client{
		baseURL: serverURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// APIError is an error response from the server.
type APIError struct {
	Status  int
	Code    string `json:"code"`
	Message string `json:"error"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (c *Client) do(method, path string, body, result any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(data, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return apiErr
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		return json.NewDecoder(resp.Body).Decode(result)
	}
	return nil
}

// API response types (mirror server types)

type JobResponse struct {
	batch.Progress
	Label            string `json:"label"`
	BatchSize        int    `json:"batch_size,omitempty"`
	ConcurrencyLimit int    `json:"concurrency_limit,omitempty"`
	AdmissionCeiling int    `json:"admission_ceiling"`
}

type StartJobRequest struct {
	Paths     []string `json:"paths"`
	Mode      string   `json:"mode,omitempty"`
	Folder    string   `json:"folder,omitempty"`
	Recursive bool     `json:"recursive,omitempty"`
}

type ListResultsResponse struct {
	Items  []batch.Result `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

func (c *Client) Job() (*JobResponse, error) {
	var resp JobResponse
	if err := c.do(http.MethodGet, "/api/v1/job", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) StartJob(req StartJobRequest) (*JobResponse, error) {
	var resp JobResponse
	if err := c.do(http.MethodPost, "/api/v1/job", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Command sends pause, resume, cancel or restart.
func (c *Client) Command(name string) (*JobResponse, error) {
	var resp JobResponse
	if err := c.do(http.MethodPost, "/api/v1/job/"+url.PathEscape(name), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) ClearJob() error {
	return c.do(http.MethodDelete, "/api/v1/job", nil, nil)
}

func (c *Client) Results(outcome string, limit, offset int) (*ListResultsResponse, error) {
	params := url.Values{}
	if outcome != "" {
		params.Set("outcome", outcome)
	}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	var resp ListResultsResponse
	if err := c.do(http.MethodGet, "/api/v1/job/results?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
