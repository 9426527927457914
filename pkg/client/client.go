package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kurihiro0119/bucket-harvest/internal/domain"
)

// Client is the API client for the bucket-harvest report API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// APIError is a non-200 answer from the report API
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: %d - %s", e.Status, e.Message)
	}
	return fmt.Sprintf("API error: %d %s - %s", e.Status, e.Code, e.Message)
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListRuns retrieves archived runs, newest first. An empty owner lists all.
func (c *Client) ListRuns(ctx context.Context, owner string, limit int) ([]*domain.HarvestRun, error) {
	params := url.Values{}
	if owner != "" {
		params.Set("owner", owner)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var response struct {
		Data []*domain.HarvestRun `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/runs", params, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetRun retrieves a run header
func (c *Client) GetRun(ctx context.Context, id string) (*domain.HarvestRun, error) {
	var response struct {
		Data *domain.HarvestRun `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetRunRepositories retrieves the ranked repository metrics of a run
func (c *Client) GetRunRepositories(ctx context.Context, id string) ([]domain.RepositoryMetrics, error) {
	var response struct {
		Data []domain.RepositoryMetrics `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id)+"/repositories", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetRunIssues retrieves the issue records of a run
func (c *Client) GetRunIssues(ctx context.Context, id string) ([]domain.IssueRecord, error) {
	var response struct {
		Data []domain.IssueRecord `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id)+"/issues", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// GetRunFailures retrieves the failures of a run
func (c *Client) GetRunFailures(ctx context.Context, id string) ([]domain.Failure, error) {
	var response struct {
		Data []domain.Failure `json:"data"`
	}
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id)+"/failures", nil, &response); err != nil {
		return nil, err
	}
	return response.Data, nil
}

// HealthCheck checks if the API is healthy
func (c *Client) HealthCheck(ctx context.Context) error {
	var response struct {
		Status string `json:"status"`
	}
	if err := c.get(ctx, "/health", nil, &response); err != nil {
		return err
	}
	if response.Status != "ok" {
		return fmt.Errorf("unhealthy status: %s", response.Status)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return err
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
		var envelope struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Error.Code != "" {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	return json.NewDecoder(resp.Body).Decode(result)
}
