package retrieval

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

	"floodguard-be/pkg/details"
	"floodguard-be/pkg/protocol"
)

var ErrNotFound = errors.New("retrieval: not found")

// APIError is a non-2xx answer from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("retrieval: status %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	Client  *http.Client
}

// NewClient talks to the REST API at baseURL (http://host:port).
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// FetchNews asks GET /api/news for articles related to the criteria.
func (c *Client) FetchNews(ctx context.Context, criteria details.NewsCriteria) ([]protocol.Article, error) {
	var res NewsResult
	if err := c.do(ctx, http.MethodGet, "/api/news?"+criteria.Values().Encode(), nil, &res); err != nil {
		return nil, err
	}
	if res.Articles == nil {
		res.Articles = []protocol.Article{}
	}
	return res.Articles, nil
}

// Search runs POST /api/search.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchResult, error) {
	var res SearchResult
	err := c.do(ctx, http.MethodPost, "/api/search", req, &res)
	return res, err
}

// Project loads one project by id.
func (c *Client) Project(ctx context.Context, id string) (protocol.Project, error) {
	var p protocol.Project
	err := c.do(ctx, http.MethodGet, "/api/projects/"+url.PathEscape(id), nil, &p)
	return p, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var envelope struct {
			Message string `json:"message"`
		}
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &envelope) == nil && envelope.Message != "" {
			msg = envelope.Message
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
