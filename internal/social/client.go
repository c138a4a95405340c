package social

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/moodmate/moodmate-backend/internal/config"
	"github.com/moodmate/moodmate-backend/internal/models"
)

// The timeline endpoint rejects max_results outside this range
const (
	minPageSize = 5
	maxPageSize = 100
)

// Client reads users and posts from the X API v2
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
}

// NewClient creates a new API client
func NewClient(cfg config.SocialConfig) *Client {
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		bearerToken: cfg.BearerToken,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type userLookupResponse struct {
	Data *struct {
		ID string `json:"id"`
	} `json:"data"`
}

type timelineResponse struct {
	Data []models.Post `json:"data"`
}

// LookupUserID resolves a username to the API's internal user id
func (c *Client) LookupUserID(ctx context.Context, username string) (string, error) {
	var resp userLookupResponse
	if err := c.get(ctx, "/users/by/username/"+url.PathEscape(username), nil, &resp); err != nil {
		return "", err
	}

	if resp.Data == nil || resp.Data.ID == "" {
		return "", fmt.Errorf("%w: %s", models.ErrAccountNotFound, username)
	}
	return resp.Data.ID, nil
}

// RecentPosts fetches up to maxResults of the user's most recent posts, newest first.
// A response without data yields an empty slice.
func (c *Client) RecentPosts(ctx context.Context, userID string, maxResults int) ([]models.Post, error) {
	pageSize := maxResults
	if pageSize < minPageSize {
		pageSize = minPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	query := url.Values{}
	query.Set("max_results", strconv.Itoa(pageSize))
	query.Set("tweet.fields", "created_at,text")

	var resp timelineResponse
	if err := c.get(ctx, "/users/"+url.PathEscape(userID)+"/tweets", query, &resp); err != nil {
		return nil, err
	}

	posts := resp.Data
	if maxResults > 0 && len(posts) > maxResults {
		posts = posts[:maxResults]
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// get performs a single authenticated GET and decodes the JSON body into out
func (c *Client) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.bearerToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: API returned status %d", models.ErrUpstreamUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
