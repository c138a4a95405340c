package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const noValidResponse = "No valid response generated."

var errBadStatus = errors.New("rag endpoint returned non-200 status")

// RAGClient posts prompts to the retrieval-augmented answer service
type RAGClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewRAGClient creates a client with the given request timeout
func NewRAGClient(endpoint string, timeout time.Duration) *RAGClient {
	return &RAGClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type ragRequest struct {
	Query string `json:"query"`
}

type ragResponse struct {
	Answer   string `json:"answer"`
	Response string `json:"response"`
}

// Ask sends one query and returns the answer, falling back to the response field
func (c *RAGClient) Ask(ctx context.Context, prompt string) (string, error) {
	payload, err := json.Marshal(ragRequest{Query: prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %d %s", errBadStatus, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out ragResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}

	switch {
	case strings.TrimSpace(out.Answer) != "":
		return strings.TrimSpace(out.Answer), nil
	case strings.TrimSpace(out.Response) != "":
		return strings.TrimSpace(out.Response), nil
	default:
		return noValidResponse, nil
	}
}
