package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"mail-agent/backend/pkg/models"
)

// HTTPMLClient is a Completer backed by a model sidecar that accepts
// {"prompt": ...} on POST {url}/generate and answers {"text": ...}.
type HTTPMLClient struct {
	url    string
	client *http.Client
}

// NewHTTPMLClient creates a new HTTPMLClient. An empty url is a
// ConfigurationError.
func NewHTTPMLClient(url string, client *http.Client) (*HTTPMLClient, error) {
	url = strings.TrimRight(strings.TrimSpace(url), "/")
	if url == "" {
		return nil, models.NotConfigured(ServiceSidecar, "llm.sidecar.url is not set")
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPMLClient{url: url, client: client}, nil
}

// Complete returns the sidecar's text for prompt.
func (c *HTTPMLClient) Complete(ctx context.Context, prompt string) (string, error) {
	requestBody, err := json.Marshal(map[string]string{"prompt": prompt})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url+"/generate", bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &models.UpstreamCallError{Service: ServiceSidecar, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &models.UpstreamCallError{
			Service:    ServiceSidecar,
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(body)),
		}
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &models.UpstreamCallError{Service: ServiceSidecar, Detail: "malformed response", Err: err}
	}
	return out.Text, nil
}
