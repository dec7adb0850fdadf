package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"stemsplit/internal/core/domain"
)

const defaultBaseURL = "https://api.replicate.com/v1"

// Client implements ports.Runner against the Replicate predictions API.
type Client struct {
	baseURL string
	token   string
	version string
	client  *http.Client
}

// New creates a Client. Token and model version come from deployment
// configuration; their absence is detected on first use and reported as a
// configuration error before any request goes out, never retried.
func New(token, version string) *Client {
	return &Client{
		baseURL: defaultBaseURL,
		token:   token,
		version: version,
		client: &http.Client{
			Timeout: 1 * time.Minute,
		},
	}
}

func (c *Client) checkConfig() error {
	if c.token == "" {
		return &domain.ConfigError{Missing: "STEMSPLIT_API_TOKEN"}
	}
	if c.version == "" {
		return &domain.ConfigError{Missing: "STEMSPLIT_MODEL_VERSION"}
	}
	return nil
}

// WithBaseURL overrides the API base URL. Used by tests.
func (c *Client) WithBaseURL(base string) *Client {
	c.baseURL = base
	return c
}

// predictionResponse is the wire shape shared by creation and poll
// responses.
type predictionResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
	Output any    `json:"output"`
	Error  string `json:"error"`
}

// Submit starts one prediction for the given source audio URL.
func (c *Client) Submit(ctx context.Context, sourceURL string) (domain.JobHandle, error) {
	if err := c.checkConfig(); err != nil {
		return domain.JobHandle{}, err
	}
	input := map[string]any{
		"version": c.version,
		"input": map[string]any{
			"audio": sourceURL,
		},
	}
	body, _ := json.Marshal(input)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(body))
	if err != nil {
		return domain.JobHandle{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("failed to submit job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.JobHandle{}, &domain.RemoteAPIError{
			Op:         "submit",
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var pred predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return domain.JobHandle{}, &domain.ProtocolError{Reason: fmt.Sprintf("undecodable creation response: %v", err)}
	}
	return c.toHandle(pred)
}

// Poll re-queries the prediction's status endpoint.
func (c *Client) Poll(ctx context.Context, pollURL string) (domain.JobHandle, error) {
	if err := c.checkConfig(); err != nil {
		return domain.JobHandle{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pollURL, nil)
	if err != nil {
		return domain.JobHandle{}, err
	}
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("failed to poll job: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return domain.JobHandle{}, &domain.RemoteAPIError{
			Op:         "poll",
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
		}
	}

	var pred predictionResponse
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return domain.JobHandle{}, &domain.ProtocolError{Reason: fmt.Sprintf("undecodable poll response: %v", err)}
	}
	return c.toHandle(pred)
}

func (c *Client) toHandle(pred predictionResponse) (domain.JobHandle, error) {
	if pred.ID == "" {
		return domain.JobHandle{}, &domain.ProtocolError{Reason: "response carries no job id"}
	}
	status, err := mapStatus(pred.Status)
	if err != nil {
		return domain.JobHandle{}, err
	}
	return domain.JobHandle{
		RemoteID:    pred.ID,
		Status:      status,
		PollURL:     pred.URLs.Get,
		Output:      pred.Output,
		RemoteError: pred.Error,
	}, nil
}

// mapStatus normalizes the remote status vocabulary onto the closed
// domain set. Anything unrecognized fails closed rather than looping.
func mapStatus(s string) (domain.JobStatus, error) {
	switch s {
	case "starting":
		return domain.StatusPending, nil
	case "processing":
		return domain.StatusRunning, nil
	case "succeeded":
		return domain.StatusSucceeded, nil
	case "failed":
		return domain.StatusFailed, nil
	case "canceled":
		return domain.StatusCanceled, nil
	default:
		return "", &domain.ProtocolError{Reason: fmt.Sprintf("unrecognized job status %q", s)}
	}
}
