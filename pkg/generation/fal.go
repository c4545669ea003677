package generation

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// FalAdapter is the cloud-inference backend, grounded on fal_client.py.
// It owns its own *http.Client so callers can tune per-backend timeouts
// independently of other adapters, the same isolation
// ste's per-destination-type clients give azcopy.
type FalAdapter struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewFalAdapter(baseURL, apiKey string, client *http.Client) *FalAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &FalAdapter{BaseURL: baseURL, APIKey: apiKey, HTTP: client}
}

func (a *FalAdapter) Name() string { return "fal" }

type falSubmitRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	ImageURL    string `json:"image_url,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
}

type falSubmitResponse struct {
	RequestID string `json:"request_id"`
}

func (a *FalAdapter) Submit(ctx context.Context, cfg Config) (string, int, error) {
	body, err := json.Marshal(falSubmitRequest{
		Model: cfg.Model, Prompt: cfg.Prompt, ImageURL: cfg.ImageURL,
		Resolution: cfg.Resolution, DurationSec: cfg.DurationSec,
	})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/v1/generate", strings.NewReader(string(body)))
	if err != nil {
		return "", 0, err
	}
	req.Header.Set("Authorization", "Key "+a.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", resp.StatusCode, errors.Errorf("fal: submit failed with status %d", resp.StatusCode)
	}

	var out falSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", resp.StatusCode, errors.Wrap(err, "fal: decode submit response")
	}
	return out.RequestID, resp.StatusCode, nil
}

type falPollResponse struct {
	Status    string `json:"status"`
	ResultURL string `json:"result_url"`
}

func (a *FalAdapter) Poll(ctx context.Context, requestID string) (PollStatus, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.BaseURL+"/v1/requests/"+requestID, nil)
	if err != nil {
		return StatusFailed, "", 0, err
	}
	req.Header.Set("Authorization", "Key "+a.APIKey)

	resp, err := a.HTTP.Do(req)
	if err != nil {
		return StatusFailed, "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return StatusFailed, "", resp.StatusCode, errors.Errorf("fal: poll failed with status %d", resp.StatusCode)
	}

	var out falPollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatusFailed, "", resp.StatusCode, errors.Wrap(err, "fal: decode poll response")
	}

	switch out.Status {
	case "completed":
		return StatusCompleted, out.ResultURL, resp.StatusCode, nil
	case "failed":
		return StatusFailed, "", resp.StatusCode, errors.New("fal: generation failed")
	default:
		return StatusRunning, "", resp.StatusCode, nil
	}
}
