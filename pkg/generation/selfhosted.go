package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// selfHostedAdapter is the shared shape behind VastAIAdapter, SwarmUIAdapter,
// and PinokioAdapter: all three talk to a self-hosted GPU box reachable
// through an operator-supplied tunnel URL, using the same submit/poll
// JSON shape but a distinct name for cooldown/rate-limit/metrics keying.
// Grounded on vastai_client.py, swarmui_client.py, and pinokio_client.py,
// which share this same tunnel-URL + bearer-token calling convention in
// the original service.
type selfHostedAdapter struct {
	name    string
	tunnelURL string
	token   string
	http    *http.Client
}

func (a *selfHostedAdapter) Name() string { return a.name }

type selfHostedSubmitRequest struct {
	Model       string `json:"model"`
	Prompt      string `json:"prompt"`
	ImageURL    string `json:"image_url,omitempty"`
	Resolution  string `json:"resolution,omitempty"`
	DurationSec int    `json:"duration_sec,omitempty"`
}

type selfHostedSubmitResponse struct {
	JobID string `json:"job_id"`
}

func (a *selfHostedAdapter) Submit(ctx context.Context, cfg Config) (string, int, error) {
	body, err := json.Marshal(selfHostedSubmitRequest{
		Model: cfg.Model, Prompt: cfg.Prompt, ImageURL: cfg.ImageURL,
		Resolution: cfg.Resolution, DurationSec: cfg.DurationSec,
	})
	if err != nil {
		return "", 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.tunnelURL+"/generate", strings.NewReader(string(body)))
	if err != nil {
		return "", 0, err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", resp.StatusCode, fmt.Errorf("%s: submit failed with status %d", a.name, resp.StatusCode)
	}

	var out selfHostedSubmitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", resp.StatusCode, err
	}
	return out.JobID, resp.StatusCode, nil
}

type selfHostedPollResponse struct {
	State     string `json:"state"`
	OutputURL string `json:"output_url"`
}

func (a *selfHostedAdapter) Poll(ctx context.Context, requestID string) (PollStatus, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.tunnelURL+"/jobs/"+requestID, nil)
	if err != nil {
		return StatusFailed, "", 0, err
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return StatusFailed, "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return StatusFailed, "", resp.StatusCode, fmt.Errorf("%s: poll failed with status %d", a.name, resp.StatusCode)
	}

	var out selfHostedPollResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return StatusFailed, "", resp.StatusCode, err
	}

	switch out.State {
	case "done":
		return StatusCompleted, out.OutputURL, resp.StatusCode, nil
	case "error":
		return StatusFailed, "", resp.StatusCode, fmt.Errorf("%s: generation failed", a.name)
	default:
		return StatusRunning, "", resp.StatusCode, nil
	}
}

// VastAIAdapter talks to a Vast.ai-rented GPU instance, grounded on
// vastai_client.py/vastai_orchestrator.py.
type VastAIAdapter struct{ selfHostedAdapter }

func NewVastAIAdapter(tunnelURL, token string, client *http.Client) *VastAIAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &VastAIAdapter{selfHostedAdapter{name: "vastai", tunnelURL: tunnelURL, token: token, http: client}}
}

// SwarmUIAdapter talks to a local SwarmUI instance, grounded on
// swarmui_client.py.
type SwarmUIAdapter struct{ selfHostedAdapter }

func NewSwarmUIAdapter(tunnelURL, token string, client *http.Client) *SwarmUIAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &SwarmUIAdapter{selfHostedAdapter{name: "swarmui", tunnelURL: tunnelURL, token: token, http: client}}
}

// PinokioAdapter talks to a Pinokio-hosted pipeline, grounded on
// pinokio_client.py.
type PinokioAdapter struct{ selfHostedAdapter }

func NewPinokioAdapter(tunnelURL, token string, client *http.Client) *PinokioAdapter {
	if client == nil {
		client = http.DefaultClient
	}
	return &PinokioAdapter{selfHostedAdapter{name: "pinokio", tunnelURL: tunnelURL, token: token, http: client}}
}
