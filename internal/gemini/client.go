// Package gemini is a client for the Gemini Interactions API, scoped
// to the Deep Research agent: create a background interaction and poll
// it by id. Research runs typically take several minutes; the agent
// synthesizes web sources into a markdown report.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/deepr/internal/research"
)

// DefaultBaseURL is the production Interactions API endpoint.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultAgent is the Deep Research agent identifier.
const DefaultAgent = "deep-research-pro-preview-12-2025"

// Client communicates with the Interactions API over HTTP. It
// implements research.Agent.
type Client struct {
	baseURL    string
	agent      string
	apiKey     string
	httpClient *http.Client
}

// New creates a Client. Empty baseURL or agent fall back to the
// defaults.
func New(apiKey, baseURL, agent string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if agent == "" {
		agent = DefaultAgent
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		agent:   agent,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type createRequest struct {
	Input      string `json:"input"`
	Agent      string `json:"agent"`
	Background bool   `json:"background"`
}

type interactionResponse struct {
	ID      string           `json:"id"`
	Status  string           `json:"status"`
	Agent   string           `json:"agent,omitempty"`
	Outputs []outputEntry    `json:"outputs,omitempty"`
	Error   *interactionFail `json:"error,omitempty"`
}

type outputEntry struct {
	Text string `json:"text"`
}

type interactionFail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Submit starts a background research interaction for the query and
// returns its identifier. The call is not idempotent and is never
// retried here.
func (c *Client) Submit(ctx context.Context, query string) (string, error) {
	body, err := json.Marshal(createRequest{
		Input:      query,
		Agent:      c.agent,
		Background: true,
	})
	if err != nil {
		return "", fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/interactions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("starting interaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", apiError(resp)
	}

	var ir interactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if ir.ID == "" {
		return "", fmt.Errorf("service returned no interaction id")
	}
	return ir.ID, nil
}

// Status fetches the current state of an interaction. It is a read:
// safe to call any number of times. A 404 wraps research.ErrNotFound.
func (c *Client) Status(ctx context.Context, interactionID string) (research.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/interactions/"+interactionID, nil)
	if err != nil {
		return research.Status{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return research.Status{}, fmt.Errorf("polling interaction: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return research.Status{}, fmt.Errorf("interaction %s: %w", interactionID, research.ErrNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return research.Status{}, apiError(resp)
	}

	var ir interactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&ir); err != nil {
		return research.Status{}, fmt.Errorf("decoding response: %w", err)
	}

	st := research.Status{
		InteractionID: interactionID,
		State:         stateFromWire(ir.Status),
	}
	if ir.ID != "" {
		st.InteractionID = ir.ID
	}

	for _, out := range ir.Outputs {
		st.Outputs = append(st.Outputs, out.Text)
	}
	if st.State == research.StateCompleted {
		if text, ok := st.Report(); ok {
			agent := ir.Agent
			if agent == "" {
				agent = c.agent
			}
			stats := research.ComputeStatistics(agent, text)
			st.Statistics = &stats
		}
	}

	if ir.Error != nil {
		st.ErrorCode = ir.Error.Code
		st.ErrorMessage = ir.Error.Message
		if st.ErrorCode == "" {
			st.ErrorCode = "UNKNOWN"
		}
	}

	return st, nil
}

// stateFromWire maps the wire status to a research.State. Unknown
// values pass through upper-cased so new service states surface
// verbatim instead of being misreported.
func stateFromWire(status string) research.State {
	switch strings.ToLower(status) {
	case "in_progress", "pending", "processing":
		return research.StateProcessing
	case "completed":
		return research.StateCompleted
	case "failed":
		return research.StateFailed
	case "cancelled":
		return research.StateCancelled
	default:
		return research.State(strings.ToUpper(status))
	}
}

func apiError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return fmt.Errorf("service returned %d (failed to read body: %w)", resp.StatusCode, err)
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("service returned %d", resp.StatusCode)
	}
	return fmt.Errorf("service returned %d: %s", resp.StatusCode, msg)
}
