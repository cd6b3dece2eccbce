package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Hemant07J07/mhchat/internal/domain"
)

// Client calls a running mediation gateway from the chat client side.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a mediation gateway client for the gateway at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		httpClient: &http.Client{},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// Predict asks the gateway for a reply to one utterance plus history. Error
// responses are surfaced as errors carrying the gateway's error text, so the
// caller can show a single inline message.
func (c *Client) Predict(ctx context.Context, message string, history []domain.HistoryTurn) (*PredictResponse, error) {
	body, err := json.Marshal(PredictRequest{Message: message, History: history})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/ml/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		var payload struct {
			Error     string `json:"error"`
			RequestID string `json:"request_id"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorPayload))
		if err := json.Unmarshal(data, &payload); err != nil || payload.Error == "" {
			return nil, fmt.Errorf("gateway returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%s (request %s)", payload.Error, payload.RequestID)
	}

	var result PredictResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	return &result, nil
}

const maxErrorPayload = 4096
