package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Hemant07J07/mhchat/internal/domain"
	"github.com/Hemant07J07/mhchat/internal/token"
)

const (
	messagesPath     = "/api/messages/"
	maxErrorDetail   = 2048
	defaultRESTLimit = 30 * time.Second
)

// Client calls the chat backend's REST message API. It is the fallback send
// path when the socket is not open, and the resync path after a fallback
// send completes.
type Client struct {
	httpClient *http.Client
	baseURL    string
	tokens     token.Source
	logger     *slog.Logger
}

// NewClient creates a REST client for the backend at baseURL. Tokens may be
// nil, in which case requests carry no Authorization header.
func NewClient(baseURL string, tokens token.Source, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: defaultRESTLimit},
		baseURL:    strings.TrimRight(baseURL, "/"),
		tokens:     tokens,
		logger:     logger,
	}
}

// SendMessage posts one message to the conversation. The backend persists it
// and broadcasts to any open sockets; this path does not wait for a socket
// acknowledgment. A non-2xx response is surfaced as a send failure carrying
// the response body as detail.
func (c *Client) SendMessage(ctx context.Context, conversationID, sender, text string) (*domain.Message, error) {
	payload := map[string]string{
		"conversation": conversationID,
		"sender":       sender,
		"text":         text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode message payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+messagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
		return nil, fmt.Errorf("send message: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var msg domain.Message
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode created message: %w", err)
	}
	return &msg, nil
}

// ListMessages fetches the full ordered message list for a conversation,
// used to refresh the visible list after a REST-path send.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]domain.Message, error) {
	listURL := c.baseURL + messagesPath + "?conversation=" + url.QueryEscape(conversationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorDetail))
		return nil, fmt.Errorf("list messages: status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var messages []domain.Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decode message list: %w", err)
	}
	return messages, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.tokens == nil {
		return
	}
	if tok := c.tokens.AccessToken(); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
}
