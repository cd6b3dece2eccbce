package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Hemant07J07/mhchat/internal/domain"
)

var (
	// ErrUpstreamTimeout reports that the inference call exceeded its
	// deadline. Always distinct from a generic reachability failure.
	ErrUpstreamTimeout = errors.New("ml service timeout")
	// ErrUpstreamUnreachable reports a failed connection to the inference
	// service.
	ErrUpstreamUnreachable = errors.New("failed to reach ml service")
)

// UpstreamError reports a non-2xx inference service response, carrying the
// original status and a bounded prefix of the response body for diagnostics.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("ml service returned status %d", e.Status)
}

const (
	defaultUpstreamTimeout = 8 * time.Second
	defaultHistoryLimit    = 10
	maxUpstreamDetail      = 500
)

// UpstreamConfig holds configuration for the inference service client.
type UpstreamConfig struct {
	BaseURL      string
	Timeout      time.Duration
	HistoryLimit int
}

// DefaultUpstreamConfig returns default configuration.
func DefaultUpstreamConfig(baseURL string) UpstreamConfig {
	return UpstreamConfig{
		BaseURL:      baseURL,
		Timeout:      defaultUpstreamTimeout,
		HistoryLimit: defaultHistoryLimit,
	}
}

// Upstream calls the inference service. Every Predict is a fresh roundtrip
// under its own deadline; responses are never cached, so a crisis assessment
// can never be served stale.
type Upstream struct {
	httpClient   *http.Client
	baseURL      string
	timeout      time.Duration
	historyLimit int
	logger       *slog.Logger
}

// NewUpstream creates an inference service client.
func NewUpstream(cfg UpstreamConfig, logger *slog.Logger) *Upstream {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultUpstreamTimeout
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	return &Upstream{
		httpClient:   &http.Client{},
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		timeout:      cfg.Timeout,
		historyLimit: cfg.HistoryLimit,
		logger:       logger,
	}
}

type upstreamRequest struct {
	Message string               `json:"message"`
	History []domain.HistoryTurn `json:"history,omitempty"`
}

// Predict sends one utterance plus bounded history to the inference service.
// The log line carries the request id and message byte length only, never
// content.
func (u *Upstream) Predict(ctx context.Context, requestID, message string, history []domain.HistoryTurn) (*Prediction, error) {
	u.logger.Info("ml predict", "request_id", requestID, "bytes", len(message))

	body, err := json.Marshal(upstreamRequest{
		Message: message,
		History: capHistory(history, u.historyLimit),
	})
	if err != nil {
		return nil, fmt.Errorf("encode predict request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build predict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := u.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, ErrUpstreamTimeout
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnreachable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamDetail))
		return nil, &UpstreamError{Status: resp.StatusCode, Body: string(detail)}
	}

	var pred Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() == context.DeadlineExceeded {
			return nil, ErrUpstreamTimeout
		}
		return nil, fmt.Errorf("decode prediction: %w", err)
	}
	return &pred, nil
}

// HealthStatus is the result of the upstream reachability probe.
type HealthStatus struct {
	OK     bool `json:"ok"`
	Status int  `json:"status"`
}

// Health probes the inference service. It never fails: an unreachable
// upstream reports ok=false with status 0.
func (u *Upstream) Health(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.baseURL+"/docs", nil)
	if err != nil {
		return HealthStatus{}
	}
	resp, err := u.httpClient.Do(req)
	if err != nil {
		return HealthStatus{}
	}
	defer func() { _ = resp.Body.Close() }()
	return HealthStatus{
		OK:     resp.StatusCode >= 200 && resp.StatusCode <= 299,
		Status: resp.StatusCode,
	}
}

// capHistory keeps the most recent limit turns, role and content only.
func capHistory(history []domain.HistoryTurn, limit int) []domain.HistoryTurn {
	if len(history) > limit {
		history = history[len(history)-limit:]
	}
	if len(history) == 0 {
		return nil
	}
	capped := make([]domain.HistoryTurn, len(history))
	for i, turn := range history {
		capped[i] = domain.HistoryTurn{Role: turn.Role, Content: turn.Content}
	}
	return capped
}
