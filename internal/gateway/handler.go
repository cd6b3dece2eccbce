// Package gateway implements the inference mediation gateway: a bounded
// proxy in front of the ML prediction service that normalizes upstream
// failures and synthesizes the user-facing reply.
package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Hemant07J07/mhchat/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// PredictRequest is the body accepted by the mediation endpoint.
type PredictRequest struct {
	Message string               `json:"message"`
	History []domain.HistoryTurn `json:"history,omitempty"`
}

// PredictResponse is the successful mediation result.
type PredictResponse struct {
	RequestID   string   `json:"request_id"`
	Reply       string   `json:"reply"`
	Intent      string   `json:"intent"`
	IntentScore float64  `json:"intent_score"`
	Crisis      bool     `json:"crisis"`
	KBHits      []string `json:"kb_hits"`
}

// Handler serves the mediation endpoints.
type Handler struct {
	upstream *Upstream
	logger   *slog.Logger
}

// NewHandler creates a mediation handler in front of upstream.
func NewHandler(upstream *Upstream, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{upstream: upstream, logger: logger}
}

// RegisterRoutes mounts the mediation endpoints on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/api/ml/predict", h.handlePredict)
	r.Get("/api/ml/health", h.handleHealth)
}

func (h *Handler) handlePredict(w http.ResponseWriter, r *http.Request) {
	// A fresh id per call, never derived from content.
	requestID := uuid.NewString()

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", requestID)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "'message' is required", requestID)
		return
	}

	pred, err := h.upstream.Predict(r.Context(), requestID, req.Message, req.History)
	if err != nil {
		h.respondUpstreamFailure(w, requestID, err)
		return
	}

	kbHits := pred.KBHits
	if kbHits == nil {
		kbHits = []string{}
	}
	writeJSON(w, http.StatusOK, PredictResponse{
		RequestID:   requestID,
		Reply:       Synthesize(*pred),
		Intent:      pred.Intent,
		IntentScore: pred.IntentScore,
		Crisis:      pred.Crisis,
		KBHits:      kbHits,
	})
}

// respondUpstreamFailure maps the upstream error taxonomy onto the gateway's
// status codes. Timeouts and reachability failures both map to 504 but stay
// distinguishable by message; a non-2xx upstream becomes a 502 with the
// original status and truncated body.
func (h *Handler) respondUpstreamFailure(w http.ResponseWriter, requestID string, err error) {
	var upErr *UpstreamError
	switch {
	case errors.As(err, &upErr):
		h.logger.Warn("ml upstream error", "request_id", requestID, "status", upErr.Status)
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":      "ML service error",
			"status":     upErr.Status,
			"upstream":   upErr.Body,
			"request_id": requestID,
		})
	case errors.Is(err, ErrUpstreamTimeout):
		h.logger.Warn("ml upstream timeout", "request_id", requestID)
		writeError(w, http.StatusGatewayTimeout, "ML service timeout", requestID)
	default:
		h.logger.Warn("ml upstream unreachable", "request_id", requestID, "error", err)
		writeError(w, http.StatusGatewayTimeout, "Failed to reach ML service", requestID)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.upstream.Health(r.Context()))
}
