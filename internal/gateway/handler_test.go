package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
)

func newGatewayServer(t *testing.T, cfg UpstreamConfig) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	NewHandler(NewUpstream(cfg, nil), nil).RegisterRoutes(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func postPredict(t *testing.T, gatewayURL, body string) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := http.Post(gatewayURL+"/api/ml/predict", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("predict request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func TestPredictRejectsBlankMessageBeforeUpstream(t *testing.T) {
	t.Parallel()

	var upstreamCalls atomic.Int64
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		upstreamCalls.Add(1)
	}))
	defer upstream.Close()

	srv := newGatewayServer(t, DefaultUpstreamConfig(upstream.URL))

	for _, body := range []string{`{"message":""}`, `{"message":"   "}`, `{}`} {
		resp, payload := postPredict(t, srv.URL, body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d", body, resp.StatusCode)
		}
		if rid, _ := payload["request_id"].(string); rid == "" {
			t.Fatalf("body %s: expected a request_id", body)
		}
	}
	if got := upstreamCalls.Load(); got != 0 {
		t.Fatalf("expected upstream to never be called, got %d calls", got)
	}
}

func TestPredictRejectsInvalidJSON(t *testing.T) {
	t.Parallel()

	srv := newGatewayServer(t, DefaultUpstreamConfig("http://127.0.0.1:1"))
	resp, payload := postPredict(t, srv.URL, "this is not json")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if payload["error"] != "Invalid JSON body" {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
}

func TestPredictSuccessSynthesizesReply(t *testing.T) {
	t.Parallel()

	var gotHistoryLen int
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req upstreamRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		gotHistoryLen = len(req.History)
		_, _ = w.Write([]byte(`{"intent":"anxiety","intent_score":0.91,"crisis":false,"kb_hits":["Coping with Anxiety"]}`))
	}))
	defer upstream.Close()

	srv := newGatewayServer(t, DefaultUpstreamConfig(upstream.URL))
	body := `{"message":"I feel anxious and can't sleep.","history":[{"role":"user","content":"hi"}]}`
	resp, payload := postPredict(t, srv.URL, body)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	reply, _ := payload["reply"].(string)
	if !strings.HasPrefix(reply, "Coping with Anxiety") {
		t.Fatalf("expected reply to lead with the top hit, got %q", reply)
	}
	if !strings.HasSuffix(strings.TrimSpace(reply), "?") {
		t.Fatalf("expected a trailing follow-up question, got %q", reply)
	}
	if payload["crisis"] != false {
		t.Fatalf("expected crisis=false, got %v", payload["crisis"])
	}
	if payload["intent"] != "anxiety" {
		t.Fatalf("expected intent anxiety, got %v", payload["intent"])
	}
	if rid, _ := payload["request_id"].(string); rid == "" {
		t.Fatal("expected a request_id")
	}
	if gotHistoryLen != 1 {
		t.Fatalf("expected history forwarded, got %d turns", gotHistoryLen)
	}
}

func TestPredictCrisisReturnsFixedSafetyMessage(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"intent":"crisis","intent_score":0.99,"crisis":true,"kb_hits":[]}`))
	}))
	defer upstream.Close()

	srv := newGatewayServer(t, DefaultUpstreamConfig(upstream.URL))
	resp, payload := postPredict(t, srv.URL, `{"message":"I can't go on"}`)

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if payload["reply"] != crisisReply {
		t.Fatalf("expected the fixed safety message verbatim, got %q", payload["reply"])
	}
	if payload["crisis"] != true {
		t.Fatalf("expected crisis=true, got %v", payload["crisis"])
	}
	hits, ok := payload["kb_hits"].([]any)
	if !ok || len(hits) != 0 {
		t.Fatalf("expected empty kb_hits array, got %v", payload["kb_hits"])
	}
}

func TestPredictUpstreamErrorBecomes502WithTruncatedDetail(t *testing.T) {
	t.Parallel()

	longBody := strings.Repeat("x", 2000)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, longBody, http.StatusInternalServerError)
	}))
	defer upstream.Close()

	srv := newGatewayServer(t, DefaultUpstreamConfig(upstream.URL))
	resp, payload := postPredict(t, srv.URL, `{"message":"hello"}`)

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", resp.StatusCode)
	}
	if payload["error"] != "ML service error" {
		t.Fatalf("unexpected error: %v", payload["error"])
	}
	if got, _ := payload["status"].(float64); int(got) != http.StatusInternalServerError {
		t.Fatalf("expected upstream status 500, got %v", payload["status"])
	}
	detail, _ := payload["upstream"].(string)
	if len(detail) > 500 {
		t.Fatalf("expected upstream detail capped at 500 chars, got %d", len(detail))
	}
	if detail == "" {
		t.Fatal("expected upstream detail to be captured")
	}
}

func TestPredictTimeoutIsDistinctFromUnreachable(t *testing.T) {
	t.Parallel()

	stall := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-stall:
		case <-r.Context().Done():
		}
	}))
	defer upstream.Close()
	defer close(stall)

	cfg := DefaultUpstreamConfig(upstream.URL)
	cfg.Timeout = 50 * time.Millisecond
	srv := newGatewayServer(t, cfg)

	resp, payload := postPredict(t, srv.URL, `{"message":"hello"}`)
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}
	if payload["error"] != "ML service timeout" {
		t.Fatalf("expected timeout wording, got %v", payload["error"])
	}

	// An unreachable upstream is also a 504 but with different wording.
	srv = newGatewayServer(t, DefaultUpstreamConfig("http://127.0.0.1:1"))
	resp, payload = postPredict(t, srv.URL, `{"message":"hello"}`)
	if resp.StatusCode != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d", resp.StatusCode)
	}
	if payload["error"] != "Failed to reach ML service" {
		t.Fatalf("expected unreachable wording, got %v", payload["error"])
	}
}

func TestHealthReportsUpstreamReachability(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/docs" {
			t.Errorf("expected probe against /docs, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	srv := newGatewayServer(t, DefaultUpstreamConfig(upstream.URL))
	resp, err := http.Get(srv.URL + "/api/ml/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if !status.OK || status.Status != http.StatusOK {
		t.Fatalf("expected ok=true status=200, got %+v", status)
	}
}

func TestHealthNeverFailsWhenUpstreamUnreachable(t *testing.T) {
	t.Parallel()

	srv := newGatewayServer(t, DefaultUpstreamConfig("http://127.0.0.1:1"))
	resp, err := http.Get(srv.URL + "/api/ml/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status HealthStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode health: %v", err)
	}
	if status.OK || status.Status != 0 {
		t.Fatalf("expected ok=false status=0, got %+v", status)
	}
}
