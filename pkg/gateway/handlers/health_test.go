package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pathwise-app/conversation-service/pkg/gateway/config"
	"github.com/pathwise-app/conversation-service/pkg/gateway/lifecycle"
)

func readyConfig() config.Config {
	return config.Config{
		SupabaseJWTSecret:       "secret",
		ElevenLabsAPIKey:        "xi-key",
		ElevenLabsAgentID:       "agent-1",
		SessionTTL:              2 * time.Minute,
		UpstreamMaxMessageBytes: 16 << 20,
		UpstreamConnectTimeout:  10 * time.Second,
	}
}

type readyResponse struct {
	OK       bool     `json:"ok"`
	Draining bool     `json:"draining"`
	Issues   []string `json:"issues"`
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler{}.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	if rec.Body.String() != "ok\n" {
		t.Fatalf("body=%q", rec.Body.String())
	}
}

func TestReadyHandler_OK(t *testing.T) {
	h := ReadyHandler{Config: readyConfig(), Lifecycle: &lifecycle.Lifecycle{}}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d, body=%s", rec.Code, rec.Body.String())
	}
	var resp readyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.OK || resp.Draining || len(resp.Issues) != 0 {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestReadyHandler_MissingConfigReportsIssues(t *testing.T) {
	cfg := readyConfig()
	cfg.ElevenLabsAPIKey = ""
	h := ReadyHandler{Config: cfg, Lifecycle: &lifecycle.Lifecycle{}}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp readyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.OK || len(resp.Issues) == 0 {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestReadyHandler_Draining(t *testing.T) {
	lc := &lifecycle.Lifecycle{}
	lc.SetDraining(true)
	h := ReadyHandler{Config: readyConfig(), Lifecycle: lc}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rec.Code)
	}
	var resp readyResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Draining {
		t.Fatalf("resp=%+v", resp)
	}
}
