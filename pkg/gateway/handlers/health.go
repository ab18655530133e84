package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pathwise-app/conversation-service/pkg/gateway/config"
	"github.com/pathwise-app/conversation-service/pkg/gateway/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		Draining bool     `json:"draining"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)

	if h.Config.SupabaseJWTSecret == "" {
		issues = append(issues, "supabase jwt secret not configured")
	}
	if h.Config.ElevenLabsAPIKey == "" {
		issues = append(issues, "elevenlabs api key not configured")
	}
	if h.Config.ElevenLabsAgentID == "" {
		issues = append(issues, "elevenlabs agent id not configured")
	}
	if h.Config.SessionTTL <= 0 {
		issues = append(issues, "session ttl must be > 0")
	}
	if h.Config.UpstreamMaxMessageBytes <= 0 {
		issues = append(issues, "upstream max message bytes must be > 0")
	}
	if h.Config.UpstreamConnectTimeout <= 0 {
		issues = append(issues, "upstream connect timeout must be > 0")
	}

	draining := h.Lifecycle.IsDraining()
	ok := len(issues) == 0 && !draining
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(readyResp{OK: ok, Draining: draining, Issues: issues})
}
