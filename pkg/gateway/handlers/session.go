package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/pathwise-app/conversation-service/pkg/gateway/apierror"
	"github.com/pathwise-app/conversation-service/pkg/gateway/auth"
	"github.com/pathwise-app/conversation-service/pkg/gateway/config"
	"github.com/pathwise-app/conversation-service/pkg/gateway/metrics"
	"github.com/pathwise-app/conversation-service/pkg/gateway/mw"
	"github.com/pathwise-app/conversation-service/pkg/gateway/session"
)

// SessionHandler handles POST /api/conversation/session: it verifies the
// caller's identity, checks that a profile exists, and mints a one-time
// credential for the socket upgrade.
type SessionHandler struct {
	Config   config.Config
	Logger   *slog.Logger
	Verifier IdentityVerifier
	Profiles ProfileStore
	Sessions *session.Store
	Metrics  *metrics.Metrics
}

type sessionResponse struct {
	SessionID        string `json:"session_id"`
	SessionToken     string `json:"session_token"`
	WSURL            string `json:"ws_url"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

func (h SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	if r.Method != http.MethodPost {
		apierror.WriteJSON(w, reqID, apierror.E(apierror.KindInvalidRequest, "method not allowed"))
		return
	}

	raw, ok := auth.ParseBearer(r)
	if !ok {
		apierror.WriteJSON(w, reqID, apierror.E(apierror.KindUnauthenticated, "missing bearer token"))
		return
	}

	identity, err := h.Verifier.Verify(r.Context(), raw)
	if err != nil {
		apierror.WriteJSON(w, reqID, err)
		return
	}

	// Validate that the profile exists up front so the client gets a
	// deterministic error before a credential is minted.
	if _, err := h.Profiles.Fetch(r.Context(), identity.UserID); err != nil {
		apierror.WriteJSON(w, reqID, err)
		return
	}

	cred := h.Sessions.Issue(identity.UserID)
	h.Metrics.SessionIssued()

	resp := sessionResponse{
		SessionID:        cred.SessionID,
		SessionToken:     cred.SessionToken,
		WSURL:            h.socketURL(r, cred),
		ExpiresInSeconds: int(h.Sessions.TTL().Seconds()),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h SessionHandler) socketURL(r *http.Request, cred session.Credential) string {
	base := strings.TrimRight(h.Config.PublicWSBase, "/")
	if base == "" {
		scheme := "ws"
		if r.TLS != nil {
			scheme = "wss"
		}
		base = scheme + "://" + r.Host
	}

	q := url.Values{}
	q.Set("session_id", cred.SessionID)
	q.Set("session_token", cred.SessionToken)
	return base + "/ws/conversation?" + q.Encode()
}
