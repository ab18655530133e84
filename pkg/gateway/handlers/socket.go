package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pathwise-app/conversation-service/pkg/gateway/apierror"
	"github.com/pathwise-app/conversation-service/pkg/gateway/config"
	"github.com/pathwise-app/conversation-service/pkg/gateway/lifecycle"
	"github.com/pathwise-app/conversation-service/pkg/gateway/metrics"
	"github.com/pathwise-app/conversation-service/pkg/gateway/mw"
	"github.com/pathwise-app/conversation-service/pkg/gateway/relay"
	"github.com/pathwise-app/conversation-service/pkg/gateway/relays"
	"github.com/pathwise-app/conversation-service/pkg/gateway/session"
	"github.com/pathwise-app/conversation-service/pkg/gateway/upstream"
)

// SocketHandler handles GET /ws/conversation. It redeems the one-time
// credential carried in the query string, binds the owning identity,
// connects the upstream agent, sends the initiation frame, and hands both
// sockets to the relay until either side ends.
type SocketHandler struct {
	Config    config.Config
	Logger    *slog.Logger
	Sessions  *session.Store
	Profiles  ProfileStore
	Upstream  UpstreamDialer
	Lifecycle *lifecycle.Lifecycle
	Relays    *relays.Tracker
	Metrics   *metrics.Metrics
}

func (h SocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	reqID, _ := mw.RequestIDFrom(r.Context())

	if r.Method != http.MethodGet {
		apierror.WriteJSON(w, reqID, apierror.E(apierror.KindInvalidRequest, "method not allowed"))
		return
	}
	if h.Lifecycle.IsDraining() {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(apierror.Envelope{Error: &apierror.Error{
			Kind: apierror.KindInternal, Message: "service is draining", RequestID: reqID,
		}})
		return
	}
	if !h.originAllowed(r) {
		apierror.WriteJSON(w, reqID, apierror.E(apierror.KindUnauthenticated, "origin is not allowed"))
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	sessionToken := strings.TrimSpace(r.URL.Query().Get("session_token"))
	if sessionID == "" || sessionToken == "" {
		h.closeWith(conn, websocket.ClosePolicyViolation, "missing session credentials")
		return
	}

	ownerID, err := h.Sessions.Redeem(sessionID, sessionToken)
	if err != nil {
		h.Metrics.RedeemInvalid()
		h.closeWith(conn, apierror.CloseCode(apierror.KindOf(err)), err.Error())
		return
	}
	h.Metrics.RedeemOK()

	connectCtx, cancel := context.WithTimeout(r.Context(), h.connectTimeout())
	defer cancel()

	prof, err := h.Profiles.Fetch(connectCtx, ownerID)
	if err != nil {
		h.closeWith(conn, websocket.CloseInternalServerErr, apierror.From(err).Message)
		return
	}

	up, err := h.Upstream.Dial(connectCtx)
	if err != nil {
		h.closeWith(conn, websocket.CloseInternalServerErr, apierror.From(err).Message)
		return
	}

	// The agent expects the initiation frame before any client-origin
	// frame, so it goes out before the pumps start.
	initFrame, err := json.Marshal(upstream.Initiation(prof, h.Config.ElevenLabsVoiceID))
	if err == nil {
		err = up.WriteMessage(websocket.TextMessage, initFrame)
	}
	if err != nil {
		_ = up.Close()
		h.closeWith(conn, websocket.CloseInternalServerErr, "failed to initialize agent conversation")
		return
	}

	unregister := h.Relays.Register(sessionID, relays.Handle{
		Close: func() {
			_ = conn.Close()
			_ = up.Close()
		},
	})
	defer unregister()

	h.Metrics.RelayStarted()
	relayErr := relay.Run(conn, up)
	h.Metrics.RelayEnded(relayErr != nil)

	if relayErr != nil && h.Logger != nil {
		h.Logger.Warn("conversation relay ended with error",
			"session_id", sessionID,
			"request_id", reqID,
			"error", relayErr,
		)
	}
}

func (h SocketHandler) connectTimeout() time.Duration {
	if h.Config.UpstreamConnectTimeout > 0 {
		return h.Config.UpstreamConnectTimeout
	}
	return 10 * time.Second
}

func (h SocketHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if len(h.Config.CORSAllowedOrigins) == 0 {
		return false
	}
	_, ok := h.Config.CORSAllowedOrigins[origin]
	return ok
}

func (h SocketHandler) closeWith(conn *websocket.Conn, code int, reason string) {
	deadline := time.Now().Add(2 * time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	_ = conn.Close()
}
