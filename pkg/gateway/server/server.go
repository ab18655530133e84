package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/pathwise-app/conversation-service/pkg/gateway/config"
	"github.com/pathwise-app/conversation-service/pkg/gateway/handlers"
	"github.com/pathwise-app/conversation-service/pkg/gateway/lifecycle"
	"github.com/pathwise-app/conversation-service/pkg/gateway/metrics"
	"github.com/pathwise-app/conversation-service/pkg/gateway/mw"
	"github.com/pathwise-app/conversation-service/pkg/gateway/relays"
	"github.com/pathwise-app/conversation-service/pkg/gateway/session"
)

// Dependencies are the external collaborators the gateway talks to. They
// are constructed once at process start and injected here so handlers never
// reach for process-wide singletons.
type Dependencies struct {
	Verifier handlers.IdentityVerifier
	Profiles handlers.ProfileStore
	Upstream handlers.UpstreamDialer
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	sessions  *session.Store
	lifecycle *lifecycle.Lifecycle
	relays    *relays.Tracker
	metrics   *metrics.Metrics
}

func New(cfg config.Config, logger *slog.Logger, deps Dependencies) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		mux:       http.NewServeMux(),
		sessions:  session.NewStore(cfg.SessionTTL),
		lifecycle: &lifecycle.Lifecycle{},
		relays:    relays.NewTracker(),
		metrics:   metrics.New(),
	}

	s.routes(deps)
	return s
}

func (s *Server) routes(deps Dependencies) {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})
	s.mux.Handle("/metrics", s.metrics.Handler())

	s.mux.Handle("/api/conversation/session", handlers.SessionHandler{
		Config:   s.cfg,
		Logger:   s.logger,
		Verifier: deps.Verifier,
		Profiles: deps.Profiles,
		Sessions: s.sessions,
		Metrics:  s.metrics,
	})
	s.mux.Handle("/ws/conversation", handlers.SocketHandler{
		Config:    s.cfg,
		Logger:    s.logger,
		Sessions:  s.sessions,
		Profiles:  deps.Profiles,
		Upstream:  deps.Upstream,
		Lifecycle: s.lifecycle,
		Relays:    s.relays,
		Metrics:   s.metrics,
	})
	s.mux.Handle("/", handlers.NotFoundHandler{})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips the readiness probe and refuses new sockets; active
// relays keep running until they finish or are force-closed.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

func (s *Server) ActiveRelays() int {
	return s.relays.Count()
}

// WaitRelays blocks until all active relays finish or ctx is done.
func (s *Server) WaitRelays(ctx context.Context) bool {
	return s.relays.Wait(ctx)
}

// CloseRelays force-closes the sockets of every active relay.
func (s *Server) CloseRelays() int {
	return s.relays.CloseAll()
}
