package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"

	"github.com/pathwise-app/conversation-service/internal/db"
	"github.com/pathwise-app/conversation-service/pkg/gateway/auth"
	"github.com/pathwise-app/conversation-service/pkg/gateway/config"
	"github.com/pathwise-app/conversation-service/pkg/gateway/profile"
	gatewayserver "github.com/pathwise-app/conversation-service/pkg/gateway/server"
	"github.com/pathwise-app/conversation-service/pkg/gateway/upstream"
)

type serviceDeps struct {
	loadConfig   func() (config.Config, error)
	newPool      func(context.Context, string) (poolCloser, error)
	migrate      func(context.Context, string) error
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

type poolCloser interface {
	profile.Querier
	Close()
}

func defaultServiceDeps() serviceDeps {
	return serviceDeps{
		loadConfig: config.LoadFromEnv,
		newPool: func(ctx context.Context, url string) (poolCloser, error) {
			return db.NewPool(ctx, url)
		},
		migrate: db.Migrate,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

func buildUpstreamConnector(cfg config.Config) *upstream.Connector {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.UpstreamConnectTimeout,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}
	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: cfg.UpstreamConnectTimeout,
	}
	return upstream.NewConnector(cfg.ElevenLabsAPIKey, cfg.ElevenLabsAgentID, upstream.Options{
		BaseURL:         cfg.ElevenLabsBaseURL,
		HTTPClient:      httpClient,
		Dialer:          dialer,
		MaxMessageBytes: cfg.UpstreamMaxMessageBytes,
	})
}

func run(ctx context.Context, logger *slog.Logger, deps serviceDeps) error {
	if deps.loadConfig == nil || deps.newPool == nil || deps.migrate == nil {
		return errors.New("missing service dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.DatabaseMigrate {
		if err := deps.migrate(ctx, cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	pool, err := deps.newPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	gw := gatewayserver.New(cfg, logger, gatewayserver.Dependencies{
		Verifier: auth.NewSupabaseVerifier(cfg.SupabaseJWTSecret, cfg.JWTAudience),
		Profiles: profile.NewStore(pool),
		Upstream: buildUpstreamConnector(cfg),
	})
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting conversation service", "addr", cfg.Addr, "session_ttl", cfg.SessionTTL)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.SetDraining()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.WaitRelays(waitCtx) {
		n := gw.CloseRelays()
		logger.Warn("force-closed active relays", "count", n)
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("conversation service stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps serviceDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(stderr, "conversation-service: load .env: %v\n", err)
		return 1
	}

	if err := run(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "conversation-service: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultServiceDeps()))
}
