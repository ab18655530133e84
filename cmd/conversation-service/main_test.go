package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pathwise-app/conversation-service/pkg/gateway/config"
)

type stubPool struct{}

func (stubPool) QueryRow(context.Context, string, ...any) pgx.Row { return nil }
func (stubPool) Close()                                           {}

func testRunConfig() config.Config {
	return config.Config{
		Addr:                          "127.0.0.1:0",
		SupabaseJWTSecret:             "secret",
		DatabaseURL:                   "postgres://localhost/convo",
		ElevenLabsAPIKey:              "xi-key",
		ElevenLabsAgentID:             "agent-1",
		ElevenLabsBaseURL:             "https://api.elevenlabs.io",
		SessionTTL:                    2 * time.Minute,
		UpstreamMaxMessageBytes:       16 << 20,
		ReadHeaderTimeout:             10 * time.Second,
		ShutdownGracePeriod:           5 * time.Second,
		UpstreamConnectTimeout:        10 * time.Second,
		UpstreamResponseHeaderTimeout: 20 * time.Second,
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func workingDeps(sendSignal bool) serviceDeps {
	return serviceDeps{
		loadConfig: func() (config.Config, error) { return testRunConfig(), nil },
		newPool: func(context.Context, string) (poolCloser, error) {
			return stubPool{}, nil
		},
		migrate: func(context.Context, string) error { return nil },
		signalNotify: func(c chan<- os.Signal, _ ...os.Signal) {
			if sendSignal {
				go func() { c <- syscall.SIGTERM }()
			}
		},
		signalStop: func(chan<- os.Signal) {},
	}
}

func TestRun_MissingDependencies(t *testing.T) {
	err := run(context.Background(), quietLogger(), serviceDeps{})
	if err == nil {
		t.Fatalf("run succeeded with no dependencies")
	}
}

func TestRun_ConfigErrorPropagates(t *testing.T) {
	cfgErr := errors.New("CONVO_SUPABASE_JWT_SECRET must be set")
	deps := workingDeps(false)
	deps.loadConfig = func() (config.Config, error) { return config.Config{}, cfgErr }

	err := run(context.Background(), quietLogger(), deps)
	if !errors.Is(err, cfgErr) {
		t.Fatalf("err=%v, want config error", err)
	}
}

func TestRun_MigrateErrorPropagates(t *testing.T) {
	migErr := errors.New("apply migrations: connection refused")
	deps := workingDeps(false)
	deps.loadConfig = func() (config.Config, error) {
		cfg := testRunConfig()
		cfg.DatabaseMigrate = true
		return cfg, nil
	}
	deps.migrate = func(context.Context, string) error { return migErr }

	err := run(context.Background(), quietLogger(), deps)
	if !errors.Is(err, migErr) {
		t.Fatalf("err=%v, want migrate error", err)
	}
}

func TestRun_PoolErrorPropagates(t *testing.T) {
	poolErr := errors.New("ping database: connection refused")
	deps := workingDeps(false)
	deps.newPool = func(context.Context, string) (poolCloser, error) { return nil, poolErr }

	err := run(context.Background(), quietLogger(), deps)
	if !errors.Is(err, poolErr) {
		t.Fatalf("err=%v, want pool error", err)
	}
}

func TestRun_ShutsDownOnSignal(t *testing.T) {
	errCh := make(chan error, 1)
	go func() {
		errCh <- run(context.Background(), quietLogger(), workingDeps(true))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not shut down after signal")
	}
}

func TestRun_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		errCh <- run(ctx, quietLogger(), workingDeps(false))
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err=%v, want context.Canceled", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run did not return after cancellation")
	}
}

func TestRunMain_ReportsFailure(t *testing.T) {
	deps := workingDeps(false)
	deps.loadConfig = func() (config.Config, error) {
		return config.Config{}, errors.New("CONVO_DATABASE_URL must be set")
	}

	var stderr bytes.Buffer
	code := runMain(context.Background(), &stderr, deps)
	if code != 1 {
		t.Fatalf("exit code=%d", code)
	}
	if !strings.Contains(stderr.String(), "CONVO_DATABASE_URL") {
		t.Fatalf("stderr=%q", stderr.String())
	}
}
