package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pliu/chatterbox/internal/auth"
	"github.com/pliu/chatterbox/internal/config"
	"github.com/pliu/chatterbox/internal/handlers"
	"github.com/pliu/chatterbox/internal/logging"
	"github.com/pliu/chatterbox/internal/services"
	"github.com/pliu/chatterbox/internal/store"
	"github.com/pliu/chatterbox/internal/store/badgerstore"
	"github.com/pliu/chatterbox/internal/store/mongostore"
	"github.com/pliu/chatterbox/internal/store/sqlstore"
	"github.com/pliu/chatterbox/internal/ws"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	os.Exit(run())
}

// run owns every resource so deferred cleanup happens before the process exits.
func run() int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfig
	}

	log, err := logging.New(os.Stderr, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		return exitConfig
	}

	tokens, err := auth.NewIssuer(cfg.JWTSecretKey, cfg.TokenTTL)
	if err != nil {
		log.Error("token issuer", "error", err)
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("open store", "driver", cfg.StoreDriver, "error", err)
		return exitRuntime
	}
	defer func() {
		log.Info("closing store")
		_ = st.Close()
	}()

	hub := ws.NewHub(log)
	go hub.Run(ctx)

	router := handlers.NewRouter(handlers.RouterConfig{
		Auth:      services.NewAuthService(st, tokens, log),
		Messaging: services.NewMessagingService(st, st, st, hub, log),
		Tokens:    tokens,
		Hub:       hub,
		Log:       log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Info("server started", "addr", srv.Addr, "driver", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errChan:
		log.Error("server failed", "error", err)
		return exitRuntime
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
		return exitRuntime
	}
	log.Info("server stopped")
	return exitOK
}

func openStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMongo:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		return mongostore.New(connectCtx, cfg.StoreDSN, cfg.MongoDatabase)
	case config.DriverBadger:
		return badgerstore.Open(cfg.StoreDSN, log)
	default:
		return sqlstore.New(cfg.StoreDriver, cfg.StoreDSN)
	}
}
