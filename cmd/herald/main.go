package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/herald/internal/config"
	"github.com/dukerupert/herald/internal/database"
	"github.com/dukerupert/herald/internal/email"
	"github.com/dukerupert/herald/internal/gateway"
	"github.com/dukerupert/herald/internal/logging"
	"github.com/dukerupert/herald/internal/model"
	"github.com/dukerupert/herald/internal/notify"
	"github.com/dukerupert/herald/internal/push"
	"github.com/dukerupert/herald/internal/repository"
	"github.com/dukerupert/herald/internal/server"
	"github.com/dukerupert/herald/internal/store"
	"github.com/dukerupert/herald/internal/websocket"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "vapid" {
		pub, priv, err := push.GenerateVAPIDKeys()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate VAPID keys: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("HERALD_VAPID_PUBLIC_KEY=%s\nHERALD_VAPID_PRIVATE_KEY=%s\n", pub, priv)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		slog.Error("failed to open repository", "error", err)
		os.Exit(1)
	}
	defer closeRepo()

	pushSvc := push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey, cfg.VAPIDSubscriber)
	if !cfg.PushEnabled() {
		slog.Warn("VAPID keys not set, push delivery disabled")
	}

	hub := websocket.NewHub(logger.With("component", "hub"))

	gw := gateway.New(repo, pushSvc, pushSvc,
		gateway.WithLogger(logger.With("component", "gateway")),
		gateway.WithPublisher(hub),
		gateway.WithAttachmentTimeout(cfg.AttachmentTimeout),
		gateway.WithAttachmentDir(cfg.AttachmentDir),
	)
	gw.RegisterCategories(model.DefaultCategories())

	opts := []notify.Option{
		notify.WithHub(hub),
		notify.WithLogger(logger.With("component", "notify")),
		notify.WithMaxConcurrency(cfg.MaxConcurrentDeliveries),
	}
	emailClient := email.NewClient(cfg.PostmarkToken, cfg.EmailFrom, cfg.BaseURL)
	if emailClient.Configured() {
		opts = append(opts, notify.WithMailer(emailClient))
	} else {
		slog.Warn("Postmark not configured, email delivery disabled")
	}
	svc := notify.New(repo, gw, opts...)

	sweeper := notify.NewSweeper(svc, cfg.SweepInterval, logger)
	sweeper.Start(ctx)

	srv := server.New(svc, hub, server.Config{
		VAPIDPublicKey:   pushSvc.VAPIDPublicKey(),
		WebSocketOrigins: cfg.AllowedWebSocketOrigins,
	}, logger)

	// No WriteTimeout: /ws connections stay open.
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				srv.RateLimiter().Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("herald starting", "addr", httpServer.Addr, "push", cfg.PushEnabled(), "email", emailClient.Configured())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	sweeper.Stop()
	gw.CancelAll()
}

// openRepository uses SQLite when HERALD_DB_PATH is set and an in-memory
// repository otherwise.
func openRepository(ctx context.Context, cfg config.Config) (repository.Repository, func(), error) {
	if cfg.DBPath == "" {
		slog.Warn("HERALD_DB_PATH not set, notifications are kept in memory")
		return repository.NewMemory(), func() {}, nil
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	s, err := store.New(ctx, db, store.WithTokenPassphrase(cfg.TokenPassphrase))
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return s, func() { db.Close() }, nil
}
