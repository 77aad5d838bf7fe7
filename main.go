package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collabdocs/config"
	"collabdocs/config/broker"
	"collabdocs/config/database"
	"collabdocs/internal/document/feed"
	"collabdocs/internal/document/repository"
	"collabdocs/internal/document/service"
	"collabdocs/internal/notify"
	"collabdocs/pkg/logger"
	"collabdocs/router"
	"collabdocs/socket"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Sugar.Fatalf("Invalid configuration: %v", err)
	}
	logger.Init(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db := database.Connect(cfg.DatabaseURL())
	defer db.Close()
	if err := database.EnsureSchema(ctx, db); err != nil {
		logger.Sugar.Fatalf("Failed to create schema: %v", err)
	}

	rc := broker.Connect(cfg.RedisAddr)
	defer rc.Close()

	repo := repository.NewDocumentRepository(db)
	docFeed := feed.NewFeed(rc, cfg.RedisChannel)

	// The hub owns the live rooms; the feed worker pushes every persisted
	// snapshot into them.
	hub := socket.NewHub(repo)
	go hub.Run(ctx)
	go hub.FeedWorker(ctx, docFeed)

	docService := service.NewDocumentService(repo, docFeed, hub)
	docService.Notifier, err = newPipeline(cfg, repo)
	if err != nil {
		logger.Sugar.Fatalf("Invalid notification settings: %v", err)
	}

	server := &http.Server{
		Addr: cfg.Addr,
		Handler: router.Setup(docService, hub, cfg.JWTSecret,
			db.PingContext,
			func(ctx context.Context) error { return rc.Ping(ctx).Err() },
		),
	}

	go func() {
		logger.Sugar.Infof("Server listening on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("Server shutdown: %v", err)
	}
	if err := docService.WaitNotifications(shutdownCtx); err != nil {
		logger.Sugar.Warnf("Pending notifications abandoned: %v", err)
	}
}

func newPipeline(cfg config.Config, docs notify.DocumentLister) (*notify.Pipeline, error) {
	scope, err := notify.ParseScope(cfg.NotifyScope)
	if err != nil {
		return nil, err
	}
	renderer := notify.HTMLRenderer{AppURL: cfg.AppURL}

	var mailer notify.Mailer = notify.LogMailer{Renderer: renderer, Logf: logger.Sugar.Infof}
	if cfg.SMTPHost != "" {
		mailer = notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
			Timeout:  20 * time.Second,
		}, renderer)
	} else {
		logger.Sugar.Warn("SMTP_HOST is not set, notifications are only logged")
	}

	return notify.NewPipeline(notify.NewResolver(docs, scope), notify.NewDispatcher(mailer, 30*time.Second)), nil
}
