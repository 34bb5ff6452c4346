package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"helpdeskai/internal/app"
	"helpdeskai/internal/config"
	"helpdeskai/internal/ratelimit"
	"helpdeskai/internal/scheduler"
	"helpdeskai/internal/server"
	"helpdeskai/internal/util"
	"helpdeskai/pkg/auth"
	"helpdeskai/pkg/storage"
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.InitLogger(cfg.LogLevel)

	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		log.Fatalf("failed to parse session ttl: %v", err)
	}
	generatorTimeout, err := config.ParseGeneratorTimeout(cfg.GeneratorTimeout)
	if err != nil {
		log.Fatalf("failed to parse generator timeout: %v", err)
	}

	var attachments storage.ObjectStore
	if cfg.MinioEndpoint != "" {
		attachments, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			log.Fatalf("failed to init object store: %v", err)
		}
	}

	appCore, err := app.New(app.Config{
		DatabaseURL:      cfg.DatabaseURL,
		GeminiAPIKey:     cfg.GeminiAPIKey,
		GenerationModel:  cfg.GenerationModel,
		Attachments:      attachments,
		MessageCap:       cfg.MessageCap,
		GeneratorTimeout: generatorTimeout,
	})
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	sessions, err := auth.NewSessionManager(cfg.JWTSecret, sessionTTL, appCore.Store(), util.NewID)
	if err != nil {
		log.Fatalf("failed to init session manager: %v", err)
	}

	var loginLimiter *ratelimit.FixedWindowLimiter
	if cfg.RedisAddr != "" {
		window, err := config.ParseLoginRateWindow(cfg.LoginRateWindow)
		if err != nil {
			log.Fatalf("failed to parse login rate window: %v", err)
		}
		limit := cfg.LoginRateLimit
		if limit <= 0 {
			limit = 10
		}
		loginLimiter, err = ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "helpdesk:login", limit, window)
		if err != nil {
			log.Fatalf("failed to init login rate limiter: %v", err)
		}
	}

	articleScheduler, err := scheduler.New(appCore, scheduler.Config{
		MorningSpec: cfg.MorningCron,
		EveningSpec: cfg.EveningCron,
		JobTimeout:  2 * generatorTimeout,
	})
	if err != nil {
		log.Fatalf("failed to init scheduler: %v", err)
	}

	httpServer, err := server.New(server.Config{
		App:          appCore,
		Sessions:     sessions,
		Credentials:  auth.NewAdminCredentials(cfg.AdminUsername, cfg.AdminPasswordHash),
		Scheduler:    articleScheduler,
		LoginLimiter: loginLimiter,
	})
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	articleScheduler.Start()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("helpdesk server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := articleScheduler.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler stop timed out", "err", err)
		}
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}
