package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foliumhq/folium/internal/auth"
	"github.com/foliumhq/folium/internal/background"
	"github.com/foliumhq/folium/internal/config"
	"github.com/foliumhq/folium/internal/database"
	"github.com/foliumhq/folium/internal/handlers"
	"github.com/foliumhq/folium/internal/repositories"
	"github.com/foliumhq/folium/internal/routes"
	"github.com/foliumhq/folium/internal/services"
	"github.com/foliumhq/folium/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.Server)
	slog.SetDefault(log)

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 60*time.Second)
	err = db.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		log.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	credentialRepo := repositories.NewCredentialRepository(db)
	challengeRepo := repositories.NewLoginChallengeRepository(db)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.SessionTokenExpiry)
	totpManager := auth.NewTOTPManager(cfg.Auth.TOTPIssuer)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:   cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs: cfg.Auth.TimingDelayRandomMs,
	})
	auditLogger := logger.NewAuditLogger(log)

	loginService := services.NewLoginService(
		credentialRepo, challengeRepo, tokenManager, totpManager,
		timingDelay, auditLogger, log, cfg.Auth,
	)
	twoFactorService := services.NewTwoFactorService(credentialRepo, totpManager, auditLogger, log)

	cleanup := background.NewCleanupManager(challengeRepo, log, cfg.Auth.CleanupInterval)
	cleanup.Start()
	defer cleanup.Stop()

	router := routes.New(routes.Dependencies{
		Config:       cfg,
		DB:           db,
		Logger:       log,
		TokenManager: tokenManager,
		AuthHandler:  handlers.NewAuthHandler(loginService),
		TwoFactor:    handlers.NewTwoFactorHandler(twoFactorService),
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server starting", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}

func newLogger(cfg config.ServerConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if cfg.Env == "production" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
