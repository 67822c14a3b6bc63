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

	"github.com/lmittmann/tint"
	"golang.org/x/crypto/bcrypt"

	"games_catalog/internal/clients/igdb"
	ssogrpc "games_catalog/internal/clients/sso/grpc"
	"games_catalog/internal/config"
	"games_catalog/internal/identity"
	"games_catalog/internal/routes"
	"games_catalog/internal/storage/database"
	"games_catalog/internal/storage/uploads"
	"games_catalog/internal/web"
)

const (
	envLocal = "local"
	envProd  = "prod"
)

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting games catalog", slog.String("env", cfg.Env), slog.String("identity", cfg.Identity.Provider))

	storage, err := database.New(cfg.Database, log)
	if err != nil {
		log.Error("failed to connect database", slog.String("error", err.Error()))
		os.Exit(1)
	}

	defer func() {
		if err := storage.Close(); err != nil {
			log.Error("failed to close database", slog.String("error", err.Error()))
		}
	}()

	if err := storage.Migrate(); err != nil {
		log.Error("migration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log.Info("database init")

	uploadsStorage, err := uploads.NewUploads(cfg.UploadsPath)
	if err != nil {
		log.Error("failed to create uploads storage", slog.String("error", err.Error()))
		os.Exit(1)
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		log.Error("failed to parse templates", slog.String("error", err.Error()))
		os.Exit(1)
	}

	deps := routes.Deps{
		Storage:  storage,
		Uploads:  uploadsStorage,
		Catalog:  igdb.New(log, cfg.IGDB),
		Sessions: identity.NewSessionManager(cfg.Session),
		Hasher:   identity.NewPasswordHasher(bcrypt.DefaultCost),
		Renderer: renderer,
		Cors:     cfg.Cors,
	}

	if cfg.Identity.Provider == config.ProviderSSO {
		ssoClient, err := ssogrpc.New(log, cfg.Clients.SSO)
		if err != nil {
			log.Error("failed to create sso client", slog.String("error", err.Error()))
			os.Exit(1)
		}

		defer func() {
			if err := ssoClient.Close(); err != nil {
				log.Error("failed to close sso client", slog.String("error", err.Error()))
			}
		}()

		deps.SSO = ssoClient
		deps.SSOAppID = cfg.Clients.SSO.AppID
	}

	r := routes.SetupRouter(log, deps)

	log.Info("routes init")

	server := &http.Server{
		Addr:         cfg.Address,
		Handler:      r,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	serverErrors := make(chan error, 1)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("starting server", slog.String("address", cfg.Address))
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", slog.String("error", err.Error()))
		}

	case sig := <-shutdown:
		log.Info("shutting down", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Error("graceful shutdown error", slog.String("error", err.Error()))
			if err := server.Close(); err != nil {
				log.Error("force shutdown error", slog.String("error", err.Error()))
			}
		}
	}

	log.Info("server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = slog.New(
			tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug, TimeFormat: time.Kitchen}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return log
}
