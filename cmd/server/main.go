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

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/omshejul/passkey-service/internal/api"
	"github.com/omshejul/passkey-service/internal/audit"
	"github.com/omshejul/passkey-service/internal/auth"
	"github.com/omshejul/passkey-service/internal/oauth"
	"github.com/omshejul/passkey-service/internal/passkeys"
	"github.com/omshejul/passkey-service/internal/storage"
	"github.com/omshejul/passkey-service/internal/ui"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup WebAuthn
	wconfig := &webauthn.Config{
		RPDisplayName: "Passkey Account Service",
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	}

	webAuthn, err := webauthn.New(wconfig)
	if err != nil {
		slog.Error("Failed to create WebAuthn instance", "error", err)
		os.Exit(1)
	}

	// Setup the durable store; opened here, closed at shutdown, passed to
	// services explicitly.
	store, err := storage.OpenSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to open sqlite store", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Using SQLite storage", "path", cfg.DBPath)

	// Setup session storage
	var sessionStorage storage.SessionStorage
	switch cfg.SessionMode {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}

		sessionStorage = storage.NewRedisSessionStorage(redisClient)
		slog.Info("Using Redis sessions", "addr", cfg.Redis.Addr)
	case "memory":
		sessionStorage = storage.NewMemorySessionStorage()
		slog.Warn("Using in-memory sessions (not persistent)")
	default:
		slog.Error("Invalid SESSION_MODE", "mode", cfg.SessionMode, "valid_modes", []string{"redis", "memory"})
		os.Exit(1)
	}

	// Setup audit trail
	var recorder audit.Recorder
	switch cfg.AuditMode {
	case "s3":
		s3Recorder, err := audit.NewS3Recorder(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.UseSSL)
		if err != nil {
			slog.Error("Failed to create S3 audit recorder", "error", err)
			os.Exit(1)
		}
		recorder = s3Recorder
		slog.Info("Using S3 audit trail", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
	case "filesystem":
		fsRecorder, err := audit.NewFilesystemRecorder(cfg.AuditPath)
		if err != nil {
			slog.Error("Failed to create filesystem audit recorder", "error", err)
			os.Exit(1)
		}
		recorder = fsRecorder
		slog.Info("Using filesystem audit trail", "path", cfg.AuditPath)
	default:
		recorder = audit.Noop{}
	}

	// Setup Google OAuth
	googleConfig, err := cfg.GoogleOAuthConfig()
	if err != nil {
		slog.Error("Failed to load Google OAuth config", "error", err)
		os.Exit(1)
	}
	googleProvider := oauth.NewGoogleProvider(googleConfig)

	// Setup services
	webauthnService := auth.NewWebAuthnService(webAuthn, store, store, sessionStorage, recorder)
	oauthService := oauth.NewService(googleProvider, store, sessionStorage, recorder)
	passkeyService := passkeys.NewService(store, recorder)
	apiServer := api.NewServer(webauthnService, oauthService, passkeyService, sessionStorage)

	errorPages, err := ui.NewErrorPageHandlers()
	if err != nil {
		slog.Error("Failed to create error page handlers", "error", err)
		os.Exit(1)
	}

	// Setup routes
	mux := http.NewServeMux()

	// Passkey administration
	mux.HandleFunc("GET /api/passkeys", api.RequireSession(apiServer.ListPasskeysHandler))
	mux.HandleFunc("PATCH /api/passkeys", api.RequireSession(apiServer.RenamePasskeyHandler))
	mux.HandleFunc("DELETE /api/passkeys", api.RequireSession(apiServer.DeletePasskeyHandler))

	// WebAuthn ceremonies
	mux.HandleFunc("POST /api/v1/register/begin", apiServer.RegisterBeginHandler)
	mux.HandleFunc("POST /api/v1/register/finish", apiServer.RegisterFinishHandler)
	mux.HandleFunc("POST /api/v1/login/begin", apiServer.LoginBeginHandler)
	mux.HandleFunc("POST /api/v1/login/finish", apiServer.LoginFinishHandler)

	// Google OAuth sign-in
	mux.HandleFunc("GET /auth/google/login", apiServer.GoogleLoginHandler)
	mux.HandleFunc("GET /auth/google/callback", apiServer.GoogleCallbackHandler)

	// Sessions and status
	mux.HandleFunc("POST /api/v1/logout", apiServer.LogoutHandler)
	mux.HandleFunc("GET /api/v1/validate/{sessionId}", apiServer.ValidateSessionHandler)
	mux.HandleFunc("GET /api/v1/user/sessions", api.RequireSession(apiServer.UserSessionsHandler))
	mux.HandleFunc("GET /health", apiServer.HealthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	// Error page for rejected ceremonies
	mux.HandleFunc("GET /auth-error", errorPages.AuthErrorHandler)

	// Apply middleware
	handler := api.LoggingMiddleware(api.MetricsMiddleware(api.CORSMiddleware(api.WithSession(sessionStorage)(mux))))

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("Passkey account service listening", "port", cfg.Port, "rp_id", cfg.RPID)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}
