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

	internalhttp "github.com/EternisAI/silo-enroll/internal/api/http"
	"github.com/EternisAI/silo-enroll/internal/coreapi"
	"github.com/EternisAI/silo-enroll/internal/db"
	"github.com/EternisAI/silo-enroll/internal/delivery"
	"github.com/EternisAI/silo-enroll/internal/enrollment"
	"github.com/EternisAI/silo-enroll/internal/journal"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

var AppVersion string

func main() {
	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "enroll":
			InitConfig()
			err = runEnroll(os.Args[2:])
		case "token":
			InitConfig()
			err = runToken(os.Args[2:])
		default:
			fmt.Fprintf(os.Stderr, "unknown command %q (expected enroll or token)\n", os.Args[1])
			os.Exit(2)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			os.Exit(1)
		}
		return
	}

	InitConfig()

	slog.Info("Silo Enroll Server", "version", AppVersion)

	if config.Auth.JWTSecret == "" {
		slog.Error("auth.jwt_secret is required")
		os.Exit(1)
	}

	ctx := context.Background()
	store, closeJournal, err := openJournal(ctx)
	if err != nil {
		slog.Error("Failed to open enrollment journal", "error", err)
		os.Exit(1)
	}
	defer closeJournal()

	client := coreapi.NewClient(config.Core)
	opts := enrollment.Options{
		IssueTimeout:  config.Core.IssueTimeout,
		SubmitTimeout: config.Core.SubmitTimeout,
	}
	registry := enrollment.NewRegistry(func() *enrollment.Controller {
		return enrollment.NewCoreController(client, store, opts)
	})

	services := &internalhttp.Services{
		Registry: registry,
		Journal:  store,
		Renderer: delivery.NewRenderer(config.Delivery.Scheme),
		Auth:     config.Auth,
		QRSize:   config.Http.QRSize,
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"PUT", "PATCH", "GET", "POST", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(gin.Recovery())
	internalhttp.SetupRoute(engine, services)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", config.Http.Port),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server error", "error", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	}

	slog.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}
	registry.CloseAll()

	slog.Info("Shutdown complete")
}

// openJournal uses Postgres when db.url is set and an in-memory journal
// otherwise.
func openJournal(ctx context.Context) (journal.Store, func(), error) {
	if config.DB.Url == "" {
		slog.Warn("db.url not set, enrollment journal is kept in memory")
		return journal.NewMemoryStore(), func() {}, nil
	}

	pool, err := db.Open(ctx, config.DB)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("Enrollment journal connected to Postgres", "schema", config.DB.Schema)
	return journal.NewPostgresStore(pool), pool.Close, nil
}
