package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/avelasco/taskboard-api/internal/config"
	"github.com/avelasco/taskboard-api/internal/platform/logger"
	"github.com/avelasco/taskboard-api/internal/platform/postgres"
	"github.com/avelasco/taskboard-api/internal/ratelimit"
	"github.com/avelasco/taskboard-api/internal/realtime"
	"github.com/avelasco/taskboard-api/internal/service/auth"
	"github.com/avelasco/taskboard-api/internal/store"
)

// application holds the fully wired dependency graph for the server.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	userStore store.UserStore
	taskStore store.TaskStore

	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier

	limiter *ratelimit.Limiter
	hub     *realtime.Hub
}

// newApplication loads configuration and wires every component the
// server needs. The database is connected and migrated before this
// returns.
func newApplication() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel)

	db, err := setupAppDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	if err := runMigrations(db, log); err != nil {
		closeDatabase(db, log)
		return nil, err
	}

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		closeDatabase(db, log)
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	hasher := auth.NewBcryptHasher(bcrypt.DefaultCost)

	app := &application{
		config:           cfg,
		logger:           log,
		db:               db,
		userStore:        postgres.NewPostgresUserStore(db, hasher),
		taskStore:        postgres.NewPostgresTaskStore(db),
		jwtService:       jwtService,
		passwordVerifier: auth.NewBcryptVerifier(),
		limiter: ratelimit.New(
			cfg.RateLimit.MaxRequests,
			time.Duration(cfg.RateLimit.WindowSeconds)*time.Second,
		),
		hub: realtime.NewHub(realtime.NewJWTVerifier(jwtService), log, realtime.Config{
			AuthTimeout:    time.Duration(cfg.Realtime.AuthTimeoutSeconds) * time.Second,
			SendBufferSize: cfg.Realtime.SendBufferSize,
		}),
	}

	return app, nil
}

// cleanup releases resources held by the application.
func (app *application) cleanup() {
	app.hub.CloseAll()
	closeDatabase(app.db, app.logger)
}

func closeDatabase(db *sql.DB, log *slog.Logger) {
	if err := db.Close(); err != nil {
		log.Error("failed to close database connection", "error", err)
	}
}
