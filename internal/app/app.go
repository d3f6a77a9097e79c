package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	"visiondemo/internal/config"
	"visiondemo/internal/logger"
	"visiondemo/internal/repository"
	"visiondemo/internal/repository/sqlite"
	"visiondemo/internal/route"
	"visiondemo/internal/service"
	"visiondemo/internal/service/ai"
	"visiondemo/internal/service/catalog"
	"visiondemo/internal/service/engine"
	"visiondemo/internal/service/preview"
	"visiondemo/internal/service/websocket"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB // nil when run history is disabled
	hubService *websocket.HubService
	manager    *service.Manager
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	cat := catalog.Default()
	if cfg.ScenesFile != "" {
		loaded, err := catalog.Load(cfg.ScenesFile)
		if err != nil {
			return nil, fmt.Errorf("load scenes: %w", err)
		}
		cat = loaded
		log.Info("Scene catalog loaded from %s", cfg.ScenesFile)
	}

	var (
		db      *sqlite.DB
		runRepo repository.RunRepository
	)
	if cfg.DatabasePath != "" {
		var err error
		db, err = sqlite.New(cfg.DatabasePath)
		if err != nil {
			return nil, fmt.Errorf("open run history: %w", err)
		}
		runRepo = sqlite.NewRunRepository(db)
	}

	hub := websocket.NewHubService(log)
	mng := service.NewManager(
		preview.NewStore(log),
		engine.NewSimulated(cfg.ProcessingDelay, nil, log),
		cat,
		ai.NewAnnotatorService(log),
		hub,
		runRepo,
		cfg,
		log,
	)

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		hubService: hub,
		manager:    mng,
	}, nil
}

// Run serves HTTP until SIGINT or SIGTERM, then shuts everything down.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start background services
	go a.hubService.Run()
	go a.manager.Run(ctx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.config.Port),
		Handler: route.SetupRoutes(a.manager, a.config, a.logger),
	}

	fmt.Printf("🚀 Vision Recognition Demo\n")
	fmt.Printf("📍 URL: http://localhost:%d\n", a.config.Port)
	fmt.Printf("⏱️  Delay per image: %s\n", a.config.ProcessingDelay)
	if a.db != nil {
		fmt.Printf("🗄️  Run history: %s\n", a.config.DatabasePath)
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down HTTP server...")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("HTTP server shutdown error: %v", err)
	}

	a.manager.Stop()
	a.hubService.Stop()
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error("Error closing database: %v", err)
		}
	}

	a.logger.Info("Graceful shutdown complete")
	return serveErr
}
