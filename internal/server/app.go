// Package server wires storage, model artifacts and the HTTP layer together
// and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/windbreaker/internal/artifacts"
	"github.com/dmitrijs2005/windbreaker/internal/logging"
	"github.com/dmitrijs2005/windbreaker/internal/metrics"
	"github.com/dmitrijs2005/windbreaker/internal/server/config"
	"github.com/dmitrijs2005/windbreaker/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/windbreaker/internal/server/rest"
	"github.com/dmitrijs2005/windbreaker/internal/server/services"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	server *rest.HTTPServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	mx := metrics.New(reg)

	db, rm, err := repomanager.Open(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store, err := artifactStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("artifact store error: %w", err)
	}

	audit := services.NewAuditLog(db, rm, logger.With("module", "audit"), mx)
	us := services.NewUserService(db, rm, audit, logger.With("module", "users"), c)

	// each family loads on its own; a broken one only disables its endpoints
	ds := services.LoadDelayService(ctx, store, c.DelayModelFile, c.DelayEncoderFile, logger.With("module", "delay"), mx)
	ps := services.LoadPriceService(ctx, store, c.PriceModelFile, c.PriceEncoderFile, logger.With("module", "price"), mx)

	if c.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	info := rest.Info{ProjectName: c.ProjectName, Version: c.Version}
	opts := rest.Options{TrustedProxies: c.TrustedProxies, AllowedOrigins: c.CORSOrigins}
	srv, err := rest.NewHTTPServer(c.EndpointAddr, info, opts, logger, mx, us, ds, ps)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("http server error: %w", err)
	}

	return &App{config: c, logger: logger, db: db, server: srv}, nil
}

func artifactStore(ctx context.Context, c *config.Config) (artifacts.Store, error) {
	if !c.UseS3() {
		return artifacts.NewDirStore(c.ModelDir), nil
	}
	return artifacts.NewS3Store(ctx, artifacts.S3Options{
		Bucket:       c.S3Bucket,
		Prefix:       c.S3Prefix,
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
	})
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until a signal arrives or the server fails, then closes the
// database.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "version", app.config.Version)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
