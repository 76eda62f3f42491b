package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/windbreaker/internal/admin"
	"github.com/dmitrijs2005/windbreaker/internal/logging"
	"github.com/dmitrijs2005/windbreaker/internal/metrics"
	"github.com/dmitrijs2005/windbreaker/internal/server/config"
	"github.com/dmitrijs2005/windbreaker/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/windbreaker/internal/server/services"
)

func main() {

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	global, cmd, args := admin.SplitCommand(os.Args[1:])

	cfg, err := config.Load(global, os.LookupEnv)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.NewJSONLogger(os.Stderr, cfg.LogLevel)

	db, rm, err := repomanager.Open(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	if err := rm.RunMigrations(ctx, db); err != nil {
		log.Fatalf("db migration error: %v", err)
	}

	audit := services.NewAuditLog(db, rm, logger, metrics.New(nil))
	us := services.NewUserService(db, rm, audit, logger, cfg)

	a := admin.New(us, audit, os.Stdin, os.Stdout, int(os.Stdin.Fd()))
	if err := a.Run(ctx, cmd, args); err != nil {
		log.Printf("%v", err)
		db.Close()
		os.Exit(1)
	}

}
