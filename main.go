package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jlynch25/kaizen_api/internal/app"
	"github.com/jlynch25/kaizen_api/internal/config"
	"github.com/jlynch25/kaizen_api/internal/lib/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()

	log := logger.New(cfg.Env)
	log.WithField("env", cfg.Env).WithField("storage", cfg.StorageDriver).Info("starting kaizen api")

	application, err := app.New(context.Background(), log, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to initialise application")
	}

	go application.MustRun()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	sign := <-stop
	log.WithField("signal", sign.String()).Info("stopping application")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := application.Stop(ctx); err != nil {
		log.WithError(err).Error("failed to stop application cleanly")
		return
	}
	log.Info("application stopped")
}
