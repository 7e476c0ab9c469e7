package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/markdave123-py/inboxpress/internal/app"
	"github.com/markdave123-py/inboxpress/internal/config"
	"github.com/markdave123-py/inboxpress/internal/logger"
)

func main() {
	one := flag.Bool("one", false, "process exactly one pending file, then exit")
	flag.Parse()

	cfg := config.LoadConfig()
	log := logger.New(cfg.LogMode)
	defer log.Sync()
	for _, w := range cfg.Warnings {
		log.Warn("config value ignored", zap.String("detail", w))
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration:\n%v\n", err)
		os.Exit(1)
	}

	// SIGINT/SIGTERM stop the watch loop; a stage already running sees a cancelled context.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg, log)
	if err != nil {
		log.Error("startup failed", zap.Error(err))
		os.Exit(1)
	}
	defer application.Close()

	if application.Server != nil {
		go application.Server.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = application.Server.Shutdown(shutdownCtx)
		}()
	}

	log.Info("inboxpress running", zap.String("inbox", cfg.WatchDir), zap.String("mode", cfg.Mode), zap.Bool("one", *one))
	if err := application.Run(ctx, *one, cfg.Mode); err != nil {
		log.Error("run failed", zap.Error(err))
		return
	}
	if ctx.Err() != nil {
		log.Info("interrupted, shutting down")
	}
}
