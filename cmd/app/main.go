package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"fsmbus/config"
	"fsmbus/internal/app"
	"fsmbus/pkg/logger"
)

func main() {
	cfg, err := config.New()
	if err != nil {
		log.Fatalf("Config error: %s", err)
	}

	l := logger.Setup(logger.Options{
		Level:   cfg.LogLevel,
		Console: cfg.LogFormat == "console",
		Service: cfg.ServiceName,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfg, l, app.DefaultHandlers(cfg, l)...)
	if err != nil {
		log.Fatalf("App init error: %s", err)
	}

	if err := a.Run(ctx); err != nil {
		l.Error("App stopped with error", "error", err)
		os.Exit(1)
	}
}
