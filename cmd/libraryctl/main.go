package main

import (
	"context"
	"fmt"
	stdLog "log"
	"os"
	"os/signal"

	"github.com/Astemirdum/library-catalog/library/cli"
	"github.com/Astemirdum/library-catalog/library/config"
	"github.com/Astemirdum/library-catalog/pkg/logger"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		stdLog.Fatal("load envs from .env ", err)
	}
	cfg, err := config.NewClientConfig()
	if err != nil {
		stdLog.Fatal("client config ", err)
	}
	log := logger.NewLogger(cfg.Log, "libraryctl")
	defer log.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := cli.NewRootCommand(cfg, log).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
