package main

import (
	"fmt"
	"os"

	"segtile/internal/cli"
	"segtile/internal/config"
	"segtile/internal/logging"
	"segtile/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logging.Setup(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to set up logging:", err)
		os.Exit(1)
	}

	store, err := storage.New(cfg.Paths.DatabasePath)
	if err != nil {
		log.Error("failed to open run ledger", "path", cfg.Paths.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := cli.NewRootCmd(cfg, log, store).Execute(); err != nil {
		log.Error("command failed", "error", err)
		os.Exit(1)
	}
}
