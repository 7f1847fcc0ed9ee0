package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/liquidtune/tunevault/server"
	"github.com/liquidtune/tunevault/server/config"
)

func main() {
	// Parse optional config path from flag
	var configFile string
	flag.StringVar(&configFile, "conf", "./config.yml", "Config file path")
	flag.Parse()

	// a missing .env is fine
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded")
	}

	v := viper.New()
	v.SetConfigFile(configFile)
	v.SetConfigType("yaml")

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3033)
	v.SetDefault("backend.base_url", "http://127.0.0.1:5000")
	v.SetDefault("transfer.max_parallel", 2)
	v.SetDefault("transfer.progress_interval", "250ms")
	v.SetDefault("paths.download_path", "./music")
	v.SetDefault("paths.local_database_path", ".")
	v.SetDefault("library.collection", "Downloaded Music")
	v.SetDefault("logging.log_path", "tunevault.log")
	v.SetDefault("logging.enable_file_logging", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("authentication.require_auth", false)
	v.SetDefault("auto_archive", true)

	// Env binding
	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	// Load YAML file if exists
	if err := v.ReadInConfig(); err != nil {
		slog.Debug("using defaults")
	}

	cfg := config.Instance()
	if err := v.Unmarshal(cfg); err != nil {
		slog.Error("failed to load config", "error", err)
	}

	if abs, err := filepath.Abs(configFile); err == nil {
		cfg.SetPath(abs)
	}

	if cfg.Transfer.MaxParallel <= 0 {
		cfg.Transfer.MaxParallel = 2
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"max_parallel", cfg.Transfer.MaxParallel,
	)

	if err := server.Run(ctx); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited cleanly")
}
