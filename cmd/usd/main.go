// Command usd runs the self-hosted auth and table backend for the us client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/terraincognita07/us/internal/api"
	"github.com/terraincognita07/us/internal/cli"
	"github.com/terraincognita07/us/internal/config"
	"github.com/terraincognita07/us/internal/db"
	"github.com/terraincognita07/us/pkg/logging"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		slog.Error("usd failed", "error", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("usd", flag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML config file")
	flags.Usage = func() {
		fmt.Fprintln(flags.Output(), "Usage: usd [-config file] [recovery-link <email>]")
		flags.PrintDefaults()
	}
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logging.Setup(cfg.Log.Level)
	if err := cfg.Server.Validate(); err != nil {
		return err
	}

	database, err := db.OpenSQLite(cfg.Server.DBPath)
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}
	defer closeDatabase(database)

	switch flags.Arg(0) {
	case "":
		return serve(cfg.Server, database)
	case "recovery-link":
		if flags.NArg() != 2 {
			flags.Usage()
			return errors.New("recovery-link needs exactly one email")
		}
		return cli.RunRecoveryLinkCommand(database, cfg.Server.SecretKey, flags.Arg(1), os.Stdout)
	default:
		flags.Usage()
		return fmt.Errorf("unknown command %q", flags.Arg(0))
	}
}

func newServer(cfg config.ServerConfig, database *gorm.DB) (*fiber.App, error) {
	handler, err := api.NewHandler(database, cfg.SecretKey, api.Options{
		AnonKey:  cfg.AnonKey,
		TokenTTL: cfg.TokenTTL,
		SiteURL:  cfg.PublicURL,
		Logger:   slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("handler init failed: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:               "usd",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(compress.New())
	api.RegisterRoutes(app, handler)
	return app, nil
}

func serve(cfg config.ServerConfig, database *gorm.DB) error {
	app, err := newServer(cfg, database)
	if err != nil {
		return err
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("usd listening", "addr", "0.0.0.0:"+cfg.Port, "db", cfg.DBPath, "anon_key_required", cfg.AnonKey != "")
	if err := app.Listen(":" + cfg.Port); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

func closeDatabase(database *gorm.DB) {
	sqlDB, err := database.DB()
	if err == nil {
		err = sqlDB.Close()
	}
	if err != nil {
		slog.Warn("database close failed", "error", err)
	}
}
