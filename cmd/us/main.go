// Command us is the command line client for the couples app.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/terraincognita07/us/internal/backend/rest"
	"github.com/terraincognita07/us/internal/cli"
	"github.com/terraincognita07/us/internal/config"
	"github.com/terraincognita07/us/internal/i18n"
	"github.com/terraincognita07/us/internal/session"
	"github.com/terraincognita07/us/pkg/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], cli.Environment{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr})
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, env cli.Environment) int {
	flags := flag.NewFlagSet("us", flag.ContinueOnError)
	flags.SetOutput(env.Stderr)
	configPath := flags.String("config", "", "path to a YAML config file")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	app, err := newApp(*configPath, env)
	if err != nil {
		fmt.Fprintf(env.Stderr, "us: %v\n", err)
		return 1
	}
	return app.Run(ctx, flags.Args())
}

func newApp(configPath string, env cli.Environment) (*cli.App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logging.SetupWriter(stderrOrDiscard(env.Stderr), logging.ParseLevel(cfg.Log.Level))
	if err := cfg.Client.Validate(); err != nil {
		return nil, err
	}

	messages, err := i18n.Default(i18n.LangEN)
	if err != nil {
		return nil, err
	}
	language := cfg.Client.Language
	if language == "" {
		language = messages.DetectFromLocale(os.Getenv("LC_ALL"), os.Getenv("LC_MESSAGES"), os.Getenv("LANG"))
	}

	store := session.NewStore(cfg.Client.SessionPath)
	if err := store.Load(); err != nil {
		slog.Warn("ignoring unreadable session", "path", cfg.Client.SessionPath, "error", err)
	}
	client := rest.New(cfg.Client.BackendURL, cfg.Client.AnonKey, store, &http.Client{Timeout: cfg.Client.Timeout})

	return cli.NewApp(client, messages, language, env), nil
}

func stderrOrDiscard(w io.Writer) io.Writer {
	if w == nil {
		return io.Discard
	}
	return w
}
